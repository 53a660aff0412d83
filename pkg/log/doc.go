// Package log provides the logging abstraction used by pulse components.
//
// The library never logs on its own by default; pass an adapter via
// pulse.WithLogger to see queue and transport activity:
//
//	logger := log.NewZerologLogger(zerolog.New(os.Stderr))
//	client, err := pulse.New(cfg, pulse.WithLogger(logger))
//
// Implement the Logger interface to plug in any other logging library.
package log
