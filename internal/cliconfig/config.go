// Package cliconfig holds configuration loading for the pulse CLI.
// Values are resolved with flag > environment > config file > default
// precedence; the changed-flags map records which flags were set explicitly.
package cliconfig

import (
	"fmt"
	"time"
)

// Config holds CLI configuration for pulse.
type Config struct {
	ServerURL  string
	ClientName string
	Hostname   string
	Testing    bool
	Timeout    time.Duration
}

// DefaultConfig returns a Config with default values. The server URL and
// hostname are left empty so the client library derives them.
func DefaultConfig() Config {
	return Config{
		ClientName: "pulse-cli",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ClientName == "" {
		return fmt.Errorf("client-name is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
