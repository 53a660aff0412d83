package cliconfig

import "os"

// ApplyEnvConfig applies PULSE_* environment variables to the Config.
// Env vars override file config but are overridden by explicit flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server-url", os.Getenv("PULSE_SERVER_URL"), &cfg.ServerURL)
	s.setString("client-name", os.Getenv("PULSE_CLIENT_NAME"), &cfg.ClientName)
	s.setString("hostname", os.Getenv("PULSE_HOSTNAME"), &cfg.Hostname)

	if err := s.setDuration("timeout", os.Getenv("PULSE_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}

	s.setBoolFromString("testing", os.Getenv("PULSE_TESTING"), &cfg.Testing)

	return nil
}
