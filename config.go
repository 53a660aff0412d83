package pulse

import (
	"fmt"
	"os"
	"time"

	"github.com/bft-labs/pulse/pkg/transport"
)

// Default server ports. Production servers listen on 5600, testing
// instances on 5666.
const (
	DefaultPort = 5600
	TestingPort = 5666
)

// Config holds the configuration for a pulse client.
type Config struct {
	// ClientName identifies this client to the server. Required.
	ClientName string

	// Hostname recorded on buckets created by this client.
	// Defaults to os.Hostname().
	Hostname string

	// BaseURL is the server base URL without the API prefix,
	// e.g. "http://localhost:5600". Defaults to localhost on the
	// production or testing port depending on Testing.
	BaseURL string

	// Testing selects the testing server port when BaseURL is not set.
	Testing bool

	// Timeout is the per-request HTTP timeout. Defaults to 10s.
	Timeout time.Duration
}

// SetDefaults fills in default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = transport.DefaultTimeout
	}
	if c.Hostname == "" {
		c.Hostname = hostname()
	}
	if c.BaseURL == "" {
		port := DefaultPort
		if c.Testing {
			port = TestingPort
		}
		c.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	}
	// Ensure no trailing slash
	for len(c.BaseURL) > 0 && c.BaseURL[len(c.BaseURL)-1] == '/' {
		c.BaseURL = c.BaseURL[:len(c.BaseURL)-1]
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ClientName == "" {
		return fmt.Errorf("client name is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	return nil
}

// hostname returns the current hostname.
func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
