package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ClientName != "pulse-cli" {
		t.Errorf("ClientName = %v, want pulse-cli", cfg.ClientName)
	}
	if cfg.ServerURL != "" {
		t.Errorf("ServerURL = %v, want empty (library default)", cfg.ServerURL)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "missing client name",
			config:  Config{},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  Config{ClientName: "c", Timeout: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
