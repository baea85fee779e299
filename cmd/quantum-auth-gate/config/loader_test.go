package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8090", cfg.Addr())
	assert.Equal(t, "quantum-provider", cfg.Provider.PortName)
	assert.Equal(t, "0x1", cfg.Wallet.ChainIDHex)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, []string{"http://localhost:8090", "http://127.0.0.1:8090"}, cfg.Server.UIAllowedOrigins)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
wallet:
  account: "0x00000000000000000000000000000000000000AA"
  chain_id_hex: "0xAB"
storage:
  driver: SQLite
server:
  ui_allowed_origins:
    - HTTP://LOCALHOST:5173/ui
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("QA_GATE_SERVER_PORT", "9191")

	cfg, err := Load(filepath.Join(dir, "missing"), dir)
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.Server.Port)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", cfg.Wallet.Account)
	assert.Equal(t, "0xab", cfg.Wallet.ChainIDHex)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.UIAllowedOrigins)
	// untouched sections keep the embedded values
	assert.Equal(t, "quantum-provider", cfg.Provider.PortName)
}

func validConfig() Config {
	return Config{
		Server:   Server{Host: "127.0.0.1", Port: "8090"},
		Provider: Provider{ReadLimit: 1024},
		Wallet:   Wallet{ChainIDHex: "0x1"},
		Storage:  Storage{Driver: "file"},
		Popup:    Popup{PageURL: "chrome-extension://abc/popup.html"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"public host", func(c *Config) { c.Server.Host = "0.0.0.0" }, false},
		{"bad port", func(c *Config) { c.Server.Port = "http" }, false},
		{"bad account", func(c *Config) { c.Wallet.Account = "0x1234" }, false},
		{"bad chain id", func(c *Config) { c.Wallet.ChainIDHex = "1" }, false},
		{"bad upstream scheme", func(c *Config) { c.Upstream.URL = "ftp://node" }, false},
		{"ws upstream", func(c *Config) { c.Upstream.URL = "ws://127.0.0.1:8546" }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, false},
		{"encrypted sqlite", func(c *Config) { c.Storage.Driver = "sqlite"; c.Storage.Encrypt = true }, false},
		{"relative popup page", func(c *Config) { c.Popup.PageURL = "/popup.html" }, false},
		{"zero read limit", func(c *Config) { c.Provider.ReadLimit = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
