package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.InvokeTimeout)
	assert.Equal(t, CacheModeMemory, cfg.Cache.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 15*time.Second, cfg.Cache.VolatileTTL)
	assert.True(t, cfg.Cache.VolatileTTL < cfg.Cache.DefaultTTL,
		"volatile tier must be materially shorter than default tier")

	require.NoError(t, cfg.validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid default",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "invalid cache mode",
			mutate:  func(c *Config) { c.Cache.Mode = "memcached" },
			wantErr: "invalid cache mode",
		},
		{
			name: "redis mode requires addr",
			mutate: func(c *Config) {
				c.Cache.Mode = CacheModeRedis
				c.Cache.Addr = ""
			},
			wantErr: "requires an address",
		},
		{
			name:    "zero invoke timeout",
			mutate:  func(c *Config) { c.Server.InvokeTimeout = 0 },
			wantErr: "invoke timeout must be positive",
		},
		{
			name:    "zero volatile ttl",
			mutate:  func(c *Config) { c.Cache.VolatileTTL = 0 },
			wantErr: "cache TTLs must be positive",
		},
		{
			name:    "missing provider base url",
			mutate:  func(c *Config) { c.Provider.BaseURL = "" },
			wantErr: "provider base URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FINTOOLS_SERVER_PORT", "9191")
	t.Setenv("FINTOOLS_CACHE_MODE", "disabled")
	t.Setenv("FINTOOLS_CACHE_VOLATILE_TTL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, CacheModeDisabled, cfg.Cache.Mode)
	assert.Equal(t, 5*time.Second, cfg.Cache.VolatileTTL)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("FINTOOLS_CACHE_MODE", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache mode")
}
