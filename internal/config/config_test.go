package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameshub-server/internal/config"
)

func execute(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cfg := config.Default()
	var ran *config.Config
	cmd := config.NewCommand(cfg, func(ctx context.Context, c *config.Config) error {
		ran = c
		return nil
	})
	// A nil slice makes cobra fall back to os.Args.
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return ran, err
}

func TestDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := execute(t)
	require.NoError(t, err)
	assert.Equal(8080, cfg.Port)
	assert.Equal("file", cfg.Store)
	assert.Equal(10*time.Second, cfg.UnoTurnTimeout)
	assert.Zero(cfg.P4TurnTimeout)
	assert.Equal("0.0.0.0:8080", cfg.Addr())
	assert.Equal("http://localhost:8080", cfg.BaseURL())
}

func TestFlags(t *testing.T) {
	assert := assert.New(t)

	cfg, err := execute(t, "--port", "9000", "--uno-turn-timeout", "15s", "--store", "sqlite", "--public-url", "https://games.example.com/")
	require.NoError(t, err)
	assert.Equal(9000, cfg.Port)
	assert.Equal(15*time.Second, cfg.UnoTurnTimeout)
	assert.Equal("sqlite", cfg.Store)
	assert.Equal("https://games.example.com", cfg.BaseURL())
}

func TestEnvironment(t *testing.T) {
	t.Setenv("GAMESHUB_PORT", "7000")
	t.Setenv("GAMESHUB_RECONNECT_GRACE", "1s")

	cfg, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, time.Second, cfg.ReconnectGrace)

	cfg, err = execute(t, "--port", "7001")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Port, "flags win over the environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		valid  bool
	}{
		{"defaults", func(c *config.Config) {}, true},
		{"port too high", func(c *config.Config) { c.Port = 70000 }, false},
		{"unknown store", func(c *config.Config) { c.Store = "mongo" }, false},
		{"postgres without url", func(c *config.Config) { c.Store = "postgres" }, false},
		{"postgres with url", func(c *config.Config) {
			c.Store = "postgres"
			c.DatabaseURL = "postgres://localhost/gameshub"
		}, true},
		{"negative timeout", func(c *config.Config) { c.UnoTurnTimeout = -time.Second }, false},
		{"zero rate limit", func(c *config.Config) { c.RateLimit = 0 }, false},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, false},
		{"bad public url", func(c *config.Config) { c.PublicURL = "not a url" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
