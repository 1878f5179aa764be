package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "GAMESHUB"

type Config struct {
	Bind      string
	Port      int
	PublicURL string

	Store       string
	DataDir     string
	DatabaseURL string

	UnoTurnTimeout  time.Duration
	P4TurnTimeout   time.Duration
	ReconnectGrace  time.Duration
	EndDisplayDelay time.Duration
	RoomIdleTimeout time.Duration
	ResultRetention time.Duration

	RateLimit int

	LogFormat string
	Verbose   bool
}

// Default returns the configuration the command starts from before flags and
// environment are applied.
func Default() *Config {
	return &Config{
		Bind:            "0.0.0.0",
		Port:            8080,
		Store:           "file",
		DataDir:         "data",
		UnoTurnTimeout:  10 * time.Second,
		ReconnectGrace:  5 * time.Second,
		EndDisplayDelay: 3 * time.Second,
		RoomIdleTimeout: 30 * time.Minute,
		ResultRetention: 30 * 24 * time.Hour,
		RateLimit:       20,
		LogFormat:       "text",
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Store {
	case "file", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("--database-url is required with --store=postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (want file, sqlite or postgres)", c.Store)
	}
	if c.UnoTurnTimeout < 0 || c.P4TurnTimeout < 0 || c.ReconnectGrace < 0 || c.EndDisplayDelay < 0 {
		return errors.New("durations must not be negative")
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("invalid rate limit (must be at least 1): %d", c.RateLimit)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.PublicURL != "" {
		if _, err := url.ParseRequestURI(c.PublicURL); err != nil {
			return fmt.Errorf("invalid public url: %w", err)
		}
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// BaseURL is where clients reach the server, used in share links.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	host := c.Bind
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// NewCommand builds the root command. Every flag can also be set through a
// GAMESHUB_ environment variable or a .env file.
func NewCommand(cfg *Config, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "gameshub",
		Short: "Real-time server for turn-based UNO and Puissance4 matches.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: GAMESHUB_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: GAMESHUB_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "externally visible base url, used in room QR codes (env: GAMESHUB_PUBLIC_URL)")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "persistence backend: file, sqlite or postgres (env: GAMESHUB_STORE)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the file and sqlite stores (env: GAMESHUB_DATA_DIR)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "database dsn for the sql stores (env: GAMESHUB_DATABASE_URL)")
	fs.DurationVar(&cfg.UnoTurnTimeout, "uno-turn-timeout", cfg.UnoTurnTimeout, "time before an idle UNO player draws automatically, 0 to disable (env: GAMESHUB_UNO_TURN_TIMEOUT)")
	fs.DurationVar(&cfg.P4TurnTimeout, "p4-turn-timeout", cfg.P4TurnTimeout, "time before an idle Puissance4 player forfeits, 0 to disable (env: GAMESHUB_P4_TURN_TIMEOUT)")
	fs.DurationVar(&cfg.ReconnectGrace, "reconnect-grace", cfg.ReconnectGrace, "time a dropped player has to reconnect before leaving their game (env: GAMESHUB_RECONNECT_GRACE)")
	fs.DurationVar(&cfg.EndDisplayDelay, "end-display-delay", cfg.EndDisplayDelay, "how long clients show the end screen before the new lobby (env: GAMESHUB_END_DISPLAY_DELAY)")
	fs.DurationVar(&cfg.RoomIdleTimeout, "room-idle-timeout", cfg.RoomIdleTimeout, "time before empty private rooms are closed (env: GAMESHUB_ROOM_IDLE_TIMEOUT)")
	fs.DurationVar(&cfg.ResultRetention, "result-retention", cfg.ResultRetention, "how long match history is kept (env: GAMESHUB_RESULT_RETENTION)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "messages per second allowed per connection (env: GAMESHUB_RATE_LIMIT)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log output format: text or json (env: GAMESHUB_LOG_FORMAT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "display debug output (env: GAMESHUB_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
