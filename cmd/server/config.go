// cmd/server/config.go
package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind               string
	port               int
	databaseURL        string
	redisAddr          string
	redisDB            int
	poolMaxConns       int
	poolAcquireTimeout time.Duration
	poolIdleTimeout    time.Duration
	offlineWrites      bool
	geminiAPIKey       string
	geminiModel        string
	verbose            bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.poolMaxConns < 1 {
		return fmt.Errorf("invalid pool size: %d", c.poolMaxConns)
	}
	if c.poolAcquireTimeout <= 0 {
		return errors.New("pool-acquire-timeout must be positive")
	}
	if c.offlineWrites && c.redisAddr == "" {
		return errors.New("--offline-writes requires --redis-addr")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BEATERBOO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "beaterboo-server",
		Short:         "Backend for the beaterboo party game: word-set storage with device ownership and tiered fallback.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BEATERBOO_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BEATERBOO_PORT)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string; empty disables the remote tier (env: BEATERBOO_DATABASE_URL)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis address for the cache tier; empty disables it (env: BEATERBOO_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database index (env: BEATERBOO_REDIS_DB)")
	fs.IntVar(&cfg.poolMaxConns, "pool-max-conns", 20, "maximum concurrent database connections (env: BEATERBOO_POOL_MAX_CONNS)")
	fs.DurationVar(&cfg.poolAcquireTimeout, "pool-acquire-timeout", 2*time.Second, "max wait for a pooled connection before the operation fails (env: BEATERBOO_POOL_ACQUIRE_TIMEOUT)")
	fs.DurationVar(&cfg.poolIdleTimeout, "pool-idle-timeout", 30*time.Second, "idle time before a pooled connection is released (env: BEATERBOO_POOL_IDLE_TIMEOUT)")
	fs.BoolVar(&cfg.offlineWrites, "offline-writes", false, "route saves and deletes through the cache tier when the remote store is unreachable (env: BEATERBOO_OFFLINE_WRITES)")
	fs.StringVar(&cfg.geminiAPIKey, "gemini-api-key", "", "API key for the generative card provider; empty serves the built-in fallback list (env: BEATERBOO_GEMINI_API_KEY)")
	fs.StringVar(&cfg.geminiModel, "gemini-model", "gemini-1.5-pro", "generative model name (env: BEATERBOO_GEMINI_MODEL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BEATERBOO_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceUsage = true

	return cmd
}
