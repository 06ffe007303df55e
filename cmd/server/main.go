// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/beaterboo/beaterboo/internal/handlers"
	"github.com/beaterboo/beaterboo/internal/middleware"
	"github.com/beaterboo/beaterboo/internal/repo"
	"github.com/beaterboo/beaterboo/internal/store"
	"github.com/beaterboo/beaterboo/internal/words"
)

func main() {
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func serve(ctx context.Context, cfg *Config) error {
	logger := logrus.New()
	if cfg.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Both persisted tiers are optional: a failure to reach either at
	// startup degrades the server rather than aborting it.
	var remote store.Tier
	var pg *store.PostgresTier
	if cfg.databaseURL != "" {
		var err error
		pg, err = store.NewPostgresTier(ctx, store.PostgresConfig{
			URL:            cfg.databaseURL,
			MaxConns:       int32(cfg.poolMaxConns),
			AcquireTimeout: cfg.poolAcquireTimeout,
			IdleTimeout:    cfg.poolIdleTimeout,
		})
		if err != nil {
			logger.WithError(err).Warn("remote tier unavailable, continuing degraded")
		} else {
			if err := pg.InitSchema(ctx); err != nil {
				logger.WithError(err).Warn("schema init failed")
			}
			remote = pg
			defer pg.Close()
		}
	}

	var cache store.CacheTier
	if cfg.redisAddr != "" {
		rc, err := store.NewRedisCacheTier(cfg.redisAddr, cfg.redisDB)
		if err != nil {
			logger.WithError(err).Warn("cache tier unavailable, continuing degraded")
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	repository := repo.New(remote, cache, repo.Config{OfflineWrites: cfg.offlineWrites}, logger)

	var provider words.Provider
	if cfg.geminiAPIKey != "" {
		gp := words.NewGeminiProvider(cfg.geminiAPIKey)
		gp.Model = cfg.geminiModel
		provider = gp
	}
	generator := words.NewGenerator(provider, logger)

	srv := handlers.NewWordSetServer(repository, generator, logger)

	server := &http.Server{
		Handler:      middleware.LogMiddleware(logger)(srv.Router()),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.bind, cfg.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.WithError(err).Error("failed to serve")
		return err
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
