package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xReLogic/tilepack/internal/config"
	"github.com/0xReLogic/tilepack/internal/logging"
	"github.com/0xReLogic/tilepack/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "tilepack-server",
		Usage: "Serve tiled compression containers over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a TOML configuration file"},
			&cli.StringFlag{Name: "http-addr", Usage: "HTTP server address"},
			&cli.StringFlag{Name: "engine", Usage: "Default compression engine"},
			&cli.IntFlag{Name: "workers", Usage: "Parallel compressors per request, 0 for GOMAXPROCS"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (trace, debug, info, warn, error)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("server failed")
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("http-addr") {
		cfg.Server.Addr = c.String("http-addr")
	}
	if c.IsSet("engine") {
		cfg.Engine = c.String("engine")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := logging.SetUp(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	log := logging.L("server")

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(cfg, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":      cfg.Server.Addr,
			"engine":    cfg.Engine,
			"tile_size": cfg.TileSize,
		}).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Handle signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.WithField("signal", sig).Info("received signal")
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server error")
	}

	// Shutdown HTTP server
	log.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down HTTP server")
	}

	log.Info("server stopped")
	return nil
}
