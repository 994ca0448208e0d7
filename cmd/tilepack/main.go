package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xReLogic/tilepack/internal/config"
	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("tilepack failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tilepack",
		Usage: "Build and read tiled compression containers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a TOML configuration file"},
			&cli.StringFlag{Name: "engine", Usage: "Compression engine (" + strings.Join(compress.Names(), ", ") + ")"},
			&cli.IntFlag{Name: "level", Usage: "Compression level, 0 to 12"},
			&cli.IntFlag{Name: "tile-size", Usage: "Tile size in bytes"},
			&cli.IntFlag{Name: "workers", Usage: "Parallel compressors, 0 for GOMAXPROCS"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (trace, debug, info, warn, error)"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return logging.SetUp(cfg.Log.Level, cfg.Log.Format)
		},
		Commands: []*cli.Command{
			compressCommand,
			decompressCommand,
			inspectCommand,
			verifyCommand,
			catCommand,
		},
	}
}

// loadConfig reads --config and applies the global flags over it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("engine") {
		cfg.Engine = c.String("engine")
	}
	if c.IsSet("level") {
		cfg.Level = c.Int("level")
	}
	if c.IsSet("tile-size") {
		cfg.TileSize = c.Int("tile-size")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func options(c *cli.Context) (config.Config, container.Options, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return cfg, container.Options{}, err
	}
	opts := cfg.Options()
	opts.Logger = logging.L("tilepack").WithField("engine", cfg.Engine)
	return cfg, opts, nil
}
