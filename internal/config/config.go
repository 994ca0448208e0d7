package config

import (
	"os"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the file configuration shared by the tilepack commands.
type Config struct {
	Engine   string `toml:"engine"`
	Level    int    `toml:"level"`
	TileSize int    `toml:"tile_size"`
	PageSize int    `toml:"page_size"`

	// Workers is the number of parallel compressors; 0 uses GOMAXPROCS.
	Workers int `toml:"workers"`

	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr         string `toml:"addr"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine:   compress.DefaultEngine,
		Level:    int(compress.DefaultLevel),
		TileSize: tile.DefaultTileSize,
		PageSize: compress.DefaultPageSize,
		Workers:  runtime.GOMAXPROCS(0),
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// fillDefaults resets empty fields to their defaults. Level zero is a valid
// level and is left alone.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Engine == "" {
		c.Engine = def.Engine
	}
	if c.TileSize == 0 {
		c.TileSize = def.TileSize
	}
	if c.PageSize == 0 {
		c.PageSize = def.PageSize
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = def.Server.MaxBodyBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks every field that the commands would otherwise reject later.
func (c Config) Validate() error {
	if !slices.Contains(compress.Names(), c.Engine) {
		return errors.Wrapf(ErrInvalidConfig, "engine %q not one of %v", c.Engine, compress.Names())
	}
	if c.Level < int(compress.LevelNone) || c.Level > int(compress.Level12) {
		return errors.Wrapf(ErrInvalidConfig, "level %d not in [0, 12]", c.Level)
	}
	if err := tile.ValidateTileSize(c.TileSize); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "tile_size: %v", err)
	}
	if c.PageSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "page_size %d must be positive", c.PageSize)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers %d must not be negative", c.Workers)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "server.max_body_bytes %d must be positive", c.Server.MaxBodyBytes)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// Options returns the container options described by c.
func (c Config) Options() container.Options {
	return container.Options{
		Engine:   c.Engine,
		Level:    compress.Level(c.Level),
		TileSize: c.TileSize,
		PageSize: c.PageSize,
	}
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
