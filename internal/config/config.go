// Package config loads server configuration from an optional YAML file with
// SPLITLAB_* environment variables as fallback.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/splitlab/splitlab/internal/store"
)

type Config struct {
	Addr     string   `yaml:"addr"`
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
}

type Database struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func Default() Config {
	return Config{
		Addr: ":8080",
		Database: Database{
			Driver: "sqlite",
			Path:   "./splitlab.db",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the config from defaults, then the YAML file at path (when
// non-empty), then environment variables. Later sources win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("SPLITLAB_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SPLITLAB_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SPLITLAB_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SPLITLAB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SPLITLAB_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	return cfg, nil
}

// Logger builds an slog.Logger per the log section.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenStore opens the configured store backend.
func (c Config) OpenStore() (store.Store, error) {
	switch c.Database.Driver {
	case "sqlite", "":
		return store.Open(c.Database.Path)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
}
