// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/manpreetbhatti/inkboard/internal/archive"
)

type Config struct {
	Port     string
	DBPath   string
	Autosave archive.Config
	MDNS     bool
	Debug    bool
}

func Default() Config {
	return Config{
		Port:     "8080",
		DBPath:   "./data/inkboard.db",
		Autosave: archive.DefaultConfig(),
	}
}

// Load applies environment overrides to the defaults. Malformed values are
// reported rather than silently ignored.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = v
	}
	if v := getenv("INKBOARD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("INKBOARD_AUTOSAVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("INKBOARD_AUTOSAVE_INTERVAL: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("INKBOARD_AUTOSAVE_INTERVAL: must be positive, got %s", v)
		}
		cfg.Autosave.Interval = d
	}
	if v := getenv("INKBOARD_AUTOSAVE_KEEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("INKBOARD_AUTOSAVE_KEEP: %w", err)
		}
		if n < 1 {
			return cfg, fmt.Errorf("INKBOARD_AUTOSAVE_KEEP: must be at least 1, got %d", n)
		}
		cfg.Autosave.KeepAuto = n
	}

	var err error
	if cfg.MDNS, err = flag(getenv, "INKBOARD_MDNS"); err != nil {
		return cfg, err
	}
	if cfg.Debug, err = flag(getenv, "INKBOARD_DEBUG"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func flag(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func (c Config) PortNumber() int {
	n, _ := strconv.Atoi(c.Port)
	return n
}
