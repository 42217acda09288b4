// Package config loads simulator settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/observability"
	"github.com/signalsfoundry/drone-simulator/model"
	"github.com/signalsfoundry/drone-simulator/timectrl"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete simulator configuration.
type Config struct {
	Sim     SimConfig                   `yaml:"sim"`
	Spawn   command.SpawnPolicy         `yaml:"spawn"`
	Server  ServerConfig                `yaml:"server"`
	Logging logging.Config              `yaml:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing"`
}

// SimConfig controls the frame loop and the render anchor.
type SimConfig struct {
	Tick           time.Duration    `yaml:"tick"`
	Mode           string           `yaml:"mode"` // realtime | accelerated
	Anchor         model.GeoPoint   `yaml:"anchor"`
	Seed           uint64           `yaml:"seed"` // 0 picks a time-based seed
	InitialPerType int              `yaml:"initial_per_type"`
	Filter         model.DroneFlags `yaml:"filter"`
	PickScale      float64          `yaml:"pick_scale"`
}

// ServerConfig holds listener addresses. An empty address disables that
// listener.
type ServerConfig struct {
	GRPCAddr     string        `yaml:"grpc_addr"`
	HTTPAddr     string        `yaml:"http_addr"`
	FeedInterval time.Duration `yaml:"feed_interval"`
}

var defaults = Config{
	Sim: SimConfig{
		Tick:      33 * time.Millisecond,
		Mode:      "realtime",
		Anchor:    model.GeoPoint{Lat: 59.437, Lng: 24.7536},
		Filter:    model.AllDrones(),
		PickScale: 1,
	},
	Spawn: command.DefaultSpawnPolicy(),
	Server: ServerConfig{
		GRPCAddr:     ":50051",
		HTTPAddr:     ":8080",
		FeedInterval: 250 * time.Millisecond,
	},
	Logging: logging.Config{Level: "info", Format: "text"},
	Tracing: observability.DefaultTracingConfig(),
}

// Default returns a fresh copy of the built-in configuration.
func Default() Config {
	return deepcopy.Copy(defaults).(Config)
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg, err := ApplyEnv(cfg, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays DRONESIM_* and LOG_* environment values onto cfg.
// lookup is usually os.LookupEnv.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup("DRONESIM_GRPC_ADDR"); ok {
		cfg.Server.GRPCAddr = v
	}
	if v, ok := lookup("DRONESIM_HTTP_ADDR"); ok {
		cfg.Server.HTTPAddr = v
	}
	if v, ok := lookup("DRONESIM_TICK"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: DRONESIM_TICK: %v", ErrInvalidConfig, err)
		}
		cfg.Sim.Tick = d
	}
	if v, ok := lookup("DRONESIM_MODE"); ok && v != "" {
		cfg.Sim.Mode = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		cfg.Logging.Format = v
	}
	cfg.Tracing = observability.ApplyTracingEnv(cfg.Tracing, lookup)
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Sim.Tick <= 0 {
		return fmt.Errorf("%w: sim.tick must be positive", ErrInvalidConfig)
	}
	if _, ok := timectrl.ParseMode(c.Sim.Mode); !ok {
		return fmt.Errorf("%w: sim.mode %q", ErrInvalidConfig, c.Sim.Mode)
	}
	if c.Sim.InitialPerType < 0 {
		return fmt.Errorf("%w: sim.initial_per_type must not be negative", ErrInvalidConfig)
	}
	if c.Sim.PickScale <= 0 {
		return fmt.Errorf("%w: sim.pick_scale must be positive", ErrInvalidConfig)
	}
	if c.Server.FeedInterval <= 0 {
		return fmt.Errorf("%w: server.feed_interval must be positive", ErrInvalidConfig)
	}
	if err := c.Spawn.Validate(); err != nil {
		return fmt.Errorf("%w: spawn: %v", ErrInvalidConfig, err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %v", ErrInvalidConfig, err)
	}
	return nil
}

// TimeMode returns the parsed frame loop mode. Call after Validate.
func (c Config) TimeMode() timectrl.Mode {
	m, _ := timectrl.ParseMode(c.Sim.Mode)
	return m
}
