package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config drives the whole viewer process: transport, view streaming and the
// meshing pipeline.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	AssetsPath string `yaml:"assets_path"`

	// Version is the announced world version; BlockStatesPath overrides the
	// builtin palette when set.
	Version         string `yaml:"version"`
	BlockStatesPath string `yaml:"block_states_path"`

	ViewDistance   int `yaml:"view_distance"`
	LoadSliceSize  int `yaml:"load_slice_size"`
	LoadSliceDelay int `yaml:"load_slice_delay_ms"`

	Workers      int `yaml:"workers"`
	TickInterval int `yaml:"tick_interval_ms"`

	MinY        int   `yaml:"min_y"`
	WorldHeight int   `yaml:"world_height"`
	Seed        int64 `yaml:"seed"`
}

// Load reads the config file, or returns defaults when path is empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("viewer.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("viewer.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		ListenAddr:     ":8080",
		Version:        "1.21.1",
		ViewDistance:   4,
		LoadSliceSize:  5,
		LoadSliceDelay: 50,
		Workers:        4,
		TickInterval:   50,
		MinY:           0,
		WorldHeight:    256,
		Seed:           1337,
	}
}

// Normalize clamps values to workable ranges instead of failing on them.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = ":8080"
	}
	if c.ViewDistance < 1 {
		c.ViewDistance = 1
	}
	if c.ViewDistance > 16 {
		c.ViewDistance = 16
	}
	if c.LoadSliceSize < 1 {
		c.LoadSliceSize = 1
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Workers > 64 {
		c.Workers = 64
	}
	if c.TickInterval < 1 {
		c.TickInterval = 1
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("version must not be empty")
	}
	if c.WorldHeight <= 0 || c.WorldHeight%16 != 0 {
		return fmt.Errorf("world_height must be a positive multiple of 16, got %d", c.WorldHeight)
	}
	if c.MinY%16 != 0 {
		return fmt.Errorf("min_y must be a multiple of 16, got %d", c.MinY)
	}
	if c.LoadSliceDelay < 0 {
		return fmt.Errorf("load_slice_delay_ms must be >= 0, got %d", c.LoadSliceDelay)
	}
	return nil
}

func (c Config) TickDuration() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

func (c Config) SliceDelay() time.Duration {
	return time.Duration(c.LoadSliceDelay) * time.Millisecond
}
