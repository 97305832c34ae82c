package levels

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxelforge.dev/internal/sim/level"
	"voxelforge.dev/internal/sim/tuning"
)

type Config struct {
	DefaultLevel string      `yaml:"default_level"`
	Levels       []LevelSpec `yaml:"levels"`
}

type LevelSpec struct {
	Name       string `yaml:"name"`
	Size       []int  `yaml:"size"`
	Mode       string `yaml:"mode"`
	LeafDecay  bool   `yaml:"leaf_decay"`
	Seed       int64  `yaml:"seed"`
	IntervalMs int    `yaml:"interval_ms,omitempty"`
	OverloadMs int    `yaml:"overload_ms,omitempty"`
}

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
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("levels.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("levels.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultLevel: "main",
		Levels: []LevelSpec{
			{Name: "main", Size: []int{64, 64, 64}, Mode: "basic", LeafDecay: true, Seed: 1},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Levels {
		c.Levels[i].Name = strings.TrimSpace(c.Levels[i].Name)
		c.Levels[i].Mode = strings.ToLower(strings.TrimSpace(c.Levels[i].Mode))
		if c.Levels[i].Mode == "" {
			c.Levels[i].Mode = level.ModeBasic.String()
		}
	}
	if strings.TrimSpace(c.DefaultLevel) == "" && len(c.Levels) > 0 {
		c.DefaultLevel = c.Levels[0].Name
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Levels) == 0 {
		return fmt.Errorf("levels must not be empty")
	}
	seen := map[string]bool{}
	for _, l := range c.Levels {
		if l.Name == "" {
			return fmt.Errorf("level name must not be empty")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate level name: %s", l.Name)
		}
		seen[l.Name] = true
		if len(l.Size) != 3 {
			return fmt.Errorf("level %s size must be [w, h, l]", l.Name)
		}
		for _, n := range l.Size {
			if n <= 0 || n > 1024 {
				return fmt.Errorf("level %s size must be in (0, 1024]", l.Name)
			}
		}
		if _, err := level.ParseMode(l.Mode); err != nil {
			return fmt.Errorf("level %s: %w", l.Name, err)
		}
		if l.IntervalMs < 0 || l.OverloadMs < 0 {
			return fmt.Errorf("level %s interval_ms/overload_ms must be >= 0", l.Name)
		}
	}
	if !seen[c.DefaultLevel] {
		return fmt.Errorf("default_level %q not found in levels", c.DefaultLevel)
	}
	return nil
}

// LevelConfig merges a level spec over the server tuning.
func (s LevelSpec) LevelConfig(t tuning.Tuning) (level.Config, error) {
	mode, err := level.ParseMode(s.Mode)
	if err != nil {
		return level.Config{}, err
	}
	if len(s.Size) != 3 {
		return level.Config{}, fmt.Errorf("level %s size must be [w, h, l]", s.Name)
	}
	cfg := level.Config{
		Name:            s.Name,
		Width:           s.Size[0],
		Height:          s.Size[1],
		Length:          s.Size[2],
		Mode:            mode,
		Interval:        t.Interval(),
		Overload:        t.Overload(),
		AutoRestart:     t.AutoRestart,
		FlushThreshold:  t.FlushThreshold,
		LeafDecay:       s.LeafDecay,
		Seed:            s.Seed,
		FailureLogRate:  t.FailureLogPerSec,
		FailureLogBurst: t.FailureLogBurst,
	}
	if s.IntervalMs > 0 {
		cfg.Interval = time.Duration(s.IntervalMs) * time.Millisecond
	}
	if s.OverloadMs > 0 {
		cfg.Overload = time.Duration(s.OverloadMs) * time.Millisecond
	}
	return cfg, nil
}
