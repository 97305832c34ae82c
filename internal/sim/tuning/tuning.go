package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the server-wide physics defaults. Levels may override the
// interval and the overload threshold.
type Tuning struct {
	TickIntervalMs   int     `yaml:"tick_interval_ms"`
	OverloadMs       int     `yaml:"overload_ms"`
	AutoRestart      bool    `yaml:"auto_restart"`
	FlushThreshold   int     `yaml:"flush_threshold"`
	FailureLogPerSec float64 `yaml:"failure_log_per_sec"`
	FailureLogBurst  int     `yaml:"failure_log_burst"`
}

func Defaults() Tuning {
	return Tuning{
		TickIntervalMs:   250,
		OverloadMs:       1500,
		FlushThreshold:   512,
		FailureLogPerSec: 5,
		FailureLogBurst:  10,
	}
}

// Load reads physics.yaml over the defaults. An empty path or a missing
// file yields Defaults().
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("physics.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("physics.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be > 0")
	}
	if t.OverloadMs <= 0 {
		return fmt.Errorf("overload_ms must be > 0")
	}
	if t.FlushThreshold <= 0 {
		return fmt.Errorf("flush_threshold must be > 0")
	}
	if t.FailureLogPerSec <= 0 || t.FailureLogBurst <= 0 {
		return fmt.Errorf("failure_log_per_sec and failure_log_burst must be > 0")
	}
	return nil
}

func (t Tuning) Interval() time.Duration { return time.Duration(t.TickIntervalMs) * time.Millisecond }

func (t Tuning) Overload() time.Duration { return time.Duration(t.OverloadMs) * time.Millisecond }
