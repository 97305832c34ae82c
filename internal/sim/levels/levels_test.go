package levels

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelforge.dev/internal/sim/level"
	"voxelforge.dev/internal/sim/tuning"
)

func TestLoad_LevelsYAML(t *testing.T) {
	cfg, err := Load("../../../configs/levels.yaml")
	if err != nil {
		t.Fatalf("load levels.yaml: %v", err)
	}
	if cfg.DefaultLevel != "main" {
		t.Fatalf("default_level: got %q want main", cfg.DefaultLevel)
	}
	byName := map[string]LevelSpec{}
	for _, l := range cfg.Levels {
		byName[l.Name] = l
	}
	if byName["lobby"].Mode != "doors" {
		t.Fatalf("lobby mode: got %q", byName["lobby"].Mode)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"dup", Config{Levels: []LevelSpec{{Name: "a", Size: []int{1, 1, 1}}, {Name: "a", Size: []int{1, 1, 1}}}}},
		{"size", Config{Levels: []LevelSpec{{Name: "a", Size: []int{1, 1}}}}},
		{"mode", Config{Levels: []LevelSpec{{Name: "a", Size: []int{1, 1, 1}, Mode: "warp"}}}},
		{"default", Config{DefaultLevel: "b", Levels: []LevelSpec{{Name: "a", Size: []int{1, 1, 1}}}}},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); err == nil {
			t.Fatalf("%s: want error", tc.name)
		}
	}
}

func TestLevelConfigOverridesTuning(t *testing.T) {
	spec := LevelSpec{Name: "x", Size: []int{4, 5, 6}, Mode: "hardcore", IntervalMs: 40}
	lc, err := spec.LevelConfig(tuning.Defaults())
	if err != nil {
		t.Fatalf("level config: %v", err)
	}
	if lc.Interval != 40*time.Millisecond || lc.Overload != 1500*time.Millisecond {
		t.Fatalf("durations: %v %v", lc.Interval, lc.Overload)
	}
	if lc.Mode != level.ModeHardcore || lc.Width != 4 || lc.Length != 6 {
		t.Fatalf("config: %+v", lc)
	}
}

func TestManagerLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.yaml")
	body := "levels:\n  - name: b\n    size: [8, 8, 8]\n  - name: a\n    size: [4, 4, 4]\n    mode: \"off\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	reg, err := level.NewRegistryBuilder().Build()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	m, err := NewManager(cfg, tuning.Defaults(), reg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	defer m.Close()

	if got := m.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("names: got %v", got)
	}
	if m.Default().Name() != "b" {
		t.Fatalf("default: got %s want b", m.Default().Name())
	}
	a, err := m.Get("a")
	if err != nil || a.Mode() != level.ModeOff {
		t.Fatalf("get a: %v %v", a, err)
	}
	if _, err := m.Get("zzz"); !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("missing: got %v", err)
	}
	if got := len(m.Metrics()); got != 2 {
		t.Fatalf("metrics: got %d", got)
	}
	m.Close()
	m.Close()
}
