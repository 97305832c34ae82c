package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("got %+v want defaults", got)
	}
	if got.Interval() != 250*time.Millisecond || got.Overload() != 1500*time.Millisecond {
		t.Fatalf("durations: %v %v", got.Interval(), got.Overload())
	}
}

func TestLoad_OverridesKeepOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physics.yaml")
	if err := os.WriteFile(path, []byte("tick_interval_ms: 100\nauto_restart: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickIntervalMs != 100 || !got.AutoRestart {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.OverloadMs != 1500 || got.FlushThreshold != 512 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physics.yaml")
	if err := os.WriteFile(path, []byte("overload_ms: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("negative overload accepted")
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	got, err := Load("../../../configs/physics.yaml")
	if err != nil {
		t.Fatalf("load physics.yaml: %v", err)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
