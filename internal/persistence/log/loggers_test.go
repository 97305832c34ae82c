package log

import (
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"voxelforge.dev/internal/sim/level"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	for i := uint64(1); i <= 3; i++ {
		if err := tl.WriteTick(level.TickStats{Level: "main", Tick: i, Checks: int(i)}); err != nil {
			t.Fatalf("write tick %d: %v", i, err)
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "ticks")
	if err != nil || len(files) != 1 {
		t.Fatalf("files: got %v %v", files, err)
	}
	var ticks []uint64
	err = ReadLines(files[0], func(line []byte) error {
		var st level.TickStats
		if err := json.Unmarshal(line, &st); err != nil {
			return err
		}
		ticks = append(ticks, st.Tick)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("ticks: got %v", ticks)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(level.Event{Kind: level.EventWarning}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(level.Event{Kind: level.EventShutdown}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("files: got %v want 2", got)
	}
	if w.Lines() != 2 {
		t.Fatalf("lines: got %d want 2", w.Lines())
	}
}

func TestEventLogger_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{level.EventWarning, level.EventShutdown} {
		el := NewEventLogger(dir)
		if err := el.WriteEvent(level.Event{Level: "main", Kind: kind}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := el.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, err := Files(dir, "events")
	if err != nil || len(files) == 0 {
		t.Fatalf("files: got %v %v", files, err)
	}
	var kinds []string
	for _, f := range files {
		err := ReadLines(f, func(line []byte) error {
			var e level.Event
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			kinds = append(kinds, e.Kind)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(kinds) != 2 || kinds[0] != level.EventWarning || kinds[1] != level.EventShutdown {
		t.Fatalf("kinds: got %v", kinds)
	}
}

func TestReadLines_StopsOnEOF(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	for i := 0; i < 5; i++ {
		_ = tl.WriteTick(level.TickStats{Tick: uint64(i)})
	}
	_ = tl.Close()
	files, _ := Files(dir, "ticks")
	n := 0
	err := ReadLines(files[0], func([]byte) error {
		n++
		if n == 2 {
			return io.EOF
		}
		return nil
	})
	if err != nil || n != 2 {
		t.Fatalf("early stop: n=%d err=%v", n, err)
	}
}
