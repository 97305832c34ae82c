package level

import (
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu      sync.Mutex
	batches [][]BlockChange
}

func (r *recordSink) Flush(_ *Level, batch []BlockChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]BlockChange(nil), batch...))
}

func (r *recordSink) Batches() [][]BlockChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]BlockChange(nil), r.batches...)
}

type recordNotifier struct {
	mu    sync.Mutex
	warns []string
	logs  []string
}

func (n *recordNotifier) Warn(_ *Level, msg string) {
	n.mu.Lock()
	n.warns = append(n.warns, msg)
	n.mu.Unlock()
}

func (n *recordNotifier) Log(msg string) {
	n.mu.Lock()
	n.logs = append(n.logs, msg)
	n.mu.Unlock()
}

func (n *recordNotifier) Warns() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.warns...)
}

func (n *recordNotifier) Logs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.logs...)
}

func mustRegistry(t *testing.T, b *RegistryBuilder) *Registry {
	t.Helper()
	if b == nil {
		b = NewRegistryBuilder()
	}
	r, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return r
}

func newTestLevel(t *testing.T, cfg Config, reg *Registry, opts ...Option) *Level {
	t.Helper()
	if cfg.Width == 0 {
		cfg.Width, cfg.Height, cfg.Length = 8, 8, 8
	}
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	l, err := New(cfg, reg, opts...)
	if err != nil {
		t.Fatalf("new level: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

// countdown keeps a check alive for n passes, then expires it.
func countdown(n uint8) PhysicsFunc {
	return func(s *Sim, c *Check) {
		c.Time++
		if c.Time >= n {
			c.Expire()
		}
	}
}

type recordEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordEvents) WriteEvent(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recordEvents) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
