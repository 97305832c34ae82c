package levels

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"voxelforge.dev/internal/sim/level"
	"voxelforge.dev/internal/sim/tuning"
)

var ErrLevelNotFound = errors.New("level not found")

// Manager owns every loaded level of the server.
type Manager struct {
	mu sync.RWMutex

	levels    map[string]*level.Level
	order     []string
	defaultID string

	closeOnce sync.Once
}

// NewManager creates one level per spec, all sharing reg and opts.
func NewManager(cfg Config, t tuning.Tuning, reg *level.Registry, opts ...level.Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	m := &Manager{
		levels:    make(map[string]*level.Level, len(cfg.Levels)),
		defaultID: cfg.DefaultLevel,
	}
	for _, spec := range cfg.Levels {
		lc, err := spec.LevelConfig(t)
		if err != nil {
			m.Close()
			return nil, err
		}
		l, err := level.New(lc, reg, opts...)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("level %s: %w", spec.Name, err)
		}
		m.levels[spec.Name] = l
		m.order = append(m.order, spec.Name)
	}
	sort.Strings(m.order)
	return m, nil
}

func (m *Manager) Get(name string) (*level.Level, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.defaultID
	}
	l, ok := m.levels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, name)
	}
	return l, nil
}

func (m *Manager) Default() *level.Level {
	l, _ := m.Get("")
	return l
}

func (m *Manager) DefaultName() string { return m.defaultID }

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) Metrics() []level.Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]level.Metrics, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.levels[name].Metrics())
	}
	return out
}

// Close force-stops every level and waits for their loops to exit.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		var wg sync.WaitGroup
		for _, l := range m.levels {
			wg.Add(1)
			go func(l *level.Level) {
				defer wg.Done()
				l.Close()
			}(l)
		}
		wg.Wait()
	})
}
