package main

import (
	"path/filepath"
	"sync"

	"voxelforge.dev/internal/persistence/indexdb"
	persistlog "voxelforge.dev/internal/persistence/log"
	"voxelforge.dev/internal/sim/level"
)

// levelLogs keeps one tick log and one event log per level directory,
// opened on first write.
type levelLogs struct {
	baseDir string

	mu     sync.Mutex
	ticks  map[string]*persistlog.TickLogger
	events map[string]*persistlog.EventLogger
}

func newLevelLogs(baseDir string) *levelLogs {
	return &levelLogs{
		baseDir: baseDir,
		ticks:   map[string]*persistlog.TickLogger{},
		events:  map[string]*persistlog.EventLogger{},
	}
}

func (l *levelLogs) WriteTick(st level.TickStats) error {
	l.mu.Lock()
	tl, ok := l.ticks[st.Level]
	if !ok {
		tl = persistlog.NewTickLogger(filepath.Join(l.baseDir, st.Level))
		l.ticks[st.Level] = tl
	}
	l.mu.Unlock()
	return tl.WriteTick(st)
}

func (l *levelLogs) WriteEvent(e level.Event) error {
	l.mu.Lock()
	el, ok := l.events[e.Level]
	if !ok {
		el = persistlog.NewEventLogger(filepath.Join(l.baseDir, e.Level))
		l.events[e.Level] = el
	}
	l.mu.Unlock()
	return el.WriteEvent(e)
}

func (l *levelLogs) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for _, tl := range l.ticks {
		if err := tl.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, el := range l.events {
		if err := el.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type multiTickLogger struct {
	a level.TickLogger
	b level.TickLogger
}

func (m multiTickLogger) WriteTick(entry level.TickStats) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiEventLogger struct {
	a level.EventLogger
	b level.EventLogger
}

func (m multiEventLogger) WriteEvent(entry level.Event) error {
	if m.a != nil {
		_ = m.a.WriteEvent(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(entry)
	}
	return nil
}

func fanoutTicks(files *levelLogs, idx *indexdb.SQLiteIndex) level.TickLogger {
	var m multiTickLogger
	if files != nil {
		m.a = files
	}
	if idx != nil {
		m.b = idx
	}
	if m.a == nil && m.b == nil {
		return nil
	}
	return m
}

func fanoutEvents(files *levelLogs, idx *indexdb.SQLiteIndex) level.EventLogger {
	var m multiEventLogger
	if files != nil {
		m.a = files
	}
	if idx != nil {
		m.b = idx
	}
	if m.a == nil && m.b == nil {
		return nil
	}
	return m
}
