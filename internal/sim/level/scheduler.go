package level

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler owns the background loop of one level. At most one loop
// goroutine exists at a time; it is created and retired only under mu.
type Scheduler struct {
	l *Level

	mu      sync.Mutex
	running atomic.Bool
	enabled atomic.Bool
	spawned atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newScheduler(l *Level) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{l: l, ctx: ctx, cancel: cancel}
	s.enabled.Store(true)
	return s
}

// Start spawns the loop unless it is already running, the scheduler is
// disabled or closed, the level is off, or no check is pending.
func (s *Scheduler) Start() bool {
	if s.running.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() || !s.enabled.Load() || s.ctx.Err() != nil {
		return false
	}
	if s.l.Mode() == ModeOff || s.l.checks.Len() == 0 {
		return false
	}
	s.running.Store(true)
	s.spawned.Add(1)
	s.wg.Add(1)
	go s.loop()
	return true
}

func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) Enabled() bool { return s.enabled.Load() }

// Spawned counts loop goroutines started over the scheduler's lifetime.
func (s *Scheduler) Spawned() uint64 { return s.spawned.Load() }

// SetEnabled flips the flag the loop checks between passes. A pass in
// flight always completes. Re-enabling restarts the loop if work is pending.
func (s *Scheduler) SetEnabled(on bool) {
	s.enabled.Store(on)
	if on {
		s.Start()
	}
}

func (s *Scheduler) Stop() { s.SetEnabled(false) }

// Close ends the loop for good and waits for it to return.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) stopping() bool {
	return !s.enabled.Load() || s.ctx.Err() != nil
}

func (s *Scheduler) idle() bool {
	return s.l.Mode() == ModeOff && s.l.checks.Len() == 0 && s.l.updates.Len() == 0
}

// retire re-checks the exit condition under mu so that a Start racing with
// the exit either sees running=true and the loop continues, or sees
// running=false and spawns a fresh loop.
func (s *Scheduler) retire(cond func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !cond() {
		return false
	}
	s.running.Store(false)
	return true
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	interval := s.l.cfg.Interval
	wait := interval
	for {
		if wait > 0 {
			select {
			case <-s.ctx.Done():
			case <-time.After(wait):
			}
		}
		if s.stopping() {
			if s.retire(s.stopping) {
				return
			}
			continue
		}

		if s.l.Mode() == ModeOff || s.l.checks.Len() == 0 {
			wait = interval
			if s.idle() && s.retire(s.idle) {
				return
			}
			continue
		}

		start := time.Now()
		stats := s.l.runPass()
		elapsed := time.Since(start)
		wait = interval - elapsed
		if s.l.observeOverload(wait, &stats) {
			wait = interval
		}
		stats.Duration = elapsed
		s.l.recordTick(stats)
	}
}
