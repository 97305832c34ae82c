package level

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"voxelforge.dev/internal/sim/block"
)

// runPass drains the check queue, compacts it, then applies the update queue
// through a Batcher. It holds the level lock for the whole pass.
func (l *Level) runPass() TickStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	mode := l.Mode()
	stats := TickStats{
		Level: l.Name(),
		Tick:  l.stats.ticks.Add(1),
		Mode:  mode.String(),
	}
	if mode == ModeOff {
		return stats
	}
	doorsOnly := mode == ModeDoorsOnly
	sim := &Sim{l: l}

	// Checks queued by handlers during this pass are appended to items and
	// visited by the same loop.
	for i := 0; i < len(l.checks.items); i++ {
		c := l.checks.items[i]
		if c.Expired() {
			continue
		}
		stats.Checks++
		if !l.dispatchCheck(sim, c, doorsOnly) {
			stats.Failures++
		}
	}
	l.stats.checks.Add(uint64(stats.Checks))
	stats.ExpiredChecks = l.checks.removeExpired()

	if l.updates.Len() > 0 {
		b := newBatcher(l, l.cfg.FlushThreshold)
		for _, u := range l.updates.items {
			stats.Updates++
			if l.applyLocked(u, doorsOnly) {
				b.Add(u.Index, u.Type)
				stats.Applied++
			}
			b.CheckIfSend(false)
		}
		l.updates.clear()
		b.CheckIfSend(true)
		stats.Flushes = b.flushes
		l.stats.applied.Add(uint64(stats.Applied))
	}
	stats.PendingChecks = l.checks.Len()
	return stats
}

// applyLocked writes one update. A changed cell whose new type simulates,
// or whose update carries a payload, gets a fresh check.
func (l *Level) applyLocked(u Update, doorsOnly bool) bool {
	if !l.inBounds(u.Index) || l.blocks[u.Index] == u.Type {
		return false
	}
	l.blocks[u.Index] = u.Type
	if l.reg.physics(u.Type, doorsOnly) != nil || !u.Payload.IsZero() {
		l.checks.add(u.Index, false, u.Payload)
	}
	return true
}

// dispatchCheck runs the physics handler for one check. A handler panic
// expires the check and reports false.
func (l *Level) dispatchCheck(sim *Sim, c *Check, doorsOnly bool) (ok bool) {
	t := l.blocks[c.Index]
	defer func() {
		if r := recover(); r != nil {
			c.Expire()
			l.handlerFailed("physics", c.Index, t, r)
			ok = false
		}
	}()
	if l.hook != nil {
		l.hook(l, l.PosOf(c.Index), *c)
	}
	fn := l.reg.physics(t, doorsOnly)
	switch {
	case fn != nil:
		fn(sim, c)
	case c.Payload.IsWait():
	default:
		c.Expire()
	}
	return true
}

// handlerFailed counts, reports and logs one recovered handler panic. The
// caller holds mu.
func (l *Level) handlerFailed(kind string, idx int, t block.Type, r any) {
	l.stats.failures.Add(1)
	p := l.PosOf(idx)

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("level", l.Name())
		scope.SetTag("block", t.String())
		scope.SetTag("handler", kind)
		scope.SetExtra("pos", p.String())
	})
	hub.Recover(r)

	msg := fmt.Sprintf("%s handler %s at %v on %s: %v", kind, t, p, l.Name(), r)
	if l.failLog.Allow() {
		if n := l.stats.suppressed.Swap(0); n > 0 {
			msg = fmt.Sprintf("%s (%d similar suppressed)", msg, n)
		}
		l.notifier.Log(msg)
	} else {
		l.stats.suppressed.Add(1)
	}
	l.event(Event{Kind: EventHandlerFailure, Pos: &p, Block: t.String(), Message: kind + ": " + fmt.Sprint(r)})
}

// recoverForeground is deferred by the foreground dispatch methods. A
// panicking placement, deletion or walkthrough handler reports false and
// ErrHandlerFailed instead of unwinding into the caller.
func (l *Level) recoverForeground(kind string, idx int, t block.Type, handled *bool, err *error) {
	r := recover()
	if r == nil {
		return
	}
	l.handlerFailed(kind, idx, t, r)
	*handled = false
	*err = fmt.Errorf("%s %s at %v: %w: %v", kind, t, l.PosOf(idx), ErrHandlerFailed, r)
}

// observeOverload applies the overload policy to wait and reports whether
// the loop should reset its wait to the base interval.
func (l *Level) observeOverload(wait time.Duration, stats *TickStats) bool {
	d, notify := l.monitor.Observe(wait)
	stats.OverloadResult = d.String()
	switch d {
	case DecisionStop:
		if !l.cfg.AutoRestart {
			l.mode.Store(int32(ModeOff))
		}
		l.mu.Lock()
		l.clearAndRevertLocked()
		l.mu.Unlock()
		if notify {
			msg := "Physics shutdown on " + l.Name()
			l.notifier.Warn(l, msg)
			l.notifier.Log(msg)
			l.event(Event{Kind: EventShutdown, Tick: stats.Tick, Message: msg})
			l.emitState(StateStopped)
		}
		if l.cfg.AutoRestart {
			l.monitor.Reset()
		}
		return true
	case DecisionWarn:
		if notify {
			msg := "Physics warning on " + l.Name()
			l.notifier.Warn(l, msg)
			l.notifier.Log(msg)
			l.event(Event{Kind: EventWarning, Tick: stats.Tick, Message: msg})
			l.emitState(StateWarning)
		}
	}
	return false
}

func (l *Level) recordTick(stats TickStats) {
	l.stats.lastTickNS.Store(int64(stats.Duration))
	if l.tickLog != nil {
		_ = l.tickLog.WriteTick(stats)
	}
}

// clearAndRevertLocked restores every cell with a pending check to its
// stable type, honours RevertTo payloads, and empties both queues. Reverted
// cells go out as one batch.
func (l *Level) clearAndRevertLocked() {
	var batch []BlockChange
	for _, c := range l.checks.items {
		changed, err := l.revertLocked(c)
		if err != nil {
			l.stats.revertFailures.Add(1)
			p := l.PosOf(c.Index)
			l.notifier.Log(fmt.Sprintf("revert at %v on %s: %v", p, l.Name(), err))
			l.event(Event{Kind: EventRevertFailure, Pos: &p, Message: err.Error()})
		}
		for _, idx := range changed {
			batch = append(batch, BlockChange{Index: idx, Pos: l.PosOf(idx), Type: l.blocks[idx]})
		}
	}
	l.checks.clear()
	l.updates.clear()
	if len(batch) > 0 && l.sink != nil {
		l.sink.Flush(l, batch)
	}
}

func (l *Level) revertLocked(c *Check) (changed []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("revert panic: %v", r)
		}
	}()
	if !l.inBounds(c.Index) {
		return nil, fmt.Errorf("index %d: %w", c.Index, ErrOutOfBounds)
	}
	cur := l.blocks[c.Index]
	if st, ok := block.StableOf(cur); ok {
		l.blocks[c.Index] = st
		changed = append(changed, c.Index)
	}
	if t, ok := c.Payload.RevertTarget(); ok {
		if !block.Defined(t) {
			return changed, fmt.Errorf("revert to %d: %w", t, ErrUnknownBlock)
		}
		if l.blocks[c.Index] != t {
			l.blocks[c.Index] = t
			if len(changed) == 0 {
				changed = append(changed, c.Index)
			}
		}
	}
	return changed, nil
}
