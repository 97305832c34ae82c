package level

import (
	"sync/atomic"
	"time"
)

type Decision int

const (
	DecisionContinue Decision = iota
	DecisionWarn
	DecisionStop
)

func (d Decision) String() string {
	switch d {
	case DecisionWarn:
		return "warn"
	case DecisionStop:
		return "stop"
	default:
		return ""
	}
}

// OverloadMonitor classifies the time left after a pass and tracks the
// resulting state. A notification is due only when the state changes.
type OverloadMonitor struct {
	threshold time.Duration
	state     atomic.Int32

	warnings atomic.Uint64
	stops    atomic.Uint64
}

func NewOverloadMonitor(threshold time.Duration) *OverloadMonitor {
	return &OverloadMonitor{threshold: threshold}
}

// Observe takes wait = interval - elapsed. Below -threshold the level must
// stop; below -0.75*threshold it is warned. notify is true only on a state
// transition into Warning or Stopped.
func (m *OverloadMonitor) Observe(wait time.Duration) (d Decision, notify bool) {
	var next PhysicsState
	switch {
	case wait < -m.threshold:
		d, next = DecisionStop, StateStopped
	case wait < -m.threshold*3/4:
		d, next = DecisionWarn, StateWarning
	default:
		d, next = DecisionContinue, StateNormal
	}
	prev := PhysicsState(m.state.Swap(int32(next)))
	if prev == next || next == StateNormal {
		return d, false
	}
	if next == StateWarning {
		m.warnings.Add(1)
	} else {
		m.stops.Add(1)
	}
	return d, true
}

func (m *OverloadMonitor) State() PhysicsState { return PhysicsState(m.state.Load()) }

// Enabled reports whether the monitor has not shut the level down.
func (m *OverloadMonitor) Enabled() bool { return m.State() != StateStopped }

func (m *OverloadMonitor) Reset() { m.state.Store(int32(StateNormal)) }

func (m *OverloadMonitor) Counts() (warnings, stops uint64) {
	return m.warnings.Load(), m.stops.Load()
}
