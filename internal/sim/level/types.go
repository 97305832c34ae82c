package level

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"voxelforge.dev/internal/sim/block"
)

var (
	ErrUnknownMode      = errors.New("unknown physics mode")
	ErrOutOfBounds      = errors.New("position out of bounds")
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrUnknownBlock     = errors.New("unknown block type")
	ErrHandlerFailed    = errors.New("block handler failed")
)

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Pos) Add(dx, dy, dz int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Mode is the simulation mode of a level. Any value other than ModeOff
// processes checks; ModeDoorsOnly dispatches through the reduced table.
type Mode int32

const (
	ModeOff Mode = iota
	ModeBasic
	ModeAdvanced
	ModeHardcore
	ModeInstant
	ModeDoorsOnly
)

var modeNames = [...]string{"off", "basic", "advanced", "hardcore", "instant", "doors"}

func (m Mode) String() string {
	if m.Valid() {
		return modeNames[m]
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

func (m Mode) Valid() bool { return m >= ModeOff && m <= ModeDoorsOnly }

// Advanced reports whether m is one of the advanced tiers.
func (m Mode) Advanced() bool { return m >= ModeAdvanced && m <= ModeInstant }

// ParseMode accepts a mode name or its numeric value.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if s == n {
			return Mode(i), nil
		}
	}
	if s == "doorsonly" || s == "doors_only" {
		return ModeDoorsOnly, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Mode(n).Valid() {
		return Mode(n), nil
	}
	return ModeOff, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// PhysicsState is the overload state reported to state listeners.
type PhysicsState int

const (
	StateNormal PhysicsState = iota
	StateWarning
	StateStopped
)

func (s PhysicsState) String() string {
	switch s {
	case StateWarning:
		return "warning"
	case StateStopped:
		return "stopped"
	default:
		return "normal"
	}
}

// Config describes one level. Zero durations and thresholds take defaults.
type Config struct {
	Name   string
	Width  int
	Height int
	Length int

	Mode           Mode
	Interval       time.Duration
	Overload       time.Duration
	AutoRestart    bool
	FlushThreshold int
	LeafDecay      bool
	Seed           int64

	FailureLogRate  float64
	FailureLogBurst int
}

const (
	DefaultInterval       = 250 * time.Millisecond
	DefaultOverload       = 1500 * time.Millisecond
	DefaultFlushThreshold = 512
)

func (c *Config) normalize() error {
	if c.Width <= 0 || c.Height <= 0 || c.Length <= 0 {
		return fmt.Errorf("level %q: bad size %dx%dx%d", c.Name, c.Width, c.Height, c.Length)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("level %q: %w: %d", c.Name, ErrUnknownMode, c.Mode)
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Overload <= 0 {
		c.Overload = DefaultOverload
	}
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = DefaultFlushThreshold
	}
	if c.FailureLogRate <= 0 {
		c.FailureLogRate = 5
	}
	if c.FailureLogBurst <= 0 {
		c.FailureLogBurst = 10
	}
	return nil
}

// BlockChange is one committed cell change as seen by observers.
type BlockChange struct {
	Index int
	Pos   Pos
	Type  block.Type
}

// Broadcaster receives the changes committed during one tick, in order.
type Broadcaster interface {
	Flush(l *Level, batch []BlockChange)
}

// Notifier is the chat/log surface. Return values are never consulted.
type Notifier interface {
	Warn(l *Level, msg string)
	Log(msg string)
}

// Actor is whoever triggers a placement, deletion, or walkthrough.
type Actor interface {
	Name() string
	SendMessage(msg string)
	Teleport(p Pos)
}

// TickStats summarises one simulation pass.
type TickStats struct {
	Level          string        `json:"level"`
	Tick           uint64        `json:"tick"`
	Mode           string        `json:"mode"`
	Checks         int           `json:"checks"`
	Updates        int           `json:"updates"`
	Applied        int           `json:"applied"`
	Failures       int           `json:"failures"`
	PendingChecks  int           `json:"pending_checks"`
	Duration       time.Duration `json:"duration_ns"`
	Flushes        int           `json:"flushes"`
	ExpiredChecks  int           `json:"expired_checks"`
	OverloadResult string        `json:"overload,omitempty"`
}

type TickLogger interface {
	WriteTick(TickStats) error
}

// Event is a notable engine occurrence: overload transitions, handler and
// revert failures, and mode changes.
type Event struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Kind    string    `json:"kind"`
	Tick    uint64    `json:"tick"`
	Pos     *Pos      `json:"pos,omitempty"`
	Block   string    `json:"block,omitempty"`
	Message string    `json:"message"`
}

const (
	EventWarning        = "physics_warning"
	EventShutdown       = "physics_shutdown"
	EventHandlerFailure = "handler_failure"
	EventRevertFailure  = "revert_failure"
	EventModeChange     = "mode_change"
)

type EventLogger interface {
	WriteEvent(Event) error
}

// LogNotifier writes both warnings and log lines to a standard logger.
type LogNotifier struct{ Logger *log.Logger }

func (n LogNotifier) Warn(l *Level, msg string) {
	if n.Logger != nil {
		n.Logger.Printf("[%s] %s", l.Name(), msg)
	}
}

func (n LogNotifier) Log(msg string) {
	if n.Logger != nil {
		n.Logger.Print(msg)
	}
}

type nopNotifier struct{}

func (nopNotifier) Warn(*Level, string) {}
func (nopNotifier) Log(string)          {}
