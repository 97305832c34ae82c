package level

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"voxelforge.dev/internal/sim/block"
)

// StateFunc is called on every overload state transition.
type StateFunc func(l *Level, st PhysicsState)

// CheckHook is called for every check before it is dispatched.
type CheckHook func(l *Level, p Pos, c Check)

type Option func(*Level)

func WithBroadcaster(b Broadcaster) Option { return func(l *Level) { l.sink = b } }

func WithNotifier(n Notifier) Option {
	return func(l *Level) {
		if n != nil {
			l.notifier = n
		}
	}
}

func WithTickLogger(t TickLogger) Option { return func(l *Level) { l.tickLog = t } }

func WithEventLogger(e EventLogger) Option { return func(l *Level) { l.eventLog = e } }

// Meta is per-cell data read by the message and portal walkthrough handlers.
type Meta struct {
	Message string
	Portal  *Pos
}

type counters struct {
	ticks          atomic.Uint64
	checks         atomic.Uint64
	applied        atomic.Uint64
	failures       atomic.Uint64
	suppressed     atomic.Uint64
	revertFailures atomic.Uint64
	lastTickNS     atomic.Int64
}

// Level owns a block grid and everything that simulates it: both pending
// sets, the scheduler, and the overload monitor.
//
// The grid and the pending sets are guarded by mu. Foreground callers go
// through the exported methods, which take mu; handlers run inside a pass
// that already holds it and reach the level through *Sim.
type Level struct {
	cfg      Config
	reg      *Registry
	notifier Notifier
	sink     Broadcaster
	tickLog  TickLogger
	eventLog EventLogger

	mode atomic.Int32

	mu      sync.Mutex
	blocks  []block.Type
	checks  *CheckSet
	updates *UpdateSet
	meta    map[int]Meta
	rand    *rand.Rand
	hook    CheckHook

	sched   *Scheduler
	monitor *OverloadMonitor
	failLog *rate.Limiter

	stateMu sync.Mutex
	stateFn []StateFunc

	stats counters
}

func New(cfg Config, reg *Registry, opts ...Option) (*Level, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	volume := cfg.Width * cfg.Height * cfg.Length
	l := &Level{
		cfg:      cfg,
		reg:      reg,
		notifier: nopNotifier{},
		blocks:   make([]block.Type, volume),
		checks:   newCheckSet(volume),
		updates:  newUpdateSet(volume),
		meta:     make(map[int]Meta),
		rand:     rand.New(rand.NewSource(cfg.Seed)),
		monitor:  NewOverloadMonitor(cfg.Overload),
		failLog:  rate.NewLimiter(rate.Limit(cfg.FailureLogRate), cfg.FailureLogBurst),
	}
	l.mode.Store(int32(cfg.Mode))
	l.sched = newScheduler(l)
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func (l *Level) Name() string { return l.cfg.Name }

func (l *Level) Config() Config { return l.cfg }

func (l *Level) Size() (w, h, length int) { return l.cfg.Width, l.cfg.Height, l.cfg.Length }

func (l *Level) Volume() int { return len(l.blocks) }

func (l *Level) Registry() *Registry { return l.reg }

func (l *Level) Scheduler() *Scheduler { return l.sched }

func (l *Level) Monitor() *OverloadMonitor { return l.monitor }

func (l *Level) Mode() Mode { return Mode(l.mode.Load()) }

// Index converts a position to a grid index: x + w*(z + y*l).
func (l *Level) Index(p Pos) (int, bool) {
	if p.X < 0 || p.Y < 0 || p.Z < 0 || p.X >= l.cfg.Width || p.Y >= l.cfg.Height || p.Z >= l.cfg.Length {
		return -1, false
	}
	return p.X + l.cfg.Width*(p.Z+p.Y*l.cfg.Length), true
}

func (l *Level) PosOf(idx int) Pos {
	x := idx % l.cfg.Width
	y := (idx / l.cfg.Width) / l.cfg.Length
	z := (idx / l.cfg.Width) % l.cfg.Length
	return Pos{X: x, Y: y, Z: z}
}

func (l *Level) inBounds(idx int) bool { return idx >= 0 && idx < len(l.blocks) }

func (l *Level) OnStateChange(fn StateFunc) {
	l.stateMu.Lock()
	l.stateFn = append(l.stateFn, fn)
	l.stateMu.Unlock()
}

func (l *Level) SetCheckHook(h CheckHook) {
	l.mu.Lock()
	l.hook = h
	l.mu.Unlock()
}

// RequestCheck queues a re-evaluation of p. Out-of-bounds requests are
// ignored.
func (l *Level) RequestCheck(p Pos, override bool, payload Payload) {
	idx, ok := l.Index(p)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addCheckLocked(idx, override, payload)
}

// RequestUpdate queues a block change for the next pass and reports whether
// it was accepted. With override the cell is written at once and its check
// payload replaced.
func (l *Level) RequestUpdate(p Pos, t block.Type, override bool, payload Payload) bool {
	idx, ok := l.Index(p)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addUpdateLocked(idx, t, override, payload)
}

func (l *Level) addCheckLocked(idx int, override bool, p Payload) {
	if !l.inBounds(idx) {
		return
	}
	l.checks.add(idx, override, p)
	if l.Mode() != ModeOff {
		l.sched.Start()
	}
}

func (l *Level) addUpdateLocked(idx int, t block.Type, override bool, p Payload) bool {
	if !l.inBounds(idx) {
		return false
	}
	if override {
		l.addCheckLocked(idx, true, p)
		l.writeLocked(idx, t, true)
		return true
	}
	if !l.updates.add(idx, t, p) {
		return false
	}
	if l.Mode() != ModeOff {
		l.sched.Start()
	}
	return true
}

// writeLocked sets one cell and optionally broadcasts it on its own.
func (l *Level) writeLocked(idx int, t block.Type, broadcast bool) bool {
	if l.blocks[idx] == t {
		return false
	}
	l.blocks[idx] = t
	if broadcast && l.sink != nil {
		l.sink.Flush(l, []BlockChange{{Index: idx, Pos: l.PosOf(idx), Type: t}})
	}
	return true
}

func (l *Level) Block(p Pos) block.Type {
	idx, ok := l.Index(p)
	if !ok {
		return block.Air
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocks[idx]
}

// SetBlock writes one cell directly and broadcasts it. It does not queue a
// check; use Place for player-style placement.
func (l *Level) SetBlock(p Pos, t block.Type) error {
	idx, ok := l.Index(p)
	if !ok {
		return fmt.Errorf("set %v: %w", p, ErrOutOfBounds)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeLocked(idx, t, true)
	return nil
}

// Blocks returns a copy of the grid.
func (l *Level) Blocks() []block.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]block.Type, len(l.blocks))
	copy(out, l.blocks)
	return out
}

// Load replaces the grid. Pending work is discarded without reverting.
func (l *Level) Load(blocks []block.Type) error {
	if len(blocks) != len(l.blocks) {
		return fmt.Errorf("load %s: got %d cells want %d", l.Name(), len(blocks), len(l.blocks))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	copy(l.blocks, blocks)
	l.checks.clear()
	l.updates.clear()
	return nil
}

// Digest hashes the grid.
func (l *Level) Digest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return DigestOf(l.blocks)
}

// DigestOf hashes a grid the same way Digest does.
func DigestOf(blocks []block.Type) uint64 {
	if len(blocks) == 0 {
		return xxh3.Hash(nil)
	}
	return xxh3.Hash(unsafe.Slice((*byte)(unsafe.Pointer(&blocks[0])), len(blocks)))
}

// GridView is a copy of the grid taken between passes, with its digest and
// the number of passes run so far.
type GridView struct {
	Blocks []block.Type
	Digest uint64
	Tick   uint64
}

// View copies the grid, hashes it and reads the tick counter under one hold
// of the level lock.
func (l *Level) View() GridView {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]block.Type, len(l.blocks))
	copy(out, l.blocks)
	return GridView{
		Blocks: out,
		Digest: DigestOf(out),
		Tick:   l.stats.ticks.Load(),
	}
}

func (l *Level) PendingChecks() int { return l.checks.Len() }

func (l *Level) PendingUpdates() int { return l.updates.Len() }

// HasCheck reports whether a check for p is queued.
func (l *Level) HasCheck(p Pos) bool {
	idx, ok := l.Index(p)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checks.Has(idx)
}

// CheckPayload returns the payload of the check queued for p.
func (l *Level) CheckPayload(p Pos) (Payload, bool) {
	idx, ok := l.Index(p)
	if !ok {
		return Payload{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.checks.find(idx)
	if c == nil {
		return Payload{}, false
	}
	return c.Payload, true
}

func (l *Level) SetMeta(p Pos, m Meta) error {
	idx, ok := l.Index(p)
	if !ok {
		return fmt.Errorf("meta %v: %w", p, ErrOutOfBounds)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if m.Message == "" && m.Portal == nil {
		delete(l.meta, idx)
		return nil
	}
	l.meta[idx] = m
	return nil
}

// Meta returns the message and portal data stored for p.
func (l *Level) Meta(p Pos) (Meta, bool) {
	idx, ok := l.Index(p)
	if !ok {
		return Meta{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.meta[idx]
	return m, ok
}

// SetMode changes the simulation mode. Leaving Off re-queues every
// transient block left in the grid and starts the loop if work is pending.
func (l *Level) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMode, m)
	}
	prev := Mode(l.mode.Swap(int32(m)))
	if prev == m {
		return nil
	}
	l.event(Event{Kind: EventModeChange, Message: fmt.Sprintf("physics %s -> %s", prev, m)})
	if m == ModeOff {
		return nil
	}
	if prev == ModeOff {
		l.monitor.Reset()
		l.mu.Lock()
		for i, t := range l.blocks {
			if block.NeedsRestart(t) {
				l.checks.add(i, false, NoPayload())
			}
		}
		l.mu.Unlock()
	}
	l.sched.Start()
	return nil
}

// SetEnabled pauses or resumes the loop without touching the mode.
func (l *Level) SetEnabled(on bool) { l.sched.SetEnabled(on) }

// ForceStop turns the level off and reverts all pending work. It waits for
// any pass in flight.
func (l *Level) ForceStop() {
	l.mode.Store(int32(ModeOff))
	l.mu.Lock()
	l.clearAndRevertLocked()
	l.mu.Unlock()
}

// Step runs one pass on the caller's goroutine, bypassing the loop and the
// overload policy.
func (l *Level) Step() TickStats {
	start := time.Now()
	stats := l.runPass()
	stats.Duration = time.Since(start)
	l.recordTick(stats)
	return stats
}

// Close force-stops the level and waits for its loop to exit.
func (l *Level) Close() {
	l.ForceStop()
	l.sched.Close()
}

func (l *Level) emitState(st PhysicsState) {
	l.stateMu.Lock()
	fns := append([]StateFunc(nil), l.stateFn...)
	l.stateMu.Unlock()
	for _, fn := range fns {
		fn(l, st)
	}
}

func (l *Level) event(e Event) {
	if l.eventLog == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	e.Level = l.Name()
	if e.Tick == 0 {
		e.Tick = l.stats.ticks.Load()
	}
	_ = l.eventLog.WriteEvent(e)
}

// Metrics is a point-in-time view of a level for operators.
type Metrics struct {
	Name            string  `json:"name"`
	Mode            string  `json:"mode"`
	State           string  `json:"state"`
	Running         bool    `json:"running"`
	Enabled         bool    `json:"enabled"`
	Ticks           uint64  `json:"ticks"`
	PendingChecks   int     `json:"pending_checks"`
	PendingUpdates  int     `json:"pending_updates"`
	LastTickMS      float64 `json:"last_tick_ms"`
	ChecksProcessed uint64  `json:"checks_processed"`
	UpdatesApplied  uint64  `json:"updates_applied"`
	HandlerFailures uint64  `json:"handler_failures"`
	SuppressedLogs  uint64  `json:"suppressed_logs"`
	RevertFailures  uint64  `json:"revert_failures"`
	Warnings        uint64  `json:"warnings"`
	Shutdowns       uint64  `json:"shutdowns"`
}

func (l *Level) Metrics() Metrics {
	warnings, stops := l.monitor.Counts()
	return Metrics{
		Name:            l.Name(),
		Mode:            l.Mode().String(),
		State:           l.monitor.State().String(),
		Running:         l.sched.Running(),
		Enabled:         l.sched.Enabled(),
		Ticks:           l.stats.ticks.Load(),
		PendingChecks:   l.checks.Len(),
		PendingUpdates:  l.updates.Len(),
		LastTickMS:      float64(l.stats.lastTickNS.Load()) / 1e6,
		ChecksProcessed: l.stats.checks.Load(),
		UpdatesApplied:  l.stats.applied.Load(),
		HandlerFailures: l.stats.failures.Load(),
		SuppressedLogs:  l.stats.suppressed.Load(),
		RevertFailures:  l.stats.revertFailures.Load(),
		Warnings:        warnings,
		Shutdowns:       stops,
	}
}
