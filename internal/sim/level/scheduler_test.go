package level

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxelforge.dev/internal/sim/block"
)

func TestStartIsIdempotentUnderConcurrentRequests(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(*Sim, *Check) {}, false)
	l := newTestLevel(t, Config{Mode: ModeBasic, Interval: 50 * time.Millisecond}, mustRegistry(t, b))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.RequestCheck(Pos{X: i % 8, Y: i / 8, Z: 0}, false, NoPayload())
		}(i)
	}
	wg.Wait()

	if !l.Scheduler().Running() {
		t.Fatalf("loop not running after requests")
	}
	if got := l.Scheduler().Spawned(); got != 1 {
		t.Fatalf("spawned: got %d want 1", got)
	}
	if l.Scheduler().Start() {
		t.Fatalf("Start spawned a second loop")
	}
}

func TestModeOffQueuesWithoutStarting(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, countdown(1), false)
	l := newTestLevel(t, Config{Mode: ModeOff, Interval: 5 * time.Millisecond}, mustRegistry(t, b))
	p := Pos{X: 1, Y: 1, Z: 1}
	if err := l.SetBlock(p, block.Stone); err != nil {
		t.Fatalf("set block: %v", err)
	}

	l.RequestCheck(p, false, NoPayload())
	if l.Scheduler().Running() {
		t.Fatalf("loop started while mode is off")
	}
	if got := l.PendingChecks(); got != 1 {
		t.Fatalf("pending: got %d want 1", got)
	}

	if err := l.SetMode(ModeBasic); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if got := l.Scheduler().Spawned(); got != 1 {
		t.Fatalf("spawned after leaving off: got %d want 1", got)
	}
	waitFor(t, time.Second, func() bool { return l.PendingChecks() == 0 })
}

func TestEnteringOffPreservesQueues(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(*Sim, *Check) {}, false)
	l := newTestLevel(t, Config{Mode: ModeBasic, Interval: 5 * time.Millisecond}, mustRegistry(t, b))
	p := Pos{X: 2, Y: 2, Z: 2}
	_ = l.SetBlock(p, block.Stone)
	l.RequestCheck(p, false, NoPayload())

	if err := l.SetMode(ModeOff); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := l.PendingChecks(); got != 1 {
		t.Fatalf("pending after off: got %d want 1", got)
	}
	if !l.HasCheck(p) {
		t.Fatalf("check lost when entering off")
	}
}

func TestLoopExitsWhenOffAndIdle(t *testing.T) {
	l := newTestLevel(t, Config{Mode: ModeBasic, Interval: 5 * time.Millisecond}, mustRegistry(t, nil))
	l.RequestCheck(Pos{}, false, NoPayload())
	if !l.Scheduler().Running() {
		t.Fatalf("loop not started")
	}
	l.ForceStop()
	waitFor(t, time.Second, func() bool { return !l.Scheduler().Running() })

	if err := l.SetMode(ModeBasic); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	l.RequestCheck(Pos{}, false, NoPayload())
	if got := l.Scheduler().Spawned(); got != 2 {
		t.Fatalf("spawned after restart: got %d want 2", got)
	}
}

func TestDisabledSchedulerFinishesAndRestarts(t *testing.T) {
	var calls atomic.Int32
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(*Sim, *Check) { calls.Add(1) }, false)
	l := newTestLevel(t, Config{Mode: ModeBasic, Interval: 5 * time.Millisecond}, mustRegistry(t, b))
	p := Pos{X: 3}
	_ = l.SetBlock(p, block.Stone)
	l.RequestCheck(p, false, NoPayload())
	waitFor(t, time.Second, func() bool { return calls.Load() > 0 })

	l.SetEnabled(false)
	waitFor(t, time.Second, func() bool { return !l.Scheduler().Running() })
	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != n {
		t.Fatalf("handler ran while disabled: %d -> %d", n, got)
	}

	l.SetEnabled(true)
	waitFor(t, time.Second, func() bool { return calls.Load() > n })
}

func TestHardOverloadStopsAndReverts(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(*Sim, *Check) { time.Sleep(40 * time.Millisecond) }, false)
	notes := &recordNotifier{}
	l := newTestLevel(t, Config{
		Mode:     ModeBasic,
		Interval: 10 * time.Millisecond,
		Overload: 20 * time.Millisecond,
	}, mustRegistry(t, b), WithNotifier(notes))

	var mu sync.Mutex
	var states []PhysicsState
	l.OnStateChange(func(_ *Level, st PhysicsState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	stone := Pos{X: 1}
	door := Pos{X: 2}
	_ = l.SetBlock(stone, block.Stone)
	_ = l.SetBlock(door, block.DoorTreeAir)
	l.RequestCheck(door, false, WaitPayload())
	l.RequestCheck(stone, false, NoPayload())

	waitFor(t, 2*time.Second, func() bool { return !l.Scheduler().Running() })

	if got := l.Mode(); got != ModeOff {
		t.Fatalf("mode: got %s want off", got)
	}
	if got := l.PendingChecks(); got != 0 {
		t.Fatalf("pending checks: got %d want 0", got)
	}
	if got := l.Block(door); got != block.DoorTree {
		t.Fatalf("door: got %s want %s", got, block.DoorTree)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || states[0] != StateStopped {
		t.Fatalf("states: got %v want [stopped]", states)
	}
	if got := l.Metrics().Shutdowns; got != 1 {
		t.Fatalf("shutdowns: got %d want 1", got)
	}
}

func TestHardOverloadWithAutoRestartKeepsRunning(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	var fast atomic.Int32
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(_ *Sim, c *Check) {
		if slow.Load() {
			time.Sleep(40 * time.Millisecond)
			return
		}
		fast.Add(1)
		c.Expire()
	}, false)
	notes := &recordNotifier{}
	l := newTestLevel(t, Config{
		Mode:        ModeBasic,
		Interval:    10 * time.Millisecond,
		Overload:    20 * time.Millisecond,
		AutoRestart: true,
	}, mustRegistry(t, b), WithNotifier(notes))

	stone := Pos{X: 1}
	door := Pos{X: 2}
	_ = l.SetBlock(stone, block.Stone)
	_ = l.SetBlock(door, block.DoorTreeAir)
	l.RequestCheck(door, false, WaitPayload())
	l.RequestCheck(stone, false, NoPayload())

	waitFor(t, 2*time.Second, func() bool {
		return l.Metrics().Shutdowns == 1 && l.PendingChecks() == 0 && l.Monitor().State() == StateNormal
	})
	if got := l.Mode(); got != ModeBasic {
		t.Fatalf("mode: got %s want basic", got)
	}
	if got := l.Block(door); got != block.DoorTree {
		t.Fatalf("door: got %s want %s", got, block.DoorTree)
	}
	if !l.Scheduler().Running() {
		t.Fatalf("loop exited after auto restart")
	}
	if got := len(notes.Warns()); got != 1 {
		t.Fatalf("warns: got %d want 1", got)
	}

	slow.Store(false)
	l.RequestCheck(stone, false, NoPayload())
	waitFor(t, time.Second, func() bool { return fast.Load() == 1 })
	if got := l.Scheduler().Spawned(); got != 1 {
		t.Fatalf("spawned: got %d want 1", got)
	}
}

func TestSoftOverloadWarnsOnceAndContinues(t *testing.T) {
	var calls atomic.Int32
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(_ *Sim, c *Check) {
		n := calls.Add(1)
		switch {
		case n <= 2:
			// Past three quarters of the budget, short of all of it.
			time.Sleep(330 * time.Millisecond)
		case n >= 4:
			c.Expire()
		}
	}, false)
	notes := &recordNotifier{}
	l := newTestLevel(t, Config{
		Mode:     ModeBasic,
		Interval: 5 * time.Millisecond,
		Overload: 400 * time.Millisecond,
	}, mustRegistry(t, b), WithNotifier(notes))

	var mu sync.Mutex
	var states []PhysicsState
	l.OnStateChange(func(_ *Level, st PhysicsState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	p := Pos{X: 3}
	_ = l.SetBlock(p, block.Stone)
	l.RequestCheck(p, false, NoPayload())
	waitFor(t, 5*time.Second, func() bool { return calls.Load() >= 4 && l.PendingChecks() == 0 })

	if got := l.Mode(); got != ModeBasic {
		t.Fatalf("mode: got %s want basic", got)
	}
	if got := len(notes.Warns()); got != 1 {
		t.Fatalf("warns over two slow ticks: got %d want 1", got)
	}
	warnings, stops := l.Monitor().Counts()
	if warnings != 1 || stops != 0 {
		t.Fatalf("monitor counts: warnings %d stops %d", warnings, stops)
	}
	if got := l.Monitor().State(); got != StateNormal {
		t.Fatalf("state after fast ticks: got %s want normal", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || states[0] != StateWarning {
		t.Fatalf("states: got %v want [warning]", states)
	}
}

func TestCloseWaitsForLoop(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Stone, func(*Sim, *Check) {}, false)
	l, err := New(Config{Name: "c", Width: 4, Height: 4, Length: 4, Mode: ModeBasic, Interval: time.Hour}, mustRegistry(t, b))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = l.SetBlock(Pos{}, block.Stone)
	l.RequestCheck(Pos{}, false, NoPayload())

	done := make(chan struct{})
	go func() {
		l.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Close did not return")
	}
	if l.Scheduler().Running() {
		t.Fatalf("loop still running after Close")
	}
}
