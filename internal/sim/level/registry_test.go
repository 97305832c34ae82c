package level

import (
	"errors"
	"testing"
	"time"

	"voxelforge.dev/internal/sim/block"
)

func TestRegistrySpecificBeatsFamily(t *testing.T) {
	var hits []string
	specific := func(*Sim, *Check) { hits = append(hits, "specific") }
	family := func(*Sim, *Check) { hits = append(hits, "family") }
	later := func(*Sim, *Check) { hits = append(hits, "later") }

	b := NewRegistryBuilder()
	b.RegisterFamily(FamilyDefault{Name: "flower", Members: block.IsFlowerLike, Behaviour: Behaviour{Physics: family}})
	b.RegisterPhysics(block.Redflower, specific, false)
	b.RegisterFamily(FamilyDefault{Name: "flower-late", Members: block.IsFlowerLike, Behaviour: Behaviour{Physics: later}})
	r := mustRegistry(t, b)

	r.Lookup(block.Redflower).Physics(nil, nil)
	r.Lookup(block.Yellowflower).Physics(nil, nil)
	if len(hits) != 2 || hits[0] != "specific" || hits[1] != "family" {
		t.Fatalf("dispatch: got %v want [specific family]", hits)
	}
	if r.Lookup(block.Stone).Physics != nil {
		t.Fatalf("non-member got a family handler")
	}
}

func TestRegistryFamilyFillsOnlyEmptyCategories(t *testing.T) {
	place := func(*Sim, Actor, block.Type, int) bool { return true }
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.DoorTree, func(*Sim, *Check) {}, false)
	b.RegisterFamily(FamilyDefault{Name: "door", Members: block.IsDoor, Behaviour: Behaviour{
		Place:   place,
		Physics: func(*Sim, *Check) { t.Fatalf("family physics used") },
	}})
	r := mustRegistry(t, b)
	beh := r.Lookup(block.DoorTree)
	if beh.Place == nil {
		t.Fatalf("family placement not applied")
	}
	beh.Physics(nil, nil)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.Sand, func(*Sim, *Check) {}, false)
	b.RegisterPhysics(block.Sand, func(*Sim, *Check) {}, false)
	b.RegisterPlacement(block.Dirt, func(*Sim, Actor, block.Type, int) bool { return false })
	b.RegisterPlacement(block.Dirt, func(*Sim, Actor, block.Type, int) bool { return false })

	_, err := b.Build()
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Fatalf("build: got %v want ErrDuplicateHandler", err)
	}
}

func TestRegistryDoorsOnlyTable(t *testing.T) {
	b := NewRegistryBuilder()
	b.RegisterPhysics(block.DoorTreeAir, func(*Sim, *Check) {}, true)
	b.RegisterPhysics(block.Sand, func(*Sim, *Check) {}, false)
	r := mustRegistry(t, b)

	if r.physics(block.DoorTreeAir, true) == nil || r.physics(block.DoorTreeAir, false) == nil {
		t.Fatalf("doors handler missing from a table")
	}
	if r.physics(block.Sand, true) != nil {
		t.Fatalf("sand handler leaked into doors table")
	}
	if got := len(r.Mapped()); got != 2 {
		t.Fatalf("mapped: got %d want 2", got)
	}
}

func TestParsePayload(t *testing.T) {
	cases := []struct {
		in   string
		kind PayloadKind
		blk  block.Type
	}{
		{"", PayloadNone, 0},
		{"wait", PayloadWait, 0},
		{"revert 4", PayloadRevert, block.Cobblestone},
		{"wait revert 20", PayloadRevert, block.Glass},
		{"drop 3 dissipate 25", PayloadData, 0},
	}
	for _, tc := range cases {
		p, err := ParsePayload(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if p.Kind != tc.kind || p.Block != tc.blk {
			t.Fatalf("parse %q: got %+v want kind=%d block=%s", tc.in, p, tc.kind, tc.blk)
		}
	}
	for _, bad := range []string{"revert", "revert x", "revert 300"} {
		if _, err := ParsePayload(bad); err == nil {
			t.Fatalf("parse %q: want error", bad)
		}
	}
}

func TestOverloadMonitorTransitions(t *testing.T) {
	m := NewOverloadMonitor(100 * time.Millisecond)
	steps := []struct {
		wait   time.Duration
		d      Decision
		notify bool
		state  PhysicsState
	}{
		{10 * time.Millisecond, DecisionContinue, false, StateNormal},
		{-80 * time.Millisecond, DecisionWarn, true, StateWarning},
		{-90 * time.Millisecond, DecisionWarn, false, StateWarning},
		{-75 * time.Millisecond, DecisionContinue, false, StateNormal},
		{-101 * time.Millisecond, DecisionStop, true, StateStopped},
		{-200 * time.Millisecond, DecisionStop, false, StateStopped},
	}
	for i, s := range steps {
		d, notify := m.Observe(s.wait)
		if d != s.d || notify != s.notify || m.State() != s.state {
			t.Fatalf("step %d: got %v/%v/%v want %v/%v/%v", i, d, notify, m.State(), s.d, s.notify, s.state)
		}
	}
	if w, st := m.Counts(); w != 1 || st != 1 {
		t.Fatalf("counts: got %d/%d want 1/1", w, st)
	}
	if m.Enabled() {
		t.Fatalf("stopped monitor reports enabled")
	}
	m.Reset()
	if !m.Enabled() {
		t.Fatalf("reset monitor still stopped")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"off": ModeOff, "2": ModeAdvanced, "Doors": ModeDoorsOnly, "doors_only": ModeDoorsOnly} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("fast"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("ParseMode(fast): got %v", err)
	}
}
