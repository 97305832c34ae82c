package behaviour

import (
	"testing"

	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

type actor struct {
	msgs []string
	dest *level.Pos
}

func (a *actor) Name() string { return "a" }
func (a *actor) SendMessage(m string) { a.msgs = append(a.msgs, m) }
func (a *actor) Teleport(p level.Pos) { a.dest = &p }

func newLevel(t *testing.T, mode level.Mode, leafDecay bool) *level.Level {
	t.Helper()
	reg, err := Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	l, err := level.New(level.Config{
		Name: "b", Width: 10, Height: 10, Length: 10,
		Mode: mode, LeafDecay: leafDecay, Seed: 7,
	}, reg)
	if err != nil {
		t.Fatalf("new level: %v", err)
	}
	l.SetEnabled(false)
	t.Cleanup(l.Close)
	return l
}

func set(t *testing.T, l *level.Level, p level.Pos, b block.Type) {
	t.Helper()
	if err := l.SetBlock(p, b); err != nil {
		t.Fatalf("set %v: %v", p, err)
	}
}

func TestSandFallsToFloor(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	top := level.Pos{X: 2, Y: 5, Z: 2}
	set(t, l, level.Pos{X: 2, Y: 0, Z: 2}, block.Stone)
	set(t, l, top, block.Sand)
	l.RequestCheck(top, false, level.NoPayload())

	l.Step()
	if got := l.Block(top); got != block.Air {
		t.Fatalf("origin: got %s want air", got)
	}
	if got := l.Block(level.Pos{X: 2, Y: 1, Z: 2}); got != block.Sand {
		t.Fatalf("floor: got %s want sand", got)
	}
}

func TestDoorOpensNeighboursAndCloses(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	a := &actor{}
	p := level.Pos{X: 3, Y: 3, Z: 3}
	q := p.Add(1, 0, 0)
	set(t, l, p, block.DoorTree)
	set(t, l, q, block.DoorTree)

	if ok, err := l.Delete(a, p); !ok || err != nil {
		t.Fatalf("delete door: %v %v", ok, err)
	}
	if got := l.Block(p); got != block.DoorTreeAir {
		t.Fatalf("opened: got %s", got)
	}
	if ok, _ := l.Delete(a, p); !ok || l.Block(p) != block.DoorTreeAir {
		t.Fatalf("open door was deleted")
	}

	l.Step()
	if got := l.Block(q); got != block.DoorTreeAir {
		t.Fatalf("neighbour: got %s want door air", got)
	}
	for i := 0; i < doorTimer; i++ {
		l.Step()
	}
	if l.Block(p) != block.DoorTree || l.Block(q) != block.DoorTree {
		t.Fatalf("doors not closed: %s %s", l.Block(p), l.Block(q))
	}
}

func TestDoorsOnlyModeRunsDoorTimers(t *testing.T) {
	l := newLevel(t, level.ModeDoorsOnly, false)
	p := level.Pos{X: 1, Y: 1, Z: 1}
	s := level.Pos{X: 5, Y: 5, Z: 5}
	set(t, l, p, block.DoorGlass)
	set(t, l, s, block.Sand)
	l.RequestCheck(s, false, level.NoPayload())
	if _, err := l.Delete(&actor{}, p); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for i := 0; i <= doorTimer; i++ {
		l.Step()
	}
	if got := l.Block(p); got != block.DoorGlass {
		t.Fatalf("door: got %s", got)
	}
	if got := l.Block(s); got != block.Sand {
		t.Fatalf("sand moved under doors-only: %s", got)
	}
}

func TestLeafDecay(t *testing.T) {
	l := newLevel(t, level.ModeBasic, true)
	trunk := level.Pos{X: 1, Y: 1, Z: 1}
	held := trunk.Add(0, 1, 0)
	loose := level.Pos{X: 8, Y: 8, Z: 8}
	set(t, l, trunk, block.Trunk)
	set(t, l, held, block.Leaf)
	set(t, l, loose, block.Leaf)
	l.RequestCheck(held, false, level.NoPayload())
	l.RequestCheck(loose, false, level.NoPayload())

	for i := 0; i < 2000 && l.PendingChecks() > 0; i++ {
		l.Step()
	}
	if got := l.Block(loose); got != block.Air {
		t.Fatalf("loose leaf: got %s want air", got)
	}
	if got := l.Block(held); got != block.Leaf {
		t.Fatalf("held leaf: got %s want leaf", got)
	}
}

func TestLeafWithoutDecayExpires(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	p := level.Pos{X: 4, Y: 4, Z: 4}
	set(t, l, p, block.Leaf)
	l.RequestCheck(p, false, level.NoPayload())
	l.Step()
	if l.HasCheck(p) || l.Block(p) != block.Leaf {
		t.Fatalf("leaf check kept or leaf removed")
	}
}

func TestWaterSpreadsAndHardensLava(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	w := level.Pos{X: 4, Y: 4, Z: 4}
	lava := w.Add(0, 0, 1)
	set(t, l, w, block.Water)
	set(t, l, lava, block.StillLava)
	l.RequestCheck(w, false, level.NoPayload())

	l.Step()
	if got := l.Block(w.Add(1, 0, 0)); got != block.Water {
		t.Fatalf("side: got %s want water", got)
	}
	if got := l.Block(w.Add(0, -1, 0)); got != block.Water {
		t.Fatalf("below: got %s want water", got)
	}
	if got := l.Block(w.Add(0, 1, 0)); got != block.Air {
		t.Fatalf("above: got %s want air", got)
	}
	if got := l.Block(lava); got != block.Stone {
		t.Fatalf("lava: got %s want stone", got)
	}
}

func TestSpongeBlocksWater(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	w := level.Pos{X: 4, Y: 4, Z: 4}
	set(t, l, w, block.Water)
	set(t, l, w.Add(3, 0, 0), block.Sponge)
	l.RequestCheck(w, false, level.NoPayload())
	l.Step()
	if got := l.Block(w.Add(1, 0, 0)); got != block.Air {
		t.Fatalf("water entered sponge range: %s", got)
	}
	if got := l.Block(w.Add(-1, 0, 0)); got != block.Water {
		t.Fatalf("water did not spread away from sponge: %s", got)
	}
}

func TestFlowerNeedsAdvancedMode(t *testing.T) {
	for _, tc := range []struct {
		mode level.Mode
		want block.Type
	}{
		{level.ModeBasic, block.Redflower},
		{level.ModeAdvanced, block.Air},
	} {
		l := newLevel(t, tc.mode, false)
		f := level.Pos{X: 2, Y: 2, Z: 2}
		set(t, l, f, block.Redflower)
		set(t, l, f.Add(1, 0, 0), block.StillWater)
		l.RequestCheck(f, false, level.NoPayload())
		l.Step()
		if got := l.Block(f); got != tc.want {
			t.Fatalf("mode %s: got %s want %s", tc.mode, got, tc.want)
		}
	}
}

func TestSmallTntExplodes(t *testing.T) {
	l := newLevel(t, level.ModeInstant, false)
	c := level.Pos{X: 5, Y: 5, Z: 5}
	set(t, l, c, block.Tnt)
	set(t, l, c.Add(1, 0, 0), block.Stone)
	set(t, l, c.Add(-1, 0, 0), block.Bedrock)
	l.RequestCheck(c, false, level.NoPayload())

	l.Step()
	if got := l.Block(c.Add(1, 0, 0)); got != block.TntExplosion {
		t.Fatalf("blast: got %s", got)
	}
	if got := l.Block(c.Add(-1, 0, 0)); got != block.Bedrock {
		t.Fatalf("bedrock: got %s", got)
	}
	for i := 0; i < 200 && l.PendingChecks() > 0; i++ {
		l.Step()
	}
	if got := l.Block(c); got != block.Air {
		t.Fatalf("centre after burn-out: got %s", got)
	}
}

func TestTntFizzlesInBasic(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	c := level.Pos{X: 5, Y: 5, Z: 5}
	set(t, l, c, block.Tnt)
	set(t, l, c.Add(1, 0, 0), block.Stone)
	l.RequestCheck(c, false, level.NoPayload())
	l.Step()
	if l.Block(c) != block.Air || l.Block(c.Add(1, 0, 0)) != block.Stone {
		t.Fatalf("basic tnt: %s %s", l.Block(c), l.Block(c.Add(1, 0, 0)))
	}
}

func TestAirFloodDrainsAndReverts(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	f := level.Pos{X: 3, Y: 3, Z: 3}
	w := f.Add(1, 0, 0)
	set(t, l, f, block.AirFlood)
	set(t, l, w, block.StillWater)
	l.RequestCheck(f, false, level.NoPayload())

	l.Step()
	if got := l.Block(w); got != block.AirFlood {
		t.Fatalf("water: got %s want air_flood", got)
	}
	l.ForceStop()
	if l.Block(f) != block.Air || l.Block(w) != block.Air {
		t.Fatalf("flood not reverted: %s %s", l.Block(f), l.Block(w))
	}
}

func TestDirtPlacement(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	a := &actor{}
	open := level.Pos{X: 1, Y: 1, Z: 1}
	covered := level.Pos{X: 2, Y: 1, Z: 2}
	set(t, l, covered.Add(0, 3, 0), block.Stone)

	if _, err := l.Place(a, block.Dirt, open); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := l.Place(a, block.Dirt, covered); err != nil {
		t.Fatalf("place: %v", err)
	}
	if got := l.Block(open); got != block.Grass {
		t.Fatalf("open: got %s want grass", got)
	}
	if got := l.Block(covered); got != block.Dirt {
		t.Fatalf("covered: got %s want dirt", got)
	}
}

func TestMessageAndPortalWalkthrough(t *testing.T) {
	l := newLevel(t, level.ModeBasic, false)
	a := &actor{}
	mp := level.Pos{X: 1, Y: 1, Z: 1}
	pp := level.Pos{X: 2, Y: 1, Z: 1}
	dest := level.Pos{X: 9, Y: 9, Z: 9}
	set(t, l, mp, block.MessageWhite)
	set(t, l, pp, block.PortalBlue)
	_ = l.SetMeta(mp, level.Meta{Message: "welcome"})
	_ = l.SetMeta(pp, level.Meta{Portal: &dest})

	if ok, _ := l.Walkthrough(a, mp); !ok || len(a.msgs) != 1 || a.msgs[0] != "welcome" {
		t.Fatalf("message: ok=%v msgs=%v", ok, a.msgs)
	}
	if ok, _ := l.Walkthrough(a, pp); !ok || a.dest == nil || *a.dest != dest {
		t.Fatalf("portal: ok=%v dest=%v", ok, a.dest)
	}
	if ok, _ := l.Walkthrough(a, level.Pos{X: 5, Y: 5, Z: 5}); ok {
		t.Fatalf("air walkthrough handled")
	}
}
