package level

import (
	"fmt"
	"math/rand"

	"voxelforge.dev/internal/sim/block"
)

// Sim is the view of a level handed to handlers. Its methods assume the
// level lock is already held, by a pass or by a dispatch method.
type Sim struct {
	l *Level
}

func (s *Sim) LevelName() string { return s.l.Name() }

func (s *Sim) Size() (w, h, length int) { return s.l.Size() }

func (s *Sim) Mode() Mode { return s.l.Mode() }

func (s *Sim) LeafDecay() bool { return s.l.cfg.LeafDecay }

// Rand is the level's seeded source. Only use it under the level lock.
func (s *Sim) Rand() *rand.Rand { return s.l.rand }

func (s *Sim) Index(p Pos) (int, bool) { return s.l.Index(p) }

func (s *Sim) PosOf(idx int) Pos { return s.l.PosOf(idx) }

// Neighbour returns the index offset from idx, or false at the grid edge.
func (s *Sim) Neighbour(idx, dx, dy, dz int) (int, bool) {
	return s.l.Index(s.l.PosOf(idx).Add(dx, dy, dz))
}

// Block returns the type at idx, or Air when idx is out of range.
func (s *Sim) Block(idx int) block.Type {
	if !s.l.inBounds(idx) {
		return block.Air
	}
	return s.l.blocks[idx]
}

// SetBlock writes one cell immediately and broadcasts it on its own.
func (s *Sim) SetBlock(idx int, t block.Type) bool {
	if !s.l.inBounds(idx) {
		return false
	}
	return s.l.writeLocked(idx, t, true)
}

func (s *Sim) AddCheck(idx int, override bool, p Payload) {
	s.l.addCheckLocked(idx, override, p)
}

func (s *Sim) AddUpdate(idx int, t block.Type, override bool, p Payload) bool {
	return s.l.addUpdateLocked(idx, t, override, p)
}

func (s *Sim) HasCheck(idx int) bool {
	return s.l.inBounds(idx) && s.l.checks.Has(idx)
}

func (s *Sim) Meta(idx int) (Meta, bool) {
	m, ok := s.l.meta[idx]
	return m, ok
}

// Place handles an actor placing t at p. A registered placement handler
// that reports true owns the placement; otherwise the block is written and
// a check is queued when t simulates.
func (l *Level) Place(a Actor, t block.Type, p Pos) (placed bool, err error) {
	idx, ok := l.Index(p)
	if !ok {
		return false, fmt.Errorf("place %v: %w", p, ErrOutOfBounds)
	}
	if !block.Defined(t) {
		return false, fmt.Errorf("place %d: %w", t, ErrUnknownBlock)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.recoverForeground("placement", idx, t, &placed, &err)
	sim := &Sim{l: l}
	if fn := l.reg.Lookup(t).Place; fn != nil && fn(sim, a, t, idx) {
		return true, nil
	}
	if !l.writeLocked(idx, t, true) {
		return false, nil
	}
	l.touchLocked(idx)
	return true, nil
}

// Delete handles an actor breaking the block at p. The default writes Air
// and re-checks the cell and its neighbours.
func (l *Level) Delete(a Actor, p Pos) (deleted bool, err error) {
	idx, ok := l.Index(p)
	if !ok {
		return false, fmt.Errorf("delete %v: %w", p, ErrOutOfBounds)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.blocks[idx]
	defer l.recoverForeground("deletion", idx, old, &deleted, &err)
	sim := &Sim{l: l}
	if fn := l.reg.Lookup(old).Delete; fn != nil {
		return fn(sim, a, old, idx), nil
	}
	if !l.writeLocked(idx, block.Air, true) {
		return false, nil
	}
	l.touchLocked(idx)
	return true, nil
}

// Walkthrough fires when an actor's body enters p.
func (l *Level) Walkthrough(a Actor, p Pos) (handled bool, err error) {
	idx, ok := l.Index(p)
	if !ok {
		return false, fmt.Errorf("walkthrough %v: %w", p, ErrOutOfBounds)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.blocks[idx]
	fn := l.reg.Lookup(t).Walkthrough
	if fn == nil {
		return false, nil
	}
	defer l.recoverForeground("walkthrough", idx, t, &handled, &err)
	return fn(&Sim{l: l}, a, t, idx), nil
}

// touchLocked queues a check for idx and its six neighbours.
func (l *Level) touchLocked(idx int) {
	l.addCheckLocked(idx, false, NoPayload())
	p := l.PosOf(idx)
	for _, d := range [...][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
		if n, ok := l.Index(p.Add(d[0], d[1], d[2])); ok {
			l.addCheckLocked(n, false, NoPayload())
		}
	}
}
