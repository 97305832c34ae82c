package level

import (
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"

	"voxelforge.dev/internal/sim/block"
)

// Sentinel is the countdown value that marks a check for removal on the
// next compaction pass.
const Sentinel uint8 = 255

// Check asks for the cell at Index to be re-evaluated. Time is a countdown
// owned by the cell's handler.
type Check struct {
	Index   int
	Time    uint8
	Payload Payload
}

func (c *Check) Expire() { c.Time = Sentinel }

func (c *Check) Expired() bool { return c.Time == Sentinel }

// Update is a block change waiting to be applied at the end of a tick.
type Update struct {
	Index   int
	Type    block.Type
	Payload Payload
}

// CheckSet holds at most one check per cell. The bit for a cell is set iff
// a check for that cell is in items.
type CheckSet struct {
	items  []*Check
	exists *bitset.BitSet
	n      atomic.Int64
}

func newCheckSet(volume int) *CheckSet {
	return &CheckSet{exists: bitset.New(uint(volume))}
}

// Len is safe to call without holding the level lock.
func (s *CheckSet) Len() int { return int(s.n.Load()) }

func (s *CheckSet) Has(idx int) bool { return s.exists.Test(uint(idx)) }

// add appends a check for idx if none exists. An existing check has its
// payload replaced when override is set; otherwise the request is dropped.
func (s *CheckSet) add(idx int, override bool, p Payload) bool {
	if !s.exists.Test(uint(idx)) {
		s.items = append(s.items, &Check{Index: idx, Payload: p})
		s.exists.Set(uint(idx))
		s.n.Store(int64(len(s.items)))
		return true
	}
	if override {
		if c := s.find(idx); c != nil {
			c.Payload = p
		}
	}
	return false
}

func (s *CheckSet) find(idx int) *Check {
	for _, c := range s.items {
		if c.Index == idx {
			return c
		}
	}
	return nil
}

// removeExpired drops every check at the sentinel and compacts the rest in
// place, preserving their relative order.
func (s *CheckSet) removeExpired() int {
	j := 0
	for _, c := range s.items {
		if c.Expired() {
			s.exists.Clear(uint(c.Index))
			continue
		}
		s.items[j] = c
		j++
	}
	removed := len(s.items) - j
	clear(s.items[j:])
	s.items = s.items[:j]
	s.n.Store(int64(j))
	return removed
}

func (s *CheckSet) clear() {
	clear(s.items)
	s.items = s.items[:0]
	s.exists.ClearAll()
	s.n.Store(0)
}

// UpdateSet holds at most one update per cell, with the falling-block
// exception handled in add.
type UpdateSet struct {
	items  []Update
	exists *bitset.BitSet
	n      atomic.Int64
}

func newUpdateSet(volume int) *UpdateSet {
	return &UpdateSet{exists: bitset.New(uint(volume))}
}

func (s *UpdateSet) Len() int { return int(s.n.Load()) }

func (s *UpdateSet) Has(idx int) bool { return s.exists.Test(uint(idx)) }

// add queues an update. A second request for a queued cell is dropped unless
// the new type is a falling block, in which case the old entry is replaced.
func (s *UpdateSet) add(idx int, t block.Type, p Payload) bool {
	if !s.exists.Test(uint(idx)) {
		s.exists.Set(uint(idx))
	} else if block.IsFalling(t) {
		s.removeAt(idx)
	} else {
		return false
	}
	s.items = append(s.items, Update{Index: idx, Type: t, Payload: p})
	s.n.Store(int64(len(s.items)))
	return true
}

func (s *UpdateSet) removeAt(idx int) {
	j := 0
	for _, u := range s.items {
		if u.Index == idx {
			continue
		}
		s.items[j] = u
		j++
	}
	s.items = s.items[:j]
	s.n.Store(int64(j))
}

func (s *UpdateSet) clear() {
	s.items = s.items[:0]
	s.exists.ClearAll()
	s.n.Store(0)
}
