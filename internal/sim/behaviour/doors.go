package behaviour

import (
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

// doorTimer is how many passes a door stays open.
const doorTimer = 16

// OpenDoor replaces a closed door with its open form instead of deleting it.
func OpenDoor(s *level.Sim, _ level.Actor, old block.Type, idx int) bool {
	air, ok := block.DoorAir(old)
	if !ok {
		return false
	}
	s.AddUpdate(idx, air, true, level.NoPayload())
	return true
}

// KeepOpenDoor swallows deletion of a door that is already open.
func KeepOpenDoor(*level.Sim, level.Actor, block.Type, int) bool { return true }

// DoorAir returns the handler for an open door. On its first pass it opens
// touching doors of the same kind; after timer passes it closes again.
func DoorAir(timer uint8) level.PhysicsFunc {
	return func(s *level.Sim, c *level.Check) {
		t := s.Block(c.Index)
		closed, ok := block.StableOf(t)
		if !ok {
			c.Expire()
			return
		}
		if c.Time == 0 {
			eachNeighbour(s, c.Index, around[:], func(n int) {
				if s.Block(n) == closed {
					s.AddUpdate(n, t, true, level.NoPayload())
				}
			})
		}
		if c.Time < timer {
			c.Time++
			return
		}
		s.AddUpdate(c.Index, closed, false, level.NoPayload())
		c.Expire()
	}
}
