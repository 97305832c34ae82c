package behaviour

import (
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

const tntFuse = 5

// SmallTnt explodes after a short fuse under the advanced modes and burns
// out harmlessly otherwise.
func SmallTnt(s *level.Sim, c *level.Check) {
	if !s.Mode().Advanced() {
		s.AddUpdate(c.Index, block.Air, false, level.NoPayload())
		c.Expire()
		return
	}
	if s.Mode() != level.ModeInstant && c.Time < tntFuse {
		c.Time++
		return
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				n, ok := s.Neighbour(c.Index, dx, dy, dz)
				if !ok || !blastable(s.Block(n)) {
					continue
				}
				s.AddUpdate(n, block.TntExplosion, false, level.NoPayload())
			}
		}
	}
	c.Expire()
}

func blastable(t block.Type) bool {
	switch t {
	case block.Bedrock, block.Obsidian:
		return false
	}
	return !block.IsDoor(t) && !block.IsMessage(t) && !block.IsPortal(t)
}

// TntExplosion clears itself at a random pass.
func TntExplosion(s *level.Sim, c *level.Check) {
	if s.Rand().Intn(2) == 0 {
		c.Time++
		return
	}
	s.AddUpdate(c.Index, block.Air, false, level.NoPayload())
	c.Expire()
}

type floodKind int

const (
	floodFull floodKind = iota
	floodLayer
	floodDown
	floodUp
)

func (k floodKind) dirs() [][3]int {
	switch k {
	case floodLayer:
		return sides[:]
	case floodDown:
		return append(sides[:len(sides):len(sides)], [3]int{0, -1, 0})
	case floodUp:
		return append(sides[:len(sides):len(sides)], [3]int{0, 1, 0})
	default:
		return around[:]
	}
}

// flood turns touching liquid into the same flood block, then becomes plain
// air on the following pass.
func flood(kind floodKind) level.PhysicsFunc {
	dirs := kind.dirs()
	return func(s *level.Sim, c *level.Check) {
		if c.Time >= 1 {
			s.AddUpdate(c.Index, block.Air, false, level.NoPayload())
			c.Expire()
			return
		}
		t := s.Block(c.Index)
		eachNeighbour(s, c.Index, dirs, func(n int) {
			if block.IsLiquid(s.Block(n)) {
				s.AddUpdate(n, t, false, level.NoPayload())
			}
		})
		c.Time++
	}
}
