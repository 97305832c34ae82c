package behaviour

import (
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

// Falling drops sand and gravel to the lowest open cell below them.
func Falling(s *level.Sim, c *level.Check) {
	t := s.Block(c.Index)
	dst := c.Index
	for {
		n, ok := s.Neighbour(dst, 0, -1, 0)
		if !ok || !fallsThrough(s.Block(n)) {
			break
		}
		dst = n
	}
	if dst != c.Index {
		s.AddUpdate(c.Index, block.Air, false, level.NoPayload())
		s.AddUpdate(dst, t, false, level.NoPayload())
	}
	c.Expire()
}

func fallsThrough(t block.Type) bool {
	return t == block.Air || block.IsLiquid(t) || block.IsAirFlood(t) || t == block.Shrub
}

// Air wakes up neighbouring blocks that may now move into the gap.
func Air(s *level.Sim, c *level.Check) {
	eachNeighbour(s, c.Index, around[:], func(n int) {
		t := s.Block(n)
		if block.IsLiquid(t) || block.IsFalling(t) {
			s.AddCheck(n, false, level.NoPayload())
		}
	})
	c.Expire()
}

// Liquid spreads into open cells beside and below it. Water meeting lava
// turns the lava to stone, lava meeting water turns itself to stone.
// Lava spreads every third pass.
func Liquid(s *level.Sim, c *level.Check) {
	t := s.Block(c.Index)
	lava := block.IsLava(t)
	if lava && s.Mode() != level.ModeInstant && c.Time < 2 {
		c.Time++
		return
	}
	if !lava && spongeNear(s, c.Index) {
		c.Expire()
		return
	}
	eachNeighbour(s, c.Index, spread[:], func(n int) {
		other := s.Block(n)
		switch {
		case other == block.Air:
			if !lava && spongeNear(s, n) {
				return
			}
			s.AddUpdate(n, t, false, level.NoPayload())
		case !lava && block.IsLava(other):
			s.AddUpdate(n, block.Stone, false, level.NoPayload())
		case lava && block.IsLiquid(other) && !block.IsLava(other):
			s.AddUpdate(c.Index, block.Stone, false, level.NoPayload())
		}
	})
	c.Expire()
}

const spongeRadius = 2

func spongeNear(s *level.Sim, idx int) bool {
	for dx := -spongeRadius; dx <= spongeRadius; dx++ {
		for dy := -spongeRadius; dy <= spongeRadius; dy++ {
			for dz := -spongeRadius; dz <= spongeRadius; dz++ {
				if n, ok := s.Neighbour(idx, dx, dy, dz); ok && s.Block(n) == block.Sponge {
					return true
				}
			}
		}
	}
	return false
}

// Sponge clears water within its radius once placed.
func Sponge(s *level.Sim, c *level.Check) {
	for dx := -spongeRadius; dx <= spongeRadius; dx++ {
		for dy := -spongeRadius; dy <= spongeRadius; dy++ {
			for dz := -spongeRadius; dz <= spongeRadius; dz++ {
				n, ok := s.Neighbour(c.Index, dx, dy, dz)
				if !ok {
					continue
				}
				if t := s.Block(n); block.IsLiquid(t) && !block.IsLava(t) {
					s.AddUpdate(n, block.Air, false, level.NoPayload())
				}
			}
		}
	}
	c.Expire()
}

// FlowerLike removes plants and wood touching a liquid under the advanced
// modes.
func FlowerLike(s *level.Sim, c *level.Check) {
	if s.Mode().Advanced() {
		wet := false
		eachNeighbour(s, c.Index, around[:], func(n int) {
			if block.IsLiquid(s.Block(n)) {
				wet = true
			}
		})
		if wet {
			s.AddUpdate(c.Index, block.Air, false, level.NoPayload())
		}
	}
	c.Expire()
}

const grassDelay = 20

// Dirt turns to grass after a while when light reaches it.
func Dirt(s *level.Sim, c *level.Check) {
	if !skyAbove(s, c.Index) {
		c.Expire()
		return
	}
	if c.Time < grassDelay {
		c.Time++
		return
	}
	s.AddUpdate(c.Index, block.Grass, false, level.NoPayload())
	c.Expire()
}

// PlaceDirt places grass instead of dirt when nothing above blocks the light.
func PlaceDirt(s *level.Sim, _ level.Actor, _ block.Type, idx int) bool {
	if !skyAbove(s, idx) {
		return false
	}
	s.SetBlock(idx, block.Grass)
	return true
}

func skyAbove(s *level.Sim, idx int) bool {
	for n, ok := s.Neighbour(idx, 0, 1, 0); ok; n, ok = s.Neighbour(n, 0, 1, 0) {
		if !block.LightPasses(s.Block(n)) {
			return false
		}
	}
	return true
}
