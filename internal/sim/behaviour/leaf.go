package behaviour

import (
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

const (
	leafDelay = 5
	leafReach = 4
)

// Leaf decays leaves that no trunk supports. A check counts up to leafDelay
// at random before the support search runs.
func Leaf(s *level.Sim, c *level.Check) {
	if s.Mode().Advanced() {
		eachNeighbour(s, c.Index, around[:], func(n int) {
			t := s.Block(n)
			if block.IsLiquid(t) || block.IsFalling(t) {
				s.AddCheck(n, false, level.NoPayload())
			}
		})
	}
	if !s.LeafDecay() {
		c.Expire()
		return
	}
	if c.Time < leafDelay {
		if s.Rand().Intn(10) == 0 {
			c.Time++
		}
		return
	}
	if !supported(s, c.Index) {
		s.AddUpdate(c.Index, block.Air, false, level.NoPayload())
	}
	c.Expire()
}

// supported reports whether idx is joined to a trunk through at most
// leafReach leaves, staying inside the cube of that radius around idx.
func supported(s *level.Sim, idx int) bool {
	origin := s.PosOf(idx)
	inside := func(n int) bool {
		p := s.PosOf(n)
		return abs(p.X-origin.X) <= leafReach && abs(p.Y-origin.Y) <= leafReach && abs(p.Z-origin.Z) <= leafReach
	}

	seen := make(map[int]bool)
	var frontier []int
	for dx := -leafReach; dx <= leafReach; dx++ {
		for dy := -leafReach; dy <= leafReach; dy++ {
			for dz := -leafReach; dz <= leafReach; dz++ {
				if n, ok := s.Neighbour(idx, dx, dy, dz); ok && s.Block(n) == block.Trunk {
					seen[n] = true
					frontier = append(frontier, n)
				}
			}
		}
	}
	for depth := 1; depth <= leafReach && len(frontier) > 0; depth++ {
		var next []int
		for _, f := range frontier {
			eachNeighbour(s, f, around[:], func(n int) {
				if seen[n] || !inside(n) || s.Block(n) != block.Leaf {
					return
				}
				seen[n] = true
				next = append(next, n)
			})
		}
		frontier = next
	}
	return seen[idx]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
