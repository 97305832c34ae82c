// Package behaviour holds the built-in block handlers. They are registered
// through the same builder API any other collaborator uses.
package behaviour

import (
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

// Register installs the built-in handlers on b.
func Register(b *level.RegistryBuilder) {
	b.RegisterPhysics(block.Sand, Falling, false)
	b.RegisterPhysics(block.Gravel, Falling, false)
	b.RegisterPhysics(block.Leaf, Leaf, false)
	b.RegisterPhysics(block.Air, Air, false)
	b.RegisterPhysics(block.Dirt, Dirt, false)
	b.RegisterPhysics(block.Tnt, SmallTnt, false)
	b.RegisterPhysics(block.TntExplosion, TntExplosion, false)
	b.RegisterPhysics(block.Sponge, Sponge, false)

	b.RegisterPhysics(block.Water, Liquid, false)
	b.RegisterPhysics(block.ActiveWater, Liquid, false)
	b.RegisterPhysics(block.Lava, Liquid, false)
	b.RegisterPhysics(block.ActiveLava, Liquid, false)

	b.RegisterPhysics(block.AirFlood, flood(floodFull), false)
	b.RegisterPhysics(block.AirFloodLayer, flood(floodLayer), false)
	b.RegisterPhysics(block.AirFloodDown, flood(floodDown), false)
	b.RegisterPhysics(block.AirFloodUp, flood(floodUp), false)

	b.RegisterPlacement(block.Dirt, PlaceDirt)

	b.RegisterFamily(level.FamilyDefault{
		Name:    "door",
		Members: block.IsDoor,
		Behaviour: level.Behaviour{
			Delete: OpenDoor,
		},
	})
	b.RegisterFamily(level.FamilyDefault{
		Name:    "door_air",
		Members: block.IsDoorAir,
		Behaviour: level.Behaviour{
			Delete:       KeepOpenDoor,
			Physics:      DoorAir(doorTimer),
			DoorsPhysics: DoorAir(doorTimer),
		},
	})
	b.RegisterFamily(level.FamilyDefault{
		Name:    "flower",
		Members: block.IsFlowerLike,
		Behaviour: level.Behaviour{
			Physics: FlowerLike,
		},
	})
	b.RegisterFamily(level.FamilyDefault{
		Name:    "message",
		Members: block.IsMessage,
		Behaviour: level.Behaviour{
			Walkthrough: ShowMessage,
			Delete:      ShowMessage,
		},
	})
	b.RegisterFamily(level.FamilyDefault{
		Name:    "portal",
		Members: block.IsPortal,
		Behaviour: level.Behaviour{
			Walkthrough: UsePortal,
			Delete:      UsePortal,
		},
	})
}

// Registry builds a registry holding only the built-in handlers.
func Registry() (*level.Registry, error) {
	b := level.NewRegistryBuilder()
	Register(b)
	return b.Build()
}

var sides = [...][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}}

var spread = [...][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}}

var around = [...][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {0, -1, 0}}

func eachNeighbour(s *level.Sim, idx int, dirs [][3]int, fn func(n int)) {
	for _, d := range dirs {
		if n, ok := s.Neighbour(idx, d[0], d[1], d[2]); ok {
			fn(n)
		}
	}
}
