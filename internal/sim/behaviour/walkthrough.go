package behaviour

import (
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

// ShowMessage sends the cell's message text to the actor.
func ShowMessage(s *level.Sim, a level.Actor, _ block.Type, idx int) bool {
	m, ok := s.Meta(idx)
	if !ok || m.Message == "" || a == nil {
		return false
	}
	a.SendMessage(m.Message)
	return true
}

// UsePortal teleports the actor to the cell's portal destination.
func UsePortal(s *level.Sim, a level.Actor, _ block.Type, idx int) bool {
	m, ok := s.Meta(idx)
	if !ok || m.Portal == nil || a == nil {
		return false
	}
	a.Teleport(*m.Portal)
	return true
}
