package level

import (
	"errors"
	"fmt"

	"voxelforge.dev/internal/sim/block"
)

// PhysicsFunc re-evaluates the check's cell. It may mutate the check's
// countdown and payload, queue more work through s, and write single cells.
// It must not block.
type PhysicsFunc func(s *Sim, c *Check)

// PlaceFunc returns true when it fully handled the placement.
type PlaceFunc func(s *Sim, a Actor, t block.Type, idx int) bool

// DeleteFunc returns true when it fully handled the deletion of old.
type DeleteFunc func(s *Sim, a Actor, old block.Type, idx int) bool

// WalkthroughFunc returns true when it handled an actor entering the cell.
type WalkthroughFunc func(s *Sim, a Actor, t block.Type, idx int) bool

// Behaviour is the set of optional callbacks for one block type. A nil
// callback means default behaviour.
type Behaviour struct {
	Place        PlaceFunc
	Delete       DeleteFunc
	Walkthrough  WalkthroughFunc
	Physics      PhysicsFunc
	DoorsPhysics PhysicsFunc
}

func (b Behaviour) empty() bool {
	return b.Place == nil && b.Delete == nil && b.Walkthrough == nil && b.Physics == nil && b.DoorsPhysics == nil
}

// fill copies each callback of d into b where b has none.
func (b *Behaviour) fill(d Behaviour) {
	if b.Place == nil {
		b.Place = d.Place
	}
	if b.Delete == nil {
		b.Delete = d.Delete
	}
	if b.Walkthrough == nil {
		b.Walkthrough = d.Walkthrough
	}
	if b.Physics == nil {
		b.Physics = d.Physics
	}
	if b.DoorsPhysics == nil {
		b.DoorsPhysics = d.DoorsPhysics
	}
}

// Registry maps every block type to its behaviour. It is immutable once
// built and safe for concurrent reads.
type Registry struct {
	behaviours [block.Count]Behaviour
}

func (r *Registry) Lookup(t block.Type) Behaviour {
	if r == nil {
		return Behaviour{}
	}
	return r.behaviours[t]
}

func (r *Registry) physics(t block.Type, doorsOnly bool) PhysicsFunc {
	if r == nil {
		return nil
	}
	if doorsOnly {
		return r.behaviours[t].DoorsPhysics
	}
	return r.behaviours[t].Physics
}

// Mapped returns the block types with at least one callback.
func (r *Registry) Mapped() []block.Type {
	var out []block.Type
	for i := range r.behaviours {
		if !r.behaviours[i].empty() {
			out = append(out, block.Type(i))
		}
	}
	return out
}

// FamilyDefault supplies callbacks for every member of a block family that
// has no specific registration in that category.
type FamilyDefault struct {
	Name      string
	Members   block.Family
	Behaviour Behaviour
}

// RegistryBuilder collects registrations before any level is created.
//
// Precedence, applied by Build: a specific registration for a block type
// always wins; otherwise the first family default (in registration order)
// whose Members contains the type fills the slot, per category.
type RegistryBuilder struct {
	specific [block.Count]Behaviour
	families []FamilyDefault
	errs     []error
}

func NewRegistryBuilder() *RegistryBuilder { return &RegistryBuilder{} }

func (b *RegistryBuilder) conflict(t block.Type, category string) {
	b.errs = append(b.errs, fmt.Errorf("%s %s: %w", category, t, ErrDuplicateHandler))
}

func (b *RegistryBuilder) RegisterPlacement(t block.Type, fn PlaceFunc) {
	if b.specific[t].Place != nil {
		b.conflict(t, "placement")
		return
	}
	b.specific[t].Place = fn
}

func (b *RegistryBuilder) RegisterDeletion(t block.Type, fn DeleteFunc) {
	if b.specific[t].Delete != nil {
		b.conflict(t, "deletion")
		return
	}
	b.specific[t].Delete = fn
}

func (b *RegistryBuilder) RegisterWalkthrough(t block.Type, fn WalkthroughFunc) {
	if b.specific[t].Walkthrough != nil {
		b.conflict(t, "walkthrough")
		return
	}
	b.specific[t].Walkthrough = fn
}

// RegisterPhysics installs fn in the full table. With doorsOnly it is also
// installed in the doors-only table used by ModeDoorsOnly.
func (b *RegistryBuilder) RegisterPhysics(t block.Type, fn PhysicsFunc, doorsOnly bool) {
	if b.specific[t].Physics != nil {
		b.conflict(t, "physics")
		return
	}
	b.specific[t].Physics = fn
	if doorsOnly {
		b.specific[t].DoorsPhysics = fn
	}
}

func (b *RegistryBuilder) RegisterFamily(f FamilyDefault) {
	if f.Members == nil {
		b.errs = append(b.errs, fmt.Errorf("family %q: no member predicate", f.Name))
		return
	}
	b.families = append(b.families, f)
}

// Build runs both passes and returns the immutable registry.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	r := &Registry{behaviours: b.specific}
	for _, f := range b.families {
		for i := range r.behaviours {
			if f.Members(block.Type(i)) {
				r.behaviours[i].fill(f.Behaviour)
			}
		}
	}
	return r, nil
}
