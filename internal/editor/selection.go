package editor

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/surface"
)

// Selection moves, turns and deletes an already placed entity. Selecting an
// attachment selects its container; the pair always moves as one.
type Selection struct {
	env   *Env
	rules placement.Rules
	id    registry.ID
}

// NewSelection returns an empty selection. rules are the distances a dragged
// entity must keep.
func NewSelection(env *Env, rules placement.Rules) *Selection {
	return &Selection{env: env, rules: rules}
}

// Select picks the entity with the given id.
func (s *Selection) Select(id registry.ID) bool {
	e, ok := s.env.Registry.Get(id)
	if !ok {
		s.id = 0
		return false
	}
	if a, ok := e.Kind.(registry.Attachment); ok {
		id = a.Container
	}
	s.id = id
	return true
}

// Selected returns the selected entity id, or zero.
func (s *Selection) Selected() registry.ID { return s.id }

// Clear drops the selection.
func (s *Selection) Clear() { s.id = 0 }

// Drag moves the selection to where r hits the planet, if the new spot is
// valid. The entity is ignored as its own neighbor.
func (s *Selection) Drag(r Ray) Candidate {
	e, ok := s.env.Registry.Get(s.id)
	if !ok {
		return Candidate{}
	}
	c := s.env.candidate(r, e.Class(), e.Offset, s.rules, e.ID)
	if !s.env.accepts(c) {
		return c
	}

	oldUp := surface.Direction(e.Position)
	turn := mgl64.QuatBetweenVectors(oldUp, c.Normal)
	s.transform(e, func(x *registry.Entity) {
		if x.ID == e.ID {
			x.Position = c.Position
		} else {
			x.Position = c.Position.Add(turn.Rotate(x.Position.Sub(e.Position)))
		}
		x.Rotation = turn.Mul(x.Rotation).Normalize()
	})
	return c
}

// Rotate turns the selection about its surface normal.
func (s *Selection) Rotate(deg float64) bool {
	e, ok := s.env.Registry.Get(s.id)
	if !ok {
		return false
	}
	up := surface.Direction(e.Position)
	spin := surface.Turn(mgl64.QuatIdent(), up, deg)
	s.transform(e, func(x *registry.Entity) {
		if x.ID != e.ID {
			x.Position = e.Position.Add(spin.Rotate(x.Position.Sub(e.Position)))
		}
		x.Rotation = surface.Turn(x.Rotation, up, deg)
	})
	return true
}

// Delete removes the selection together with its partner.
func (s *Selection) Delete() int {
	n := s.env.Registry.Remove(s.id)
	s.id = 0
	return n
}

// transform applies fn to e and its partner, then re-anchors locomotion.
func (s *Selection) transform(e registry.Entity, fn func(*registry.Entity)) {
	reg := s.env.Registry
	reg.Update(e.ID, func(x *registry.Entity) {
		fn(x)
		if x.Motion != nil {
			s.env.Controller.Init(x.Motion, x.Position, s.env.Curves)
		}
	})
	if p, ok := e.Partner(); ok {
		reg.Update(p, fn)
	}
}
