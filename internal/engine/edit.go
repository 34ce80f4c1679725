package engine

import (
	"log/slog"

	"github.com/talgya/catplanet/internal/editor"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
)

// classInfo returns the placement behaviour for template, taken from the
// spawn spec that produces it. Unknown templates are ordinary decorations.
func (s *Simulation) classInfo(template string) editor.ClassInfo {
	for _, spec := range s.opts.Specs {
		if spec.Template == template {
			return editor.InfoFromSpec(spec)
		}
	}
	return editor.ClassInfo{Class: placement.ClassOrdinary}
}

func (s *Simulation) rulesFor(e registry.Entity) placement.Rules {
	for _, spec := range s.opts.Specs {
		if spec.Template == e.Template && spec.Class == e.Class() {
			return spec.Rules()
		}
	}
	return placement.Rules{}
}

// Preview evaluates where template would land for ray without placing it.
func (s *Simulation) Preview(template string, ray editor.Ray) editor.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := editor.NewSession(s.env)
	if !session.Begin(template, s.classInfo(template)) {
		return editor.Candidate{}
	}
	return session.UpdateCandidate(ray)
}

// Place drops template where ray hits the planet, if the spot is valid.
func (s *Simulation) Place(template string, ray editor.Ray) (registry.Entity, editor.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := editor.NewSession(s.env)
	if !session.Begin(template, s.classInfo(template)) {
		return registry.Entity{}, editor.Candidate{}, false
	}
	c := session.UpdateCandidate(ray)
	e, ok := session.Commit()
	if ok {
		slog.Info("entity placed", "id", e.ID, "template", template)
		s.emit("edit", "Placed %s", template)
	}
	return e, c, ok
}

// Move drags entity id to where ray hits the planet, if the spot is valid.
func (s *Simulation) Move(id registry.ID, ray editor.Ray) (editor.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.selection.Select(id) {
		return editor.Candidate{}, false
	}
	e, _ := s.Registry.Get(s.selection.Selected())
	sel := editor.NewSelection(s.env, s.rulesFor(e))
	sel.Select(e.ID)
	c := sel.Drag(ray)
	return c, c.Hit && (c.Valid || s.env.Validator.Stacking)
}

// Rotate turns entity id about its surface normal.
func (s *Simulation) Rotate(id registry.ID, deg float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.selection.Select(id) {
		return false
	}
	return s.selection.Rotate(deg)
}

// Delete removes entity id together with its partner.
func (s *Simulation) Delete(id registry.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.selection.Select(id) {
		return 0
	}
	n := s.selection.Delete()
	s.emit("edit", "Deleted %d entities", n)
	return n
}

// AuthorPath builds a curve from a sequence of clicks and returns its index.
// Clicks after the loop closes are ignored.
func (s *Simulation) AuthorPath(rays []editor.Ray) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths.Begin()
	for _, r := range rays {
		if _, closed := s.paths.AddPoint(r); closed {
			break
		}
	}
	idx, ok := s.paths.Finish()
	if !ok {
		s.paths.Cancel()
		return 0, false
	}
	s.emit("edit", "Authored path %d", idx)
	return idx, true
}

// AssignCurve makes entity id follow curve index at speed.
func (s *Simulation) AssignCurve(id registry.ID, index int, speed float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths.AssignCurve(id, index, speed)
}
