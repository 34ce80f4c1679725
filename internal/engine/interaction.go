package engine

import (
	"log/slog"

	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
)

// Discovery is emitted once when a collectible or attachment is found.
type Discovery struct {
	Tick      uint64          `json:"tick"`
	Entity    registry.ID     `json:"entity"`
	Template  string          `json:"template"`
	Class     placement.Class `json:"-"`
	ClassName string          `json:"class"`
	Container registry.ID     `json:"container,omitempty"`
}

// Progress counts found collectibles and attachments.
type Progress struct {
	Found int `json:"found"`
	Total int `json:"total"`
}

// Complete reports whether everything has been found.
func (p Progress) Complete() bool {
	return p.Total > 0 && p.Found == p.Total
}

// Interact queues a click on an entity. It is resolved on the next tick.
func (s *Simulation) Interact(id registry.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, id)
}

// DrainDiscoveries returns the discoveries made since the last call. Each
// discovery is delivered exactly once.
func (s *Simulation) DrainDiscoveries() []Discovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.discoveries
	s.discoveries = nil
	return out
}

// Progress returns how many findable entities have been found.
func (s *Simulation) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress()
}

func (s *Simulation) progress() Progress {
	var p Progress
	for _, e := range s.Registry.Query((*registry.Entity).Findable) {
		p.Total++
		if e.Found() {
			p.Found++
		}
	}
	return p
}

// Animations returns copies of the running animations.
func (s *Simulation) Animations() []Animation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Animation, 0, len(s.animations))
	for _, a := range s.animations {
		out = append(out, *a)
	}
	return out
}

func (s *Simulation) resetInteractions() {
	s.queue = nil
	s.animations = nil
}

// drainInteractions resolves every queued click. Callers hold s.mu.
func (s *Simulation) drainInteractions() {
	queue := s.queue
	s.queue = nil
	for _, id := range queue {
		s.interact(id)
	}
}

func (s *Simulation) interact(id registry.ID) {
	e, ok := s.Registry.Get(id)
	if !ok {
		return
	}
	switch k := e.Kind.(type) {
	case registry.Collectible:
		if k.Found {
			return
		}
		s.Registry.Update(id, func(x *registry.Entity) { x.Kind = registry.Collectible{Found: true} })
		s.animate(&Animation{Entity: id, Kind: AnimFound, Duration: FoundDuration, Easing: EaseOutBack})
		s.discover(e, 0)

	case registry.Container:
		if k.Style == registry.StyleHiding {
			if k.Opened {
				return
			}
			k.Opened = true
			s.Registry.Update(id, func(x *registry.Entity) { x.Kind = k })
			s.animate(&Animation{Entity: id, Kind: AnimOpen, Duration: OpenDuration, Easing: EaseOutQuad})
		}
		s.findAttachment(k.Attachment, e)

	case registry.Attachment:
		if k.Hidden {
			return
		}
		if c, ok := s.Registry.Get(k.Container); ok {
			s.findAttachment(id, c)
		}
	}
}

// findAttachment marks the attachment of container found, revealing it if it
// was hidden.
func (s *Simulation) findAttachment(id registry.ID, container registry.Entity) {
	a, ok := s.Registry.Get(id)
	if !ok {
		return
	}
	k, ok := a.Kind.(registry.Attachment)
	if !ok || k.Found {
		return
	}
	wasHidden := k.Hidden
	k.Found = true
	k.Hidden = false
	s.Registry.Update(id, func(x *registry.Entity) { x.Kind = k })

	if wasHidden {
		s.animate(&Animation{
			Entity: id, Kind: AnimReveal, Duration: RevealDuration, Easing: EaseOutBack,
			Moving: true, From: container.Position, To: a.Position,
		})
	}
	s.animate(&Animation{Entity: container.ID, Kind: AnimCelebrate, Duration: CelebrateDuration, Easing: EaseLinear})
	s.discover(a, container.ID)
}

func (s *Simulation) discover(e registry.Entity, container registry.ID) {
	d := Discovery{
		Tick:      s.LastTick,
		Entity:    e.ID,
		Template:  e.Template,
		Class:     e.Class(),
		ClassName: e.Class().String(),
		Container: container,
	}
	s.discoveries = append(s.discoveries, d)

	p := s.progress()
	slog.Info("discovery", "entity", e.ID, "template", e.Template, "found", p.Found, "total", p.Total)
	s.emit("discovery", "Found %s (%d of %d)", e.Template, p.Found, p.Total)
	if p.Complete() {
		s.emit("discovery", "Everything on the planet has been found")
	}
}

func (s *Simulation) animate(a *Animation) {
	a.Start = s.elapsed
	// A new animation of the same kind restarts the old one.
	for i, old := range s.animations {
		if old.Entity == a.Entity && old.Kind == a.Kind {
			s.animations[i] = a
			s.applyAnimation(a)
			return
		}
	}
	s.animations = append(s.animations, a)
	s.applyAnimation(a)
}

func (s *Simulation) applyAnimation(a *Animation) {
	a.Advance(s.elapsed)
	if a.Moving {
		pos := a.Position()
		s.Registry.Update(a.Entity, func(x *registry.Entity) { x.Position = pos })
	}
}

// advanceAnimations steps every animation and drops finished ones. Callers
// hold s.mu.
func (s *Simulation) advanceAnimations() {
	kept := s.animations[:0]
	for _, a := range s.animations {
		done := a.Advance(s.elapsed)
		if a.Moving {
			pos := a.Position()
			if done {
				pos = a.To
			}
			s.Registry.Update(a.Entity, func(x *registry.Entity) { x.Position = pos })
		}
		if !done {
			kept = append(kept, a)
		}
	}
	s.animations = kept
}
