package editor

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/spawn"
	"github.com/talgya/catplanet/internal/surface"
)

// ClassInfo says how an object being placed by hand behaves.
type ClassInfo struct {
	Class         placement.Class
	Blocking      bool
	SurfaceOffset float64
	Rules         placement.Rules

	AttachmentTemplate string
	AttachmentOffset   mgl64.Vec3
	Style              registry.Style

	Motion *spawn.MotionSpec
}

// InfoFromSpec derives placement behaviour from a spawn spec, so hand
// placement obeys the same distances as generation.
func InfoFromSpec(s spawn.Spec) ClassInfo {
	return ClassInfo{
		Class:              s.Class,
		Blocking:           s.BlocksOthers,
		SurfaceOffset:      s.SurfaceOffset,
		Rules:              s.Rules(),
		AttachmentTemplate: s.AttachmentTemplate,
		AttachmentOffset:   s.AttachmentOffset,
		Style:              s.Style,
		Motion:             s.Motion,
	}
}

// Candidate is where the object would land for the last pointer ray.
type Candidate struct {
	Position mgl64.Vec3 `json:"position"`
	Normal   mgl64.Vec3 `json:"normal"`
	Valid    bool       `json:"valid"`
	Hit      bool       `json:"hit"`
}

// Env is what editing sessions share: the registry they place into and the
// collaborators used to check and orient placements.
type Env struct {
	Registry  *registry.Registry
	Query     SurfaceQuery
	Planet    func() surface.Planet
	Validator placement.Validator

	Curves     locomotion.Curves
	Controller locomotion.Controller
}

func (env *Env) candidate(r Ray, class placement.Class, offset float64, rules placement.Rules, exclude registry.ID) Candidate {
	hit, ok := env.Query.Raycast(r)
	if !ok {
		return Candidate{}
	}
	dir := surface.Direction(hit.Normal)
	pos := env.Planet().SurfacePoint(surface.Direction(hit.Point), offset)
	return Candidate{
		Position: pos,
		Normal:   dir,
		Hit:      true,
		Valid:    env.Validator.IsValid(pos, class, env.Registry.Neighbors(exclude), rules),
	}
}

func (env *Env) accepts(c Candidate) bool {
	return c.Hit && (c.Valid || env.Validator.Stacking)
}

// Session places one object by hand.
type Session struct {
	env *Env

	active    bool
	template  string
	info      ClassInfo
	last      Candidate
	evaluated bool
}

// NewSession returns an idle session.
func NewSession(env *Env) *Session {
	return &Session{env: env}
}

// Begin starts placing template. Attachments only exist as part of a
// container, so they cannot be placed on their own.
func (s *Session) Begin(template string, info ClassInfo) bool {
	if info.Class == placement.ClassAttachment {
		return false
	}
	s.active = true
	s.template = template
	s.info = info
	s.last = Candidate{}
	s.evaluated = false
	return true
}

// Active reports whether a placement is in progress.
func (s *Session) Active() bool { return s.active }

// UpdateCandidate recomputes the candidate for a pointer ray. It never
// changes the registry.
func (s *Session) UpdateCandidate(r Ray) Candidate {
	if !s.active {
		return Candidate{}
	}
	s.last = s.env.candidate(r, s.info.Class, s.info.SurfaceOffset, s.info.Rules, 0)
	s.evaluated = true
	return s.last
}

// Commit registers the object at the last candidate. It does nothing when no
// candidate was computed, when the ray missed, or when the candidate was
// invalid and stacking is off.
func (s *Session) Commit() (registry.Entity, bool) {
	if !s.active || !s.evaluated || !s.env.accepts(s.last) {
		return registry.Entity{}, false
	}
	e := s.place(s.last)
	s.Cancel()
	return e, true
}

// Cancel abandons the placement.
func (s *Session) Cancel() {
	s.active = false
	s.template = ""
	s.info = ClassInfo{}
	s.last = Candidate{}
	s.evaluated = false
}

func (s *Session) place(c Candidate) registry.Entity {
	reg := s.env.Registry
	rot := surface.Upright(c.Normal)
	e := registry.Entity{
		Template: s.template,
		Position: c.Position,
		Rotation: rot,
		Blocking: s.info.Blocking,
		Offset:   s.info.SurfaceOffset,
	}

	switch s.info.Class {
	case placement.ClassContainer:
		e.Kind = registry.Container{Style: s.info.Style}
		container, _ := reg.AddPair(e, registry.Entity{
			Template: s.info.AttachmentTemplate,
			Kind:     registry.Attachment{Hidden: s.info.Style == registry.StyleHiding},
			Position: c.Position.Add(rot.Rotate(s.info.AttachmentOffset)),
			Rotation: rot,
			Offset:   s.info.SurfaceOffset,
		})
		return container
	case placement.ClassCollectible:
		e.Kind = registry.Collectible{}
	default:
		e.Kind = registry.Ordinary{}
	}

	if m := s.info.Motion; m != nil {
		st := locomotion.NewState(m.Speed, m.WalkRadius, s.info.SurfaceOffset, m.Circular)
		if m.Curve != nil {
			st.Curve = *m.Curve
		}
		s.env.Controller.Init(st, c.Position, s.env.Curves)
		e.Motion = st
	}
	return reg.Add(e)
}
