package editor

import (
	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/surface"
)

// PathSession authors a curve by clicking points on the planet.
type PathSession struct {
	env     *Env
	set     *curve.Set
	builder *curve.Builder
	offset  float64
	active  bool
}

// NewPathSession returns a path session that adds finished paths to set.
// Points sit offset above the surface; loopClose is how near the first point
// a click must land to close the loop.
func NewPathSession(env *Env, set *curve.Set, loopClose, offset float64) *PathSession {
	return &PathSession{
		env:     env,
		set:     set,
		builder: curve.NewBuilder(loopClose),
		offset:  offset,
	}
}

// Begin starts a new path, discarding any unfinished one.
func (p *PathSession) Begin() {
	p.builder.Reset()
	p.active = true
}

// Active reports whether a path is being authored.
func (p *PathSession) Active() bool { return p.active }

// Points returns the number of points placed so far.
func (p *PathSession) Points() int { return p.builder.Len() }

// AddPoint adds the point under r. hit is false when the ray missed; closed
// is true once the loop has been closed.
func (p *PathSession) AddPoint(r Ray) (hit, closed bool) {
	if !p.active {
		return false, false
	}
	h, ok := p.env.Query.Raycast(r)
	if !ok {
		return false, p.builder.Closed()
	}
	normal := surface.Direction(h.Normal)
	pos := p.env.Planet().SurfacePoint(surface.Direction(h.Point), p.offset)
	return true, p.builder.Add(pos, normal)
}

// Finish stores the path and returns its index. Paths need at least two
// points.
func (p *PathSession) Finish() (int, bool) {
	if !p.active {
		return 0, false
	}
	path, ok := p.builder.Build()
	if !ok {
		return 0, false
	}
	p.active = false
	p.builder.Reset()
	return p.set.Add(path), true
}

// Cancel abandons the path.
func (p *PathSession) Cancel() {
	p.builder.Reset()
	p.active = false
}

// AssignCurve makes entity id follow the curve at index at speed. Entities
// without locomotion get a default walking state first.
func (p *PathSession) AssignCurve(id registry.ID, index int, speed float64) bool {
	if _, ok := p.set.Get(index); !ok {
		return false
	}
	return p.env.Registry.Update(id, func(e *registry.Entity) {
		if e.Motion == nil {
			e.Motion = locomotion.NewState(speed, 0, e.Offset, false)
		} else {
			e.Motion.SetSpeed(speed)
		}
		e.Motion.Curve = index
		p.env.Controller.Init(e.Motion, e.Position, p.env.Curves)
	})
}
