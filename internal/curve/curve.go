// Package curve provides the parametric paths mobile agents follow.
//
// Callers depend on the Curve interface; Path is the linear polyline
// implementation used by the editor and by persisted layouts.
package curve

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/surface"
)

// Curve is a path parameterised over [0, 1].
type Curve interface {
	// Project returns the parameter of the point on the curve nearest p.
	Project(p mgl64.Vec3) float64
	// Evaluate samples the curve at parameter t.
	Evaluate(t float64) Sample
	// Closed reports whether the end joins the start.
	Closed() bool
	// Length is the total arc length in planet-frame units.
	Length() float64
}

// Sample is a point on a curve with its local frame.
type Sample struct {
	Position mgl64.Vec3
	Tangent  mgl64.Vec3 // unit, direction of increasing t
	Up       mgl64.Vec3 // unit, surface-relative up
	T        float64
}

// Color is a linear RGBA color.
type Color struct {
	R float32 `json:"r" msgpack:"r"`
	G float32 `json:"g" msgpack:"g"`
	B float32 `json:"b" msgpack:"b"`
	A float32 `json:"a" msgpack:"a"`
}

// Yellow is the default color for authored points.
var Yellow = Color{R: 1, G: 0.92, B: 0.016, A: 1}

// Point is a control point of a path.
type Point struct {
	Position   mgl64.Vec3 `json:"position" msgpack:"position"`
	Normal     mgl64.Vec3 `json:"normal" msgpack:"normal"`
	TangentIn  mgl64.Vec3 `json:"tangent_in" msgpack:"tangent_in"`
	TangentOut mgl64.Vec3 `json:"tangent_out" msgpack:"tangent_out"`
	Size       float64    `json:"size" msgpack:"size"`
	Color      Color      `json:"color" msgpack:"color"`
}

// Path is a polyline through its control points, parameterised by arc
// length. A closed path includes the segment from the last point back to the
// first.
type Path struct {
	points []Point
	closed bool

	// cumulative[i] is the arc length at the start of segment i.
	cumulative []float64
	length     float64
}

// NewPath builds a path over a copy of points.
func NewPath(points []Point, closed bool) *Path {
	p := &Path{
		points: append([]Point(nil), points...),
		closed: closed && len(points) >= 3,
	}
	p.measure()
	return p
}

func (p *Path) measure() {
	n := p.segments()
	p.cumulative = make([]float64, n+1)
	total := 0.0
	for i := 0; i < n; i++ {
		a, b := p.segment(i)
		p.cumulative[i] = total
		total += b.Position.Sub(a.Position).Len()
	}
	p.cumulative[n] = total
	p.length = total
}

func (p *Path) segments() int {
	switch {
	case len(p.points) < 2:
		return 0
	case p.closed:
		return len(p.points)
	default:
		return len(p.points) - 1
	}
}

func (p *Path) segment(i int) (Point, Point) {
	return p.points[i], p.points[(i+1)%len(p.points)]
}

// Points returns a copy of the control points.
func (p *Path) Points() []Point {
	return append([]Point(nil), p.points...)
}

// Closed reports whether the path loops.
func (p *Path) Closed() bool { return p.closed }

// Length returns the arc length.
func (p *Path) Length() float64 { return p.length }

// Degenerate reports whether the path has no measurable length.
func (p *Path) Degenerate() bool { return p.length < surface.Epsilon }

// Evaluate samples the path at t. Open paths clamp t to [0, 1]; closed paths
// wrap it.
func (p *Path) Evaluate(t float64) Sample {
	if len(p.points) == 0 {
		return Sample{Tangent: surface.WorldForward, Up: surface.WorldUp, T: t}
	}
	if p.closed {
		t -= math.Floor(t)
	} else {
		t = math.Max(0, math.Min(1, t))
	}
	if p.Degenerate() {
		pt := p.points[0]
		return Sample{Position: pt.Position, Tangent: surface.WorldForward, Up: upOf(pt), T: t}
	}

	target := t * p.length
	i := p.segmentAt(target)
	a, b := p.segment(i)
	segLen := p.cumulative[i+1] - p.cumulative[i]
	local := 0.0
	if segLen > 0 {
		local = (target - p.cumulative[i]) / segLen
	}

	pos := a.Position.Add(b.Position.Sub(a.Position).Mul(local))
	tangent := b.Position.Sub(a.Position)
	if tangent.Len() < surface.Epsilon {
		tangent = surface.WorldForward
	}
	up := upOf(a).Mul(1 - local).Add(upOf(b).Mul(local))
	if up.Len() < surface.Epsilon {
		up = surface.Direction(pos)
	}
	return Sample{Position: pos, Tangent: tangent.Normalize(), Up: up.Normalize(), T: t}
}

func (p *Path) segmentAt(arc float64) int {
	n := p.segments()
	for i := 0; i < n-1; i++ {
		if arc < p.cumulative[i+1] {
			return i
		}
	}
	return n - 1
}

func upOf(pt Point) mgl64.Vec3 {
	if pt.Normal.Len() > surface.Epsilon {
		return pt.Normal.Normalize()
	}
	return surface.Direction(pt.Position)
}

// Project returns the parameter of the point on the path nearest q.
func (p *Path) Project(q mgl64.Vec3) float64 {
	if p.Degenerate() {
		return 0
	}
	best, bestArc := math.Inf(1), 0.0
	for i := 0; i < p.segments(); i++ {
		a, b := p.segment(i)
		ab := b.Position.Sub(a.Position)
		l2 := ab.LenSqr()
		u := 0.0
		if l2 > 0 {
			u = math.Max(0, math.Min(1, q.Sub(a.Position).Dot(ab)/l2))
		}
		closest := a.Position.Add(ab.Mul(u))
		if d := closest.Sub(q).LenSqr(); d < best {
			best = d
			bestArc = p.cumulative[i] + u*math.Sqrt(l2)
		}
	}
	t := bestArc / p.length
	if p.closed && t >= 1 {
		t = 0
	}
	return t
}

// Scale multiplies every control point position by f, keeping it anchored
// when the planet radius changes.
func (p *Path) Scale(f float64) {
	for i := range p.points {
		p.points[i].Position = p.points[i].Position.Mul(f)
	}
	p.measure()
}
