// Package editor implements edit-time manual placement: pointer rays are
// intersected with the planet, the hit is turned into a candidate spot and
// the candidate is checked live before it is committed to the registry.
package editor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/surface"
)

// Ray is a pointer ray in the planet frame.
type Ray struct {
	Origin    mgl64.Vec3 `json:"origin"`
	Direction mgl64.Vec3 `json:"direction"`
}

// Hit is the nearest intersection of a ray with the planet geometry.
type Hit struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

// SurfaceQuery intersects rays with the planet geometry.
type SurfaceQuery interface {
	Raycast(r Ray) (Hit, bool)
}

// QueryFunc adapts a function to SurfaceQuery.
type QueryFunc func(r Ray) (Hit, bool)

// Raycast calls f(r).
func (f QueryFunc) Raycast(r Ray) (Hit, bool) { return f(r) }

// SphereQuery intersects rays with a bare sphere at the origin.
type SphereQuery struct {
	Radius float64
}

// Raycast returns the first intersection in front of the ray origin.
func (q SphereQuery) Raycast(r Ray) (Hit, bool) {
	if q.Radius <= 0 || r.Direction.LenSqr() < surface.Epsilon {
		return Hit{}, false
	}
	d := r.Direction.Normalize()
	// |o + t*d|^2 = R^2
	b := r.Origin.Dot(d)
	c := r.Origin.LenSqr() - q.Radius*q.Radius
	disc := b*b - c
	if disc < 0 {
		return Hit{}, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return Hit{}, false
	}
	p := r.Origin.Add(d.Mul(t))
	return Hit{Point: p, Normal: surface.Direction(p)}, true
}
