// Package surface maps between planet-frame positions, unit directions and
// surface distances on a sphere centred at the origin.
//
// Two coordinate spaces are used. Planet-frame positions are in world units,
// where the surface sits at Radius. Local positions live on the canonical
// sphere of radius 0.5 (a unit-diameter mesh), which is what the persisted
// placement list stores. The scale factor between them is Radius/0.5.
package surface

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// CanonicalRadius is the radius of the local unit-diameter sphere.
const CanonicalRadius = 0.5

// Epsilon is the tolerance used for degenerate-vector checks.
const Epsilon = 1e-9

var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	WorldForward = mgl64.Vec3{0, 0, 1}
	WorldRight   = mgl64.Vec3{1, 0, 0}
)

// Planet is a sphere of the given radius centred at the origin.
type Planet struct {
	Radius float64 `json:"radius"`
}

// Validate reports whether the planet can host placements.
func (p Planet) Validate() error {
	if !(p.Radius > 0) || math.IsInf(p.Radius, 0) {
		return fmt.Errorf("planet radius must be positive, got %v", p.Radius)
	}
	return nil
}

// Scale returns the factor from local to planet-frame units.
func (p Planet) Scale() float64 {
	return p.Radius / CanonicalRadius
}

// SurfacePoint returns the planet-frame position at offset above the surface
// along dir.
func (p Planet) SurfacePoint(dir mgl64.Vec3, offset float64) mgl64.Vec3 {
	return FromLocal(ToSurfacePosition(dir, offset, p.Radius), p.Radius)
}

// Normal returns the outward surface normal under a planet-frame position.
func (p Planet) Normal(pos mgl64.Vec3) mgl64.Vec3 {
	return Direction(pos)
}

// Altitude returns how far pos sits above the surface.
func (p Planet) Altitude(pos mgl64.Vec3) float64 {
	return pos.Len() - p.Radius
}

// SurfaceDistance is the local-space distance from the centre for an entity
// standing offset world units above a sphere of the given radius.
func SurfaceDistance(offset, radius float64) float64 {
	return CanonicalRadius * (1 + offset/radius)
}

// ToSurfacePosition returns the local position at offset above the surface
// along dir. dir need not be normalised.
func ToSurfacePosition(dir mgl64.Vec3, offset, radius float64) mgl64.Vec3 {
	return Direction(dir).Mul(SurfaceDistance(offset, radius))
}

// ToLocal converts a planet-frame position into local space.
func ToLocal(pos mgl64.Vec3, radius float64) mgl64.Vec3 {
	return pos.Mul(CanonicalRadius / radius)
}

// FromLocal converts a local position into the planet frame.
func FromLocal(local mgl64.Vec3, radius float64) mgl64.Vec3 {
	return local.Mul(radius / CanonicalRadius)
}

// Rescale moves a planet-frame position from a sphere of oldRadius to one of
// newRadius. The direction is kept and the distance from the centre scales
// by the radius ratio, so surface-anchored entities stay anchored and
// R1->R2->R1 returns the original position.
func Rescale(pos mgl64.Vec3, oldRadius, newRadius float64) mgl64.Vec3 {
	if oldRadius <= 0 || newRadius <= 0 {
		return pos
	}
	return pos.Mul(newRadius / oldRadius)
}

// Direction returns the unit vector from the centre through pos. The zero
// vector maps to WorldUp.
func Direction(pos mgl64.Vec3) mgl64.Vec3 {
	l := pos.Len()
	if l < Epsilon {
		return WorldUp
	}
	return pos.Mul(1 / l)
}

// RandomDirection draws a direction uniformly distributed over the unit
// sphere: z is uniform in [-1, 1] and the azimuth uniform in [0, 2π), which
// by Archimedes' hat-box theorem gives equal area density everywhere.
func RandomDirection(rng *rand.Rand) mgl64.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(math.Max(0, 1-z*z))
	return mgl64.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}

// ArcDistance returns the great-circle distance between the directions of a
// and b on a sphere of the given radius.
func ArcDistance(a, b mgl64.Vec3, radius float64) float64 {
	d := Direction(a).Dot(Direction(b))
	d = math.Max(-1, math.Min(1, d))
	return math.Acos(d) * radius
}
