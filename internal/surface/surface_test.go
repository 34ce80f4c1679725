package surface

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescaleRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	radii := []float64{0.25, 1, 5, 30, 212.5}

	for i := 0; i < 200; i++ {
		dir := RandomDirection(rng)
		r1 := radii[rng.Intn(len(radii))]
		r2 := radii[rng.Intn(len(radii))]
		p := Planet{Radius: r1}.SurfacePoint(dir, rng.Float64())

		back := Rescale(Rescale(p, r1, r2), r2, r1)
		require.InDelta(t, 0, back.Sub(p).Len(), 1e-9*math.Max(1, p.Len()), "round trip %v -> %v -> %v drifted: %v vs %v", r1, r2, r1, back, p)
	}
}

func TestRescaleKeepsSurfaceAnchored(t *testing.T) {
	dir := mgl64.Vec3{1, 2, -3}.Normalize()
	p := Planet{Radius: 5}.SurfacePoint(dir, 0)

	prev := 5.0
	for _, r := range []float64{7, 2, 11, 0.5, 5} {
		p = Rescale(p, prev, r)
		require.InDelta(t, r, p.Len(), 1e-9, "surface entity floated")
		prev = r
	}

	assert.InDelta(t, 0, Direction(p).Sub(dir).Len(), 1e-12, "direction changed: %v vs %v", Direction(p), dir)
}

func TestSurfacePointDistance(t *testing.T) {
	planet := Planet{Radius: 5}
	p := planet.SurfacePoint(mgl64.Vec3{0, 0, 3}, 0.25)
	assert.InDelta(t, 5.25, p.Len(), 1e-12)

	local := ToSurfacePosition(mgl64.Vec3{0, 0, 3}, 0.25, 5)
	assert.InDelta(t, SurfaceDistance(0.25, 5), local.Len(), 1e-12)
	assert.InDelta(t, 0, FromLocal(ToLocal(p, 5), 5).Sub(p).Len(), 1e-12, "local conversion does not round trip")
}

func TestRandomDirectionIsUniform(t *testing.T) {
	const samples = 20000
	const bins = 10
	rng := rand.New(rand.NewSource(42))

	var counts [bins]int
	for i := 0; i < samples; i++ {
		d := RandomDirection(rng)
		require.InDelta(t, 1, d.Len(), 1e-9, "sample %d not unit length", i)
		// cos(polar angle) measured from +Z.
		c := d.Z()
		bin := int((c + 1) / 2 * bins)
		if bin == bins {
			bin = bins - 1
		}
		counts[bin]++
	}

	expected := float64(samples) / bins
	chi := 0.0
	for _, n := range counts {
		diff := float64(n) - expected
		chi += diff * diff / expected
	}
	// 9 degrees of freedom; 27.88 is the 0.999 quantile.
	assert.LessOrEqual(t, chi, 27.88, "polar cosine not uniform: counts=%v", counts)
}

func TestDirectionOfZeroVector(t *testing.T) {
	assert.Equal(t, WorldUp, Direction(mgl64.Vec3{}))
}

func TestTangentFrameDegenerateAxis(t *testing.T) {
	for _, up := range []mgl64.Vec3{WorldForward, WorldForward.Mul(-1), WorldUp, {1, 1, 1}} {
		right, forward := TangentFrame(up)
		u := Direction(up)
		assert.InDelta(t, 1, right.Len(), 1e-9, "right for %v", up)
		assert.InDelta(t, 1, forward.Len(), 1e-9, "forward for %v", up)
		assert.InDelta(t, 0, right.Dot(u), 1e-9, "right·up for %v", up)
		assert.InDelta(t, 0, forward.Dot(u), 1e-9, "forward·up for %v", up)
		assert.InDelta(t, 0, right.Dot(forward), 1e-9, "right·forward for %v", up)
	}
}

func TestLookRotationAxes(t *testing.T) {
	forward := mgl64.Vec3{1, 0, 0}
	up := mgl64.Vec3{0, 1, 0}
	q := LookRotation(forward, up)

	got := q.Rotate(mgl64.Vec3{0, 0, 1})
	assert.InDelta(t, 0, got.Sub(forward).Len(), 1e-9, "+Z should map to forward, got %v", got)
	got = q.Rotate(mgl64.Vec3{0, 1, 0})
	assert.InDelta(t, 0, got.Sub(up).Len(), 1e-9, "+Y should map to up, got %v", got)
}

func TestUprightAlignsWithNormal(t *testing.T) {
	normal := mgl64.Vec3{0.3, -0.4, 0.2}
	got := Upright(normal).Rotate(WorldUp)
	assert.InDelta(t, 0, got.Sub(Direction(normal)).Len(), 1e-9, "up axis %v, want %v", got, Direction(normal))
}

func TestArcDistance(t *testing.T) {
	a := mgl64.Vec3{1, 0, 0}
	b := mgl64.Vec3{0, 1, 0}
	assert.InDelta(t, math.Pi, ArcDistance(a, b, 2), 1e-12, "quarter circle on radius 2")
}

func TestPlanetValidate(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.Error(t, Planet{Radius: r}.Validate(), "radius %v should be rejected", r)
	}
	assert.NoError(t, Planet{Radius: 5}.Validate())
}
