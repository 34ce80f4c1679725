package locomotion

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/surface"
)

func ring(radius float64, n int, closed bool) *curve.Path {
	pts := make([]curve.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pos := mgl64.Vec3{radius * math.Cos(a), 0, radius * math.Sin(a)}
		pts[i] = curve.Point{Position: pos, Normal: surface.Direction(pos)}
	}
	return curve.NewPath(pts, closed)
}

func curves(paths ...*curve.Path) *curve.Set {
	s := curve.NewSet()
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

func TestInitChoosesMode(t *testing.T) {
	c := NewController(0)
	set := curves(ring(5, 8, true))
	start := mgl64.Vec3{5, 0, 0}

	s := NewState(1, 1, 0, true)
	s.Curve = 0
	c.Init(s, start, set)
	assert.Equal(t, ModeCurveForward, s.Mode, "assigned curve should start forward")
	assert.InDelta(t, 0, s.Param, 1e-9, "start projects onto t=0")

	s = NewState(1, 1, 0, true)
	s.Curve = 3
	c.Init(s, start, set)
	assert.Equal(t, ModeCircular, s.Mode, "missing curve should fall back to circular")
	assert.Equal(t, 3, s.Curve, "curve assignment must be kept for saving")

	s = NewState(1, 1, 0, false)
	c.Init(s, start, set)
	assert.Equal(t, ModeIdle, s.Mode, "no curve and no circular walk should idle")
}

func TestClosedCurveCycleReturnsToStart(t *testing.T) {
	c := NewController(20)
	set := curves(ring(5, 12, true))
	planet := surface.Planet{Radius: 5}

	for _, steps := range []int{1, 7, 100} {
		s := NewState(3, 0, 0, false)
		s.Curve = 0
		c.Init(s, mgl64.Vec3{5, 0, 0}, set)
		s.Param = 0.3
		start := s.Param

		total := c.CurveLengthScale / s.Speed
		for i := 0; i < steps; i++ {
			c.Step(s, total/float64(steps), planet, set)
			require.Equal(t, ModeCurveForward, s.Mode, "direction flipped on closed curve at step %d", i)
			require.True(t, s.Param >= 0 && s.Param < 1, "param out of range: %v", s.Param)
		}
		assert.InDelta(t, start, s.Param, 1e-9, "%d steps", steps)
	}
}

func TestClosedCurveFromZeroWraps(t *testing.T) {
	c := NewController(20)
	set := curves(ring(5, 12, true))
	s := NewState(20, 0, 0, false)
	s.Curve = 0
	c.Init(s, mgl64.Vec3{5, 0, 0}, set)

	c.Step(s, 1, surface.Planet{Radius: 5}, set)
	assert.InDelta(t, 0, s.Param, 1e-9, "full lap from 0 should wrap to 0")
	assert.Equal(t, ModeCurveForward, s.Mode)
}

func TestOpenCurveOscillates(t *testing.T) {
	c := NewController(4)
	set := curves(ring(5, 6, false))
	planet := surface.Planet{Radius: 5}

	s := NewState(1, 0, 0, false)
	s.Curve = 0
	c.Init(s, mgl64.Vec3{5, 0, 0}, set)
	s.Param = 0.9

	// Each step moves the parameter by 0.25.
	c.Step(s, 1, planet, set)
	assert.Equal(t, 1.0, s.Param, "clamp at 1")
	assert.Equal(t, ModeCurveBackward, s.Mode, "reverse at the end")

	c.Step(s, 1, planet, set)
	assert.InDelta(t, 0.75, s.Param, 1e-12)
	assert.Equal(t, ModeCurveBackward, s.Mode)

	flips := 0
	last := s.Mode
	for i := 0; i < 40; i++ {
		c.Step(s, 1, planet, set)
		require.True(t, s.Param >= 0 && s.Param <= 1, "param escaped bounds: %v", s.Param)
		if s.Mode != last {
			flips++
			if s.Mode == ModeCurveForward {
				require.Equal(t, 0.0, s.Param, "reversal to forward must happen at 0")
			} else {
				require.Equal(t, 1.0, s.Param, "reversal to backward must happen at 1")
			}
			last = s.Mode
		}
	}
	assert.GreaterOrEqual(t, flips, 4, "expected repeated oscillation")
}

func TestBackwardOrientationReversesTangent(t *testing.T) {
	c := NewController(4)
	set := curves(ring(5, 6, false))
	s := NewState(1, 0, 0, false)
	s.Curve = 0
	c.Init(s, mgl64.Vec3{5, 0, 0}, set)
	s.Param = 0.5
	s.Mode = ModeCurveBackward

	pose, moved := c.Step(s, 0.1, surface.Planet{Radius: 5}, set)
	require.True(t, moved, "curve follower should move")
	p, _ := set.Get(0)
	tangent := p.Evaluate(s.Param).Tangent
	facing := pose.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
	assert.Less(t, facing.Dot(tangent), -0.99, "backward agent should face against the tangent: facing %v tangent %v", facing, tangent)
}

func TestCircularWalkStaysOnSurface(t *testing.T) {
	c := NewController(0)
	planet := surface.Planet{Radius: 5}

	// Anchors include the degenerate case parallel to the reference axis.
	for _, anchor := range []mgl64.Vec3{{0, 0, 5}, {0, 0, -5}, {3, 4, 0}} {
		s := NewState(2, 1, 0.1, true)
		c.Init(s, anchor, nil)
		require.Equal(t, ModeCircular, s.Mode)

		var prev mgl64.Vec3
		for i := 0; i < 50; i++ {
			pose, moved := c.Step(s, 0.05, planet, nil)
			require.True(t, moved, "circular agent should move")
			require.False(t, math.IsNaN(pose.Position.X()), "NaN position for anchor %v", anchor)
			require.InDelta(t, 5.1, pose.Position.Len(), 1e-9, "agent left the surface")
			require.LessOrEqual(t, surface.ArcDistance(pose.Position, anchor, 5), 1.01, "agent wandered from anchor")
			up := pose.Rotation.Rotate(surface.WorldUp)
			require.GreaterOrEqual(t, up.Dot(surface.Direction(pose.Position)), 0.999, "agent not upright: up %v", up)
			if i > 0 {
				require.NotZero(t, pose.Position.Sub(prev).Len(), "agent did not move on step %d", i)
			}
			prev = pose.Position
		}
	}
}

func TestIdleDoesNotMove(t *testing.T) {
	c := NewController(0)
	s := NewState(1, 1, 0, false)
	c.Init(s, mgl64.Vec3{0, 5, 0}, nil)
	_, moved := c.Step(s, 1, surface.Planet{Radius: 5}, nil)
	assert.False(t, moved, "idle agent moved")
}

func TestMissingCurveAtRuntimeFallsBack(t *testing.T) {
	c := NewController(0)
	set := curves(ring(5, 8, true))
	s := NewState(1, 1, 0, true)
	s.Curve = 0
	c.Init(s, mgl64.Vec3{5, 0, 0}, set)

	set.Clear()
	_, moved := c.Step(s, 0.1, surface.Planet{Radius: 5}, set)
	assert.True(t, moved, "fallback circular walk should move")
	assert.Equal(t, ModeCircular, s.Mode)
}
