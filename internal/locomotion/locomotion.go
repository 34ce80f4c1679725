// Package locomotion moves mobile agents over the planet surface, either
// along an assigned curve or around a small circle near where they spawned.
package locomotion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/surface"
)

// Mode is the state of an agent's locomotion state machine.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeCircular
	ModeCurveForward
	ModeCurveBackward
)

var modeNames = [...]string{"idle", "circular", "curve_forward", "curve_backward"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// NoCurve marks an agent without an assigned curve.
const NoCurve = -1

// DefaultCurveLengthScale converts curve speed into parameter per second.
const DefaultCurveLengthScale = 20.0

// DegreesPerSpeedUnit is the circular-walk angular speed per unit of walk
// speed, in degrees per second.
const DegreesPerSpeedUnit = 50.0

// State is one agent's locomotion state. It is owned by exactly one entity.
type State struct {
	Mode  Mode    `json:"mode"`
	Curve int     `json:"curve"`
	Param float64 `json:"param"`

	Anchor       mgl64.Vec3 `json:"anchor"`
	Phase        float64    `json:"phase"`
	AngularSpeed float64    `json:"angular_speed"`

	Speed      float64 `json:"speed"`
	WalkRadius float64 `json:"walk_radius"`
	Offset     float64 `json:"offset"`
	Circular   bool    `json:"circular"`
}

// NewState returns an idle state for an agent walking at speed. Init picks
// the real starting mode.
func NewState(speed, walkRadius, offset float64, circular bool) *State {
	st := &State{
		Mode:       ModeIdle,
		Curve:      NoCurve,
		WalkRadius: walkRadius,
		Offset:     offset,
		Circular:   circular,
	}
	st.SetSpeed(speed)
	return st
}

// SetSpeed changes the walking speed and the circling rate derived from it.
func (s *State) SetSpeed(speed float64) {
	s.Speed = speed
	s.AngularSpeed = speed * DegreesPerSpeedUnit * math.Pi / 180
}

// Clone returns a copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Forward reports whether a curve follower is moving towards t=1.
func (s *State) Forward() bool {
	return s.Mode != ModeCurveBackward
}

// OnCurve reports whether the agent is in a curve-following mode.
func (s *State) OnCurve() bool {
	return s.Mode == ModeCurveForward || s.Mode == ModeCurveBackward
}

// Curves resolves curve indices.
type Curves interface {
	Curve(index int) (curve.Curve, bool)
}

// Pose is a position and orientation in the planet frame.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Controller advances locomotion states. It holds no per-agent data, so one
// controller serves every agent.
type Controller struct {
	CurveLengthScale float64
}

// NewController returns a controller using scale, or the default when scale
// is not positive.
func NewController(scale float64) Controller {
	if scale <= 0 {
		scale = DefaultCurveLengthScale
	}
	return Controller{CurveLengthScale: scale}
}

// Init chooses the starting mode for an agent standing at pos.
func (c Controller) Init(s *State, pos mgl64.Vec3, curves Curves) {
	s.Anchor = surface.Direction(pos)
	if cv, ok := usableCurve(s.Curve, curves); ok {
		s.Param = cv.Project(pos)
		s.Mode = ModeCurveForward
		return
	}
	s.fallback()
}

func (s *State) fallback() {
	if s.Circular {
		s.Mode = ModeCircular
	} else {
		s.Mode = ModeIdle
	}
}

func usableCurve(index int, curves Curves) (curve.Curve, bool) {
	if index < 0 || curves == nil {
		return nil, false
	}
	cv, ok := curves.Curve(index)
	if !ok || cv == nil || cv.Length() < surface.Epsilon {
		return nil, false
	}
	return cv, true
}

// Step advances s by dt seconds on planet and returns the agent's new pose.
// moved is false for idle agents, whose pose must be left untouched.
func (c Controller) Step(s *State, dt float64, planet surface.Planet, curves Curves) (pose Pose, moved bool) {
	if s.OnCurve() {
		cv, ok := usableCurve(s.Curve, curves)
		if ok {
			return c.stepCurve(s, dt, cv), true
		}
		s.fallback()
	}
	if s.Mode == ModeCircular {
		return stepCircular(s, dt, planet), true
	}
	return Pose{}, false
}

func (c Controller) stepCurve(s *State, dt float64, cv curve.Curve) Pose {
	scale := c.CurveLengthScale
	if scale <= 0 {
		scale = DefaultCurveLengthScale
	}
	delta := s.Speed * dt / scale

	if s.Mode == ModeCurveForward {
		s.Param += delta
		if s.Param >= 1 {
			if cv.Closed() {
				s.Param -= math.Floor(s.Param)
			} else {
				s.Param = 1
				s.Mode = ModeCurveBackward
			}
		}
	} else {
		s.Param -= delta
		if cv.Closed() {
			if s.Param < 0 {
				s.Param -= math.Floor(s.Param)
			}
		} else if s.Param <= 0 {
			s.Param = 0
			s.Mode = ModeCurveForward
		}
	}

	sample := cv.Evaluate(s.Param)
	tangent := sample.Tangent
	if s.Mode == ModeCurveBackward {
		tangent = tangent.Mul(-1)
	}
	return Pose{Position: sample.Position, Rotation: surface.LookRotation(tangent, sample.Up)}
}

func stepCircular(s *State, dt float64, planet surface.Planet) Pose {
	s.Phase = math.Mod(s.Phase+s.AngularSpeed*dt, 2*math.Pi)
	if s.Phase < 0 {
		s.Phase += 2 * math.Pi
	}

	right, forward := surface.TangentFrame(s.Anchor)
	spread := 0.0
	if planet.Radius > 0 {
		spread = s.WalkRadius / planet.Radius
	}
	sin, cos := math.Sincos(s.Phase)
	offset := right.Mul(sin).Add(forward.Mul(cos)).Mul(spread)
	dir := surface.Direction(s.Anchor.Add(offset))
	pos := planet.SurfacePoint(dir, s.Offset)

	// d/dphase of the offset; flips with the sign of the angular speed.
	travel := right.Mul(cos).Sub(forward.Mul(sin))
	if s.AngularSpeed < 0 {
		travel = travel.Mul(-1)
	}
	travel = travel.Sub(dir.Mul(dir.Dot(travel)))
	return Pose{Position: pos, Rotation: surface.LookRotation(travel, dir)}
}
