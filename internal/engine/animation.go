package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/registry"
)

// Easing shapes animation progress.
type Easing uint8

const (
	EaseLinear Easing = iota
	EaseOutQuad
	EaseOutBack
)

// Apply maps linear progress t in [0, 1] through the easing curve.
func (e Easing) Apply(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	switch e {
	case EaseOutQuad:
		return 1 - (1-t)*(1-t)
	case EaseOutBack:
		const c1 = 1.70158
		const c3 = c1 + 1
		u := t - 1
		return 1 + c3*u*u*u + c1*u*u
	default:
		return t
	}
}

// AnimationKind names what an animation shows.
type AnimationKind string

const (
	AnimFound     AnimationKind = "found"     // A collectible pops when found
	AnimOpen      AnimationKind = "open"      // A hiding container opens
	AnimReveal    AnimationKind = "reveal"    // An attachment rises out of its container
	AnimCelebrate AnimationKind = "celebrate" // A container reacts to its attachment being found
)

// Animation durations in simulated seconds.
const (
	FoundDuration     = 0.6
	OpenDuration      = 0.5
	RevealDuration    = 0.8
	CelebrateDuration = 1.2
)

// Animation is a timed effect on one entity, advanced by the tick loop.
type Animation struct {
	Entity   registry.ID   `json:"entity"`
	Kind     AnimationKind `json:"kind"`
	Start    float64       `json:"start"`
	Duration float64       `json:"duration"`
	Easing   Easing        `json:"easing"`

	// Moving animations carry the entity from From to To.
	Moving bool       `json:"moving"`
	From   mgl64.Vec3 `json:"from"`
	To     mgl64.Vec3 `json:"to"`

	Progress float64 `json:"progress"` // Eased, as of the last tick
}

// Advance updates Progress for simulated time now and reports whether the
// animation has finished.
func (a *Animation) Advance(now float64) bool {
	t := 1.0
	if a.Duration > 0 {
		t = (now - a.Start) / a.Duration
	}
	a.Progress = a.Easing.Apply(t)
	return t >= 1
}

// Position returns the animated position for moving animations.
func (a *Animation) Position() mgl64.Vec3 {
	return a.From.Add(a.To.Sub(a.From).Mul(a.Progress))
}
