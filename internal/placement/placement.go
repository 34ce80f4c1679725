// Package placement decides whether a candidate position is free of the
// neighbors that block it.
package placement

import "github.com/go-gl/mathgl/mgl64"

// Class tags the role a placed entity plays.
type Class uint8

const (
	ClassOrdinary    Class = iota // Decorations, obstacles, walking agents
	ClassCollectible              // Free-standing creatures the player finds
	ClassContainer                // Owns exactly one attachment
	ClassAttachment               // Collectible tied to a container
)

var classNames = [...]string{"ordinary", "collectible", "container", "attachment"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// ParseClass is the inverse of Class.String.
func ParseClass(s string) (Class, bool) {
	for i, name := range classNames {
		if name == s {
			return Class(i), true
		}
	}
	return 0, false
}

// Neighbor is an already-placed entity as seen by the validator.
type Neighbor struct {
	ID       uint64
	Position mgl64.Vec3
	Class    Class
	Blocking bool
}

// Rules holds the minimum distances a candidate must keep.
//
// SameClass applies to every neighbor of the candidate's class, blocking or
// not. OtherClass applies to blocking neighbors of any other class unless
// PerClass carries a threshold for that neighbor's class.
type Rules struct {
	SameClass  float64
	OtherClass float64
	PerClass   map[Class]float64
}

// Uniform returns rules that keep d from every relevant neighbor.
func Uniform(d float64) Rules {
	return Rules{SameClass: d, OtherClass: d}
}

func (r Rules) threshold(candidate, neighbor Class, blocking bool) (float64, bool) {
	if neighbor == candidate {
		return r.SameClass, true
	}
	if !blocking {
		return 0, false
	}
	if d, ok := r.PerClass[neighbor]; ok {
		return d, true
	}
	return r.OtherClass, true
}

// Validator checks candidates against placed neighbors.
type Validator struct {
	// Stacking disables every distance check.
	Stacking bool
}

// IsValid reports whether pos keeps the required distance from every
// neighbor relevant to class. It has no side effects.
func (v Validator) IsValid(pos mgl64.Vec3, class Class, neighbors []Neighbor, rules Rules) bool {
	if v.Stacking {
		return true
	}
	for _, n := range neighbors {
		if n.Class == ClassAttachment {
			continue
		}
		d, ok := rules.threshold(class, n.Class, n.Blocking)
		if !ok || d <= 0 {
			continue
		}
		if n.Position.Sub(pos).LenSqr() < d*d {
			return false
		}
	}
	return true
}

// Exclude returns neighbors without the entity with the given id.
func Exclude(neighbors []Neighbor, id uint64) []Neighbor {
	out := neighbors[:0:0]
	for _, n := range neighbors {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
