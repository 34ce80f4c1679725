// Package registry owns every entity placed on the planet.
package registry

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
)

// ID identifies a placed entity. Zero is never issued.
type ID uint64

// Style selects how a container presents its attachment.
type Style uint8

const (
	// StyleCompanion keeps the attachment visible beside the container;
	// finding it makes the container celebrate.
	StyleCompanion Style = iota
	// StyleHiding conceals the attachment inside the container until the
	// container is opened.
	StyleHiding
)

func (s Style) String() string {
	if s == StyleHiding {
		return "hiding"
	}
	return "companion"
}

// ParseStyle is the inverse of Style.String. Unknown names map to companion.
func ParseStyle(s string) Style {
	if s == "hiding" {
		return StyleHiding
	}
	return StyleCompanion
}

// Kind is the class-specific payload of an entity. The set of kinds is
// closed: Ordinary, Collectible, Container and Attachment.
type Kind interface {
	Class() placement.Class
	isKind()
}

// Ordinary is a decoration, obstacle or walking agent.
type Ordinary struct{}

// Collectible is a free-standing creature waiting to be found.
type Collectible struct {
	Found bool
}

// Container owns exactly one attachment.
type Container struct {
	Attachment ID
	Style      Style
	Opened     bool
}

// Attachment is the collectible bound to a container.
type Attachment struct {
	Container ID
	Hidden    bool
	Found     bool
}

func (Ordinary) Class() placement.Class    { return placement.ClassOrdinary }
func (Collectible) Class() placement.Class { return placement.ClassCollectible }
func (Container) Class() placement.Class   { return placement.ClassContainer }
func (Attachment) Class() placement.Class  { return placement.ClassAttachment }

func (Ordinary) isKind()    {}
func (Collectible) isKind() {}
func (Container) isKind()   {}
func (Attachment) isKind()  {}

// Entity is a placed object. Position and Rotation are in the planet frame.
type Entity struct {
	ID       ID
	Template string
	Kind     Kind
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Blocking bool
	Offset   float64

	// Motion is set for mobile agents only.
	Motion *locomotion.State
}

// Class returns the placement class of the entity's kind.
func (e *Entity) Class() placement.Class {
	if e.Kind == nil {
		return placement.ClassOrdinary
	}
	return e.Kind.Class()
}

// Partner returns the other half of a container/attachment pair.
func (e *Entity) Partner() (ID, bool) {
	switch k := e.Kind.(type) {
	case Container:
		return k.Attachment, k.Attachment != 0
	case Attachment:
		return k.Container, k.Container != 0
	}
	return 0, false
}

// Found reports whether a collectible or attachment has been found.
func (e *Entity) Found() bool {
	switch k := e.Kind.(type) {
	case Collectible:
		return k.Found
	case Attachment:
		return k.Found
	}
	return false
}

// Findable reports whether the entity counts towards the hunt.
func (e *Entity) Findable() bool {
	switch e.Kind.(type) {
	case Collectible, Attachment:
		return true
	}
	return false
}

// Neighbor returns the validator's view of the entity.
func (e *Entity) Neighbor() placement.Neighbor {
	return placement.Neighbor{
		ID:       uint64(e.ID),
		Position: e.Position,
		Class:    e.Class(),
		Blocking: e.Blocking,
	}
}

func (e *Entity) clone() Entity {
	c := *e
	c.Motion = e.Motion.Clone()
	if c.Kind == nil {
		c.Kind = Ordinary{}
	}
	return c
}
