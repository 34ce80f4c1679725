// Package layout captures the registry as a persisted placement list and
// rebuilds the registry from one.
//
// Positions are stored on the canonical sphere of radius 0.5 so a layout can
// be restored onto a planet of any radius.
package layout

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/surface"
)

// Version is the current layout format version.
const Version = 1

// NoOwner marks a placement that is not an attachment.
const NoOwner = -1

// Quat is a rotation stored as W, X, Y, Z.
type Quat [4]float64

// FromQuat converts a rotation for storage.
func FromQuat(q mgl64.Quat) Quat {
	return Quat{q.W, q.V[0], q.V[1], q.V[2]}
}

// Rotation converts back to a quaternion.
func (q Quat) Rotation() mgl64.Quat {
	return mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}
}

// Motion is the stored configuration of a mobile entity.
type Motion struct {
	Speed      float64 `msgpack:"speed" json:"speed"`
	WalkRadius float64 `msgpack:"walk_radius" json:"walk_radius"` // Canonical units
	Circular   bool    `msgpack:"circular" json:"circular"`
}

// Placement is one stored entity.
type Placement struct {
	Class         string     `msgpack:"class" json:"class"`
	Template      string     `msgpack:"template" json:"template"`
	LocalPosition mgl64.Vec3 `msgpack:"pos" json:"local_position"`
	LocalRotation Quat       `msgpack:"rot" json:"local_rotation"`
	LocalOffset   float64    `msgpack:"offset" json:"local_offset"`
	Blocking      bool       `msgpack:"blocking" json:"blocking"`
	Style         string     `msgpack:"style,omitempty" json:"style,omitempty"`

	// Owner is the index of the container placement for attachments.
	Owner int `msgpack:"owner" json:"owner"`
	// Curve is the index into Layout.Curves, or locomotion.NoCurve.
	Curve  int     `msgpack:"curve" json:"curve"`
	Motion *Motion `msgpack:"motion,omitempty" json:"motion,omitempty"`
}

// CurveData is one stored authored curve in canonical units.
type CurveData struct {
	Points []curve.Point `msgpack:"points" json:"points"`
	Closed bool          `msgpack:"closed" json:"closed"`
}

// Layout is a persisted placement list.
type Layout struct {
	Version    int         `msgpack:"version" json:"version"`
	ID         uuid.UUID   `msgpack:"id" json:"id"`
	Name       string      `msgpack:"name" json:"name"`
	Radius     float64     `msgpack:"radius" json:"radius"`
	CreatedAt  time.Time   `msgpack:"created_at" json:"created_at"`
	Placements []Placement `msgpack:"placements" json:"placements"`
	Curves     []CurveData `msgpack:"curves" json:"curves"`
}

// ErrInvalid is returned for layouts that cannot be restored.
var ErrInvalid = errors.New("invalid layout")

// Validate checks the internal references of a layout.
func (l *Layout) Validate() error {
	if l.Version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalid, l.Version, Version)
	}
	if err := (surface.Planet{Radius: l.Radius}).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	owners := make(map[int]int)
	for i, p := range l.Placements {
		class, ok := placement.ParseClass(p.Class)
		if !ok {
			return fmt.Errorf("%w: placement %d has unknown class %q", ErrInvalid, i, p.Class)
		}
		if p.Curve != locomotion.NoCurve && (p.Curve < 0 || p.Curve >= len(l.Curves)) {
			return fmt.Errorf("%w: placement %d refers to curve %d of %d", ErrInvalid, i, p.Curve, len(l.Curves))
		}
		if class != placement.ClassAttachment {
			if p.Owner != NoOwner {
				return fmt.Errorf("%w: placement %d is a %s with an owner", ErrInvalid, i, class)
			}
			continue
		}
		if p.Owner < 0 || p.Owner >= len(l.Placements) || l.Placements[p.Owner].Class != placement.ClassContainer.String() {
			return fmt.Errorf("%w: attachment %d has no container", ErrInvalid, i)
		}
		owners[p.Owner]++
		if owners[p.Owner] > 1 {
			return fmt.Errorf("%w: container %d has more than one attachment", ErrInvalid, p.Owner)
		}
	}
	for i, p := range l.Placements {
		if p.Class == placement.ClassContainer.String() && owners[i] != 1 {
			return fmt.Errorf("%w: container %d has no attachment", ErrInvalid, i)
		}
	}
	return nil
}

// Capture records every entity of reg and every curve of curves on planet.
func Capture(name string, planet surface.Planet, reg *registry.Registry, curves *curve.Set) *Layout {
	l := &Layout{
		Version:   Version,
		ID:        uuid.New(),
		Name:      name,
		Radius:    planet.Radius,
		CreatedAt: time.Now().UTC(),
	}
	scale := planet.Scale()

	for _, p := range curves.All() {
		pts := p.Points()
		for i := range pts {
			pts[i].Position = surface.ToLocal(pts[i].Position, planet.Radius)
		}
		l.Curves = append(l.Curves, CurveData{Points: pts, Closed: p.Closed()})
	}

	index := make(map[registry.ID]int)
	entities := reg.All()
	for _, e := range entities {
		if e.Class() == placement.ClassAttachment {
			continue
		}
		index[e.ID] = len(l.Placements)
		l.Placements = append(l.Placements, record(e, scale))
	}
	// Attachments go after every container so owners always resolve.
	for _, e := range entities {
		if e.Class() != placement.ClassAttachment {
			continue
		}
		p := record(e, scale)
		if owner, ok := e.Partner(); ok {
			if idx, ok := index[owner]; ok {
				p.Owner = idx
			}
		}
		l.Placements = append(l.Placements, p)
	}
	return l
}

func record(e registry.Entity, scale float64) Placement {
	p := Placement{
		Class:         e.Class().String(),
		Template:      e.Template,
		LocalPosition: e.Position.Mul(1 / scale),
		LocalRotation: FromQuat(e.Rotation),
		LocalOffset:   e.Offset / scale,
		Blocking:      e.Blocking,
		Owner:         NoOwner,
		Curve:         locomotion.NoCurve,
	}
	if c, ok := e.Kind.(registry.Container); ok {
		p.Style = c.Style.String()
	}
	if m := e.Motion; m != nil {
		p.Curve = m.Curve
		p.Motion = &Motion{Speed: m.Speed, WalkRadius: m.WalkRadius / scale, Circular: m.Circular}
	}
	return p
}

// Restore clears reg and curves and rebuilds them from l on planet. The
// layout must have passed Validate.
func Restore(l *Layout, planet surface.Planet, reg *registry.Registry, curves *curve.Set, ctrl locomotion.Controller) {
	reg.Clear()
	curves.Clear()

	scale := planet.Scale()
	for _, cd := range l.Curves {
		pts := make([]curve.Point, len(cd.Points))
		copy(pts, cd.Points)
		for i := range pts {
			pts[i].Position = surface.FromLocal(pts[i].Position, planet.Radius)
		}
		curves.Add(curve.NewPath(pts, cd.Closed))
	}

	attachmentOf := make(map[int]int)
	for i, p := range l.Placements {
		if p.Owner != NoOwner {
			attachmentOf[p.Owner] = i
		}
	}

	for i, p := range l.Placements {
		class, _ := placement.ParseClass(p.Class)
		switch class {
		case placement.ClassAttachment:
			continue
		case placement.ClassContainer:
			a := l.Placements[attachmentOf[i]]
			c := entity(p, scale, ctrl, curves)
			c.Kind = registry.Container{Style: registry.ParseStyle(p.Style)}
			att := entity(a, scale, ctrl, curves)
			att.Kind = registry.Attachment{Hidden: registry.ParseStyle(p.Style) == registry.StyleHiding}
			reg.AddPair(c, att)
		case placement.ClassCollectible:
			e := entity(p, scale, ctrl, curves)
			e.Kind = registry.Collectible{}
			reg.Add(e)
		default:
			e := entity(p, scale, ctrl, curves)
			e.Kind = registry.Ordinary{}
			reg.Add(e)
		}
	}
}

func entity(p Placement, scale float64, ctrl locomotion.Controller, curves *curve.Set) registry.Entity {
	e := registry.Entity{
		Template: p.Template,
		Position: p.LocalPosition.Mul(scale),
		Rotation: p.LocalRotation.Rotation(),
		Blocking: p.Blocking,
		Offset:   p.LocalOffset * scale,
	}
	if p.Motion != nil || p.Curve != locomotion.NoCurve {
		m := Motion{}
		if p.Motion != nil {
			m = *p.Motion
		}
		st := locomotion.NewState(m.Speed, m.WalkRadius*scale, e.Offset, m.Circular)
		st.Curve = p.Curve
		ctrl.Init(st, e.Position, curves)
		e.Motion = st
	}
	return e
}
