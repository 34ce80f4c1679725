package curve

import "github.com/go-gl/mathgl/mgl64"

// DefaultLoopCloseDistance is how near the first point a new point must land
// to close an authored loop.
const DefaultLoopCloseDistance = 2.0

// Builder accumulates authored control points.
type Builder struct {
	LoopCloseDistance float64
	Size              float64
	Color             Color

	points []Point
	closed bool
}

// NewBuilder returns a builder with the given loop-close threshold.
func NewBuilder(loopClose float64) *Builder {
	if loopClose <= 0 {
		loopClose = DefaultLoopCloseDistance
	}
	return &Builder{LoopCloseDistance: loopClose, Size: 1, Color: Yellow}
}

// Add appends a point. Once three points exist, a point within
// LoopCloseDistance of the first closes the loop instead of being added;
// Add then reports closed=true and the builder accepts no more points.
func (b *Builder) Add(pos, normal mgl64.Vec3) (closed bool) {
	if b.closed {
		return true
	}
	if len(b.points) >= 3 && pos.Sub(b.points[0].Position).Len() <= b.LoopCloseDistance {
		b.closed = true
		return true
	}
	b.points = append(b.points, Point{Position: pos, Normal: normal, Size: b.Size, Color: b.Color})
	return false
}

// Len returns the number of points so far.
func (b *Builder) Len() int { return len(b.points) }

// Closed reports whether the loop has been closed.
func (b *Builder) Closed() bool { return b.closed }

// Build returns the path, or false when fewer than two points were placed.
func (b *Builder) Build() (*Path, bool) {
	if len(b.points) < 2 {
		return nil, false
	}
	return NewPath(b.points, b.closed), true
}

// Reset discards every point.
func (b *Builder) Reset() {
	b.points = nil
	b.closed = false
}
