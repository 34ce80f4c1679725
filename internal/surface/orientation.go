package surface

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// TangentFrame returns right and forward vectors spanning the tangent plane
// at up. The reference axis is WorldForward unless up is (nearly) parallel to
// it, in which case WorldRight is used.
func TangentFrame(up mgl64.Vec3) (right, forward mgl64.Vec3) {
	up = Direction(up)
	right = up.Cross(WorldForward)
	if right.Len() < 0.1 {
		right = up.Cross(WorldRight)
	}
	right = right.Normalize()
	forward = right.Cross(up).Normalize()
	return right, forward
}

// LookRotation returns the rotation whose +Z axis points along forward and
// whose +Y axis is as close to up as possible. Degenerate input falls back to
// Upright(up).
func LookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	if forward.Len() < Epsilon {
		return Upright(up)
	}
	f := forward.Normalize()
	r := up.Cross(f)
	if r.Len() < Epsilon {
		return Upright(up)
	}
	r = r.Normalize()
	u := f.Cross(r)
	m := mgl64.Mat3FromCols(r, u, f)
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize()
}

// Upright returns a rotation whose +Y axis is the given surface normal.
func Upright(normal mgl64.Vec3) mgl64.Quat {
	up := Direction(normal)
	_, forward := TangentFrame(up)
	return LookRotation(forward, up)
}

// Turn rotates q by deg degrees about the axis normal.
func Turn(q mgl64.Quat, normal mgl64.Vec3, deg float64) mgl64.Quat {
	spin := mgl64.QuatRotate(deg*math.Pi/180, Direction(normal))
	return spin.Mul(q).Normalize()
}
