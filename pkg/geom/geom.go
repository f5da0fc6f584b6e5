package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3, Quat and Mat4 are the mgl64 types; aliases keep callers free of
// a direct mathgl import.
type (
	Vec3 = mgl64.Vec3
	Quat = mgl64.Quat
	Mat4 = mgl64.Mat4
)

const (
	// Epsilon is the horizontal distance below which the camera counts as
	// directly above or below a note.
	Epsilon = 1e-4

	// antiParallel is the dot product at or below which a normal is treated
	// as pointing exactly away from Forward.
	antiParallel = -0.999999
)

var (
	// Up is the world vertical axis.
	Up = Vec3{0, 1, 0}
	// Forward is the direction a note's visible face points in its own frame.
	Forward = Vec3{0, 0, 1}
)

// Identity returns the identity orientation.
func Identity() Quat {
	return mgl64.QuatIdent()
}

// OrientationFacingCamera returns a yaw-only rotation that turns a note at
// notePosition so its face points at the camera while staying upright.
func OrientationFacingCamera(notePosition, cameraPosition Vec3) Quat {
	dx := cameraPosition[0] - notePosition[0]
	dz := cameraPosition[2] - notePosition[2]
	if !finite(dx) || !finite(dz) {
		return Identity()
	}

	dist := math.Hypot(dx, dz)
	if !finite(dist) || dist < Epsilon {
		return Identity()
	}

	yaw := math.Atan2(dx/dist, dz/dist)
	if !finite(yaw) {
		return Identity()
	}
	return mgl64.QuatRotate(yaw, Up)
}

// OrientationFromSurfaceNormal returns the shortest rotation that maps
// Forward onto normal. It is used when a surface hit gives a normal but no
// full pose.
func OrientationFromSurfaceNormal(normal Vec3) Quat {
	if !IsFiniteVec3(normal) {
		return Identity()
	}
	l := normal.Len()
	if !finite(l) || l < Epsilon {
		return Identity()
	}
	n := normal.Mul(1 / l)

	d := Forward.Dot(n)
	if d <= antiParallel {
		return mgl64.QuatRotate(math.Pi, Up)
	}

	// Half-way construction; stays well conditioned away from d == -1.
	q := Quat{W: 1 + d, V: Forward.Cross(n)}
	return normalize(q)
}

// PoseToTransform builds a rigid 4x4 transform from a position and an
// orientation. A non-normalizable orientation is treated as identity and a
// non-finite position as the origin.
func PoseToTransform(position Vec3, orientation Quat) Mat4 {
	m := normalize(orientation).Mat4()
	if IsFiniteVec3(position) {
		m[12], m[13], m[14] = position[0], position[1], position[2]
	}
	return m
}

// TransformToPose extracts the position and orientation of a rigid
// transform. The rotation block is re-orthonormalized before conversion, so
// small drift or uniform scale does not leak into the quaternion. The
// returned quaternion is canonical (W >= 0).
func TransformToPose(m Mat4) (Vec3, Quat) {
	pos := Vec3{m[12], m[13], m[14]}
	if !IsFiniteVec3(pos) {
		pos = Vec3{}
	}
	return pos, rotationOf(m)
}

// Pose is a position plus orientation in some reference frame.
type Pose struct {
	Position    Vec3
	Orientation Quat
}

// Transform returns the pose as a 4x4 rigid transform.
func (p Pose) Transform() Mat4 {
	return PoseToTransform(p.Position, p.Orientation)
}

// PoseFromTransform is the inverse of Pose.Transform.
func PoseFromTransform(m Mat4) Pose {
	pos, q := TransformToPose(m)
	return Pose{Position: pos, Orientation: q}
}

// Canonical returns q normalized with a non-negative W. q and -q describe
// the same rotation; the canonical form makes them compare equal.
func Canonical(q Quat) Quat {
	q = normalize(q)
	if q.W < 0 {
		return Quat{W: -q.W, V: q.V.Mul(-1)}
	}
	return q
}

// IsFiniteVec3 reports whether every component of v is finite.
func IsFiniteVec3(v Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

// IsFiniteQuat reports whether every component of q is finite.
func IsFiniteQuat(q Quat) bool {
	return finite(q.W) && IsFiniteVec3(q.V)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func normalize(q Quat) Quat {
	if !IsFiniteQuat(q) {
		return Identity()
	}
	l := math.Sqrt(q.W*q.W + q.V.Dot(q.V))
	if !finite(l) || l < Epsilon {
		return Identity()
	}
	return Quat{W: q.W / l, V: q.V.Mul(1 / l)}
}

// rotationOf converts the upper 3x3 block of m to a canonical unit
// quaternion.
func rotationOf(m Mat4) Quat {
	c0 := Vec3{m[0], m[1], m[2]}
	c1 := Vec3{m[4], m[5], m[6]}
	if !IsFiniteVec3(c0) || !IsFiniteVec3(c1) {
		return Identity()
	}

	l0 := c0.Len()
	if l0 < Epsilon {
		return Identity()
	}
	c0 = c0.Mul(1 / l0)

	c1 = c1.Sub(c0.Mul(c0.Dot(c1)))
	l1 := c1.Len()
	if l1 < Epsilon {
		return Identity()
	}
	c1 = c1.Mul(1 / l1)
	c2 := c0.Cross(c1)

	rot := mgl64.Mat4FromCols(c0.Vec4(0), c1.Vec4(0), c2.Vec4(0), mgl64.Vec4{0, 0, 0, 1})
	return Canonical(mgl64.Mat4ToQuat(rot))
}
