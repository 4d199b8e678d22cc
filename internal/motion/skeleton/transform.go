package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a rigid transform with scale. Scale is applied first, then
// rotation, then translation. Inverse assumes uniform scale.
type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// NewTransform builds a unit-scale transform.
func NewTransform(translation mgl64.Vec3, rotation mgl64.Quat) Transform {
	return Transform{
		Translation: translation,
		Rotation:    rotation.Normalize(),
		Scale:       mgl64.Vec3{1, 1, 1},
	}
}

// YawTransform builds a transform at translation facing yaw radians about Z.
func YawTransform(translation mgl64.Vec3, yaw float64) Transform {
	return NewTransform(translation, mgl64.QuatRotate(yaw, mgl64.Vec3{0, 0, 1}))
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func safeInv(v float64) float64 {
	if math.Abs(v) < 1e-12 {
		return 0
	}
	return 1 / v
}

// TransformPoint maps a point from this transform's local space to its parent space.
func (t Transform) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(mulElem(p, t.Scale)).Add(t.Translation)
}

// TransformVector maps a direction, ignoring translation.
func (t Transform) TransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(mulElem(v, t.Scale))
}

// InverseTransformPoint maps a parent-space point into this transform's local space.
func (t Transform) InverseTransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.Inverse().TransformPoint(p)
}

// InverseTransformVector maps a parent-space direction into local space.
func (t Transform) InverseTransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Inverse().TransformVector(v)
}

// Compose returns the transform of child expressed in t's parent space.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Translation: t.TransformPoint(child.Translation),
		Rotation:    t.Rotation.Mul(child.Rotation).Normalize(),
		Scale:       mulElem(t.Scale, child.Scale),
	}
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() Transform {
	invScale := mgl64.Vec3{safeInv(t.Scale[0]), safeInv(t.Scale[1]), safeInv(t.Scale[2])}
	invRot := t.Rotation.Inverse()
	invTrans := mulElem(invRot.Rotate(t.Translation.Mul(-1)), invScale)
	return Transform{Translation: invTrans, Rotation: invRot, Scale: invScale}
}

// Relative expresses other in t's local frame.
func (t Transform) Relative(other Transform) Transform {
	return t.Inverse().Compose(other)
}

// Yaw returns the heading about Z in radians.
func (t Transform) Yaw() float64 {
	return QuatYaw(t.Rotation)
}

// QuatYaw extracts the rotation about Z from a quaternion.
func QuatYaw(q mgl64.Quat) float64 {
	x, y, z := q.V[0], q.V[1], q.V[2]
	return math.Atan2(2*(q.W*z+x*y), 1-2*(y*y+z*z))
}

// Blend interpolates translation and scale linearly and rotation spherically.
func Blend(a, b Transform, alpha float64) Transform {
	rb := b.Rotation
	if a.Rotation.Dot(rb) < 0 {
		rb = rb.Scale(-1)
	}
	return Transform{
		Translation: a.Translation.Add(b.Translation.Sub(a.Translation).Mul(alpha)),
		Rotation:    mgl64.QuatSlerp(a.Rotation, rb, alpha).Normalize(),
		Scale:       a.Scale.Add(b.Scale.Sub(a.Scale).Mul(alpha)),
	}
}

// ApproxEqual compares two transforms within threshold. Quaternions q and
// -q are treated as equal.
func (t Transform) ApproxEqual(o Transform, threshold float64) bool {
	if !t.Translation.ApproxEqualThreshold(o.Translation, threshold) {
		return false
	}
	if !t.Scale.ApproxEqualThreshold(o.Scale, threshold) {
		return false
	}
	return math.Abs(math.Abs(t.Rotation.Dot(o.Rotation))-1) <= threshold
}

// WrapAngle wraps a into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDelta returns the shortest signed difference a - b.
func AngleDelta(a, b float64) float64 {
	return WrapAngle(a - b)
}

// LengthSquared returns |v|².
func LengthSquared(v mgl64.Vec3) float64 {
	return v.Dot(v)
}
