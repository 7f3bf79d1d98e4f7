package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon Precision constant used for float64 comparisons and degenerate lengths.
const (
	Epsilon = 1e-9
)

// Vec3 is the 3D vector used across the kernel.
// We alias mgl64 so callers get its full arithmetic (Add, Sub, Mul, Dot, Cross, Len, ...)
// and can write literals like Vec3{1, 2, 3}.
type Vec3 = mgl64.Vec3

// Quat is a rotation quaternion.
type Quat = mgl64.Quat

var (
	// Zero is the null vector.
	Zero = Vec3{0, 0, 0}
	// Up is the fixed up-vector used to derive agent orientation.
	Up = Vec3{0, 1, 0}
	// Forward is the local axis an orientation maps onto the heading.
	Forward = Vec3{0, 0, 1}

	// lookFallbackUp replaces Up when the heading is (anti)parallel to it.
	lookFallbackUp = Vec3{0, 0, 1}
)

// SafeNormalize returns a unit vector in the same direction as v.
// Returns fallback if the length is effectively zero.
func SafeNormalize(v, fallback Vec3) Vec3 {
	l := v.Len()
	if l < Epsilon || math.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// LookRotation returns the rotation that maps the local Forward axis (+Z) onto forward,
// with the local +Y axis kept as close as possible to up.
// A zero forward gives the identity rotation. When forward is parallel to up,
// +Z is used as the reference axis instead.
func LookRotation(forward, up Vec3) Quat {
	f := SafeNormalize(forward, Zero)
	if f == Zero {
		return mgl64.QuatIdent()
	}
	right := up.Cross(f)
	if right.Len() < Epsilon {
		right = lookFallbackUp.Cross(f)
		if right.Len() < Epsilon {
			right = Vec3{1, 0, 0}.Cross(f)
		}
	}
	right = right.Normalize()
	u := f.Cross(right)

	basis := mgl64.Mat3FromCols(right, u, f)
	return mgl64.Mat4ToQuat(basis.Mat4()).Normalize()
}

// ApproxEq checks if two vectors are approximately equal using the Epsilon constant.
func ApproxEq(a, b Vec3) bool {
	return math.Abs(a[0]-b[0]) <= Epsilon &&
		math.Abs(a[1]-b[1]) <= Epsilon &&
		math.Abs(a[2]-b[2]) <= Epsilon
}

// Format prints a vector with two decimals, e.g. (1.00, 2.00, 3.00).
func Format(v Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v[0], v[1], v[2])
}
