package geometry

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is the rigid transform handed to the renderer for one agent.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// NewTransform builds the transform of an agent at position heading along dir.
func NewTransform(position, dir, scale Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: LookRotation(dir, Up),
		Scale:    scale,
	}
}

// Matrix composes translation * rotation * scale into a column-major 4x4 matrix.
func (t Transform) Matrix() mgl64.Mat4 {
	tr := mgl64.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	sc := mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(t.Rotation.Mat4()).Mul4(sc)
}

// Heading returns the world direction of the local Forward axis.
func (t Transform) Heading() Vec3 {
	return t.Rotation.Rotate(Forward)
}

// String implements the fmt.Stringer interface.
func (t Transform) String() string {
	return fmt.Sprintf("pos:%s heading:%s", Format(t.Position), Format(t.Heading()))
}
