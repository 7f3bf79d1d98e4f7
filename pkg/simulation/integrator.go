package simulation

import (
	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

// integrate advances agents [from, to) by dt and writes their transforms into out.
// The acceleration accumulated by the rules is consumed and reset to zero.
func (s *store) integrate(p *Params, dt float64, out []geometry.Transform, from, to int) {
	for i := from; i < to; i++ {
		prev := s.velocities[i]
		v := prev.Add(s.accelerations[i].Mul(dt))

		speed := v.Len()
		var dir geometry.Vec3
		if speed < geometry.Epsilon {
			// acceleration cancelled the velocity: keep the last heading
			dir = geometry.SafeNormalize(prev, geometry.Forward)
		} else {
			dir = v.Mul(1 / speed)
		}
		v = dir.Mul(geometry.Clamp(speed, p.MinSpeed, p.MaxSpeed))

		pos := s.positions[i].Add(v.Mul(dt))
		s.positions[i] = pos
		s.velocities[i] = v
		s.accelerations[i] = geometry.Zero

		out[i] = geometry.NewTransform(pos, dir, p.Scale)
	}
}

// writeTransforms fills out from the current state without moving anything.
// It is used for the spawn frame.
func (s *store) writeTransforms(p *Params, out []geometry.Transform) {
	for i := 0; i < s.n; i++ {
		out[i] = geometry.NewTransform(s.positions[i], geometry.SafeNormalize(s.velocities[i], geometry.Forward), p.Scale)
	}
}
