package simulation

import "github.com/lao-tseu-is-alive/go-flock-kernel/pkg/behavior"

// The rule passes accumulate into accelerations[i] in the fixed order
// Wall, Separation, Alignment, Cohesion. Running them fused or as separate
// passes performs the same additions per agent.

func wallParams(p *Params) behavior.WallParams {
	return behavior.WallParams{Scale: p.WallScale, Distance: p.WallDistance, Weight: p.WallWeight}
}

func (s *store) applyWall(p *Params, from, to int) {
	w := wallParams(p)
	for i := from; i < to; i++ {
		s.accelerations[i] = s.accelerations[i].Add(behavior.Wall(s.positions[i], w))
	}
}

func (s *store) applySeparation(p *Params, from, to int) {
	for i := from; i < to; i++ {
		if nb := s.Neighbors(i); len(nb) > 0 {
			s.accelerations[i] = s.accelerations[i].Add(behavior.Separation(s.positions[i], s.positions, nb, p.SeparationWeight))
		}
	}
}

func (s *store) applyAlignment(p *Params, from, to int) {
	for i := from; i < to; i++ {
		if nb := s.Neighbors(i); len(nb) > 0 {
			s.accelerations[i] = s.accelerations[i].Add(behavior.Alignment(s.velocities[i], s.velocities, nb, p.AlignmentWeight))
		}
	}
}

func (s *store) applyCohesion(p *Params, from, to int) {
	for i := from; i < to; i++ {
		if nb := s.Neighbors(i); len(nb) > 0 {
			s.accelerations[i] = s.accelerations[i].Add(behavior.Cohesion(s.positions[i], s.positions, nb, p.CohesionWeight))
		}
	}
}

// applyRules runs all four rules for each agent of the range in one pass,
// through the same code as the separate passes.
func (s *store) applyRules(p *Params, from, to int) {
	for i := from; i < to; i++ {
		s.applyWall(p, i, i+1)
		s.applySeparation(p, i, i+1)
		s.applyAlignment(p, i, i+1)
		s.applyCohesion(p, i, i+1)
	}
}
