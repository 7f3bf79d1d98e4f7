package simulation

import "github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"

// findNeighbors rebuilds the neighbor rows of agents [from, to).
//
// j is a neighbor of i when j != i, |p_j - p_i|² < distance² and the unit vector
// from i to j lies strictly inside i's forward cone. The relation uses i's heading
// only, so it is not symmetric. Candidates are scanned in ascending id order.
func (s *store) findNeighbors(p *Params, from, to int) {
	maxDistSqr := p.NeighborDistance * p.NeighborDistance
	for i := from; i < to; i++ {
		pos := s.positions[i]
		fwd := geometry.SafeNormalize(s.velocities[i], geometry.Forward)
		row := s.neighbors[i*s.n : (i+1)*s.n]
		count := 0
		for j := 0; j < s.n; j++ {
			if j == i {
				continue
			}
			toOther := s.positions[j].Sub(pos)
			if toOther.Dot(toOther) >= maxDistSqr {
				continue
			}
			if geometry.SafeNormalize(toOther, geometry.Zero).Dot(fwd) <= p.NeighborFovCosine {
				continue
			}
			row[count] = int32(j)
			count++
		}
		s.counts[i] = int32(count)
	}
}
