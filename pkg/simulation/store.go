package simulation

import (
	"fmt"
	"math"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

// Agent is the initial kinematic state of one boid.
type Agent struct {
	Position geometry.Vec3
	Velocity geometry.Vec3
}

// AgentState is a read-only copy of one agent taken between frames.
type AgentState struct {
	Position     geometry.Vec3
	Velocity     geometry.Vec3
	Acceleration geometry.Vec3
	Neighbors    []int32
}

// Frame is a fully integrated set of transforms. Index 0 is the spawn state.
type Frame struct {
	Index      uint64
	Transforms []geometry.Transform
}

const neighborIndexSize = 4 // bytes per int32 entry

// store owns the per-agent arrays. During a phase every worker writes
// only the indices of its own range.
type store struct {
	n             int
	positions     []geometry.Vec3
	velocities    []geometry.Vec3
	accelerations []geometry.Vec3

	// neighbor row i lives at neighbors[i*n : i*n+counts[i]]
	neighbors []int32
	counts    []int32

	slots [2]Frame
}

// neighborBufferBytes returns the size of the n*n neighbor buffer, and false on overflow.
func neighborBufferBytes(n int) (int64, bool) {
	if n < 0 {
		return 0, false
	}
	nn := int64(n)
	if nn != 0 && nn > math.MaxInt64/neighborIndexSize/nn {
		return 0, false
	}
	return nn * nn * neighborIndexSize, true
}

func newStore(agents []Agent, maxBufferBytes int64) (*store, error) {
	n := len(agents)
	if n == 0 {
		return nil, fmt.Errorf("%w: at least one agent is required", ErrAgentCount)
	}
	need, ok := neighborBufferBytes(n)
	if !ok || need > maxBufferBytes || n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d agents need %d bytes, limit is %d",
			ErrNeighborBufferTooLarge, n, need, maxBufferBytes)
	}

	s := &store{
		n:             n,
		positions:     make([]geometry.Vec3, n),
		velocities:    make([]geometry.Vec3, n),
		accelerations: make([]geometry.Vec3, n),
		neighbors:     make([]int32, n*n),
		counts:        make([]int32, n),
	}
	for i, a := range agents {
		s.positions[i] = a.Position
		s.velocities[i] = a.Velocity
	}
	for k := range s.slots {
		s.slots[k].Transforms = make([]geometry.Transform, n)
	}
	return s, nil
}

// Neighbors returns the neighbor ids of agent i found in the current frame.
// The slice aliases the buffer and must not be modified.
func (s *store) Neighbors(i int) []int32 {
	row := i * s.n
	return s.neighbors[row : row+int(s.counts[i])]
}

// slot returns the transform buffer written by the given frame index.
func (s *store) slot(index uint64) *Frame {
	return &s.slots[index%2]
}

func (s *store) state(i int) AgentState {
	nb := s.Neighbors(i)
	cp := make([]int32, len(nb))
	copy(cp, nb)
	return AgentState{
		Position:     s.positions[i],
		Velocity:     s.velocities[i],
		Acceleration: s.accelerations[i],
		Neighbors:    cp,
	}
}

// release drops the working arrays. The last published frame stays readable.
func (s *store) release(published uint64) {
	s.positions = nil
	s.velocities = nil
	s.accelerations = nil
	s.neighbors = nil
	s.counts = nil
	s.slot(published + 1).Transforms = nil
}
