package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

func TestNewStore_NeighborBufferLimit(t *testing.T) {
	agents := make([]Agent, 100)
	exact := int64(100 * 100 * neighborIndexSize)

	if _, err := newStore(agents, exact); err != nil {
		t.Errorf("newStore() at the limit: %v", err)
	}
	if _, err := newStore(agents, exact-1); !errors.Is(err, ErrNeighborBufferTooLarge) {
		t.Errorf("newStore() above the limit = %v; want ErrNeighborBufferTooLarge", err)
	}
	if _, err := newStore(nil, exact); !errors.Is(err, ErrAgentCount) {
		t.Errorf("newStore() without agents = %v; want ErrAgentCount", err)
	}
}

func TestNeighborBufferBytes(t *testing.T) {
	if got, ok := neighborBufferBytes(1000); !ok || got != 4_000_000 {
		t.Errorf("neighborBufferBytes(1000) = %d, %t; want 4000000, true", got, ok)
	}
	if _, ok := neighborBufferBytes(math.MaxInt64 / 2); ok {
		t.Error("neighborBufferBytes() should report overflow")
	}
}

func TestStore_NeighborRows(t *testing.T) {
	s := mustStore(t, make([]Agent, 4))
	copy(s.neighbors[4:], []int32{0, 2, 3})
	s.counts[1] = 2

	got := s.Neighbors(1)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Neighbors(1) = %v; want [0 2]", got)
	}
	if len(s.Neighbors(0)) != 0 {
		t.Errorf("Neighbors(0) = %v; want empty", s.Neighbors(0))
	}

	// state copies the row
	st := s.state(1)
	st.Neighbors[0] = 99
	if s.Neighbors(1)[0] != 0 {
		t.Error("state() must not alias the neighbor buffer")
	}
}

func TestStore_ReleaseKeepsPublishedFrame(t *testing.T) {
	s := mustStore(t, []Agent{{Position: geometry.Vec3{1, 2, 3}}})
	s.slot(4).Transforms[0].Position = geometry.Vec3{1, 2, 3}
	s.release(4)

	if s.positions != nil || s.neighbors != nil {
		t.Error("release() should drop the working arrays")
	}
	if got := s.slot(4).Transforms; len(got) != 1 || got[0].Position != (geometry.Vec3{1, 2, 3}) {
		t.Errorf("published slot = %v; want it kept", got)
	}
	if s.slot(5).Transforms != nil {
		t.Error("unpublished slot should be released")
	}
}
