package simulation

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

func newTestSimulation(t testing.TB, p Params, agents []Agent, opts Options) *Simulation {
	t.Helper()
	sim, err := NewSimulation(p, agents, opts)
	if err != nil {
		t.Fatalf("NewSimulation() error = %v", err)
	}
	t.Cleanup(sim.Shutdown)
	return sim
}

func TestInitialize_Defaults(t *testing.T) {
	sim, err := Initialize(nil, nil)
	if err != nil {
		t.Fatalf("Initialize(nil) error = %v", err)
	}
	defer sim.Shutdown()

	if sim.Len() != 100 {
		t.Errorf("Len() = %d; want 100", sim.Len())
	}
	f := sim.Frame()
	if f.Index != 0 {
		t.Errorf("spawn frame index = %d; want 0", f.Index)
	}
	for i, tr := range f.Transforms {
		a, err := sim.Agent(i)
		if err != nil {
			t.Fatal(err)
		}
		if tr.Position != a.Position {
			t.Fatalf("spawn transform %d at %s; agent at %s", i, geometry.Format(tr.Position), geometry.Format(a.Position))
		}
	}
}

func TestInitialize_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSpeed = 1 // below minSpeed
	if _, err := Initialize(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Initialize() = %v; want ErrInvalidConfig", err)
	}
}

func TestNewSimulation_Errors(t *testing.T) {
	p := testParams()
	tests := []struct {
		name   string
		agents []Agent
		opts   Options
		want   error
	}{
		{"no agents", nil, Options{}, ErrAgentCount},
		{"unknown strategy", make([]Agent, 3), Options{Strategy: "gpu"}, ErrInvalidConfig},
		{"negative workers", make([]Agent, 3), Options{Workers: -2}, ErrInvalidConfig},
		{"buffer too large", make([]Agent, 1000), Options{MaxNeighborBufferBytes: 1 << 20}, ErrNeighborBufferTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSimulation(p, tt.agents, tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("NewSimulation() = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestAdvance_InvalidDelta(t *testing.T) {
	sim := newTestSimulation(t, testParams(), Spawn(10, 1, 1, 2), Options{Strategy: StrategySerial})
	for _, dt := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		if err := sim.Advance(dt); !errors.Is(err, ErrInvalidDelta) {
			t.Errorf("Advance(%v) = %v; want ErrInvalidDelta", dt, err)
		}
	}
	if err := sim.Advance(0); err != nil {
		t.Errorf("Advance(0) = %v", err)
	}
	if got := sim.Frame().Index; got != 1 {
		t.Errorf("frame index = %d; want 1 (rejected deltas must not count)", got)
	}
}

func TestAdvance_EndToEndSeparation(t *testing.T) {
	p, agents := threeAgents()
	sim := newTestSimulation(t, p, agents, Options{Strategy: StrategySerial})
	if err := sim.Advance(0.1); err != nil {
		t.Fatal(err)
	}
	a, err := sim.Agent(0)
	if err != nil {
		t.Fatal(err)
	}
	// the only steering was separation: the velocity gained -x and -y components
	if a.Velocity[0] >= 0 || a.Velocity[1] >= 0 {
		t.Errorf("velocity = %s; want it turned away from (1,0,0) and (0,1,0)", geometry.Format(a.Velocity))
	}
	if a.Acceleration != geometry.Zero {
		t.Errorf("acceleration after the frame = %s; want zero", geometry.Format(a.Acceleration))
	}
	if len(a.Neighbors) != 2 {
		t.Errorf("neighbors = %v; want both others", a.Neighbors)
	}
}

// runFlock advances a fresh simulation and returns its final transforms.
func runFlock(t *testing.T, strategy Strategy, pipelined bool, agents []Agent, frames int) []geometry.Transform {
	t.Helper()
	p := DefaultConfig().Params()
	sim := newTestSimulation(t, p, agents, Options{
		Strategy:   strategy,
		Pipelined:  pipelined,
		Workers:    3,
		MinJobSize: 16,
		BatchSize:  32,
	})
	for f := 0; f < frames; f++ {
		if err := sim.Advance(1.0 / 60); err != nil {
			t.Fatal(err)
		}
	}
	if got := sim.Sync().Index; got != uint64(frames) {
		t.Fatalf("Sync() frame = %d; want %d", got, frames)
	}
	return sim.CopyTransforms(nil)
}

func TestStrategies_AreBitIdentical(t *testing.T) {
	agents := Spawn(500, 853, 1, 2)
	const frames = 50
	want := runFlock(t, StrategySerial, false, agents, frames)

	for _, strategy := range []Strategy{StrategySerial, StrategyPool, StrategyTasks} {
		for _, pipelined := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/pipelined=%t", strategy, pipelined), func(t *testing.T) {
				got := runFlock(t, strategy, pipelined, agents, frames)
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("agent %d diverged: %s vs %s", i, got[i], want[i])
					}
				}
			})
		}
	}
}

func TestPipelined_FrameFreshness(t *testing.T) {
	sim := newTestSimulation(t, DefaultConfig().Params(), Spawn(300, 3, 1, 2), Options{
		Strategy:  StrategyPool,
		Pipelined: true,
		Workers:   2,
	})
	for k := uint64(1); k <= 20; k++ {
		if err := sim.Advance(0.02); err != nil {
			t.Fatal(err)
		}
		if got := sim.Frame().Index; got != k && got != k-1 {
			t.Fatalf("after Advance #%d Frame() = %d; want %d or %d", k, got, k-1, k)
		}
	}
	if got := sim.Sync().Index; got != 20 {
		t.Errorf("Sync() = %d; want 20", got)
	}
	if sim.InFlight() {
		t.Error("InFlight() after Sync")
	}
}

func TestCopyTransforms_IsOwned(t *testing.T) {
	sim := newTestSimulation(t, testParams(), Spawn(5, 9, 1, 2), Options{Strategy: StrategySerial})
	cp := sim.CopyTransforms(nil)
	cp[0].Position = geometry.Vec3{42, 42, 42}
	if sim.Frame().Transforms[0].Position == cp[0].Position {
		t.Error("CopyTransforms() aliases the published frame")
	}

	buf := make([]geometry.Transform, 0, 16)
	if got := sim.CopyTransforms(buf); len(got) != 5 || &got[0] != &buf[:1][0] {
		t.Error("CopyTransforms() should reuse dst capacity")
	}
}

func TestShutdown_DrainsAndCloses(t *testing.T) {
	sim, err := NewSimulation(DefaultConfig().Params(), Spawn(400, 5, 1, 2), Options{
		Strategy:  StrategyTasks,
		Pipelined: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := sim.Advance(0.016); err != nil {
			t.Fatal(err)
		}
	}
	sim.Shutdown()

	if got := sim.Frame().Index; got != 3 {
		t.Errorf("frame after Shutdown = %d; want the drained frame 3", got)
	}
	if got := len(sim.Frame().Transforms); got != 400 {
		t.Errorf("published transforms after Shutdown = %d; want 400", got)
	}
	for _, dt := range []float64{0.016, math.NaN(), -1} {
		if err := sim.Advance(dt); !errors.Is(err, ErrClosed) {
			t.Errorf("Advance(%v) after Shutdown = %v; want ErrClosed", dt, err)
		}
	}
	if _, err := sim.Agent(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Agent() after Shutdown = %v; want ErrClosed", err)
	}
	sim.Shutdown() // idempotent
}

func TestStats(t *testing.T) {
	sim := newTestSimulation(t, testParams(), Spawn(20, 2, 1, 2), Options{Strategy: StrategySerial})
	for i := 0; i < 4; i++ {
		_ = sim.Advance(0.01)
	}
	st := sim.Stats()
	if st.Frames != 4 {
		t.Errorf("Frames = %d; want 4", st.Frames)
	}
	if st.TotalStep < st.LastStep || st.MeanStep() > st.TotalStep {
		t.Errorf("inconsistent stats %+v", st)
	}
	if (Stats{}).MeanStep() != 0 {
		t.Error("MeanStep() of no frames should be 0")
	}
}

func BenchmarkAdvance(b *testing.B) {
	agents := Spawn(1000, 853, 1, 2)
	for _, strategy := range []Strategy{StrategySerial, StrategyPool, StrategyTasks} {
		for _, pipelined := range []bool{false, true} {
			b.Run(fmt.Sprintf("%s/pipelined=%t", strategy, pipelined), func(b *testing.B) {
				sim := newTestSimulation(b, DefaultConfig().Params(), agents, Options{Strategy: strategy, Pipelined: pipelined})
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					_ = sim.Advance(1.0 / 60)
				}
				sim.Sync()
			})
		}
	}
}
