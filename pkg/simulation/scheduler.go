package simulation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

// Simulation owns one flock and advances it frame by frame.
//
// In synchronous mode Advance returns once the frame is published. In pipelined
// mode Advance waits for the previous frame, starts the new one in the background
// and returns at once, so Frame may lag one frame behind.
//
// Advance, Sync, CopyTransforms, Agent and Shutdown must be called from the
// goroutine driving the simulation or be otherwise serialized; Frame and
// InFlight may be called from anywhere.
type Simulation struct {
	params    Params
	strategy  Strategy
	pipelined bool
	log       *zap.Logger

	store  *store
	exec   Executor
	stages []stage

	mu      sync.Mutex    // serializes the driver calls
	index   uint64        // last launched frame
	pending chan struct{} // closed when the background frame completes
	closed  bool

	published atomic.Pointer[Frame]
	inFlight  atomic.Bool
	frames    atomic.Uint64
	lastStep  atomic.Duration
	totalStep atomic.Duration
}

// Stats summarizes the frames computed so far.
type Stats struct {
	Frames    uint64
	LastStep  time.Duration
	TotalStep time.Duration
}

// MeanStep is the average wall time of one frame.
func (s Stats) MeanStep() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.TotalStep / time.Duration(s.Frames)
}

// Initialize validates cfg, spawns cfg.AgentCount agents from cfg.Seed and
// returns a simulation with frame 0 published. A nil cfg means DefaultConfig.
func Initialize(cfg *Config, log *zap.Logger) (*Simulation, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	agents := Spawn(cfg.AgentCount, cfg.Seed, cfg.SpawnExtent, cfg.InitSpeed)
	return NewSimulation(cfg.Params(), agents, cfg.Options(log))
}

// NewSimulation builds a simulation from explicit initial agents.
func NewSimulation(p Params, agents []Agent, opts Options) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyPool
	}
	if !opts.Strategy.valid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, opts.Strategy)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, opts.Workers)
	}
	if opts.MaxNeighborBufferBytes <= 0 {
		opts.MaxNeighborBufferBytes = defaultMaxNeighborBufferBytes
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	st, err := newStore(agents, opts.MaxNeighborBufferBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate agent store: %w", err)
	}

	s := &Simulation{
		params:    p,
		strategy:  opts.Strategy,
		pipelined: opts.Pipelined,
		log:       log,
		store:     st,
		exec:      newExecutor(opts),
		stages:    stagesFor(opts.Strategy),
	}

	spawn := st.slot(0)
	st.writeTransforms(&s.params, spawn.Transforms)
	spawn.Index = 0
	s.published.Store(spawn)

	bufBytes, _ := neighborBufferBytes(st.n)
	log.Info("simulation initialized",
		zap.Int("agents", st.n),
		zap.String("strategy", string(s.strategy)),
		zap.Bool("pipelined", s.pipelined),
		zap.Int("workers", s.exec.Workers()),
		zap.Int64("neighborBufferBytes", bufBytes),
	)
	return s, nil
}

// Advance computes one frame of dt seconds.
func (s *Simulation) Advance(dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDelta, dt)
	}
	s.await()

	s.index++
	job := &frameJob{
		store:  s.store,
		params: &s.params,
		dt:     dt,
		out:    s.store.slot(s.index).Transforms,
	}
	if !s.pipelined {
		s.runFrame(job, s.index)
		return nil
	}

	done := make(chan struct{})
	s.pending = done
	s.inFlight.Store(true)
	go func(index uint64) {
		defer close(done)
		s.runFrame(job, index)
	}(s.index)
	return nil
}

func (s *Simulation) runFrame(job *frameJob, index uint64) {
	start := time.Now()
	runStages(s.exec, s.stages, job)

	frame := s.store.slot(index)
	frame.Index = index
	s.published.Store(frame)
	s.inFlight.Store(false)

	took := time.Since(start)
	s.frames.Inc()
	s.lastStep.Store(took)
	s.totalStep.Add(took)
}

// await blocks until the background frame, if any, is published. s.mu must be held.
func (s *Simulation) await() {
	if s.pending != nil {
		<-s.pending
		s.pending = nil
	}
}

// Frame returns the last fully published frame. It stays valid until the next Advance.
func (s *Simulation) Frame() *Frame {
	return s.published.Load()
}

// InFlight reports whether a background frame is being computed.
func (s *Simulation) InFlight() bool {
	return s.inFlight.Load()
}

// Sync waits for any in-flight frame and returns the newest frame.
func (s *Simulation) Sync() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.await()
	return s.published.Load()
}

// CopyTransforms appends the transforms of the last published frame to dst[:0].
func (s *Simulation) CopyTransforms(dst []geometry.Transform) []geometry.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(dst[:0], s.published.Load().Transforms...)
}

// Len returns the number of agents.
func (s *Simulation) Len() int {
	return len(s.published.Load().Transforms)
}

// Agent returns the state of agent i after the newest frame. Acceleration is
// zero between frames, the integrator consumes it.
func (s *Simulation) Agent(i int) (AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return AgentState{}, ErrClosed
	}
	s.await()
	if i < 0 || i >= s.store.n {
		return AgentState{}, fmt.Errorf("%w: agent %d out of range [0, %d)", ErrAgentCount, i, s.store.n)
	}
	return s.store.state(i), nil
}

func (s *Simulation) Params() Params { return s.params }

func (s *Simulation) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		LastStep:  s.lastStep.Load(),
		TotalStep: s.totalStep.Load(),
	}
}

// Shutdown waits for the in-flight frame, stops the workers and releases the
// agent arrays. The last published frame stays readable. Calling it again is a no-op.
func (s *Simulation) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.await()
	s.exec.Close()
	s.store.release(s.index)
	s.closed = true

	st := s.Stats()
	s.log.Info("simulation shut down",
		zap.Uint64("frames", st.Frames),
		zap.Duration("meanStep", st.MeanStep()),
	)
}
