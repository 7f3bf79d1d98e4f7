package simulation

import (
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

// Snapshot is an owned copy of one published frame, handed to the consumer.
type Snapshot struct {
	Frame      uint64
	Transforms []geometry.Transform
	Stats      Stats
}

// WorldActor drives a Simulation from tick messages.
//
//   - *durationpb.Duration advances one frame by that elapsed time
//   - *emptypb.Empty waits for the in-flight frame and pushes it
type WorldActor struct {
	cfg *Config
	log *zap.Logger
	sim *Simulation

	// Communication with the consumer
	snapshotCh chan<- *Snapshot

	// --- Benchmark Stats ---
	ticks       int
	dropped     int
	lastFrames  uint64
	lastLogTime time.Time
}

// Enforce interface compliance
var _ actor.Actor = (*WorldActor)(nil)

// NewWorldActor creates the world logic unit. The simulation itself is built in PreStart.
func NewWorldActor(snapshotCh chan<- *Snapshot, cfg *Config, log *zap.Logger) *WorldActor {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorldActor{
		cfg:         cfg,
		log:         log,
		snapshotCh:  snapshotCh,
		lastLogTime: time.Now(),
	}
}

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	sim, err := Initialize(w.cfg, w.log)
	if err != nil {
		return fmt.Errorf("world cannot start: %w", err)
	}
	w.sim = sim
	ctx.ActorSystem().Logger().Infof("World is ready with %d boids", sim.Len())
	return nil
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Info("World Started.")
		w.pushSnapshot(w.sim.Frame())

	// One frame, driven by the game loop
	case *durationpb.Duration:
		if err := msg.CheckValid(); err != nil {
			ctx.Err(fmt.Errorf("%w: %v", ErrInvalidDelta, err))
			return
		}
		if err := w.sim.Advance(msg.AsDuration().Seconds()); err != nil {
			ctx.Err(err)
			return
		}
		w.ticks++
		w.logBenchmarks(ctx)
		w.pushSnapshot(w.sim.Frame())

	// Forced synchronous read
	case *emptypb.Empty:
		w.pushSnapshot(w.sim.Sync())

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) logBenchmarks(ctx *actor.ReceiveContext) {
	if time.Since(w.lastLogTime) >= time.Second {
		st := w.sim.Stats()
		ctx.Logger().Infof("📊 FRAME RATE: %d/sec (Ticks: %d, Dropped snapshots: %d) | Mean step: %s | Boids: %d",
			st.Frames-w.lastFrames, w.ticks, w.dropped, st.MeanStep(), w.sim.Len())
		w.ticks = 0
		w.dropped = 0
		w.lastFrames = st.Frames
		w.lastLogTime = time.Now()
	}
}

func (w *WorldActor) pushSnapshot(f *Frame) {
	if w.snapshotCh == nil {
		return
	}
	snap := &Snapshot{
		Frame:      f.Index,
		Transforms: append([]geometry.Transform(nil), f.Transforms...),
		Stats:      w.sim.Stats(),
	}
	select {
	case w.snapshotCh <- snap:
	default:
		// consumer busy, skip frame
		w.dropped++
	}
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	if w.sim != nil {
		w.sim.Shutdown()
	}
	ctx.ActorSystem().Logger().Info("World is shutdown...")
	return nil
}
