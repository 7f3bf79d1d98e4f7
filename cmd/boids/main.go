package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/lao-tseu-is-alive/go-flock-kernel/internal/logger"
	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/simulation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "boids: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "configuration file (.json, .toml, .yaml)")
	frames := flag.Int("frames", 0, "stop after this many frames (0 = until interrupted)")
	fps := flag.Int("fps", 60, "frame rate of the driving loop")
	flag.Parse()
	if *fps <= 0 {
		return errors.New("fps must be > 0")
	}

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = simulation.LoadConfig(*configFile); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	system, err := actor.NewActorSystem("FlockWorld",
		actor.WithLogger(golog.New(golog.InfoLevel, os.Stdout)),
		actor.WithActorInitMaxRetries(1))
	if err != nil {
		return fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return fmt.Errorf("failed to start actor system: %w", err)
	}
	defer func() { _ = system.Stop(context.Background()) }()

	// Buffer to avoid blocking the world
	snapshotCh := make(chan *simulation.Snapshot, 10)
	worldPID, err := system.Spawn(ctx, "world", simulation.NewWorldActor(snapshotCh, cfg, log))
	if err != nil {
		return fmt.Errorf("failed to spawn world: %w", err)
	}

	frameTime := time.Second / time.Duration(*fps)
	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	log.Info("driving flock",
		zap.Int("agents", cfg.AgentCount),
		zap.Int("fps", *fps),
		zap.Int("frames", *frames),
	)

	var (
		sent int
		last *simulation.Snapshot
	)
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted", zap.Int("framesSent", sent))
			reportLast(log, last)
			return nil

		case snap := <-snapshotCh:
			last = snap

		case <-ticker.C:
			if *frames > 0 && sent >= *frames {
				final, err := finalSnapshot(ctx, worldPID, snapshotCh, uint64(sent))
				if err != nil {
					return err
				}
				reportLast(log, final)
				return nil
			}
			if err := actor.Tell(ctx, worldPID, durationpb.New(frameTime)); err != nil {
				return fmt.Errorf("failed to tick world: %w", err)
			}
			sent++
		}
	}
}

// finalSnapshot asks the world for a synchronous read and waits for it.
func finalSnapshot(ctx context.Context, pid *actor.PID, snapshotCh <-chan *simulation.Snapshot, want uint64) (*simulation.Snapshot, error) {
	if err := actor.Tell(ctx, pid, &emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("failed to sync world: %w", err)
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap := <-snapshotCh:
			// snapshots of earlier ticks may still be queued
			if snap.Frame >= want {
				return snap, nil
			}
		case <-timeout:
			return nil, errors.New("world did not answer the sync request")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func reportLast(log *zap.Logger, snap *simulation.Snapshot) {
	if snap == nil || len(snap.Transforms) == 0 {
		return
	}
	var centroid geometry.Vec3
	for _, t := range snap.Transforms {
		centroid = centroid.Add(t.Position)
	}
	centroid = centroid.Mul(1 / float64(len(snap.Transforms)))
	log.Info("last frame",
		zap.Uint64("frame", snap.Frame),
		zap.String("centroid", geometry.Format(centroid)),
		zap.String("first", snap.Transforms[0].String()),
		zap.Duration("meanStep", snap.Stats.MeanStep()),
	)
}
