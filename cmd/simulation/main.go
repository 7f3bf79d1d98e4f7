package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lao-tseu-is-alive/go-flock-kernel/internal/logger"
	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/simulation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simulation: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "configuration file (.json, .toml, .yaml)")
	frames := flag.Int("frames", 600, "number of frames to compute")
	dt := flag.Float64("dt", 1.0/60, "elapsed seconds per frame")
	agents := flag.Int("agents", 0, "override agentCount")
	compare := flag.Bool("compare", false, "run every strategy and check they agree")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = simulation.LoadConfig(*configFile); err != nil {
			return err
		}
	}
	if *agents > 0 {
		cfg.AgentCount = *agents
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if !*compare {
		_, err := runOnce(cfg, *frames, *dt, log)
		return err
	}

	var reference []geometry.Transform
	for _, strategy := range []simulation.Strategy{simulation.StrategySerial, simulation.StrategyPool, simulation.StrategyTasks} {
		for _, pipelined := range []bool{false, true} {
			c := *cfg
			c.Strategy = strategy
			c.Pipelined = pipelined
			got, err := runOnce(&c, *frames, *dt, log)
			if err != nil {
				return err
			}
			if reference == nil {
				reference = got
				continue
			}
			for i := range got {
				if got[i] != reference[i] {
					return fmt.Errorf("strategy %s (pipelined=%t) diverges at agent %d: %s vs %s",
						strategy, pipelined, i, got[i], reference[i])
				}
			}
		}
	}
	log.Info("all strategies agree", zap.Int("frames", *frames), zap.Int("agents", cfg.AgentCount))
	return nil
}

// runOnce computes frames and returns the transforms of the last one.
func runOnce(cfg *simulation.Config, frames int, dt float64, log *zap.Logger) ([]geometry.Transform, error) {
	sim, err := simulation.Initialize(cfg, log)
	if err != nil {
		return nil, err
	}
	defer sim.Shutdown()

	start := time.Now()
	for f := 0; f < frames; f++ {
		if err := sim.Advance(dt); err != nil {
			return nil, fmt.Errorf("frame %d: %w", f+1, err)
		}
	}
	final := sim.Sync()
	elapsed := time.Since(start)

	out := sim.CopyTransforms(nil)
	var centroid geometry.Vec3
	var speed float64
	for i := 0; i < sim.Len(); i++ {
		a, err := sim.Agent(i)
		if err != nil {
			return nil, err
		}
		centroid = centroid.Add(a.Position)
		speed += a.Velocity.Len()
	}
	n := float64(sim.Len())

	log.Info("run complete",
		zap.String("strategy", string(cfg.Strategy)),
		zap.Bool("pipelined", cfg.Pipelined),
		zap.Uint64("frame", final.Index),
		zap.Duration("elapsed", elapsed),
		zap.Duration("meanStep", sim.Stats().MeanStep()),
		zap.String("centroid", geometry.Format(centroid.Mul(1/n))),
		zap.Float64("meanSpeed", speed/n),
	)
	return out, nil
}
