package simulation

import "github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseNeighbors Phase = iota // rebuild neighbor rows
	PhaseRules                  // accumulate steering accelerations
	PhaseIntegrate              // move agents, write transforms
	PhasePublish                // swap the published frame
)

func (p Phase) String() string {
	switch p {
	case PhaseNeighbors:
		return "neighbors"
	case PhaseRules:
		return "rules"
	case PhaseIntegrate:
		return "integrate"
	case PhasePublish:
		return "publish"
	}
	return "unknown"
}

// frameJob carries what one frame's stages need.
type frameJob struct {
	store  *store
	params *Params
	dt     float64
	out    []geometry.Transform
}

// stage is one parallel-for over [0, n). Stages of a frame run strictly in
// sequence with a barrier in between.
type stage struct {
	phase Phase
	name  string
	run   func(j *frameJob, from, to int)
}

var (
	neighborStage = stage{PhaseNeighbors, "neighbors", func(j *frameJob, from, to int) {
		j.store.findNeighbors(j.params, from, to)
	}}
	integrateStage = stage{PhaseIntegrate, "integrate", func(j *frameJob, from, to int) {
		j.store.integrate(j.params, j.dt, j.out, from, to)
	}}
)

// fusedStages evaluate every rule of an agent in a single pass.
var fusedStages = []stage{
	neighborStage,
	{PhaseRules, "rules", func(j *frameJob, from, to int) { j.store.applyRules(j.params, from, to) }},
	integrateStage,
}

// chainedStages run each rule as its own dependent stage.
var chainedStages = []stage{
	neighborStage,
	{PhaseRules, "wall", func(j *frameJob, from, to int) { j.store.applyWall(j.params, from, to) }},
	{PhaseRules, "separation", func(j *frameJob, from, to int) { j.store.applySeparation(j.params, from, to) }},
	{PhaseRules, "alignment", func(j *frameJob, from, to int) { j.store.applyAlignment(j.params, from, to) }},
	{PhaseRules, "cohesion", func(j *frameJob, from, to int) { j.store.applyCohesion(j.params, from, to) }},
	integrateStage,
}

func stagesFor(strategy Strategy) []stage {
	if strategy == StrategyTasks {
		return chainedStages
	}
	return fusedStages
}

// runStages executes the stages of one frame on ex.
func runStages(ex Executor, stages []stage, j *frameJob) {
	n := j.store.n
	for _, st := range stages {
		run := st.run
		ex.Run(n, func(from, to int) { run(j, from, to) })
	}
}
