package simulation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

//go:embed config.schema.json
var configSchema string

const configSchemaURL = "config.schema.json"

// Strategy selects how the agents of a phase are spread over workers.
type Strategy string

const (
	StrategySerial Strategy = "serial" // everything on the calling goroutine
	StrategyPool   Strategy = "pool"   // persistent worker pool, fused rule stage
	StrategyTasks  Strategy = "tasks"  // errgroup batches, one stage per rule
)

// Config is read once per run, before the first frame.
// The same camelCase keys are used in JSON, TOML and YAML files.
type Config struct {
	// Population
	AgentCount  int     `json:"agentCount" toml:"agentCount" yaml:"agentCount"`
	Seed        uint64  `json:"seed" toml:"seed" yaml:"seed"`
	SpawnExtent float64 `json:"spawnExtent" toml:"spawnExtent" yaml:"spawnExtent"` // positions spawn in [0, extent)^3

	// Speeds
	InitSpeed float64 `json:"initSpeed" toml:"initSpeed" yaml:"initSpeed"`
	MinSpeed  float64 `json:"minSpeed" toml:"minSpeed" yaml:"minSpeed"`
	MaxSpeed  float64 `json:"maxSpeed" toml:"maxSpeed" yaml:"maxSpeed"`

	// Boundary cube
	WallScale    float64 `json:"wallScale" toml:"wallScale" yaml:"wallScale"` // full extent, halved in Params
	WallDistance float64 `json:"wallDistance" toml:"wallDistance" yaml:"wallDistance"`
	WallWeight   float64 `json:"wallWeight" toml:"wallWeight" yaml:"wallWeight"`

	// Perception
	NeighborFov      float64 `json:"neighborFov" toml:"neighborFov" yaml:"neighborFov"` // half-angle in degrees
	NeighborDistance float64 `json:"neighborDistance" toml:"neighborDistance" yaml:"neighborDistance"`

	// Boids flocking weights
	SeparationWeight float64 `json:"separationWeight" toml:"separationWeight" yaml:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight" toml:"alignmentWeight" yaml:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight" toml:"cohesionWeight" yaml:"cohesionWeight"`

	BoidScale []float64 `json:"boidScale" toml:"boidScale" yaml:"boidScale"`

	// Scheduling
	Strategy               Strategy `json:"strategy" toml:"strategy" yaml:"strategy"`
	Pipelined              bool     `json:"pipelined" toml:"pipelined" yaml:"pipelined"`
	Workers                int      `json:"workers" toml:"workers" yaml:"workers"` // 0 = NumCPU-1
	MinJobSize             int      `json:"minJobSize" toml:"minJobSize" yaml:"minJobSize"`
	BatchSize              int      `json:"batchSize" toml:"batchSize" yaml:"batchSize"`
	MaxNeighborBufferBytes int64    `json:"maxNeighborBufferBytes" toml:"maxNeighborBufferBytes" yaml:"maxNeighborBufferBytes"`

	Logging LoggingConfig `json:"logging" toml:"logging" yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `json:"level" toml:"level" yaml:"level"`
	Format string `json:"format" toml:"format" yaml:"format"` // "json" or "console"
}

// Params are the immutable rule parameters shared by every worker of a run.
type Params struct {
	WallScale         float64 // half extent of the cube
	WallDistance      float64
	WallWeight        float64
	NeighborFovCosine float64
	NeighborDistance  float64
	SeparationWeight  float64
	AlignmentWeight   float64
	CohesionWeight    float64
	MinSpeed          float64
	MaxSpeed          float64
	InitSpeed         float64
	Scale             geometry.Vec3
}

// Options selects the scheduling of a Simulation.
type Options struct {
	Strategy               Strategy
	Pipelined              bool
	Workers                int // 0 = NumCPU-1
	MinJobSize             int
	BatchSize              int
	MaxNeighborBufferBytes int64
	Logger                 *zap.Logger
}

const (
	defaultMinJobSize             = 50
	defaultBatchSize              = 64
	defaultMaxNeighborBufferBytes = 512 << 20
)

func DefaultConfig() *Config {
	return &Config{
		AgentCount:             100,
		Seed:                   853,
		SpawnExtent:            1,
		InitSpeed:              2,
		MinSpeed:               2,
		MaxSpeed:               5,
		WallScale:              5,
		WallDistance:           3,
		WallWeight:             1,
		NeighborFov:            90,
		NeighborDistance:       1,
		SeparationWeight:       5,
		AlignmentWeight:        2,
		CohesionWeight:         3,
		BoidScale:              []float64{0.1, 0.1, 0.3},
		Strategy:               StrategyPool,
		Pipelined:              false,
		Workers:                0,
		MinJobSize:             defaultMinJobSize,
		BatchSize:              defaultBatchSize,
		MaxNeighborBufferBytes: defaultMaxNeighborBufferBytes,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a JSON, TOML or YAML file, validates the document
// against the embedded schema and overlays it on DefaultConfig.
func LoadConfig(configFile string) (*Config, error) {
	// 1. Compile Schema
	sch, err := jsonschema.CompileString(configSchemaURL, configSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Read Config File
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. Decode into a generic document and validate
	var (
		doc       map[string]any
		unmarshal func([]byte, any) error
	)
	switch ext := strings.ToLower(filepath.Ext(configFile)); ext {
	case ".json":
		unmarshal = json.Unmarshal
	case ".toml":
		unmarshal = toml.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err := unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", configFile, err)
	}
	jsonDoc, err := toJSONDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config %s: %w", configFile, err)
	}
	if err := sch.Validate(jsonDoc); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Unmarshal into Struct, on top of the defaults
	cfg := DefaultConfig()
	if err := unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Cross-field checks the schema cannot express
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toJSONDocument re-encodes a TOML/YAML/JSON document so the schema validator
// sees the same value types whatever the source format.
func toJSONDocument(doc map[string]any) (any, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Params derives the rule parameters: the wall scale is halved and the
// field of view is turned into the cosine of its half-angle.
func (c *Config) Params() Params {
	scale := geometry.Vec3{1, 1, 1}
	if len(c.BoidScale) == 3 {
		scale = geometry.Vec3{c.BoidScale[0], c.BoidScale[1], c.BoidScale[2]}
	}
	return Params{
		WallScale:         c.WallScale * 0.5,
		WallDistance:      c.WallDistance,
		WallWeight:        c.WallWeight,
		NeighborFovCosine: math.Cos(c.NeighborFov * math.Pi / 180),
		NeighborDistance:  c.NeighborDistance,
		SeparationWeight:  c.SeparationWeight,
		AlignmentWeight:   c.AlignmentWeight,
		CohesionWeight:    c.CohesionWeight,
		MinSpeed:          c.MinSpeed,
		MaxSpeed:          c.MaxSpeed,
		InitSpeed:         c.InitSpeed,
		Scale:             scale,
	}
}

// Options derives the scheduling options of a run.
func (c *Config) Options(log *zap.Logger) Options {
	return Options{
		Strategy:               c.Strategy,
		Pipelined:              c.Pipelined,
		Workers:                c.Workers,
		MinJobSize:             c.MinJobSize,
		BatchSize:              c.BatchSize,
		MaxNeighborBufferBytes: c.MaxNeighborBufferBytes,
		Logger:                 log,
	}
}

// Validate reports every misconfiguration at once. Nothing is clamped.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.AgentCount >= 1, "agentCount must be >= 1, got %d", c.AgentCount)
	check(isFinite(c.SpawnExtent) && c.SpawnExtent > 0, "spawnExtent must be > 0, got %v", c.SpawnExtent)
	check(isFinite(c.NeighborFov) && c.NeighborFov >= 0 && c.NeighborFov <= 180,
		"neighborFov must be within [0, 180] degrees, got %v", c.NeighborFov)
	check(len(c.BoidScale) == 3, "boidScale must have 3 components, got %d", len(c.BoidScale))
	check(c.Strategy.valid(), "unknown strategy %q", c.Strategy)
	check(c.Workers >= 0, "workers must be >= 0, got %d", c.Workers)
	check(c.MinJobSize >= 1, "minJobSize must be >= 1, got %d", c.MinJobSize)
	check(c.BatchSize >= 1, "batchSize must be >= 1, got %d", c.BatchSize)
	check(c.MaxNeighborBufferBytes >= 1, "maxNeighborBufferBytes must be >= 1, got %d", c.MaxNeighborBufferBytes)

	return multierr.Append(errs, c.Params().Validate())
}

// Validate checks the rule parameters. It is also applied to parameters
// handed directly to NewSimulation.
func (p Params) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	values := []struct {
		name string
		v    float64
	}{
		{"wallScale", p.WallScale},
		{"wallDistance", p.WallDistance},
		{"wallWeight", p.WallWeight},
		{"neighborFovCosine", p.NeighborFovCosine},
		{"neighborDistance", p.NeighborDistance},
		{"separationWeight", p.SeparationWeight},
		{"alignmentWeight", p.AlignmentWeight},
		{"cohesionWeight", p.CohesionWeight},
		{"minSpeed", p.MinSpeed},
		{"maxSpeed", p.MaxSpeed},
		{"initSpeed", p.InitSpeed},
	}
	for _, f := range values {
		check(isFinite(f.v), "%s must be finite, got %v", f.name, f.v)
	}

	check(p.MinSpeed > 0, "minSpeed must be > 0, got %v", p.MinSpeed)
	check(p.MinSpeed <= p.MaxSpeed, "minSpeed (%v) must not exceed maxSpeed (%v)", p.MinSpeed, p.MaxSpeed)
	check(p.InitSpeed > 0, "initSpeed must be > 0, got %v", p.InitSpeed)
	check(p.WallScale > 0, "wallScale must be > 0, got %v", p.WallScale)
	check(p.WallDistance > 0, "wallDistance must be > 0, got %v", p.WallDistance)
	check(p.WallWeight >= 0, "wallWeight must be >= 0, got %v", p.WallWeight)
	check(p.NeighborDistance >= 0, "neighborDistance must be >= 0, got %v", p.NeighborDistance)
	check(p.NeighborFovCosine >= -1 && p.NeighborFovCosine <= 1, "neighborFovCosine must be within [-1, 1], got %v", p.NeighborFovCosine)
	check(p.SeparationWeight >= 0, "separationWeight must be >= 0, got %v", p.SeparationWeight)
	check(p.AlignmentWeight >= 0, "alignmentWeight must be >= 0, got %v", p.AlignmentWeight)
	check(p.CohesionWeight >= 0, "cohesionWeight must be >= 0, got %v", p.CohesionWeight)
	for k := 0; k < 3; k++ {
		check(isFinite(p.Scale[k]), "scale[%d] must be finite, got %v", k, p.Scale[k])
	}
	return errs
}

func (s Strategy) valid() bool {
	switch s {
	case StrategySerial, StrategyPool, StrategyTasks:
		return true
	}
	return false
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
