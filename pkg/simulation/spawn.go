package simulation

import (
	"math"
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

// spawnStream is the second PCG word, fixed so a seed alone names a flock.
const spawnStream = 0x9e3779b97f4a7c15

// Spawn places count agents uniformly in [0, extent)^3, each moving at speed
// in a uniformly random direction. The same seed always gives the same flock.
func Spawn(count int, seed uint64, extent, speed float64) []Agent {
	rng := rand.New(rand.NewPCG(seed, spawnStream))
	agents := make([]Agent, count)
	for i := range agents {
		agents[i] = Agent{
			Position: geometry.Vec3{rng.Float64() * extent, rng.Float64() * extent, rng.Float64() * extent},
			Velocity: randomDirection(rng).Mul(speed),
		}
	}
	return agents
}

// randomDirection samples the unit sphere uniformly.
func randomDirection(rng *rand.Rand) geometry.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(1 - z*z)
	return geometry.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}
