// Package behavior holds the steering rules of the flock.
//
// Boids is an artificial life program, developed by Craig Reynolds in 1986,
// which simulates the flocking behaviour of birds, and related group motion.
// https://en.wikipedia.org/wiki/Boids
//
// Every rule is a pure function: it reads positions, velocities and a neighbor list
// and returns an acceleration contribution. The caller accumulates the contributions
// in order Wall, Separation, Alignment, Cohesion.
package behavior

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/geometry"
)

// WallRatioFloor bounds |dist/threshold| from below so an agent sitting exactly
// on a wall gets a large but finite push.
const WallRatioFloor = 1e-6

// WallParams controls the boundary repulsion of the cube centered on the origin.
type WallParams struct {
	Scale    float64 // half extent of the cube
	Distance float64 // repulsion starts below this distance to a wall
	Weight   float64
}

// walls are the six signed axis directions, in summation order.
var walls = [6]geometry.Vec3{
	{-1, 0, 0},
	{0, -1, 0},
	{0, 0, -1},
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Wall returns the repulsion of the six cube faces on an agent at pos.
// For each axis direction d the distance to the wall is Scale - dot(pos, d);
// below Distance the agent is pushed along -d by Weight / |dist/Distance|.
func Wall(pos geometry.Vec3, w WallParams) geometry.Vec3 {
	var acc geometry.Vec3
	for _, d := range walls {
		dist := w.Scale - pos.Dot(d)
		if dist >= w.Distance {
			continue
		}
		ratio := math.Max(math.Abs(dist/w.Distance), WallRatioFloor)
		acc = acc.Add(d.Mul(-w.Weight / ratio))
	}
	return acc
}

// Separation steers away from crowding: the mean of the unit vectors pointing from
// each neighbor toward self, scaled by weight. Coincident neighbors contribute nothing.
func Separation(self geometry.Vec3, positions []geometry.Vec3, neighbors []int32, weight float64) geometry.Vec3 {
	if len(neighbors) == 0 {
		return geometry.Zero
	}
	var force geometry.Vec3
	for _, j := range neighbors {
		force = force.Add(geometry.SafeNormalize(self.Sub(positions[j]), geometry.Zero))
	}
	return force.Mul(weight / float64(len(neighbors)))
}

// Alignment steers toward the average heading of the neighbors.
func Alignment(selfVel geometry.Vec3, velocities []geometry.Vec3, neighbors []int32, weight float64) geometry.Vec3 {
	if len(neighbors) == 0 {
		return geometry.Zero
	}
	var avg geometry.Vec3
	for _, j := range neighbors {
		avg = avg.Add(velocities[j])
	}
	avg = avg.Mul(1 / float64(len(neighbors)))
	return avg.Sub(selfVel).Mul(weight)
}

// Cohesion steers toward the local centroid of the neighbors.
func Cohesion(self geometry.Vec3, positions []geometry.Vec3, neighbors []int32, weight float64) geometry.Vec3 {
	if len(neighbors) == 0 {
		return geometry.Zero
	}
	var avg geometry.Vec3
	for _, j := range neighbors {
		avg = avg.Add(positions[j])
	}
	avg = avg.Mul(1 / float64(len(neighbors)))
	return avg.Sub(self).Mul(weight)
}
