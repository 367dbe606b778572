// Package emergence simulates swarms whose collective behavior comes from
// simple local rules: flocking boids and pheromone-following ants.
package emergence

import (
	"math"
	"math/rand"
)

type Vec struct{ X, Y float64 }

func (v Vec) Add(o Vec) Vec          { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec          { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(k float64) Vec    { return Vec{v.X * k, v.Y * k} }
func (v Vec) Len() float64           { return math.Hypot(v.X, v.Y) }
func (v Vec) Distance(o Vec) float64 { return v.Sub(o).Len() }

// Unit returns v normalized, or the zero vector.
func (v Vec) Unit() Vec {
	l := v.Len()
	if l == 0 {
		return Vec{}
	}
	return v.Scale(1 / l)
}

// Weights scale the three steering rules.
type Weights struct {
	Separation float64 `json:"separation" yaml:"separation"`
	Alignment  float64 `json:"alignment" yaml:"alignment"`
	Cohesion   float64 `json:"cohesion" yaml:"cohesion"`
}

type FlockConfig struct {
	Boids            int     `json:"boids" yaml:"boids"`
	WorldSize        float64 `json:"world_size" yaml:"world_size"`
	MaxSpeed         float64 `json:"max_speed" yaml:"max_speed"`
	PerceptionRadius float64 `json:"perception_radius" yaml:"perception_radius"`
	SeparationRadius float64 `json:"separation_radius" yaml:"separation_radius"`
	Weights          Weights `json:"weights" yaml:"weights"`
}

func DefaultFlockConfig() FlockConfig {
	return FlockConfig{
		Boids:            20,
		WorldSize:        200,
		MaxSpeed:         2,
		PerceptionRadius: 50,
		SeparationRadius: 25,
		Weights:          Weights{Separation: 0.15, Alignment: 0.1, Cohesion: 0.05},
	}
}

type Boid struct {
	ID       int `json:"id"`
	Position Vec `json:"position"`
	Velocity Vec `json:"velocity"`
}

// Flock updates all boids synchronously from the previous step's state.
type Flock struct {
	Config    FlockConfig
	Boids     []Boid
	Iteration int
}

// NewFlock scatters boids uniformly with velocities in [-1, 1).
func NewFlock(cfg FlockConfig, rng *rand.Rand) *Flock {
	f := &Flock{Config: cfg}
	for i := 0; i < cfg.Boids; i++ {
		f.Boids = append(f.Boids, Boid{
			ID:       i,
			Position: Vec{rng.Float64() * cfg.WorldSize, rng.Float64() * cfg.WorldSize},
			Velocity: Vec{rng.Float64()*2 - 1, rng.Float64()*2 - 1},
		})
	}
	return f
}

// Neighbors returns the indexes of boids within the perception radius of
// boid i.
func (f *Flock) Neighbors(i int) []int {
	var out []int
	for j := range f.Boids {
		if j != i && f.Boids[i].Position.Distance(f.Boids[j].Position) < f.Config.PerceptionRadius {
			out = append(out, j)
		}
	}
	return out
}

func (f *Flock) separation(i int, nbrs []int) Vec {
	var steer Vec
	self := f.Boids[i].Position
	for _, j := range nbrs {
		d := self.Distance(f.Boids[j].Position)
		if d > 0 && d < f.Config.SeparationRadius {
			steer = steer.Add(self.Sub(f.Boids[j].Position).Scale(1 / d))
		}
	}
	return steer
}

func (f *Flock) alignment(i int, nbrs []int) Vec {
	if len(nbrs) == 0 {
		return Vec{}
	}
	var avg Vec
	for _, j := range nbrs {
		avg = avg.Add(f.Boids[j].Velocity)
	}
	return avg.Scale(1 / float64(len(nbrs))).Sub(f.Boids[i].Velocity)
}

func (f *Flock) cohesion(i int, nbrs []int) Vec {
	if len(nbrs) == 0 {
		return Vec{}
	}
	var center Vec
	for _, j := range nbrs {
		center = center.Add(f.Boids[j].Position)
	}
	return center.Scale(1 / float64(len(nbrs))).Sub(f.Boids[i].Position)
}

func wrap(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	return v
}

// Step applies the weighted rules, clamps speed and wraps positions.
func (f *Flock) Step() {
	w := f.Config.Weights
	next := make([]Boid, len(f.Boids))
	for i, b := range f.Boids {
		nbrs := f.Neighbors(i)
		vel := b.Velocity.
			Add(f.separation(i, nbrs).Scale(w.Separation)).
			Add(f.alignment(i, nbrs).Scale(w.Alignment)).
			Add(f.cohesion(i, nbrs).Scale(w.Cohesion))
		if s := vel.Len(); s > f.Config.MaxSpeed {
			vel = vel.Scale(f.Config.MaxSpeed / s)
		}
		pos := b.Position.Add(vel)
		next[i] = Boid{
			ID:       b.ID,
			Position: Vec{wrap(pos.X, f.Config.WorldSize), wrap(pos.Y, f.Config.WorldSize)},
			Velocity: vel,
		}
	}
	f.Boids = next
	f.Iteration++
}

type FlockMetrics struct {
	Iteration    int     `json:"iteration"`
	Center       Vec     `json:"center"`
	Cohesion     float64 `json:"cohesion"`
	Alignment    float64 `json:"alignment"`
	AvgNeighbors float64 `json:"avg_neighbors"`
	AvgSpeed     float64 `json:"avg_speed"`
	Agents       int     `json:"num_agents"`
}

// Metrics reports cohesion as the mean distance to the centroid and
// alignment as the mean resultant length of unit velocities, 1 when all
// boids head the same way.
func (f *Flock) Metrics() FlockMetrics {
	m := FlockMetrics{Iteration: f.Iteration, Agents: len(f.Boids)}
	n := float64(len(f.Boids))
	if n == 0 {
		return m
	}
	var center, heading Vec
	for _, b := range f.Boids {
		center = center.Add(b.Position)
		heading = heading.Add(b.Velocity.Unit())
		m.AvgSpeed += b.Velocity.Len()
	}
	m.Center = center.Scale(1 / n)
	m.Alignment = heading.Len() / n
	m.AvgSpeed /= n
	neighbors := 0
	for i, b := range f.Boids {
		m.Cohesion += b.Position.Distance(m.Center)
		neighbors += len(f.Neighbors(i))
	}
	m.Cohesion /= n
	m.AvgNeighbors = float64(neighbors) / n
	return m
}

// Run steps n times and returns the metrics after each step.
func (f *Flock) Run(n int) []FlockMetrics {
	out := make([]FlockMetrics, 0, n)
	for i := 0; i < n; i++ {
		f.Step()
		out = append(out, f.Metrics())
	}
	return out
}
