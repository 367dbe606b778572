package emergence

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec(t *testing.T) {
	v := Vec{3, 4}
	assert.Equal(t, 5.0, v.Len())
	u := v.Unit()
	assert.InDelta(t, 0.6, u.X, 1e-9)
	assert.InDelta(t, 0.8, u.Y, 1e-9)
	assert.Equal(t, Vec{}, Vec{}.Unit())
	assert.Equal(t, 5.0, Vec{}.Distance(v))
	assert.Equal(t, 199.0, wrap(-1, 200))
	assert.Equal(t, 1.0, wrap(201, 200))
}

func TestFlockStaysInBounds(t *testing.T) {
	cfg := DefaultFlockConfig()
	f := NewFlock(cfg, rand.New(rand.NewSource(42)))
	require.Len(t, f.Boids, 20)

	history := f.Run(10)
	require.Len(t, history, 10)
	assert.Equal(t, 10, history[9].Iteration)
	for _, b := range f.Boids {
		assert.GreaterOrEqual(t, b.Position.X, 0.0)
		assert.Less(t, b.Position.X, cfg.WorldSize)
		assert.GreaterOrEqual(t, b.Position.Y, 0.0)
		assert.Less(t, b.Position.Y, cfg.WorldSize)
		assert.LessOrEqual(t, b.Velocity.Len(), cfg.MaxSpeed+1e-9)
	}

	same := NewFlock(cfg, rand.New(rand.NewSource(42)))
	same.Run(10)
	assert.Equal(t, f.Boids, same.Boids)
}

func TestFlockRules(t *testing.T) {
	cfg := DefaultFlockConfig()
	cfg.Weights = Weights{Separation: 1}
	f := &Flock{Config: cfg, Boids: []Boid{
		{ID: 0, Position: Vec{100, 100}},
		{ID: 1, Position: Vec{110, 100}},
		{ID: 2, Position: Vec{180, 20}},
	}}
	assert.Equal(t, []int{1}, f.Neighbors(0))
	assert.Empty(t, f.Neighbors(2))

	f.Step()
	assert.Equal(t, Vec{-1, 0}, f.Boids[0].Velocity)
	assert.Equal(t, Vec{1, 0}, f.Boids[1].Velocity)
	assert.Equal(t, Vec{99, 100}, f.Boids[0].Position)
	assert.Equal(t, Vec{180, 20}, f.Boids[2].Position)

	cfg.Weights = Weights{Cohesion: 1}
	pull := &Flock{Config: cfg, Boids: []Boid{
		{ID: 0, Position: Vec{100, 100}},
		{ID: 1, Position: Vec{140, 100}},
	}}
	pull.Step()
	assert.InDelta(t, 2, pull.Boids[0].Velocity.X, 1e-9, "clamped to max speed")
	assert.Equal(t, 0.0, pull.Boids[0].Velocity.Y)
}

func TestFlockMetrics(t *testing.T) {
	f := &Flock{Config: DefaultFlockConfig(), Boids: []Boid{
		{Position: Vec{10, 10}, Velocity: Vec{1, 0}},
		{Position: Vec{30, 10}, Velocity: Vec{2, 0}},
	}}
	m := f.Metrics()
	assert.Equal(t, Vec{20, 10}, m.Center)
	assert.Equal(t, 10.0, m.Cohesion)
	assert.Equal(t, 1.0, m.Alignment)
	assert.Equal(t, 1.5, m.AvgSpeed)
	assert.Equal(t, 1.0, m.AvgNeighbors)

	f.Boids[1].Velocity = Vec{-1, 0}
	assert.Equal(t, 0.0, f.Metrics().Alignment)
	assert.Equal(t, FlockMetrics{}, (&Flock{}).Metrics())
}

func TestAntRoundTrip(t *testing.T) {
	cfg := DefaultColonyConfig()
	cfg.Ants = 1
	cfg.Food = []Vec{{100, 110}}
	c := NewColony(cfg, rand.New(rand.NewSource(1)))
	c.Ants[0].Position = Vec{100, 110}

	c.Step()
	assert.True(t, c.Ants[0].Carrying)
	assert.Equal(t, Vec{100, 110}, c.Ants[0].Position)

	c.Run(4)
	assert.False(t, c.Ants[0].Carrying)
	assert.Equal(t, Vec{100, 104}, c.Ants[0].Position)

	m := c.Metrics()
	assert.Equal(t, 1, m.Collected)
	assert.Equal(t, 5, m.PheromoneCell)
	assert.Equal(t, 0, m.Carrying)
	assert.InDelta(t, 10*math.Pow(0.95, 5), c.Pheromone[Cell{100, 110}], 1e-9)
}

func TestPheromone(t *testing.T) {
	cfg := DefaultColonyConfig()
	cfg.Ants = 0
	c := NewColony(cfg, rand.New(rand.NewSource(1)))
	c.Pheromone[Cell{1, 1}] = 0.105
	c.Pheromone[Cell{2, 2}] = 10
	c.Step()
	assert.NotContains(t, c.Pheromone, Cell{1, 1})
	assert.InDelta(t, 9.5, c.Pheromone[Cell{2, 2}], 1e-9)

	c.Pheromone[Cell{3, 3}] = 95
	c.deposit(Vec{3.7, 3.2})
	assert.Equal(t, 100.0, c.Pheromone[Cell{3, 3}])

	c.Pheromone[Cell{51, 50}] = 5
	c.Pheromone[Cell{49, 49}] = 2
	assert.Equal(t, Vec{1, 0}, c.followPheromone(&Ant{Position: Vec{50.5, 50.5}}))
}

func TestColonyDeterministic(t *testing.T) {
	a := NewColony(DefaultColonyConfig(), rand.New(rand.NewSource(9)))
	b := NewColony(DefaultColonyConfig(), rand.New(rand.NewSource(9)))
	ma, mb := a.Run(15), b.Run(15)
	assert.Equal(t, ma, mb)
	assert.Equal(t, 30, ma[14].Agents)
	assert.Equal(t, 3, ma[14].FoodSources)
}
