package emergence

import (
	"math/rand"

	"github.com/rs/zerolog/log"
)

type ColonyConfig struct {
	Ants         int     `json:"ants" yaml:"ants"`
	Nest         Vec     `json:"nest" yaml:"nest"`
	Food         []Vec   `json:"food" yaml:"food"`
	Speed        float64 `json:"speed" yaml:"speed"`
	RandomWalk   float64 `json:"random_walk" yaml:"random_walk"`
	ReachRadius  float64 `json:"reach_radius" yaml:"reach_radius"`
	Deposit      float64 `json:"deposit" yaml:"deposit"`
	MaxPheromone float64 `json:"max_pheromone" yaml:"max_pheromone"`
	Evaporation  float64 `json:"evaporation" yaml:"evaporation"`
	MinPheromone float64 `json:"min_pheromone" yaml:"min_pheromone"`
}

func DefaultColonyConfig() ColonyConfig {
	return ColonyConfig{
		Ants:         30,
		Nest:         Vec{100, 100},
		Food:         []Vec{{150, 150}, {50, 150}, {100, 50}},
		Speed:        1.5,
		RandomWalk:   0.3,
		ReachRadius:  5,
		Deposit:      10,
		MaxPheromone: 100,
		Evaporation:  0.95,
		MinPheromone: 0.1,
	}
}

// Cell is a unit square of the pheromone grid.
type Cell struct{ X, Y int }

func cellOf(p Vec) Cell { return Cell{int(p.X), int(p.Y)} }

type Ant struct {
	ID       int  `json:"id"`
	Position Vec  `json:"position"`
	Carrying bool `json:"carrying_food"`
}

// Colony runs ants that wander, follow pheromone, and lay a trail while
// carrying food home.
type Colony struct {
	Config    ColonyConfig
	Ants      []Ant
	Pheromone map[Cell]float64
	Collected int
	Iteration int

	rng *rand.Rand
}

func NewColony(cfg ColonyConfig, rng *rand.Rand) *Colony {
	c := &Colony{Config: cfg, Pheromone: map[Cell]float64{}, rng: rng}
	for i := 0; i < cfg.Ants; i++ {
		c.Ants = append(c.Ants, Ant{ID: i, Position: cfg.Nest})
	}
	return c
}

func (c *Colony) jitter() Vec {
	return Vec{c.rng.Float64()*2 - 1, c.rng.Float64()*2 - 1}
}

// direction picks the ant's next heading. An ant reaching food picks it
// up and stays put this step.
func (c *Colony) direction(a *Ant) Vec {
	if a.Carrying {
		return c.Config.Nest.Sub(a.Position).Unit()
	}
	for _, f := range c.Config.Food {
		if a.Position.Distance(f) < c.Config.ReachRadius {
			a.Carrying = true
			return Vec{}
		}
	}
	if c.rng.Float64() < c.Config.RandomWalk {
		return c.jitter()
	}
	return c.followPheromone(a)
}

// followPheromone heads toward the strongest of the eight neighboring
// cells, or wanders when none carries any.
func (c *Colony) followPheromone(a *Ant) Vec {
	here := cellOf(a.Position)
	best := c.jitter()
	strongest := 0.0
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if p := c.Pheromone[Cell{here.X + dx, here.Y + dy}]; p > strongest {
				strongest = p
				best = Vec{float64(dx), float64(dy)}
			}
		}
	}
	return best
}

func (c *Colony) deposit(p Vec) {
	cell := cellOf(p)
	c.Pheromone[cell] = min(c.Config.MaxPheromone, c.Pheromone[cell]+c.Config.Deposit)
}

func (c *Colony) evaporate() {
	for cell, v := range c.Pheromone {
		v *= c.Config.Evaporation
		if v < c.Config.MinPheromone {
			delete(c.Pheromone, cell)
			continue
		}
		c.Pheromone[cell] = v
	}
}

// Step moves every ant once, then evaporates pheromone.
func (c *Colony) Step() {
	for i := range c.Ants {
		a := &c.Ants[i]
		d := c.direction(a)
		a.Position = a.Position.Add(d.Scale(c.Config.Speed))
		if a.Carrying {
			c.deposit(a.Position)
			if a.Position.Distance(c.Config.Nest) < c.Config.ReachRadius {
				a.Carrying = false
				c.Collected++
				log.Debug().Int("ant", a.ID).Int("collected", c.Collected).Msg("food delivered")
			}
		}
	}
	c.evaporate()
	c.Iteration++
}

type ForagingMetrics struct {
	Iteration     int `json:"iteration"`
	Carrying      int `json:"ants_with_food"`
	Collected     int `json:"food_collected"`
	PheromoneCell int `json:"pheromone_trails"`
	FoodSources   int `json:"food_sources"`
	Agents        int `json:"num_agents"`
}

func (c *Colony) Metrics() ForagingMetrics {
	m := ForagingMetrics{
		Iteration:     c.Iteration,
		Collected:     c.Collected,
		PheromoneCell: len(c.Pheromone),
		FoodSources:   len(c.Config.Food),
		Agents:        len(c.Ants),
	}
	for _, a := range c.Ants {
		if a.Carrying {
			m.Carrying++
		}
	}
	return m
}

func (c *Colony) Run(n int) []ForagingMetrics {
	out := make([]ForagingMetrics, 0, n)
	for i := 0; i < n; i++ {
		c.Step()
		out = append(out, c.Metrics())
	}
	return out
}
