package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/KamdynS/agentlab/emergence"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) swarmCmd() *cobra.Command {
	var (
		steps  int
		seed   int64
		agents int
		params string
	)
	cmd := &cobra.Command{
		Use:   "swarm <boids|ants>",
		Short: "Run a flocking or ant foraging simulation",
		Example: `  agentlab swarm boids --steps 100 --agents 30
  agentlab swarm ants --params colony.yaml --json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"boids", "ants"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := rand.New(rand.NewSource(seedOrNow(seed)))
			switch args[0] {
			case "boids":
				cfg := emergence.DefaultFlockConfig()
				if err := loadParams(params, &cfg); err != nil {
					return err
				}
				if agents > 0 {
					cfg.Boids = agents
				}
				metrics := emergence.NewFlock(cfg, rng).Run(steps)
				return a.report(cmd.OutOrStdout(), metrics, func(w io.Writer) {
					heading(w, fmt.Sprintf("Flock of %d boids", cfg.Boids))
					rows := make([][]string, 0, len(metrics))
					for _, m := range sample(metrics) {
						rows = append(rows, []string{
							strconv.Itoa(m.Iteration),
							fmt.Sprintf("(%.1f, %.1f)", m.Center.X, m.Center.Y),
							fmt.Sprintf("%.2f", m.Cohesion),
							fmt.Sprintf("%.3f", m.Alignment),
							fmt.Sprintf("%.2f", m.AvgNeighbors),
							fmt.Sprintf("%.2f", m.AvgSpeed),
						})
					}
					renderTable(w, []string{"Step", "Center", "Cohesion", "Alignment", "Neighbors", "Speed"}, rows)
				})
			case "ants":
				cfg := emergence.DefaultColonyConfig()
				if err := loadParams(params, &cfg); err != nil {
					return err
				}
				if agents > 0 {
					cfg.Ants = agents
				}
				metrics := emergence.NewColony(cfg, rng).Run(steps)
				return a.report(cmd.OutOrStdout(), metrics, func(w io.Writer) {
					heading(w, fmt.Sprintf("Colony of %d ants", cfg.Ants))
					rows := make([][]string, 0, len(metrics))
					for _, m := range sample(metrics) {
						rows = append(rows, []string{
							strconv.Itoa(m.Iteration),
							strconv.Itoa(m.Carrying),
							strconv.Itoa(m.Collected),
							strconv.Itoa(m.PheromoneCell),
						})
					}
					renderTable(w, []string{"Step", "Carrying", "Collected", "Trail cells"}, rows)
				})
			default:
				return fmt.Errorf("unknown simulation %q (have boids, ants)", args[0])
			}
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 50, "Simulation steps")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses the clock)")
	cmd.Flags().IntVar(&agents, "agents", 0, "Override the number of agents")
	cmd.Flags().StringVar(&params, "params", "", "YAML file overriding the simulation parameters")
	return cmd
}

// loadParams overlays the YAML in path onto cfg.
func loadParams(path string, cfg any) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// sample keeps about ten evenly spaced rows, always including the last.
func sample[T any](rows []T) []T {
	if len(rows) <= 10 {
		return rows
	}
	stride := len(rows) / 10
	var out []T
	for i := 0; i < len(rows); i += stride {
		out = append(out, rows[i])
	}
	if (len(rows)-1)%stride != 0 {
		out = append(out, rows[len(rows)-1])
	}
	return out
}
