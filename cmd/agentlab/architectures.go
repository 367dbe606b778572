package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/KamdynS/agentlab/agent/architecture"
	"github.com/spf13/cobra"
)

type architecturesReport struct {
	Runs       []architecture.Run     `json:"runs"`
	Comparison []architecture.Profile `json:"comparison"`
	Agents     *agentsReport          `json:"agents,omitempty"`
}

type agentsReport struct {
	Simple      architecture.Cycle        `json:"simple"`
	Reactive    architecture.Reaction     `json:"reactive"`
	ReactiveErr string                    `json:"reactive_error,omitempty"`
	Planning    []architecture.StepResult `json:"planning"`
}

func (a *app) architecturesCmd() *cobra.Command {
	var (
		input    string
		question string
		request  string
		goal     string
		agents   bool
	)
	cmd := &cobra.Command{
		Use:     "architectures",
		Aliases: []string{"arch"},
		Short:   "Compare monolithic, modular, event-driven, layered and microservice agents",
		Long: `Runs the same input through five agent architectures and prints their
outputs, final state and event counts next to a trade-off comparison.

With --agents it also runs a perceive/think/act agent, a reactive agent that
picks one tool, and a planning agent that executes a numbered plan.`,
		Example: `  agentlab --offline architectures --input "Hello world"
  agentlab --offline architectures --agents --goal "Research machine learning"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rep := architecturesReport{
				Runs:       architecture.Showcase(ctx, client, input),
				Comparison: architecture.Compare(),
			}

			if agents {
				reg, err := architecture.DemoTools()
				if err != nil {
					return err
				}
				ar := &agentsReport{}
				simple := &architecture.SimpleAgent{Client: client}
				if ar.Simple, err = simple.Run(ctx, question); err != nil {
					return fmt.Errorf("simple agent: %w", err)
				}
				reactive := &architecture.ReactiveAgent{Client: client, Tools: reg}
				if ar.Reactive, err = reactive.Respond(ctx, request); err != nil {
					ar.ReactiveErr = err.Error()
				}
				planner := &architecture.PlanningAgent{Client: client, Tools: reg, StepTools: architecture.DemoStepTools()}
				if ar.Planning, err = planner.ExecutePlan(ctx, goal); err != nil {
					return fmt.Errorf("planning agent: %w", err)
				}
				rep.Agents = ar
			}

			return a.report(cmd.OutOrStdout(), rep, func(w io.Writer) {
				heading(w, "Architectures")
				rows := make([][]string, 0, len(rep.Runs))
				for _, r := range rep.Runs {
					out := r.Output
					if r.Error != "" {
						out = r.Error
					}
					rows = append(rows, []string{r.Name, status(string(r.State)), strconv.Itoa(len(r.Events)), out})
				}
				renderTable(w, []string{"Architecture", "State", "Events", "Output"}, rows)

				heading(w, "Comparison")
				rows = rows[:0]
				for _, p := range rep.Comparison {
					rows = append(rows, []string{string(p.Kind), p.Complexity, p.Maintenance, p.Scalability, p.Flexibility, p.TypicalUseCase})
				}
				renderTable(w, []string{"Kind", "Complexity", "Maintenance", "Scalability", "Flexibility", "Use case"}, rows)

				if ar := rep.Agents; ar != nil {
					heading(w, "Simple agent")
					field(w, "Perceived", ar.Simple.Perception.Input)
					field(w, "Decision", ar.Simple.Decision.Action+": "+ar.Simple.Decision.Reason)
					field(w, "Result", ar.Simple.Result)

					heading(w, "Reactive agent")
					field(w, "Tool", ar.Reactive.Tool)
					if ar.ReactiveErr != "" {
						field(w, "Error", badStyle.Render(ar.ReactiveErr))
					} else {
						field(w, "Output", ar.Reactive.Output)
					}

					heading(w, "Planning agent")
					rows = rows[:0]
					for i, s := range ar.Planning {
						rows = append(rows, []string{strconv.Itoa(i + 1), s.Step, s.Kind, s.Tool, s.Output})
					}
					renderTable(w, []string{"#", "Step", "Kind", "Tool", "Output"}, rows)
				}
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "Hello world", "Input processed by every architecture")
	cmd.Flags().BoolVar(&agents, "agents", false, "Also run the simple, reactive and planning agents")
	cmd.Flags().StringVar(&question, "question", "What is artificial intelligence?", "Input for the simple agent")
	cmd.Flags().StringVar(&request, "request", "What is the weather in Madrid?", "Input for the reactive agent")
	cmd.Flags().StringVar(&goal, "goal", "Research machine learning", "Goal for the planning agent")
	return cmd
}
