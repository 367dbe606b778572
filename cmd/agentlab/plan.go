package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/KamdynS/agentlab/planning"
	"github.com/spf13/cobra"
)

func (a *app) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Goal-based, reactive, hierarchical and decomposition planning",
	}
	cmd.AddCommand(a.planGoalCmd(), a.planReactCmd(), a.planDecomposeCmd(), a.planHierarchyCmd())
	return cmd
}

func (a *app) planGoalCmd() *cobra.Command {
	var domain, search string
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Search for a plan in a STRIPS-style domain",
		Example: `  agentlab plan goal --domain robot
  agentlab plan goal --domain report --search backward`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := planning.Domain(domain)
			if !ok {
				return fmt.Errorf("unknown domain %q (have %s)", domain, strings.Join(planning.DomainNames(), ", "))
			}
			var (
				plan []planning.Action
				err  error
			)
			switch search {
			case "forward":
				plan = p.ForwardSearch()
			case "backward":
				plan, err = p.BackwardSearch()
			case "bfs":
				plan, err = p.BreadthFirst()
			default:
				return fmt.Errorf("unknown search %q (have forward, backward, bfs)", search)
			}
			out := struct {
				Domain  string   `json:"domain"`
				Search  string   `json:"search"`
				Plan    []string `json:"plan"`
				Reached bool     `json:"reached"`
				Cost    float64  `json:"cost"`
				Final   []string `json:"final_state"`
				Error   string   `json:"error,omitempty"`
			}{Domain: domain, Search: search, Plan: planning.Names(plan)}
			if err != nil {
				out.Error = err.Error()
			} else {
				ex, xerr := p.Execute(plan)
				if xerr != nil {
					out.Error = xerr.Error()
				}
				out.Reached, out.Cost, out.Final = ex.Reached, ex.Cost, ex.Final.Facts()
			}

			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, fmt.Sprintf("Plan for %s (%s search)", domain, search))
				field(w, "Initial", p.Initial)
				field(w, "Goal", p.Goal)
				for i, name := range out.Plan {
					fmt.Fprintf(w, "  %d. %s\n", i+1, name)
				}
				if out.Error != "" {
					field(w, "Error", badStyle.Render(out.Error))
					return
				}
				field(w, "Goal reached", status(strconv.FormatBool(out.Reached)))
				field(w, "Cost", out.Cost)
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "robot", "Domain: "+strings.Join(planning.DomainNames(), ", "))
	cmd.Flags().StringVar(&search, "search", "bfs", "Search: forward, backward or bfs")
	return cmd
}

// homeEvents is a scripted evening for the smart home rules.
var homeEvents = []map[string]any{
	{"hour": 18, "room_empty": false, "lights_on": true, "windows_open": true},
	{"raining": true},
	{"room_empty": true},
	{"hour": 23, "tv_volume": 70, "room_empty": false},
	{"motion_detected": true, "authorized_person": false},
}

func (a *app) planReactCmd() *cobra.Command {
	var (
		rules string
		steps int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "react",
		Short: "Drive a rule-based reactive agent through changing state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type tick struct {
				Step      int                 `json:"step"`
				State     map[string]any      `json:"state"`
				Reactions []planning.Reaction `json:"reactions"`
			}
			var (
				agent *planning.ReactiveAgent
				ticks []tick
			)
			switch rules {
			case "climate":
				agent = planning.NewReactiveAgent("climate", planning.ClimateRules()...)
				env := planning.NewEnvironment(rand.New(rand.NewSource(seedOrNow(seed))))
				state := env.Generate()
				for i := 1; i <= steps; i++ {
					if i > 1 {
						state = env.Drift(state)
					}
					agent.Update(state)
					ticks = append(ticks, tick{Step: i, State: agent.State(), Reactions: agent.React()})
				}
			case "home":
				agent = planning.NewReactiveAgent("home", planning.SmartHomeRules()...)
				for i, ev := range homeEvents {
					agent.Update(ev)
					ticks = append(ticks, tick{Step: i + 1, State: agent.State(), Reactions: agent.React()})
				}
			default:
				return fmt.Errorf("unknown rule set %q (have climate, home)", rules)
			}

			return a.report(cmd.OutOrStdout(), ticks, func(w io.Writer) {
				heading(w, "Reactive agent "+agent.Name)
				for _, t := range ticks {
					fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("step %d", t.Step)), formatState(t.State))
					if len(t.Reactions) == 0 {
						fmt.Fprintln(w, "  no rule fired")
					}
					for _, r := range t.Reactions {
						if r.Err != "" {
							fmt.Fprintf(w, "  %s: %s\n", r.Rule, badStyle.Render(r.Err))
							continue
						}
						fmt.Fprintf(w, "  %s -> %s\n", r.Rule, r.Result)
					}
				}
				field(w, "Rules fired", len(agent.History()))
			})
		},
	}
	cmd.Flags().StringVar(&rules, "rules", "climate", "Rule set: climate or home")
	cmd.Flags().IntVar(&steps, "steps", 5, "Simulated sensor readings (climate)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses the clock)")
	return cmd
}

func formatState(s map[string]any) string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, s[k])
	}
	return strings.Join(parts, " ")
}

func (a *app) planDecomposeCmd() *cobra.Command {
	var (
		threshold float64
		depth     int
	)
	cmd := &cobra.Command{
		Use:     "decompose <task>",
		Short:   "Break a task into subtasks with a model, recursively",
		Example: `  agentlab --offline plan decompose "Build an e-commerce site"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			d := planning.NewDecomposer(client, depth)
			dec, err := d.Recursive(cmd.Context(), strings.Join(args, " "), threshold)
			if err != nil {
				return err
			}
			out := struct {
				*planning.Decomposition
				Gantt []planning.GanttTask `json:"gantt"`
			}{dec, planning.Gantt(dec)}

			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, "Decomposition: "+dec.MainTask)
				field(w, "Complexity", dec.Analysis.ComplexityLevel)
				field(w, "Estimated hours", float64(dec.Analysis.EstimatedHours))
				if dec.Analysis.Fallback {
					field(w, "Analysis", warnStyle.Render("fallback"))
				}
				rows := make([][]string, 0, len(dec.Subtasks))
				for _, n := range dec.Subtasks {
					rows = append(rows, []string{n.Task.ID, n.Task.Title, n.Task.Priority, fmt.Sprintf("%.1f", float64(n.Task.EstimatedHours)), strings.Join(n.Task.Dependencies, ", "), strconv.Itoa(len(n.Children))})
				}
				renderTable(w, []string{"ID", "Title", "Priority", "Hours", "Needs", "Children"}, rows)
				gantt := make([][]string, 0, len(out.Gantt))
				for _, g := range out.Gantt {
					gantt = append(gantt, []string{g.Name, fmt.Sprintf("%.1f", g.StartDay), fmt.Sprintf("%.1f", g.EndDay)})
				}
				renderTable(w, []string{"Task", "Start day", "End day"}, gantt)
				field(w, "Total", fmt.Sprintf("%d subtasks, %.1f hours", dec.TotalSubtasks, dec.TotalHours))
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", planning.DefaultThreshold, "Decompose subtasks estimated above this many hours")
	cmd.Flags().IntVar(&depth, "max-depth", 2, "Maximum decomposition depth")
	return cmd
}

func (a *app) planHierarchyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hierarchy <goal>",
		Short: "Plan a goal at strategic, tactical and operational levels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			hp := &planning.HierarchicalPlanner{Client: client}
			plan, err := hp.Plan(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(plan.Steps) == 0 {
				return errors.New("plan has no steps")
			}
			counts := plan.Execute()

			return a.report(cmd.OutOrStdout(), plan, func(w io.Writer) {
				heading(w, "Hierarchical plan: "+plan.Goal)
				if plan.Fallback {
					field(w, "Plan", warnStyle.Render("fallback"))
				}
				rows := make([][]string, 0, len(plan.Steps))
				for _, s := range plan.Steps {
					rows = append(rows, []string{strconv.Itoa(s.ID), string(s.Level), s.Description, status(s.Status)})
				}
				renderTable(w, []string{"#", "Level", "Step", "Status"}, rows)
				levels := make([]string, 0, len(counts))
				for l, n := range counts {
					levels = append(levels, fmt.Sprintf("%s=%d", l, n))
				}
				sort.Strings(levels)
				field(w, "Executed", strings.Join(levels, " "))
			})
		},
	}
}
