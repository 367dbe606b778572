package main

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/agent/orchestrator"
	"github.com/KamdynS/agentlab/allocation"
	"github.com/KamdynS/agentlab/conflict"
	"github.com/KamdynS/agentlab/coordination"
	"github.com/KamdynS/agentlab/negotiation"
	"github.com/spf13/cobra"
)

func (a *app) negotiateCmd() *cobra.Command {
	var (
		preset         string
		strategyA      string
		strategyB      string
		rounds         int
		showHistory    bool
		listPresetsOut bool
	)
	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Run an alternating-offer negotiation between two agents",
		Example: `  agentlab negotiate --preset salary
  agentlab negotiate --preset resource --strategy-a cooperative --rounds 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listPresetsOut {
				for _, name := range negotiation.PresetNames() {
					p, _ := negotiation.LookupPreset(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, p.Description)
				}
				return nil
			}
			p, err := negotiation.LookupPreset(preset)
			if err != nil {
				return err
			}
			s := p.New()
			if s.A, err = withStrategy(s.A, strategyA); err != nil {
				return err
			}
			if s.B, err = withStrategy(s.B, strategyB); err != nil {
				return err
			}
			if rounds > 0 {
				s.MaxRounds = rounds
			}
			res := s.Run()

			return a.report(cmd.OutOrStdout(), res, func(w io.Writer) {
				heading(w, fmt.Sprintf("Negotiation %s: %s (%s) vs %s (%s)", p.Name, s.A.Name, s.A.Strategy, s.B.Name, s.B.Strategy))
				field(w, "Status", status(string(res.Status)))
				field(w, "Rounds", res.Rounds)
				if res.Agreement != nil {
					field(w, "Agreement", negotiation.FormatTerms(res.Agreement))
					field(w, "Accepted by", res.AcceptedBy)
					field(w, "Utility "+s.A.Name, fmt.Sprintf("%.1f", res.UtilityA))
					field(w, "Utility "+s.B.Name, fmt.Sprintf("%.1f", res.UtilityB))
				}
				if showHistory {
					rows := make([][]string, 0, len(res.History))
					for _, r := range res.History {
						rows = append(rows, []string{strconv.Itoa(r.Number), r.OfferA.String(), r.OfferB.String()})
					}
					renderTable(w, []string{"Round", s.A.Name, s.B.Name}, rows)
				}
			})
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "project", "Scenario: "+strings.Join(negotiation.PresetNames(), ", "))
	cmd.Flags().StringVar(&strategyA, "strategy-a", "", "Override the first party's strategy (competitive, cooperative, balanced, adaptive)")
	cmd.Flags().StringVar(&strategyB, "strategy-b", "", "Override the second party's strategy")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "Maximum rounds (default from the preset)")
	cmd.Flags().BoolVar(&showHistory, "history", false, "Print every round's offers")
	cmd.Flags().BoolVar(&listPresetsOut, "list", false, "List presets and exit")
	return cmd
}

func withStrategy(n *negotiation.Negotiator, name string) (*negotiation.Negotiator, error) {
	if name == "" {
		return n, nil
	}
	st, err := negotiation.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return negotiation.NewNegotiator(n.ID, n.Name, st, n.Preferences, n.Reservation), nil
}

func (a *app) conflictsCmd() *cobra.Command {
	var (
		scenario string
		strategy string
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect and resolve resource conflicts between agents",
		Example: `  agentlab conflicts --strategy priority
  agentlab conflicts --scenario database --strategy voting --seed 7
  agentlab conflicts --scenario inversion`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := conflict.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			opts := []conflict.Option{conflict.WithRand(rand.New(rand.NewSource(seedOrNow(seed))))}
			var r *conflict.Resolver
			switch scenario {
			case "gpu":
				r = conflict.GPUScenario(opts...)
			case "database":
				r = conflict.DatabaseScenario(opts...)
			case "inversion":
				r = conflict.InversionScenario(opts...)
			default:
				return fmt.Errorf("unknown scenario %q (have gpu, database, inversion)", scenario)
			}
			r.DetectAll()
			if _, err := r.ResolveAll(st); err != nil {
				return err
			}
			rep := r.Report()

			return a.report(cmd.OutOrStdout(), rep, func(w io.Writer) {
				heading(w, "Conflicts in "+rep.Name)
				field(w, "Strategy", st)
				field(w, "Resolved", fmt.Sprintf("%d of %d", rep.Resolved, rep.Total))
				rows := make([][]string, 0, len(rep.Conflicts))
				for _, c := range rep.Conflicts {
					summary := ""
					if c.Resolution != nil {
						summary = c.Resolution.Summary
					}
					rows = append(rows, []string{c.ID, string(c.Type), c.Resource, strings.Join(c.Agents, ", "), strconv.Itoa(c.Severity), summary})
				}
				renderTable(w, []string{"ID", "Type", "Resource", "Agents", "Severity", "Resolution"}, rows)
				res := make([][]string, 0, len(rep.Resources))
				for _, s := range rep.Resources {
					res = append(res, []string{s.ID, strconv.FormatBool(s.Available), s.Holder})
				}
				renderTable(w, []string{"Resource", "Available", "Holder"}, res)
			})
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "gpu", "Scenario: gpu, database or inversion")
	cmd.Flags().StringVar(&strategy, "strategy", string(conflict.ByPriority), "Resolution strategy: priority, negotiation, arbitration, voting, compromise, first_come")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for voting (0 uses the clock)")
	return cmd
}

func seedOrNow(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

func (a *app) allocateCmd() *cobra.Command {
	var scenario, strategy string
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Assign tasks to agents by skill and capacity",
		Example: `  agentlab allocate --strategy skilled
  agentlab allocate --scenario support --strategy balanced`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := allocation.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			al, ok := allocation.Scenario(scenario)
			if !ok {
				return fmt.Errorf("unknown scenario %q (have software, support)", scenario)
			}
			al.AllocateAll(st)
			rep := al.Report()
			out := struct {
				allocation.Report
				History []allocation.Assignment `json:"history"`
			}{rep, al.History()}

			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, "Allocation for "+rep.Name)
				field(w, "Strategy", st)
				field(w, "Assigned", fmt.Sprintf("%d of %d (%s)", rep.Assigned, rep.Total, pct(rep.AssignedPercent())))
				field(w, "Average load", fmt.Sprintf("%.2f", rep.AverageLoad))
				if len(rep.Overloaded) > 0 {
					field(w, "Overloaded", strings.Join(rep.Overloaded, ", "))
				}
				if len(rep.Underutilized) > 0 {
					field(w, "Underutilized", strings.Join(rep.Underutilized, ", "))
				}
				rows := make([][]string, 0, len(out.History))
				for _, h := range out.History {
					rows = append(rows, []string{h.TaskName, h.AgentName})
				}
				renderTable(w, []string{"Task", "Agent"}, rows)
				agents := make([][]string, 0, len(rep.Agents))
				for _, u := range rep.Agents {
					agents = append(agents, []string{u.Name, fmt.Sprintf("%d/%d", u.Load, u.Capacity), pct(u.Utilization)})
				}
				renderTable(w, []string{"Agent", "Load", "Utilization"}, agents)
			})
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "software", "Scenario: software or support")
	cmd.Flags().StringVar(&strategy, "strategy", string(allocation.Balanced), "Strategy: balanced, greedy, skilled, efficient, first")
	return cmd
}

func (a *app) coordinateCmd() *cobra.Command {
	var scenario, proposal string
	cmd := &cobra.Command{
		Use:   "coordinate",
		Short: "Coordinate a team through message passing and a vote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				c    *coordination.Coordinator
				task coordination.Task
			)
			switch scenario {
			case "research":
				c, task = coordination.Research()
			case "emergency":
				c, task = coordination.Emergency()
			default:
				return fmt.Errorf("unknown scenario %q (have research, emergency)", scenario)
			}
			res := c.CoordinateTask(scenario+"-1", task)
			c.ProcessAll()
			var vote *coordination.VoteResult
			if proposal != "" {
				v := c.Vote(proposal)
				vote = &v
			}
			out := struct {
				Task   coordination.TaskResult  `json:"task"`
				Vote   *coordination.VoteResult `json:"vote,omitempty"`
				Report coordination.Report      `json:"report"`
			}{res, vote, c.Report()}

			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, "Coordination: "+task.Description)
				rows := make([][]string, 0, len(res.Assignments))
				for _, as := range res.Assignments {
					rows = append(rows, []string{as.Subtask.ID, as.Subtask.Capability, as.AgentID, as.Subtask.Description})
				}
				renderTable(w, []string{"Subtask", "Capability", "Agent", "Description"}, rows)
				if len(res.Unassigned) > 0 {
					field(w, "Unassigned", strings.Join(res.Unassigned, ", "))
				}
				if vote != nil {
					field(w, "Vote", fmt.Sprintf("%q %d for, %d against (%s), consensus %s", vote.Proposal, vote.VotesFor, vote.VotesAgainst, pct(vote.PercentFor), status(strconv.FormatBool(vote.Consensus))))
				}
				field(w, "Messages", out.Report.Messages)
				types := make([]string, 0, len(out.Report.ByType))
				for t, n := range out.Report.ByType {
					types = append(types, fmt.Sprintf("%s=%d", t, n))
				}
				sort.Strings(types)
				field(w, "By type", strings.Join(types, " "))
			})
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "research", "Scenario: research or emergency")
	cmd.Flags().StringVar(&proposal, "proposal", "Adopt the shared timeline", "Proposal to vote on (empty skips the vote)")
	return cmd
}

func (a *app) orchestrateCmd() *cobra.Command {
	var (
		policy   string
		prompt   string
		taskType string
	)
	cmd := &cobra.Command{
		Use:   "orchestrate [software|service]",
		Short: "Delegate a multi-step project to specialist agents",
		Long: `With the default delegate policy each workflow step goes to the first
specialist able to handle it. The sequential policy chains the matching
specialists on one prompt; fanout asks them in parallel and keeps the first
answer.`,
		Example: `  agentlab orchestrate service
  agentlab orchestrate --policy fanout --prompt "Design the login flow" --task-type UI`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			team := "software"
			if len(args) == 1 {
				team = args[0]
			}
			var (
				o     *orchestrator.Orchestrator
				steps []orchestrator.Step
			)
			switch team {
			case "software":
				o, steps = orchestrator.SoftwareTeam(client)
			case "service":
				o, steps = orchestrator.CustomerService(client)
			default:
				return fmt.Errorf("unknown team %q (have software, service)", team)
			}
			var results []orchestrator.Result
			if policy == orchestrator.PolicyDelegate {
				results = o.ExecuteWorkflow(cmd.Context(), steps)
			} else {
				p, err := orchestrator.PolicyByName(policy)
				if err != nil {
					return err
				}
				if prompt == "" && len(steps) > 0 {
					prompt = steps[0].Description
				}
				results = []orchestrator.Result{o.Consult(cmd.Context(), p, taskType, prompt)}
			}
			out := struct {
				Results []orchestrator.Result `json:"results"`
				Report  orchestrator.Report   `json:"report"`
			}{results, o.Report()}

			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, "Orchestration by "+o.Name)
				for i, r := range results {
					fmt.Fprintf(w, "%s %s -> %s [%s]\n", labelStyle.Render(fmt.Sprintf("%d.", i+1)), r.TaskType, r.Agent, status(r.Status))
					if r.Result != "" {
						fmt.Fprintln(w, r.Result)
					}
					if r.Error != "" {
						fmt.Fprintln(w, badStyle.Render(r.Error))
					}
				}
				field(w, "Completed", fmt.Sprintf("%d of %d", out.Report.Completed, out.Report.Total))
			})
		},
	}
	cmd.Flags().StringVar(&policy, "policy", orchestrator.PolicyDelegate, "How specialists answer: delegate, sequential or fanout")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt for the sequential and fanout policies (defaults to the first workflow step)")
	cmd.Flags().StringVar(&taskType, "task-type", "", "Only consult specialists with this capability")
	return cmd
}
