package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/KamdynS/agentlab/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) workflowCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "List, run and draw DAG workflows",
		Example: `  agentlab workflow list
  agentlab workflow run ci-cd --parallelism 3
  agentlab workflow run -f etl.yaml
  agentlab workflow graph ml-training --dir LR`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args); err != nil {
				return err
			}
			workflow.RegisterBuiltins(delay)
			return nil
		},
	}
	cmd.PersistentFlags().DurationVar(&delay, "delay", 50*time.Millisecond, "Simulated work per unit in the built-in workflows")
	cmd.AddCommand(a.workflowListCmd(), a.workflowRunCmd(), a.workflowGraphCmd())
	return cmd
}

func (a *app) workflowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := workflow.Catalog()
			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, "Workflows")
				rows := make([][]string, 0, len(out))
				for _, e := range out {
					rows = append(rows, []string{e.Name, strconv.Itoa(e.Tasks), e.Source, e.Description})
				}
				renderTable(w, []string{"Name", "Tasks", "Source", "Description"}, rows)
			})
		},
	}
}

// loadWorkflow resolves a registered name, or the YAML definition in file.
func loadWorkflow(args []string, file string) (*workflow.Workflow, error) {
	if file != "" {
		def, err := workflow.LoadFile(file)
		if err != nil {
			return nil, err
		}
		return workflow.Build(def, nil)
	}
	if len(args) != 1 {
		return nil, errors.New("give a workflow name or -f file.yaml")
	}
	wf, err := workflow.Lookup(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w (have %v)", err, workflow.List())
	}
	return wf, nil
}

func (a *app) workflowRunCmd() *cobra.Command {
	var (
		file        string
		parallelism int
		events      bool
	)
	cmd := &cobra.Command{
		Use:   "run [name]",
		Short: "Run a workflow and print its report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := loadWorkflow(args, file)
			if err != nil {
				return err
			}
			opts := []workflow.Option{workflow.WithMaxIterations(a.cfg.Workflow.MaxIterations)}
			if cmd.Flags().Changed("parallelism") {
				opts = append(opts, workflow.WithParallelism(parallelism))
			}
			if events {
				ch := make(chan workflow.Event, 64)
				done := make(chan struct{})
				go func() {
					defer close(done)
					for e := range ch {
						log.Info().Str("event", e.Type).Str("task", e.Task).Int("attempt", e.Attempt).Str("error", e.Error).Msg("workflow event")
					}
				}()
				defer func() { <-done }()
				defer close(ch)
				opts = append(opts, workflow.WithEvents(ch))
			}

			rep, runErr := wf.Run(cmd.Context(), opts...)
			if rep == nil {
				return runErr
			}
			if err := a.report(cmd.OutOrStdout(), rep, func(w io.Writer) { printWorkflowReport(w, rep) }); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML workflow definition")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 1, "Ready tasks run at once")
	cmd.Flags().BoolVar(&events, "events", false, "Log task events while running")
	return cmd
}

func printWorkflowReport(w io.Writer, rep *workflow.Report) {
	heading(w, "Workflow "+rep.Workflow)
	field(w, "Status", status(rep.Status))
	field(w, "Tasks", fmt.Sprintf("%d total, %d completed, %d failed, %d skipped", rep.Total, rep.Completed, rep.Failed, rep.Skipped))
	field(w, "Iterations", rep.Iterations)
	field(w, "Duration", rep.Duration.Round(time.Millisecond))
	if rep.Error != "" {
		field(w, "Error", rep.Error)
	}
	rows := make([][]string, 0, len(rep.Tasks))
	for _, t := range rep.Tasks {
		rows = append(rows, []string{t.ID, t.Name, status(string(t.Status)), strconv.Itoa(t.Attempts), t.Duration.Round(time.Millisecond).String(), t.Error})
	}
	renderTable(w, []string{"ID", "Name", "Status", "Attempts", "Duration", "Error"}, rows)
}

func (a *app) workflowGraphCmd() *cobra.Command {
	var file, dir string
	cmd := &cobra.Command{
		Use:   "graph [name]",
		Short: "Print a workflow as a Mermaid flowchart",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := loadWorkflow(args, file)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), wf.MermaidFlowchart(workflow.WithDirection(dir)))
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML workflow definition")
	cmd.Flags().StringVar(&dir, "dir", "TD", "Direction: TD, LR, BT or RL")
	return cmd
}
