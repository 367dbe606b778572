package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/KamdynS/agentlab/config"
	"github.com/KamdynS/agentlab/observability"
	"github.com/KamdynS/agentlab/observability/otel"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app carries the global flags and the loaded configuration to every
// subcommand.
type app struct {
	configPath string
	logLevel   string
	pretty     bool
	offline    bool
	jsonOut    bool

	cfg      *config.Config
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "agentlab",
		Short: "Agent design lab: workflows, multi-agent simulations, planning, RAG and evaluation",
		Long: `agentlab bundles the building blocks of LLM agents behind one CLI.

Simulations (negotiate, conflicts, allocate, coordinate, swarm, plan goal,
plan react) need no model. Commands that call a model read GITHUB_TOKEN, or
run against a scripted offline model with --offline.`,
		Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.shutdown(ctx)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Path to config file")
	pf.StringVarP(&a.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&a.pretty, "pretty", false, "Human-readable logs on stderr")
	pf.BoolVar(&a.offline, "offline", false, "Use the scripted offline model and hash embeddings")
	pf.BoolVar(&a.jsonOut, "json", false, "Print reports as JSON")

	root.AddCommand(
		a.workflowCmd(),
		a.negotiateCmd(),
		a.conflictsCmd(),
		a.allocateCmd(),
		a.coordinateCmd(),
		a.orchestrateCmd(),
		a.planCmd(),
		a.architecturesCmd(),
		a.swarmCmd(),
		a.ragCmd(),
		a.evaluateCmd(),
		a.memoryCmd(),
		a.serveCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "agentlab version %s\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			},
		},
	)
	return root
}

// setup loads configuration, applies flag overrides, and installs logging
// and tracing.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.pretty {
		cfg.Logging.Pretty = true
	}
	if a.offline {
		cfg.LLM.Offline = true
	}
	a.cfg = cfg
	observability.SetupLogging(cfg.Logging.Level, cfg.Logging.Pretty)

	if cfg.Tracing.Exporter == "stdout" {
		tp, shutdown, err := otel.NewStdoutProvider(os.Stderr, "agentlab")
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		observability.SetTracer(otel.NewTracerFrom(tp, "agentlab"))
		a.shutdown = shutdown
	}
	log.Debug().Str("command", cmd.CommandPath()).Bool("offline", cfg.LLM.Offline).Msg("configured")
	return nil
}
