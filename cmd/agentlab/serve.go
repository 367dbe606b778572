package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/agent/orchestrator"
	obs "github.com/KamdynS/agentlab/observability"
	"github.com/KamdynS/agentlab/observability/prom"
	httpserver "github.com/KamdynS/agentlab/server/http"
	"github.com/KamdynS/agentlab/tools"
	httptool "github.com/KamdynS/agentlab/tools/http"
	"github.com/KamdynS/agentlab/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const systemPrompt = "You are a helpful assistant. Use the available tools to search the knowledge base, run workflows, do arithmetic or delegate to a specialist when they help."

func (a *app) serveCmd() *cobra.Command {
	var (
		f        ragFlags
		cors     bool
		delay    time.Duration
		allowWeb bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chat, RAG and workflow endpoints over HTTP",
		Example: `  agentlab --offline serve
  agentlab serve --docs ./notes --cors`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exporter := prom.New("agentlab")
			obs.SetMetrics(exporter)
			workflow.RegisterBuiltins(delay)

			p, closeAll, err := a.pipeline(ctx, f)
			if err != nil {
				return err
			}
			defer closeAll()

			reg := tools.NewRegistry()
			toolset := []tools.Tool{
				&tools.CalculatorTool{},
				&tools.WorkflowTool{},
				tools.NewRetrievalTool(p.Store, p.Embedder),
			}
			team, _ := orchestrator.SoftwareTeam(p.LLM)
			for _, s := range team.Agents() {
				toolset = append(toolset, orchestrator.SpecialistTool(s))
			}
			if allowWeb {
				toolset = append(toolset, httptool.NewRequestTool(a.cfg.LLM.Timeout))
			}
			for _, t := range toolset {
				if err := reg.Register(t); err != nil {
					return err
				}
			}

			agent := core.NewChatAgent(core.ChatConfig{
				Model: p.LLM,
				Tools: reg,
				Mem:   p.History,
				Config: core.AgentConfig{
					MaxIterations: 5,
					SystemPrompt:  systemPrompt,
				},
			})

			srv := httpserver.NewServer(agent, httpserver.Config{
				Port:         a.cfg.Server.Port,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				EnableCORS:   cors,
				Parallelism:  a.cfg.Workflow.Parallelism,
			}, httpserver.WithRAG(p), httpserver.WithTools(reg), httpserver.WithMetricsHandler(exporter.Handler()))

			log.Info().Strs("tools", reg.List()).Strs("workflows", workflow.List()).Msg("agentlab server ready")
			err = srv.ListenAndServe(ctx)
			for _, u := range reg.Usage() {
				if u.Calls > 0 {
					log.Info().Str("tool", u.Name).Int("calls", u.Calls).Int("errors", u.Errors).Dur("avg_latency", u.AverageLatency()).Msg("tool usage")
				}
			}
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&cors, "cors", false, "Allow cross-origin requests")
	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "Simulated work per unit in the built-in workflows")
	cmd.Flags().BoolVar(&allowWeb, "http-tool", false, "Let the agent issue outbound HTTP requests")
	return cmd
}
