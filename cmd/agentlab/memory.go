package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/memory"
	"github.com/spf13/cobra"
)

// experiences seeds the recall demo.
var experiences = []struct {
	content, typ string
	importance   float64
}{
	{"The user prefers answers with code examples", "preference", 0.8},
	{"Deployment failed because the database migration timed out", "episode", 0.9},
	{"Retrying the migration with a longer timeout fixed the deployment", "episode", 0.7},
	{"The team standup happens at 9am", "fact", 0.3},
	{"Vector search works better with chunks of about 200 words", "fact", 0.6},
}

func (a *app) memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect agent memory and conversation history",
	}
	cmd.AddCommand(a.memoryRecallCmd(), a.memoryHistoryCmd())
	return cmd
}

func (a *app) memoryRecallCmd() *cobra.Command {
	var (
		limit int
		max   int
		add   []string
	)
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Recall stored experiences by keyword overlap, recency and importance",
		Example: `  agentlab memory recall "deployment migration"
  agentlab memory recall --add "fact:Builds run on Fridays" builds`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mem := memory.NewSimpleMemory(max)
			for _, e := range experiences {
				mem.Store(e.content, e.typ, e.importance, nil)
			}
			for _, s := range add {
				typ, content, ok := strings.Cut(s, ":")
				if !ok {
					typ, content = "note", s
				}
				mem.Store(content, typ, 0.5, map[string]any{"source": "cli"})
			}

			hits := mem.Retrieve(strings.Join(args, " "), limit)
			out := struct {
				Results []memory.MemoryItem `json:"results"`
				Stats   memory.MemoryStats  `json:"stats"`
			}{hits, mem.Stats()}
			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, fmt.Sprintf("Recall (%d of %d memories)", len(hits), out.Stats.Total))
				rows := make([][]string, 0, len(hits))
				for _, h := range hits {
					rows = append(rows, []string{h.Type, fmt.Sprintf("%.1f", h.Importance), h.Content})
				}
				renderTable(w, []string{"Type", "Importance", "Content"}, rows)
				if len(hits) == 0 {
					fmt.Fprintln(w, "nothing matched")
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 3, "Maximum memories returned")
	cmd.Flags().IntVar(&max, "max-items", 100, "Capacity before the oldest memories are evicted")
	cmd.Flags().StringArrayVar(&add, "add", nil, "Extra memory as type:content (repeatable)")
	return cmd
}

func (a *app) memoryHistoryCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Show or clear the stored conversation of a session",
		Long:  "Reads from Redis when redis.addr is configured; the in-process store is always empty on start.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore := a.conversations()
			defer closeStore()
			ctx := cmd.Context()
			if clear {
				if err := store.ClearSession(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			}
			msgs, err := store.GetMessages(ctx, args[0])
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), msgs, func(w io.Writer) {
				heading(w, "Session "+args[0])
				rows := make([][]string, 0, len(msgs))
				for _, m := range msgs {
					rows = append(rows, []string{time.Unix(m.Timestamp, 0).Format(time.TimeOnly), m.Role, truncate(m.Content, 80)})
				}
				renderTable(w, []string{"Time", "Role", "Content"}, rows)
				field(w, "Messages", len(msgs))
			})
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the session instead of showing it")
	return cmd
}
