package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/KamdynS/agentlab/evaluation"
	"github.com/KamdynS/agentlab/evaluation/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "evaluate",
		Aliases: []string{"eval"},
		Short:   "Score responses and RAG answers with basic metrics and an LLM judge",
	}
	cmd.AddCommand(a.evaluateBasicCmd(), a.evaluateRAGCmd(), a.evaluateRunsCmd())
	return cmd
}

// items loads path, or returns the built-in items under the given name.
func items(path, name string, builtin func() []evaluation.Item) (string, []evaluation.Item, error) {
	if path == "" {
		return name, builtin(), nil
	}
	ds, err := evaluation.LoadDataset(path)
	if err != nil {
		return "", nil, err
	}
	return ds.Name, ds.Items, nil
}

func createFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) evaluateBasicCmd() *cobra.Command {
	var dataset, csvPath string
	var save bool
	cmd := &cobra.Command{
		Use:   "basic",
		Short: "Judge answered questions for relevance, faithfulness, completeness and clarity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, its, err := items(dataset, "sample-responses", evaluation.SampleResponses)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			ev := evaluation.NewEvaluator(client)
			ev.Judge.Model = a.cfg.LLM.JudgeModel
			sum, err := ev.EvaluateDataset(cmd.Context(), its)
			if err != nil {
				return err
			}
			if csvPath != "" {
				if err := createFile(csvPath, func(w io.Writer) error { return evaluation.WriteCSV(w, sum.Results) }); err != nil {
					return fmt.Errorf("write csv: %w", err)
				}
			}
			if save {
				run := &store.EvaluationRun{ID: uuid.NewString(), Kind: "basic", Dataset: name, Cases: sum.Total, Mean: sum.Stats.Mean}
				if err := a.saveRun(run, nil); err != nil {
					return err
				}
			}

			return a.report(cmd.OutOrStdout(), sum, func(w io.Writer) {
				heading(w, fmt.Sprintf("Evaluation of %s (%d responses)", name, sum.Total))
				rows := make([][]string, 0, len(sum.Results))
				for _, r := range sum.Results {
					row := []string{truncate(r.Query, 40), strconv.Itoa(r.Basic.WordCount)}
					for _, m := range []string{evaluation.MetricRelevance, evaluation.MetricFaithfulness, evaluation.MetricCompleteness, evaluation.MetricClarity} {
						if s, ok := r.Scores[m]; ok {
							row = append(row, fmt.Sprintf("%.1f", s.Value))
						} else {
							row = append(row, "-")
						}
					}
					row = append(row, fmt.Sprintf("%.2f", r.Overall))
					rows = append(rows, row)
				}
				renderTable(w, []string{"Query", "Words", "Relevance", "Faithfulness", "Completeness", "Clarity", "Overall"}, rows)
				field(w, "Mean", fmt.Sprintf("%.2f (median %.2f, std %.2f)", sum.Stats.Mean, sum.Stats.Median, sum.Stats.Std))
				bands := make([]string, 0, len(sum.Distribution))
				for b := range sum.Distribution {
					bands = append(bands, b)
				}
				sort.Strings(bands)
				for _, b := range bands {
					field(w, "  "+b, sum.Distribution[b])
				}
			})
		},
	}
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "JSON or YAML dataset (default: built-in samples)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write per-response results to this CSV file")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the run to the configured database")
	return cmd
}

func (a *app) evaluateRAGCmd() *cobra.Command {
	var (
		f          ragFlags
		dataset    string
		recordPath string
		judge      bool
		save       bool
	)
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Run questions through the RAG pipeline and score the answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, cases, err := items(dataset, "sample-rag", evaluation.SampleRAGCases)
			if err != nil {
				return err
			}
			p, closeAll, err := a.pipeline(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer closeAll()

			ev := evaluation.NewRAGEvaluator(p.LLM)
			ev.Judge = judge
			ev.Model = a.cfg.LLM.JudgeModel
			sum, err := ev.EvaluateDataset(cmd.Context(), p, cases)
			if err != nil {
				return err
			}
			if recordPath != "" {
				recs := evaluation.RunRecords(sum.Interactions, a.cfg.LLM.Model)
				if err := createFile(recordPath, func(w io.Writer) error { return evaluation.WriteRunRecords(w, recs) }); err != nil {
					return err
				}
			}
			if save {
				run := &store.EvaluationRun{ID: uuid.NewString(), Kind: "rag", Dataset: name, Cases: sum.Cases, Averages: sum.Averages}
				if err := a.saveRun(run, sum.Interactions); err != nil {
					return err
				}
			}

			return a.report(cmd.OutOrStdout(), sum, func(w io.Writer) {
				heading(w, fmt.Sprintf("RAG evaluation of %s (%d cases)", name, sum.Cases))
				rows := make([][]string, 0, len(sum.Interactions))
				for _, in := range sum.Interactions {
					rows = append(rows, []string{
						truncate(in.Question, 40),
						strconv.Itoa(len(in.Contexts)),
						fmt.Sprintf("%.3f", in.Metrics[evaluation.KeyAvgRelevance]),
						fmt.Sprintf("%.3fs", in.Metrics[evaluation.KeyTotalTime]),
					})
				}
				renderTable(w, []string{"Question", "Docs", "Avg relevance", "Total time"}, rows)
				keys := make([]string, 0, len(sum.Averages))
				for k := range sum.Averages {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					field(w, k, fmt.Sprintf("%.3f", sum.Averages[k]))
				}
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "JSON or YAML dataset of questions (default: built-in cases)")
	cmd.Flags().BoolVar(&judge, "judge", true, "Score faithfulness, relevance and context precision with the model")
	cmd.Flags().StringVar(&recordPath, "records", "", "Write run records as JSON to this file")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the run and its interactions to the configured database")
	return cmd
}

func (a *app) saveRun(run *store.EvaluationRun, interactions []evaluation.Interaction) error {
	db, err := a.database()
	if err != nil {
		return err
	}
	defer db.Close()
	for _, in := range interactions {
		if err := db.SaveInteraction(run.ID, in); err != nil {
			return err
		}
	}
	if err := db.SaveRun(run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	log.Info().Str("run_id", run.ID).Str("kind", run.Kind).Int("cases", run.Cases).Msg("evaluation run saved")
	return nil
}

func (a *app) evaluateRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List saved evaluation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}
			defer db.Close()
			runs, err := db.ListRuns()
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), runs, func(w io.Writer) {
				heading(w, "Evaluation runs")
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					score := fmt.Sprintf("%.2f", r.Mean)
					if r.Kind == "rag" {
						score = fmt.Sprintf("%.3f", r.Averages[evaluation.KeyAvgRelevance])
					}
					rows = append(rows, []string{r.ID, r.Kind, r.Dataset, strconv.Itoa(r.Cases), score, r.CreatedAt.Local().Format(time.DateTime)})
				}
				renderTable(w, []string{"Run", "Kind", "Dataset", "Cases", "Score", "Created"}, rows)
			})
		},
	}
}
