package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// WriteJSON writes v indented by two spaces.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes one row per evaluation. Metric columns come from the
// first result.
func WriteCSV(w io.Writer, results []Evaluation) error {
	if len(results) == 0 {
		return nil
	}
	metrics := results[0].ScoreMetrics()
	header := []string{"timestamp", "query", "response", "word_count", "overall_score"}
	for _, m := range metrics {
		header = append(header, m+"_score")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Timestamp.Format(time.RFC3339),
			r.Query,
			truncate(r.Response, 100),
			strconv.Itoa(r.Basic.WordCount),
			formatScore(r.Overall),
		}
		for _, m := range metrics {
			row = append(row, formatScore(r.Scores[m].Value))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// RunRecord is a LangSmith-style trace of one interaction.
type RunRecord struct {
	RunID     string             `json:"run_id"`
	Timestamp string             `json:"timestamp"`
	Inputs    map[string]any     `json:"inputs"`
	Outputs   map[string]any     `json:"outputs"`
	Metrics   map[string]float64 `json:"metrics"`
	Metadata  map[string]any     `json:"metadata"`
}

// RunRecords converts interactions for export.
func RunRecords(interactions []Interaction, model string) []RunRecord {
	out := make([]RunRecord, 0, len(interactions))
	for _, in := range interactions {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, RunRecord{
			RunID:     id,
			Timestamp: in.Timestamp.Format(time.RFC3339),
			Inputs:    map[string]any{"question": in.Question},
			Outputs:   map[string]any{"answer": in.Answer, "contexts": in.Contexts},
			Metrics:   in.Metrics,
			Metadata: map[string]any{
				"model":          model,
				"docs_retrieved": len(in.Contexts),
			},
		})
	}
	return out
}

// WriteRunRecords writes records as a JSON array.
func WriteRunRecords(w io.Writer, records []RunRecord) error {
	if err := WriteJSON(w, records); err != nil {
		return fmt.Errorf("write run records: %w", err)
	}
	return nil
}
