package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/rs/zerolog/log"
)

// Judge metrics.
const (
	MetricRelevance    = "relevance"
	MetricFaithfulness = "faithfulness"
	MetricCompleteness = "completeness"
	MetricClarity      = "clarity"
)

// FallbackScore is used when the judge's reply carries no score.
const FallbackScore = 5.0

// Score is one judged metric. Err is set, and Value is 0, when the judge
// call itself failed.
type Score struct {
	Metric        string  `json:"metric"`
	Value         float64 `json:"score"`
	Justification string  `json:"justification"`
	Max           float64 `json:"max_score"`
	Err           string  `json:"error,omitempty"`
}

// Judge grades responses 1-10 with an LLM. A non-empty Model is set on
// every request.
type Judge struct {
	Client llm.Client
	Model  string
}

const replyFormat = `Provide:
1. A score (1-10)
2. A brief justification

Reply format:
Score: [number]
Justification: [explanation]`

func (j *Judge) Relevance(ctx context.Context, query, response string) Score {
	return j.grade(ctx, MetricRelevance, fmt.Sprintf(`Rate how relevant the response is to the query on a scale of 1-10.

Query: %s

Response: %s

Criteria:
- 1-3: unrelated or completely irrelevant
- 4-6: partially relevant, addresses some aspects
- 7-8: relevant, addresses most important aspects
- 9-10: highly relevant, fully addresses the query

%s`, query, response, replyFormat))
}

func (j *Judge) Faithfulness(ctx context.Context, contextText, response string) Score {
	return j.grade(ctx, MetricFaithfulness, fmt.Sprintf(`Rate whether the response is faithful to the given context on a scale of 1-10.

Context:
%s

Response:
%s

Criteria:
- 1-3: contradicts the context or invents information
- 4-6: partially based on the context
- 7-8: mostly faithful to the context
- 9-10: fully faithful, adds no outside information

%s`, contextText, response, replyFormat))
}

func (j *Judge) Completeness(ctx context.Context, query, response string) Score {
	return j.grade(ctx, MetricCompleteness, fmt.Sprintf(`Rate how complete the response is on a scale of 1-10.

Query: %s

Response: %s

Criteria:
- 1-3: very incomplete, essential information missing
- 4-6: partially complete
- 7-8: fairly complete, covers most aspects
- 9-10: very complete, covers every important aspect

%s`, query, response, replyFormat))
}

func (j *Judge) Clarity(ctx context.Context, response string) Score {
	return j.grade(ctx, MetricClarity, fmt.Sprintf(`Rate the clarity and readability of the response on a scale of 1-10.

Response: %s

Criteria:
- 1-3: confusing, hard to follow
- 4-6: partially clear
- 7-8: clear and easy to follow
- 9-10: very clear, excellent communication

%s`, response, replyFormat))
}

func (j *Judge) grade(ctx context.Context, metric, prompt string) Score {
	s := Score{Metric: metric, Max: 10}
	req := llm.UserPrompt("", prompt)
	req.Model = j.Model
	req.Temperature = llm.Float64(0.1)
	req.MaxTokens = llm.Int(200)

	resp, err := j.Client.Chat(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("metric", metric).Msg("judge call failed")
		s.Err = err.Error()
		s.Justification = "evaluation error: " + err.Error()
		return s
	}
	return parseJudgement(metric, resp.Content)
}

// parseJudgement reads "Score:" and "Justification:" lines. A reply
// without a usable score gets FallbackScore.
func parseJudgement(metric, text string) Score {
	s := Score{Metric: metric, Max: 10, Justification: llm.ParseLabeled(text, "Justification")}
	v, ok := llm.ParseScore(llm.ParseLabeled(text, "Score"), "", 0, 10)
	if !ok || v == 0 {
		log.Warn().Str("metric", metric).Msg("judge score unparseable, using default")
		v = FallbackScore
	}
	s.Value = v
	return s
}

// Evaluation is the full assessment of one response.
type Evaluation struct {
	Timestamp time.Time        `json:"timestamp"`
	Query     string           `json:"query"`
	Response  string           `json:"response"`
	Context   string           `json:"context,omitempty"`
	Basic     BasicMetrics     `json:"basic_metrics"`
	Scores    map[string]Score `json:"llm_evaluations"`
	Overall   float64          `json:"overall_score"`
}

// ScoreMetrics returns the judged metric names in a fixed order.
func (e Evaluation) ScoreMetrics() []string {
	var out []string
	for _, m := range []string{MetricRelevance, MetricCompleteness, MetricClarity, MetricFaithfulness} {
		if _, ok := e.Scores[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Evaluator runs the judge over responses and datasets.
type Evaluator struct {
	Judge *Judge
	now   func() time.Time
}

func NewEvaluator(client llm.Client) *Evaluator {
	return &Evaluator{Judge: &Judge{Client: client}, now: time.Now}
}

// EvaluateResponse judges relevance, completeness and clarity, plus
// faithfulness when context is given. Overall is their mean.
func (e *Evaluator) EvaluateResponse(ctx context.Context, query, response, contextText string) Evaluation {
	ev := Evaluation{
		Timestamp: e.now(),
		Query:     query,
		Response:  response,
		Context:   contextText,
		Basic:     ComputeBasic(response),
		Scores: map[string]Score{
			MetricRelevance:    e.Judge.Relevance(ctx, query, response),
			MetricCompleteness: e.Judge.Completeness(ctx, query, response),
			MetricClarity:      e.Judge.Clarity(ctx, response),
		},
	}
	if contextText != "" {
		ev.Scores[MetricFaithfulness] = e.Judge.Faithfulness(ctx, contextText, response)
	}
	var values []float64
	for _, m := range ev.ScoreMetrics() {
		values = append(values, ev.Scores[m].Value)
	}
	ev.Overall = mean(values)
	return ev
}

// Summary aggregates overall scores over a dataset.
type Summary struct {
	Total        int            `json:"total_evaluations"`
	Stats        Stats          `json:"stats"`
	Distribution map[string]int `json:"distribution"`
	Timestamp    time.Time      `json:"evaluation_timestamp"`
	Results      []Evaluation   `json:"detailed_results"`
}

// EvaluateDataset evaluates each item in order. It stops early only when
// ctx is cancelled.
func (e *Evaluator) EvaluateDataset(ctx context.Context, items []Item) (*Summary, error) {
	results := make([]Evaluation, 0, len(items))
	scores := make([]float64, 0, len(items))
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := e.EvaluateResponse(ctx, it.Query, it.Response, it.Context)
		log.Debug().Int("item", i).Float64("overall", ev.Overall).Msg("evaluated item")
		results = append(results, ev)
		scores = append(scores, ev.Overall)
	}
	return &Summary{
		Total:        len(results),
		Stats:        Describe(scores),
		Distribution: Distribution(scores),
		Timestamp:    e.now(),
		Results:      results,
	}, nil
}
