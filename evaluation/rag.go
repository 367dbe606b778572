package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/rag"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RAG metric keys.
const (
	KeyRetrievalTime    = "retrieval_time"
	KeyGenerationTime   = "generation_time"
	KeyTotalTime        = "total_time"
	KeyDocsRetrieved    = "docs_retrieved"
	KeyAvgRelevance     = "avg_relevance_score"
	KeyFaithfulness     = "faithfulness"
	KeyRelevance        = "relevance"
	KeyContextPrecision = "context_precision"
)

// Answerer is satisfied by *rag.Pipeline.
type Answerer interface {
	Ask(ctx context.Context, session, question string) (*rag.Answer, error)
}

// Interaction is one logged question/answer with its metrics. Times are
// in seconds.
type Interaction struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Question      string             `json:"query"`
	Answer        string             `json:"response"`
	Contexts      []string           `json:"contexts"`
	ContextScores []float64          `json:"context_scores"`
	Metrics       map[string]float64 `json:"metrics"`
}

// RAGEvaluator scores RAG answers with an LLM. Scores fall back to
// FallbackScore when the judge fails or replies without a number.
type RAGEvaluator struct {
	Client llm.Client
	// Judge toggles the LLM metrics; timing metrics are always recorded.
	Judge bool
	// Model overrides the model of judge requests.
	Model string
	now   func() time.Time
}

func NewRAGEvaluator(client llm.Client) *RAGEvaluator {
	return &RAGEvaluator{Client: client, Judge: true, now: time.Now}
}

func (e *RAGEvaluator) number(ctx context.Context, prompt string) float64 {
	req := llm.UserPrompt("", prompt)
	req.Model = e.Model
	req.Temperature = llm.Float64(0.1)
	req.MaxTokens = llm.Int(10)
	resp, err := e.Client.Chat(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("rag judge call failed, using default")
		return FallbackScore
	}
	v, ok := llm.ParseScore(resp.Content, "", 1, 10)
	if !ok {
		return FallbackScore
	}
	return v
}

func (e *RAGEvaluator) Faithfulness(ctx context.Context, question, contextText, answer string) float64 {
	return e.number(ctx, fmt.Sprintf(`Rate whether the answer is faithful to the given context.

Query: %s

Context:
%s

Answer:
%s

Is the answer based only on information in the context?
Reply with a number from 1-10 where:
- 1-3: contradicts or is not based on the context
- 4-6: partially based on the context
- 7-10: fully faithful to the context

Reply ONLY with the number:`, question, contextText, answer))
}

func (e *RAGEvaluator) Relevance(ctx context.Context, question, answer string) float64 {
	return e.number(ctx, fmt.Sprintf(`Rate how relevant the answer is to the query.

Query: %s

Answer: %s

How well does the answer respond to the query?
Reply with a number from 1-10 where:
- 1-3: unrelated or irrelevant
- 4-6: partially relevant
- 7-10: very relevant and useful

Reply ONLY with the number:`, question, answer))
}

// ContextPrecision is the share of docs the judge calls relevant. Failed
// calls count as not relevant.
func (e *RAGEvaluator) ContextPrecision(ctx context.Context, question string, docs []string) float64 {
	if len(docs) == 0 {
		return 0
	}
	relevant := 0
	for _, d := range docs {
		if r := []rune(d); len(r) > 300 {
			d = string(r[:300])
		}
		req := llm.UserPrompt("", fmt.Sprintf("Is this document relevant for answering the query?\n\nQuery: %s\n\nDocument: %s...\n\nReply ONLY yes or no:", question, d))
		req.Temperature = llm.Float64(0.1)
		req.MaxTokens = llm.Int(5)
		resp, err := e.Client.Chat(ctx, req)
		if err != nil {
			continue
		}
		if llm.IsAffirmative(resp.Content) {
			relevant++
		}
	}
	return float64(relevant) / float64(len(docs))
}

// Run asks question through a and measures the interaction.
func (e *RAGEvaluator) Run(ctx context.Context, a Answerer, question string) (*Interaction, error) {
	ans, err := a.Ask(ctx, "eval-"+uuid.NewString(), question)
	if err != nil {
		return nil, err
	}

	contexts := make([]string, len(ans.Sources))
	scores := make([]float64, len(ans.Sources))
	for i, s := range ans.Sources {
		contexts[i] = s.Document.Content
		scores[i] = s.Score
	}

	metrics := map[string]float64{
		KeyRetrievalTime:  ans.Timings.Retrieval.Seconds(),
		KeyGenerationTime: ans.Timings.Generation.Seconds(),
		KeyTotalTime:      ans.Timings.Total.Seconds(),
		KeyDocsRetrieved:  float64(len(ans.Sources)),
		KeyAvgRelevance:   mean(scores),
	}
	if e.Judge {
		contextText := strings.Join(contexts, "\n")
		metrics[KeyFaithfulness] = e.Faithfulness(ctx, question, contextText, ans.Text)
		metrics[KeyRelevance] = e.Relevance(ctx, question, ans.Text)
		metrics[KeyContextPrecision] = e.ContextPrecision(ctx, question, contexts)
	}

	return &Interaction{
		ID:            uuid.NewString(),
		Timestamp:     e.now(),
		Question:      question,
		Answer:        ans.Text,
		Contexts:      contexts,
		ContextScores: scores,
		Metrics:       metrics,
	}, nil
}

// RAGSummary averages every metric over a set of cases.
type RAGSummary struct {
	Cases        int                `json:"cases"`
	Averages     map[string]float64 `json:"averages"`
	Interactions []Interaction      `json:"interactions"`
}

// EvaluateDataset runs each case. A failing case aborts the run.
func (e *RAGEvaluator) EvaluateDataset(ctx context.Context, a Answerer, cases []Item) (*RAGSummary, error) {
	sum := &RAGSummary{Averages: map[string]float64{}}
	totals := map[string]float64{}
	for _, c := range cases {
		in, err := e.Run(ctx, a, c.Query)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Query, err)
		}
		for k, v := range in.Metrics {
			totals[k] += v
		}
		sum.Interactions = append(sum.Interactions, *in)
	}
	sum.Cases = len(sum.Interactions)
	for k, v := range totals {
		sum.Averages[k] = v / float64(sum.Cases)
	}
	return sum, nil
}
