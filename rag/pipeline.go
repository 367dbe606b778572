package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/memory"
	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

// PipelineOptions tunes retrieval. SearchK is how many results each
// query's hybrid search keeps; FinalK is how many documents reach the
// generation prompt. Zero values take the defaults.
type PipelineOptions struct {
	SearchK      int           `json:"search_k" yaml:"search_k"`
	FinalK       int           `json:"final_k" yaml:"final_k"`
	Expand       bool          `json:"expand" yaml:"expand"`
	Rerank       bool          `json:"rerank" yaml:"rerank"`
	Weights      HybridWeights `json:"weights" yaml:"weights"`
	HistoryTurns int           `json:"history_turns" yaml:"history_turns"`
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		SearchK:      5,
		FinalK:       3,
		Expand:       true,
		Rerank:       true,
		Weights:      DefaultHybridWeights(),
		HistoryTurns: 3,
	}
}

// Timings records where an answer spent its time.
type Timings struct {
	Retrieval  time.Duration `json:"retrieval"`
	Generation time.Duration `json:"generation"`
	Total      time.Duration `json:"total"`
}

type Answer struct {
	Text    string   `json:"text"`
	Sources []Result `json:"sources"`
	Queries []string `json:"queries"`
	Timings Timings  `json:"timings"`
}

// Pipeline answers questions with expansion, hybrid search, dedupe,
// reranking and generation grounded in conversation history.
type Pipeline struct {
	Store    memory.VectorStore
	Embedder Embedder
	LLM      llm.Client
	// History is optional; without it every question stands alone.
	History memory.ConversationStore
	Options PipelineOptions
}

func NewPipeline(store memory.VectorStore, emb Embedder, client llm.Client, history memory.ConversationStore) *Pipeline {
	return &Pipeline{Store: store, Embedder: emb, LLM: client, History: history, Options: DefaultPipelineOptions()}
}

// Retrieve runs expansion, search, dedupe and reranking without
// generating.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]Result, []string, error) {
	opts := p.options()
	queries := []string{question}
	if opts.Expand {
		queries = ExpandQuery(ctx, p.LLM, question)
	}

	var all []Result
	for _, q := range queries {
		res, err := HybridSearch(ctx, p.Store, p.Embedder, q, opts.SearchK, opts.Weights)
		if err != nil {
			return nil, queries, err
		}
		all = append(all, res...)
	}
	unique := Dedupe(all)

	if opts.Rerank {
		if len(unique) > opts.SearchK {
			unique = unique[:opts.SearchK]
		}
		rr := &Reranker{Client: p.LLM}
		return rr.Rerank(ctx, question, unique, opts.FinalK), queries, nil
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Score > unique[j].Score })
	if len(unique) > opts.FinalK {
		unique = unique[:opts.FinalK]
	}
	return unique, queries, nil
}

// Ask answers question within session and appends the exchange to the
// history store.
func (p *Pipeline) Ask(ctx context.Context, session, question string) (*Answer, error) {
	span, ctx := observability.StartSpan(ctx, "rag.ask")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	sources, queries, err := p.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	retrieval := time.Since(start)

	history := p.history(ctx, session)

	genStart := time.Now()
	req := llm.UserPrompt("", generationPrompt(question, sources, history))
	req.Temperature = llm.Float64(0.7)
	req.MaxTokens = llm.Int(800)
	var resp *llm.Response
	resp, err = p.LLM.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	generation := time.Since(genStart)

	if p.History != nil {
		if herr := p.History.AppendMessage(ctx, session, llm.RoleUser, question); herr != nil {
			log.Warn().Err(herr).Str("session", session).Msg("failed to store question")
		}
		if herr := p.History.AppendMessage(ctx, session, llm.RoleAssistant, resp.Content); herr != nil {
			log.Warn().Err(herr).Str("session", session).Msg("failed to store answer")
		}
	}

	span.SetAttribute("rag.sources", len(sources))
	span.SetAttribute("rag.queries", len(queries))
	return &Answer{
		Text:    resp.Content,
		Sources: sources,
		Queries: queries,
		Timings: Timings{Retrieval: retrieval, Generation: generation, Total: time.Since(start)},
	}, nil
}

type exchange struct{ question, answer string }

// history pairs the session's user and assistant messages and keeps the
// most recent HistoryTurns exchanges.
func (p *Pipeline) history(ctx context.Context, session string) []exchange {
	if p.History == nil {
		return nil
	}
	msgs, err := p.History.GetMessages(ctx, session)
	if err != nil {
		log.Warn().Err(err).Str("session", session).Msg("failed to load history")
		return nil
	}
	var out []exchange
	for i := 0; i+1 < len(msgs); i++ {
		if msgs[i].Role == llm.RoleUser && msgs[i+1].Role == llm.RoleAssistant {
			out = append(out, exchange{msgs[i].Content, msgs[i+1].Content})
			i++
		}
	}
	if n := p.options().HistoryTurns; len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func generationPrompt(question string, sources []Result, history []exchange) string {
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, h := range history {
		answer := []rune(h.answer)
		if len(answer) > 200 {
			answer = answer[:200]
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s...\n", h.question, string(answer))
	}
	b.WriteString("\nRelevant context for the current question:\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "\nDocument %d (relevance: %.2f): %s\n", i+1, s.Relevance(), s.Document.Content)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Answer mainly from the context provided
- Keep consistent with the conversation so far
- Say so clearly when you refer to earlier answers
- If the information is incomplete, suggest what else would help
- Cite the most relevant documents used`)
	return b.String()
}

func (p *Pipeline) options() PipelineOptions {
	o := p.Options
	d := DefaultPipelineOptions()
	if o.SearchK <= 0 {
		o.SearchK = d.SearchK
	}
	if o.FinalK <= 0 {
		o.FinalK = d.FinalK
	}
	if o.Weights == (HybridWeights{}) {
		o.Weights = d.Weights
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = d.HistoryTurns
	}
	return o
}
