package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/memory"
	"github.com/KamdynS/agentlab/observability"
)

// HybridWeights mixes vector similarity and keyword overlap.
type HybridWeights struct {
	Vector  float64 `json:"vector" yaml:"vector"`
	Keyword float64 `json:"keyword" yaml:"keyword"`
}

func DefaultHybridWeights() HybridWeights { return HybridWeights{Vector: 0.7, Keyword: 0.3} }

// Result is a scored retrieval hit. Rerank is set once an LLM has scored
// the document.
type Result struct {
	Document     memory.Document `json:"document"`
	VectorScore  float64         `json:"vector_score"`
	KeywordScore float64         `json:"keyword_score"`
	Score        float64         `json:"score"`
	Rerank       *float64        `json:"rerank_score,omitempty"`
}

// Relevance is the rerank score when present, else the combined score.
func (r Result) Relevance() float64 {
	if r.Rerank != nil {
		return *r.Rerank
	}
	return r.Score
}

// KeywordOverlap is |q ∩ d| / |q| over lowercased whitespace-separated
// words, or 0 for an empty query.
func KeywordOverlap(query, doc string) float64 {
	q := wordSet(query)
	if len(q) == 0 {
		return 0
	}
	d := wordSet(doc)
	n := 0
	for w := range q {
		if _, ok := d[w]; ok {
			n++
		}
	}
	return float64(n) / float64(len(q))
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// HybridSearch pulls max(topK*4, 20) candidates from the vector store,
// rescores them by weighted vector and keyword score and keeps topK.
func HybridSearch(ctx context.Context, store memory.VectorStore, emb Embedder, query string, topK int, w HybridWeights) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	start := time.Now()
	qvec, err := emb.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := store.QuerySimilar(ctx, qvec, max(topK*4, 20))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, len(docs))
	for i, d := range docs {
		kw := KeywordOverlap(query, d.Content)
		results[i] = Result{
			Document:     d,
			VectorScore:  d.Score,
			KeywordScore: kw,
			Score:        w.Vector*d.Score + w.Keyword*kw,
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	observability.MetricsImpl.RecordRetrieval(time.Since(start), len(results))
	return results, nil
}

// Dedupe drops results whose first 100 runes repeat an earlier result.
func Dedupe(results []Result) []Result {
	seen := map[string]struct{}{}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := r.Document.Content
		if rs := []rune(key); len(rs) > 100 {
			key = string(rs[:100])
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Documents unwraps results.
func Documents(results []Result) []memory.Document {
	docs := make([]memory.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs
}
