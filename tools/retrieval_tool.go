package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/agentlab/memory"
	"github.com/KamdynS/agentlab/rag"
)

// RetrievalTool searches an indexed knowledge base and returns the best
// passages with their sources.
type RetrievalTool struct {
	Store    memory.VectorStore
	Embedder rag.Embedder
	TopK     int
	Weights  rag.HybridWeights
}

func NewRetrievalTool(store memory.VectorStore, emb rag.Embedder) *RetrievalTool {
	return &RetrievalTool{Store: store, Embedder: emb, TopK: 3, Weights: rag.DefaultHybridWeights()}
}

func (r *RetrievalTool) Name() string { return "search_knowledge_base" }
func (r *RetrievalTool) Description() string {
	return "Search the indexed documents and return the most relevant passages with their sources"
}
func (r *RetrievalTool) Schema() map[string]any { return InputSchema("search query") }

func (r *RetrievalTool) Execute(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", errors.New("empty query")
	}
	if r.Store == nil || r.Embedder == nil {
		return "", errors.New("retrieval tool is not configured")
	}
	results, err := rag.HybridSearch(ctx, r.Store, r.Embedder, query, r.TopK, r.Weights)
	if err != nil {
		return "", err
	}
	results = rag.Dedupe(results)
	if len(results) == 0 {
		return "No relevant documents found.", nil
	}

	var b strings.Builder
	for i, res := range results {
		src := res.Document.Meta["source"]
		if src == "" {
			src = res.Document.ID
		}
		fmt.Fprintf(&b, "[%d] (%s, score %.2f)\n%s\n\n", i+1, src, res.Score, strings.TrimSpace(res.Document.Content))
	}
	return strings.TrimSpace(b.String()), nil
}

var _ Tool = (*RetrievalTool)(nil)
