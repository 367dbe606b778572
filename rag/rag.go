// Package rag implements retrieval-augmented generation over a
// memory.VectorStore: chunking, embedding, hybrid search, LLM reranking,
// query expansion and a conversational pipeline.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/memory"
	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

// CosineSimilarity returns 0 for zero or mismatched vectors.
func CosineSimilarity(a, b []float64) float64 { return memory.CosineSimilarity(a, b) }

// IndexDocuments chunks, embeds and upserts docs, keyed by document id.
// Chunk ids are "<id>#<n>" and carry source and chunk metadata. It returns
// the number of chunks written.
func IndexDocuments(ctx context.Context, store memory.VectorStore, emb Embedder, docs map[string]string, opts ChunkOptions) (int, error) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := 0
	for _, id := range ids {
		chunks, err := Split(docs[id], opts)
		if err != nil {
			return total, err
		}
		if len(chunks) == 0 {
			continue
		}
		vecs, err := embedAll(ctx, emb, chunks)
		if err != nil {
			return total, fmt.Errorf("embed %s: %w", id, err)
		}
		for i, ch := range chunks {
			cid := fmt.Sprintf("%s#%d", id, i)
			doc := memory.Document{
				ID:        cid,
				Content:   ch,
				Embedding: vecs[i],
				Meta:      map[string]string{"source": id, "chunk": strconv.Itoa(i)},
			}
			if err := store.AddDocument(ctx, doc); err != nil {
				return total, fmt.Errorf("upsert %s: %w", cid, err)
			}
			total++
		}
		log.Debug().Str("source", id).Int("chunks", len(chunks)).Msg("indexed document")
	}
	return total, nil
}

func embedAll(ctx context.Context, emb Embedder, texts []string) ([][]float64, error) {
	if b, ok := emb.(BatchEmbedder); ok {
		return b.EmbedTexts(ctx, texts)
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := emb.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Query retrieves topK documents by embedding similarity.
func Query(ctx context.Context, store memory.VectorStore, emb Embedder, question string, topK int) ([]memory.Document, error) {
	if topK <= 0 {
		topK = 5
	}
	start := time.Now()
	qvec, err := emb.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := store.QuerySimilar(ctx, qvec, topK)
	if err != nil {
		return nil, err
	}
	observability.MetricsImpl.RecordRetrieval(time.Since(start), len(docs))
	return docs, nil
}

// BuildContext formats docs for a prompt as numbered [D1], [D2]... blocks.
func BuildContext(docs []memory.Document) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[D%d]\n%s\n\n", i+1, strings.TrimSpace(d.Content))
	}
	return b.String()
}
