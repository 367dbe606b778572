// Package memory defines the storage contracts used by agents and the RAG
// pipeline, plus a keyword-recall memory for agent experiences.
package memory

import (
	"context"
	"errors"
	"math"
)

// ErrNotFound is returned when a key or document does not exist.
var ErrNotFound = errors.New("memory: not found")

// Store is a key/value store for agent state.
type Store interface {
	Store(ctx context.Context, key string, value any) error
	Retrieve(ctx context.Context, key string) (any, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// ConversationStore keeps ordered message history per session.
type ConversationStore interface {
	Store

	AppendMessage(ctx context.Context, sessionID string, role, content string) error
	GetMessages(ctx context.Context, sessionID string) ([]Message, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// VectorStore holds embedded documents for similarity search.
type VectorStore interface {
	// AddDocument inserts or replaces a document. Embedding must be set.
	AddDocument(ctx context.Context, doc Document) error
	// QuerySimilar returns up to limit documents ordered by descending
	// similarity, with Score set.
	QuerySimilar(ctx context.Context, queryEmbedding []float64, limit int) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	Count(ctx context.Context) (int, error)
}

type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float64         `json:"embedding,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	// Score is the similarity for query results.
	Score float64 `json:"score,omitempty"`
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
