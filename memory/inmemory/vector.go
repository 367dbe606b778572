package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/KamdynS/agentlab/memory"
)

// VectorStore scans every document linearly and ranks by cosine
// similarity. Equal scores are ordered by id.
type VectorStore struct {
	mu   sync.RWMutex
	docs map[string]memory.Document
}

func NewVectorStore() *VectorStore {
	return &VectorStore{docs: make(map[string]memory.Document)}
}

func (s *VectorStore) AddDocument(ctx context.Context, doc memory.Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	if len(doc.Embedding) == 0 {
		return errors.New("empty embedding")
	}
	doc.Score = 0
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
	return nil
}

func (s *VectorStore) QuerySimilar(ctx context.Context, q []float64, limit int) ([]memory.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	s.mu.RLock()
	out := make([]memory.Document, 0, len(s.docs))
	for _, d := range s.docs {
		d.Score = memory.CosineSimilarity(q, d.Embedding)
		out = append(out, d)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *VectorStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	return nil
}

func (s *VectorStore) GetDocument(ctx context.Context, id string) (*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, memory.ErrNotFound)
	}
	return &d, nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

var _ memory.VectorStore = (*VectorStore)(nil)
