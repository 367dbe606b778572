// Package memtest holds behavioural contracts shared by every memory
// backend's tests.
package memtest

import (
	"context"
	"testing"

	"github.com/KamdynS/agentlab/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStore checks a fresh, empty Store.
func RunStore(t *testing.T, s memory.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "k1", "v1"))
	v, err := s.Retrieve(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, keys)

	require.NoError(t, s.Delete(ctx, "k1"))
	_, err = s.Retrieve(ctx, "k1")
	assert.ErrorIs(t, err, memory.ErrNotFound)

	require.NoError(t, s.Store(ctx, "k2", 123))
	require.NoError(t, s.Clear(ctx))
	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// RunConversation checks a fresh ConversationStore.
func RunConversation(t *testing.T, cs memory.ConversationStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, cs.AppendMessage(ctx, "s1", "user", "hello"))
	require.NoError(t, cs.AppendMessage(ctx, "s1", "assistant", "hi"))
	require.NoError(t, cs.AppendMessage(ctx, "s2", "user", "other"))

	msgs, err := cs.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)

	require.NoError(t, cs.ClearSession(ctx, "s1"))
	msgs, err = cs.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = cs.GetMessages(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	empty, err := cs.GetMessages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// RunVector checks a fresh VectorStore using small orthogonal vectors.
func RunVector(t *testing.T, s memory.VectorStore) {
	t.Helper()
	ctx := context.Background()

	docs := []memory.Document{
		{ID: "x", Content: "along x", Embedding: []float64{1, 0, 0}, Meta: map[string]string{"source": "a.txt"}},
		{ID: "y", Content: "along y", Embedding: []float64{0, 1, 0}},
		{ID: "xy", Content: "diagonal", Embedding: []float64{1, 1, 0}},
	}
	for _, d := range docs {
		require.NoError(t, s.AddDocument(ctx, d))
	}
	assert.Error(t, s.AddDocument(ctx, memory.Document{ID: "bad"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.GetDocument(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "along x", got.Content)
	assert.Equal(t, "a.txt", got.Meta["source"])

	res, err := s.QuerySimilar(ctx, []float64{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].ID)
	assert.Equal(t, "xy", res[1].ID)
	assert.Greater(t, res[0].Score, res[1].Score)

	require.NoError(t, s.DeleteDocument(ctx, "x"))
	_, err = s.GetDocument(ctx, "x")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}
