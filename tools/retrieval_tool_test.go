package tools

import (
	"context"
	"testing"

	"github.com/KamdynS/agentlab/memory/inmemory"
	"github.com/KamdynS/agentlab/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalTool(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewVectorStore()
	emb := rag.NewHashEmbedder(128)
	_, err := rag.IndexDocuments(ctx, store, emb, map[string]string{
		"go.txt":     "Go has goroutines and channels for concurrency.",
		"python.txt": "Python uses indentation and dynamic typing.",
	}, rag.DefaultChunkOptions())
	require.NoError(t, err)

	rt := NewRetrievalTool(store, emb)
	rt.TopK = 1
	out, err := rt.Execute(ctx, "goroutines and channels")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] (go.txt")
	assert.Contains(t, out, "goroutines")
	assert.NotContains(t, out, "Python")

	_, err = rt.Execute(ctx, "  ")
	assert.Error(t, err)
	_, err = (&RetrievalTool{}).Execute(ctx, "q")
	assert.Error(t, err)
}

func TestRetrievalToolEmptyStore(t *testing.T) {
	rt := NewRetrievalTool(inmemory.NewVectorStore(), rag.NewHashEmbedder(32))
	out, err := rt.Execute(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "No relevant documents found.", out)
}
