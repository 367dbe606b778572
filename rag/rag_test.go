package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/KamdynS/agentlab/memory"
	"github.com/KamdynS/agentlab/memory/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = map[string]string{
	"go.txt":     "Go is a statically typed compiled language designed at Google. Goroutines make concurrency cheap.",
	"python.txt": "Python is a dynamically typed interpreted language popular for data science.",
	"rust.txt":   "Rust is a systems language focused on memory safety without garbage collection.",
}

func indexed(t *testing.T) (*inmemory.VectorStore, *HashEmbedder) {
	t.Helper()
	store := inmemory.NewVectorStore()
	emb := NewHashEmbedder(128)
	n, err := IndexDocuments(context.Background(), store, emb, corpus, ChunkOptions{Strategy: StrategyParagraphs})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return store, emb
}

func TestHashEmbedderIsDeterministicAndNormalised(t *testing.T) {
	emb := NewHashEmbedder(64)
	ctx := context.Background()
	a, _ := emb.EmbedText(ctx, "Goroutines and channels")
	b, _ := emb.EmbedText(ctx, "goroutines, AND channels!")
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)

	c, _ := emb.EmbedText(ctx, "garbage collection in rust")
	assert.Less(t, CosineSimilarity(a, c), CosineSimilarity(a, b))

	zero, _ := emb.EmbedText(ctx, "   ")
	assert.Equal(t, 0.0, CosineSimilarity(zero, a))
}

func TestIndexAndQuery(t *testing.T) {
	store, emb := indexed(t)
	ctx := context.Background()

	doc, err := store.GetDocument(ctx, "rust.txt#0")
	require.NoError(t, err)
	assert.Equal(t, "rust.txt", doc.Meta["source"])
	assert.Equal(t, "0", doc.Meta["chunk"])

	docs, err := Query(ctx, store, emb, "memory safety without garbage collection", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "rust.txt#0", docs[0].ID)

	ctxText := BuildContext(docs)
	assert.True(t, strings.HasPrefix(ctxText, "[D1]\nRust is"))
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(context.Context, string) ([]float64, error) {
	return nil, errors.New("quota")
}

func TestIndexDocumentsPropagatesEmbedErrors(t *testing.T) {
	_, err := IndexDocuments(context.Background(), inmemory.NewVectorStore(), failingEmbedder{}, corpus, DefaultChunkOptions())
	assert.ErrorContains(t, err, "quota")
}

func TestKeywordOverlap(t *testing.T) {
	assert.Equal(t, 0.5, KeywordOverlap("Go concurrency", "go is simple"))
	assert.Equal(t, 1.0, KeywordOverlap("go go", "Go"))
	assert.Equal(t, 0.0, KeywordOverlap("", "anything"))
}

func TestHybridSearchWeights(t *testing.T) {
	store, emb := indexed(t)
	res, err := HybridSearch(context.Background(), store, emb, "typed language", 2, DefaultHybridWeights())
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.InDelta(t, 0.7*r.VectorScore+0.3*r.KeywordScore, r.Score, 1e-9)
	}
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)

	onlyKeyword, err := HybridSearch(context.Background(), store, emb, "Rust", 1, HybridWeights{Keyword: 1})
	require.NoError(t, err)
	assert.Equal(t, "rust.txt#0", onlyKeyword[0].Document.ID)
}

func TestDedupe(t *testing.T) {
	long := strings.Repeat("a", 120)
	in := []Result{
		{Document: memory.Document{ID: "1", Content: long + "x"}},
		{Document: memory.Document{ID: "2", Content: long + "y"}},
		{Document: memory.Document{ID: "3", Content: "short"}},
	}
	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].Document.ID)
	assert.Equal(t, "3", out[1].Document.ID)
}

func results(ids ...string) []Result {
	out := make([]Result, len(ids))
	for i, id := range ids {
		out[i] = Result{Document: memory.Document{ID: id, Content: "doc " + id}}
	}
	return out
}

func TestRerank(t *testing.T) {
	ctx := context.Background()

	c := fake.New("2, 9, 5")
	out := (&Reranker{Client: c}).Rerank(ctx, "q", results("a", "b", "c"), 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Document.ID)
	assert.Equal(t, 9.0, *out[0].Rerank)
	assert.Equal(t, "c", out[1].Document.ID)
	assert.Contains(t, c.LastPrompt(), "3. doc c...")

	mismatch := (&Reranker{Client: fake.New("1, 2")}).Rerank(ctx, "q", results("a", "b", "c"), 2)
	assert.Equal(t, "a", mismatch[0].Document.ID)
	assert.Nil(t, mismatch[0].Rerank)

	failed := (&Reranker{Client: fake.New().Fail(errors.New("down"))}).Rerank(ctx, "q", results("a", "b"), 5)
	assert.Len(t, failed, 2)
}

func TestExpandQuery(t *testing.T) {
	ctx := context.Background()
	got := ExpandQuery(ctx, fake.New("\n one \n\ntwo\nthree\nfour\n"), "base")
	assert.Equal(t, []string{"base", "one", "two", "three"}, got)

	got = ExpandQuery(ctx, fake.New().Fail(errors.New("x")), "base")
	assert.Equal(t, []string{"base"}, got)
}

func TestPipelineAsk(t *testing.T) {
	store, emb := indexed(t)
	history := inmemory.NewConversationStore()
	client := fake.New(
		"goroutines in go\nrust memory",
		"9, 3, 1",
		"Go uses goroutines [Document 1].",
	)
	p := NewPipeline(store, emb, client, history)
	p.Options.FinalK = 2

	ans, err := p.Ask(context.Background(), "s1", "How does Go handle concurrency?")
	require.NoError(t, err)
	assert.Equal(t, "Go uses goroutines [Document 1].", ans.Text)
	assert.Equal(t, []string{"How does Go handle concurrency?", "goroutines in go", "rust memory"}, ans.Queries)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, 9.0, *ans.Sources[0].Rerank)
	assert.GreaterOrEqual(t, ans.Timings.Total, ans.Timings.Retrieval)

	msgs, err := history.GetMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
}

func TestPipelineUsesRecentHistory(t *testing.T) {
	store, emb := indexed(t)
	history := inmemory.NewConversationStore()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, history.AppendMessage(ctx, "s", llm.RoleUser, "old question "+string(rune('A'+i))))
		require.NoError(t, history.AppendMessage(ctx, "s", llm.RoleAssistant, strings.Repeat("z", 300)))
	}

	client := fake.New("answer")
	p := NewPipeline(store, emb, client, history)
	p.Options.Expand = false
	p.Options.Rerank = false

	_, err := p.Ask(ctx, "s", "Rust?")
	require.NoError(t, err)
	prompt := client.LastPrompt()
	assert.NotContains(t, prompt, "old question A")
	assert.Contains(t, prompt, "old question B")
	assert.Contains(t, prompt, "old question D")
	assert.Contains(t, prompt, "A: "+strings.Repeat("z", 200)+"...")
	assert.NotContains(t, prompt, strings.Repeat("z", 201))
	assert.Contains(t, prompt, "Question: Rust?")
}

func TestPipelineGenerationError(t *testing.T) {
	store, emb := indexed(t)
	p := NewPipeline(store, emb, fake.New().Fail(llm.NewLLMError(llm.ProviderFake, llm.ErrorTypeServerError, "down")), nil)
	p.Options.Expand = false
	p.Options.Rerank = false
	_, err := p.Ask(context.Background(), "s", "q")
	assert.ErrorContains(t, err, "generate answer")
}
