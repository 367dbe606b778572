package rag

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/KamdynS/agentlab/llm/openai"
)

// Embedder provides text embeddings.
type Embedder interface {
	EmbedText(ctx context.Context, input string) ([]float64, error)
}

// BatchEmbedder is implemented by embedders that can embed several inputs
// in one call. IndexDocuments uses it when available.
type BatchEmbedder interface {
	Embedder
	EmbedTexts(ctx context.Context, inputs []string) ([][]float64, error)
}

// OpenAIEmbedder embeds through an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder wraps client. An empty model uses the client's
// configured embedding model.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model}
}

func (e *OpenAIEmbedder) EmbedText(ctx context.Context, input string) ([]float64, error) {
	return e.client.Embed(ctx, input, e.model)
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, inputs []string) ([][]float64, error) {
	return e.client.EmbedBatch(ctx, inputs, e.model)
}

// HashEmbedder is a deterministic bag-of-words embedder for offline runs:
// each lowercased token is hashed into one of Dim buckets with a signed
// weight, and the result is L2-normalised. Texts sharing words end up
// close under cosine similarity.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) EmbedText(_ context.Context, input string) ([]float64, error) {
	vec := make([]float64, e.Dim)
	for _, tok := range Tokenize(input) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		sign := 1.0
		if sum&1 == 1 {
			sign = -1
		}
		vec[(sum>>1)%uint64(e.Dim)] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *HashEmbedder) EmbedTexts(ctx context.Context, inputs []string) ([][]float64, error) {
	out := make([][]float64, len(inputs))
	for i, in := range inputs {
		out[i], _ = e.EmbedText(ctx, in)
	}
	return out, nil
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

var (
	_ BatchEmbedder = (*OpenAIEmbedder)(nil)
	_ BatchEmbedder = (*HashEmbedder)(nil)
)
