package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogDefaults(t *testing.T) {
	m, err := GetModel(DefaultChatModel)
	require.NoError(t, err)
	assert.Equal(t, KindChat, m.Kind)
	assert.True(t, m.ServedBy(ProviderGitHub))

	e, err := GetModel(DefaultEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, KindEmbedding, e.Kind)
	assert.Equal(t, 1536, e.Dimensions)
}

func TestValidateModel(t *testing.T) {
	assert.NoError(t, ValidateModel(ModelGPT4oMini, ProviderGitHub))
	assert.NoError(t, ValidateModel(ModelClaude35Haiku, ""))
	assert.Error(t, ValidateModel(ModelClaude35Haiku, ProviderGitHub))
	assert.Error(t, ValidateModel("gpt-9", ""))
}

func TestModelsForIsSorted(t *testing.T) {
	ms := ModelsFor(ProviderGitHub, KindChat)
	require.Len(t, ms, 2)
	assert.Equal(t, ModelGPT4o, ms[0].Name)
	assert.Equal(t, ModelGPT4oMini, ms[1].Name)
	assert.Empty(t, ModelsFor(ProviderFake, ""))
}

func TestEstimateCost(t *testing.T) {
	m := Catalog[ModelGPT4o]
	assert.InDelta(t, 2.5+10, m.EstimateCost(1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.0, m.EstimateCost(0, 0), 1e-9)
}
