package main

import (
	"testing"

	"github.com/KamdynS/agentlab/config"
	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteJudge(t *testing.T) {
	base := fake.New()

	t.Run("no judge model", func(t *testing.T) {
		c, err := routeJudge(config.LLMConfig{Provider: "openai"}, base)
		require.NoError(t, err)
		assert.Same(t, base, c)
	})

	t.Run("same provider", func(t *testing.T) {
		c, err := routeJudge(config.LLMConfig{Provider: "openai", JudgeModel: llm.ModelGPT4oMini}, base)
		require.NoError(t, err)
		assert.Same(t, base, c)
	})

	t.Run("anthropic judge", func(t *testing.T) {
		c, err := routeJudge(config.LLMConfig{
			Provider:     "openai",
			AnthropicKey: "k",
			JudgeModel:   llm.ModelClaude35Haiku,
		}, base)
		require.NoError(t, err)
		assert.Equal(t, llm.ProviderRouter, c.Provider())
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := routeJudge(config.LLMConfig{Provider: "openai", JudgeModel: llm.ModelClaude35Haiku}, base)
		assert.ErrorContains(t, err, "judge model "+llm.ModelClaude35Haiku)
	})
}
