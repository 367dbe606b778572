package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/KamdynS/agentlab/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedReplies(t *testing.T) {
	boom := errors.New("boom")
	c := New("one").Fail(boom).Reply("two")
	ctx := context.Background()

	r, err := c.Completion(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", r.Content)

	_, err = c.Completion(ctx, "b")
	assert.ErrorIs(t, err, boom)

	r, err = c.Completion(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "two", r.Content)
	assert.Equal(t, "c", c.LastPrompt())

	_, err = c.Completion(ctx, "d")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, c.Requests(), 4)
}

func TestStreamWords(t *testing.T) {
	c := New("a b c")
	out := make(chan *llm.Response, 4)
	require.NoError(t, c.Stream(context.Background(), llm.UserPrompt("", "x"), out))
	var got string
	for r := range out {
		got += r.Content
	}
	assert.Equal(t, "a b c", got)
}

func TestOfflineResponder(t *testing.T) {
	c := WithResponder(Offline())
	ctx := context.Background()

	r, err := c.Completion(ctx, "Rate it. Reply with Score: N")
	require.NoError(t, err)
	score, ok := llm.ParseScore(r.Content, "Score", 0, 10)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, score, 5.0)

	r, err = c.Completion(ctx, "Docs:\n1. a\n2. b\n3. c\nReply with comma separated scores")
	require.NoError(t, err)
	scores, ok := llm.ParseScoreList(r.Content, 3)
	assert.True(t, ok)
	assert.Len(t, scores, 3)

	first, _ := c.Completion(ctx, "same")
	second, _ := c.Completion(ctx, "same")
	assert.Equal(t, first.Content, second.Content)
}

func TestOfflineStructuredReplies(t *testing.T) {
	c := WithResponder(Offline())
	ctx := context.Background()

	var sub struct {
		Subtasks []map[string]any `json:"subtasks"`
	}
	r, err := c.Completion(ctx, `Answer in JSON: {"subtasks": [...]}`)
	require.NoError(t, err)
	require.NoError(t, llm.DecodeJSON(r.Content, &sub))
	assert.Len(t, sub.Subtasks, 4)

	var levels map[string][]string
	r, err = c.Completion(ctx, `Answer in JSON: {"strategic": [], "tactical": [], "operational": []}`)
	require.NoError(t, err)
	require.NoError(t, llm.DecodeJSON(r.Content, &levels))
	assert.Len(t, levels["operational"], 4)

	r, err = c.Completion(ctx, "some other json request")
	require.NoError(t, err)
	assert.Equal(t, "{}", r.Content)
}

func TestOfflineAgentPrompts(t *testing.T) {
	c := WithResponder(Offline())
	ctx := context.Background()

	r, err := c.Completion(ctx, "Context: none\nInput: what is Go?\n\nAnswer with:\nACTION: respond or search\nREASON: why")
	require.NoError(t, err)
	assert.Equal(t, "ACTION: respond\nREASON: what is Go?", r.Content)

	r, err = c.Completion(ctx, "Tools: calculator, get_weather\nInput: weather in Madrid\n\nReply with the tool name only.")
	require.NoError(t, err)
	assert.Equal(t, "get_weather", r.Content)

	r, err = c.Completion(ctx, "Tools: calculator, get_weather\nInput: hello\n\nReply with the tool name only.")
	require.NoError(t, err)
	assert.Equal(t, "calculator", r.Content)

	r, err = c.Completion(ctx, "Goal: learn Go\nTools: \n\nWrite a numbered plan of steps")
	require.NoError(t, err)
	assert.Contains(t, r.Content, "1. Search for information on learn Go")
}
