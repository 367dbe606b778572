package architecture

import (
	"context"
	"strings"
	"testing"

	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	d := ParseDecision("- ACTION: [Search]\n- REASON: need fresh data")
	assert.Equal(t, Decision{Action: ActionSearch, Reason: "need fresh data"}, d)

	d = ParseDecision("just an answer")
	assert.Equal(t, Decision{Action: ActionRespond, Reason: "just an answer"}, d)
}

func TestSimpleAgentCycle(t *testing.T) {
	client := fake.New("ACTION: respond\nREASON: AI is a field of study", "ACTION: search\nREASON: go releases", "ACTION: dance\nREASON: why not")
	a := &SimpleAgent{Client: client, MemorySize: 1}
	ctx := context.Background()

	c, err := a.Run(ctx, "What is AI?")
	require.NoError(t, err)
	assert.Equal(t, "conversation just started", c.Perception.Context)
	assert.Equal(t, "Based on: AI is a field of study", c.Result)

	c, err = a.Run(ctx, "Latest Go?")
	require.NoError(t, err)
	assert.Equal(t, "previous inputs: What is AI?", c.Perception.Context)
	assert.Equal(t, "Searching for: go releases", c.Result)
	assert.Contains(t, client.LastPrompt(), "Input: Latest Go?")

	_, err = a.Run(ctx, "Third")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, "previous inputs: Latest Go?", a.Perceive("x").Context)
}

func TestReactiveAgent(t *testing.T) {
	reg, err := DemoTools()
	require.NoError(t, err)
	ctx := context.Background()

	a := &ReactiveAgent{Client: fake.New("calculator", "`get_weather`", "translate"), Tools: reg}
	r, err := a.Respond(ctx, "(2 + 3) * 4")
	require.NoError(t, err)
	assert.Equal(t, Reaction{Tool: "calculator", Output: "20"}, r)

	r, err = a.Respond(ctx, "Madrid")
	require.NoError(t, err)
	assert.Equal(t, "weather for Madrid: sunny, 25°C", r.Output)

	_, err = a.Respond(ctx, "hola")
	assert.ErrorIs(t, err, ErrNoTool)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StepSearch, Classify("Search for information"))
	assert.Equal(t, StepCalculate, Classify("Work out 3 + 4"))
	assert.Equal(t, StepCalculate, Classify("Calculate the total"))
	assert.Equal(t, StepWeather, Classify("Check the weather"))
	assert.Equal(t, StepGeneric, Classify("Write the summary"))
}

func TestPlanningAgent(t *testing.T) {
	reg, err := DemoTools()
	require.NoError(t, err)
	client := fake.New("1. Search for information on ML\n\n2) Calculate 6 * 7\n- Check the weather\n3. Calculate the budget\n4. Summarise")
	a := &PlanningAgent{Client: client, Tools: reg, StepTools: DemoStepTools()}

	results, err := a.ExecutePlan(context.Background(), "Research machine learning")
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, StepResult{Step: "Search for information on ML", Kind: StepSearch, Tool: "search_web", Output: "search results for: Search for information on ML"}, results[0])
	assert.Equal(t, "42", results[1].Output)
	assert.Equal(t, "get_weather", results[2].Tool)
	// the calculator cannot parse prose, so the step falls back
	assert.Equal(t, StepResult{Step: "Calculate the budget", Kind: StepCalculate, Output: "Calculation: Calculate the budget"}, results[3])
	assert.Equal(t, "Step done: Summarise", results[4].Output)
	assert.True(t, strings.Contains(client.LastPrompt(), "calculator, get_weather, search_web"))
}

func TestPlanningAgentWithoutTools(t *testing.T) {
	a := &PlanningAgent{Client: fake.WithResponder(fake.Offline())}
	results, err := a.ExecutePlan(context.Background(), "learn Go")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Web search: Search for information on learn Go", results[0].Output)
	assert.Equal(t, "Calculation: Calculate 6 * 7", results[1].Output)
}
