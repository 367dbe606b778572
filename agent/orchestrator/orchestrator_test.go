package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/KamdynS/agentlab/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	reply string
	err   error
}

func (f fakeAgent) Run(ctx context.Context, input core.Message) (core.Message, error) {
	if f.err != nil {
		return core.Message{}, f.err
	}
	return core.Message{Role: "assistant", Content: f.reply + ":" + input.Content}, nil
}

func (f fakeAgent) RunStream(ctx context.Context, input core.Message, output chan<- core.Message) error {
	defer close(output)
	if f.err != nil {
		return f.err
	}
	output <- core.Message{Role: "assistant", Content: f.reply}
	return nil
}

func TestAgentTool(t *testing.T) {
	at := &AgentTool{NameStr: "delegate", Desc: "wraps an agent", Agent: fakeAgent{reply: "ok"}}
	assert.Equal(t, "delegate", at.Name())
	assert.Equal(t, "wraps an agent", at.Description())
	assert.Equal(t, "object", at.Schema()["type"])

	out, err := at.Execute(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok:hello", out)

	at.Agent = nil
	_, err = at.Execute(context.Background(), "x")
	assert.Error(t, err)
}

func TestSpecialistTool(t *testing.T) {
	s := NewSpecialist("QA Tester", "Testing", []string{"Testing"}, fake.New("all green"))
	at := SpecialistTool(s)
	assert.Equal(t, "qa_tester", at.Name())
	out, err := at.Execute(context.Background(), "run the suite")
	require.NoError(t, err)
	assert.Equal(t, "all green", out)
}

func TestSequentialPolicy(t *testing.T) {
	out, err := SequentialPolicy{}.Execute(context.Background(), "seed", []core.Agent{fakeAgent{reply: "A1"}, fakeAgent{reply: "A2"}})
	require.NoError(t, err)
	assert.Equal(t, "A2:A1:seed", out)

	_, err = SequentialPolicy{}.Execute(context.Background(), "seed", []core.Agent{fakeAgent{err: errors.New("boom")}})
	assert.EqualError(t, err, "boom")
}

func TestFanOutFirst(t *testing.T) {
	out, err := FanOutFirst{}.Execute(context.Background(), "q", []core.Agent{fakeAgent{err: errors.New("boom")}, fakeAgent{reply: "OK"}})
	require.NoError(t, err)
	assert.Equal(t, "OK:q", out)

	_, err = FanOutFirst{}.Execute(context.Background(), "q", []core.Agent{fakeAgent{err: errors.New("e1")}, fakeAgent{err: errors.New("e2")}})
	assert.Error(t, err)

	_, err = FanOutFirst{}.Execute(context.Background(), "q", nil)
	assert.Error(t, err)
}

func TestCanHandleIgnoresCase(t *testing.T) {
	s := &SpecializedAgent{Capabilities: []string{"API", "Backend"}}
	assert.True(t, s.CanHandle("backend"))
	assert.True(t, s.CanHandle("api"))
	assert.False(t, s.CanHandle("frontend"))
}

func TestSpecialistPrompt(t *testing.T) {
	s := &SpecializedAgent{Specialty: "Backend Development", Capabilities: []string{"API", "Database"}}
	p := s.Prompt("build it", map[string]string{"task_2_result": "b", "task_1_result": "a"})
	assert.Contains(t, p, "specialized in Backend Development")
	assert.Contains(t, p, "Your capabilities are: API, Database.")
	assert.Contains(t, p, "Task: build it")
	assert.Less(t, strings.Index(p, "task_1_result: a"), strings.Index(p, "task_2_result: b"))

	assert.NotContains(t, s.Prompt("x", nil), "Context:")
}

func TestDelegate(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetMetrics(counters)
	t.Cleanup(func() { observability.SetMetrics(observability.NoOpMetrics{}) })

	client := fake.New("api designed").Fail(errors.New("model down"))
	o := New("pm")
	backend := NewSpecialist("Backend Developer", "Backend", []string{"Backend"}, client)
	o.Register(backend)

	r := o.Delegate(context.Background(), "backend", "design api", nil)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "Backend Developer", r.Agent)
	assert.Equal(t, "api designed", r.Result)
	assert.Equal(t, "backend", r.TaskType)

	r = o.Delegate(context.Background(), "Backend", "again", nil)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "LLM call failed: model down", r.Error)

	r = o.Delegate(context.Background(), "Design", "logo", nil)
	assert.Equal(t, StatusNoAgent, r.Status)
	assert.Empty(t, r.Agent)

	assert.Len(t, o.History(), 2)
	assert.Equal(t, 1, backend.Stats().TasksCompleted)
	assert.EqualValues(t, 1, counters.Task("pm", StatusCompleted))
	assert.EqualValues(t, 1, counters.Task("pm", StatusNoAgent))
	assert.Equal(t, 1, counters.ActiveAgents)
}

func TestExecuteWorkflowThreadsContext(t *testing.T) {
	client := fake.New("backend done", "frontend done", "tests done", "deployed")
	o, steps := SoftwareTeam(client)
	results := o.ExecuteWorkflow(context.Background(), steps)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, StatusCompleted, r.Status)
	}
	assert.Equal(t, "QA Tester", results[2].Agent)

	reqs := client.Requests()
	require.Len(t, reqs, 4)
	last := client.LastPrompt()
	assert.Contains(t, last, "task_1_result: backend done")
	assert.Contains(t, last, "task_3_result: tests done")
	assert.NotContains(t, reqs[0].Messages[len(reqs[0].Messages)-1].Content, "Context:")

	rep := o.Report()
	assert.Equal(t, Report{
		Name: "Project Manager",
		Agents: []AgentStats{
			{Name: "Backend Developer", Specialty: "Backend Development", TasksCompleted: 1},
			{Name: "Frontend Developer", Specialty: "Frontend Development", TasksCompleted: 1},
			{Name: "QA Tester", Specialty: "Testing and Quality", TasksCompleted: 1},
			{Name: "DevOps Engineer", Specialty: "DevOps and Infrastructure", TasksCompleted: 1},
		},
		Total:     4,
		Completed: 4,
	}, rep)
}

func TestExecuteWorkflowSkipsFailedContext(t *testing.T) {
	client := fake.New().Fail(errors.New("down")).Reply("second").Reply("third")
	o, steps := CustomerService(client)
	results := o.ExecuteWorkflow(context.Background(), steps)

	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusCompleted, results[1].Status)
	assert.NotContains(t, client.LastPrompt(), "task_1_result")
	assert.Contains(t, client.LastPrompt(), "task_2_result: second")

	rep := o.Report()
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 1, rep.Failed)
}

func TestExecuteWorkflowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, steps := CustomerService(fake.New())
	results := o.ExecuteWorkflow(ctx, steps)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
	}
	assert.Empty(t, o.History())
}

func TestConsultWithPolicies(t *testing.T) {
	o := New("lead")
	o.Register(&SpecializedAgent{Name: "A", Capabilities: []string{"API"}, Agent: fakeAgent{reply: "A1"}})
	o.Register(&SpecializedAgent{Name: "B", Capabilities: []string{"UI"}, Agent: fakeAgent{reply: "B1"}})
	ctx := context.Background()

	seq, err := PolicyByName(PolicySequential)
	require.NoError(t, err)
	r := o.Consult(ctx, seq, "", "seed")
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "B1:A1:seed", r.Result)
	assert.Equal(t, PolicySequential, r.Agent)

	r = o.Consult(ctx, seq, "ui", "seed")
	assert.Equal(t, "B1:seed", r.Result)

	o.Register(&SpecializedAgent{Name: "C", Capabilities: []string{"Ops"}, Agent: fakeAgent{err: errors.New("down")}})
	fan, err := PolicyByName(PolicyFanOut)
	require.NoError(t, err)
	r = o.Consult(ctx, fan, "ops", "q")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "down", r.Error)

	r = o.Consult(ctx, fan, "", "q")
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Contains(t, []string{"A1:q", "B1:q"}, r.Result)

	assert.Equal(t, StatusNoAgent, o.Consult(ctx, fan, "Legal", "q").Status)
	assert.Len(t, o.History(), 4)

	_, err = PolicyByName(PolicyDelegate)
	assert.ErrorContains(t, err, "unknown policy")
}
