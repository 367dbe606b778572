package planning

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionApply(t *testing.T) {
	a := Action{Name: "x", Pre: NewState("p"), Add: NewState("q"), Del: NewState("p")}
	s := NewState("p", "r")
	assert.True(t, a.Applicable(s))
	next := a.Apply(s)
	assert.Equal(t, []string{"q", "r"}, next.Facts())
	assert.Equal(t, []string{"p", "r"}, s.Facts(), "apply does not mutate")
	assert.False(t, a.Applicable(next))
}

func TestRobotNavigation(t *testing.T) {
	p := RobotNavigation()
	plan := p.ForwardSearch()
	assert.Equal(t, []string{
		"open door AB", "go A to B",
		"open door BC", "go B to C",
		"open door CD", "go C to D",
	}, Names(plan))

	ex, err := p.Execute(plan)
	require.NoError(t, err)
	assert.True(t, ex.Reached)
	assert.InDelta(t, 4.5, ex.Cost, 1e-9)

	bfs, err := p.BreadthFirst()
	require.NoError(t, err)
	assert.Len(t, bfs, 6)
}

func TestGreedyStallsWhereBFSSucceeds(t *testing.T) {
	p := ReportAutomation()
	plan := p.ForwardSearch()
	assert.Equal(t, []string{"collect data", "collect data"}, Names(plan))
	ex, err := p.Execute(plan)
	require.NoError(t, err)
	assert.False(t, ex.Reached)

	bfs, err := p.BreadthFirst()
	require.NoError(t, err)
	assert.Equal(t, []string{"collect data", "process data", "generate report", "review report", "send report"}, Names(bfs))
}

func TestBackwardSearch(t *testing.T) {
	p := ReportAutomation()
	plan, err := p.BackwardSearch()
	require.NoError(t, err)
	assert.Equal(t, []string{"collect data", "process data", "generate report", "review report", "send report"}, Names(plan))
	ex, err := p.Execute(plan)
	require.NoError(t, err)
	assert.True(t, ex.Reached)
	assert.Equal(t, 5.0, ex.Cost)

	// Regression ignores deleted facts, so the robot plan cannot be replayed.
	robot := RobotNavigation()
	plan, err = robot.BackwardSearch()
	require.NoError(t, err)
	assert.Len(t, plan, 14)
	_, err = robot.Execute(plan)
	assert.ErrorContains(t, err, "step 4")

	loop := &Planner{
		Actions: []Action{
			{Name: "x from y", Pre: NewState("y"), Add: NewState("x")},
			{Name: "y from x", Pre: NewState("x"), Add: NewState("y")},
		},
		Initial: NewState(),
		Goal:    NewState("x"),
	}
	plan, err = loop.BackwardSearch()
	assert.ErrorIs(t, err, ErrSearchLimit)
	assert.Len(t, plan, MaxSearchIterations+1)

	_, err = (&Planner{Initial: NewState(), Goal: NewState("unreachable")}).BackwardSearch()
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestBlocksWorldUnsolvable(t *testing.T) {
	p := BlocksWorld()
	ex, err := p.Execute(p.ForwardSearch())
	require.NoError(t, err)
	assert.False(t, ex.Reached)
	_, err = p.BreadthFirst()
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestExecuteRejectsInapplicable(t *testing.T) {
	p := RobotNavigation()
	_, err := p.Execute([]Action{p.Actions[2]})
	assert.ErrorContains(t, err, "not applicable")

	plan, err := (&Planner{Initial: NewState("done"), Goal: NewState("done")}).BreadthFirst()
	require.NoError(t, err)
	assert.Empty(t, plan)

	_, ok := Domain("robot")
	assert.True(t, ok)
	assert.Equal(t, []string{"blocks", "report", "robot"}, DomainNames())
}

func TestReactiveClimate(t *testing.T) {
	a := NewReactiveAgent("climate", ClimateRules()...)

	a.Update(map[string]any{"temperature": 32.0, "humidity": 65.0, "light": 500.0, "pressure": 1010.0})
	r := a.React()
	require.Len(t, r, 1)
	assert.Contains(t, r[0].Result, "air conditioning")

	a.Update(map[string]any{"temperature": 28.0, "humidity": 75.0, "light": 150.0, "pressure": 975.0})
	assert.Len(t, a.React(), 3)

	a.Update(map[string]any{"temperature": 35, "humidity": 80, "light": 100, "pressure": 960})
	assert.Len(t, a.React(), 4)
	assert.Len(t, a.History(), 8)
	assert.Equal(t, 35, a.History()[4].State["temperature"])
}

func TestReactiveMergesState(t *testing.T) {
	a := NewReactiveAgent("home", SmartHomeRules()...)
	a.Update(map[string]any{"motion_detected": true, "authorized_person": false})
	assert.Len(t, a.React(), 1)

	a.Update(map[string]any{"room_empty": true, "lights_on": true})
	r := a.React()
	require.Len(t, r, 2, "earlier facts stay in the state")
	assert.Equal(t, "switch off lights to save energy", r[1].Result)
}

func TestReactiveRecoversPanics(t *testing.T) {
	a := NewReactiveAgent("p",
		Rule{Description: "boom", Condition: func(map[string]any) bool { panic("bad rule") }},
		Rule{Description: "ok", Condition: func(map[string]any) bool { return true }, Action: func(map[string]any) string { return "fine" }},
	)
	r := a.React()
	require.Len(t, r, 2)
	assert.Contains(t, r[0].Err, "bad rule")
	assert.Equal(t, "fine", r[1].Result)
	assert.Len(t, a.History(), 1)
}

func TestEnvironment(t *testing.T) {
	env := NewEnvironment(rand.New(rand.NewSource(7)))
	state := env.Generate()
	for i := 0; i < 50; i++ {
		next := env.Drift(state)
		changed := 0
		for _, v := range env.Variables {
			r := env.Ranges[v]
			val := Num(next, v, -1)
			assert.GreaterOrEqual(t, val, r.Min)
			assert.LessOrEqual(t, val, r.Max)
			if val != Num(state, v, -1) {
				changed++
			}
		}
		assert.LessOrEqual(t, changed, 2)
		state = next
	}

	again := NewEnvironment(rand.New(rand.NewSource(7)))
	assert.Equal(t, NewEnvironment(rand.New(rand.NewSource(7))).Generate(), again.Generate())
}

func TestDecomposeOffline(t *testing.T) {
	d := NewDecomposer(fake.WithResponder(fake.Offline()), 0)
	assert.Equal(t, DefaultMaxDepth, d.MaxDepth)

	dec, err := d.Recursive(context.Background(), "Build an online store", 0)
	require.NoError(t, err)
	assert.Equal(t, "high", dec.Analysis.ComplexityLevel)
	assert.False(t, dec.Analysis.Fallback)
	assert.Equal(t, 4, dec.TotalSubtasks)
	assert.Equal(t, 19.0, dec.TotalHours)
	assert.Len(t, dec.Subtasks[0].Children, 4)
	assert.Empty(t, dec.Subtasks[1].Children)
	assert.Len(t, dec.Subtasks[2].Children, 4)
	assert.Len(t, d.History(), 3)

	g := Gantt(dec)
	require.Len(t, g, 4)
	assert.Equal(t, 0.0, g[0].StartDay)
	assert.Equal(t, 0.75, g[0].EndDay)
	assert.Equal(t, 0.75, g[1].StartDay)
	assert.Equal(t, 2.375, g[3].EndDay)

	groups := ByPriority(dec)
	assert.Len(t, groups["high"], 2)
	assert.Len(t, groups["low"], 1)
}

func TestDecomposeDepthAndFallbacks(t *testing.T) {
	c := fake.New("not json", `{"subtasks": [{"estimated_hours": "2.5"}]}`)
	d := NewDecomposer(c, 2)

	a := d.AnalyzeComplexity(context.Background(), "x")
	assert.True(t, a.Fallback)
	assert.Equal(t, Hours(8), a.EstimatedHours)

	subs, err := d.Decompose(context.Background(), "x", 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, SubTask{ID: "task_0", Title: "Untitled", EstimatedHours: 2.5, Priority: "medium"}, subs[0])

	subs, err = d.Decompose(context.Background(), "x", 2)
	assert.NoError(t, err)
	assert.Empty(t, subs)
	assert.Len(t, c.Requests(), 2)

	broken := NewDecomposer(fake.New("{}", "nope"), 3)
	_, err = broken.Recursive(context.Background(), "x", 4)
	assert.Error(t, err)
}

func TestHierarchicalPlan(t *testing.T) {
	p := &HierarchicalPlanner{Client: fake.WithResponder(fake.Offline())}
	plan, err := p.Plan(context.Background(), "Ship a task manager")
	require.NoError(t, err)
	assert.False(t, plan.Fallback)
	require.Len(t, plan.Steps, 9)
	assert.Equal(t, Step{ID: 1, Level: Operational, Description: "Write brief", Priority: 3, Status: "pending"}, plan.Steps[0])
	assert.Equal(t, Strategic, plan.Steps[8].Level)
	assert.Equal(t, 1, plan.Steps[8].Priority)

	counts := plan.Execute()
	assert.Equal(t, map[Level]int{Strategic: 2, Tactical: 3, Operational: 4}, counts)
	assert.Equal(t, "completed", plan.Steps[0].Status)
}

func TestHierarchicalFallback(t *testing.T) {
	p := &HierarchicalPlanner{Client: fake.New().Fail(errors.New("down"))}
	plan, err := p.Plan(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, plan.Fallback)
	assert.Len(t, plan.Steps, 9)
	assert.Equal(t, "Action 1", plan.Steps[0].Description)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&HierarchicalPlanner{Client: fake.WithResponder(fake.Offline())}).Plan(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
