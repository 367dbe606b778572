package planning

import (
	"context"
	"fmt"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

type Level string

const (
	Strategic   Level = "strategic"
	Tactical    Level = "tactical"
	Operational Level = "operational"
)

// Levels runs from the most abstract to the most concrete.
var Levels = []Level{Strategic, Tactical, Operational}

// Hierarchy maps each level to its goals.
type Hierarchy map[Level][]string

func FallbackHierarchy() Hierarchy {
	return Hierarchy{
		Strategic:   {"Phase 1", "Phase 2", "Phase 3"},
		Tactical:    {"Task 1", "Task 2", "Task 3"},
		Operational: {"Action 1", "Action 2", "Action 3"},
	}
}

type Step struct {
	ID          int    `json:"id"`
	Level       Level  `json:"level"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Status      string `json:"status"`
}

type HierarchicalPlan struct {
	Goal      string    `json:"goal"`
	Hierarchy Hierarchy `json:"hierarchy"`
	Steps     []Step    `json:"steps"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// HierarchicalPlanner decomposes goals into three levels of abstraction.
type HierarchicalPlanner struct {
	Client llm.Client
}

// Decompose asks for the level breakdown of goal. The fallback hierarchy
// is returned together with the error when the reply is unusable.
func (p *HierarchicalPlanner) Decompose(ctx context.Context, goal string) (Hierarchy, error) {
	span, ctx := observability.StartSpan(ctx, "planning.hierarchy")
	var h Hierarchy
	req := llm.UserPrompt("", fmt.Sprintf(`Decompose the following goal into 3 hierarchical levels.

Main goal: %s

Answer in JSON with this structure:
{
  "strategic": ["sub-goal 1", "sub-goal 2"],
  "tactical": ["task 1", "task 2"],
  "operational": ["action 1", "action 2"]
}

- strategic: the major phases of the project
- tactical: specific tasks within each phase
- operational: concrete, detailed actions

Reply ONLY with the JSON, no extra text.`, goal))
	req.Temperature = llm.Float64(0.7)
	err := llm.ChatJSON(ctx, p.Client, req, &h)
	if err == nil && len(h[Strategic])+len(h[Tactical])+len(h[Operational]) == 0 {
		err = fmt.Errorf("hierarchy for %q has no levels", goal)
	}
	observability.EndSpan(span, err)
	if err != nil {
		log.Warn().Err(err).Msg("hierarchy unavailable, using fallback")
		return FallbackHierarchy(), err
	}
	return h, nil
}

// ExecutionSteps flattens h bottom-up: operational steps first. Priority
// is the level's rank, 1 for strategic.
func ExecutionSteps(h Hierarchy) []Step {
	var steps []Step
	id := 1
	for i := len(Levels) - 1; i >= 0; i-- {
		lvl := Levels[i]
		for _, item := range h[lvl] {
			steps = append(steps, Step{ID: id, Level: lvl, Description: item, Priority: i + 1, Status: "pending"})
			id++
		}
	}
	return steps
}

// Plan decomposes goal and flattens it. A failed decomposition yields the
// fallback plan, never an error, unless ctx is done.
func (p *HierarchicalPlanner) Plan(ctx context.Context, goal string) (*HierarchicalPlan, error) {
	h, err := p.Decompose(ctx, goal)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &HierarchicalPlan{Goal: goal, Hierarchy: h, Steps: ExecutionSteps(h), Fallback: err != nil}, nil
}

// Execute marks each step completed in order and returns the count per
// level.
func (hp *HierarchicalPlan) Execute() map[Level]int {
	counts := map[Level]int{}
	for i := range hp.Steps {
		hp.Steps[i].Status = "completed"
		counts[hp.Steps[i].Level]++
	}
	return counts
}
