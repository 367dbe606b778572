package architecture

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/llm"
	obs "github.com/KamdynS/agentlab/observability"
	"github.com/KamdynS/agentlab/tools"
	"github.com/rs/zerolog/log"
)

// Actions a SimpleAgent can decide on.
const (
	ActionRespond = "respond"
	ActionSearch  = "search"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNoTool        = errors.New("no suitable tool")
)

// Perception is what an agent observed before deciding.
type Perception struct {
	Input   string    `json:"input"`
	Time    time.Time `json:"time"`
	Context string    `json:"context"`
}

// Decision is the action chosen by the model and its reason.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Cycle is one pass of the perceive, think, act loop.
type Cycle struct {
	Perception Perception `json:"perception"`
	Decision   Decision   `json:"decision"`
	Result     string     `json:"result"`
}

// SimpleAgent runs the perceive, think, act loop with a model as the
// decision maker. It remembers previous inputs as context.
type SimpleAgent struct {
	Client llm.Client
	// MemorySize bounds the remembered inputs; zero means 5.
	MemorySize int

	memory []string
}

func (a *SimpleAgent) Perceive(input string) Perception {
	return Perception{Input: input, Time: time.Now(), Context: a.recall()}
}

func (a *SimpleAgent) recall() string {
	if len(a.memory) == 0 {
		return "conversation just started"
	}
	return "previous inputs: " + strings.Join(a.memory, " | ")
}

// Think asks the model for an ACTION and a REASON line.
func (a *SimpleAgent) Think(ctx context.Context, p Perception) (Decision, error) {
	prompt := fmt.Sprintf(`Context: %s
Input: %s

Which action should be taken? Answer with:
ACTION: respond or search
REASON: a short explanation`, p.Context, p.Input)
	resp, err := a.Client.Completion(ctx, prompt)
	if err != nil {
		return Decision{}, err
	}
	return ParseDecision(resp.Content), nil
}

var (
	actionLine = regexp.MustCompile(`(?im)^\s*-?\s*ACTION:\s*(.+)$`)
	reasonLine = regexp.MustCompile(`(?im)^\s*-?\s*REASON:\s*(.+)$`)
)

// ParseDecision reads the ACTION and REASON lines of a reply. Replies
// without them are taken as a plain answer: respond, with the whole reply as
// the reason.
func ParseDecision(reply string) Decision {
	d := Decision{Action: ActionRespond, Reason: strings.TrimSpace(reply)}
	if m := actionLine.FindStringSubmatch(reply); m != nil {
		d.Action = strings.ToLower(strings.Trim(strings.TrimSpace(m[1]), "[]."))
	}
	if m := reasonLine.FindStringSubmatch(reply); m != nil {
		d.Reason = strings.TrimSpace(m[1])
	}
	return d
}

func (a *SimpleAgent) Act(d Decision) (string, error) {
	switch d.Action {
	case ActionRespond:
		return "Based on: " + d.Reason, nil
	case ActionSearch:
		return "Searching for: " + d.Reason, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, d.Action)
}

// Run performs one full cycle and remembers the input.
func (a *SimpleAgent) Run(ctx context.Context, input string) (c Cycle, err error) {
	span, ctx := obs.StartSpan(ctx, "agent.cycle")
	defer func() { obs.EndSpan(span, err) }()

	c.Perception = a.Perceive(input)
	if c.Decision, err = a.Think(ctx, c.Perception); err != nil {
		return c, fmt.Errorf("think: %w", err)
	}
	if c.Result, err = a.Act(c.Decision); err != nil {
		return c, err
	}
	size := a.MemorySize
	if size <= 0 {
		size = 5
	}
	a.memory = append(a.memory, input)
	if len(a.memory) > size {
		a.memory = a.memory[len(a.memory)-size:]
	}
	log.Debug().Str("action", c.Decision.Action).Msg("agent cycle complete")
	return c, nil
}

// ReactiveAgent picks one tool per input and runs it, without planning.
type ReactiveAgent struct {
	Client llm.Client
	Tools  tools.Registry
}

// Reaction names the chosen tool and its output.
type Reaction struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

func (a *ReactiveAgent) Respond(ctx context.Context, input string) (Reaction, error) {
	prompt := fmt.Sprintf(`Tools: %s
Input: %s

Which tool should handle the input? Reply with the tool name only.`, strings.Join(a.Tools.List(), ", "), input)
	resp, err := a.Client.Completion(ctx, prompt)
	if err != nil {
		return Reaction{}, err
	}
	choice := strings.Trim(strings.TrimSpace(resp.Content), "`'\".")
	if _, ok := a.Tools.Get(choice); !ok {
		return Reaction{Tool: choice}, fmt.Errorf("%w: model chose %q", ErrNoTool, choice)
	}
	out, err := a.Tools.Execute(ctx, choice, input)
	if err != nil {
		return Reaction{Tool: choice}, err
	}
	return Reaction{Tool: choice, Output: out}, nil
}

// Step kinds assigned by PlanningAgent.
const (
	StepSearch    = "search"
	StepCalculate = "calculate"
	StepWeather   = "weather"
	StepGeneric   = "generic"
)

// StepResult is the outcome of one plan step.
type StepResult struct {
	Step   string `json:"step"`
	Kind   string `json:"kind"`
	Tool   string `json:"tool,omitempty"`
	Output string `json:"output"`
}

// PlanningAgent asks the model for a numbered plan and executes each step,
// routing steps to registry tools by keyword.
type PlanningAgent struct {
	Client llm.Client
	Tools  tools.Registry

	// StepTools maps a step kind to the tool that runs it. Kinds without a
	// registered tool produce a descriptive result instead.
	StepTools map[string]string

	plan []string
}

var (
	planPrefix = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s*`)
	arithmetic = regexp.MustCompile(`[\d.]+(?:\s*[-+*/]\s*[\d.]+)+`)
)

// CreatePlan asks for a numbered plan and returns its steps without the
// numbering. Blank lines are dropped.
func (a *PlanningAgent) CreatePlan(ctx context.Context, goal string) ([]string, error) {
	var names []string
	if a.Tools != nil {
		names = a.Tools.List()
	}
	prompt := fmt.Sprintf(`Goal: %s
Tools: %s

Write a numbered plan of concrete steps to reach the goal, one per line:
1. first step
2. second step`, goal, strings.Join(names, ", "))
	resp, err := a.Client.Completion(ctx, prompt)
	if err != nil {
		return nil, err
	}
	a.plan = a.plan[:0]
	for _, line := range strings.Split(resp.Content, "\n") {
		if step := strings.TrimSpace(planPrefix.ReplaceAllString(line, "")); step != "" {
			a.plan = append(a.plan, step)
		}
	}
	return append([]string(nil), a.plan...), nil
}

// Classify assigns a step kind from its wording.
func Classify(step string) string {
	lower := strings.ToLower(step)
	switch {
	case strings.Contains(lower, "search"), strings.Contains(lower, "information"):
		return StepSearch
	case strings.Contains(lower, "calculat"), arithmetic.MatchString(step):
		return StepCalculate
	case strings.Contains(lower, "weather"), strings.Contains(lower, "forecast"):
		return StepWeather
	}
	return StepGeneric
}

// ExecuteStep runs one step with the tool mapped to its kind, falling back
// to a descriptive result when no tool applies.
func (a *PlanningAgent) ExecuteStep(ctx context.Context, step string) StepResult {
	r := StepResult{Step: step, Kind: Classify(step)}
	name := a.StepTools[r.Kind]
	if name != "" && a.Tools != nil {
		if _, ok := a.Tools.Get(name); ok {
			input := step
			if r.Kind == StepCalculate {
				if expr := arithmetic.FindString(step); expr != "" {
					input = expr
				}
			}
			out, err := a.Tools.Execute(ctx, name, input)
			if err == nil {
				r.Tool, r.Output = name, out
				return r
			}
			log.Warn().Err(err).Str("tool", name).Str("step", step).Msg("step tool failed")
		}
	}
	switch r.Kind {
	case StepSearch:
		r.Output = "Web search: " + step
	case StepCalculate:
		r.Output = "Calculation: " + step
	case StepWeather:
		r.Output = "Weather: sunny, 25°C"
	default:
		r.Output = "Step done: " + step
	}
	return r
}

// ExecutePlan plans for goal and runs every step in order.
func (a *PlanningAgent) ExecutePlan(ctx context.Context, goal string) ([]StepResult, error) {
	plan, err := a.CreatePlan(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	log.Info().Str("goal", goal).Int("steps", len(plan)).Msg("plan created")
	results := make([]StepResult, 0, len(plan))
	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, a.ExecuteStep(ctx, step))
	}
	return results, nil
}
