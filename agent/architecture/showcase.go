package architecture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/tools"
)

// Profile rates an architecture on the usual trade-offs.
type Profile struct {
	Kind           Kind   `json:"kind"`
	Complexity     string `json:"complexity"`
	Maintenance    string `json:"maintenance"`
	Scalability    string `json:"scalability"`
	Flexibility    string `json:"flexibility"`
	TypicalUseCase string `json:"typical_use_case"`
}

// Compare returns the profiles of all five architectures.
func Compare() []Profile {
	return []Profile{
		{KindMonolithic, "low", "hard", "limited", "low", "simple applications"},
		{KindModular, "medium", "easy", "medium", "high", "mid-sized applications"},
		{KindEventDriven, "high", "medium", "high", "very high", "distributed systems"},
		{KindLayered, "medium", "easy", "medium", "medium", "enterprise applications"},
		{KindMicroservices, "very high", "hard", "very high", "very high", "complex systems"},
	}
}

// Preprocess lowercases and trims.
func Preprocess(_ context.Context, s string) (string, error) {
	return strings.ToLower(strings.TrimSpace(s)), nil
}

func AnalyzeSentiment(_ context.Context, s string) (string, error) {
	return fmt.Sprintf("sentiment: positive in %q", s), nil
}

func GenerateContent(_ context.Context, s string) (string, error) {
	return "content generated for: " + s, nil
}

// ValidateData rejects blank input.
func ValidateData(_ context.Context, s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", errors.New("empty data")
	}
	return "validated: " + s, nil
}

func FormatResponse(_ context.Context, s string) (string, error) {
	return "formatted: " + s, nil
}

// Run is the outcome of one architecture processing one input.
type Run struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Input  string  `json:"input"`
	Output string  `json:"output,omitempty"`
	Error  string  `json:"error,omitempty"`
	State  State   `json:"state"`
	Events []Event `json:"events"`
}

// Build assembles each architecture from the sample stages. The event-driven
// one answers input_received with a sentiment analysis.
func Build(client llm.Client) []Architecture {
	mono := NewMonolithic("monolithic-agent", client)

	mod := NewModular("modular-agent")
	_ = mod.AddModule("preprocessor", Preprocess)
	_ = mod.AddModule("analyzer", AnalyzeSentiment)
	_ = mod.AddModule("generator", GenerateContent)

	ev := NewEventDriven("event-driven-agent")
	ev.On(EventInputReceived, func(ctx context.Context, e Event) error {
		in, _ := e.Data["input"].(string)
		out, err := AnalyzeSentiment(ctx, in)
		if err != nil {
			return err
		}
		ev.Emit(EventResponseReady, map[string]any{"response": out})
		return nil
	})

	lay := NewLayered("layered-agent")
	_ = lay.AddToLayer(LayerPresentation, Preprocess)
	_ = lay.AddToLayer(LayerBusiness, AnalyzeSentiment)
	_ = lay.AddToLayer(LayerData, ValidateData)

	ms := NewMicroservices("microservices-agent")
	_ = ms.AddService("validator", ValidateData)
	_ = ms.AddService("analyzer", AnalyzeSentiment, "validator")
	_ = ms.AddService("formatter", FormatResponse, "analyzer")

	return []Architecture{mono, mod, ev, lay, ms}
}

// Showcase processes input with every architecture from Build.
func Showcase(ctx context.Context, client llm.Client, input string) []Run {
	var runs []Run
	for _, a := range Build(client) {
		out, err := a.Process(ctx, input)
		r := Run{Name: a.Name(), Kind: a.Kind(), Input: input, Output: out, State: a.State(), Events: a.Events()}
		if err != nil {
			r.Error = err.Error()
		}
		runs = append(runs, r)
	}
	return runs
}

// CannedTool is a tool that answers with a fixed format, for demonstrations
// that need a search or weather source without a network.
type CannedTool struct {
	ToolName string
	Desc     string
	Format   string
}

func (c CannedTool) Name() string           { return c.ToolName }
func (c CannedTool) Description() string    { return c.Desc }
func (c CannedTool) Schema() map[string]any { return tools.InputSchema(c.Desc) }
func (c CannedTool) Execute(_ context.Context, input string) (string, error) {
	return fmt.Sprintf(c.Format, strings.TrimSpace(input)), nil
}

// DemoTools registers a canned web search, canned weather and the
// calculator.
func DemoTools() (*tools.DefaultRegistry, error) {
	reg := tools.NewRegistry()
	for _, t := range []tools.Tool{
		CannedTool{ToolName: "search_web", Desc: "search the web", Format: "search results for: %s"},
		CannedTool{ToolName: "get_weather", Desc: "current weather for a place", Format: "weather for %s: sunny, 25°C"},
		&tools.CalculatorTool{},
	} {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// DemoStepTools routes plan steps to DemoTools.
func DemoStepTools() map[string]string {
	return map[string]string{
		StepSearch:    "search_web",
		StepCalculate: "calculator",
		StepWeather:   "get_weather",
	}
}
