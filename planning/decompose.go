package planning

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxDepth  = 3
	DefaultThreshold = 4.0
	HoursPerDay      = 8.0
)

// Hours accepts a JSON number or a numeric string.
type Hours float64

func (h *Hours) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*h = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("hours: %w", err)
	}
	*h = Hours(v)
	return nil
}

type Analysis struct {
	ComplexityLevel       string   `json:"complexity_level"`
	EstimatedHours        Hours    `json:"estimated_hours"`
	RequiresDecomposition bool     `json:"requires_decomposition"`
	MainChallenges        []string `json:"main_challenges"`
	RequiredSkills        []string `json:"required_skills"`
	SuggestedApproach     string   `json:"suggested_approach"`
	Fallback              bool     `json:"fallback,omitempty"`
}

// FallbackAnalysis is used when the model's analysis cannot be read.
func FallbackAnalysis() Analysis {
	return Analysis{
		ComplexityLevel:       "medium",
		EstimatedHours:        8,
		RequiresDecomposition: true,
		MainChallenges:        []string{"analysis unavailable"},
		RequiredSkills:        []string{"general"},
		SuggestedApproach:     "standard approach",
		Fallback:              true,
	}
}

type SubTask struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	EstimatedHours Hours    `json:"estimated_hours"`
	Priority       string   `json:"priority"`
	Dependencies   []string `json:"dependencies"`
	Skills         []string `json:"skills_required"`
}

type Node struct {
	Task     SubTask   `json:"task"`
	Children []SubTask `json:"children"`
}

type Decomposition struct {
	MainTask      string   `json:"main_task"`
	Analysis      Analysis `json:"analysis"`
	Subtasks      []Node   `json:"subtasks"`
	TotalSubtasks int      `json:"total_subtasks"`
	TotalHours    float64  `json:"total_estimated_hours"`
}

type DecompositionRecord struct {
	Task     string `json:"task"`
	Depth    int    `json:"depth"`
	Subtasks int    `json:"subtasks_count"`
}

// Decomposer breaks tasks into subtasks with an LLM.
type Decomposer struct {
	Client   llm.Client
	MaxDepth int

	history []DecompositionRecord
}

func NewDecomposer(c llm.Client, maxDepth int) *Decomposer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Decomposer{Client: c, MaxDepth: maxDepth}
}

func (d *Decomposer) History() []DecompositionRecord {
	return append([]DecompositionRecord(nil), d.history...)
}

func (d *Decomposer) ask(ctx context.Context, prompt string, out any) error {
	req := llm.UserPrompt("", prompt)
	req.Temperature = llm.Float64(0.7)
	return llm.ChatJSON(ctx, d.Client, req, out)
}

// AnalyzeComplexity asks for a JSON complexity assessment, falling back to
// FallbackAnalysis when the reply is unusable.
func (d *Decomposer) AnalyzeComplexity(ctx context.Context, task string) Analysis {
	span, ctx := observability.StartSpan(ctx, "planning.analyze")
	var a Analysis
	err := d.ask(ctx, fmt.Sprintf(`Analyze the complexity of the following task and answer in JSON.

Task: %s

Use this structure:
{
  "complexity_level": "low/medium/high/very_high",
  "estimated_hours": number,
  "requires_decomposition": true/false,
  "main_challenges": ["challenge 1", "challenge 2"],
  "required_skills": ["skill 1", "skill 2"],
  "suggested_approach": "recommended approach"
}

Reply ONLY with the JSON, no extra text.`, task), &a)
	observability.EndSpan(span, err)
	if err != nil || a.ComplexityLevel == "" {
		log.Warn().Err(err).Msg("complexity analysis unavailable, using fallback")
		return FallbackAnalysis()
	}
	return a
}

// Decompose splits task into subtasks. It returns nothing once depth
// reaches MaxDepth.
func (d *Decomposer) Decompose(ctx context.Context, task string, depth int) ([]SubTask, error) {
	if depth >= d.MaxDepth {
		return nil, nil
	}
	span, ctx := observability.StartSpan(ctx, "planning.decompose")
	span.SetAttribute("depth", depth)

	var out struct {
		Subtasks []SubTask `json:"subtasks"`
	}
	err := d.ask(ctx, fmt.Sprintf(`Decompose the following task into manageable, specific subtasks.

Main task: %s

Answer in JSON with this structure:
{
  "subtasks": [
    {
      "id": "subtask_1",
      "title": "Short title",
      "description": "Detailed description",
      "estimated_hours": number,
      "priority": "high/medium/low",
      "dependencies": ["id_of_previous_subtask"],
      "skills_required": ["required skill"]
    }
  ]
}

Guidelines:
- Create between 3 and 7 subtasks
- Each subtask must be specific and actionable
- Estimate hours realistically
- Define logical dependencies
- List the skills needed

Reply ONLY with the JSON, no extra text.`, strings.TrimSpace(task)), &out)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	subtasks := make([]SubTask, 0, len(out.Subtasks))
	for i, st := range out.Subtasks {
		if st.ID == "" {
			st.ID = fmt.Sprintf("task_%d", i)
		}
		if st.Title == "" {
			st.Title = "Untitled"
		}
		if st.EstimatedHours == 0 {
			st.EstimatedHours = 1
		}
		if st.Priority == "" {
			st.Priority = "medium"
		}
		subtasks = append(subtasks, st)
	}
	d.history = append(d.history, DecompositionRecord{Task: task, Depth: depth, Subtasks: len(subtasks)})
	return subtasks, nil
}

// Recursive analyzes task, decomposes it, and decomposes once more every
// subtask estimated above threshold hours.
func (d *Decomposer) Recursive(ctx context.Context, task string, threshold float64) (*Decomposition, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	dec := &Decomposition{MainTask: strings.TrimSpace(task), Analysis: d.AnalyzeComplexity(ctx, task)}

	subtasks, err := d.Decompose(ctx, task, 0)
	if err != nil {
		return nil, err
	}
	for _, st := range subtasks {
		node := Node{Task: st}
		if float64(st.EstimatedHours) > threshold {
			children, err := d.Decompose(ctx, st.Description, 1)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn().Err(err).Str("subtask", st.ID).Msg("child decomposition failed")
			}
			node.Children = children
		}
		dec.Subtasks = append(dec.Subtasks, node)
		dec.TotalHours += float64(st.EstimatedHours)
	}
	dec.TotalSubtasks = len(subtasks)
	return dec, nil
}

type GanttTask struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	StartDay     float64 `json:"start_day"`
	DurationDays float64 `json:"duration_days"`
	EndDay       float64 `json:"end_day"`
	Priority     string  `json:"priority"`
}

// Gantt lays the top-level subtasks end to end in working days.
func Gantt(dec *Decomposition) []GanttTask {
	var out []GanttTask
	day := 0.0
	for _, n := range dec.Subtasks {
		dur := float64(n.Task.EstimatedHours) / HoursPerDay
		out = append(out, GanttTask{
			ID:           n.Task.ID,
			Name:         n.Task.Title,
			StartDay:     day,
			DurationDays: dur,
			EndDay:       day + dur,
			Priority:     n.Task.Priority,
		})
		day += dur
	}
	return out
}

// ByPriority groups top-level subtasks by their priority label.
func ByPriority(dec *Decomposition) map[string][]SubTask {
	out := map[string][]SubTask{}
	for _, n := range dec.Subtasks {
		p := strings.ToLower(n.Task.Priority)
		out[p] = append(out[p], n.Task)
	}
	return out
}
