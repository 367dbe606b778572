package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

// Step is one typed task in a workflow.
type Step struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// Orchestrator routes tasks to the first registered specialist able to
// handle them.
type Orchestrator struct {
	Name string

	mu      sync.Mutex
	agents  []*SpecializedAgent
	history []Result
}

func New(name string) *Orchestrator {
	return &Orchestrator{Name: name}
}

func (o *Orchestrator) Register(a *SpecializedAgent) {
	o.mu.Lock()
	o.agents = append(o.agents, a)
	n := len(o.agents)
	o.mu.Unlock()
	observability.MetricsImpl.SetActiveAgents(n)
	log.Debug().Str("orchestrator", o.Name).Str("agent", a.Name).Strs("capabilities", a.Capabilities).Msg("agent registered")
}

// Agents returns the registered specialists in registration order.
func (o *Orchestrator) Agents() []*SpecializedAgent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*SpecializedAgent(nil), o.agents...)
}

// FindAgent returns the first agent that can handle taskType, or nil.
func (o *Orchestrator) FindAgent(taskType string) *SpecializedAgent {
	for _, a := range o.Agents() {
		if a.CanHandle(taskType) {
			return a
		}
	}
	return nil
}

// Delegate hands one task to a suitable agent. Tasks without an agent are
// not recorded in the history.
func (o *Orchestrator) Delegate(ctx context.Context, taskType, description string, taskContext map[string]string) Result {
	agent := o.FindAgent(taskType)
	if agent == nil {
		log.Warn().Str("task_type", taskType).Msg("no agent available")
		observability.MetricsImpl.RecordTask(o.Name, StatusNoAgent, 0)
		return Result{TaskType: taskType, Task: description, Status: StatusNoAgent}
	}

	span, ctx := observability.StartSpan(ctx, "orchestrator.delegate")
	span.SetAttribute(observability.AttrAgent, agent.Name)
	start := time.Now()
	r := agent.Execute(ctx, description, taskContext)
	r.TaskType = taskType
	var err error
	if r.Status == StatusFailed {
		err = errors.New(r.Error)
	}
	observability.EndSpan(span, err)
	observability.MetricsImpl.RecordTask(o.Name, r.Status, time.Since(start))

	ev := log.Info()
	if err != nil {
		ev = log.Error().Str("error", r.Error)
	}
	ev.Str("agent", agent.Name).Str("task_type", taskType).Str("status", r.Status).Dur("elapsed", time.Since(start)).Msg("task delegated")

	o.mu.Lock()
	o.history = append(o.history, r)
	o.mu.Unlock()
	return r
}

// ExecuteWorkflow delegates steps in order. Each completed step adds its
// output to the context of later steps as task_N_result (1-based).
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, steps []Step) []Result {
	results := make([]Result, 0, len(steps))
	taskContext := map[string]string{}
	for i, s := range steps {
		if ctx.Err() != nil {
			results = append(results, Result{TaskType: s.Type, Task: s.Description, Status: StatusFailed, Error: ctx.Err().Error()})
			continue
		}
		r := o.Delegate(ctx, s.Type, s.Description, copyContext(taskContext))
		results = append(results, r)
		if r.Status == StatusCompleted {
			taskContext[fmt.Sprintf("task_%d_result", i+1)] = r.Result
		}
	}
	return results
}

func copyContext(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// History returns delegated results in order.
func (o *Orchestrator) History() []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Result(nil), o.history...)
}

// Report summarizes orchestrator activity.
type Report struct {
	Name      string       `json:"name"`
	Agents    []AgentStats `json:"agents"`
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
}

func (o *Orchestrator) Report() Report {
	r := Report{Name: o.Name}
	for _, a := range o.Agents() {
		r.Agents = append(r.Agents, a.Stats())
	}
	for _, h := range o.History() {
		r.Total++
		switch h.Status {
		case StatusCompleted:
			r.Completed++
		case StatusFailed:
			r.Failed++
		}
	}
	return r
}

// SoftwareTeam returns an orchestrator staffed with backend, frontend, QA
// and DevOps specialists, plus a four-step delivery workflow.
func SoftwareTeam(client llm.Client) (*Orchestrator, []Step) {
	o := New("Project Manager")
	o.Register(NewSpecialist("Backend Developer", "Backend Development", []string{"API", "Database", "Security", "Backend"}, client))
	o.Register(NewSpecialist("Frontend Developer", "Frontend Development", []string{"UI", "UX", "Frontend", "Interface"}, client))
	o.Register(NewSpecialist("QA Tester", "Testing and Quality", []string{"Testing", "QA", "Quality"}, client))
	o.Register(NewSpecialist("DevOps Engineer", "DevOps and Infrastructure", []string{"Deploy", "CI/CD", "Infrastructure", "DevOps"}, client))
	return o, []Step{
		{Type: "Backend", Description: "Design and build a REST API for user management with JWT authentication"},
		{Type: "Frontend", Description: "Build a responsive user interface for the user management system"},
		{Type: "Testing", Description: "Design and run integration tests for the whole system"},
		{Type: "DevOps", Description: "Set up a CI/CD pipeline and production deployment"},
	}
}

// CustomerService returns a sales, support and billing desk with three
// customer requests.
func CustomerService(client llm.Client) (*Orchestrator, []Step) {
	o := New("Service Coordinator")
	o.Register(NewSpecialist("Sales Agent", "Sales and Commercial Inquiries", []string{"Sales", "Pricing", "Products", "Quotes"}, client))
	o.Register(NewSpecialist("Technical Support", "Technical Assistance", []string{"Support", "Technical", "Troubleshooting"}, client))
	o.Register(NewSpecialist("Billing Agent", "Billing and Payments", []string{"Billing", "Payments", "Accounting"}, client))
	return o, []Step{
		{Type: "Sales", Description: "Customer wants to know the available business plans and prices"},
		{Type: "Support", Description: "Customer cannot log in to their account: authentication error"},
		{Type: "Billing", Description: "Customer asks to correct last month's invoice for duplicate charges"},
	}
}
