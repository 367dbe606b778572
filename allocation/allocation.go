// Package allocation assigns tasks to agents by skill and capacity and
// tracks shared resource pools.
package allocation

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog/log"
)

type ResourceType string

const (
	Compute ResourceType = "compute"
	Memory  ResourceType = "memory"
	Storage ResourceType = "storage"
	Network ResourceType = "network"
	Time    ResourceType = "time"
)

var ErrInsufficient = errors.New("insufficient capacity")

// Resource is a pool of capacity measured in Unit.
type Resource struct {
	Type      ResourceType `json:"type"`
	Total     float64      `json:"total"`
	Available float64      `json:"available"`
	Unit      string       `json:"unit"`
}

func NewResource(t ResourceType, total float64, unit string) *Resource {
	return &Resource{Type: t, Total: total, Available: total, Unit: unit}
}

// Allocate takes amount from the pool, or fails and leaves it unchanged.
func (r *Resource) Allocate(amount float64) error {
	if amount > r.Available {
		return fmt.Errorf("%w: %s needs %.2f %s, %.2f available", ErrInsufficient, r.Type, amount, r.Unit, r.Available)
	}
	r.Available -= amount
	return nil
}

// Release returns amount to the pool, never above Total.
func (r *Resource) Release(amount float64) {
	r.Available = min(r.Available+amount, r.Total)
}

// Utilization is the used share of the pool as a percentage.
func (r *Resource) Utilization() float64 {
	if r.Total <= 0 {
		return 0
	}
	return (r.Total - r.Available) / r.Total * 100
}

type Agent struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Skills     []string `json:"skills"`
	Capacity   int      `json:"capacity"`
	Load       int      `json:"current_load"`
	Efficiency float64  `json:"efficiency"`
	Completed  int      `json:"completed_tasks"`
}

// CanHandle reports whether the agent has any required skill and spare
// capacity.
func (a *Agent) CanHandle(t *Task) bool {
	if a.Load >= a.Capacity {
		return false
	}
	return slices.ContainsFunc(t.RequiredSkills, func(s string) bool { return slices.Contains(a.Skills, s) })
}

func (a *Agent) Assign(*Task) { a.Load++ }

func (a *Agent) Complete(*Task) {
	a.Load = max(0, a.Load-1)
	a.Completed++
}

func (a *Agent) Utilization() float64 {
	if a.Capacity <= 0 {
		return 0
	}
	return float64(a.Load) / float64(a.Capacity) * 100
}

func (a *Agent) Available() bool { return a.Load < a.Capacity }

func (a *Agent) skillMatch(t *Task) int {
	n := 0
	seen := map[string]bool{}
	for _, s := range t.RequiredSkills {
		if !seen[s] && slices.Contains(a.Skills, s) {
			n++
		}
		seen[s] = true
	}
	return n
}

// Task is a unit of work. Priority runs from 1 to 10.
type Task struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	RequiredSkills []string `json:"required_skills"`
	Priority       int      `json:"priority"`
	EstimatedHours float64  `json:"estimated_hours"`
	AssignedTo     string   `json:"assigned_to,omitempty"`
	Completed      bool     `json:"completed"`
}

type Strategy string

const (
	Balanced  Strategy = "balanced"
	Greedy    Strategy = "greedy"
	Skilled   Strategy = "skilled"
	Efficient Strategy = "efficient"
	First     Strategy = "first"
)

var Strategies = []Strategy{Balanced, Greedy, Skilled, Efficient, First}

func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown allocation strategy %q", s)
}

// Assignment is one entry of the allocation history.
type Assignment struct {
	TaskID    string   `json:"task_id"`
	TaskName  string   `json:"task_name"`
	AgentID   string   `json:"agent_id"`
	AgentName string   `json:"agent_name"`
	Strategy  Strategy `json:"strategy"`
}

// Allocator owns agents, tasks and resource pools, each kept in
// registration order. It is not safe for concurrent use.
type Allocator struct {
	Name string

	agents    []*Agent
	tasks     []*Task
	taskByID  map[string]*Task
	agentByID map[string]*Agent
	resources []*Resource
	history   []Assignment
}

func New(name string) *Allocator {
	return &Allocator{Name: name, taskByID: map[string]*Task{}, agentByID: map[string]*Agent{}}
}

func (al *Allocator) RegisterAgent(a *Agent) {
	if _, ok := al.agentByID[a.ID]; ok {
		for i, x := range al.agents {
			if x.ID == a.ID {
				al.agents[i] = a
			}
		}
	} else {
		al.agents = append(al.agents, a)
	}
	al.agentByID[a.ID] = a
	log.Debug().Str("agent", a.ID).Int("capacity", a.Capacity).Msg("agent registered")
}

func (al *Allocator) AddTask(t *Task) {
	if _, ok := al.taskByID[t.ID]; ok {
		for i, x := range al.tasks {
			if x.ID == t.ID {
				al.tasks[i] = t
			}
		}
	} else {
		al.tasks = append(al.tasks, t)
	}
	al.taskByID[t.ID] = t
}

func (al *Allocator) AddResource(r *Resource) { al.resources = append(al.resources, r) }

// Resource returns the first pool of type t.
func (al *Allocator) Resource(t ResourceType) (*Resource, bool) {
	for _, r := range al.resources {
		if r.Type == t {
			return r, true
		}
	}
	return nil, false
}

func (al *Allocator) Agents() []*Agent { return al.agents }
func (al *Allocator) Tasks() []*Task   { return al.tasks }

func (al *Allocator) Task(id string) (*Task, bool) {
	t, ok := al.taskByID[id]
	return t, ok
}

func (al *Allocator) History() []Assignment { return append([]Assignment(nil), al.history...) }

// FindBestAgent picks a capable agent for t. Ties go to the earliest
// registered agent; an unrecognized strategy behaves like First.
func (al *Allocator) FindBestAgent(t *Task, s Strategy) *Agent {
	var capable []*Agent
	for _, a := range al.agents {
		if a.CanHandle(t) {
			capable = append(capable, a)
		}
	}
	if len(capable) == 0 {
		return nil
	}

	var score func(*Agent) float64
	switch s {
	case Balanced:
		score = func(a *Agent) float64 { return -a.Utilization() }
	case Greedy:
		score = func(a *Agent) float64 { return float64(a.Capacity - a.Load) }
	case Skilled:
		score = func(a *Agent) float64 { return float64(a.skillMatch(t)) }
	case Efficient:
		score = func(a *Agent) float64 { return a.Efficiency }
	default:
		return capable[0]
	}

	best := capable[0]
	bestScore := score(best)
	for _, a := range capable[1:] {
		if sc := score(a); sc > bestScore {
			best, bestScore = a, sc
		}
	}
	return best
}

// AllocateTask assigns the task to the best agent. It returns false when
// the task is unknown, already assigned or completed, or nobody can take
// it.
func (al *Allocator) AllocateTask(id string, s Strategy) bool {
	t, ok := al.taskByID[id]
	if !ok || t.AssignedTo != "" || t.Completed {
		return false
	}
	a := al.FindBestAgent(t, s)
	if a == nil {
		log.Debug().Str("task", t.ID).Msg("no capable agent")
		return false
	}
	a.Assign(t)
	t.AssignedTo = a.ID
	al.history = append(al.history, Assignment{TaskID: t.ID, TaskName: t.Name, AgentID: a.ID, AgentName: a.Name, Strategy: s})
	log.Debug().Str("task", t.ID).Str("agent", a.ID).Str("strategy", string(s)).Msg("task allocated")
	return true
}

// AllocateAll assigns pending tasks by descending priority and returns how
// many were placed.
func (al *Allocator) AllocateAll(s Strategy) int {
	var pending []*Task
	for _, t := range al.tasks {
		if t.AssignedTo == "" && !t.Completed {
			pending = append(pending, t)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Priority > pending[j].Priority })

	n := 0
	for _, t := range pending {
		if al.AllocateTask(t.ID, s) {
			n++
		}
	}
	log.Info().Str("allocator", al.Name).Str("strategy", string(s)).Int("assigned", n).Int("pending", len(pending)).Msg("allocation finished")
	return n
}

// CompleteTask marks an assigned task done and frees its agent.
func (al *Allocator) CompleteTask(id string) error {
	t, ok := al.taskByID[id]
	if !ok {
		return fmt.Errorf("unknown task %q", id)
	}
	if t.AssignedTo == "" {
		return fmt.Errorf("task %q is not assigned", id)
	}
	if t.Completed {
		return fmt.Errorf("task %q already completed", id)
	}
	a, ok := al.agentByID[t.AssignedTo]
	if !ok {
		return fmt.Errorf("task %q assigned to unknown agent %q", id, t.AssignedTo)
	}
	a.Complete(t)
	t.Completed = true
	return nil
}

// Reset clears every assignment and load so another strategy can be
// tried on the same team.
func (al *Allocator) Reset() {
	for _, a := range al.agents {
		a.Load = 0
	}
	for _, t := range al.tasks {
		t.AssignedTo = ""
		t.Completed = false
	}
	al.history = nil
}

type AgentUsage struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Load        int     `json:"load"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

type ResourceUsage struct {
	Type        ResourceType `json:"type"`
	Available   float64      `json:"available"`
	Total       float64      `json:"total"`
	Unit        string       `json:"unit"`
	Utilization float64      `json:"utilization"`
}

type Report struct {
	Name          string          `json:"name"`
	Agents        []AgentUsage    `json:"agents"`
	Total         int             `json:"total_tasks"`
	Assigned      int             `json:"assigned"`
	Unassigned    int             `json:"unassigned"`
	AverageLoad   float64         `json:"average_load"`
	Overloaded    []string        `json:"overloaded"`
	Underutilized []string        `json:"underutilized"`
	Resources     []ResourceUsage `json:"resources"`
}

// AssignedPercent is the share of tasks assigned, 0 with no tasks.
func (r Report) AssignedPercent() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Assigned) / float64(r.Total) * 100
}

// Report summarizes load. Agents above 1.2x the average load are
// overloaded; below 0.8x, underutilized.
func (al *Allocator) Report() Report {
	rep := Report{Name: al.Name, Total: len(al.tasks)}
	load := 0
	for _, a := range al.agents {
		rep.Agents = append(rep.Agents, AgentUsage{ID: a.ID, Name: a.Name, Load: a.Load, Capacity: a.Capacity, Utilization: a.Utilization()})
		load += a.Load
	}
	for _, t := range al.tasks {
		if t.AssignedTo != "" {
			rep.Assigned++
		}
	}
	rep.Unassigned = rep.Total - rep.Assigned
	if len(al.agents) > 0 {
		rep.AverageLoad = float64(load) / float64(len(al.agents))
		for _, a := range al.agents {
			switch l := float64(a.Load); {
			case l > rep.AverageLoad*1.2:
				rep.Overloaded = append(rep.Overloaded, a.Name)
			case l < rep.AverageLoad*0.8:
				rep.Underutilized = append(rep.Underutilized, a.Name)
			}
		}
	}
	for _, r := range al.resources {
		rep.Resources = append(rep.Resources, ResourceUsage{Type: r.Type, Available: r.Available, Total: r.Total, Unit: r.Unit, Utilization: r.Utilization()})
	}
	return rep
}
