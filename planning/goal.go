// Package planning holds the planners: STRIPS-style goal search, reactive
// rule agents, and LLM-driven task decomposition and hierarchical plans.
package planning

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MaxSearchIterations caps forward and backward search.
const MaxSearchIterations = 50

var (
	ErrNoPlan      = errors.New("no plan found")
	ErrSearchLimit = errors.New("search iteration limit reached")
)

// State is a set of facts.
type State map[string]struct{}

func NewState(facts ...string) State {
	s := make(State, len(facts))
	for _, f := range facts {
		s[f] = struct{}{}
	}
	return s
}

func (s State) Has(f string) bool {
	_, ok := s[f]
	return ok
}

// Contains reports whether every fact of o holds in s.
func (s State) Contains(o State) bool {
	for f := range o {
		if !s.Has(f) {
			return false
		}
	}
	return true
}

func (s State) Clone() State { return maps.Clone(s) }

// Facts returns the facts sorted.
func (s State) Facts() []string { return slices.Sorted(maps.Keys(s)) }

func (s State) key() string { return strings.Join(s.Facts(), "\x00") }

func (s State) overlap(o State) int {
	n := 0
	for f := range o {
		if s.Has(f) {
			n++
		}
	}
	return n
}

func (s State) String() string { return "{" + strings.Join(s.Facts(), ", ") + "}" }

// Action is a STRIPS operator. A zero Cost counts as 1.
type Action struct {
	Name string
	Pre  State
	Add  State
	Del  State
	Cost float64
}

func (a Action) Applicable(s State) bool { return s.Contains(a.Pre) }

// Apply returns the successor state; s is not modified.
func (a Action) Apply(s State) State {
	next := s.Clone()
	for f := range a.Del {
		delete(next, f)
	}
	for f := range a.Add {
		next[f] = struct{}{}
	}
	return next
}

func (a Action) cost() float64 {
	if a.Cost == 0 {
		return 1
	}
	return a.Cost
}

type Planner struct {
	Actions []Action
	Initial State
	Goal    State
}

// ForwardSearch greedily applies the action that gains the most goal
// facts, taking the first on ties. It stops at a revisited state, when no
// action applies, or at MaxSearchIterations; the plan may fall short of
// the goal.
func (p *Planner) ForwardSearch() []Action {
	state := p.Initial.Clone()
	visited := map[string]bool{}
	var plan []Action

	for i := 1; !state.Contains(p.Goal); i++ {
		k := state.key()
		if visited[k] {
			break
		}
		visited[k] = true

		best, bestScore := -1, -1
		have := state.overlap(p.Goal)
		for j, a := range p.Actions {
			if !a.Applicable(state) {
				continue
			}
			if score := a.Apply(state).overlap(p.Goal) - have; score > bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 {
			return nil
		}
		state = p.Actions[best].Apply(state)
		plan = append(plan, p.Actions[best])
		if i > MaxSearchIterations {
			break
		}
	}
	return plan
}

// BackwardSearch regresses the goal through the first action that achieves
// part of it until the remaining goal holds initially. ErrSearchLimit is
// returned together with the partial plan when the cap is hit.
func (p *Planner) BackwardSearch() ([]Action, error) {
	goals := []State{p.Goal.Clone()}
	var plan []Action

	for i := 1; len(goals) > 0; i++ {
		current := goals[len(goals)-1]
		if p.Initial.Contains(current) {
			goals = goals[:len(goals)-1]
			continue
		}
		idx := slices.IndexFunc(p.Actions, func(a Action) bool { return a.Add.overlap(current) > 0 })
		if idx < 0 {
			return nil, ErrNoPlan
		}
		a := p.Actions[idx]
		plan = append([]Action{a}, plan...)
		next := current.Clone()
		for f := range a.Add {
			delete(next, f)
		}
		for f := range a.Pre {
			next[f] = struct{}{}
		}
		goals[len(goals)-1] = next
		if i > MaxSearchIterations {
			return plan, ErrSearchLimit
		}
	}
	return plan, nil
}

// BreadthFirst finds a shortest plan by action count.
func (p *Planner) BreadthFirst() ([]Action, error) {
	type node struct {
		state State
		plan  []Action
	}
	if p.Initial.Contains(p.Goal) {
		return []Action{}, nil
	}
	seen := map[string]bool{p.Initial.key(): true}
	queue := []node{{state: p.Initial.Clone()}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, a := range p.Actions {
			if !a.Applicable(n.state) {
				continue
			}
			next := a.Apply(n.state)
			k := next.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			plan := append(slices.Clip(n.plan), a)
			if next.Contains(p.Goal) {
				return plan, nil
			}
			queue = append(queue, node{state: next, plan: plan})
		}
	}
	return nil, ErrNoPlan
}

type Execution struct {
	Final   State
	Cost    float64
	Reached bool
	Steps   []string
}

// Execute replays plan from the initial state.
func (p *Planner) Execute(plan []Action) (Execution, error) {
	ex := Execution{Final: p.Initial.Clone()}
	for i, a := range plan {
		if !a.Applicable(ex.Final) {
			return ex, fmt.Errorf("step %d: action %q is not applicable in %s", i+1, a.Name, ex.Final)
		}
		ex.Final = a.Apply(ex.Final)
		ex.Cost += a.cost()
		ex.Steps = append(ex.Steps, a.Name)
	}
	ex.Reached = ex.Final.Contains(p.Goal)
	return ex, nil
}

// Names lists the action names of plan.
func Names(plan []Action) []string {
	out := make([]string, len(plan))
	for i, a := range plan {
		out[i] = a.Name
	}
	return out
}
