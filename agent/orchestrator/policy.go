package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Policy names accepted by PolicyByName.
const (
	PolicyDelegate   = "delegate"
	PolicySequential = "sequential"
	PolicyFanOut     = "fanout"
)

// Policy defines how a group of agents answers one prompt.
type Policy interface {
	Execute(ctx context.Context, prompt string, agents []core.Agent) (string, error)
}

// SequentialPolicy calls agents one by one, feeding previous output to next.
type SequentialPolicy struct{}

func (SequentialPolicy) Execute(ctx context.Context, prompt string, agents []core.Agent) (string, error) {
	input := prompt
	for _, a := range agents {
		out, err := a.Run(ctx, core.Message{Role: "user", Content: input})
		if err != nil {
			return "", err
		}
		input = out.Content
	}
	return input, nil
}

// FanOutFirst runs all agents in parallel and returns the first success.
// The others are cancelled. If every agent fails the last error wins.
type FanOutFirst struct{}

func (FanOutFirst) Execute(ctx context.Context, prompt string, agents []core.Agent) (string, error) {
	if len(agents) == 0 {
		return "", errors.New("no agents")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type res struct {
		s   string
		err error
	}
	ch := make(chan res, len(agents))
	var g errgroup.Group
	for _, a := range agents {
		g.Go(func() error {
			out, err := a.Run(ctx, core.Message{Role: "user", Content: prompt})
			ch <- res{out.Content, err}
			return nil
		})
	}

	var lastErr error
	for range agents {
		r := <-ch
		if r.err == nil {
			cancel()
			return r.s, nil
		}
		lastErr = r.err
	}
	_ = g.Wait()
	return "", lastErr
}

// PolicyByName maps a policy name to its implementation. Delegate has no
// Policy value: it is the per-step routing of ExecuteWorkflow.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicySequential:
		return SequentialPolicy{}, nil
	case PolicyFanOut:
		return FanOutFirst{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (have %s, %s, %s)", name, PolicyDelegate, PolicySequential, PolicyFanOut)
	}
}

// Consult answers prompt with every specialist able to handle taskType
// (all of them when taskType is empty), combined by p. The outcome is
// recorded in the history under the policy's name.
func (o *Orchestrator) Consult(ctx context.Context, p Policy, taskType, prompt string) Result {
	var agents []core.Agent
	var names []string
	for _, s := range o.Agents() {
		if s.Agent != nil && (taskType == "" || s.CanHandle(taskType)) {
			agents = append(agents, s.Agent)
			names = append(names, s.Name)
		}
	}
	name := policyName(p)
	if len(agents) == 0 {
		observability.MetricsImpl.RecordTask(o.Name, StatusNoAgent, 0)
		return Result{Agent: name, TaskType: taskType, Task: prompt, Status: StatusNoAgent}
	}

	span, ctx := observability.StartSpan(ctx, "orchestrator.consult")
	span.SetAttribute(observability.AttrAgent, name)
	start := time.Now()
	out, err := p.Execute(ctx, prompt, agents)
	observability.EndSpan(span, err)

	r := Result{Agent: name, TaskType: taskType, Task: prompt, Status: StatusCompleted, Result: out}
	if err != nil {
		r.Status, r.Error, r.Result = StatusFailed, err.Error(), ""
	}
	observability.MetricsImpl.RecordTask(o.Name, r.Status, time.Since(start))
	log.Info().Str("policy", name).Strs("agents", names).Str("status", r.Status).Dur("elapsed", time.Since(start)).Msg("policy consulted")

	o.mu.Lock()
	o.history = append(o.history, r)
	o.mu.Unlock()
	return r
}

func policyName(p Policy) string {
	switch p.(type) {
	case SequentialPolicy, *SequentialPolicy:
		return PolicySequential
	case FanOutFirst, *FanOutFirst:
		return PolicyFanOut
	}
	return fmt.Sprintf("%T", p)
}
