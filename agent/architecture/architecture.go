// Package architecture contrasts five ways of wiring an agent's processing:
// monolithic, modular pipeline, event-driven, layered and microservices.
// Every architecture records its state transitions and events so runs can
// be compared side by side.
package architecture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KamdynS/agentlab/llm"
	obs "github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

type State string

const (
	Idle     State = "idle"
	Thinking State = "thinking"
	Acting   State = "acting"
	Waiting  State = "waiting"
	Failed   State = "error"
)

type Kind string

const (
	KindMonolithic    Kind = "monolithic"
	KindModular       Kind = "modular"
	KindEventDriven   Kind = "event_driven"
	KindLayered       Kind = "layered"
	KindMicroservices Kind = "microservices"
)

// Event types recorded by every architecture.
const (
	EventInputReceived   = "input_received"
	EventModuleProcessed = "module_processed"
	EventResponseReady   = "response_ready"
)

// Event is one entry of an architecture's history.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	Time time.Time      `json:"time"`
}

// Stage transforms text. Modules, layer components and services are stages.
type Stage func(ctx context.Context, input string) (string, error)

// Architecture processes one input at a time.
type Architecture interface {
	Name() string
	Kind() Kind
	Process(ctx context.Context, input string) (string, error)
	State() State
	Events() []Event
}

var (
	ErrUnknownLayer      = errors.New("unknown layer")
	ErrUnknownService    = errors.New("unknown service")
	ErrServiceCycle      = errors.New("service dependency cycle")
	ErrDuplicateStage    = errors.New("stage already registered")
	errNilStage          = errors.New("nil stage")
	errNilClient         = errors.New("nil llm client")
	errEmptyArchitecture = errors.New("architecture has no stages")
)

// base holds the state and history shared by all architectures.
type base struct {
	name string
	kind Kind

	mu     sync.Mutex
	state  State
	events []Event
}

func (b *base) init(name string, kind Kind) {
	b.name, b.kind, b.state = name, kind, Idle
}

func (b *base) Name() string { return b.name }
func (b *base) Kind() Kind   { return b.kind }

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

func (b *base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *base) record(typ string, data map[string]any) {
	b.mu.Lock()
	b.events = append(b.events, Event{Type: typ, Data: data, Time: time.Now()})
	b.mu.Unlock()
}

// begin opens the span of one Process call and moves to Thinking.
func (b *base) begin(ctx context.Context, input string) (obs.Span, context.Context) {
	span, ctx := obs.StartSpan(ctx, "architecture.process")
	span.SetAttribute(obs.AttrAgent, b.name)
	span.SetAttribute("architecture.kind", string(b.kind))
	b.setState(Thinking)
	log.Debug().Str("architecture", b.name).Str("kind", string(b.kind)).Msg("processing input")
	return span, ctx
}

// finish closes the span and settles the state: Idle on success, Failed
// otherwise.
func (b *base) finish(span obs.Span, err error) {
	obs.EndSpan(span, err)
	if err != nil {
		b.setState(Failed)
		obs.MetricsImpl.RecordError("architecture_error", map[string]string{"kind": string(b.kind)})
		return
	}
	b.setState(Idle)
}

// Monolithic sends the whole input to one model call.
type Monolithic struct {
	base
	client llm.Client
}

func NewMonolithic(name string, client llm.Client) *Monolithic {
	m := &Monolithic{client: client}
	m.init(name, KindMonolithic)
	return m
}

func (m *Monolithic) Process(ctx context.Context, input string) (out string, err error) {
	span, ctx := m.begin(ctx, input)
	defer func() { m.finish(span, err) }()
	if m.client == nil {
		return "", errNilClient
	}
	m.record(EventInputReceived, map[string]any{"input": input})

	resp, err := m.client.Completion(ctx, "Process: "+input)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.name, err)
	}
	m.setState(Acting)
	m.record(EventResponseReady, map[string]any{"response": resp.Content})
	return resp.Content, nil
}

type namedStage struct {
	name  string
	stage Stage
}

// Modular runs named modules in registration order, each one consuming the
// previous module's output.
type Modular struct {
	base
	pipeline []namedStage
}

func NewModular(name string) *Modular {
	m := &Modular{}
	m.init(name, KindModular)
	return m
}

// AddModule appends a module to the pipeline.
func (m *Modular) AddModule(name string, s Stage) error {
	if s == nil {
		return errNilStage
	}
	for _, ns := range m.pipeline {
		if ns.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, name)
		}
	}
	m.pipeline = append(m.pipeline, namedStage{name: name, stage: s})
	return nil
}

// Modules returns module names in pipeline order.
func (m *Modular) Modules() []string {
	names := make([]string, len(m.pipeline))
	for i, ns := range m.pipeline {
		names[i] = ns.name
	}
	return names
}

func (m *Modular) Process(ctx context.Context, input string) (out string, err error) {
	span, ctx := m.begin(ctx, input)
	defer func() { m.finish(span, err) }()
	if len(m.pipeline) == 0 {
		return "", errEmptyArchitecture
	}
	m.record(EventInputReceived, map[string]any{"input": input})

	out = input
	for _, ns := range m.pipeline {
		if out, err = ns.stage(ctx, out); err != nil {
			return "", fmt.Errorf("module %s: %w", ns.name, err)
		}
		m.record(EventModuleProcessed, map[string]any{"module": ns.name, "output": out})
	}
	return out, nil
}

// Layer names, in processing order.
const (
	LayerPresentation = "presentation"
	LayerBusiness     = "business"
	LayerData         = "data"
)

var layerOrder = []string{LayerPresentation, LayerBusiness, LayerData}

// Layered passes input through the presentation, business and data layers.
type Layered struct {
	base
	layers map[string][]Stage
}

func NewLayered(name string) *Layered {
	l := &Layered{layers: make(map[string][]Stage)}
	l.init(name, KindLayered)
	return l
}

// AddToLayer appends a component to layer.
func (l *Layered) AddToLayer(layer string, s Stage) error {
	if s == nil {
		return errNilStage
	}
	for _, name := range layerOrder {
		if name == layer {
			l.layers[layer] = append(l.layers[layer], s)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownLayer, layer)
}

func (l *Layered) Process(ctx context.Context, input string) (out string, err error) {
	span, ctx := l.begin(ctx, input)
	defer func() { l.finish(span, err) }()
	l.record(EventInputReceived, map[string]any{"input": input})

	out = input
	for _, layer := range layerOrder {
		for i, s := range l.layers[layer] {
			if out, err = s(ctx, out); err != nil {
				return "", fmt.Errorf("%s layer component %d: %w", layer, i, err)
			}
		}
		if len(l.layers[layer]) > 0 {
			l.record(EventModuleProcessed, map[string]any{"layer": layer, "output": out})
		}
	}
	return out, nil
}

// Microservices runs independent services. A service receives the output of
// the services it depends on, and Process runs every service that no other
// service depends on.
type Microservices struct {
	base
	order []string
	svc   map[string]Stage
	deps  map[string][]string
}

func NewMicroservices(name string) *Microservices {
	m := &Microservices{
		svc:  make(map[string]Stage),
		deps: make(map[string][]string),
	}
	m.init(name, KindMicroservices)
	return m
}

// AddService registers a service and the services whose output it consumes.
// Dependencies may be registered later but must exist before Process.
func (m *Microservices) AddService(name string, s Stage, dependsOn ...string) error {
	if s == nil {
		return errNilStage
	}
	if _, ok := m.svc[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, name)
	}
	m.order = append(m.order, name)
	m.svc[name] = s
	m.deps[name] = dependsOn
	return nil
}

// Entrypoints returns, in registration order, the services nothing depends on.
func (m *Microservices) Entrypoints() []string {
	used := make(map[string]bool)
	for _, ds := range m.deps {
		for _, d := range ds {
			used[d] = true
		}
	}
	var out []string
	for _, name := range m.order {
		if !used[name] {
			out = append(out, name)
		}
	}
	return out
}

// Execute runs name after its dependencies, feeding each dependency the
// current data in turn.
func (m *Microservices) Execute(ctx context.Context, name, data string) (string, error) {
	return m.execute(ctx, name, data, make(map[string]bool))
}

func (m *Microservices) execute(ctx context.Context, name, data string, visiting map[string]bool) (string, error) {
	s, ok := m.svc[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if visiting[name] {
		return "", fmt.Errorf("%w at %s", ErrServiceCycle, name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var err error
	for _, dep := range m.deps[name] {
		if data, err = m.execute(ctx, dep, data, visiting); err != nil {
			return "", err
		}
	}
	if data, err = s(ctx, data); err != nil {
		return "", fmt.Errorf("service %s: %w", name, err)
	}
	m.record(EventModuleProcessed, map[string]any{"service": name, "output": data})
	return data, nil
}

func (m *Microservices) Process(ctx context.Context, input string) (out string, err error) {
	span, ctx := m.begin(ctx, input)
	defer func() { m.finish(span, err) }()
	entries := m.Entrypoints()
	if len(entries) == 0 {
		if len(m.order) == 0 {
			return "", errEmptyArchitecture
		}
		return "", fmt.Errorf("%w: every service is a dependency", ErrServiceCycle)
	}
	m.record(EventInputReceived, map[string]any{"input": input})

	out = input
	for _, name := range entries {
		if out, err = m.Execute(ctx, name, out); err != nil {
			return "", err
		}
	}
	return out, nil
}
