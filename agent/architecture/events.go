package architecture

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler reacts to an event. Handlers may emit further events on the bus.
type Handler func(ctx context.Context, ev Event) error

// Bus is a FIFO event queue with per-type subscribers. Emit only enqueues;
// Drain delivers events in emission order until the queue is empty.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	queue    []Event
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers h for events of type typ.
func (b *Bus) Subscribe(typ string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[typ] = append(b.handlers[typ], h)
}

func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
}

// Pending is the number of queued events.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Drain delivers queued events, including those emitted by handlers, and
// returns how many were delivered. It stops at the first handler error and
// leaves the remaining events queued.
func (b *Bus) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return delivered, nil
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		hs := append([]Handler(nil), b.handlers[ev.Type]...)
		b.mu.Unlock()

		for _, h := range hs {
			if err := h(ctx, ev); err != nil {
				return delivered, fmt.Errorf("handler for %s: %w", ev.Type, err)
			}
		}
		delivered++
	}
}

// EventDriven processes input by emitting events and letting subscribed
// handlers react. The response is the "response" field of the last
// response_ready event, or the input echoed as "Processed: <input>" when no
// handler produced one.
type EventDriven struct {
	base
	bus      *Bus
	response string
}

func NewEventDriven(name string) *EventDriven {
	e := &EventDriven{bus: NewBus()}
	e.init(name, KindEventDriven)
	e.bus.Subscribe(EventResponseReady, func(_ context.Context, ev Event) error {
		if r, ok := ev.Data["response"].(string); ok {
			e.mu.Lock()
			e.response = r
			e.mu.Unlock()
		}
		return nil
	})
	return e
}

// Bus exposes the event bus for subscriptions and emissions from handlers.
func (e *EventDriven) Bus() *Bus { return e.bus }

// On subscribes h to typ.
func (e *EventDriven) On(typ string, h Handler) { e.bus.Subscribe(typ, h) }

// Emit records ev in the history and queues it.
func (e *EventDriven) Emit(typ string, data map[string]any) {
	e.record(typ, data)
	e.bus.Emit(Event{Type: typ, Data: data})
}

func (e *EventDriven) Process(ctx context.Context, input string) (out string, err error) {
	span, ctx := e.begin(ctx, input)
	defer func() { e.finish(span, err) }()

	e.mu.Lock()
	e.response = ""
	e.mu.Unlock()

	e.Emit(EventInputReceived, map[string]any{"input": input})
	e.setState(Waiting)
	n, err := e.bus.Drain(ctx)
	if err != nil {
		return "", err
	}
	if e.lastResponse() == "" {
		e.Emit(EventResponseReady, map[string]any{"response": "Processed: " + input})
		m, derr := e.bus.Drain(ctx)
		n += m
		if derr != nil {
			return "", derr
		}
	}
	log.Debug().Str("architecture", e.name).Int("delivered", n).Msg("events drained")
	return e.lastResponse(), nil
}

func (e *EventDriven) lastResponse() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.response
}
