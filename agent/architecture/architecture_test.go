package architecture

import (
	"context"
	"errors"
	"testing"

	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventTypes(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

func TestMonolithic(t *testing.T) {
	client := fake.New("hello back")
	m := NewMonolithic("mono", client)

	out, err := m.Process(context.Background(), "Hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, []string{EventInputReceived, EventResponseReady}, eventTypes(m.Events()))
	assert.Equal(t, "Process: Hello world", client.LastPrompt())

	failing := NewMonolithic("mono", fake.New().Fail(errors.New("down")))
	_, err = failing.Process(context.Background(), "x")
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, Failed, failing.State())
}

func TestModularPipeline(t *testing.T) {
	m := NewModular("modular")
	require.NoError(t, m.AddModule("pre", Preprocess))
	require.NoError(t, m.AddModule("analyze", AnalyzeSentiment))
	assert.ErrorIs(t, m.AddModule("pre", Preprocess), ErrDuplicateStage)
	assert.Equal(t, []string{"pre", "analyze"}, m.Modules())

	out, err := m.Process(context.Background(), "  Test TEXT ")
	require.NoError(t, err)
	assert.Equal(t, `sentiment: positive in "test text"`, out)
	evs := m.Events()
	require.Len(t, evs, 3)
	assert.Equal(t, "analyze", evs[2].Data["module"])

	_, err = NewModular("empty").Process(context.Background(), "x")
	assert.Error(t, err)
}

func TestEventDriven(t *testing.T) {
	ctx := context.Background()

	plain := NewEventDriven("plain")
	var seen []string
	plain.On(EventInputReceived, func(_ context.Context, e Event) error {
		seen = append(seen, e.Data["input"].(string))
		return nil
	})
	out, err := plain.Process(ctx, "event test")
	require.NoError(t, err)
	assert.Equal(t, "Processed: event test", out)
	assert.Equal(t, []string{"event test"}, seen)
	assert.Equal(t, []string{EventInputReceived, EventResponseReady}, eventTypes(plain.Events()))
	assert.Zero(t, plain.Bus().Pending())

	failing := NewEventDriven("failing")
	failing.On(EventInputReceived, func(context.Context, Event) error { return errors.New("handler broke") })
	_, err = failing.Process(ctx, "x")
	assert.ErrorContains(t, err, "handler broke")
	assert.Equal(t, Failed, failing.State())
}

func TestEventDrivenHandlerResponse(t *testing.T) {
	arch := Build(nil)[2]
	require.Equal(t, KindEventDriven, arch.Kind())

	out, err := arch.Process(context.Background(), "good day")
	require.NoError(t, err)
	assert.Equal(t, `sentiment: positive in "good day"`, out)
	assert.Equal(t, []string{EventInputReceived, EventResponseReady}, eventTypes(arch.Events()))
}

func TestBusDeliversInOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe("a", func(_ context.Context, e Event) error {
		got = append(got, "a")
		b.Emit(Event{Type: "b"})
		return nil
	})
	b.Subscribe("b", func(context.Context, Event) error {
		got = append(got, "b")
		return nil
	})
	b.Emit(Event{Type: "a"})
	b.Emit(Event{Type: "c"})

	n, err := b.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLayered(t *testing.T) {
	l := NewLayered("layered")
	require.NoError(t, l.AddToLayer(LayerData, ValidateData))
	require.NoError(t, l.AddToLayer(LayerPresentation, Preprocess))
	assert.ErrorIs(t, l.AddToLayer("transport", Preprocess), ErrUnknownLayer)

	out, err := l.Process(context.Background(), " Layered ")
	require.NoError(t, err)
	assert.Equal(t, "validated: layered", out)

	_, err = l.Process(context.Background(), "   ")
	assert.ErrorContains(t, err, "data layer component 0")
}

func TestMicroservices(t *testing.T) {
	ms := NewMicroservices("ms")
	require.NoError(t, ms.AddService("formatter", FormatResponse, "analyzer"))
	require.NoError(t, ms.AddService("validator", ValidateData))
	require.NoError(t, ms.AddService("analyzer", AnalyzeSentiment, "validator"))
	assert.Equal(t, []string{"formatter"}, ms.Entrypoints())

	out, err := ms.Process(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, `formatted: sentiment: positive in "validated: svc"`, out)

	cyclic := NewMicroservices("cyclic")
	require.NoError(t, cyclic.AddService("a", FormatResponse, "b"))
	require.NoError(t, cyclic.AddService("b", FormatResponse, "a"))
	_, err = cyclic.Process(context.Background(), "x")
	assert.ErrorIs(t, err, ErrServiceCycle)

	dangling := NewMicroservices("dangling")
	require.NoError(t, dangling.AddService("a", FormatResponse, "missing"))
	_, err = dangling.Process(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestShowcaseAndCompare(t *testing.T) {
	runs := Showcase(context.Background(), fake.WithResponder(fake.Offline()), "Hello")
	require.Len(t, runs, 5)
	for _, r := range runs {
		assert.Empty(t, r.Error, r.Name)
		assert.NotEmpty(t, r.Output, r.Name)
		assert.Equal(t, Idle, r.State, r.Name)
	}

	profiles := Compare()
	require.Len(t, profiles, 5)
	assert.Equal(t, KindMicroservices, profiles[4].Kind)
	assert.Equal(t, "very high", profiles[4].Scalability)
}
