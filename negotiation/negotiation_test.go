package negotiation

import (
	"testing"

	"github.com/KamdynS/agentlab/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeIssues = map[string]float64{"x": 40, "y": 35, "z": 25}

func TestUtility(t *testing.T) {
	n := NewNegotiator("n", "N", Balanced, map[string]float64{"a": 50, "b": 50}, 0)
	assert.InDelta(t, 60, n.Utility(map[string]float64{"a": 80, "b": 40, "ignored": 100}), 1e-9)

	heavy := NewNegotiator("h", "H", Balanced, map[string]float64{"a": 300}, 0)
	assert.Equal(t, 100.0, heavy.Utility(map[string]float64{"a": 100}))
	assert.Equal(t, 0.0, heavy.Utility(map[string]float64{"a": -10}))
}

func TestOpeningOffers(t *testing.T) {
	for _, tt := range []struct {
		s    Strategy
		want float64
	}{
		{Competitive, 80},
		{Cooperative, 50},
		{Balanced, 60},
		{Adaptive, 60},
	} {
		n := NewNegotiator("n", "N", tt.s, threeIssues, 0)
		o := n.MakeOffer(1, nil)
		assert.Equal(t, map[string]float64{"x": tt.want, "y": tt.want, "z": tt.want}, o.Terms, tt.s)
		assert.InDelta(t, tt.want, o.Utility, 1e-9)
	}
}

func TestNoPreviousOfferFallbacks(t *testing.T) {
	c := NewNegotiator("c", "C", Competitive, threeIssues, 0)
	assert.Equal(t, 70.0, c.MakeOffer(2, nil).Terms["x"])
	b := NewNegotiator("b", "B", Balanced, threeIssues, 0)
	assert.Equal(t, 55.0, b.MakeOffer(2, nil).Terms["x"])
}

func TestConcessions(t *testing.T) {
	prev := &Offer{Terms: map[string]float64{"x": 40, "y": 40, "z": 40}}

	c := NewNegotiator("c", "C", Competitive, threeIssues, 0)
	c.MakeOffer(1, nil)
	assert.InDelta(t, 76, c.MakeOffer(2, prev).Terms["x"], 1e-9)

	co := NewNegotiator("co", "Co", Cooperative, threeIssues, 0)
	co.MakeOffer(1, nil)
	assert.InDelta(t, 45, co.MakeOffer(2, prev).Terms["x"], 1e-9)

	b := NewNegotiator("b", "B", Balanced, threeIssues, 0)
	b.MakeOffer(1, nil)
	assert.InDelta(t, 57, b.MakeOffer(2, prev).Terms["x"], 1e-9)

	// Missing issues in the opponent's offer use the strategy defaults.
	partial := &Offer{Terms: map[string]float64{}}
	fresh := NewNegotiator("f", "F", Competitive, threeIssues, 0)
	assert.InDelta(t, 74, fresh.MakeOffer(2, partial).Terms["y"], 1e-9)
}

func TestAdaptiveUsesOpponentConcession(t *testing.T) {
	a := NewNegotiator("a", "A", Competitive, threeIssues, 95)
	b := NewNegotiator("b", "B", Adaptive, threeIssues, 95)
	s := &Session{A: a, B: b, MaxRounds: 2}
	res := s.Run()

	require.Equal(t, Deadlock, res.Status)
	require.Len(t, res.History, 2)
	assert.InDelta(t, 78, res.History[1].OfferA.Terms["x"], 1e-9)
	assert.InDelta(t, 0.06, b.ConcessionRate(), 1e-9)
	assert.InDelta(t, 61.08, res.History[1].OfferB.Terms["x"], 1e-9)
}

func TestAdaptiveRateIsCapped(t *testing.T) {
	b := NewNegotiator("b", "B", Adaptive, threeIssues, 100)
	b.Evaluate(Offer{Terms: map[string]float64{"x": 100, "y": 100, "z": 100}})
	b.Evaluate(Offer{Terms: map[string]float64{"x": 0, "y": 0, "z": 0}})
	b.MakeOffer(1, nil)
	b.MakeOffer(2, &Offer{Terms: map[string]float64{"x": 0, "y": 0, "z": 0}})
	assert.Equal(t, 0.3, b.ConcessionRate())
}

func TestSessionAgreement(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetMetrics(counters)
	t.Cleanup(func() { observability.SetMetrics(observability.NoOpMetrics{}) })

	p, err := LookupPreset("project")
	require.NoError(t, err)
	res := p.New().Run()
	assert.Equal(t, Agreement, res.Status)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "provider", res.AcceptedBy)
	assert.InDelta(t, 80, res.UtilityA, 1e-9)
	assert.InDelta(t, 80, res.UtilityB, 1e-9)
	assert.Empty(t, res.History)
	assert.EqualValues(t, 1, counters.Negotiations["agreement"])
}

func TestSessionCounterAccepted(t *testing.T) {
	a := NewNegotiator("a", "A", Cooperative, map[string]float64{"x": 100}, 55)
	b := NewNegotiator("b", "B", Competitive, map[string]float64{"x": 100}, 90)
	res := (&Session{A: a, B: b}).Run()
	assert.Equal(t, Agreement, res.Status)
	assert.Equal(t, "a", res.AcceptedBy)
	assert.Equal(t, map[string]float64{"x": 80}, res.Agreement)
}

func TestSessionDeadlock(t *testing.T) {
	a := NewNegotiator("a", "A", Competitive, threeIssues, 90)
	b := NewNegotiator("b", "B", Competitive, threeIssues, 90)
	res := (&Session{A: a, B: b}).Run()
	assert.Equal(t, Deadlock, res.Status)
	assert.Equal(t, DefaultMaxRounds, res.Rounds)
	assert.Len(t, res.History, DefaultMaxRounds)
	assert.Nil(t, res.Agreement)
	assert.Len(t, a.OffersMade(), DefaultMaxRounds)
	assert.Len(t, b.OffersReceived(), DefaultMaxRounds)
}

func TestSessionWithoutSharedIssues(t *testing.T) {
	// Offers on foreign issues are worth nothing, so only a zero
	// reservation accepts them.
	a := NewNegotiator("a", "A", Balanced, map[string]float64{"x": 1}, 40)
	b := NewNegotiator("b", "B", Balanced, map[string]float64{"y": 1}, 40)
	res := (&Session{A: a, B: b, MaxRounds: 3}).Run()
	assert.Equal(t, Deadlock, res.Status)
	assert.Equal(t, 3, res.Rounds)
	assert.Len(t, res.History, 3)

	easy := NewNegotiator("c", "C", Balanced, map[string]float64{"y": 1}, 0)
	res = (&Session{A: a, B: easy}).Run()
	assert.Equal(t, Agreement, res.Status)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "c", res.AcceptedBy)
	assert.Zero(t, res.UtilityB)
}

func TestPresetsAndParsing(t *testing.T) {
	assert.Equal(t, []string{"project", "resource", "salary"}, PresetNames())
	_, err := LookupPreset("nope")
	assert.Error(t, err)

	s, err := ParseStrategy("adaptive")
	require.NoError(t, err)
	assert.Equal(t, Adaptive, s)
	_, err = ParseStrategy("sneaky")
	assert.Error(t, err)

	assert.Equal(t, "{x: 1.0, y: 2.5}", FormatTerms(map[string]float64{"y": 2.5, "x": 1}))
}
