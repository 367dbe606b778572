package conflict

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() Option { return WithRand(rand.New(rand.NewSource(1))) }

func TestAgentRequests(t *testing.T) {
	a := &Agent{ID: "a", Resources: []string{"x"}}
	a.Request("y")
	a.Request("y")
	assert.Equal(t, []string{"y"}, a.Requested)
	assert.True(t, a.Has("x"))
	assert.True(t, a.Give("x"))
	assert.False(t, a.Give("x"))
	assert.Empty(t, a.Resources)
}

func TestRequestValidation(t *testing.T) {
	r := NewResolver("t")
	r.RegisterAgent(&Agent{ID: "a"})
	r.AddResource("res")
	assert.ErrorIs(t, r.Request("nobody", "res"), ErrUnknownAgent)
	assert.ErrorIs(t, r.Request("a", "nothing"), ErrUnknownResource)
	assert.NoError(t, r.Request("a", "res"))
}

func TestDetect(t *testing.T) {
	r := GPUScenario(seeded())
	found := r.DetectAll()
	require.Len(t, found, 2)

	assert.Equal(t, "conflict_1", found[0].ID)
	assert.Equal(t, "GPU_1", found[0].Resource)
	assert.Equal(t, []string{"a1", "a2", "a3"}, found[0].Agents)
	assert.Equal(t, 6, found[0].Severity)
	assert.Equal(t, TypeResource, found[0].Type)

	assert.Equal(t, "conflict_2", found[1].ID)
	assert.Equal(t, []string{"a2", "a3"}, found[1].Agents)
	assert.Equal(t, 4, found[1].Severity)

	assert.Empty(t, r.DetectAll(), "open conflicts are not reported twice")

	_, ok := r.DetectResourceConflict("missing")
	assert.False(t, ok)
}

func TestResolvePriority(t *testing.T) {
	r := GPUScenario(seeded())
	_, err := r.ResolveAll(ByPriority)
	require.NoError(t, err)

	r.DetectAll()
	n, err := r.ResolveAll(ByPriority)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cs := r.Conflicts()
	assert.Equal(t, "a1", cs[0].Resolution.Winner)
	assert.Equal(t, "a3", cs[1].Resolution.Winner)

	alpha, _ := r.Agent("a1")
	gamma, _ := r.Agent("a3")
	beta, _ := r.Agent("a2")
	assert.Equal(t, []string{"GPU_1"}, alpha.Resources)
	assert.Equal(t, []string{"GPU_2"}, gamma.Resources)
	assert.Empty(t, beta.Requested)
	assert.False(t, r.Available("GPU_1"))

	assert.ErrorIs(t, r.Resolve(cs[0], ByPriority), ErrResolved)
}

func TestPriorityTiesAreStable(t *testing.T) {
	r := NewResolver("ties")
	r.RegisterAgent(&Agent{ID: "x", Priority: 3})
	r.RegisterAgent(&Agent{ID: "y", Priority: 3})
	r.AddResource("res")
	require.NoError(t, r.Request("y", "res"))
	require.NoError(t, r.Request("x", "res"))
	c, ok := r.DetectResourceConflict("res")
	require.True(t, ok)
	require.NoError(t, r.Resolve(c, ByPriority))
	assert.Equal(t, "x", c.Resolution.Winner)
}

func TestResolveNegotiation(t *testing.T) {
	r := DatabaseScenario()
	c := r.DetectAll()[0]
	require.NoError(t, r.Resolve(c, ByNegotiation))
	assert.Equal(t, "svc1", c.Resolution.Winner)
	assert.Equal(t, []string{"svc1", "svc2", "svc3"}, c.Resolution.Rotation)
	assert.True(t, c.Resolved)

	svc1, _ := r.Agent("svc1")
	svc2, _ := r.Agent("svc2")
	assert.Empty(t, svc1.Requested)
	assert.Equal(t, []string{"database_connection"}, svc2.Requested)

	next := r.DetectAll()
	require.Len(t, next, 1)
	assert.Equal(t, TypeResource, next[0].Type)
	assert.Equal(t, []string{"svc2", "svc3"}, next[0].Agents)
	require.NoError(t, r.Resolve(next[0], ByPriority))
	assert.Equal(t, "svc2", next[0].Resolution.Winner)
	assert.Empty(t, svc1.Resources)
	assert.Equal(t, []string{"database_connection"}, svc2.Resources)
}

func TestDetectPriorityInversion(t *testing.T) {
	r := InversionScenario()
	cs := r.DetectAll()
	require.Len(t, cs, 1)
	c := cs[0]
	assert.Equal(t, TypePriority, c.Type)
	assert.Equal(t, "runner", c.Resource)
	assert.Equal(t, []string{"release", "batch"}, c.Agents)
	assert.Equal(t, 8, c.Severity)

	_, ok := r.DetectPriorityInversion("runner")
	assert.False(t, ok, "open conflicts are not reported twice")
	_, ok = r.DetectPriorityInversion("cache")
	assert.False(t, ok, "a lower-priority requester is not an inversion")

	require.NoError(t, r.Resolve(c, ByPriority))
	assert.Equal(t, "release", c.Resolution.Winner)
	batch, _ := r.Agent("batch")
	release, _ := r.Agent("release")
	assert.Empty(t, batch.Resources)
	assert.Equal(t, []string{"runner"}, release.Resources)
	assert.Empty(t, release.Requested)
	assert.Equal(t, "release", r.Report().Resources[0].Holder)
	assert.Empty(t, r.DetectAll())
}

func TestResolveCompromise(t *testing.T) {
	r := DatabaseScenario()
	c := r.DetectAll()[0]
	require.NoError(t, r.Resolve(c, ByCompromise))
	require.Len(t, c.Resolution.Shares, 3)
	for _, s := range c.Resolution.Shares {
		assert.InDelta(t, 33.333, s, 0.001)
	}
	assert.Empty(t, c.Resolution.Winner)
	assert.True(t, r.Available("database_connection"))
	for _, id := range []string{"svc1", "svc2", "svc3"} {
		a, _ := r.Agent(id)
		assert.Empty(t, a.Requested)
	}
}

func TestResolveVoting(t *testing.T) {
	r := GPUScenario(seeded())
	cs := r.DetectAll()

	// Only a1 is outside the GPU_2 conflict, so exactly one vote is cast.
	require.NoError(t, r.Resolve(cs[1], ByVoting))
	votes := cs[1].Resolution.Votes
	assert.Equal(t, 1, votes["a2"]+votes["a3"])
	assert.Equal(t, 1, votes[cs[1].Resolution.Winner])

	// Nobody is left to vote on GPU_1, so the earliest agent wins the tie.
	require.NoError(t, r.Resolve(cs[0], ByVoting))
	assert.Equal(t, "a1", cs[0].Resolution.Winner)
	assert.Equal(t, map[string]int{"a1": 0, "a2": 0, "a3": 0}, cs[0].Resolution.Votes)
}

func TestResolveFirstCome(t *testing.T) {
	r := NewResolver("fc")
	for _, id := range []string{"a", "b", "c"} {
		r.RegisterAgent(&Agent{ID: id})
	}
	r.AddResource("res")
	require.NoError(t, r.Request("c", "res"))
	require.NoError(t, r.Request("a", "res"))
	b, _ := r.Agent("b")
	b.Request("res")

	c, ok := r.DetectResourceConflict("res")
	require.True(t, ok)
	require.NoError(t, r.Resolve(c, ByFirstCome))
	assert.Equal(t, "c", c.Resolution.Winner)
}

func TestResolveArbitration(t *testing.T) {
	r := NewResolver("arb")
	r.RegisterAgent(&Agent{ID: "rich", Priority: 5, Resources: []string{"a", "b"}})
	r.RegisterAgent(&Agent{ID: "poor", Priority: 5})
	r.RegisterAgent(&Agent{ID: "low", Priority: 1})
	r.AddResource("res")
	for _, id := range []string{"rich", "poor", "low"} {
		require.NoError(t, r.Request(id, "res"))
	}
	c, _ := r.DetectResourceConflict("res")
	require.NoError(t, r.Resolve(c, ByArbitration))
	assert.Equal(t, "poor", c.Resolution.Winner)

	custom := NewResolver("custom", WithArbiter(ArbiterFunc(func(*Conflict, []*Agent) (string, error) {
		return "", errors.New("no quorum")
	})))
	custom.RegisterAgent(&Agent{ID: "x"})
	custom.RegisterAgent(&Agent{ID: "y"})
	custom.AddResource("res")
	require.NoError(t, custom.Request("x", "res"))
	require.NoError(t, custom.Request("y", "res"))
	c, _ = custom.DetectResourceConflict("res")
	assert.ErrorContains(t, custom.Resolve(c, ByArbitration), "no quorum")
	assert.False(t, c.Resolved)

	stranger := NewResolver("stranger", WithArbiter(ArbiterFunc(func(*Conflict, []*Agent) (string, error) {
		return "zed", nil
	})))
	stranger.RegisterAgent(&Agent{ID: "x"})
	stranger.RegisterAgent(&Agent{ID: "y"})
	stranger.AddResource("res")
	_ = stranger.Request("x", "res")
	_ = stranger.Request("y", "res")
	c, _ = stranger.DetectResourceConflict("res")
	assert.ErrorContains(t, stranger.Resolve(c, ByArbitration), "not involved")
}

func TestUnknownStrategy(t *testing.T) {
	r := DatabaseScenario()
	c := r.DetectAll()[0]
	assert.Error(t, r.Resolve(c, Strategy("coin_flip")))
	_, err := ParseStrategy("coin_flip")
	assert.Error(t, err)
	s, err := ParseStrategy("first_come")
	require.NoError(t, err)
	assert.Equal(t, ByFirstCome, s)
}

func TestReport(t *testing.T) {
	r := GPUScenario(seeded())
	cs := r.DetectAll()
	require.NoError(t, r.Resolve(cs[0], ByPriority))

	rep := r.Report()
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, 1, rep.Unresolved)
	assert.Equal(t, []ResourceState{
		{ID: "GPU_1", Available: false, Holder: "a1"},
		{ID: "GPU_2", Available: true},
	}, rep.Resources)
	assert.Len(t, rep.Agents, 3)
}
