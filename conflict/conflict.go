// Package conflict detects agents competing for shared resources and
// resolves the conflicts with pluggable strategies.
package conflict

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

type Type string

const (
	TypeResource Type = "resource"
	TypeGoal     Type = "goal"
	TypePriority Type = "priority"
	TypeTemporal Type = "temporal"
)

type Strategy string

const (
	ByPriority    Strategy = "priority"
	ByNegotiation Strategy = "negotiation"
	ByArbitration Strategy = "arbitration"
	ByVoting      Strategy = "voting"
	ByCompromise  Strategy = "compromise"
	ByFirstCome   Strategy = "first_come"
)

// Strategies lists every strategy.
var Strategies = []Strategy{ByPriority, ByNegotiation, ByArbitration, ByVoting, ByCompromise, ByFirstCome}

func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown resolution strategy %q", s)
}

var (
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrUnknownResource = errors.New("unknown resource")
	ErrResolved        = errors.New("conflict already resolved")
)

// Agent holds resources and requests more.
type Agent struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Priority  int      `json:"priority"`
	Resources []string `json:"resources"`
	Requested []string `json:"requested"`
}

// Request adds res to the agent's requests once.
func (a *Agent) Request(res string) {
	if !slices.Contains(a.Requested, res) {
		a.Requested = append(a.Requested, res)
	}
}

func (a *Agent) Has(res string) bool { return slices.Contains(a.Resources, res) }

// Give releases res and reports whether the agent held it.
func (a *Agent) Give(res string) bool {
	i := slices.Index(a.Resources, res)
	if i < 0 {
		return false
	}
	a.Resources = slices.Delete(a.Resources, i, i+1)
	return true
}

func (a *Agent) drop(res string) {
	if i := slices.Index(a.Requested, res); i >= 0 {
		a.Requested = slices.Delete(a.Requested, i, i+1)
	}
}

// Resolution records how a conflict was settled. Shares are percentages
// for compromise; Votes are per agent for voting.
type Resolution struct {
	Strategy Strategy           `json:"strategy"`
	Winner   string             `json:"winner,omitempty"`
	Shares   map[string]float64 `json:"shares,omitempty"`
	Rotation []string           `json:"rotation,omitempty"`
	Votes    map[string]int     `json:"votes,omitempty"`
	Summary  string             `json:"summary"`
}

type Conflict struct {
	ID          string      `json:"id"`
	Type        Type        `json:"type"`
	Agents      []string    `json:"agents_involved"`
	Resource    string      `json:"resource,omitempty"`
	Description string      `json:"description"`
	Severity    int         `json:"severity"`
	Resolved    bool        `json:"resolved"`
	Resolution  *Resolution `json:"resolution,omitempty"`
}

// Arbiter picks the winner of a conflict among the involved agents.
type Arbiter interface {
	Decide(c *Conflict, involved []*Agent) (string, error)
}

// ArbiterFunc adapts a function to Arbiter.
type ArbiterFunc func(c *Conflict, involved []*Agent) (string, error)

func (f ArbiterFunc) Decide(c *Conflict, involved []*Agent) (string, error) { return f(c, involved) }

// DefaultArbiter prefers higher priority, then fewer held resources, then
// the earliest involved agent.
var DefaultArbiter Arbiter = ArbiterFunc(func(_ *Conflict, involved []*Agent) (string, error) {
	if len(involved) == 0 {
		return "", errors.New("no agents to arbitrate")
	}
	best := involved[0]
	for _, a := range involved[1:] {
		if a.Priority > best.Priority || (a.Priority == best.Priority && len(a.Resources) < len(best.Resources)) {
			best = a
		}
	}
	return best.ID, nil
})

// Option configures a Resolver.
type Option func(*Resolver)

// WithRand sets the source used by voting.
func WithRand(r *rand.Rand) Option { return func(rs *Resolver) { rs.rng = r } }

func WithArbiter(a Arbiter) Option { return func(rs *Resolver) { rs.arbiter = a } }

// Resolver tracks agents, resources and conflicts. Agents and resources
// keep registration order. It is not safe for concurrent use.
type Resolver struct {
	Name string

	agents    []*Agent
	byID      map[string]*Agent
	resources []string
	available map[string]bool
	holder    map[string]string
	requests  map[string]int
	seq       int
	conflicts []*Conflict
	counter   int
	rng       *rand.Rand
	arbiter   Arbiter
}

func NewResolver(name string, opts ...Option) *Resolver {
	r := &Resolver{
		Name:      name,
		byID:      map[string]*Agent{},
		available: map[string]bool{},
		holder:    map[string]string{},
		requests:  map[string]int{},
		arbiter:   DefaultArbiter,
	}
	for _, o := range opts {
		o(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// RegisterAgent adds a, replacing any agent with the same id.
func (r *Resolver) RegisterAgent(a *Agent) {
	if _, ok := r.byID[a.ID]; !ok {
		r.agents = append(r.agents, a)
	} else {
		for i, x := range r.agents {
			if x.ID == a.ID {
				r.agents[i] = a
			}
		}
	}
	r.byID[a.ID] = a
}

func (r *Resolver) Agent(id string) (*Agent, bool) {
	a, ok := r.byID[id]
	return a, ok
}

func (r *Resolver) AddResource(id string) {
	if _, ok := r.available[id]; !ok {
		r.resources = append(r.resources, id)
	}
	r.available[id] = true
}

// Available reports whether res exists and is free.
func (r *Resolver) Available(res string) bool { return r.available[res] }

// Request records that agent wants res, remembering arrival order for
// first-come resolution.
func (r *Resolver) Request(agentID, res string) error {
	a, ok := r.byID[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if _, ok := r.available[res]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, res)
	}
	a.Request(res)
	key := agentID + "\x00" + res
	if _, seen := r.requests[key]; !seen {
		r.seq++
		r.requests[key] = r.seq
	}
	return nil
}

func (r *Resolver) requestSeq(agentID, res string) int {
	if s, ok := r.requests[agentID+"\x00"+res]; ok {
		return s
	}
	// Requests made directly on the agent rank after tracked ones, in
	// registration order.
	for i, a := range r.agents {
		if a.ID == agentID {
			return r.seq + 1 + i
		}
	}
	return int(^uint(0) >> 1)
}

// DetectResourceConflict reports a conflict when more than one agent
// requests res. A resource with an open conflict is not reported again.
func (r *Resolver) DetectResourceConflict(res string) (*Conflict, bool) {
	if r.hasOpenConflict(res) {
		return nil, false
	}
	var involved []string
	for _, a := range r.agents {
		if slices.Contains(a.Requested, res) {
			involved = append(involved, a.ID)
		}
	}
	if len(involved) < 2 {
		return nil, false
	}
	r.counter++
	c := &Conflict{
		ID:          fmt.Sprintf("conflict_%d", r.counter),
		Type:        TypeResource,
		Agents:      involved,
		Resource:    res,
		Description: fmt.Sprintf("%d agents request %q", len(involved), res),
		Severity:    2 * len(involved),
	}
	r.conflicts = append(r.conflicts, c)
	log.Debug().Str("conflict", c.ID).Str("resource", res).Strs("agents", involved).Msg("conflict detected")
	return c, true
}

// holderOf returns the agent holding res, or nil.
func (r *Resolver) holderOf(res string) *Agent {
	if id, ok := r.holder[res]; ok {
		if a, ok := r.byID[id]; ok && a.Has(res) {
			return a
		}
	}
	for _, a := range r.agents {
		if a.Has(res) {
			return a
		}
	}
	return nil
}

func (r *Resolver) hasOpenConflict(res string) bool {
	for _, c := range r.conflicts {
		if c.Resource == res && !c.Resolved {
			return true
		}
	}
	return false
}

// DetectPriorityInversion reports a conflict when res is held by an agent
// while agents of higher priority wait for it. The waiting agents come
// first, by descending priority, and the holder last. Severity grows with
// the priority gap.
func (r *Resolver) DetectPriorityInversion(res string) (*Conflict, bool) {
	if r.hasOpenConflict(res) {
		return nil, false
	}
	holder := r.holderOf(res)
	if holder == nil {
		return nil, false
	}
	var waiting []*Agent
	for _, a := range r.agents {
		if a != holder && a.Priority > holder.Priority && slices.Contains(a.Requested, res) {
			waiting = append(waiting, a)
		}
	}
	if len(waiting) == 0 {
		return nil, false
	}
	sort.SliceStable(waiting, func(i, j int) bool { return waiting[i].Priority > waiting[j].Priority })

	involved := make([]string, 0, len(waiting)+1)
	for _, a := range waiting {
		involved = append(involved, a.ID)
	}
	involved = append(involved, holder.ID)
	r.counter++
	c := &Conflict{
		ID:          fmt.Sprintf("conflict_%d", r.counter),
		Type:        TypePriority,
		Agents:      involved,
		Resource:    res,
		Description: fmt.Sprintf("%s holds %q while %d agents of higher priority wait", holder.ID, res, len(waiting)),
		Severity:    waiting[0].Priority - holder.Priority + len(waiting),
	}
	r.conflicts = append(r.conflicts, c)
	log.Debug().Str("conflict", c.ID).Str("resource", res).Str("holder", holder.ID).Msg("priority inversion detected")
	return c, true
}

// DetectAll checks every resource in registration order, first for
// competing requests and then for priority inversion.
func (r *Resolver) DetectAll() []*Conflict {
	var out []*Conflict
	for _, res := range r.resources {
		if c, ok := r.DetectResourceConflict(res); ok {
			out = append(out, c)
		} else if c, ok := r.DetectPriorityInversion(res); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Resolver) Conflicts() []*Conflict { return append([]*Conflict(nil), r.conflicts...) }

func (r *Resolver) involved(c *Conflict) ([]*Agent, error) {
	out := make([]*Agent, 0, len(c.Agents))
	for _, id := range c.Agents {
		a, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		out = append(out, a)
	}
	return out, nil
}

// award hands the resource to winner, taking it from any previous holder,
// and withdraws the requests of settled agents.
func (r *Resolver) award(c *Conflict, winner *Agent, settled []*Agent) {
	if c.Resource == "" {
		return
	}
	if prev := r.holderOf(c.Resource); prev != nil && prev != winner {
		prev.Give(c.Resource)
	}
	if !winner.Has(c.Resource) {
		winner.Resources = append(winner.Resources, c.Resource)
	}
	for _, a := range settled {
		a.drop(c.Resource)
	}
	r.available[c.Resource] = false
	r.holder[c.Resource] = winner.ID
}

// Resolve settles c with strategy.
func (r *Resolver) Resolve(c *Conflict, strategy Strategy) error {
	if c.Resolved {
		return fmt.Errorf("%w: %s", ErrResolved, c.ID)
	}
	involved, err := r.involved(c)
	if err != nil {
		return err
	}
	if len(involved) == 0 {
		return fmt.Errorf("conflict %s involves no agents", c.ID)
	}

	res := &Resolution{Strategy: strategy}
	switch strategy {
	case ByPriority:
		ranked := slices.Clone(involved)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Priority > ranked[j].Priority })
		winner := ranked[0]
		r.award(c, winner, involved)
		res.Winner = winner.ID
		res.Summary = fmt.Sprintf("assigned to %s by priority %d", winner.Name, winner.Priority)

	case ByNegotiation:
		// The others keep their requests and wait for their turn.
		winner := involved[0]
		r.award(c, winner, []*Agent{winner})
		res.Winner = winner.ID
		res.Rotation = slices.Clone(c.Agents)
		res.Summary = fmt.Sprintf("assigned to %s for turn 1 of %d", winner.Name, len(involved))

	case ByCompromise:
		res.Shares = make(map[string]float64, len(involved))
		share := 100 / float64(len(involved))
		for _, a := range involved {
			res.Shares[a.ID] = share
			a.drop(c.Resource)
		}
		res.Summary = fmt.Sprintf("shared between %d agents at %.1f%% each", len(involved), share)

	case ByVoting:
		res.Votes = make(map[string]int, len(involved))
		for _, a := range involved {
			res.Votes[a.ID] = 0
		}
		for _, voter := range r.agents {
			if slices.Contains(c.Agents, voter.ID) {
				continue
			}
			choice := involved[r.rng.Intn(len(involved))]
			res.Votes[choice.ID]++
		}
		winner := involved[0]
		for _, a := range involved[1:] {
			if res.Votes[a.ID] > res.Votes[winner.ID] {
				winner = a
			}
		}
		r.award(c, winner, involved)
		res.Winner = winner.ID
		res.Summary = fmt.Sprintf("%s won the vote with %d votes", winner.Name, res.Votes[winner.ID])

	case ByFirstCome:
		winner := involved[0]
		for _, a := range involved[1:] {
			if r.requestSeq(a.ID, c.Resource) < r.requestSeq(winner.ID, c.Resource) {
				winner = a
			}
		}
		r.award(c, winner, involved)
		res.Winner = winner.ID
		res.Summary = fmt.Sprintf("assigned to %s, the first to ask", winner.Name)

	case ByArbitration:
		id, err := r.arbiter.Decide(c, involved)
		if err != nil {
			return fmt.Errorf("arbitrate %s: %w", c.ID, err)
		}
		idx := slices.IndexFunc(involved, func(a *Agent) bool { return a.ID == id })
		if idx < 0 {
			return fmt.Errorf("arbiter chose %q, which is not involved in %s", id, c.ID)
		}
		winner := involved[idx]
		r.award(c, winner, involved)
		res.Winner = winner.ID
		res.Summary = fmt.Sprintf("assigned to %s by arbitration", winner.Name)

	default:
		return fmt.Errorf("unknown resolution strategy %q", strategy)
	}

	c.Resolved = true
	c.Resolution = res
	log.Debug().Str("conflict", c.ID).Str("strategy", string(strategy)).Str("winner", res.Winner).Msg("conflict resolved")
	return nil
}

// ResolveAll resolves every open conflict and returns how many it settled.
func (r *Resolver) ResolveAll(strategy Strategy) (int, error) {
	n := 0
	for _, c := range r.conflicts {
		if c.Resolved {
			continue
		}
		if err := r.Resolve(c, strategy); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

type ResourceState struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
	Holder    string `json:"holder,omitempty"`
}

type Report struct {
	Name       string          `json:"name"`
	Total      int             `json:"total"`
	Resolved   int             `json:"resolved"`
	Unresolved int             `json:"unresolved"`
	Conflicts  []Conflict      `json:"conflicts"`
	Resources  []ResourceState `json:"resources"`
	Agents     []Agent         `json:"agents"`
}

func (r *Resolver) Report() Report {
	rep := Report{Name: r.Name, Total: len(r.conflicts)}
	for _, c := range r.conflicts {
		if c.Resolved {
			rep.Resolved++
		}
		rep.Conflicts = append(rep.Conflicts, *c)
	}
	rep.Unresolved = rep.Total - rep.Resolved
	for _, res := range r.resources {
		rep.Resources = append(rep.Resources, ResourceState{ID: res, Available: r.available[res], Holder: r.holder[res]})
	}
	for _, a := range r.agents {
		rep.Agents = append(rep.Agents, *a)
	}
	return rep
}
