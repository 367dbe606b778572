// Package negotiation runs alternating-offer negotiations between two
// agents with utility-weighted preferences over numeric issues.
package negotiation

import (
	"fmt"
	"math"
	"sort"

	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

type Strategy string

const (
	Competitive Strategy = "competitive"
	Cooperative Strategy = "cooperative"
	Balanced    Strategy = "balanced"
	Adaptive    Strategy = "adaptive"
)

// ParseStrategy accepts the strategy names above.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case Competitive, Cooperative, Balanced, Adaptive:
		return st, nil
	}
	return "", fmt.Errorf("unknown negotiation strategy %q", s)
}

type Status string

const (
	InProgress Status = "in_progress"
	Agreement  Status = "agreement"
	Deadlock   Status = "deadlock"
)

// Offer proposes a value in [0,100] for each issue.
type Offer struct {
	Proposer string             `json:"proposer"`
	Terms    map[string]float64 `json:"terms"`
	Utility  float64            `json:"utility_for_proposer"`
	Round    int                `json:"round"`
}

func (o Offer) String() string {
	return fmt.Sprintf("R%d %s: %s", o.Round, o.Proposer, FormatTerms(o.Terms))
}

// FormatTerms renders terms in key order with one decimal.
func FormatTerms(terms map[string]float64) string {
	keys := sortedKeys(terms)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %.1f", k, terms[k])
	}
	return s + "}"
}

// Opening, fallback and concession parameters per strategy.
const (
	competitiveOpen     = 80
	competitiveNoPrev   = 70
	competitiveMyDef    = 80
	competitiveTheirDef = 20
	competitiveRate     = 0.1

	cooperativeOpen = 50

	balancedOpen     = 60
	balancedNoPrev   = 55
	balancedMyDef    = 60
	balancedTheirDef = 40
	balancedRate     = 0.15

	adaptiveMaxRate = 0.3
	adaptiveDefault = 50
)

// Negotiator is one party. Preferences weight each issue; Utility of an
// offer is the weighted sum normalized to [0,100].
type Negotiator struct {
	ID          string
	Name        string
	Strategy    Strategy
	Preferences map[string]float64
	Reservation float64

	concession float64
	made       []Offer
	received   []Offer
}

func NewNegotiator(id, name string, strategy Strategy, prefs map[string]float64, reservation float64) *Negotiator {
	return &Negotiator{
		ID:          id,
		Name:        name,
		Strategy:    strategy,
		Preferences: prefs,
		Reservation: reservation,
		concession:  initialConcession(strategy),
	}
}

func initialConcession(s Strategy) float64 {
	if s == Competitive {
		return competitiveRate
	}
	return balancedRate
}

// ConcessionRate is the current rate; adaptive negotiators change it as
// offers arrive.
func (n *Negotiator) ConcessionRate() float64 { return n.concession }

func (n *Negotiator) OffersMade() []Offer     { return append([]Offer(nil), n.made...) }
func (n *Negotiator) OffersReceived() []Offer { return append([]Offer(nil), n.received...) }

// Utility scores terms; issues the negotiator has no preference for are
// ignored.
func (n *Negotiator) Utility(terms map[string]float64) float64 {
	u := 0.0
	for k, v := range terms {
		if p, ok := n.Preferences[k]; ok {
			u += p * v / 100
		}
	}
	return math.Min(100, math.Max(0, u))
}

func (n *Negotiator) issues() []string { return sortedKeys(n.Preferences) }

func (n *Negotiator) uniform(v float64) map[string]float64 {
	out := make(map[string]float64, len(n.Preferences))
	for _, k := range n.issues() {
		out[k] = v
	}
	return out
}

// concede moves each issue rate×(mine-theirs) toward prev.
func (n *Negotiator) concede(prev *Offer, rate, myDef, theirDef float64) map[string]float64 {
	out := make(map[string]float64, len(n.Preferences))
	for _, k := range n.issues() {
		my := myDef
		if len(n.made) > 0 {
			if v, ok := n.made[len(n.made)-1].Terms[k]; ok {
				my = v
			}
		}
		their := theirDef
		if v, ok := prev.Terms[k]; ok {
			their = v
		}
		out[k] = my - rate*(my-their)
	}
	return out
}

// MakeOffer proposes terms for round (1-based), given the opponent's last
// offer, and records it.
func (n *Negotiator) MakeOffer(round int, prev *Offer) Offer {
	var terms map[string]float64
	switch n.Strategy {
	case Competitive:
		switch {
		case round == 1:
			terms = n.uniform(competitiveOpen)
		case prev != nil:
			terms = n.concede(prev, n.concession, competitiveMyDef, competitiveTheirDef)
		default:
			terms = n.uniform(competitiveNoPrev)
		}
	case Cooperative:
		if round == 1 || prev == nil {
			terms = n.uniform(cooperativeOpen)
		} else {
			terms = n.concede(prev, 0.5, cooperativeOpen, cooperativeOpen)
		}
	case Adaptive:
		if round > 1 && prev != nil && len(n.received) > 1 {
			n.adapt()
		}
		terms = n.balanced(round, prev, n.concession)
	default:
		terms = n.balanced(round, prev, balancedRate)
	}

	o := Offer{Proposer: n.ID, Terms: terms, Utility: n.Utility(terms), Round: round}
	n.made = append(n.made, o)
	return o
}

func (n *Negotiator) balanced(round int, prev *Offer, rate float64) map[string]float64 {
	switch {
	case round == 1:
		return n.uniform(balancedOpen)
	case prev != nil:
		return n.concede(prev, rate, balancedMyDef, balancedTheirDef)
	}
	return n.uniform(balancedNoPrev)
}

// adapt mirrors the opponent: the rate is the total movement across the
// opponent's last two offers, divided by 100 and capped.
func (n *Negotiator) adapt() {
	a, b := n.received[len(n.received)-2], n.received[len(n.received)-1]
	moved := 0.0
	for _, k := range n.issues() {
		moved += math.Abs(valueOr(b.Terms, k, adaptiveDefault) - valueOr(a.Terms, k, adaptiveDefault))
	}
	n.concession = math.Min(adaptiveMaxRate, moved/100)
	log.Debug().Str("negotiator", n.ID).Float64("rate", n.concession).Msg("adapted concession rate")
}

// Evaluate records offer and accepts it when its utility reaches the
// reservation value.
func (n *Negotiator) Evaluate(offer Offer) bool {
	n.received = append(n.received, offer)
	return n.Utility(offer.Terms) >= n.Reservation
}

// Round is one exchange that ended without agreement.
type Round struct {
	Number int   `json:"round"`
	OfferA Offer `json:"offer_a"`
	OfferB Offer `json:"offer_b"`
}

// Result is the outcome of a session.
type Result struct {
	Status     Status             `json:"status"`
	Rounds     int                `json:"rounds"`
	Agreement  map[string]float64 `json:"agreement,omitempty"`
	AcceptedBy string             `json:"accepted_by,omitempty"`
	UtilityA   float64            `json:"agent1_utility"`
	UtilityB   float64            `json:"agent2_utility"`
	History    []Round            `json:"history"`
}

// DefaultMaxRounds applies when Session.MaxRounds is zero.
const DefaultMaxRounds = 10

// Session alternates offers between A and B: A proposes, B accepts or
// counters, A accepts or the next round begins.
type Session struct {
	A, B      *Negotiator
	MaxRounds int
}

func (s *Session) Run() Result {
	maxRounds := s.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	res := Result{Status: InProgress}

	var lastB *Offer
	var final *Offer
	for res.Rounds < maxRounds {
		res.Rounds++
		offerA := s.A.MakeOffer(res.Rounds, lastB)
		if s.B.Evaluate(offerA) {
			final, res.AcceptedBy = &offerA, s.B.ID
			break
		}
		offerB := s.B.MakeOffer(res.Rounds, &offerA)
		if s.A.Evaluate(offerB) {
			final, res.AcceptedBy = &offerB, s.A.ID
			break
		}
		lastB = &offerB
		res.History = append(res.History, Round{Number: res.Rounds, OfferA: offerA, OfferB: offerB})
		log.Debug().Int("round", res.Rounds).Str("a", offerA.String()).Str("b", offerB.String()).Msg("negotiation round")
	}

	if final != nil {
		res.Status = Agreement
		res.Agreement = final.Terms
		res.UtilityA = s.A.Utility(final.Terms)
		res.UtilityB = s.B.Utility(final.Terms)
	} else {
		res.Status = Deadlock
	}
	log.Info().Str("status", string(res.Status)).Int("rounds", res.Rounds).Msg("negotiation finished")
	observability.MetricsImpl.RecordNegotiation(string(res.Status), res.Rounds)
	return res
}

func valueOr(m map[string]float64, k string, def float64) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return def
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
