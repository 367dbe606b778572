// Package coordination routes typed messages between agents through a
// central coordinator, with task broadcast, knowledge sharing and voting.
package coordination

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type MessageType string

const (
	Request  MessageType = "request"
	Response MessageType = "response"
	Inform   MessageType = "inform"
	Query    MessageType = "query"
	Propose  MessageType = "propose"
	Accept   MessageType = "accept"
	Reject   MessageType = "reject"
)

// CoordinatorID addresses the coordinator itself.
const CoordinatorID = "coordinator"

// DefaultMaxRounds bounds ProcessAll.
const DefaultMaxRounds = 10

var (
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrNotRegistered = errors.New("agent is not registered with a coordinator")
)

type Message struct {
	ID        string      `json:"id"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver"`
	Type      MessageType `json:"type"`
	Content   any         `json:"content"`
	InReplyTo string      `json:"in_reply_to,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func newMessage(sender, receiver string, t MessageType, content any) Message {
	return Message{ID: uuid.NewString(), Sender: sender, Receiver: receiver, Type: t, Content: content, Timestamp: time.Now()}
}

func (m Message) String() string {
	return fmt.Sprintf("[%s] %s -> %s: %v", m.Type, m.Sender, m.Receiver, m.Content)
}

// ProposalPolicy decides whether an agent accepts a proposal.
type ProposalPolicy func(agent *Agent, proposal Message) bool

// AcceptAll is the default policy.
func AcceptAll(*Agent, Message) bool { return true }

type Agent struct {
	ID           string
	Name         string
	Capabilities []string
	Knowledge    map[string]any
	Policy       ProposalPolicy

	inbox       []Message
	coordinator *Coordinator
}

func NewAgent(id, name string, capabilities ...string) *Agent {
	return &Agent{ID: id, Name: name, Capabilities: capabilities, Knowledge: map[string]any{}, Policy: AcceptAll}
}

func (a *Agent) Can(capability string) bool { return slices.Contains(a.Capabilities, capability) }

// Pending is the number of unprocessed messages.
func (a *Agent) Pending() int { return len(a.inbox) }

func (a *Agent) Send(receiver string, t MessageType, content any) error {
	return a.send(receiver, t, content, "")
}

func (a *Agent) send(receiver string, t MessageType, content any, replyTo string) error {
	if a.coordinator == nil {
		return fmt.Errorf("%w: %s", ErrNotRegistered, a.ID)
	}
	m := newMessage(a.ID, receiver, t, content)
	m.InReplyTo = replyTo
	return a.coordinator.Deliver(m)
}

func (a *Agent) receive(m Message) { a.inbox = append(a.inbox, m) }

// Process handles the messages queued so far and returns how many it
// handled. Messages that arrive while processing wait for the next call.
func (a *Agent) Process() int {
	batch := a.inbox
	a.inbox = nil
	for _, m := range batch {
		if err := a.handle(m); err != nil {
			log.Warn().Err(err).Str("agent", a.ID).Str("message", m.ID).Msg("reply failed")
		}
	}
	return len(batch)
}

func (a *Agent) handle(m Message) error {
	switch m.Type {
	case Request:
		return a.send(m.Sender, Response, fmt.Sprintf("processed: %v", describe(m.Content)), m.ID)
	case Query:
		key := fmt.Sprint(m.Content)
		v, ok := a.Knowledge[key]
		if !ok {
			v = "unavailable"
		}
		return a.send(m.Sender, Response, v, m.ID)
	case Inform:
		if k, ok := m.Content.(map[string]any); ok {
			maps.Copy(a.Knowledge, k)
		}
	case Propose:
		policy := a.Policy
		if policy == nil {
			policy = AcceptAll
		}
		reply := Reject
		if policy(a, m) {
			reply = Accept
		}
		return a.send(m.Sender, reply, m.Content, m.ID)
	}
	return nil
}

func describe(content any) any {
	if s, ok := content.(Subtask); ok {
		return s.Description
	}
	return content
}

// ShareKnowledge informs targets, or every other registered agent when
// none are given.
func (a *Agent) ShareKnowledge(k map[string]any, targets ...string) error {
	if a.coordinator == nil {
		return fmt.Errorf("%w: %s", ErrNotRegistered, a.ID)
	}
	if len(targets) == 0 {
		for _, other := range a.coordinator.agents {
			if other.ID != a.ID {
				targets = append(targets, other.ID)
			}
		}
	}
	var errs []error
	for _, id := range targets {
		errs = append(errs, a.Send(id, Inform, k))
	}
	return errors.Join(errs...)
}

// Coordinator delivers messages and keeps a log of every message sent.
// It is not safe for concurrent use.
type Coordinator struct {
	Name      string
	MaxRounds int

	agents []*Agent
	byID   map[string]*Agent
	log    []Message
	tasks  map[string]Task
}

func NewCoordinator(name string) *Coordinator {
	return &Coordinator{Name: name, MaxRounds: DefaultMaxRounds, byID: map[string]*Agent{}, tasks: map[string]Task{}}
}

func (c *Coordinator) Register(a *Agent) {
	if _, ok := c.byID[a.ID]; !ok {
		c.agents = append(c.agents, a)
	}
	c.byID[a.ID] = a
	a.coordinator = c
	if a.Knowledge == nil {
		a.Knowledge = map[string]any{}
	}
}

func (c *Coordinator) Agent(id string) (*Agent, bool) {
	a, ok := c.byID[id]
	return a, ok
}

func (c *Coordinator) Agents() []*Agent { return c.agents }

// Log returns a copy of every message delivered or attempted.
func (c *Coordinator) Log() []Message { return slices.Clone(c.log) }

// Deliver logs m and queues it for its receiver. Messages addressed to the
// coordinator are only logged.
func (c *Coordinator) Deliver(m Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	c.log = append(c.log, m)
	if m.Receiver == CoordinatorID {
		log.Debug().Str("from", m.Sender).Str("type", string(m.Type)).Msg("message to coordinator")
		return nil
	}
	r, ok := c.byID[m.Receiver]
	if !ok {
		log.Warn().Str("to", m.Receiver).Str("type", string(m.Type)).Msg("receiver not found")
		return fmt.Errorf("%w: %s", ErrUnknownAgent, m.Receiver)
	}
	r.receive(m)
	log.Debug().Str("from", m.Sender).Str("to", m.Receiver).Str("type", string(m.Type)).Msg("message delivered")
	return nil
}

// Broadcast sends content to every agent except the sender and returns
// the messages sent.
func (c *Coordinator) Broadcast(sender string, t MessageType, content any) []Message {
	var sent []Message
	for _, a := range c.agents {
		if a.ID == sender {
			continue
		}
		m := newMessage(sender, a.ID, t, content)
		_ = c.Deliver(m)
		sent = append(sent, m)
	}
	return sent
}

// ProcessAll lets agents handle their inboxes, round after round, until no
// messages remain or MaxRounds is reached. It returns the messages handled.
func (c *Coordinator) ProcessAll() int {
	rounds := c.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}
	total := 0
	for i := 0; i < rounds; i++ {
		n := 0
		for _, a := range c.agents {
			n += a.Process()
		}
		total += n
		if n == 0 || c.quiescent() {
			break
		}
	}
	return total
}

func (c *Coordinator) quiescent() bool {
	for _, a := range c.agents {
		if a.Pending() > 0 {
			return false
		}
	}
	return true
}

type Subtask struct {
	ID          string `json:"id" yaml:"id"`
	Capability  string `json:"capability" yaml:"capability"`
	Description string `json:"description" yaml:"description"`
}

type Task struct {
	Description string    `json:"description" yaml:"description"`
	Subtasks    []Subtask `json:"subtasks" yaml:"subtasks"`
}

type Assignment struct {
	Subtask Subtask `json:"subtask"`
	AgentID string  `json:"agent_id"`
}

type TaskResult struct {
	TaskID      string       `json:"task_id"`
	Assignments []Assignment `json:"assignments"`
	Unassigned  []string     `json:"unassigned_capabilities"`
}

// CoordinateTask announces the task, lets agents absorb it, then requests
// each subtask from the first agent with the needed capability.
func (c *Coordinator) CoordinateTask(id string, t Task) TaskResult {
	c.tasks[id] = t
	c.Broadcast(CoordinatorID, Inform, map[string]any{"task_id": id, "task": t})
	c.ProcessAll()

	res := TaskResult{TaskID: id}
	for _, st := range t.Subtasks {
		idx := slices.IndexFunc(c.agents, func(a *Agent) bool { return a.Can(st.Capability) })
		if idx < 0 {
			res.Unassigned = append(res.Unassigned, st.Capability)
			log.Warn().Str("task", id).Str("capability", st.Capability).Msg("no agent for subtask")
			continue
		}
		agent := c.agents[idx]
		_ = c.Deliver(newMessage(CoordinatorID, agent.ID, Request, st))
		res.Assignments = append(res.Assignments, Assignment{Subtask: st, AgentID: agent.ID})
	}
	log.Info().Str("task", id).Int("assigned", len(res.Assignments)).Int("unassigned", len(res.Unassigned)).Msg("task coordinated")
	return res
}

type VoteResult struct {
	Proposal     string  `json:"proposal"`
	VotesFor     int     `json:"votes_for"`
	VotesAgainst int     `json:"votes_against"`
	Total        int     `json:"total_votes"`
	Consensus    bool    `json:"consensus"`
	PercentFor   float64 `json:"percentage_for"`
}

// Vote asks every agent to accept or reject proposal. Only replies to this
// proposal's messages are counted.
func (c *Coordinator) Vote(proposal string) VoteResult {
	sent := c.Broadcast(CoordinatorID, Propose, proposal)
	ids := make(map[string]bool, len(sent))
	for _, m := range sent {
		ids[m.ID] = true
	}
	c.ProcessAll()

	res := VoteResult{Proposal: proposal}
	for _, m := range c.log {
		if !ids[m.InReplyTo] {
			continue
		}
		switch m.Type {
		case Accept:
			res.VotesFor++
		case Reject:
			res.VotesAgainst++
		}
	}
	res.Total = res.VotesFor + res.VotesAgainst
	res.Consensus = res.VotesFor > res.VotesAgainst
	if res.Total > 0 {
		res.PercentFor = float64(res.VotesFor) / float64(res.Total) * 100
	}
	return res
}

type Activity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Sent     int    `json:"sent"`
	Received int    `json:"received"`
}

type Report struct {
	Name     string         `json:"name"`
	Messages int            `json:"total_messages"`
	Agents   int            `json:"agents"`
	ByType   map[string]int `json:"by_type"`
	Activity []Activity     `json:"activity"`
}

// Report counts logged messages by type and per participant, in order of
// first appearance.
func (c *Coordinator) Report() Report {
	rep := Report{Name: c.Name, Messages: len(c.log), Agents: len(c.agents), ByType: map[string]int{}}
	index := map[string]int{}
	at := func(id string) *Activity {
		i, ok := index[id]
		if !ok {
			name := id
			if a, found := c.byID[id]; found {
				name = a.Name
			}
			i = len(rep.Activity)
			index[id] = i
			rep.Activity = append(rep.Activity, Activity{ID: id, Name: name})
		}
		return &rep.Activity[i]
	}
	for _, m := range c.log {
		rep.ByType[string(m.Type)]++
		at(m.Sender).Sent++
		at(m.Receiver).Received++
	}
	return rep
}
