// Package fake provides a scripted llm.Client for tests and offline runs.
package fake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/KamdynS/agentlab/llm"
)

// ErrExhausted is returned when a scripted client has no replies left.
var ErrExhausted = errors.New("fake: no scripted responses left")

// Responder computes a reply from the request.
type Responder func(req *llm.ChatRequest) (string, error)

// Client replies from a queue of scripted responses, or from a Responder
// once the queue is empty. It records every request.
type Client struct {
	mu        sync.Mutex
	model     string
	queue     []reply
	responder Responder
	requests  []llm.ChatRequest
}

type reply struct {
	text string
	err  error
}

// New returns a client that answers with replies in order.
func New(replies ...string) *Client {
	c := &Client{model: "fake-model"}
	for _, r := range replies {
		c.queue = append(c.queue, reply{text: r})
	}
	return c
}

// WithResponder answers with fn after the queue drains.
func WithResponder(fn Responder) *Client {
	return &Client{model: "fake-model", responder: fn}
}

// Reply appends a scripted reply.
func (c *Client) Reply(text string) *Client {
	c.mu.Lock()
	c.queue = append(c.queue, reply{text: text})
	c.mu.Unlock()
	return c
}

// Fail appends a scripted error.
func (c *Client) Fail(err error) *Client {
	c.mu.Lock()
	c.queue = append(c.queue, reply{err: err})
	c.mu.Unlock()
	return c
}

// SetModel changes the reported model name.
func (c *Client) SetModel(m string) *Client {
	c.model = m
	return c
}

// Requests returns copies of the requests received so far.
func (c *Client) Requests() []llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.ChatRequest(nil), c.requests...)
}

// LastPrompt returns the content of the last user message received.
func (c *Client) LastPrompt() string {
	reqs := c.Requests()
	if len(reqs) == 0 {
		return ""
	}
	msgs := reqs[len(reqs)-1].Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

func (c *Client) next(req *llm.ChatRequest) (string, error) {
	c.mu.Lock()
	if req != nil {
		c.requests = append(c.requests, *req)
	}
	if len(c.queue) > 0 {
		r := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		return r.text, r.err
	}
	fn := c.responder
	c.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return "", ErrExhausted
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := c.next(req)
	if err != nil {
		return nil, err
	}
	words := len(strings.Fields(text))
	return &llm.Response{
		Content:      text,
		Role:         llm.RoleAssistant,
		Model:        c.model,
		Provider:     llm.ProviderFake,
		FinishReason: "stop",
		Usage:        &llm.Usage{OutputTokens: words, TotalTokens: words},
	}, nil
}

func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, llm.UserPrompt("", prompt))
}

// Stream emits the reply one word at a time.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)
	text, err := c.next(req)
	if err != nil {
		return err
	}
	for i, w := range strings.Fields(text) {
		if i > 0 {
			w = " " + w
		}
		select {
		case output <- &llm.Response{Content: w, Model: c.model, Provider: llm.ProviderFake}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) Model() string          { return c.model }
func (c *Client) Provider() llm.Provider { return llm.ProviderFake }
func (c *Client) Validate() error        { return nil }

var _ llm.Client = (*Client)(nil)
