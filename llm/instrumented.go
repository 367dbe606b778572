package llm

import (
	"context"
	"time"

	"github.com/KamdynS/agentlab/observability"
)

// InstrumentedClient records a span, latency, and token usage for every
// call on the global tracer and metrics.
type InstrumentedClient struct {
	inner Client
}

func NewInstrumentedClient(c Client) *InstrumentedClient { return &InstrumentedClient{inner: c} }

func (c *InstrumentedClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	span, ctx := observability.StartSpan(ctx, "llm.chat")
	span.SetAttribute(observability.AttrProvider, string(c.inner.Provider()))
	model := c.inner.Model()
	if req != nil && req.Model != "" {
		model = req.Model
	}
	span.SetAttribute(observability.AttrModel, model)

	start := time.Now()
	resp, err := c.inner.Chat(ctx, req)
	labels := map[string]string{"model": model, "provider": string(c.inner.Provider()), "status": "ok"}
	if err != nil {
		labels["status"] = "error"
		errType := string(ErrorTypeUnknown)
		if e, ok := AsLLMError(err); ok {
			errType = string(e.Type)
		}
		observability.MetricsImpl.RecordError(errType, labels)
	}
	observability.MetricsImpl.IncrementRequests(labels)
	observability.MetricsImpl.RecordLatency(time.Since(start), labels)

	if resp != nil {
		span.SetAttribute(observability.AttrFinishReason, resp.FinishReason)
		if resp.Usage != nil {
			span.SetAttribute(observability.AttrTokensInput, resp.Usage.InputTokens)
			span.SetAttribute(observability.AttrTokensOutput, resp.Usage.OutputTokens)
			observability.MetricsImpl.IncrementTokensUsed(resp.Usage.InputTokens, map[string]string{"direction": "input", "model": model})
			observability.MetricsImpl.IncrementTokensUsed(resp.Usage.OutputTokens, map[string]string{"direction": "output", "model": model})
		}
	}
	observability.EndSpan(span, err)
	return resp, err
}

func (c *InstrumentedClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return c.Chat(ctx, UserPrompt("", prompt))
}

func (c *InstrumentedClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	span, ctx := observability.StartSpan(ctx, "llm.stream")
	span.SetAttribute(observability.AttrModel, c.inner.Model())
	err := c.inner.Stream(ctx, req, output)
	observability.EndSpan(span, err)
	return err
}

func (c *InstrumentedClient) Model() string      { return c.inner.Model() }
func (c *InstrumentedClient) Provider() Provider { return c.inner.Provider() }
func (c *InstrumentedClient) Validate() error    { return c.inner.Validate() }
