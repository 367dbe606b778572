package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient blocks on a token bucket before every call. GitHub
// Models enforces low per-minute quotas, so the CLI wraps every client.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// RateLimited wraps c with rps requests per second and the given burst.
// A non-positive rps disables limiting and returns c unchanged.
func RateLimited(c Client, rps float64, burst int) Client {
	if rps <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{inner: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *RateLimitedClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Chat(ctx, req)
}

func (c *RateLimitedClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Completion(ctx, prompt)
}

func (c *RateLimitedClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	if err := c.limiter.Wait(ctx); err != nil {
		close(output)
		return err
	}
	return c.inner.Stream(ctx, req, output)
}

func (c *RateLimitedClient) Model() string      { return c.inner.Model() }
func (c *RateLimitedClient) Provider() Provider { return c.inner.Provider() }
func (c *RateLimitedClient) Validate() error    { return c.inner.Validate() }
