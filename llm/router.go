package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrNoClient is returned when a policy has nothing to route to.
var ErrNoClient = errors.New("no default client configured")

// RoutePolicy picks the client (and optionally a model override) for a request.
type RoutePolicy interface {
	Select(req *ChatRequest) (Client, string, error)
}

// StaticPolicy routes by req.Model, falling back to Default.
type StaticPolicy struct {
	Default Client
	ByModel map[string]Client
}

func (p StaticPolicy) Select(req *ChatRequest) (Client, string, error) {
	var model string
	if req != nil {
		model = req.Model
	}
	if c, ok := p.ByModel[model]; ok && model != "" && c != nil {
		return c, model, nil
	}
	if p.Default == nil {
		return nil, "", ErrNoClient
	}
	return p.Default, model, nil
}

// RouterClient is a Client that delegates each call through a RoutePolicy.
type RouterClient struct {
	policy RoutePolicy
}

func NewRouterClient(policy RoutePolicy) *RouterClient { return &RouterClient{policy: policy} }

func (r *RouterClient) route(req *ChatRequest) (Client, *ChatRequest, error) {
	c, model, err := r.policy.Select(req)
	if err != nil {
		return nil, nil, err
	}
	if model != "" && (req == nil || req.Model != model) {
		cp := ChatRequest{}
		if req != nil {
			cp = *req
		}
		cp.Model = model
		req = &cp
	}
	return c, req, nil
}

func (r *RouterClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	c, req, err := r.route(req)
	if err != nil {
		return nil, err
	}
	return c.Chat(ctx, req)
}

func (r *RouterClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return r.Chat(ctx, UserPrompt("", prompt))
}

func (r *RouterClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	c, req, err := r.route(req)
	if err != nil {
		close(output)
		return err
	}
	return c.Stream(ctx, req, output)
}

func (r *RouterClient) Model() string      { return "router" }
func (r *RouterClient) Provider() Provider { return ProviderRouter }
func (r *RouterClient) Validate() error {
	if r.policy == nil {
		return errors.New("nil route policy")
	}
	return nil
}

// FallbackClient sends every call to Primary and retries once on Secondary
// when Primary fails with a retryable or authentication error.
type FallbackClient struct {
	Primary   Client
	Secondary Client
}

func (f *FallbackClient) shouldFallback(err error) bool {
	return f.Secondary != nil && (IsRetryableError(err) || IsAuthenticationError(err))
}

func (f *FallbackClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	resp, err := f.Primary.Chat(ctx, req)
	if err != nil && f.shouldFallback(err) {
		log.Warn().Err(err).Str("fallback", string(f.Secondary.Provider())).Msg("primary model failed, using fallback")
		cp := *req
		cp.Model = ""
		return f.Secondary.Chat(ctx, &cp)
	}
	return resp, err
}

func (f *FallbackClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return f.Chat(ctx, UserPrompt("", prompt))
}

func (f *FallbackClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	return f.Primary.Stream(ctx, req, output)
}

func (f *FallbackClient) Model() string      { return f.Primary.Model() }
func (f *FallbackClient) Provider() Provider { return f.Primary.Provider() }
func (f *FallbackClient) Validate() error {
	if f.Primary == nil {
		return ErrNoClient
	}
	return f.Primary.Validate()
}
