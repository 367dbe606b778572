package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dummyClient struct {
	id  string
	err error
}

func (d dummyClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &Response{Content: d.id, Model: req.Model}, nil
}
func (d dummyClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return d.Chat(ctx, UserPrompt("", prompt))
}
func (d dummyClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	close(output)
	return nil
}
func (d dummyClient) Model() string      { return d.id }
func (d dummyClient) Provider() Provider { return Provider(d.id) }
func (d dummyClient) Validate() error    { return nil }

func TestStaticPolicyAndRouter(t *testing.T) {
	p := StaticPolicy{Default: dummyClient{id: "def"}, ByModel: map[string]Client{"m": dummyClient{id: "m"}}}
	r := NewRouterClient(p)
	require.NoError(t, r.Validate())

	out, err := r.Chat(context.Background(), &ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", out.Content)
	assert.Equal(t, "m", out.Model)

	out, err = r.Chat(context.Background(), &ChatRequest{Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, "def", out.Content)
	assert.Equal(t, "other", out.Model)

	out, err = r.Completion(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "def", out.Content)
}

func TestStaticPolicyWithoutDefault(t *testing.T) {
	_, err := NewRouterClient(StaticPolicy{}).Chat(context.Background(), &ChatRequest{})
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestFallbackClient(t *testing.T) {
	primary := dummyClient{id: "primary", err: NewLLMError(ProviderGitHub, ErrorTypeRateLimit, "429")}
	f := &FallbackClient{Primary: primary, Secondary: dummyClient{id: "secondary"}}
	out, err := f.Chat(context.Background(), &ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", out.Content)

	f.Primary = dummyClient{id: "primary", err: errors.New("bad request")}
	_, err = f.Chat(context.Background(), &ChatRequest{})
	assert.EqualError(t, err, "bad request")
}
