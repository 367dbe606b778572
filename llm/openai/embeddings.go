package openai

import (
	"context"
	"fmt"
	"sort"

	"github.com/KamdynS/agentlab/llm"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func newHTTPClient(config Config) *resty.Client {
	c := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryConfig.MaxRetries).
		SetRetryWaitTime(config.RetryConfig.InitialDelay).
		SetRetryMaxWaitTime(config.RetryConfig.MaxDelay).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return err != nil
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(config.APIKey)
	if config.Organization != "" {
		c.SetHeader("OpenAI-Organization", config.Organization)
	}

	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("embeddings response")
		return nil
	})
	return c
}

// Embed returns the embedding of input. An empty model selects the
// configured embedding model.
func (c *Client) Embed(ctx context.Context, input string, model string) ([]float64, error) {
	vecs, err := c.EmbedBatch(ctx, []string{input}, model)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds several inputs in one request, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string, model string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if model == "" {
		model = c.config.EmbeddingModel
	}

	var out embeddingsResponse
	var apiErr apiErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embeddingsRequest{Input: inputs, Model: model}).
		ForceContentType("application/json").
		SetResult(&out).
		SetError(&apiErr).
		Post("/embeddings")
	if err != nil {
		return nil, llm.NewLLMErrorWithCause(c.provider(), llm.ErrorTypeConnectionError, "embeddings request failed", err)
	}
	if resp.IsError() {
		return nil, llm.ParseHTTPError(c.provider(), resp.StatusCode(), resp.String())
	}
	if apiErr.Error != nil {
		return nil, llm.NewLLMError(c.provider(), llm.ErrorTypeInvalidRequest, apiErr.Error.Message)
	}
	if len(out.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(out.Data), len(inputs))
	}

	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float64, len(out.Data))
	for i, d := range out.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embeddings: empty vector at index %d", i)
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
