// Package openai implements llm.Client for OpenAI-compatible endpoints,
// with GitHub Models as the default.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
)

// GitHubModelsURL is the inference endpoint used when BaseURL is empty.
const GitHubModelsURL = "https://models.inference.ai.azure.com"

// Client implements llm.Client for chat and exposes Embed for embeddings.
type Client struct {
	client  *openai.Client
	http    *resty.Client
	config  Config
	retrier *llm.Retrier
}

// Config holds endpoint and sampling settings.
type Config struct {
	APIKey         string          `json:"api_key" mapstructure:"api_key"`
	Model          string          `json:"model" mapstructure:"model"`
	EmbeddingModel string          `json:"embedding_model" mapstructure:"embedding_model"`
	BaseURL        string          `json:"base_url,omitempty" mapstructure:"base_url"`
	Temperature    float64         `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Timeout        time.Duration   `json:"timeout,omitempty" mapstructure:"timeout"`
	RetryConfig    llm.RetryConfig `json:"retry_config,omitempty" mapstructure:"retry"`
	Organization   string          `json:"organization,omitempty" mapstructure:"organization"`
}

// NewGitHubModels returns a client for the GitHub Models endpoint. An
// empty baseURL selects GitHubModelsURL.
func NewGitHubModels(token, baseURL string) (*Client, error) {
	return NewClient(Config{APIKey: token, BaseURL: baseURL})
}

// NewClient validates config, fills defaults, and builds the client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = GitHubModelsURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = llm.DefaultChatModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = llm.DefaultEmbeddingModel
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	oc := openai.DefaultConfig(config.APIKey)
	oc.BaseURL = config.BaseURL
	oc.OrgID = config.Organization
	oc.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Client{
		client:  openai.NewClientWithConfig(oc),
		http:    newHTTPClient(config),
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return errors.New("max_tokens must be non-negative")
	}
	// Unknown models are allowed: the endpoint serves more than the catalog.
	if m, err := llm.GetModel(config.Model); err == nil && m.Kind != llm.KindChat {
		return fmt.Errorf("model %s is not a chat model", config.Model)
	}
	return nil
}

func (c *Client) provider() llm.Provider {
	if strings.HasPrefix(c.config.BaseURL, GitHubModelsURL) {
		return llm.ProviderGitHub
	}
	return llm.ProviderOpenAI
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	start := time.Now()
	resp, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*llm.Response, error) {
		return c.chat(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	resp.Latency = time.Since(start)
	resp.Timestamp = start
	return resp, nil
}

func (c *Client) chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	oreq := c.buildRequest(req)
	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewLLMError(c.provider(), llm.ErrorTypeUnknown, "no choices returned")
	}
	choice := resp.Choices[0]

	var calls []llm.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, llm.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: llm.Function{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	var usage *llm.Usage
	if resp.Usage.TotalTokens > 0 {
		info, _ := llm.GetModel(oreq.Model)
		usage = &llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
			Cost:         info.EstimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		}
	}

	return &llm.Response{
		Content:      choice.Message.Content,
		Role:         llm.RoleAssistant,
		Model:        oreq.Model,
		Provider:     c.provider(),
		Usage:        usage,
		FinishReason: string(choice.FinishReason),
		ToolCalls:    calls,
		Meta:         map[string]string{"id": resp.ID},
	}, nil
}

func (c *Client) buildRequest(req *llm.ChatRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		om := openai.ChatCompletionMessage{Content: m.Content, Name: m.Name}
		switch m.Role {
		case llm.RoleSystem:
			om.Role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			om.Role = openai.ChatMessageRoleAssistant
		case llm.RoleTool:
			om.Role = openai.ChatMessageRoleTool
			om.ToolCallID = m.ToolCallID
		default:
			om.Role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, om)
	}

	out := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    msgs,
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
		Stop:        req.Stop,
		Seed:        req.Seed,
		User:        req.User,
	}
	if req.Model != "" {
		out.Model = req.Model
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		out.TopP = float32(*req.TopP)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	if len(out.Tools) > 0 && req.ToolChoice != nil {
		out.ToolChoice = req.ToolChoice
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, llm.UserPrompt("", prompt))
}

// Stream sends deltas to output. Only the connection is retried; once
// deltas have been emitted a failure is returned as is.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)

	oreq := c.buildRequest(req)
	oreq.Stream = true
	stream, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, _ int) (*openai.ChatCompletionStream, error) {
		s, err := c.client.CreateChatCompletionStream(ctx, oreq)
		if err != nil {
			return nil, c.convertError(err)
		}
		return s, nil
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	start := time.Now()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.convertError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		ch := chunk.Choices[0]
		select {
		case output <- &llm.Response{
			Content:      ch.Delta.Content,
			Role:         llm.RoleAssistant,
			Model:        oreq.Model,
			Provider:     c.provider(),
			FinishReason: string(ch.FinishReason),
			Latency:      time.Since(start),
			Timestamp:    start,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// convertError maps SDK and transport errors onto llm.LLMError.
func (c *Client) convertError(err error) error {
	p := c.provider()

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := llm.ParseHTTPError(p, apiErr.HTTPStatusCode, apiErr.Message)
		if code, ok := apiErr.Code.(string); ok {
			e.Code = code
		}
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests && strings.Contains(strings.ToLower(apiErr.Message), "wait") {
			e.RetryAfter = 60
		}
		e.Cause = err
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := llm.ParseHTTPError(p, reqErr.HTTPStatusCode, string(reqErr.Body))
		e.Cause = err
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return llm.NewLLMErrorWithCause(p, llm.ErrorTypeTimeout, "request timeout", err)
	case errors.Is(err, context.Canceled):
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") {
		return llm.NewLLMErrorWithCause(p, llm.ErrorTypeConnectionError, "connection error", err)
	}
	return llm.NewLLMErrorWithCause(p, llm.ErrorTypeUnknown, err.Error(), err)
}

func (c *Client) Model() string          { return c.config.Model }
func (c *Client) Provider() llm.Provider { return c.provider() }
func (c *Client) Validate() error        { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
