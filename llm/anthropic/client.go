// Package anthropic implements llm.Client for Claude models.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/liushuangls/go-anthropic/v2"
)

type Client struct {
	client  *anthropic.Client
	config  Config
	retrier *llm.Retrier
}

type Config struct {
	APIKey      string          `json:"api_key" mapstructure:"api_key"`
	Model       string          `json:"model" mapstructure:"model"`
	BaseURL     string          `json:"base_url,omitempty" mapstructure:"base_url"`
	Temperature float64         `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Timeout     time.Duration   `json:"timeout,omitempty" mapstructure:"timeout"`
	RetryConfig llm.RetryConfig `json:"retry_config,omitempty" mapstructure:"retry"`
}

func NewClient(config Config) (*Client, error) {
	if config.Model == "" {
		config.Model = llm.ModelClaude35Haiku
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:  anthropic.NewClient(config.APIKey, opts...),
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}
	if err := llm.ValidateModel(config.Model, llm.ProviderAnthropic); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return errors.New("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return errors.New("max_tokens must be non-negative")
	}
	return nil
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	start := time.Now()
	resp, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, _ int) (*llm.Response, error) {
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
	areq := c.buildRequest(req)
	resp, err := c.client.CreateMessages(ctx, areq)
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(resp.Content) == 0 {
		return nil, llm.NewLLMError(llm.ProviderAnthropic, llm.ErrorTypeUnknown, "no content returned")
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			content.WriteString(*block.Text)
		}
	}

	model := string(areq.Model)
	var usage *llm.Usage
	if resp.Usage.OutputTokens > 0 {
		info, _ := llm.GetModel(model)
		usage = &llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
			Cost:         info.EstimateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		}
	}

	return &llm.Response{
		Content:      content.String(),
		Role:         llm.RoleAssistant,
		Model:        model,
		Provider:     llm.ProviderAnthropic,
		Usage:        usage,
		FinishReason: string(resp.StopReason),
		Meta:         map[string]string{"id": resp.ID},
	}, nil
}

// buildRequest folds system messages into the system prompt; Claude takes
// it as a separate field. Tool results are sent as user turns.
func (c *Client) buildRequest(req *llm.ChatRequest) anthropic.MessagesRequest {
	system := req.SystemPrompt
	msgs := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case llm.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantTextMessage(m.Content))
		default:
			msgs = append(msgs, anthropic.NewUserTextMessage(m.Content))
		}
	}

	out := anthropic.MessagesRequest{
		Model:         anthropic.Model(c.config.Model),
		Messages:      msgs,
		System:        system,
		MaxTokens:     c.config.MaxTokens,
		StopSequences: req.Stop,
	}
	if req.Model != "" {
		out.Model = anthropic.Model(req.Model)
	}
	temp := float32(c.config.Temperature)
	if req.Temperature != nil {
		temp = float32(*req.Temperature)
	}
	out.Temperature = &temp
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		out.TopP = &p
	}
	return out
}

func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, llm.UserPrompt("", prompt))
}

// Stream sends text deltas to output as they arrive.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)

	areq := c.buildRequest(req)
	start := time.Now()
	sreq := anthropic.MessagesStreamRequest{
		MessagesRequest: areq,
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			if data.Delta.Text == nil || *data.Delta.Text == "" {
				return
			}
			select {
			case output <- &llm.Response{
				Content:   *data.Delta.Text,
				Role:      llm.RoleAssistant,
				Model:     string(areq.Model),
				Provider:  llm.ProviderAnthropic,
				Latency:   time.Since(start),
				Timestamp: start,
			}:
			case <-ctx.Done():
			}
		},
	}
	if _, err := c.client.CreateMessagesStream(ctx, sreq); err != nil {
		return c.convertError(err)
	}
	return nil
}

func (c *Client) convertError(err error) error {
	p := llm.ProviderAnthropic

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		e := llm.NewLLMErrorWithCause(p, apiErrorType(string(apiErr.Type)), apiErr.Message, err)
		e.Code = string(apiErr.Type)
		return e
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		e := llm.ParseHTTPError(p, reqErr.StatusCode, reqErr.Error())
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
	if strings.Contains(msg, "connection") || strings.Contains(msg, "network") {
		return llm.NewLLMErrorWithCause(p, llm.ErrorTypeConnectionError, "connection error", err)
	}
	return llm.NewLLMErrorWithCause(p, llm.ErrorTypeUnknown, err.Error(), err)
}

func apiErrorType(t string) llm.ErrorType {
	switch t {
	case "invalid_request_error":
		return llm.ErrorTypeInvalidRequest
	case "authentication_error":
		return llm.ErrorTypeAuthentication
	case "permission_error":
		return llm.ErrorTypePermission
	case "not_found_error":
		return llm.ErrorTypeNotFound
	case "request_too_large":
		return llm.ErrorTypeContextLength
	case "rate_limit_error":
		return llm.ErrorTypeRateLimit
	case "api_error", "overloaded_error":
		return llm.ErrorTypeServerError
	}
	return llm.ErrorTypeUnknown
}

func (c *Client) Model() string          { return c.config.Model }
func (c *Client) Provider() llm.Provider { return llm.ProviderAnthropic }
func (c *Client) Validate() error        { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
