package llm

import (
	"context"
	"time"
)

// Roles used in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Response is a completed (or streamed partial) model reply.
type Response struct {
	Content      string            `json:"content"`
	Role         string            `json:"role,omitempty"`
	Model        string            `json:"model"`
	Provider     Provider          `json:"provider"`
	Usage        *Usage            `json:"usage,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
	ToolCalls    []ToolCall        `json:"tool_calls,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	Latency      time.Duration     `json:"latency,omitempty"`
	Timestamp    time.Time         `json:"timestamp,omitempty"`
}

// Usage contains token accounting for one call.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost,omitempty"`
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function names a tool and carries its JSON-encoded arguments.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Client is implemented by every model backend (GitHub Models/OpenAI,
// Anthropic, the scripted fake, and the wrappers in this package).
type Client interface {
	// Chat sends a conversation and waits for the full reply.
	Chat(ctx context.Context, req *ChatRequest) (*Response, error)

	// Completion sends a single user prompt.
	Completion(ctx context.Context, prompt string) (*Response, error)

	// Stream writes partial responses to output and closes it when done.
	Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error

	Model() string
	Provider() Provider
	Validate() error
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Messages       []Message       `json:"messages"`
	Model          string          `json:"model,omitempty"`
	SystemPrompt   string          `json:"system_prompt,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     any             `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Seed           *int            `json:"seed,omitempty"`
	User           string          `json:"user,omitempty"`
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the schema half of a Tool.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ResponseFormat asks the provider for "text" or "json_object" output.
type ResponseFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries"`
	InitialDelay    time.Duration `json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay" mapstructure:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor" mapstructure:"backoff_factor"`
	RetryableErrors []string      `json:"retryable_errors" mapstructure:"retryable_errors"`
}

// DefaultRetryConfig returns the retry policy used by the provider clients.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"rate_limit_exceeded",
			"server_error",
			"timeout",
			"connection_error",
		},
	}
}

// UserPrompt is shorthand for a single-message request with an optional
// system prompt.
func UserPrompt(system, prompt string) *ChatRequest {
	return &ChatRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Float64 and Int return pointers for the optional request fields.
func Float64(v float64) *float64 { return &v }
func Int(v int) *int             { return &v }
