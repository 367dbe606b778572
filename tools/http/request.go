// Package http provides a tool that lets agents call HTTP APIs.
package http

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/observability"
	"github.com/KamdynS/agentlab/tools"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// MaxBodyChars bounds the response body returned to the model.
const MaxBodyChars = 4000

var allowedMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true}

// RequestTool issues HTTP requests described as METHOD|URL|BODY.
type RequestTool struct {
	client *resty.Client
}

// NewRequestTool creates the tool. A zero timeout means 30s.
func NewRequestTool(timeout time.Duration) *RequestTool {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		}).
		SetHeader("User-Agent", "agentlab/1.0")
	return &RequestTool{client: c}
}

func (t *RequestTool) Name() string { return "http_request" }

func (t *RequestTool) Description() string {
	return "Makes HTTP requests to external APIs. Input should be in format: METHOD|URL|BODY (optional)"
}

func (t *RequestTool) Schema() map[string]any {
	s := tools.InputSchema("HTTP request in format: METHOD|URL|BODY (optional)")
	s["properties"].(map[string]any)["input"].(map[string]any)["example"] = "GET|https://api.example.com/data|"
	return s
}

func (t *RequestTool) Execute(ctx context.Context, input string) (string, error) {
	parts := strings.SplitN(input, "|", 3)
	if len(parts) < 2 {
		return "", errors.New("invalid input format. Expected: METHOD|URL|BODY (optional)")
	}
	method := strings.ToUpper(strings.TrimSpace(parts[0]))
	if !allowedMethods[method] {
		return "", fmt.Errorf("unsupported method %q", method)
	}
	url := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("invalid url %q", url)
	}

	req := t.client.R().SetContext(ctx)
	if id, ok := observability.RequestIDFromContext(ctx); ok {
		req.SetHeader("X-Request-ID", id)
	}
	if len(parts) == 3 && parts[2] != "" {
		req.SetBody(parts[2])
		if method == "POST" || method == "PUT" || method == "PATCH" {
			req.SetHeader("Content-Type", "application/json")
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	log.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode()).Dur("elapsed", resp.Time()).Msg("http tool request")

	body := resp.String()
	if len(body) > MaxBodyChars {
		body = body[:MaxBodyChars] + "...(truncated)"
	}
	return fmt.Sprintf("Status: %s\nBody: %s", resp.Status(), body), nil
}

var _ tools.Tool = (*RequestTool)(nil)
