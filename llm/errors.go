package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies provider failures.
type ErrorType string

const (
	ErrorTypeUnknown           ErrorType = "unknown"
	ErrorTypeInvalidRequest    ErrorType = "invalid_request"
	ErrorTypeAuthentication    ErrorType = "authentication_error"
	ErrorTypePermission        ErrorType = "permission_error"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeRateLimit         ErrorType = "rate_limit_exceeded"
	ErrorTypeInsufficientQuota ErrorType = "insufficient_quota"
	ErrorTypeInvalidModel      ErrorType = "invalid_model"
	ErrorTypeContextLength     ErrorType = "context_length_exceeded"
	ErrorTypeContentFilter     ErrorType = "content_filter"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeConnectionError   ErrorType = "connection_error"
	ErrorTypeJSONParsingError  ErrorType = "json_parsing_error"
)

// LLMError is returned by every provider client in place of SDK errors.
type LLMError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	Provider   Provider  `json:"provider"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	// RetryAfter is in seconds.
	RetryAfter int   `json:"retry_after,omitempty"`
	Cause      error `json:"-"`
}

func (e *LLMError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// NewLLMError builds an error whose retryability follows from its type.
func NewLLMError(provider Provider, t ErrorType, message string) *LLMError {
	return &LLMError{
		Type:      t,
		Message:   message,
		Provider:  provider,
		Retryable: retryableType(t),
	}
}

// NewLLMErrorWithCause is NewLLMError with a wrapped cause.
func NewLLMErrorWithCause(provider Provider, t ErrorType, message string, cause error) *LLMError {
	err := NewLLMError(provider, t, message)
	err.Cause = cause
	return err
}

func retryableType(t ErrorType) bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeConnectionError:
		return true
	}
	return false
}

// ParseHTTPError maps an HTTP status and body onto the error taxonomy.
// Recognisable phrases in the body take precedence over the status.
func ParseHTTPError(provider Provider, status int, body string) *LLMError {
	var t ErrorType
	var msg string

	switch status {
	case http.StatusBadRequest:
		t, msg = ErrorTypeInvalidRequest, "invalid request parameters"
	case http.StatusUnauthorized:
		t, msg = ErrorTypeAuthentication, "invalid token or authentication failed"
	case http.StatusForbidden:
		t, msg = ErrorTypePermission, "permission denied"
	case http.StatusNotFound:
		t, msg = ErrorTypeNotFound, "resource not found"
	case http.StatusTooManyRequests:
		t, msg = ErrorTypeRateLimit, "rate limit exceeded"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		t, msg = ErrorTypeServerError, "server error"
	default:
		t, msg = ErrorTypeUnknown, fmt.Sprintf("HTTP %d error", status)
	}

	if body != "" {
		if specific := classifyBody(provider, body); specific != nil {
			specific.HTTPStatus = status
			return specific
		}
		msg = fmt.Sprintf("%s: %s", msg, truncate(body, 200))
	}

	err := NewLLMError(provider, t, msg)
	err.HTTPStatus = status
	return err
}

var bodyPatterns = []struct {
	phrases []string
	t       ErrorType
	msg     string
}{
	{[]string{"rate limit", "too many requests"}, ErrorTypeRateLimit, "rate limit exceeded"},
	{[]string{"insufficient quota", "quota exceeded"}, ErrorTypeInsufficientQuota, "insufficient quota or credits"},
	{[]string{"context length", "token limit", "maximum context"}, ErrorTypeContextLength, "context length exceeded"},
	{[]string{"content filter", "content_filter"}, ErrorTypeContentFilter, "content filtered by safety system"},
	{[]string{"unknown model", "model not found", "unknown_model"}, ErrorTypeInvalidModel, "invalid or unavailable model"},
}

func classifyBody(provider Provider, body string) *LLMError {
	lower := strings.ToLower(body)
	for _, p := range bodyPatterns {
		for _, phrase := range p.phrases {
			if strings.Contains(lower, phrase) {
				return NewLLMError(provider, p.t, p.msg)
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// AsLLMError unwraps err to an *LLMError if one is in the chain.
func AsLLMError(err error) (*LLMError, bool) {
	var e *LLMError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryableError reports whether err is an LLMError of a retryable type.
func IsRetryableError(err error) bool {
	if e, ok := AsLLMError(err); ok {
		return retryableType(e.Type)
	}
	return false
}

func IsRateLimitError(err error) bool { return isType(err, ErrorTypeRateLimit) }

func IsAuthenticationError(err error) bool { return isType(err, ErrorTypeAuthentication) }

func IsContextLengthError(err error) bool { return isType(err, ErrorTypeContextLength) }

func isType(err error, t ErrorType) bool {
	e, ok := AsLLMError(err)
	return ok && e.Type == t
}

// ValidationError reports an invalid field in structured output.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (v *ValidationError) Error() string {
	if v.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", v.Field, v.Message)
	}
	return "validation error: " + v.Message
}

// MultiValidationError collects ValidationErrors.
type MultiValidationError struct {
	Errors []ValidationError `json:"errors"`
}

func (m *MultiValidationError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors occurred", len(m.Errors))
}

func (m *MultiValidationError) Add(field string, value any, message string) {
	m.Errors = append(m.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// ErrorOrNil returns m when it holds errors, otherwise nil.
func (m *MultiValidationError) ErrorOrNil() error {
	if len(m.Errors) > 0 {
		return m
	}
	return nil
}
