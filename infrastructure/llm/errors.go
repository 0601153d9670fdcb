package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// Common errors returned by clients and providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider returned no text.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the provider's response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrUnknownProvider indicates an engine with no registered factory.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ErrorType classifies provider failures.
type ErrorType int

// Error categories.
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeTokenLimit
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeTokenLimit:     "token_limit",
}

// String returns the snake_case name of the type, or "" when unknown.
func (t ErrorType) String() string { return errorTypeNames[t] }

// ProviderError normalises a provider SDK error.
type ProviderError struct {
	Type         ErrorType
	Provider     string
	StatusCode   int
	Message      string
	WrappedError error

	// RetryAfter is the wait the provider asked for, zero when it sent
	// none.
	RetryAfter time.Duration
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if s := e.Type.String(); s != "" {
		msg += " [" + s + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.WrappedError != nil {
		msg += fmt.Sprintf(": %v", e.WrappedError)
	}
	return msg
}

// Unwrap returns the SDK error.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Is lets errors.Is match a ProviderError against the ports sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError || e.Type == ErrorTypeNetwork
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ports.ErrAuthenticationFailed:
		return e.Type == ErrorTypeAuthentication
	case ports.ErrInvalidResponse:
		return e.Type == ErrorTypeContentPolicy
	case ports.ErrTokenLimitExceeded:
		return e.Type == ErrorTypeTokenLimit
	default:
		return false
	}
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	var le *ports.LLMError
	if errors.As(err, &le) {
		return le.IsRetryable()
	}
	// Unclassified failures (transport hiccups, mocks) get the benefit of
	// the doubt.
	return true
}

// RetryAfter returns the wait a provider asked for before the next attempt.
func RetryAfter(err error) (time.Duration, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	var le *ports.LLMError
	if errors.As(err, &le) && le.RetryAfter != nil && *le.RetryAfter > 0 {
		return *le.RetryAfter, true
	}
	return 0, false
}

// ErrorClassifier turns status codes and context errors into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError maps an HTTP status to an ErrorType.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch {
	case statusCode == 401 || statusCode == 403:
		errType = ErrorTypeAuthentication
		message = ec.Provider + " authentication failed"
	case statusCode == 429:
		errType = ErrorTypeRateLimit
		message = ec.Provider + " rate limit exceeded"
	case statusCode == 404:
		errType = ErrorTypeNotFound
	case statusCode == 408:
		errType = ErrorTypeTimeout
	case statusCode == 413 || (statusCode >= 400 && statusCode < 500 && overTokenLimit(message, err)):
		errType = ErrorTypeTokenLimit
	case statusCode >= 400 && statusCode < 500:
		errType = ErrorTypeBadRequest
	case statusCode >= 500:
		errType = ErrorTypeServerError
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyResponse classifies like ClassifyHTTPError and also records the
// Retry-After header of rate-limited and unavailable responses.
func (ec *ErrorClassifier) ClassifyResponse(statusCode int, header http.Header, message string, err error) *ProviderError {
	pe := ec.ClassifyHTTPError(statusCode, message, err)
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		if d, ok := parseRetryAfter(header.Get("Retry-After"), time.Now()); ok {
			pe.RetryAfter = d
		}
	}
	return pe
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, false
}

var tokenLimitPhrases = []string{
	"context length",
	"context_length_exceeded",
	"maximum context",
	"prompt is too long",
	"too many tokens",
	"maximum number of tokens",
	"input token count",
}

func overTokenLimit(message string, err error) bool {
	text := strings.ToLower(message)
	if err != nil {
		text += " " + strings.ToLower(err.Error())
	}
	for _, phrase := range tokenLimitPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// ClassifyContextError maps context cancellation and deadlines.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
