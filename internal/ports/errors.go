package ports

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels shared by the adapters. Provider, cache and store errors wrap
// them so callers can branch with errors.Is without knowing which adapter
// failed.
var (
	// ErrTokenLimitExceeded means a prompt did not fit the model's context
	// window. Retrying the same prompt cannot succeed.
	ErrTokenLimitExceeded = errors.New("token limit exceeded")

	// ErrRateLimited means the provider throttled the call.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable covers provider 5xx responses and network
	// failures.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout means a model call ran past its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse means the provider refused or returned nothing
	// usable, for example a safety block on an abusive text.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed means the provider rejected the API key.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCacheCorrupted means a response database or a matrix file exists
	// but cannot be decoded.
	ErrCacheCorrupted = errors.New("cache corrupted")

	// ErrConfigNotFound means the tournament file does not exist.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrLockUnavailable means a matrix lock was still held by another
	// process when the context ended.
	ErrLockUnavailable = errors.New("lock unavailable")
)

// LLMError is returned by model clients. It names the model and the call
// that failed.
type LLMError struct {
	Model     string
	Operation string
	Err       error

	// TokensUsed counts input and output tokens the provider reported
	// before failing.
	TokensUsed int

	// RetryAfter is the provider's requested wait, nil when it gave none.
	RetryAfter *time.Duration
}

func (e *LLMError) Error() string {
	msg := fmt.Sprintf("LLM error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.TokensUsed > 0 {
		msg += fmt.Sprintf(", tokens_used=%d", e.TokensUsed)
	}
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

func (e *LLMError) Unwrap() error { return e.Err }

// IsRetryable reports whether the underlying failure is transient:
// throttling, an unavailable service or a timeout.
func (e *LLMError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewLLMError wraps err for model.
func NewLLMError(model, operation string, err error) *LLMError {
	return &LLMError{Model: model, Operation: operation, Err: err}
}

// CacheError is returned by the response cache. Key is the cache key, or
// the database path for open failures.
type CacheError struct {
	Key       string
	Operation string
	Err       error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError wraps err for key.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{Key: key, Operation: operation, Err: err}
}

// StoreError is returned by the matrix store for one (text, judge) pair.
type StoreError struct {
	TextID    string
	JudgeID   string
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: operation=%s, text=%s, judge=%s, err=%v", e.Operation, e.TextID, e.JudgeID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err for the pair.
func NewStoreError(textID, judgeID, operation string, err error) *StoreError {
	return &StoreError{TextID: textID, JudgeID: judgeID, Operation: operation, Err: err}
}

// MetricsError is returned when metrics cannot be exposed.
type MetricsError struct {
	Metric    string
	Operation string
	Err       error
}

func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError wraps err for metric.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{Metric: metric, Operation: operation, Err: err}
}

// ConfigError is returned when the tournament file cannot be read.
// ConfigKey holds the file path.
type ConfigError struct {
	ConfigKey string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err for key.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{ConfigKey: key, Err: err}
}
