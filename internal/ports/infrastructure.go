package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tourney/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	// The implementation should handle rate limiting, retries, and timeouts.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "system": string
	//   - "temperature": float64
	//   - "top_p": float64
	//   - "max_tokens": int
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// ResponseCache memoizes competitor responses. Keys are the string form of
// a tournament cache key, so identical (text, context, competitor) triples
// always hit the same entry.
type ResponseCache interface {
	// Get returns the cached response and true, or "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores a response. Storing an existing key overwrites it.
	Put(ctx context.Context, key, response string) error
}

// MatrixStore persists one score matrix per (text, judge) pair.
// A stored matrix is reused whole; it is never partially re-filled.
type MatrixStore interface {
	// Load returns the stored matrix and true, or nil and false when none
	// exists yet.
	Load(ctx context.Context, textID, judgeID string) (*domain.ScoreMatrix, bool, error)

	// Save persists m, replacing any previous matrix for the pair.
	Save(ctx context.Context, textID, judgeID string, m *domain.ScoreMatrix) error

	// Lock acquires the cross-process lock guarding the check-then-write
	// sequence for the pair. The returned function releases it.
	Lock(ctx context.Context, textID, judgeID string) (unlock func() error, err error)

	// LoadAll reads every stored matrix.
	LoadAll(ctx context.Context) (domain.Results, error)
}

// TextSource supplies the texts a tournament runs over.
type TextSource interface {
	Texts(ctx context.Context) ([]domain.Text, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
