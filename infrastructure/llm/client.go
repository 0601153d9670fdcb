// Package llm puts the model providers that play and judge a tournament
// behind one small interface. Competitor answers and referee verdicts both
// flow through a Client, which wraps a provider-specific CoreLLM in a chain
// of middleware (pacing, retries, timeouts, circuit breaking, metrics and
// tracing).
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-sonnet-4-20250514",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("anthropic"),
//	        llm.RateLimitMiddleware(2, 4),
//	        llm.RetryMiddleware(3, time.Second, 30*time.Second),
//	    },
//	})
//	reply, err := client.Complete(ctx, prompt, map[string]any{"temperature": 0.0})
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-tourney/internal/ports"
)

// CoreLLM is the minimal surface a provider implements. Middleware wraps a
// CoreLLM and returns another one.
type CoreLLM interface {
	// DoRequest sends prompt to the model and returns the reply together
	// with input and output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the provider-side model identifier.
	GetModel() string
}

// TokenEstimator approximates token counts before a request is made.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds everything needed to build a Client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the provider-side model identifier.
	Model string

	// BaseURL overrides the provider endpoint. OpenAI-compatible local
	// servers are reached this way.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero keeps the SDK default.
	Timeout time.Duration

	// TokenEstimator defaults to a character-based heuristic.
	TokenEstimator TokenEstimator

	// Middleware is applied in order: the first entry is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add behaviour around every request.
type Middleware func(CoreLLM) CoreLLM

// Chain applies mws to core so that mws[0] runs first.
func Chain(core CoreLLM, mws ...Middleware) CoreLLM {
	for i := len(mws) - 1; i >= 0; i-- {
		core = mws[i](core)
	}
	return core
}

// Client implements ports.LLMClient on top of a middleware-wrapped CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient builds a client for the registered provider type.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := lookupProvider(providerType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", providerType, err)
	}

	return NewClientFromCore(core, config.TokenEstimator, config.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM, typically a mock in tests.
func NewClientFromCore(core CoreLLM, estimator TokenEstimator, mws ...Middleware) *Client {
	if estimator == nil {
		estimator = SimpleTokenEstimator{}
	}
	return &Client{core: Chain(core, mws...), estimator: estimator}
}

// Complete sends prompt and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends prompt and also returns token usage. Failures
// are returned as *ports.LLMError.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	response, tokensIn, tokensOut, err := c.core.DoRequest(ctx, prompt, options)
	if err != nil {
		llmErr := ports.NewLLMError(c.core.GetModel(), "complete", err)
		llmErr.TokensUsed = tokensIn + tokensOut
		if d, ok := RetryAfter(err); ok {
			llmErr.RetryAfter = &d
		}
		return "", tokensIn, tokensOut, llmErr
	}
	return response, tokensIn, tokensOut, nil
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model served by the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator assumes roughly four characters per token.
type SimpleTokenEstimator struct{}

// EstimateTokens rounds len(text)/4 up.
func (SimpleTokenEstimator) EstimateTokens(text string) int { return (len(text) + 3) / 4 }

// ProviderFactory creates a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	providersMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider type available to NewClient.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providerFactories[providerType] = factory
}

func lookupProvider(providerType string) (ProviderFactory, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	f, ok := providerFactories[providerType]
	return f, ok
}
