package llm

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

// Competitor params consumed by the pool and never forwarded as request
// options.
const (
	ParamModel     = "model"
	ParamBaseURL   = "base_url"
	ParamAPIKeyEnv = "api_key_env"
)

// EngineConfig describes how an engine name maps to a provider.
type EngineConfig struct {
	// Provider is the registered provider type.
	Provider string

	// EnvVar holds the API key.
	EnvVar string

	// BaseURL is used when the competitor does not set base_url.
	BaseURL string
}

// DefaultEngines covers the hosted providers plus OpenAI-compatible local
// servers.
var DefaultEngines = map[string]EngineConfig{
	"openai":    {Provider: "openai", EnvVar: "OPENAI_API_KEY"},
	"anthropic": {Provider: "anthropic", EnvVar: "ANTHROPIC_API_KEY"},
	"google":    {Provider: "google", EnvVar: "GOOGLE_API_KEY"},
	"ollama":    {Provider: "openai", EnvVar: "OLLAMA_API_KEY", BaseURL: "http://localhost:11434/v1"},
	"vllm":      {Provider: "openai", EnvVar: "VLLM_API_KEY", BaseURL: "http://localhost:8000/v1"},
}

// PoolConfig holds the middleware settings shared by every client.
type PoolConfig struct {
	Engines map[string]EngineConfig

	Timeout            time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	RateLimit          float64
	Burst              int
	CircuitMaxFailures int
	CircuitCooldown    time.Duration

	Collector ports.MetricsCollector

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultPoolConfig returns conservative settings for hosted APIs.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Engines:            DefaultEngines,
		Timeout:            2 * time.Minute,
		MaxRetries:         3,
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      30 * time.Second,
		RateLimit:          2,
		Burst:              4,
		CircuitMaxFailures: 5,
		CircuitCooldown:    30 * time.Second,
	}
}

// Pool maps competitor full names to clients.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]ports.LLMClient
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]ports.LLMClient)}
}

// BuildPool creates one client per competitor. Competitors on the same
// engine share a rate limiter; each client gets its own circuit breaker.
func BuildPool(competitors []domain.Competitor, cfg PoolConfig) (*Pool, error) {
	if cfg.Engines == nil {
		cfg.Engines = DefaultEngines
	}
	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	limiters := make(map[string]Middleware)
	pool := NewPool()
	for _, c := range competitors {
		engine, ok := cfg.Engines[c.Engine]
		if !ok {
			return nil, fmt.Errorf("competitor %s: %w: %s", c.FullName(), ErrUnknownProvider, c.Engine)
		}

		limiter, ok := limiters[c.Engine]
		if !ok {
			limiter = passthrough
			if cfg.RateLimit > 0 {
				limiter = RateLimitMiddleware(rate.Limit(cfg.RateLimit), cfg.Burst)
			}
			limiters[c.Engine] = limiter
		}

		client, err := NewClient(engine.Provider, cfg.clientConfig(c, engine, getenv, limiter))
		if err != nil {
			return nil, fmt.Errorf("competitor %s: %w", c.FullName(), err)
		}
		pool.Register(c.FullName(), client)
	}
	return pool, nil
}

// clientConfig resolves the provider settings for one competitor. Timeout
// bounds the provider's HTTP client as well as each attempt.
func (cfg PoolConfig) clientConfig(c domain.Competitor, engine EngineConfig, getenv func(string) string, limiter Middleware) ClientConfig {
	return ClientConfig{
		APIKey:     getenv(apiKeyEnv(c, engine)),
		Model:      modelName(c),
		BaseURL:    stringParam(c, ParamBaseURL, engine.BaseURL),
		Timeout:    cfg.Timeout,
		Middleware: cfg.middleware(c.Engine, limiter),
	}
}

// middleware orders the chain outermost first: the span covers every
// retry, and the timeout bounds a single attempt.
func (cfg PoolConfig) middleware(engine string, limiter Middleware) []Middleware {
	mws := []Middleware{
		TracingMiddleware(engine),
		MetricsMiddleware(engine, cfg.Collector),
		limiter,
	}
	if cfg.MaxRetries > 0 {
		mws = append(mws, RetryMiddleware(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay))
	}
	if cfg.CircuitMaxFailures > 0 {
		mws = append(mws, CircuitBreakerMiddleware(cfg.CircuitMaxFailures, cfg.CircuitCooldown))
	}
	if cfg.Timeout > 0 {
		mws = append(mws, TimeoutMiddleware(cfg.Timeout))
	}
	return mws
}

func passthrough(next CoreLLM) CoreLLM { return next }

// Register adds or replaces the client for fullName.
func (p *Pool) Register(fullName string, client ports.LLMClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[fullName] = client
}

// Client returns the client registered for fullName.
func (p *Pool) Client(fullName string) (ports.LLMClient, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.clients[fullName]
	if !ok {
		return nil, fmt.Errorf("%w: no client for %s", domain.ErrUnknownCompetitor, fullName)
	}
	return c, nil
}

// Names lists the registered full names in sorted order.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.clients))
}

// RequestOptionsFor returns the competitor's params minus the keys the pool
// consumes, ready to pass to Complete.
func RequestOptionsFor(c domain.Competitor) map[string]any {
	opts := make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		switch k {
		case ParamModel, ParamBaseURL, ParamAPIKeyEnv:
			continue
		}
		opts[k] = v
	}
	if c.HasTag(domain.TagNoTemperature) {
		delete(opts, OptTemperature)
		delete(opts, OptTopP)
	}
	return opts
}

func modelName(c domain.Competitor) string {
	if c.Model != "" {
		return c.Model
	}
	return stringParam(c, ParamModel, c.ID)
}

func apiKeyEnv(c domain.Competitor, engine EngineConfig) string {
	return stringParam(c, ParamAPIKeyEnv, engine.EnvVar)
}

func stringParam(c domain.Competitor, key, fallback string) string {
	if s, ok := c.Params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
