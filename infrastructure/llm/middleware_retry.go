package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries transient failures with exponential backoff and
// jitter. Errors IsRetryable rejects are returned immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.delayFor(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// delayFor waits at least as long as the provider asked, within maxDelay.
func (r *retryLLM) delayFor(attempt int, err error) time.Duration {
	delay := r.calculateDelay(attempt)
	if wait, ok := RetryAfter(err); ok && wait > delay {
		delay = wait
		if r.maxDelay > 0 && delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	return delay
}

// calculateDelay doubles baseDelay per attempt with ±25% jitter, capped at
// maxDelay.
func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if r.maxDelay > 0 && delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func (r *retryLLM) GetModel() string { return r.next.GetModel() }
