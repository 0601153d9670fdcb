package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errSimulated is what MockCoreLLM fails with when no Error is configured.
var errSimulated = errors.New("simulated failure")

// MockCoreLLM is a scriptable CoreLLM for middleware and provider tests.
// The lock is released while ResponseDelay elapses so concurrent callers
// overlap the way real requests do.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail.
	FailUntilAttempt int

	// Respond, when set, computes the reply from the prompt.
	Respond func(prompt string) (string, error)

	CallCount      int
	LastPrompt     string
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreLLM returns a mock that always succeeds.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay, failUntil, configured := m.ResponseDelay, m.FailUntilAttempt, m.Error
	response, in, out, respond := m.Response, m.TokensIn, m.TokensOut, m.Respond
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, ctx.Err()
		}
	}

	if failUntil > 0 && call <= failUntil {
		if configured != nil {
			return "", 0, 0, configured
		}
		return "", 0, 0, errSimulated
	}
	if configured != nil && failUntil == 0 {
		return "", 0, 0, configured
	}

	if respond != nil {
		reply, err := respond(prompt)
		if err != nil {
			return "", 0, 0, err
		}
		return reply, in, out, nil
	}
	return response, in, out, nil
}

func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// GetCallCount returns how many times DoRequest ran.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetTimeBetweenCalls returns the gap between two recorded calls, or nil
// when either index is out of range.
func (m *MockCoreLLM) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}
	d := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &d
}
