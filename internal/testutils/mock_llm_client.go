// Package testutils provides in-memory doubles for the tournament ports.
package testutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-tourney/internal/ports"
	"github.com/ahrav/go-tourney/internal/tournament"
)

// Call records one Complete invocation.
type Call struct {
	Prompt  string
	Options map[string]any
}

// MockResponse is a canned reply selected by substring match on the prompt.
type MockResponse struct {
	// Pattern is matched case-insensitively. The empty pattern matches
	// every prompt and acts as the default.
	Pattern  string
	Response string
	Err      error
}

// MockLLMClient implements ports.LLMClient with deterministic responses.
// Patterns are tried in the order they were added and the first match
// wins. It is safe for concurrent use.
type MockLLMClient struct {
	model string

	mu        sync.Mutex
	responses []MockResponse
	calls     []Call
}

var _ ports.LLMClient = (*MockLLMClient)(nil)

// NewMockLLMClient returns a client that answers every prompt with a
// generic analysis until responses are added.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{model: model}
}

// AddResponse appends a response pattern.
func (m *MockLLMClient) AddResponse(r MockResponse) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// Complete returns the first matching canned response.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", errors.New("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Prompt: prompt, Options: options})

	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern == "" || strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, r.Err
		}
	}
	return fmt.Sprintf("Analysis by %s: no signs of abuse detected.", m.model), nil
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel returns the configured model name.
func (m *MockLLMClient) GetModel() string { return m.model }

// Calls returns a copy of the recorded invocations.
func (m *MockLLMClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete invocations.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ScriptedJudge is a judge that prefers analyses by a fixed strength
// table. Each analysis is identified by the first key of Strength that it
// contains; the stronger side wins and equal strengths tie.
type ScriptedJudge struct {
	*MockLLMClient

	Markers  tournament.Markers
	Strength map[string]int

	// Reply overrides the verdict line for a prompt when it returns a
	// non-empty string.
	Reply func(prompt string) string
}

// NewScriptedJudge returns a judge answering with m.
func NewScriptedJudge(model string, m tournament.Markers, strength map[string]int) *ScriptedJudge {
	return &ScriptedJudge{MockLLMClient: NewMockLLMClient(model), Markers: m, Strength: strength}
}

// Complete reads the two analyses out of a comparison prompt and answers
// with the marker of the stronger one.
func (j *ScriptedJudge) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if _, err := j.MockLLMClient.Complete(ctx, prompt, options); err != nil {
		return "", err
	}
	if j.Reply != nil {
		if r := j.Reply(prompt); r != "" {
			return r, nil
		}
	}

	leftAt := strings.Index(prompt, " "+j.Markers.Left+":")
	rightAt := strings.Index(prompt, " "+j.Markers.Right+":")
	if leftAt < 0 || rightAt < leftAt {
		return "I cannot tell which analysis is which.", nil
	}
	left := j.strength(prompt[leftAt:rightAt])
	right := j.strength(prompt[rightAt:])

	switch {
	case left > right:
		return j.Markers.Left + "\nThe first analysis is more precise.", nil
	case right > left:
		return j.Markers.Right + "\nThe second analysis is more precise.", nil
	default:
		return j.Markers.Tie + "\nBoth analyses are equivalent.", nil
	}
}

func (j *ScriptedJudge) strength(section string) int {
	best, at := 0, -1
	for key, s := range j.Strength {
		if i := strings.Index(section, key); i >= 0 && (at < 0 || i < at) {
			best, at = s, i
		}
	}
	return best
}

// Clients maps competitor full names to clients.
type Clients map[string]ports.LLMClient

// Client returns the client registered for fullName.
func (c Clients) Client(fullName string) (ports.LLMClient, error) {
	client, ok := c[fullName]
	if !ok {
		return nil, fmt.Errorf("no client for %s", fullName)
	}
	return client, nil
}
