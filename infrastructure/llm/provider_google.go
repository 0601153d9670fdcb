package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

type googleProvider struct {
	client     *genai.Client
	model      string
	classifier ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, err
	}

	return &googleProvider{
		client:     client,
		model:      config.Model,
		classifier: ErrorClassifier{Provider: "google"},
	}, nil
}

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, p.buildConfig(options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	var in, out int32
	if resp.UsageMetadata != nil {
		in, out = resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount
	}
	return content, tokenCount(in, prompt), tokenCount(out, content), nil
}

func (p *googleProvider) GetModel() string { return p.model }

func (p *googleProvider) buildConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(options.MaxTokens, math.MaxInt32)),
	}
	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(clamp(*options.Temperature, 0, 2)))
	}
	if options.TopP != nil {
		config.TopP = genai.Ptr(float32(*options.TopP))
	}
	if topK, ok := toInt(options.Extra["top_k"]); ok && topK > 0 {
		config.TopK = genai.Ptr(float32(topK))
	}
	return config
}

func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if blockedBySafety(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code, "request blocked by safety filters", err)
		}
		return p.classifier.ClassifyResponse(apiErr.Code, apiErr.Header, apiErr.Message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// Abuse-detection prompts quote hostile language, so safety blocks are a
// distinct, non-retryable failure.
func blockedBySafety(apiErr *googleapi.Error) bool {
	lower := strings.ToLower(apiErr.Message)
	if strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") {
		return true
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
