package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider serves OpenAI models and any OpenAI-compatible endpoint
// reached through BaseURL.
type openAIProvider struct {
	client     *openai.Client
	model      string
	classifier ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	// Local OpenAI-compatible servers accept any key; the hosted API does not.
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, ErrEmptyAPIKey
	}

	cc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		client:     openai.NewClientWithConfig(cc),
		model:      config.Model,
		classifier: ErrorClassifier{Provider: "openai"},
	}, nil
}

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	return content,
		tokenCount(resp.Usage.PromptTokens, prompt),
		tokenCount(resp.Usage.CompletionTokens, content),
		nil
}

func (p *openAIProvider) GetModel() string { return p.model }

func (p *openAIProvider) buildRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: messages,
	}
	// Reasoning models reject max_tokens.
	if isReasoningModel(options.Model) {
		req.MaxCompletionTokens = options.MaxTokens
	} else {
		req.MaxTokens = options.MaxTokens
	}

	// The SDK drops zero-valued floats from the payload, so an explicit
	// zero temperature is sent as the smallest positive float32.
	if options.Temperature != nil {
		req.Temperature = nonZero(clamp(*options.Temperature, 0, 2))
	}
	if options.TopP != nil {
		req.TopP = nonZero(clamp(*options.TopP, 0, 1))
	}
	if seed, ok := toInt(options.Extra["seed"]); ok {
		req.Seed = &seed
	}
	return req
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func nonZero(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return p.classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.classifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}

// tokenCount prefers the provider's count and estimates otherwise.
func tokenCount[N int | int32 | int64](reported N, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return SimpleTokenEstimator{}.EstimateTokens(text)
}
