package services

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider analyses text through an OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model, apiEndpoint string) *OpenAIProvider {
	if apiKey == "" {
		return &OpenAIProvider{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) disabled() bool {
	return p.client == nil || p.model == ""
}

func (p *OpenAIProvider) Analyze(ctx context.Context, text string) (string, error) {
	if p.disabled() {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureUnauthenticated, Err: ErrProviderUnavailable}
	}

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analysisSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildAnalysisPrompt(text),
			},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureEmptyResponse, Err: errors.New("openai returned no choices")}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureEmptyResponse, Err: errors.New("openai returned empty content")}
	}
	return content, nil
}

func classifyOpenAIError(provider string, err error) error {
	kind := FailureUnknown
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.As(err, &apiErr):
		kind = kindForStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		kind = kindForStatus(reqErr.HTTPStatusCode)
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}
