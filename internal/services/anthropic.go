package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider analyses text through the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model, baseURL string) *AnthropicProvider {
	if apiKey == "" {
		return &AnthropicProvider{model: model}
	}
	// Retries are owned by the orchestrator's fallback chain, not the SDK.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{client: &client, model: model}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Analyze(ctx context.Context, text string) (string, error) {
	if p.client == nil || p.model == "" {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureUnauthenticated, Err: ErrProviderUnavailable}
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: analysisSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildAnalysisPrompt(text))),
		},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return "", classifyAnthropicError(p.Name(), err)
	}

	var builder strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}
	content := builder.String()
	if strings.TrimSpace(content) == "" {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureEmptyResponse, Err: errors.New("anthropic returned no text content")}
	}
	return content, nil
}

func classifyAnthropicError(provider string, err error) error {
	kind := FailureUnknown
	var apiErr *anthropic.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.As(err, &apiErr):
		kind = kindForStatus(apiErr.StatusCode)
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}
