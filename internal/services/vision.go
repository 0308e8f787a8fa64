package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const imageExtractionPrompt = "Extract readable text from the image. Return only the extracted text. If none, return empty string."

// ErrVisionUnavailable is returned when image extraction has no credentials.
var ErrVisionUnavailable = errors.New("image text extraction is not configured")

// TextExtractor pulls plain text out of an uploaded file.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// VisionService reads text from images with a multimodal chat model.
type VisionService struct {
	client *openai.Client
	model  string
}

func NewVisionService(apiKey, model, apiEndpoint string) *VisionService {
	if apiKey == "" {
		return &VisionService{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &VisionService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *VisionService) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if s.client == nil || s.model == "" {
		return "", ErrVisionUnavailable
	}
	if len(data) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: imageExtractionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: 0,
		MaxTokens:   4096,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request image text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
