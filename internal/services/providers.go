package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderUnavailable is returned when a provider has no credentials configured.
	ErrProviderUnavailable = errors.New("provider is not configured")
	// ErrMalformedPayload marks provider output that could not be parsed into an analysis.
	ErrMalformedPayload = errors.New("malformed provider payload")
	// ErrNoUsableContent means every provider in the chain failed.
	ErrNoUsableContent = errors.New("no usable content from providers")
	// ErrEmptySourceText rejects intake with nothing to analyse.
	ErrEmptySourceText = errors.New("empty source text")
)

// Provider turns study text into raw, ideally JSON, model output.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, text string) (string, error)
}

type FailureKind string

const (
	FailureUnauthenticated FailureKind = "unauthenticated"
	FailureRateLimited     FailureKind = "rate_limited"
	FailureTimeout         FailureKind = "timeout"
	FailureEmptyResponse   FailureKind = "empty_response"
	FailureUnknown         FailureKind = "unknown"
)

// ProviderError is a typed failure from a single provider call.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// failureKindOf reports the failure kind carried by err, if any.
func failureKindOf(err error) FailureKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureUnknown
}

// kindForStatus maps an HTTP status from a vendor API onto a failure kind.
func kindForStatus(status int) FailureKind {
	switch status {
	case 401, 403:
		return FailureUnauthenticated
	case 408, 504:
		return FailureTimeout
	case 429:
		return FailureRateLimited
	default:
		return FailureUnknown
	}
}

const analysisPrompt = `You are a study assistant. Return ONLY valid JSON (no extra explanation) with:
{
  "summary": "A concise 1-2 sentence summary",
  "shortNote": "A short study note (two short paragraphs)",
  "flashcards": [{ "front": "Question text", "back": "Answer text" }]
}
Analyze the text below and produce that JSON:

TEXT:
`

func buildAnalysisPrompt(text string) string {
	return analysisPrompt + strings.TrimSpace(text)
}

const analysisSystemPrompt = "You are an expert educator who turns study material into summaries and active-recall flashcards."
