package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxFlashcardsPerNote = 30
	placeholderFront     = "Q"
	placeholderBack      = "A"
)

// Field aliases in resolution order.
var (
	frontAliases = []string{"front", "question", "q"}
	backAliases  = []string{"back", "answer", "a"}
)

// AnalysisResult is the normalised output of a successful provider call.
type AnalysisResult struct {
	Summary    string      `json:"summary"`
	ShortNote  string      `json:"shortNote"`
	Flashcards []CardDraft `json:"flashcards"`
}

// normalizeAnalysis parses repaired provider output and coerces it into an
// AnalysisResult. When no usable cards survive, heuristic cards derived
// from sourceText take their place.
func normalizeAnalysis(payload, sourceText string) (*AnalysisResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedPayload)
	}

	result := &AnalysisResult{
		Summary:    coerceString(fields["summary"]),
		ShortNote:  coerceString(fields["shortNote"]),
		Flashcards: coerceFlashcards(fields["flashcards"]),
	}
	if len(result.Flashcards) == 0 {
		result.Flashcards = GenerateFallbackCards(sourceText)
	}
	return result, nil
}

func coerceFlashcards(raw json.RawMessage) []CardDraft {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	cards := make([]CardDraft, 0, min(len(entries), maxFlashcardsPerNote))
	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		front := resolveAlias(fields, frontAliases)
		back := resolveAlias(fields, backAliases)
		if front == "" && back == "" {
			continue
		}
		if front == "" {
			front = placeholderFront
		}
		if back == "" {
			back = placeholderBack
		}
		cards = append(cards, CardDraft{Front: front, Back: back})
		if len(cards) == maxFlashcardsPerNote {
			break
		}
	}
	return cards
}

// resolveAlias returns the first alias whose value is not blank, verbatim.
func resolveAlias(fields map[string]json.RawMessage, aliases []string) string {
	for _, alias := range aliases {
		if value := coerceString(fields[alias]); strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func coerceString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
