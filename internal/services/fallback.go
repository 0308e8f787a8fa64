package services

import (
	"regexp"
	"strings"
)

const (
	maxFallbackCards  = 8
	fallbackFrontSize = 60
)

var sentenceBoundary = regexp.MustCompile(`[.\n]+`)

// CardDraft is a question/answer pair that has not been persisted yet.
type CardDraft struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// GenerateFallbackCards derives up to eight naive cards from the source
// sentences without calling any provider. Same input, same output.
func GenerateFallbackCards(text string) []CardDraft {
	cards := make([]CardDraft, 0, maxFallbackCards)
	for _, segment := range sentenceBoundary.Split(text, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		cards = append(cards, CardDraft{
			Front: fallbackFront(segment),
			Back:  segment,
		})
		if len(cards) == maxFallbackCards {
			break
		}
	}
	return cards
}

func fallbackFront(sentence string) string {
	runes := []rune(sentence)
	if len(runes) > fallbackFrontSize {
		return string(runes[:fallbackFrontSize]) + "..."
	}
	return "Explain: " + sentence
}
