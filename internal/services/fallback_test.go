package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFallbackCards(t *testing.T) {
	text := "Mitochondria produce ATP. The nucleus stores DNA\n\nRibosomes build proteins."

	cards := GenerateFallbackCards(text)
	require.Len(t, cards, 3)
	assert.Equal(t, CardDraft{Front: "Explain: Mitochondria produce ATP", Back: "Mitochondria produce ATP"}, cards[0])
	assert.Equal(t, CardDraft{Front: "Explain: The nucleus stores DNA", Back: "The nucleus stores DNA"}, cards[1])
	assert.Equal(t, CardDraft{Front: "Explain: Ribosomes build proteins", Back: "Ribosomes build proteins"}, cards[2])
}

func TestGenerateFallbackCards_TruncatesLongSentences(t *testing.T) {
	long := strings.Repeat("a", 75)

	cards := GenerateFallbackCards(long)
	require.Len(t, cards, 1)
	assert.Equal(t, strings.Repeat("a", 60)+"...", cards[0].Front)
	assert.Equal(t, long, cards[0].Back)
}

func TestGenerateFallbackCards_CountsRunes(t *testing.T) {
	sentence := strings.Repeat("é", 60)

	cards := GenerateFallbackCards(sentence)
	require.Len(t, cards, 1)
	assert.Equal(t, "Explain: "+sentence, cards[0].Front)
}

func TestGenerateFallbackCards_CapsAtEight(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("Sentence number ")
		b.WriteByte(byte('a' + i))
		b.WriteString(". ")
	}

	cards := GenerateFallbackCards(b.String())
	require.Len(t, cards, 8)
	assert.Equal(t, "Sentence number h", cards[7].Back)
}

func TestGenerateFallbackCards_Empty(t *testing.T) {
	assert.Empty(t, GenerateFallbackCards(""))
	assert.Empty(t, GenerateFallbackCards(" . \n ..."))
}

func TestGenerateFallbackCards_Deterministic(t *testing.T) {
	text := "Photosynthesis converts light. Chlorophyll absorbs red and blue light.\nPlants release oxygen."

	first := GenerateFallbackCards(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, GenerateFallbackCards(text))
	}
}
