package services

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/rand/v2"

	"github.com/google/uuid"
)

const (
	quizQuestionCount = 5
	quizOptionCount   = 4
)

// ErrInvalidQuizID is returned when a submitted quiz id cannot be decoded.
var ErrInvalidQuizID = errors.New("invalid quiz id")

// QuizQuestion is a four-option multiple-choice question built from a card.
type QuizQuestion struct {
	Prompt      string   `json:"q"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
}

// IntSource yields integers in [0, n). *rand.Rand satisfies it.
type IntSource interface {
	IntN(n int) int
}

// QuizAssembler turns flashcards into quiz questions.
type QuizAssembler struct {
	rng IntSource
}

func NewQuizAssembler(rng IntSource) *QuizAssembler {
	return &QuizAssembler{rng: rng}
}

// NewSeededQuiz returns an assembler whose shuffles are fully determined by
// seed, so the same quiz can be rebuilt when answers are submitted.
func NewSeededQuiz(seed uint64) *QuizAssembler {
	return NewQuizAssembler(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewQuizSeed draws a fresh seed from a random UUID.
func NewQuizSeed() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8]) ^ binary.BigEndian.Uint64(id[8:])
}

// EncodeQuizID renders a seed as the opaque id handed to clients.
func EncodeQuizID(seed uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	return hex.EncodeToString(buf[:])
}

func DecodeQuizID(id string) (uint64, error) {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != 8 {
		return 0, ErrInvalidQuizID
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Build uses at most the first five cards as questions. Distractors are
// the backs of other cards that differ from the answer, in card order and
// duplicates included. Remaining slots repeat the card's own front.
func (a *QuizAssembler) Build(cards []CardDraft) []QuizQuestion {
	count := min(len(cards), quizQuestionCount)
	questions := make([]QuizQuestion, 0, count)

	for _, card := range cards[:count] {
		options := make([]string, 0, quizOptionCount)
		options = append(options, card.Back)
		for _, other := range cards {
			if len(options) == quizOptionCount {
				break
			}
			if other.Back != card.Back {
				options = append(options, other.Back)
			}
		}
		for len(options) < quizOptionCount {
			options = append(options, card.Front)
		}

		answer := a.shuffle(options)
		questions = append(questions, QuizQuestion{
			Prompt:      card.Front,
			Options:     options,
			AnswerIndex: answer,
		})
	}
	return questions
}

// shuffle permutes options in place with Fisher-Yates and returns the new
// position of the element that started at index 0.
func (a *QuizAssembler) shuffle(options []string) int {
	answer := 0
	for i := len(options) - 1; i > 0; i-- {
		j := a.rng.IntN(i + 1)
		options[i], options[j] = options[j], options[i]
		switch answer {
		case i:
			answer = j
		case j:
			answer = i
		}
	}
	return answer
}

// Score counts answers matching the recorded answer index. Missing and
// out-of-range answers never match.
func (a *QuizAssembler) Score(questions []QuizQuestion, answers []int) int {
	score := 0
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == q.AnswerIndex {
			score++
		}
	}
	return score
}
