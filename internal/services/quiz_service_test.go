package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuizFixture(t *testing.T) (*QuizService, string) {
	t.Helper()
	f := newFlashcardFixture(t)
	note, _ := f.seed(t,
		CardDraft{Front: "2+2", Back: "4"},
		CardDraft{Front: "3+3", Back: "6"},
		CardDraft{Front: "4+4", Back: "8"},
		CardDraft{Front: "5+5", Back: "10"},
		CardDraft{Front: "6+6", Back: "12"},
		CardDraft{Front: "7+7", Back: "14"},
	)
	return NewQuizService(f.notes, f.cards), note.ID
}

func TestQuizService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	quizzes, noteID := newQuizFixture(t)

	quiz, err := quizzes.GetQuiz(ctx, noteID)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 5)
	require.NotEmpty(t, quiz.ID)

	answers := make([]int, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		answers = append(answers, q.AnswerIndex)
	}

	result, err := quizzes.SubmitQuiz(ctx, noteID, quiz.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, QuizResult{Score: 5, Total: 5}, *result)

	wrong := make([]int, len(answers))
	for i, a := range answers {
		wrong[i] = (a + 1) % quizOptionCount
	}
	result, err = quizzes.SubmitQuiz(ctx, noteID, quiz.ID, wrong)
	require.NoError(t, err)
	assert.Zero(t, result.Score)
}

func TestQuizService_SubmitWithoutIDReshuffles(t *testing.T) {
	ctx := context.Background()
	quizzes, noteID := newQuizFixture(t)
	quizzes.newSeed = func() uint64 { return 7 }

	quiz, err := quizzes.GetQuiz(ctx, noteID)
	require.NoError(t, err)

	answers := make([]int, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		answers = append(answers, q.AnswerIndex)
	}

	// A fixed seed makes the reshuffle reproduce the served order.
	result, err := quizzes.SubmitQuiz(ctx, noteID, "", answers)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Score)
	assert.Equal(t, 5, result.Total)
}

func TestQuizService_Errors(t *testing.T) {
	ctx := context.Background()
	quizzes, noteID := newQuizFixture(t)

	_, err := quizzes.GetQuiz(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoteNotFound)

	_, err = quizzes.SubmitQuiz(ctx, noteID, "not-hex", []int{0})
	assert.ErrorIs(t, err, ErrInvalidQuizID)

	_, err = quizzes.SubmitQuiz(ctx, "missing", "", nil)
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestQuizService_NoteWithoutCards(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	note, _ := f.seed(t)
	quizzes := NewQuizService(f.notes, f.cards)

	quiz, err := quizzes.GetQuiz(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, quiz.Questions)

	result, err := quizzes.SubmitQuiz(ctx, note.ID, quiz.ID, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, QuizResult{}, *result)
}
