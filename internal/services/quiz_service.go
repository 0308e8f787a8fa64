package services

import (
	"context"
	"fmt"
)

// Quiz is a set of questions plus the id needed to grade them later.
type Quiz struct {
	ID        string         `json:"quizId"`
	Questions []QuizQuestion `json:"questions"`
}

type QuizResult struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// QuizService builds and grades quizzes from a note's flashcards.
type QuizService struct {
	notes   *NoteService
	cards   *FlashcardService
	newSeed func() uint64
}

func NewQuizService(notes *NoteService, cards *FlashcardService) *QuizService {
	return &QuizService{notes: notes, cards: cards, newSeed: NewQuizSeed}
}

func (s *QuizService) GetQuiz(ctx context.Context, noteID string) (*Quiz, error) {
	cards, err := s.noteCards(ctx, noteID)
	if err != nil {
		return nil, err
	}
	seed := s.newSeed()
	return &Quiz{
		ID:        EncodeQuizID(seed),
		Questions: NewSeededQuiz(seed).Build(cards),
	}, nil
}

// SubmitQuiz grades answers against the quiz identified by quizID. With an
// empty quizID the questions are reshuffled before grading, so answers
// only match by chance.
func (s *QuizService) SubmitQuiz(ctx context.Context, noteID, quizID string, answers []int) (*QuizResult, error) {
	seed := s.newSeed()
	if quizID != "" {
		var err error
		if seed, err = DecodeQuizID(quizID); err != nil {
			return nil, fmt.Errorf("quiz %q: %w", quizID, err)
		}
	}

	cards, err := s.noteCards(ctx, noteID)
	if err != nil {
		return nil, err
	}
	assembler := NewSeededQuiz(seed)
	questions := assembler.Build(cards)
	return &QuizResult{
		Score: assembler.Score(questions, answers),
		Total: len(questions),
	}, nil
}

func (s *QuizService) noteCards(ctx context.Context, noteID string) ([]CardDraft, error) {
	if _, err := s.notes.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListFlashcardsByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return cardDrafts(cards), nil
}
