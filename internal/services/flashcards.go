package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"flash-notes/internal/models"
)

const defaultDueLimit = 20

var (
	// ErrFlashcardNotFound is returned when a flashcard id does not exist.
	ErrFlashcardNotFound = errors.New("flashcard not found")
)

const flashcardColumns = `id, note_id, user_id, front, back,
	ease_factor, interval, repetitions, next_review,
	stability, difficulty, lapses, memory_state, last_review, created_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// FlashcardService owns flashcard persistence and review scheduling. SM-2
// decides the next review date; FSRS memory state is tracked alongside.
type FlashcardService struct {
	db        *sql.DB
	scheduler *Scheduler
	params    fsrs.Parameters
	now       func() time.Time
}

func NewFlashcardService(db *sql.DB, scheduler *Scheduler) *FlashcardService {
	if scheduler == nil {
		scheduler = NewScheduler()
	}
	return &FlashcardService{
		db:        db,
		scheduler: scheduler,
		params:    fsrs.DefaultParam(),
		now:       time.Now,
	}
}

// CreateFlashcards stores drafts for a note in one transaction.
func (s *FlashcardService) CreateFlashcards(ctx context.Context, noteID string, userID sql.NullString, drafts []CardDraft) ([]models.Flashcard, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cards []models.Flashcard
	cards, err = insertFlashcards(ctx, tx, noteID, userID, drafts, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit flashcards: %w", err)
	}
	return cards, nil
}

// ListFlashcardsByNote returns a note's cards in insertion order.
func (s *FlashcardService) ListFlashcardsByNote(ctx context.Context, noteID string) ([]models.Flashcard, error) {
	return queryFlashcards(ctx, s.db, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE note_id = ?
		ORDER BY created_at ASC, rowid ASC;
	`, noteID)
}

// SubmitReview grades a card and persists the new schedule together with a
// review log entry. The read-modify-write runs in a single transaction.
func (s *FlashcardService) SubmitReview(ctx context.Context, flashcardID string, quality int) (*models.Flashcard, error) {
	quality = clampQuality(quality)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var card *models.Flashcard
	card, err = scanFlashcard(tx.QueryRowContext(ctx, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE id = ?;
	`, flashcardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("flashcard %s: %w", flashcardID, ErrFlashcardNotFound)
			return nil, err
		}
		return nil, fmt.Errorf("load flashcard %s: %w", flashcardID, err)
	}

	now := s.now().UTC()
	rating := models.RatingForQuality(quality)
	info, ok := s.params.Repeat(card.ToFSRSCard(), now)[rating]
	if !ok {
		err = fmt.Errorf("rating %d not supported", rating)
		return nil, err
	}
	card.ApplyFSRSCard(info.Card)
	card.SchedulingState = s.scheduler.Review(card.SchedulingState, quality)

	if _, err = tx.ExecContext(ctx, `
		UPDATE flashcards
		SET ease_factor = ?, interval = ?, repetitions = ?, next_review = ?,
		    stability = ?, difficulty = ?, lapses = ?, memory_state = ?, last_review = ?
		WHERE id = ?;
	`,
		card.EaseFactor,
		card.Interval,
		card.Repetitions,
		nullTimeArg(card.NextReview),
		card.Stability,
		card.Difficulty,
		card.Lapses,
		card.MemoryState,
		nullTimeArg(card.LastReview),
		card.ID,
	); err != nil {
		return nil, fmt.Errorf("update flashcard %s: %w", card.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (flashcard_id, quality, rating, interval, ease_factor, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, quality, int(rating), card.Interval, card.EaseFactor, now); err != nil {
		return nil, fmt.Errorf("insert review log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}
	return card, nil
}

// DueFlashcards returns cards that were never scheduled or whose review
// date has passed, unscheduled cards first.
func (s *FlashcardService) DueFlashcards(ctx context.Context, limit int) ([]models.Flashcard, error) {
	if limit <= 0 {
		limit = defaultDueLimit
	}
	return queryFlashcards(ctx, s.db, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE next_review IS NULL OR next_review <= ?
		ORDER BY next_review IS NOT NULL, next_review ASC, created_at ASC, rowid ASC
		LIMIT ?;
	`, s.now().UTC(), limit)
}

func (s *FlashcardService) Stats(ctx context.Context) (*models.FlashcardStats, error) {
	var stats models.FlashcardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN next_review IS NULL OR next_review <= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN next_review IS NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(ease_factor), 0),
		       COALESCE(AVG(CASE WHEN next_review IS NOT NULL THEN stability END), 0)
		FROM flashcards;
	`, s.now().UTC()).Scan(
		&stats.Total,
		&stats.Due,
		&stats.New,
		&stats.AverageEase,
		&stats.AverageStability,
	)
	if err != nil {
		return nil, fmt.Errorf("flashcard stats: %w", err)
	}
	stats.Reviewed = stats.Total - stats.New
	return &stats, nil
}

func insertFlashcards(ctx context.Context, ex execer, noteID string, userID sql.NullString, drafts []CardDraft, now time.Time) ([]models.Flashcard, error) {
	cards := make([]models.Flashcard, 0, len(drafts))
	for _, draft := range drafts {
		card := models.Flashcard{
			ID:              uuid.NewString(),
			NoteID:          noteID,
			UserID:          userID,
			Front:           draft.Front,
			Back:            draft.Back,
			SchedulingState: models.NewSchedulingState(),
			MemoryState:     int(fsrs.New),
			CreatedAt:       now,
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO flashcards (id, note_id, user_id, front, back, ease_factor, interval, repetitions,
			                        next_review, memory_state, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
		`,
			card.ID,
			card.NoteID,
			nullStringArg(card.UserID),
			card.Front,
			card.Back,
			card.EaseFactor,
			card.Interval,
			card.Repetitions,
			nullTimeArg(card.NextReview),
			card.MemoryState,
			card.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert flashcard %q: %w", card.Front, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func queryFlashcards(ctx context.Context, q queryer, query string, args ...any) ([]models.Flashcard, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flashcards: %w", err)
	}
	defer rows.Close()

	var cards []models.Flashcard
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flashcard: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flashcards: %w", err)
	}
	return cards, nil
}

func scanFlashcard(row rowScanner) (*models.Flashcard, error) {
	card := &models.Flashcard{}
	if err := row.Scan(
		&card.ID,
		&card.NoteID,
		&card.UserID,
		&card.Front,
		&card.Back,
		&card.EaseFactor,
		&card.Interval,
		&card.Repetitions,
		&card.NextReview,
		&card.Stability,
		&card.Difficulty,
		&card.Lapses,
		&card.MemoryState,
		&card.LastReview,
		&card.CreatedAt,
	); err != nil {
		return nil, err
	}
	return card, nil
}

// cardDrafts strips persisted cards back to their question/answer pairs.
func cardDrafts(cards []models.Flashcard) []CardDraft {
	out := make([]CardDraft, 0, len(cards))
	for _, c := range cards {
		out = append(out, CardDraft{Front: c.Front, Back: c.Back})
	}
	return out
}
