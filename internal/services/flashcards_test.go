package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-notes/internal/models"
)

type flashcardFixture struct {
	conn  *sql.DB
	notes *NoteService
	cards *FlashcardService
	now   time.Time
}

func newFlashcardFixture(t *testing.T) *flashcardFixture {
	t.Helper()
	f := &flashcardFixture{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	f.conn = newTestDB(t)
	f.notes = NewNoteService(f.conn)
	scheduler := &Scheduler{now: func() time.Time { return f.now }}
	f.cards = NewFlashcardService(f.conn, scheduler)
	f.cards.now = func() time.Time { return f.now }
	return f
}

func (f *flashcardFixture) seed(t *testing.T, drafts ...CardDraft) (*models.Note, []models.Flashcard) {
	t.Helper()
	note, err := f.notes.CreateNote(context.Background(), models.Note{Title: "seed", SourceType: models.SourceText})
	require.NoError(t, err)
	cards, err := f.cards.CreateFlashcards(context.Background(), note.ID, note.UserID, drafts)
	require.NoError(t, err)
	return note, cards
}

func TestFlashcardService_SubmitReview(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	_, cards := f.seed(t, CardDraft{Front: "Capital of France?", Back: "Paris"})
	id := cards[0].ID

	reviewed, err := f.cards.SubmitReview(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.Interval)
	assert.Equal(t, 1, reviewed.Repetitions)
	assert.InDelta(t, 2.52, reviewed.EaseFactor, 1e-9)
	require.True(t, reviewed.NextReview.Valid)
	assert.Equal(t, f.now.AddDate(0, 0, 1), reviewed.NextReview.Time)

	assert.Greater(t, reviewed.Stability, 0.0)
	assert.NotEqual(t, int(fsrs.New), reviewed.MemoryState)
	assert.True(t, reviewed.LastReview.Valid)

	f.now = f.now.AddDate(0, 0, 1)
	_, err = f.cards.SubmitReview(ctx, id, 4)
	require.NoError(t, err)

	stored, err := f.cards.ListFlashcardsByNote(ctx, cards[0].NoteID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 6, stored[0].Interval)
	assert.Equal(t, 2, stored[0].Repetitions)
	assert.InDelta(t, 2.54, stored[0].EaseFactor, 1e-9)
	assert.WithinDuration(t, f.now.AddDate(0, 0, 6), stored[0].NextReview.Time, time.Second)

	var logs int
	require.NoError(t, f.conn.QueryRow("SELECT COUNT(*) FROM review_logs WHERE flashcard_id = ?", id).Scan(&logs))
	assert.Equal(t, 2, logs)
}

func TestFlashcardService_DueIgnoresSchedulerZone(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	f.now = time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)
	eastern := time.FixedZone("EDT", -4*60*60)
	f.cards.scheduler = &Scheduler{now: func() time.Time { return f.now.In(eastern) }}
	_, cards := f.seed(t, CardDraft{Front: "Capital of Peru?", Back: "Lima"})

	reviewed, err := f.cards.SubmitReview(ctx, cards[0].ID, 5)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, reviewed.NextReview.Time.Location())
	assert.True(t, reviewed.NextReview.Time.Equal(time.Date(2024, 6, 2, 22, 0, 0, 0, time.UTC)))

	f.now = time.Date(2024, 6, 2, 19, 0, 0, 0, time.UTC)
	due, err := f.cards.DueFlashcards(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, due, "card is not due for another 3h")
	stats, err := f.cards.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Due)

	f.now = time.Date(2024, 6, 2, 22, 0, 0, 0, time.UTC)
	due, err = f.cards.DueFlashcards(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestFlashcardService_SubmitReviewFailingGrade(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	_, cards := f.seed(t, CardDraft{Front: "Q", Back: "A"})

	for _, q := range []int{5, 5, 5} {
		_, err := f.cards.SubmitReview(ctx, cards[0].ID, q)
		require.NoError(t, err)
	}
	reviewed, err := f.cards.SubmitReview(ctx, cards[0].ID, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, reviewed.Repetitions)
	assert.Equal(t, 1, reviewed.Interval)
	assert.GreaterOrEqual(t, reviewed.EaseFactor, models.MinEaseFactor)
	assert.Equal(t, 1, reviewed.Lapses)
}

func TestFlashcardService_SubmitReviewClampsQuality(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	_, cards := f.seed(t, CardDraft{Front: "Q", Back: "A"})

	_, err := f.cards.SubmitReview(ctx, cards[0].ID, 9)
	require.NoError(t, err)

	var quality, rating int
	require.NoError(t, f.conn.QueryRow("SELECT quality, rating FROM review_logs").Scan(&quality, &rating))
	assert.Equal(t, 5, quality)
	assert.Equal(t, int(fsrs.Easy), rating)
}

func TestFlashcardService_SubmitReviewUnknownCard(t *testing.T) {
	f := newFlashcardFixture(t)

	_, err := f.cards.SubmitReview(context.Background(), "nope", 3)

	assert.ErrorIs(t, err, ErrFlashcardNotFound)
}

func TestFlashcardService_DueAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	_, cards := f.seed(t,
		CardDraft{Front: "Q1", Back: "A1"},
		CardDraft{Front: "Q2", Back: "A2"},
		CardDraft{Front: "Q3", Back: "A3"},
	)

	_, err := f.cards.SubmitReview(ctx, cards[0].ID, 4)
	require.NoError(t, err)

	due, err := f.cards.DueFlashcards(ctx, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "Q2", due[0].Front)
	assert.Equal(t, "Q3", due[1].Front)

	stats, err := f.cards.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Due)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 1, stats.Reviewed)
	assert.InDelta(t, (2.5+2.5+2.52)/3, stats.AverageEase, 1e-9)
	assert.Greater(t, stats.AverageStability, 0.0)

	f.now = f.now.AddDate(0, 0, 2)
	due, err = f.cards.DueFlashcards(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, "Q1", due[2].Front, "scheduled cards come after unscheduled ones")
}

func TestFlashcardService_EmptyStats(t *testing.T) {
	f := newFlashcardFixture(t)

	stats, err := f.cards.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.FlashcardStats{}, *stats)
}

func TestFlashcardService_DeletingNoteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFlashcardFixture(t)
	note, _ := f.seed(t, CardDraft{Front: "Q", Back: "A"})

	_, err := f.conn.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", note.ID)
	require.NoError(t, err)

	remaining, err := f.cards.ListFlashcardsByNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
