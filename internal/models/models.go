package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

type SourceType string

const (
	SourceText  SourceType = "text"
	SourceImage SourceType = "image"
	SourcePDF   SourceType = "pdf"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

type Note struct {
	ID         string
	UserID     sql.NullString
	Title      string
	SourceType SourceType
	RawText    string
	CreatedAt  time.Time
}

// NoteListing is a note with its flashcard count and a short card preview.
type NoteListing struct {
	Note            Note
	FlashcardsCount int
	Preview         []Flashcard
}

// SchedulingState is the SM-2 portion of a flashcard that reviews mutate.
type SchedulingState struct {
	EaseFactor  float64
	Interval    int
	Repetitions int
	NextReview  sql.NullTime
}

// NewSchedulingState returns the state a freshly created card starts with.
func NewSchedulingState() SchedulingState {
	return SchedulingState{EaseFactor: DefaultEaseFactor}
}

type Flashcard struct {
	ID     string
	NoteID string
	UserID sql.NullString
	Front  string
	Back   string
	SchedulingState

	// FSRS memory model, tracked alongside SM-2 for reporting only.
	Stability   float64
	Difficulty  float64
	Lapses      int
	MemoryState int
	LastReview  sql.NullTime

	CreatedAt time.Time
}

// FlashcardStats summarises the review state of the whole collection.
type FlashcardStats struct {
	Total            int     `json:"total"`
	Due              int     `json:"due"`
	New              int     `json:"new"`
	Reviewed         int     `json:"reviewed"`
	AverageEase      float64 `json:"averageEase"`
	AverageStability float64 `json:"averageStability"`
}

func (c *Flashcard) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:  c.Stability,
		Difficulty: c.Difficulty,
		Lapses:     uint64(max(c.Lapses, 0)),
		State:      fsrs.State(max(c.MemoryState, 0)),
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	if c.NextReview.Valid {
		card.Due = c.NextReview.Time
	}
	return card
}

// ApplyFSRSCard copies the FSRS memory fields back. The due date is left
// alone: SM-2 owns NextReview.
func (c *Flashcard) ApplyFSRSCard(f fsrs.Card) {
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.Lapses = int(f.Lapses)
	c.MemoryState = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

// RatingForQuality maps an SM-2 quality grade onto the four FSRS ratings.
func RatingForQuality(quality int) fsrs.Rating {
	switch {
	case quality < 3:
		return fsrs.Again
	case quality == 3:
		return fsrs.Hard
	case quality == 4:
		return fsrs.Good
	default:
		return fsrs.Easy
	}
}
