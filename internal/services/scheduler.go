package services

import (
	"database/sql"
	"math"
	"time"

	"flash-notes/internal/models"
)

const (
	minQuality = 0
	maxQuality = 5
	// passingQuality is the lowest grade that counts as a successful recall.
	passingQuality = 3
)

// Scheduler applies the SM-2 review rules to a flashcard's scheduling state.
type Scheduler struct {
	now func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{now: func() time.Time { return time.Now().UTC() }}
}

// Review returns the state after grading a card with quality 0..5.
// Out-of-range grades are clamped. The input is not modified.
func (s *Scheduler) Review(state models.SchedulingState, quality int) models.SchedulingState {
	quality = clampQuality(quality)

	ease := state.EaseFactor
	if ease <= 0 {
		ease = models.DefaultEaseFactor
	}

	next := state
	if quality < passingQuality {
		next.Repetitions = 0
		next.Interval = 1
	} else {
		next.Repetitions = state.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.Interval = 1
		case 2:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(state.Interval) * ease))
		}
	}

	next.EaseFactor = math.Max(models.MinEaseFactor, ease+0.1-float64(maxQuality-quality)*0.08)

	days := max(next.Interval, 1)
	// next_review is always UTC; due queries compare it as text.
	next.NextReview = sql.NullTime{Time: s.now().UTC().AddDate(0, 0, days), Valid: true}
	return next
}

func clampQuality(quality int) int {
	return min(max(quality, minQuality), maxQuality)
}
