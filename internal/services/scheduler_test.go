package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-notes/internal/models"
)

var reviewTime = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newTestScheduler() *Scheduler {
	return &Scheduler{now: func() time.Time { return reviewTime }}
}

func TestScheduler_ReviewSequence(t *testing.T) {
	s := newTestScheduler()
	state := models.NewSchedulingState()

	state = s.Review(state, 4)
	assert.Equal(t, 1, state.Interval)
	assert.Equal(t, 1, state.Repetitions)
	assert.InDelta(t, 2.52, state.EaseFactor, 1e-9)
	assert.Equal(t, reviewTime.AddDate(0, 0, 1), state.NextReview.Time)

	state = s.Review(state, 4)
	assert.Equal(t, 6, state.Interval)
	assert.Equal(t, 2, state.Repetitions)
	assert.InDelta(t, 2.54, state.EaseFactor, 1e-9)
	assert.Equal(t, reviewTime.AddDate(0, 0, 6), state.NextReview.Time)

	state = s.Review(state, 5)
	assert.Equal(t, 15, state.Interval, "round(6 * 2.54)")
	assert.Equal(t, 3, state.Repetitions)
	assert.InDelta(t, 2.64, state.EaseFactor, 1e-9)

	state = s.Review(state, 1)
	assert.Equal(t, 1, state.Interval)
	assert.Equal(t, 0, state.Repetitions)
	assert.InDelta(t, 2.42, state.EaseFactor, 1e-9)
	assert.True(t, state.NextReview.Valid)
}

func TestScheduler_FailingGradeResets(t *testing.T) {
	s := newTestScheduler()
	priors := []models.SchedulingState{
		models.NewSchedulingState(),
		{EaseFactor: 1.3, Interval: 40, Repetitions: 7},
		{EaseFactor: 3.1, Interval: 6, Repetitions: 2},
	}

	for _, prior := range priors {
		for q := 0; q < 3; q++ {
			next := s.Review(prior, q)
			assert.Equal(t, 0, next.Repetitions)
			assert.Equal(t, 1, next.Interval)
		}
	}
}

func TestScheduler_FirstPassingReview(t *testing.T) {
	s := newTestScheduler()
	for q := 3; q <= 5; q++ {
		next := s.Review(models.SchedulingState{EaseFactor: 2.0, Interval: 12}, q)
		assert.Equal(t, 1, next.Interval)
		assert.Equal(t, 1, next.Repetitions)
	}
}

func TestScheduler_EaseFloor(t *testing.T) {
	s := newTestScheduler()
	for _, ease := range []float64{1.3, 1.31, 1.5, 2.5, 4.0} {
		for q := -2; q <= 7; q++ {
			next := s.Review(models.SchedulingState{EaseFactor: ease, Repetitions: 3, Interval: 10}, q)
			assert.GreaterOrEqual(t, next.EaseFactor, models.MinEaseFactor)
		}
	}
}

func TestScheduler_ClampsQuality(t *testing.T) {
	s := newTestScheduler()
	start := models.NewSchedulingState()

	assert.Equal(t, s.Review(start, 5), s.Review(start, 11))
	assert.Equal(t, s.Review(start, 0), s.Review(start, -4))
}

func TestScheduler_DefaultsMissingEase(t *testing.T) {
	s := newTestScheduler()

	next := s.Review(models.SchedulingState{}, 5)

	assert.InDelta(t, 2.6, next.EaseFactor, 1e-9)
}

func TestScheduler_NextReviewNeverToday(t *testing.T) {
	s := newTestScheduler()

	next := s.Review(models.SchedulingState{EaseFactor: 1.3, Repetitions: 2, Interval: 0}, 3)

	require.Equal(t, 0, next.Interval)
	assert.Equal(t, reviewTime.AddDate(0, 0, 1), next.NextReview.Time)
}

func TestScheduler_NextReviewInUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	s := &Scheduler{now: func() time.Time { return reviewTime.In(tokyo) }}

	state := s.Review(models.NewSchedulingState(), 4)

	assert.Equal(t, time.UTC, state.NextReview.Time.Location())
	assert.Equal(t, reviewTime.AddDate(0, 0, 1), state.NextReview.Time)
}
