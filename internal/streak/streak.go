// Package streak decides when a user's consecutive-day streak continues,
// increments or breaks.
//
// Dates handled here are calendar dates represented as UTC midnights. Only the
// year, month and day of a date value are read, so a DATE column scanned by
// pgx can be passed in unchanged. "Today" is derived from the clock in a single
// reference location shared by every caller.
package streak

import (
	"math"
	"time"

	"doEaseAPI/internal/types/profile"
)

const day = 24 * time.Hour

type Evaluator struct {
	loc *time.Location
	now func() time.Time
}

// NewEvaluator returns an Evaluator computing calendar days in loc. A nil
// loc means UTC and a nil now means time.Now.
func NewEvaluator(loc *time.Location, now func() time.Time) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{loc: loc, now: now}
}

func (e *Evaluator) Location() *time.Location { return e.loc }

// Today returns the current calendar date in the reference location.
func (e *Evaluator) Today() time.Time {
	return e.DateOf(e.now())
}

// DateOf returns the calendar date of the instant t as seen in the reference
// location.
func (e *Evaluator) DateOf(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DiffDays returns the number of whole calendar days from last to today,
// rounding any remainder up. It is negative when last is after today.
func DiffDays(last, today time.Time) int {
	diff := civil(today).Sub(civil(last))
	return int(math.Ceil(float64(diff) / float64(day)))
}

// ShouldReset reports whether the streak in s is broken as of today. A state
// without an active streak is never reset.
func ShouldReset(s profile.UserStreakState, today time.Time) bool {
	if s.LastStreakUpdated == nil || s.CurrentStreak == 0 {
		return false
	}
	return DiffDays(*s.LastStreakUpdated, today) > 1
}

// Advance applies a qualifying action performed today to s. The streak grows
// by one when the previous action was yesterday, starts over at 1 after a gap
// or when it was never set, and is left alone when today is already credited.
// changed is false when no write is needed.
func Advance(s profile.UserStreakState, today time.Time) (next profile.UserStreakState, changed bool) {
	next = s
	today = civil(today)

	if s.LastStreakUpdated != nil {
		switch diff := DiffDays(*s.LastStreakUpdated, today); {
		case diff <= 0:
			// Already credited today. A date ahead of today only happens
			// if the reference timezone was moved east; treat it the same.
			return s, false
		case diff == 1:
			next.CurrentStreak = s.CurrentStreak + 1
		default:
			next.CurrentStreak = 1
		}
	} else {
		next.CurrentStreak = 1
	}

	next.LastStreakUpdated = &today
	return next, true
}

// ShouldReset applies the package-level rule against the Evaluator's today.
func (e *Evaluator) ShouldReset(s profile.UserStreakState) bool {
	return ShouldReset(s, e.Today())
}

// Advance applies the package-level rule against the Evaluator's today.
func (e *Evaluator) Advance(s profile.UserStreakState) (profile.UserStreakState, bool) {
	return Advance(s, e.Today())
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
