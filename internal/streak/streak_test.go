package streak

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doEaseAPI/internal/types/profile"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDiffDays(t *testing.T) {
	today := date(2026, time.March, 10)

	tests := []struct {
		name string
		last time.Time
		want int
	}{
		{"same day", today, 0},
		{"yesterday", date(2026, time.March, 9), 1},
		{"two days", date(2026, time.March, 8), 2},
		{"across month", date(2026, time.February, 27), 11},
		{"future", date(2026, time.March, 11), -1},
		{"time of day ignored", time.Date(2026, time.March, 9, 23, 59, 0, 0, time.UTC), 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DiffDays(tc.last, today))
		})
	}
}

func TestDiffDays_AcrossDST(t *testing.T) {
	// Europe/Sofia springs forward on 2026-03-29, so that day is 23 hours long.
	sofia, err := time.LoadLocation("Europe/Sofia")
	require.NoError(t, err)
	before := time.Date(2026, time.March, 29, 0, 0, 0, 0, sofia)
	after := time.Date(2026, time.March, 30, 0, 0, 0, 0, sofia)
	require.Equal(t, 23*time.Hour, after.Sub(before))

	assert.Equal(t, 1, DiffDays(before, after))
	assert.Equal(t, 2, DiffDays(before.AddDate(0, 0, -1), after))
}

func TestShouldReset(t *testing.T) {
	today := date(2026, time.March, 10)
	id := uuid.New()

	tests := []struct {
		name  string
		state profile.UserStreakState
		want  bool
	}{
		{"no last date", profile.UserStreakState{UserID: id, CurrentStreak: 3}, false},
		{"zero streak", profile.UserStreakState{UserID: id, CurrentStreak: 0, LastStreakUpdated: datePtr(date(2026, time.March, 1))}, false},
		{"updated today", profile.UserStreakState{UserID: id, CurrentStreak: 2, LastStreakUpdated: datePtr(today)}, false},
		{"updated yesterday", profile.UserStreakState{UserID: id, CurrentStreak: 2, LastStreakUpdated: datePtr(date(2026, time.March, 9))}, false},
		{"missed a day", profile.UserStreakState{UserID: id, CurrentStreak: 2, LastStreakUpdated: datePtr(date(2026, time.March, 8))}, true},
		{"three days ago", profile.UserStreakState{UserID: id, CurrentStreak: 5, LastStreakUpdated: datePtr(date(2026, time.March, 7))}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldReset(tc.state, today))
		})
	}
}

func TestAdvance_FromYesterday(t *testing.T) {
	today := date(2026, time.March, 10)
	s := profile.UserStreakState{CurrentStreak: 3, LastStreakUpdated: datePtr(date(2026, time.March, 9))}

	next, changed := Advance(s, today)

	require.True(t, changed)
	assert.Equal(t, 4, next.CurrentStreak)
	require.NotNil(t, next.LastStreakUpdated)
	assert.Equal(t, today, *next.LastStreakUpdated)
}

func TestAdvance_SameDayIsIdempotent(t *testing.T) {
	today := date(2026, time.March, 10)
	s := profile.UserStreakState{CurrentStreak: 3, LastStreakUpdated: datePtr(date(2026, time.March, 9))}

	first, changed := Advance(s, today)
	require.True(t, changed)

	second, changed := Advance(first, today)
	assert.False(t, changed)
	assert.Equal(t, 4, second.CurrentStreak)
}

func TestAdvance_RestartsAfterGap(t *testing.T) {
	today := date(2026, time.March, 10)
	s := profile.UserStreakState{CurrentStreak: 9, LastStreakUpdated: datePtr(date(2026, time.March, 7))}

	next, changed := Advance(s, today)

	require.True(t, changed)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, today, *next.LastStreakUpdated)
}

func TestAdvance_NeverSet(t *testing.T) {
	today := date(2026, time.March, 10)

	next, changed := Advance(profile.UserStreakState{}, today)

	require.True(t, changed)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, today, *next.LastStreakUpdated)
}

func TestAdvance_FutureDateIsNoop(t *testing.T) {
	today := date(2026, time.March, 10)
	s := profile.UserStreakState{CurrentStreak: 2, LastStreakUpdated: datePtr(date(2026, time.March, 11))}

	next, changed := Advance(s, today)
	assert.False(t, changed)
	assert.Equal(t, s, next)
}

func TestAdvance_DoesNotAliasInput(t *testing.T) {
	last := date(2026, time.March, 9)
	s := profile.UserStreakState{CurrentStreak: 1, LastStreakUpdated: &last}

	_, _ = Advance(s, date(2026, time.March, 10))
	assert.Equal(t, date(2026, time.March, 9), last)
}

func TestEvaluator_TodayUsesReferenceLocation(t *testing.T) {
	// 23:30 UTC on March 9 is already March 10 in Sofia (UTC+2).
	now := time.Date(2026, time.March, 9, 23, 30, 0, 0, time.UTC)

	sofia, err := time.LoadLocation("Europe/Sofia")
	require.NoError(t, err)

	assert.Equal(t, date(2026, time.March, 9), NewEvaluator(time.UTC, fixedClock(now)).Today())
	assert.Equal(t, date(2026, time.March, 10), NewEvaluator(sofia, fixedClock(now)).Today())
}

func TestEvaluator_SamePathsAgree(t *testing.T) {
	// The reset rule and the increment rule must classify the same gap the same
	// way when driven by one Evaluator.
	now := time.Date(2026, time.March, 10, 0, 15, 0, 0, time.UTC)
	e := NewEvaluator(time.UTC, fixedClock(now))

	s := profile.UserStreakState{CurrentStreak: 4, LastStreakUpdated: datePtr(date(2026, time.March, 9))}
	assert.False(t, e.ShouldReset(s))

	next, changed := e.Advance(s)
	require.True(t, changed)
	assert.Equal(t, 5, next.CurrentStreak)

	broken := profile.UserStreakState{CurrentStreak: 4, LastStreakUpdated: datePtr(date(2026, time.March, 8))}
	assert.True(t, e.ShouldReset(broken))

	restarted, _ := e.Advance(broken)
	assert.Equal(t, 1, restarted.CurrentStreak)
}

func TestNewEvaluator_Defaults(t *testing.T) {
	e := NewEvaluator(nil, nil)
	assert.Equal(t, time.UTC, e.Location())
	assert.WithinDuration(t, e.DateOf(time.Now()), e.Today(), 24*time.Hour)
}
