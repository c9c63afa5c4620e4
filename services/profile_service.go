package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"doEaseAPI/internal/streak"
	"doEaseAPI/internal/types/profile"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileService struct {
	db        *pgxpool.Pool
	evaluator *streak.Evaluator
}

func NewProfileService(db *pgxpool.Pool, evaluator *streak.Evaluator) *ProfileService {
	return &ProfileService{db: db, evaluator: evaluator}
}

const profileColumns = `id, clerk_id, username, email, current_streak, last_streak_updated, email_notifications_enabled, timezone`

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	p := &profile.Profile{}
	var username, email *string
	err := row.Scan(
		&p.UserID,
		&p.ClerkID,
		&username,
		&email,
		&p.CurrentStreak,
		&p.LastStreakUpdated,
		&p.EmailNotificationsEnabled,
		&p.Timezone,
	)
	if err != nil {
		return nil, err
	}
	if username != nil {
		p.Username = *username
	}
	if email != nil {
		p.Email = *email
	}
	return p, nil
}

// GetProfileByClerkID loads the caller's profile. A streak that is already
// broken is reset on the way out so the caller never sees a stale count.
func (s *ProfileService) GetProfileByClerkID(ctx context.Context, clerkID string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE clerk_id = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if s.evaluator.ShouldReset(p.UserStreakState) {
		reset, err := s.ResetStreak(ctx, p.UserID, *p.LastStreakUpdated)
		if err != nil {
			log.Printf("GetProfile: failed to reset broken streak for %s: %v", p.UserID, err)
		} else if reset {
			p.CurrentStreak = 0
		}
	}

	return p, nil
}

// ListActiveStreaks returns every profile with current_streak > 0.
func (s *ProfileService) ListActiveStreaks(ctx context.Context) ([]profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE current_streak > 0`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active streaks: %w", err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active streaks: %w", err)
	}

	return profiles, nil
}

// ResetStreak zeroes a user's streak, but only while last_streak_updated is
// still the date the reset was decided on. It reports whether a row changed:
// a completion that advanced the streak in the meantime wins, and resetting a
// zero streak is a no-op.
func (s *ProfileService) ResetStreak(ctx context.Context, userID uuid.UUID, lastUpdated time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
	UPDATE profiles SET current_streak = 0
	WHERE id = $1 AND current_streak > 0 AND last_streak_updated = $2
	`, userID, lastUpdated)
	if err != nil {
		return false, fmt.Errorf("failed to reset streak: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SyncFromIdentity creates or refreshes the profile for a Clerk user. Streak
// state and preferences are left untouched on update.
func (s *ProfileService) SyncFromIdentity(ctx context.Context, clerkID, username, email string) (*profile.Profile, error) {
	query := `
	INSERT INTO profiles (clerk_id, username, email)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
	ON CONFLICT (clerk_id) DO UPDATE
	SET username = COALESCE(EXCLUDED.username, profiles.username),
	    email = COALESCE(EXCLUDED.email, profiles.email)
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID, username, email))
	if err != nil {
		return nil, fmt.Errorf("failed to sync profile: %w", err)
	}
	return p, nil
}

// DeleteByClerkID removes a profile and, through the foreign key, its tasks.
func (s *ProfileService) DeleteByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *ProfileService) UpdateNotifications(ctx context.Context, clerkID string, enabled bool) (*profile.Profile, error) {
	query := `
	UPDATE profiles
	SET email_notifications_enabled = $2
	WHERE clerk_id = $1
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID, enabled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update notification preference: %w", err)
	}
	return p, nil
}

// advanceStreakTx credits a qualifying action for userID inside tx. The
// profile row is locked so two completions on the same day cannot both
// increment.
func (s *ProfileService) advanceStreakTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (profile.UserStreakState, error) {
	state := profile.UserStreakState{UserID: userID}

	err := tx.QueryRow(ctx,
		`SELECT current_streak, last_streak_updated FROM profiles WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&state.CurrentStreak, &state.LastStreakUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, ErrProfileNotFound
		}
		return state, fmt.Errorf("failed to fetch profile for streak update: %w", err)
	}

	next, changed := s.evaluator.Advance(state)
	if !changed {
		return state, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE profiles SET current_streak = $2, last_streak_updated = $3 WHERE id = $1`,
		userID, next.CurrentStreak, next.LastStreakUpdated,
	)
	if err != nil {
		return state, fmt.Errorf("failed to update streak: %w", err)
	}

	return next, nil
}
