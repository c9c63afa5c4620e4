package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"doEaseAPI/internal/email"
	"doEaseAPI/internal/streak"
	"doEaseAPI/internal/types/notification"
	"doEaseAPI/internal/types/profile"
	"doEaseAPI/internal/types/task"
	"doEaseAPI/internal/workers"
)

// Mailer sends one email to one recipient and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// sweepTimeout bounds one shared run, independent of whichever caller
// started it.
const sweepTimeout = 2 * time.Minute

type StreakStore interface {
	ListActiveStreaks(ctx context.Context) ([]profile.Profile, error)
	// ResetStreak zeroes the streak only if last_streak_updated still equals
	// lastUpdated, and reports whether it did.
	ResetStreak(ctx context.Context, userID uuid.UUID, lastUpdated time.Time) (bool, error)
}

// ReminderSource lists due reminders and records the ones that were
// delivered. Listing has no side effects, so a task whose email failed is
// listed again on the next run while it is still inside the window.
type ReminderSource interface {
	TasksToNotify(ctx context.Context) ([]task.ToNotify, error)
	MarkReminderSent(ctx context.Context, taskID uuid.UUID) error
}

// SweepRecorder observes every completed run once, whatever the number of
// callers that shared it.
type SweepRecorder func(sweep string, res *notification.SweepResult, err error)

// SweepService runs the scheduled streak-reset and task-reminder sweeps.
// Both read their eligible set once, fan out per entity with bounded
// concurrency and report one outcome per attempted email. Per-entity failures
// never abort a sweep; only failing to read the eligible set does.
//
// Overlapping invocations of the same sweep share one run and its result.
type SweepService struct {
	inflight singleflight.Group

	streaks     StreakStore
	reminders   ReminderSource
	evaluator   *streak.Evaluator
	mailer      Mailer
	concurrency int
	record      SweepRecorder
}

// NewSweepService builds the sweep runner. mailer may be nil, in which case
// sweeps still reset streaks but send nothing.
func NewSweepService(streaks StreakStore, reminders ReminderSource, evaluator *streak.Evaluator, mailer Mailer, concurrency int) *SweepService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SweepService{
		streaks:     streaks,
		reminders:   reminders,
		evaluator:   evaluator,
		mailer:      mailer,
		concurrency: concurrency,
	}
}

// RecordWith registers fn to observe each completed run. It must be called
// before the first sweep.
func (s *SweepService) RecordWith(fn SweepRecorder) {
	s.record = fn
}

type resetOutcome struct {
	reset   bool
	outcome *notification.Outcome
}

// CheckStreaks resets every broken streak and emails the affected users who
// have notifications enabled.
func (s *SweepService) CheckStreaks(ctx context.Context) (*notification.SweepResult, error) {
	return s.shared(ctx, "check-streaks", s.checkStreaks)
}

// SendTaskReminders emails the owner of every task returned by the reminder
// query and marks a task as reminded only once its email was accepted. Each
// returned task gets at most one attempt per run.
func (s *SweepService) SendTaskReminders(ctx context.Context) (*notification.SweepResult, error) {
	return s.shared(ctx, "send-task-reminders", s.sendTaskReminders)
}

// shared runs sweep once for all overlapping callers. The run is detached from
// the leader's cancellation so a caller that joined it is not failed by a
// caller that gave up.
func (s *SweepService) shared(ctx context.Context, key string, sweep func(context.Context) (*notification.SweepResult, error)) (*notification.SweepResult, error) {
	leader := false
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		leader = true

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
		defer cancel()

		res, err := sweep(runCtx)
		if s.record != nil {
			s.record(key, res, err)
		}
		return res, err
	})
	if !leader {
		log.Printf("%s: joined a run already in progress", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*notification.SweepResult), nil
}

func (s *SweepService) checkStreaks(ctx context.Context) (*notification.SweepResult, error) {
	profiles, err := s.streaks.ListActiveStreaks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active streaks: %w", err)
	}

	today := s.evaluator.Today()

	outcomes := workers.Run(ctx, s.concurrency, profiles, func(ctx context.Context, p profile.Profile) (resetOutcome, bool) {
		if !streak.ShouldReset(p.UserStreakState, today) {
			return resetOutcome{}, false
		}

		reset, err := s.streaks.ResetStreak(ctx, p.UserID, *p.LastStreakUpdated)
		if err != nil {
			log.Printf("CheckStreaks: failed to reset streak for user %s: %v", p.UserID, err)
			return resetOutcome{outcome: &notification.Outcome{
				Success: false,
				Email:   p.Email,
				Error:   err.Error(),
			}}, true
		}
		if !reset {
			// Advanced or reset since it was listed.
			return resetOutcome{}, false
		}

		res := resetOutcome{reset: true}
		if s.mailer == nil || !p.EmailNotificationsEnabled || p.Email == "" {
			return res, true
		}

		subject, html, err := email.StreakResetEmail(p.Username, p.CurrentStreak)
		if err != nil {
			res.outcome = &notification.Outcome{Success: false, Email: p.Email, Error: err.Error()}
			return res, true
		}
		res.outcome = s.send(ctx, "CheckStreaks", p.Email, subject, html)
		return res, true
	})

	result := &notification.SweepResult{Results: make([]notification.Outcome, 0, len(outcomes))}
	for _, o := range outcomes {
		if o.reset {
			result.Resets++
		}
		if o.outcome != nil {
			result.Results = append(result.Results, *o.outcome)
		}
	}

	sent, failed := result.Counts()
	result.Message = fmt.Sprintf("Streak check completed. Resets: %d. Notifications sent: %d. Failed: %d.", result.Resets, sent, failed)
	log.Printf("CheckStreaks: %s", result.Message)

	return result, nil
}

func (s *SweepService) sendTaskReminders(ctx context.Context) (*notification.SweepResult, error) {
	if s.mailer == nil {
		// Nothing can be delivered, so leave every reminder pending.
		result := &notification.SweepResult{Results: []notification.Outcome{}}
		result.Message = "Task reminder check complete. Sent: 0. Failed: 0."
		log.Println("SendTaskReminders: no email client configured, reminders left pending")
		return result, nil
	}

	tasks, err := s.reminders.TasksToNotify(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks to notify: %w", err)
	}

	outcomes := workers.Run(ctx, s.concurrency, tasks, func(ctx context.Context, t task.ToNotify) (notification.Outcome, bool) {
		if t.Email == "" || t.Username == "" {
			return notification.Outcome{}, false
		}

		subject, html, err := email.TaskReminderEmail(t.Username, t.Name)
		if err != nil {
			return notification.Outcome{Success: false, Email: t.Email, Error: err.Error()}, true
		}

		out := s.send(ctx, "SendTaskReminders", t.Email, subject, html)
		if out.Success {
			if err := s.reminders.MarkReminderSent(ctx, t.TaskID); err != nil {
				log.Printf("SendTaskReminders: failed to mark task %s as reminded: %v", t.TaskID, err)
			}
		}
		return *out, true
	})

	result := &notification.SweepResult{Results: outcomes}
	sent, failed := result.Counts()
	result.Message = fmt.Sprintf("Task reminder check complete. Sent: %d. Failed: %d.", sent, failed)
	log.Printf("SendTaskReminders: %s", result.Message)

	return result, nil
}

func (s *SweepService) send(ctx context.Context, caller, to, subject, html string) *notification.Outcome {
	id, err := s.mailer.Send(ctx, to, subject, html)
	if err != nil {
		log.Printf("%s: failed to send email to %s: %v", caller, to, err)
		return &notification.Outcome{Success: false, Email: to, Error: err.Error()}
	}
	return &notification.Outcome{Success: true, Email: to, ID: id}
}
