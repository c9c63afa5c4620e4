package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"doEaseAPI/internal/types/profile"
	"doEaseAPI/internal/types/task"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskService struct {
	db       *pgxpool.Pool
	profiles *ProfileService
}

func NewTaskService(db *pgxpool.Pool, profiles *ProfileService) *TaskService {
	return &TaskService{db: db, profiles: profiles}
}

type CompletionResult struct {
	Task   *task.Task              `json:"task"`
	Streak profile.UserStreakState `json:"streak"`
}

const taskColumns = `id, user_id, name, start_time, completed, priority, created_at`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.StartTime, &t.Completed, &t.Priority, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *TaskService) ownerID(ctx context.Context, q rowQuerier, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrProfileNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve owner: %w", err)
	}
	return id, nil
}

func (s *TaskService) ListTasks(ctx context.Context, clerkID string, filter task.Filter) ([]*task.Task, error) {
	ownerID, err := s.ownerID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	switch filter {
	case task.FilterCompleted:
		query += ` AND completed`
	case task.FilterPending:
		query += ` AND NOT completed`
	case task.FilterHighPriority:
		query += ` AND priority = 'high'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	return tasks, nil
}

func (s *TaskService) CreateTask(ctx context.Context, clerkID string, req *task.CreateTaskRequest) (*task.Task, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ownerID, err := s.ownerID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO tasks (id, user_id, name, start_time, completed, priority, created_at)
	VALUES ($1, $2, $3, $4, false, $5, $6)
	RETURNING ` + taskColumns

	t, err := scanTask(s.db.QueryRow(ctx, query,
		uuid.New(), ownerID, req.Name, req.StartTime, req.Priority, time.Now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// SetCompleted toggles a task's completion flag. Only a false to true
// transition credits the owner's streak; the task and streak writes commit
// together.
func (s *TaskService) SetCompleted(ctx context.Context, clerkID string, taskID uuid.UUID, completed bool) (*CompletionResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ownerID, err := s.ownerID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	var wasCompleted bool
	err = tx.QueryRow(ctx,
		`SELECT completed FROM tasks WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		taskID, ownerID,
	).Scan(&wasCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to fetch task: %w", err)
	}

	t, err := scanTask(tx.QueryRow(ctx,
		`UPDATE tasks SET completed = $3 WHERE id = $1 AND user_id = $2 RETURNING `+taskColumns,
		taskID, ownerID, completed,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	result := &CompletionResult{Task: t}

	if !wasCompleted && completed {
		result.Streak, err = s.profiles.advanceStreakTx(ctx, tx, ownerID)
		if err != nil {
			return nil, err
		}
	} else {
		err = tx.QueryRow(ctx,
			`SELECT current_streak, last_streak_updated FROM profiles WHERE id = $1`, ownerID,
		).Scan(&result.Streak.CurrentStreak, &result.Streak.LastStreakUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch streak: %w", err)
		}
		result.Streak.UserID = ownerID
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	return result, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, clerkID string, taskID uuid.UUID) error {
	ownerID, err := s.ownerID(ctx, s.db, clerkID)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskService) GetAnalytics(ctx context.Context, clerkID string) (*task.Analytics, error) {
	p, err := s.profiles.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var total, completed, high int
	err = s.db.QueryRow(ctx, `
	SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE completed),
		COUNT(*) FILTER (WHERE priority = 'high')
	FROM tasks
	WHERE user_id = $1
	`, p.UserID).Scan(&total, &completed, &high)
	if err != nil {
		return nil, fmt.Errorf("failed to compute analytics: %w", err)
	}

	a := task.NewAnalytics(total, completed, high, p.CurrentStreak)
	return &a, nil
}

// TasksToNotify returns tasks starting soon that have not been reminded yet.
// The query owns the lookahead window and changes nothing.
func (s *TaskService) TasksToNotify(ctx context.Context) ([]task.ToNotify, error) {
	rows, err := s.db.Query(ctx, `
	SELECT task_id, name, start_time, COALESCE(email, ''), COALESCE(username, '')
	FROM get_tasks_to_notify()
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks to notify: %w", err)
	}
	defer rows.Close()

	var tasks []task.ToNotify
	for rows.Next() {
		var t task.ToNotify
		if err := rows.Scan(&t.TaskID, &t.Name, &t.StartTime, &t.Email, &t.Username); err != nil {
			return nil, fmt.Errorf("failed to scan task to notify: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks to notify: %w", err)
	}

	return tasks, nil
}

// MarkReminderSent records that the reminder for taskID was delivered so the
// reminder query stops returning it.
func (s *TaskService) MarkReminderSent(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE tasks SET reminder_sent_at = now() WHERE id = $1 AND reminder_sent_at IS NULL`, taskID)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}
