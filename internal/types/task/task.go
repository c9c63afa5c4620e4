package task

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

type Filter string

const (
	FilterTotal        Filter = "total"
	FilterCompleted    Filter = "completed"
	FilterPending      Filter = "pending"
	FilterHighPriority Filter = "high-priority"
)

var (
	ErrEmptyName       = errors.New("task name is required")
	ErrInvalidPriority = errors.New("priority must be 'high' or 'low'")
	ErrInvalidFilter   = errors.New("filter must be one of total, completed, pending, high-priority")
)

type Task struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	OwnerID   uuid.UUID  `json:"ownerId" db:"user_id"`
	Name      string     `json:"name" db:"name"`
	StartTime *time.Time `json:"startTime,omitempty" db:"start_time"`
	Completed bool       `json:"completed" db:"completed"`
	Priority  Priority   `json:"priority" db:"priority"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// ToNotify is one row returned by the reminder query: a task starting soon
// together with its owner's contact details.
type ToNotify struct {
	TaskID    uuid.UUID  `json:"taskId" db:"task_id"`
	Name      string     `json:"name" db:"name"`
	StartTime *time.Time `json:"startTime,omitempty" db:"start_time"`
	Email     string     `json:"email" db:"email"`
	Username  string     `json:"username" db:"username"`
}

type CreateTaskRequest struct {
	Name      string     `json:"name"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Priority  Priority   `json:"priority"`
}

// Normalize trims the name, defaults the priority to low and validates the
// result.
func (r *CreateTaskRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrEmptyName
	}
	if r.Priority == "" {
		r.Priority = PriorityLow
	}
	if r.Priority != PriorityHigh && r.Priority != PriorityLow {
		return fmt.Errorf("%w: got %q", ErrInvalidPriority, r.Priority)
	}
	return nil
}

type SetCompletedRequest struct {
	Completed *bool `json:"completed"`
}

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterTotal, nil
	case FilterTotal, FilterCompleted, FilterPending, FilterHighPriority:
		return f, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidFilter, s)
	}
}

type Analytics struct {
	Total         int `json:"total"`
	Completed     int `json:"completed"`
	Pending       int `json:"pending"`
	HighPriority  int `json:"highPriority"`
	Progress      int `json:"progress"` // percent of tasks completed, 0-100
	CurrentStreak int `json:"currentStreak"`
}

func NewAnalytics(total, completed, highPriority, currentStreak int) Analytics {
	a := Analytics{
		Total:         total,
		Completed:     completed,
		Pending:       total - completed,
		HighPriority:  highPriority,
		CurrentStreak: currentStreak,
	}
	if total > 0 {
		a.Progress = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return a
}
