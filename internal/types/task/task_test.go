package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskRequest_Normalize(t *testing.T) {
	req := &CreateTaskRequest{Name: "  Write report  "}
	require.NoError(t, req.Normalize())
	assert.Equal(t, "Write report", req.Name)
	assert.Equal(t, PriorityLow, req.Priority)

	req = &CreateTaskRequest{Name: "Gym", Priority: PriorityHigh}
	require.NoError(t, req.Normalize())
	assert.Equal(t, PriorityHigh, req.Priority)
}

func TestCreateTaskRequest_NormalizeRejects(t *testing.T) {
	err := (&CreateTaskRequest{Name: "   "}).Normalize()
	assert.ErrorIs(t, err, ErrEmptyName)

	err = (&CreateTaskRequest{Name: "Gym", Priority: "urgent"}).Normalize()
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want Filter
	}{
		{"", FilterTotal},
		{"total", FilterTotal},
		{"Completed", FilterCompleted},
		{"pending", FilterPending},
		{"high-priority", FilterHighPriority},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFilter(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseFilter("overdue")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics(3, 2, 1, 4)
	assert.Equal(t, 1, a.Pending)
	assert.Equal(t, 67, a.Progress)
	assert.Equal(t, 4, a.CurrentStreak)

	empty := NewAnalytics(0, 0, 0, 0)
	assert.Equal(t, 0, empty.Progress)
	assert.Equal(t, 0, empty.Pending)
}
