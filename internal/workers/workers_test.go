package workers

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CollectsAllResults(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}

	got := Run(context.Background(), 2, items, func(_ context.Context, n int) (int, bool) {
		return n * 10, true
	})

	sort.Ints(got)
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60}, got)
}

func TestRun_SkipsItemsWithoutResult(t *testing.T) {
	got := Run(context.Background(), 4, []int{1, 2, 3, 4}, func(_ context.Context, n int) (int, bool) {
		return n, n%2 == 0
	})

	sort.Ints(got)
	assert.Equal(t, []int{2, 4}, got)
}

func TestRun_EmptyInputReturnsEmptySlice(t *testing.T) {
	got := Run(context.Background(), 1, nil, func(_ context.Context, n int) (int, bool) {
		return n, true
	})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRun_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	Run(context.Background(), 3, make([]struct{}, 20), func(_ context.Context, _ struct{}) (struct{}, bool) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, false
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestScheduler_RunsJobsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(Job{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if runs.Add(1)%2 == 0 {
				return errors.New("boom")
			}
			return nil
		},
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduler_RunsEachJobAtStart(t *testing.T) {
	ran := make(chan string, 2)
	job := func(name string) Job {
		return Job{
			Name:     name,
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				ran <- name
				return nil
			},
		}
	}

	s := NewScheduler(job("daily"), job("hourly"))
	s.Start(context.Background())
	defer s.Stop()

	var got []string
	for len(got) < 2 {
		select {
		case name := <-ran:
			got = append(got, name)
		case <-time.After(time.Second):
			t.Fatalf("jobs did not run at start, got %v", got)
		}
	}
	sort.Strings(got)
	assert.Equal(t, []string{"daily", "hourly"}, got)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	NewScheduler().Stop()
}
