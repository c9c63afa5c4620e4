package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPath(t *testing.T) {
	var seen []Transition
	m := NewMachine(func(tr Transition) { seen = append(seen, tr) })

	assert.Equal(t, Anonymous, m.State())

	m.Dispatch(Event{Kind: TokenPresented})
	assert.Equal(t, Authenticating, m.State())

	m.Dispatch(Event{Kind: Verified, Subject: "user_123"})
	assert.Equal(t, Authenticated, m.State())

	sub, ok := m.Subject()
	assert.True(t, ok)
	assert.Equal(t, "user_123", sub)

	m.Dispatch(Event{Kind: SignedOut})
	assert.Equal(t, Anonymous, m.State())
	_, ok = m.Subject()
	assert.False(t, ok)

	require.Len(t, seen, 3)
	assert.Equal(t, Transition{From: Anonymous, To: Authenticating, Event: Event{Kind: TokenPresented}}, seen[0])
	assert.Equal(t, Authenticated, seen[1].To)
	assert.Equal(t, Anonymous, seen[2].To)
}

func TestMachine_Rejected(t *testing.T) {
	m := NewMachine(nil)
	errBad := errors.New("bad token")

	m.Dispatch(Event{Kind: TokenPresented})
	m.Dispatch(Event{Kind: Rejected, Err: errBad})

	assert.Equal(t, Anonymous, m.State())
	assert.ErrorIs(t, m.Err(), errBad)
}

func TestMachine_InvalidEventsAreDropped(t *testing.T) {
	m := NewMachine(nil)

	m.Dispatch(Event{Kind: Verified, Subject: "user_123"})
	assert.Equal(t, Anonymous, m.State())

	m.Dispatch(Event{Kind: SignedOut})
	assert.Equal(t, Anonymous, m.State())

	m.Dispatch(Event{Kind: TokenPresented})
	m.Dispatch(Event{Kind: TokenPresented})
	assert.Equal(t, Authenticating, m.State())
}

func TestMachine_ReentrantDispatchIsQueued(t *testing.T) {
	var m *Machine
	var order []State

	m = NewMachine(func(tr Transition) {
		order = append(order, tr.To)
		if tr.To == Authenticating {
			// Re-entrant: must not be applied until this callback returns.
			m.Dispatch(Event{Kind: Verified, Subject: "user_9"})
			assert.Equal(t, Authenticating, tr.To)
			order = append(order, -1)
		}
	})

	m.Dispatch(Event{Kind: TokenPresented})

	assert.Equal(t, []State{Authenticating, -1, Authenticated}, order)
	assert.Equal(t, Authenticated, m.State())
}

func TestMachine_ConcurrentDispatch(t *testing.T) {
	m := NewMachine(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Dispatch(Event{Kind: TokenPresented})
		}()
	}
	wg.Wait()

	assert.Equal(t, Authenticating, m.State())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "verified", Verified.String())
}
