// Package session tracks the authentication state of a caller as an explicit
// state machine driven by discrete events.
package session

import (
	"log"
	"sync"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	TokenPresented EventKind = iota
	Verified
	Rejected
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case TokenPresented:
		return "token_presented"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind    EventKind
	Subject string // set on Verified
	Err     error  // set on Rejected
}

type Transition struct {
	From  State
	To    State
	Event Event
}

// Machine applies one transition at a time. An event dispatched while
// another is being applied, including from inside the OnTransition callback,
// is queued and applied after it in arrival order.
type Machine struct {
	mu      sync.Mutex
	state   State
	subject string
	lastErr error
	queue   []Event
	running bool

	onTransition func(Transition)
}

func NewMachine(onTransition func(Transition)) *Machine {
	return &Machine{onTransition: onTransition}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subject returns the verified subject while Authenticated.
func (m *Machine) Subject() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subject, m.state == Authenticated
}

// Err returns the error carried by the last Rejected event.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Dispatch queues ev and, unless another call is already draining the queue,
// applies queued events until none remain. Events that are not valid in the
// current state are dropped.
func (m *Machine) Dispatch(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true

	for len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]

		from := m.state
		to, ok := transition(from, next.Kind)
		if !ok {
			log.Printf("Session: ignoring %s in state %s", next.Kind, from)
			continue
		}

		m.state = to
		switch next.Kind {
		case Verified:
			m.subject = next.Subject
			m.lastErr = nil
		case Rejected:
			m.subject = ""
			m.lastErr = next.Err
		case SignedOut, TokenPresented:
			m.subject = ""
		}

		cb := m.onTransition
		m.mu.Unlock()
		if cb != nil {
			cb(Transition{From: from, To: to, Event: next})
		}
		m.mu.Lock()
	}

	m.running = false
	m.mu.Unlock()
}

func transition(from State, kind EventKind) (State, bool) {
	switch from {
	case Anonymous:
		if kind == TokenPresented {
			return Authenticating, true
		}
	case Authenticating:
		switch kind {
		case Verified:
			return Authenticated, true
		case Rejected:
			return Anonymous, true
		}
	case Authenticated:
		switch kind {
		case TokenPresented:
			return Authenticating, true
		case SignedOut:
			return Anonymous, true
		}
	}
	return from, false
}
