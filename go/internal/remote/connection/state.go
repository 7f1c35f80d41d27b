package connection

import (
	"fmt"
	"sync"
)

// State is the liveness of the relay connection
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its lower-case name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a lower-case state name
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// Status publishes the current State. Only the Manager that owns it can change it;
// everything else reads or subscribes.
type Status struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewStatus creates a publisher starting in Disconnected
func NewStatus() *Status {
	return &Status{
		state: Disconnected,
		subs:  make(map[int]chan State),
	}
}

// State returns the current state
func (s *Status) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connected reports whether the state is Connected
func (s *Status) Connected() bool {
	return s.State() == Connected
}

// Subscribe returns a channel that always holds the most recent state. Intermediate
// states are dropped for slow readers. The current state is delivered immediately.
// Call cancel to release the subscription.
func (s *Status) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan State, 1)
	ch <- s.state
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// publish sets the state and notifies subscribers. It reports whether the state changed.
func (s *Status) publish(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == state {
		return false
	}
	s.state = state

	for _, ch := range s.subs {
		// Replace any unread value with the latest one
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
	return true
}
