package connection

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Supervisor is the retry ticker. It only decides when to check whether a reconnect
// is owed; it knows nothing about liveness. Owned by the manager loop.
type Supervisor struct {
	clock    clockwork.Clock
	interval time.Duration
	ticker   clockwork.Ticker
}

func newSupervisor(clock clockwork.Clock, interval time.Duration) *Supervisor {
	return &Supervisor{clock: clock, interval: interval}
}

// Start begins ticking; a running supervisor is left untouched
func (s *Supervisor) Start() {
	if s.ticker != nil {
		return
	}
	s.ticker = s.clock.NewTicker(s.interval)
}

// Stop halts ticking
func (s *Supervisor) Stop() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
}

// Running reports whether the supervisor is ticking
func (s *Supervisor) Running() bool {
	return s.ticker != nil
}

// C delivers ticks; nil while stopped
func (s *Supervisor) C() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.Chan()
}
