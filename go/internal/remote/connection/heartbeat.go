package connection

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Heartbeat is the liveness detector: a single deadline re-armed by every ping.
// It is owned by the manager loop and is not safe for concurrent use.
type Heartbeat struct {
	clock   clockwork.Clock
	timeout time.Duration
	timer   clockwork.Timer
}

func newHeartbeat(clock clockwork.Clock, timeout time.Duration) *Heartbeat {
	return &Heartbeat{clock: clock, timeout: timeout}
}

// Arm starts or restarts the deadline
func (h *Heartbeat) Arm() {
	h.Clear()
	h.timer = h.clock.NewTimer(h.timeout)
}

// Clear cancels a pending deadline
func (h *Heartbeat) Clear() {
	if h.timer == nil {
		return
	}
	stopAndDrainTimer(h.timer)
	h.timer = nil
}

// Armed reports whether a deadline is pending
func (h *Heartbeat) Armed() bool {
	return h.timer != nil
}

// C fires when the deadline elapses. It is nil while disarmed so a select never picks it.
func (h *Heartbeat) C() <-chan time.Time {
	if h.timer == nil {
		return nil
	}
	return h.timer.Chan()
}

// expired marks the deadline as consumed after C fired
func (h *Heartbeat) expired() {
	h.timer = nil
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
