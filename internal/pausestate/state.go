// Package pausestate implements the three-state pause/resume
// handshake: RUNNING -> PENDING (application asks) -> PAUSED (transfer
// thread acknowledges) -> RUNNING (resume).
//
// The handshake is a one-shot rendezvous in both directions: the
// application waits on a condition variable until the transfer thread
// has parked, rather than assuming the pause takes effect immediately.
package pausestate

import "sync"

type State int

const (
	Running State = iota
	Pending
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Pending:
		return "PENDING"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Machine guards the pause bits with a mutex and condition variable.
type Machine struct {
	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	disconnect bool
}

func New() *Machine {
	m := &Machine{state: Running}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// State returns the current pause state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RequestPause is called by the application thread to request a pause
// — it sets PENDING. The transfer thread will eventually observe it
// and acknowledge by transitioning to Paused.
func (m *Machine) RequestPause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Running {
		m.state = Pending
	}
}

// WaitPaused blocks until the transfer thread has acknowledged the
// pause (state == Paused) or the transport has disconnected. Returns
// true if paused, false if it returned because of disconnect.
func (m *Machine) WaitPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.state != Paused && !m.disconnect {
		m.cond.Wait()
	}
	return m.state == Paused
}

// AcknowledgePause is called by the transfer thread when it observes
// Pending: it transitions to Paused and broadcasts. Transitions into
// PAUSED happen only on the transfer thread, never the application
// thread directly.
func (m *Machine) AcknowledgePause() {
	m.mu.Lock()
	m.state = Paused
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Resume transitions back to Running and broadcasts. Called by the
// application thread on pause(false); also called by the transfer
// thread itself after it wakes from an idle park that was triggered
// by newly available data rather than an explicit resume request —
// both cases leave the state in exactly the same place, so there is
// no need for the transfer thread to distinguish them.
func (m *Machine) Resume() {
	m.mu.Lock()
	m.state = Running
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Disconnect unblocks any waiter permanently; used when the transport
// has failed so the application thread's pause() does not hang
// forever waiting for an acknowledgement that will never come.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	m.disconnect = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// IsPending reports whether a pause is pending acknowledgement; used
// by the transfer thread's per-iteration check.
func (m *Machine) IsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Pending
}

// IsPaused reports whether the state is fully Paused.
func (m *Machine) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Paused
}
