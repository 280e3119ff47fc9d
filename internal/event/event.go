// Package event implements a single event descriptor: a
// semaphore-like counter that wakes the application thread, doubling
// as the channel through which the transfer thread announces terminal
// disconnect.
package event

// Disconnect is the reserved value meaning "transport terminally
// failed, treat as disconnect".
const Disconnect uint64 = 0xDEAD0000

// Wake is the ordinary, non-terminal wakeup value.
const Wake uint64 = 1

// Descriptor is a single counting-semaphore wakeup primitive that can
// also be placed in a poll set. Signal is called from the transfer
// thread; Wait/FD are called only from the application thread or its
// delegated poll integration.
type Descriptor interface {
	// Signal wakes the descriptor with the given value. Never blocks.
	Signal(value uint64) error
	// Wait blocks until signalled, then returns the value observed and
	// resets the descriptor to unsignalled. Exactly one Wait happens
	// per wakeup.
	Wait() (uint64, error)
	// FD returns the underlying descriptor for poll/epoll/kqueue
	// integration.
	FD() uintptr
	// Close releases the underlying descriptor(s).
	Close() error
}

// New creates a platform-appropriate Descriptor.
func New() (Descriptor, error) {
	return newDescriptor()
}
