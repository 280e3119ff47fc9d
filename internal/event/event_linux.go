//go:build linux

package event

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// eventfdDescriptor wraps a Linux eventfd(2), the natural descriptor
// for this job: a kernel-maintained 64-bit counter that is directly
// pollable.
type eventfdDescriptor struct {
	fd int
}

func newDescriptor() (Descriptor, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("event: eventfd: %w", err)
	}
	return &eventfdDescriptor{fd: fd}, nil
}

func (e *eventfdDescriptor) Signal(value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	for {
		_, err := unix.Write(e.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// Counter would overflow; the peer hasn't drained a prior
			// signal yet. Draining and retrying once is enough since
			// only one writer (the transfer thread) ever signals.
			var drain [8]byte
			unix.Read(e.fd, drain[:])
			continue
		}
		if err != nil {
			return fmt.Errorf("event: write: %w", err)
		}
		return nil
	}
}

func (e *eventfdDescriptor) Wait() (uint64, error) {
	var buf [8]byte
	for {
		n, err := unix.Read(e.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// Not yet signalled from this non-blocking fd; the caller
			// is expected to have polled first. Block briefly via a
			// blocking poll on our own fd rather than busy-loop.
			if werr := waitReadable(e.fd); werr != nil {
				return 0, werr
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("event: read: %w", err)
		}
		if n != 8 {
			return 0, fmt.Errorf("event: short read of %d bytes", n)
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	}
}

func (e *eventfdDescriptor) FD() uintptr { return uintptr(e.fd) }

func (e *eventfdDescriptor) Close() error {
	return unix.Close(e.fd)
}

func waitReadable(fd int) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("event: poll: %w", err)
		}
		return nil
	}
}
