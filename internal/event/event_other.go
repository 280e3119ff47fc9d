//go:build !linux

package event

import (
	"fmt"
	"os"
	"sync/atomic"
)

// pipeDescriptor emulates the eventfd counter contract with a pipe
// (for pollability) plus an atomic value slot, for platforms without
// eventfd(2). A single pending token is enough: the core only ever
// has one outstanding, undelivered signal at a time between Waits.
type pipeDescriptor struct {
	r, w    *os.File
	pending atomic.Uint64
}

func newDescriptor() (Descriptor, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("event: pipe: %w", err)
	}
	return &pipeDescriptor{r: r, w: w}, nil
}

func (p *pipeDescriptor) Signal(value uint64) error {
	p.pending.Store(value)
	if _, err := p.w.Write([]byte{1}); err != nil {
		return fmt.Errorf("event: write: %w", err)
	}
	return nil
}

func (p *pipeDescriptor) Wait() (uint64, error) {
	var buf [1]byte
	if _, err := p.r.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("event: read: %w", err)
	}
	return p.pending.Swap(0), nil
}

func (p *pipeDescriptor) FD() uintptr { return p.r.Fd() }

func (p *pipeDescriptor) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
