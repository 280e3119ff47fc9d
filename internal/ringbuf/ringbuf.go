// Package ringbuf implements the mirrored hardware/application pointer
// pair that the transfer engine and the application thread use to hand
// frames back and forth without a lock on the hot path.
//
// hw_ptr is written only by the transfer thread; appl_ptr only by the
// application thread. Both are read by the opposite side. Reads and
// writes go through atomic.Int64 so no word is ever torn, which is all
// the cross-thread contract requires — the rest is plain monotonic
// counters compared modulo a boundary.
package ringbuf

import "sync/atomic"

// Idle is the hw_ptr sentinel meaning "nothing to transfer".
const Idle int64 = -1

// Direction selects which avail() formula applies.
type Direction int

const (
	Playback Direction = iota
	Capture
)

// Buffer tracks the pointer pair for one PCM ring of bufferSize frames.
// It does not own the sample storage itself — callers index their own
// []byte or []int16 ring with Offset() — it only owns the bookkeeping.
type Buffer struct {
	bufferSize int64
	boundary   int64
	dir        Direction

	hwPtr   atomic.Int64
	applPtr atomic.Int64
}

// New creates a Buffer. boundary must be a positive multiple of
// bufferSize, strictly greater than bufferSize; the host audio
// framework negotiates and reports it.
func New(dir Direction, bufferSize, boundary int64) *Buffer {
	if bufferSize <= 0 {
		panic("ringbuf: bufferSize must be positive")
	}
	if boundary <= bufferSize || boundary%bufferSize != 0 {
		panic("ringbuf: boundary must be a multiple of bufferSize greater than bufferSize")
	}
	b := &Buffer{bufferSize: bufferSize, boundary: boundary, dir: dir}
	return b
}

// BufferSize returns the ring's capacity in frames.
func (b *Buffer) BufferSize() int64 { return b.bufferSize }

// Boundary returns the wrap modulus.
func (b *Buffer) Boundary() int64 { return b.boundary }

// Reset zeroes both pointers, used by prepare().
func (b *Buffer) Reset() {
	b.hwPtr.Store(0)
	b.applPtr.Store(0)
}

// HWPtr is read by the application thread (or poll surface); written
// only by the transfer thread via SetHWPtr/AdvanceHW.
func (b *Buffer) HWPtr() int64 { return b.hwPtr.Load() }

// ApplPtr is read by the transfer thread; written only by the
// application thread via SetApplPtr/AdvanceAppl.
func (b *Buffer) ApplPtr() int64 { return b.applPtr.Load() }

// SetHWPtr publishes a new hw_ptr. Must only be called from the
// transfer thread, and only after the corresponding FIFO transfer has
// completed.
func (b *Buffer) SetHWPtr(v int64) { b.hwPtr.Store(v) }

// MarkIdle sets hw_ptr to the Idle sentinel.
func (b *Buffer) MarkIdle() { b.hwPtr.Store(Idle) }

// AdvanceHW advances hw_ptr by frames, wrapping at boundary.
func (b *Buffer) AdvanceHW(frames int64) int64 {
	next := wrapAdd(b.hwPtr.Load(), frames, b.boundary)
	b.hwPtr.Store(next)
	return next
}

// SetApplPtr publishes a new appl_ptr. Application thread only.
func (b *Buffer) SetApplPtr(v int64) { b.applPtr.Store(v) }

// AdvanceAppl advances appl_ptr by frames, wrapping at boundary.
func (b *Buffer) AdvanceAppl(frames int64) int64 {
	next := wrapAdd(b.applPtr.Load(), frames, b.boundary)
	b.applPtr.Store(next)
	return next
}

// Offset returns p mod bufferSize, the index into the caller's sample
// storage corresponding to ring position p.
func (b *Buffer) Offset(p int64) int64 {
	return p % b.bufferSize
}

// Available returns the number of frames the application side can
// move right now: frames ready to read (capture) or free slots to
// write (playback). Always in [0, bufferSize] while hw_ptr != Idle.
func (b *Buffer) Available() int64 {
	hw := b.hwPtr.Load()
	if hw == Idle {
		return b.bufferSize
	}
	appl := b.applPtr.Load()
	return availableFor(b.dir, hw, appl, b.bufferSize, b.boundary)
}

// AvailableWith is Available() computed against explicit pointer
// values, for callers (the transfer thread) that keep a local copy of
// hw_ptr between the read and the eventual SetHWPtr/AdvanceHW publish.
func (b *Buffer) AvailableWith(hw, appl int64) int64 {
	if hw == Idle {
		return b.bufferSize
	}
	return availableFor(b.dir, hw, appl, b.bufferSize, b.boundary)
}

// TransferAvailable is the complement of Available(): how many frames
// the transfer thread has outstanding work for (data queued to send,
// for playback; free room to fill, for capture), from the transfer
// thread's point of view.
func (b *Buffer) TransferAvailable(hw, appl int64) int64 {
	return b.bufferSize - availableFor(b.dir, hw, appl, b.bufferSize, b.boundary)
}

func availableFor(dir Direction, hw, appl, bufferSize, boundary int64) int64 {
	switch dir {
	case Capture:
		return wrapDiff(hw, appl, boundary)
	default: // Playback
		return bufferSize - wrapDiff(appl, hw, boundary)
	}
}

// wrapDiff computes (a - b) taken modulo boundary, always returning a
// value in [0, boundary).
func wrapDiff(a, b, boundary int64) int64 {
	d := (a - b) % boundary
	if d < 0 {
		d += boundary
	}
	return d
}

func wrapAdd(p, frames, boundary int64) int64 {
	n := (p + frames) % boundary
	if n < 0 {
		n += boundary
	}
	return n
}

// WrapAdd is the pure form of the pointer-advance arithmetic, exposed
// so a caller (the transfer thread) can compute a new pointer value
// before deciding whether to publish it.
func WrapAdd(p, frames, boundary int64) int64 {
	return wrapAdd(p, frames, boundary)
}
