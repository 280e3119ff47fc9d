// Package delay implements the running delay estimator: the last
// delay snapshot taken by the transfer thread, aged by wall-clock
// elapsed time, plus the codec and client delay constants.
package delay

import (
	"sync"
	"time"

	"github.com/samoyed-audio/pcmio/internal/pcmstate"
)

// Snapshot is the tuple the transfer thread publishes after every
// period transfer.
type Snapshot struct {
	At        time.Time
	HWPtr     int64
	FIFOBytes int64
}

// Result is what Delay() returns: a frame count and, for non-success
// states, the signal the caller should surface instead.
type Result struct {
	Frames  int64
	XRun    bool
	Suspend bool
}

// Estimator tracks the running delay for one PCM direction.
type Estimator struct {
	mu sync.Mutex

	playback bool
	rate     int

	snapshot    Snapshot
	pausedDelay int64

	codecDelayDms  int64 // codec-reported delay, deci-milliseconds
	clientDelayDms int64 // remote-reported client delay, deci-milliseconds
	extraDelay     int64 // user-supplied "delay" config option, in frames

	bytesPerFrame int64

	lastDispatch time.Time
	dispatch     func() // synchronous property-channel dispatch
}

// New creates an Estimator. playback selects the playback formula
// versus the simpler capture formula.
func New(playback bool, rate int, bytesPerFrame int64, dispatch func()) *Estimator {
	now := time.Now()
	return &Estimator{
		playback:      playback,
		rate:          rate,
		bytesPerFrame: bytesPerFrame,
		snapshot:      Snapshot{At: now},
		lastDispatch:  now,
		dispatch:      dispatch,
	}
}

// Publish records a new delay snapshot; called by the transfer thread
// after every period transfer.
func (e *Estimator) Publish(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot = s
}

// SetCodecDelay updates the codec-reported constant delay
// (deci-milliseconds), pushed by the property-change dispatcher.
func (e *Estimator) SetCodecDelay(dms int64) {
	e.mu.Lock()
	e.codecDelayDms = dms
	e.mu.Unlock()
}

// SetClientDelay updates the remote client delay (deci-milliseconds).
func (e *Estimator) SetClientDelay(dms int64) {
	e.mu.Lock()
	e.clientDelayDms = dms
	e.mu.Unlock()
}

// SetExtraDelay sets the user-supplied `delay` config option, already
// converted to frames.
func (e *Estimator) SetExtraDelay(frames int64) {
	e.mu.Lock()
	e.extraDelay = frames
	e.mu.Unlock()
}

// CapturePausedDelay snapshots the current delay as the "paused
// delay" to serve subsequent queries while paused.
func (e *Estimator) CapturePausedDelay(applPtr int64) {
	d := e.computeRunning(applPtr)
	e.mu.Lock()
	e.pausedDelay = d
	e.mu.Unlock()
}

// MarkDispatched records that the property dispatcher just ran, for
// the one-second staleness check below.
func (e *Estimator) MarkDispatched() {
	e.mu.Lock()
	e.lastDispatch = time.Now()
	e.mu.Unlock()
}

// Delay computes the current delay according to the PCM state machine.
// applPtr is the caller's current application pointer, needed to
// adjust the buffer-side contribution.
func (e *Estimator) Delay(state pcmstate.State, applPtr int64) Result {
	e.mu.Lock()
	stale := time.Since(e.lastDispatch) > time.Second
	dispatch := e.dispatch
	e.mu.Unlock()
	if stale && dispatch != nil {
		dispatch()
		e.MarkDispatched()
	}

	switch state {
	case pcmstate.Prepared, pcmstate.Running:
		return Result{Frames: e.computeRunning(applPtr)}
	case pcmstate.Paused:
		e.mu.Lock()
		d := e.pausedDelay
		e.mu.Unlock()
		return Result{Frames: d}
	case pcmstate.XRun:
		return Result{Frames: e.computeRunning(applPtr), XRun: true}
	case pcmstate.Suspended:
		return Result{Suspend: true}
	default:
		return Result{Frames: 0}
	}
}

func (e *Estimator) computeRunning(applPtr int64) int64 {
	if e.playback {
		return e.computePlayback(applPtr)
	}
	return e.computeCapture(applPtr)
}

// computePlayback implements the playback delay formula:
//
//	delay := fifo_frames_at_snapshot
//	if running: delay += buffer_delay_adjusted_for_appl_ptr
//	tframes := elapsed_ms * rate / 1000
//	delay := max(delay - tframes, 0)
//	if !running: delay += buffer_delay_adjusted_for_appl_ptr
//	delay += rate*codec_delay_dms/10000 + rate*client_delay_dms/10000 + extra_delay
//
// "running" here means the snapshot was taken while the engine had a
// valid hw_ptr (not idle); that is what distinguishes "buffer not yet
// drained by hardware" from "buffer delay already accounted for".
func (e *Estimator) computePlayback(applPtr int64) int64 {
	e.mu.Lock()
	snap := e.snapshot
	codecDelayDms := e.codecDelayDms
	clientDelayDms := e.clientDelayDms
	extra := e.extraDelay
	rate := int64(e.rate)
	bpf := e.bytesPerFrame
	e.mu.Unlock()

	running := snap.HWPtr >= 0
	fifoFrames := int64(0)
	if bpf > 0 {
		fifoFrames = snap.FIFOBytes / bpf
	}

	bufferDelay := int64(0)
	if snap.HWPtr >= 0 {
		bufferDelay = applPtr - snap.HWPtr
		if bufferDelay < 0 {
			bufferDelay = 0
		}
	}

	d := fifoFrames
	if running {
		d += bufferDelay
	}

	elapsed := time.Since(snap.At)
	tframes := elapsed.Milliseconds() * rate / 1000
	d -= tframes
	if d < 0 {
		d = 0
	}

	if !running {
		d += bufferDelay
	}

	d += rate*codecDelayDms/10000 + rate*clientDelayDms/10000 + extra
	return d
}

// computeCapture implements the capture delay formula: just the
// buffer fill, clamped to the available frames — the Bluetooth
// profile exposes no sink-side latency to account for.
func (e *Estimator) computeCapture(applPtr int64) int64 {
	e.mu.Lock()
	snap := e.snapshot
	e.mu.Unlock()

	if snap.HWPtr < 0 {
		return 0
	}
	d := snap.HWPtr - applPtr
	if d < 0 {
		d = 0
	}
	return d
}
