// Package transfer implements the dedicated transfer thread that
// moves frames between the application's ring buffer and the FIFO
// byte stream, one period-sized chunk per iteration, pacing playback
// output against the nominal sample rate and reconciling pause/resume
// requests from the application thread. This is the concurrency core
// the rest of the engine (delay estimation, HW-compat, poll surface)
// is built around.
package transfer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samoyed-audio/pcmio/internal/ctl"
	"github.com/samoyed-audio/pcmio/internal/delay"
	"github.com/samoyed-audio/pcmio/internal/event"
	"github.com/samoyed-audio/pcmio/internal/fifo"
	"github.com/samoyed-audio/pcmio/internal/hwcompat"
	"github.com/samoyed-audio/pcmio/internal/pausestate"
	"github.com/samoyed-audio/pcmio/internal/rate"
	"github.com/samoyed-audio/pcmio/internal/ringbuf"
)

// ErrDisconnected is returned once the transport has failed fatally;
// it sticks until the PCM is reopened.
var ErrDisconnected = errors.New("transfer: transport disconnected")

// Deadliner is implemented by FIFO data descriptors that support
// setting a read deadline, used by capture silence HW-compat mode to
// bound how long it waits for real data before inserting silence. A
// descriptor that doesn't implement it simply never times out, which
// only matters for silence mode.
type Deadliner interface {
	SetReadDeadline(time.Time) error
}

// Config describes one engine instance. Data is the blocking,
// half-duplex FIFO descriptor: only Write is used for playback, only
// Read for capture. Samples is the pre-allocated ring storage the
// application side also addresses; its length must be
// bufferSize*bytesPerFrame.
type Config struct {
	Dir           ringbuf.Direction
	RateHz        int
	BytesPerFrame int64
	PeriodSize    int64
	BufferSize    int64
	Boundary      int64
	AvailMin      int64
	Mode          hwcompat.Mode

	Data    io.ReadWriter
	Samples []byte

	Ring  *ringbuf.Buffer
	Ctl   *ctl.Client
	Event event.Descriptor
	Delay *delay.Estimator

	// FIFOQueuedBytes reports how many bytes are presently queued in
	// the kernel-side FIFO, for the delay snapshot. Optional; the OS
	// query behind it (e.g. an ioctl) is host-platform glue outside
	// this package's scope.
	FIFOQueuedBytes func() int64

	// Logger receives debug-level pointer snapshots and warn/error
	// level transport failures. Defaults to log.Default() if nil.
	Logger *log.Logger
}

// Engine is one direction's transfer thread plus the state the
// application thread drives it with.
type Engine struct {
	playback bool
	rateHz   int
	bpf      int64
	period   int64
	bufSize  int64
	boundary int64
	availMin int64
	mode     hwcompat.Mode

	data    io.ReadWriter
	samples []byte

	rb    *ringbuf.Buffer
	ctl   *ctl.Client
	ev    event.Descriptor
	dl    *delay.Estimator
	clock *rate.Clock
	pause *pausestate.Machine
	queueBytes func() int64

	silence *hwcompat.SilenceTracker
	log     *log.Logger

	mu        sync.Mutex
	running   bool
	connected atomic.Bool
	resumeCh  chan struct{}
	cancel    context.CancelFunc
	doneCh    chan struct{}
}

// New builds an Engine. The transfer thread is not started; call
// Start.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	dir := "capture"
	if cfg.Dir == ringbuf.Playback {
		dir = "playback"
	}
	logger = logger.With("component", "transfer", "direction", dir)

	e := &Engine{
		playback:   cfg.Dir == ringbuf.Playback,
		rateHz:     cfg.RateHz,
		bpf:        cfg.BytesPerFrame,
		period:     cfg.PeriodSize,
		bufSize:    cfg.BufferSize,
		boundary:   cfg.Boundary,
		availMin:   cfg.AvailMin,
		mode:       cfg.Mode,
		data:       cfg.Data,
		samples:    cfg.Samples,
		rb:         cfg.Ring,
		ctl:        cfg.Ctl,
		ev:         cfg.Event,
		dl:         cfg.Delay,
		clock:      rate.New(cfg.RateHz),
		pause:      pausestate.New(),
		queueBytes: cfg.FIFOQueuedBytes,
		silence:    hwcompat.NewSilenceTracker(),
		log:        logger,
		resumeCh:   make(chan struct{}, 1),
	}
	e.connected.Store(true)
	return e
}

// wake sends a non-blocking resume wake to the transfer thread; it
// both resumes an explicitly paused engine and nudges it out of an
// idle park caused by zero availability.
func (e *Engine) wake() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

// Connected reports whether the transport is still usable.
func (e *Engine) Connected() bool { return e.connected.Load() }

// Start spawns the transfer thread if it is not already running, or
// simply wakes an already-running one.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.wake()
		return nil
	}
	if err := e.ctl.Send(ctl.Resume); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.doneCh = make(chan struct{})
	e.running = true
	e.log.Info("transfer thread starting")
	go e.run(runCtx)
	return nil
}

// Stop cancels and joins the transfer thread, resets hw_ptr to 0,
// sends Drop, and (playback only) signals the event descriptor once
// so a blocked poller observes the state change.
func (e *Engine) Stop() error {
	e.mu.Lock()
	running := e.running
	cancel := e.cancel
	done := e.doneCh
	e.mu.Unlock()

	if running {
		cancel()
		<-done
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}

	e.rb.SetHWPtr(0)
	err := e.ctl.Send(ctl.Drop)
	if err != nil {
		e.log.Warn("drop notification failed", "err", err)
	}
	if e.playback {
		e.ev.Signal(event.Wake)
	}
	return err
}

// Pointer returns hw_ptr, or ErrDisconnected once the transport has
// terminally failed.
func (e *Engine) Pointer() (int64, error) {
	if !e.connected.Load() {
		return e.rb.HWPtr(), ErrDisconnected
	}
	return e.rb.HWPtr(), nil
}

// RequestPause implements pause(true): set PENDING, wait for the
// transfer thread's acknowledgement, then send Pause on the control
// channel and capture the paused delay. Order matters — PENDING must
// be observable before Pause is sent, which is exactly what waiting
// for acknowledgement before the send guarantees.
func (e *Engine) RequestPause() error {
	e.pause.RequestPause()
	if !e.pause.WaitPaused() {
		return ErrDisconnected
	}
	if err := e.ctl.Send(ctl.Pause); err != nil {
		return err
	}
	e.dl.CapturePausedDelay(e.rb.ApplPtr())
	e.ev.Signal(event.Wake)
	return nil
}

// RequestResume implements pause(false).
func (e *Engine) RequestResume() error {
	if err := e.ctl.Send(ctl.Resume); err != nil {
		return err
	}
	e.wake()
	e.ev.Signal(event.Wake)
	return nil
}

// ErrDrainTimeout is returned by Drain when the buffer fails to empty
// before the deadline; Drain has already stopped the engine by then.
var ErrDrainTimeout = errors.New("transfer: drain timeout")

// Drain implements the playback drain protocol. For capture, callers
// should not call this — drain is a no-op success there, handled by
// the host framework directly.
func (e *Engine) Drain(ctx context.Context, nonblock bool) error {
	if !e.connected.Load() {
		return ErrDisconnected
	}
	if err := e.Start(ctx); err != nil {
		return err
	}
	if nonblock {
		return ctl.ErrProtocolTimeout // "again" signal: caller retries
	}

	queued := e.rb.TransferAvailable(e.rb.HWPtr(), e.rb.ApplPtr())
	periods := (queued + e.period - 1) / e.period
	if periods < 0 {
		periods = 0
	}
	timeout := 100*time.Millisecond + time.Duration(periods*e.period)*time.Second/time.Duration(e.rateHz)
	deadline := time.Now().Add(timeout)

	for {
		if e.rb.TransferAvailable(e.rb.HWPtr(), e.rb.ApplPtr()) == 0 {
			return e.ctl.Send(ctl.Drain)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			e.Stop()
			return ErrDrainTimeout
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(minDuration(remaining, 50*time.Millisecond)):
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// NotifyAppl is called by the application thread after advancing
// appl_ptr, so a transfer thread parked idle on zero availability
// wakes promptly instead of waiting for the next poll cycle.
func (e *Engine) NotifyAppl() { e.wake() }

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh)
	localHW := e.rb.HWPtr()

	for {
		if ctx.Err() != nil {
			return
		}

		if e.pause.IsPending() || localHW == ringbuf.Idle {
			e.pause.AcknowledgePause()
			select {
			case <-e.resumeCh:
			case <-ctx.Done():
				return
			}
			e.pause.Resume()
			e.clock.Reanchor()
			localHW = e.rb.HWPtr()
			continue
		}

		applPtr := e.rb.ApplPtr()
		avail := e.rb.TransferAvailable(localHW, applPtr)
		if avail == 0 {
			localHW = ringbuf.Idle
			e.rb.MarkIdle()
			e.publishSnapshot(ringbuf.Idle)
			e.ev.Signal(event.Wake)
			continue
		}

		offset := e.rb.Offset(localHW)
		frames := avail
		if frames > e.period {
			frames = e.period
		}
		if room := e.bufSize - offset; frames > room {
			frames = room
		}

		newHW := ringbuf.WrapAdd(localHW, frames, e.boundary)

		if err := e.transferChunk(offset, frames); err != nil {
			e.fail()
			return
		}

		localHW = newHW
		e.publishSnapshot(localHW)
		e.rb.SetHWPtr(localHW)

		if frames+e.bufSize-avail >= e.availMin {
			e.ev.Signal(event.Wake)
		}

		if e.playback {
			e.clock.Pace(frames)
		}
	}
}

func (e *Engine) publishSnapshot(hw int64) {
	queued := int64(0)
	if e.queueBytes != nil {
		queued = e.queueBytes()
	}
	e.log.Debug("hw_ptr snapshot", "hw_ptr", hw, "fifo_bytes", queued)
	e.dl.Publish(delay.Snapshot{At: time.Now(), HWPtr: hw, FIFOBytes: queued})
}

func (e *Engine) transferChunk(offset, frames int64) error {
	byteOff := offset * e.bpf
	byteLen := frames * e.bpf
	buf := e.samples[byteOff : byteOff+byteLen]

	if e.playback {
		return e.transferPlayback(buf, frames)
	}
	return e.transferCapture(buf, frames)
}

func (e *Engine) transferPlayback(buf []byte, frames int64) error {
	target := e.data
	if e.mode == hwcompat.Silence && !e.silence.Active() {
		_, err := fifo.WriteFull(hwcompat.Sink, buf)
		return err
	}
	_, err := fifo.WriteFull(target, buf)
	if err != nil {
		return err
	}
	e.silence.SetActive(true)
	return nil
}

func (e *Engine) transferCapture(buf []byte, frames int64) error {
	if e.mode != hwcompat.Silence {
		_, err := e.readExact(buf)
		return err
	}

	queued := int64(0)
	if e.queueBytes != nil {
		queued = e.queueBytes() / e.bpf
	}
	if !e.silence.PreBuffered() {
		fifoCap := hwcompat.CaptureFIFOCapacityFrames(e.period, e.bufSize)
		if e.silence.ShouldPreBufferCapture(queued, e.period, fifoCap) {
			zero(buf)
			return nil
		}
	}

	if dl, ok := e.data.(Deadliner); ok {
		deadline := hwcompat.PeriodDeadline(time.Now(), frames, e.rateHz)
		_ = dl.SetReadDeadline(deadline)
		n, err := e.readExact(buf)
		if err != nil && isTimeout(err) {
			zero(buf[n:])
			e.silence.SetActive(false)
			e.clock.Pace(frames)
			return nil
		}
		if err == nil {
			e.silence.SetActive(true)
		}
		return err
	}

	_, err := e.readExact(buf)
	return err
}

func (e *Engine) readExact(buf []byte) (int, error) {
	return fifo.ReadFull(e.data, buf)
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}

// fail implements the fatal-FIFO-error path: mark disconnected, write
// the disconnect sentinel, and release any pause waiter so it doesn't
// block forever waiting for an acknowledgement that will never come.
func (e *Engine) fail() {
	e.log.Error("transport disconnected")
	e.connected.Store(false)
	e.ev.Signal(event.Disconnect)
	e.pause.Disconnect()
}

// State reports the pause-state-machine view, used by callers that
// need to distinguish RUNNING/PENDING/PAUSED independent of PCM-level
// state (pcmstate.State covers the wider lifecycle).
func (e *Engine) State() pausestate.State { return e.pause.State() }
