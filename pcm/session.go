// Package pcm assembles the ring buffer, transfer engine, delay
// estimator and event descriptor into the lifecycle a host sound
// framework drives a PCM substream through: open, prepare, start,
// stop, pause, drain, close, plus the poll-revents dispatch its event
// loop calls once the descriptor becomes readable.
package pcm

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samoyed-audio/pcmio/internal/ctl"
	"github.com/samoyed-audio/pcmio/internal/delay"
	"github.com/samoyed-audio/pcmio/internal/event"
	"github.com/samoyed-audio/pcmio/internal/hwcompat"
	"github.com/samoyed-audio/pcmio/internal/pcmstate"
	"github.com/samoyed-audio/pcmio/internal/ringbuf"
	"github.com/samoyed-audio/pcmio/internal/transfer"
)

// Revents is the subset of poll readiness bits the session computes;
// the host glue that owns the real file descriptor translates these
// into whatever numeric constants its platform's poll(2) expects.
type Revents int

const (
	RevIn  Revents = 1 << iota // readable: capture has avail_min frames
	RevOut                     // writable: playback has avail_min frames of room
	RevErr                     // error condition: xrun, paused, suspended, or open
	RevHup                     // hangup: transport disconnected
	RevNVal                    // invalid descriptor: no substream negotiated yet (OPEN)
)

// ErrWouldBlock is returned by Drain in nonblocking mode, at once and
// without checking whether the buffer has emptied; the caller is
// expected to poll and retry, matching the nonblocking-retry
// convention the rest of the surface uses.
var ErrWouldBlock = errors.New("pcm: drain would block")

// Config collects everything Open needs to assemble a Session.
type Config struct {
	Dir              ringbuf.Direction
	RateHz           int
	BytesPerFrame    int64
	PeriodSize       int64
	BufferSize       int64
	Boundary         int64
	AvailMin         int64
	Mode             hwcompat.Mode
	TransportRunning bool

	Data    io.ReadWriter
	Samples []byte

	Ctl   *ctl.Client
	Event event.Descriptor

	// Dispatch delivers pending control-channel property messages
	// (codec delay, client delay, volume...). Called both from the
	// delay estimator's staleness check and from PollRevents.
	Dispatch func()

	// FIFOQueuedBytes reports bytes presently queued in the kernel
	// FIFO, used by the delay snapshot. Optional.
	FIFOQueuedBytes func() int64

	// Logger tags every log line for this session with its Bluetooth
	// address and profile (Open adds both as fields). Defaults to
	// log.Default().
	Logger  *log.Logger
	Address string
	Profile string
}

// Session is one open PCM substream.
type Session struct {
	playback   bool
	periodSize int64
	availMin   int64
	bufferSize int64

	mu    sync.Mutex
	state pcmstate.State

	rb     *ringbuf.Buffer
	engine *transfer.Engine
	dl     *delay.Estimator
	ev     event.Descriptor
	log    *log.Logger

	dispatch func()
}

// Open validates the hardware-compatibility gate and assembles a
// Session in the OPEN state. It does not start the transfer thread —
// that happens on Start.
func Open(cfg Config) (*Session, error) {
	if err := hwcompat.CheckOpen(cfg.Mode, cfg.TransportRunning); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("addr", cfg.Address, "profile", cfg.Profile)

	rb := ringbuf.New(cfg.Dir, cfg.BufferSize, cfg.Boundary)
	dl := delay.New(cfg.Dir == ringbuf.Playback, cfg.RateHz, cfg.BytesPerFrame, cfg.Dispatch)
	eng := transfer.New(transfer.Config{
		Dir:             cfg.Dir,
		RateHz:          cfg.RateHz,
		BytesPerFrame:   cfg.BytesPerFrame,
		PeriodSize:      cfg.PeriodSize,
		BufferSize:      cfg.BufferSize,
		Boundary:        cfg.Boundary,
		AvailMin:        cfg.AvailMin,
		Mode:            cfg.Mode,
		Data:            cfg.Data,
		Samples:         cfg.Samples,
		Ring:            rb,
		Ctl:             cfg.Ctl,
		Event:           cfg.Event,
		Delay:           dl,
		FIFOQueuedBytes: cfg.FIFOQueuedBytes,
		Logger:          logger,
	})

	logger.Info("session opened")

	return &Session{
		playback:   cfg.Dir == ringbuf.Playback,
		periodSize: cfg.PeriodSize,
		availMin:   cfg.AvailMin,
		bufferSize: cfg.BufferSize,
		state:      pcmstate.Open,
		rb:         rb,
		engine:     eng,
		dl:         dl,
		ev:         cfg.Event,
		log:        logger,
		dispatch:   cfg.Dispatch,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() pcmstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st pcmstate.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Prepare resets both ring pointers and moves to PREPARED; called
// after every open and after every drain/stop before the substream
// can run again.
func (s *Session) Prepare() {
	s.rb.Reset()
	s.setState(pcmstate.Prepared)
	s.log.Info("prepared")
}

// Start runs (or re-wakes) the transfer thread and moves to RUNNING.
func (s *Session) Start(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return err
	}
	s.setState(pcmstate.Running)
	s.log.Info("started")
	return nil
}

// Stop joins the transfer thread, resets hw_ptr, and moves to SETUP
// regardless of whether the underlying Drop notification succeeded —
// the substream is stopped from the application's point of view
// either way.
func (s *Session) Stop() error {
	err := s.engine.Stop()
	s.setState(pcmstate.Setup)
	s.log.Info("stopped")
	return err
}

// Pause implements pause(enable). On disconnect during a pause
// request the session moves to DISCONNECTED instead of PAUSED.
func (s *Session) Pause(enable bool) error {
	if enable {
		err := s.engine.RequestPause()
		if errors.Is(err, transfer.ErrDisconnected) {
			s.setState(pcmstate.Disconnected)
			return err
		}
		if err != nil {
			return err
		}
		s.setState(pcmstate.Paused)
		s.log.Info("paused")
		return nil
	}
	err := s.engine.RequestResume()
	s.setState(pcmstate.Running)
	s.log.Info("resumed")
	return err
}

// Drain implements drain(). Capture has nothing to flush, so it is an
// immediate successful move to SETUP. Playback enters DRAINING while
// the transfer thread empties the buffer, then moves to SETUP; in
// nonblocking mode Drain starts the transfer thread and yields
// ErrWouldBlock at once, whether or not the buffer has emptied,
// without changing state out of DRAINING.
func (s *Session) Drain(ctx context.Context, nonblock bool) error {
	if !s.playback {
		s.setState(pcmstate.Setup)
		return nil
	}

	s.setState(pcmstate.Draining)
	err := s.engine.Drain(ctx, nonblock)
	if nonblock && errors.Is(err, ctl.ErrProtocolTimeout) {
		return ErrWouldBlock
	}
	s.setState(pcmstate.Setup)
	s.log.Info("drained", "err", err)
	return err
}

// Close stops the transfer thread and releases the event descriptor.
// The Session must not be used afterward.
func (s *Session) Close() error {
	stopErr := s.engine.Stop()
	evErr := s.ev.Close()
	if stopErr != nil {
		return stopErr
	}
	return evErr
}

// Pointer returns hw_ptr. Per the chosen disconnect contract, a
// terminal transport failure moves the session to DISCONNECTED and
// still returns the last known pointer value rather than an error —
// callers learn about the disconnect through State() or PollRevents,
// not through a pointer-query error.
func (s *Session) Pointer() int64 {
	hw, err := s.engine.Pointer()
	if err != nil {
		s.setState(pcmstate.Disconnected)
		s.log.Warn("pointer queried after disconnect")
	}
	return hw
}

// Delay reports the current delay estimate for the session's state.
func (s *Session) Delay() delay.Result {
	return s.dl.Delay(s.State(), s.rb.ApplPtr())
}

// MarkXRun and MarkSuspended let the host framework's own overrun and
// link-suspend detection (outside this package's scope) drive the
// states the delay estimator and poll surface branch on.
func (s *Session) MarkXRun()      { s.setState(pcmstate.XRun) }
func (s *Session) MarkSuspended() { s.setState(pcmstate.Suspended) }

// NotifyAppl must be called by the application-facing read/write path
// after it advances appl_ptr, so a transfer thread parked idle wakes
// promptly.
func (s *Session) NotifyAppl() { s.engine.NotifyAppl() }

// Ring exposes the underlying pointer pair to the application-facing
// read/write path, which needs it to compute its own copy offsets.
func (s *Session) Ring() *ringbuf.Buffer { return s.rb }

// PollRevents implements the four-step poll dispatch: run any pending
// control-channel property dispatch, drain the event descriptor if
// the caller's poll observed it ready (fired), compute the readiness
// mask for the current state and buffer occupancy, and re-arm the
// descriptor if the substream is still ready so a level-triggered
// poll loop sees it again next cycle.
func (s *Session) PollRevents(fired bool) (Revents, error) {
	if s.dispatch != nil {
		s.dispatch()
	}

	if fired {
		v, err := s.ev.Wait()
		if err != nil {
			return 0, err
		}
		// The descriptor counts: ordinary wakes pending before the
		// disconnect add to the value, so test the sentinel bits.
		if v&event.Disconnect == event.Disconnect {
			s.setState(pcmstate.Disconnected)
			return RevHup, nil
		}
	}

	st := s.State()
	avail := s.rb.Available()

	var mask Revents
	switch st {
	case pcmstate.Running:
		if avail >= s.availMin {
			if s.playback {
				mask |= RevOut
			} else {
				mask |= RevIn
			}
		}
	case pcmstate.Draining:
		if s.playback && avail == s.bufferSize {
			mask |= RevOut
		}
	case pcmstate.XRun, pcmstate.Paused, pcmstate.Suspended:
		mask |= RevErr
	case pcmstate.Open:
		// OPEN has no negotiated hardware parameters yet: not just an
		// error condition but an invalid descriptor to poll on at all.
		mask |= RevErr | RevNVal
	case pcmstate.Disconnected:
		mask |= RevHup
	}

	if mask != 0 {
		s.ev.Signal(event.Wake)
	}
	return mask, nil
}
