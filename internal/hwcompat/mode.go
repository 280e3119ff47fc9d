// Package hwcompat implements the FIFO "hardware compatibility" modes:
// none, busy and silence reconcile the always-on Bluetooth link with
// the stop/start semantics a local sound card exposes to the host
// framework.
package hwcompat

import (
	"errors"
	"io"
	"time"
)

type Mode int

const (
	None Mode = iota
	Busy
	Silence
)

func (m Mode) String() string {
	switch m {
	case Busy:
		return "busy"
	case Silence:
		return "silence"
	default:
		return "none"
	}
}

// ParseMode validates the `hwcompat` config option.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return None, nil
	case "busy":
		return Busy, nil
	case "silence":
		return Silence, nil
	default:
		return None, errors.New("hwcompat: unknown mode " + s)
	}
}

// ErrDeviceBusy is returned by CheckOpen for busy mode when the
// remote stream is not yet running.
var ErrDeviceBusy = errors.New("hwcompat: device busy")

// CheckOpen implements the open-time gate: busy mode fails fast with
// ErrDeviceBusy while the transport isn't running;
// none leaves the PCM openable but inert (it will simply never reach
// avail_min until the transport starts); silence never blocks open,
// since it always has something to deliver.
func CheckOpen(mode Mode, transportRunning bool) error {
	if mode == Busy && !transportRunning {
		return ErrDeviceBusy
	}
	return nil
}

// Sink is the no-op descriptor playback silence mode flushes the
// ring buffer into while the remote stream isn't running. It is just
// io.Discard under a name that documents its role at call sites.
var Sink io.Writer = io.Discard

// PreBufferThresholdFrames is the minimum capture FIFO depth (in
// frames) silence mode waits for before switching from synthesized
// silence to real reads: 1.5 periods — a tunable heuristic, not a
// protocol contract.
func PreBufferThresholdFrames(periodFrames int64) int64 {
	return periodFrames + periodFrames/2
}

// PeriodDeadline returns the absolute deadline by which one period's
// worth of real data must arrive before silence mode inserts silence
// to complete the period.
func PeriodDeadline(now time.Time, periodFrames int64, rateHz int) time.Time {
	d := time.Duration(periodFrames) * time.Second / time.Duration(rateHz)
	return now.Add(d)
}

// CaptureFIFOCapacityFrames is the minimum capture FIFO sizing under
// silence mode: at least two periods, bounded by the caller-supplied
// OS maximum.
func CaptureFIFOCapacityFrames(periodFrames, osMaxFrames int64) int64 {
	want := 2 * periodFrames
	if want > osMaxFrames {
		return osMaxFrames
	}
	return want
}
