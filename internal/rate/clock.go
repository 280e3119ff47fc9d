// Package rate paces the transfer thread against the nominal sample
// rate using absolute-time sleeps anchored at the start of a transfer
// session.
package rate

import "time"

// Clock anchors a monotonic start time and tells the caller how long
// to sleep so that, by the time it wakes, exactly the requested number
// of frames will have been "produced" at rate frames/sec.
type Clock struct {
	rate      int
	anchor    time.Time
	produced  int64
	sleepFunc func(time.Duration)
	nowFunc   func() time.Time
}

// New creates a Clock for the given nominal sample rate (Hz).
func New(rateHz int) *Clock {
	if rateHz <= 0 {
		panic("rate: rateHz must be positive")
	}
	c := &Clock{rate: rateHz, sleepFunc: time.Sleep, nowFunc: time.Now}
	c.Reanchor()
	return c
}

// Reanchor resets the clock's origin to now with zero frames produced
// so far. Called on start and on resume from pause, so paced output
// never tries to catch up for time spent paused.
func (c *Clock) Reanchor() {
	c.anchor = c.nowFunc()
	c.produced = 0
}

// Pace blocks until the frames produced so far (including this call)
// should have been produced at the nominal rate, then records them as
// produced. It is a no-op (but still advances the accounting) if the
// deadline has already passed — the clock never sleeps negative
// durations, nor does it try to "catch up" by speeding up output.
func (c *Clock) Pace(frames int64) {
	c.produced += frames
	deadline := c.anchor.Add(c.durationFor(c.produced))
	if d := deadline.Sub(c.nowFunc()); d > 0 {
		c.sleepFunc(d)
	}
}

// PeriodDeadline returns the absolute time by which `frames` more
// frames should have been produced, without advancing the clock's
// accounting. Used by silence HW-compat mode to compute a per-period
// deadline for inserting silence.
func (c *Clock) PeriodDeadline(framesFromNow int64) time.Time {
	return c.nowFunc().Add(c.durationFor(framesFromNow))
}

func (c *Clock) durationFor(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(c.rate)
}

// Rate returns the nominal sample rate.
func (c *Clock) Rate() int { return c.rate }
