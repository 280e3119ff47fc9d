package hwcompat

// SilenceTracker holds the per-session state silence mode adds to the
// core transfer loop: whether the engine is currently doing real
// transfers ("active") or synthesizing silence, and (capture only)
// whether the initial 1.5-period safety pre-buffer has completed.
type SilenceTracker struct {
	active      bool
	preBuffered bool
}

// NewSilenceTracker starts inactive (synthesizing) until the first
// real data arrives, and — for capture — not yet pre-buffered.
func NewSilenceTracker() *SilenceTracker {
	return &SilenceTracker{}
}

// Active reports whether the engine is currently doing real transfer.
func (s *SilenceTracker) Active() bool { return s.active }

// SetActive toggles between silence-insertion and real transfer.
func (s *SilenceTracker) SetActive(v bool) { s.active = v }

// PreBuffered reports whether capture's initial safety wait is done.
func (s *SilenceTracker) PreBuffered() bool { return s.preBuffered }

// MarkPreBuffered records that the safety wait has completed; this
// only ever transitions false -> true, never back.
func (s *SilenceTracker) MarkPreBuffered() { s.preBuffered = true }

// ShouldPreBufferCapture implements the capture pre-buffering rule:
// before the first real read, if the period is
// smaller than the FIFO size and the FIFO holds fewer than 1.5
// periods, keep inserting silence (into the buffer, not on the wire)
// rather than switching to real reads yet.
func (s *SilenceTracker) ShouldPreBufferCapture(fifoQueuedFrames, periodFrames, fifoCapacityFrames int64) bool {
	if s.preBuffered {
		return false
	}
	if periodFrames >= fifoCapacityFrames {
		// Period doesn't fit the safety margin at all; the rule does
		// not apply, so don't get stuck waiting forever.
		s.MarkPreBuffered()
		return false
	}
	if fifoQueuedFrames >= PreBufferThresholdFrames(periodFrames) {
		s.MarkPreBuffered()
		return false
	}
	return true
}
