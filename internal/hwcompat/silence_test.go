package hwcompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOpenBusyModeFailsWhenNotRunning(t *testing.T) {
	assert.ErrorIs(t, CheckOpen(Busy, false), ErrDeviceBusy)
	assert.NoError(t, CheckOpen(Busy, true))
}

func TestCheckOpenNoneAndSilenceNeverBlockOpen(t *testing.T) {
	assert.NoError(t, CheckOpen(None, false))
	assert.NoError(t, CheckOpen(Silence, false))
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"": None, "none": None, "busy": Busy, "silence": Silence} {
		m, err := ParseMode(s)
		assert.NoError(t, err)
		assert.Equal(t, want, m)
	}
	_, err := ParseMode("bogus")
	assert.Error(t, err)
}

func TestPreBufferThresholdIsOneAndAHalfPeriods(t *testing.T) {
	assert.Equal(t, int64(150), PreBufferThresholdFrames(100))
}

func TestCaptureFIFOCapacityBoundedByOSMax(t *testing.T) {
	assert.Equal(t, int64(200), CaptureFIFOCapacityFrames(100, 1000))
	assert.Equal(t, int64(50), CaptureFIFOCapacityFrames(100, 50))
}

func TestShouldPreBufferCaptureTransitionsOnceThresholdMet(t *testing.T) {
	s := NewSilenceTracker()
	periodFrames := int64(100)
	fifoCap := CaptureFIFOCapacityFrames(periodFrames, 10000)

	assert.True(t, s.ShouldPreBufferCapture(0, periodFrames, fifoCap))
	assert.False(t, s.PreBuffered())

	assert.False(t, s.ShouldPreBufferCapture(PreBufferThresholdFrames(periodFrames), periodFrames, fifoCap))
	assert.True(t, s.PreBuffered())

	// Once pre-buffered, it stays that way even if queued frames drop.
	assert.False(t, s.ShouldPreBufferCapture(0, periodFrames, fifoCap))
}
