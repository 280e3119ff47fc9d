package delay

import (
	"testing"
	"time"

	"github.com/samoyed-audio/pcmio/internal/pcmstate"
	"github.com/stretchr/testify/assert"
)

func TestPlaybackDelayDecaysOverTime(t *testing.T) {
	e := New(true, 1000, 4, nil)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 0, FIFOBytes: 0})

	r1 := e.Delay(pcmstate.Running, 500)
	assert.InDelta(t, 500, r1.Frames, 1)

	time.Sleep(50 * time.Millisecond)
	r2 := e.Delay(pcmstate.Running, 500)
	assert.Less(t, r2.Frames, r1.Frames)
}

func TestPlaybackDelayNeverNegative(t *testing.T) {
	e := New(true, 1000, 4, nil)
	e.Publish(Snapshot{At: time.Now().Add(-time.Second), HWPtr: 0, FIFOBytes: 0})
	r := e.Delay(pcmstate.Running, 10)
	assert.GreaterOrEqual(t, r.Frames, int64(0))
}

func TestPlaybackDelayAddsCodecAndClientAndExtra(t *testing.T) {
	e := New(true, 10000, 4, nil)
	e.SetCodecDelay(100)  // 10ms at 10000 rate-> rate*100/10000=100 frames
	e.SetClientDelay(100) // another 100 frames
	e.SetExtraDelay(50)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 0, FIFOBytes: 0})

	r := e.Delay(pcmstate.Running, 0)
	assert.Equal(t, int64(250), r.Frames)
}

func TestCaptureDelayIsBufferFill(t *testing.T) {
	e := New(false, 1000, 4, nil)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 300, FIFOBytes: 0})
	r := e.Delay(pcmstate.Running, 100)
	assert.Equal(t, int64(200), r.Frames)
}

func TestCaptureDelayClampsAtZero(t *testing.T) {
	e := New(false, 1000, 4, nil)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 100, FIFOBytes: 0})
	r := e.Delay(pcmstate.Running, 500)
	assert.Equal(t, int64(0), r.Frames)
}

func TestPausedReturnsCapturedDelay(t *testing.T) {
	e := New(true, 1000, 4, nil)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 0, FIFOBytes: 2000})
	e.CapturePausedDelay(100)

	// Advance time and change the live snapshot; paused delay must not
	// move: it must stay pinned to the value captured at pause time.
	time.Sleep(20 * time.Millisecond)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 999, FIFOBytes: 0})

	r := e.Delay(pcmstate.Paused, 100)
	assert.Equal(t, e.pausedDelay, r.Frames)
}

func TestXRunAndSuspendSignals(t *testing.T) {
	e := New(true, 1000, 4, nil)
	e.Publish(Snapshot{At: time.Now(), HWPtr: 0, FIFOBytes: 0})

	r := e.Delay(pcmstate.XRun, 0)
	assert.True(t, r.XRun)

	r2 := e.Delay(pcmstate.Suspended, 0)
	assert.True(t, r2.Suspend)
}

func TestStaleDispatchTriggersSynchronousDispatch(t *testing.T) {
	calls := 0
	e := New(true, 1000, 4, func() { calls++ })
	e.mu.Lock()
	e.lastDispatch = time.Now().Add(-2 * time.Second)
	e.mu.Unlock()

	e.Delay(pcmstate.Running, 0)
	assert.Equal(t, 1, calls)

	// Immediately after, dispatch is fresh, so a second call should
	// not dispatch again.
	e.Delay(pcmstate.Running, 0)
	assert.Equal(t, 1, calls)
}
