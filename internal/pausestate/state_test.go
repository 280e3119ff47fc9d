package pausestate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseHandshake(t *testing.T) {
	m := New()
	assert.Equal(t, Running, m.State())

	m.RequestPause()
	assert.True(t, m.IsPending())

	done := make(chan bool, 1)
	go func() { done <- m.WaitPaused() }()

	// Give the waiter a moment to block before acknowledging, so this
	// exercises the actual wait path rather than a pre-satisfied one.
	time.Sleep(10 * time.Millisecond)
	m.AcknowledgePause()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitPaused did not return after AcknowledgePause")
	}
	assert.Equal(t, Paused, m.State())
}

func TestResumeReturnsToRunning(t *testing.T) {
	m := New()
	m.RequestPause()
	m.AcknowledgePause()
	require.Equal(t, Paused, m.State())

	m.Resume()
	assert.Equal(t, Running, m.State())
}

func TestDisconnectUnblocksWaiter(t *testing.T) {
	m := New()
	m.RequestPause()

	done := make(chan bool, 1)
	go func() { done <- m.WaitPaused() }()

	time.Sleep(10 * time.Millisecond)
	m.Disconnect()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitPaused did not return after Disconnect")
	}
}
