package pcm

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/samoyed-audio/pcmio/internal/ctl"
	"github.com/samoyed-audio/pcmio/internal/hwcompat"
	"github.com/samoyed-audio/pcmio/internal/pcmstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDescriptor struct {
	signals chan uint64
}

func newTestDescriptor() *testDescriptor {
	return &testDescriptor{signals: make(chan uint64, 64)}
}

func (d *testDescriptor) Signal(v uint64) error {
	select {
	case d.signals <- v:
	default:
	}
	return nil
}
func (d *testDescriptor) Wait() (uint64, error) { return <-d.signals, nil }
func (d *testDescriptor) FD() uintptr           { return 0 }
func (d *testDescriptor) Close() error          { return nil }

func okCtlServer(t *testing.T) (client *ctl.Client, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			if _, err := conn.Write([]byte("OK\n")); err != nil {
				return
			}
		}
	}()
	c, err := ctl.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	return c, func() { ln.Close(); c.Close() }
}

func newPlaybackSession(t *testing.T, applPtr int64) (*Session, net.Conn) {
	t.Helper()
	const bufferSize = 4
	const bpf = 2

	serverSide, clientSide := net.Pipe()
	c, stop := okCtlServer(t)
	t.Cleanup(stop)

	s, err := OpenPlayback(Config{
		RateHz:        8000,
		BytesPerFrame: bpf,
		PeriodSize:    2,
		BufferSize:    bufferSize,
		Boundary:      400,
		AvailMin:      2,
		Mode:          hwcompat.None,
		Data:          clientSide,
		Samples:       make([]byte, bufferSize*bpf),
		Ctl:           c,
		Event:         newTestDescriptor(),
	})
	require.NoError(t, err)
	s.Prepare()
	s.Ring().SetApplPtr(applPtr)
	return s, serverSide
}

func TestSessionLifecycleOpenPrepareStartStop(t *testing.T) {
	s, server := newPlaybackSession(t, 4)
	defer server.Close()

	assert.Equal(t, pcmstate.Prepared, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, pcmstate.Running, s.State())

	// Drain the FIFO side so the transfer thread doesn't block on Stop.
	go func() {
		buf := make([]byte, 8)
		server.Read(buf)
	}()

	require.NoError(t, s.Stop())
	assert.Equal(t, pcmstate.Setup, s.State())
	assert.Equal(t, int64(0), s.Ring().HWPtr())
}

func TestSessionPauseResumeRoundTrip(t *testing.T) {
	s, server := newPlaybackSession(t, 0) // nothing queued: engine parks idle
	defer server.Close()

	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Pause(true))
	assert.Equal(t, pcmstate.Paused, s.State())

	require.NoError(t, s.Pause(false))
	assert.Equal(t, pcmstate.Running, s.State())
}

func TestSessionPointerReflectsDisconnectWithoutError(t *testing.T) {
	s, server := newPlaybackSession(t, 4)

	require.NoError(t, s.Start(context.Background()))
	server.Close() // peer gone: next write fails fatally

	assert.Eventually(t, func() bool {
		s.Pointer()
		return s.State() == pcmstate.Disconnected
	}, 2*time.Second, 10*time.Millisecond)

	// Pointer still returns a value, never an error, once disconnected.
	_ = s.Pointer()
}

func TestSessionDrainCaptureIsImmediateNoop(t *testing.T) {
	const bufferSize = 4
	const bpf = 2

	_, clientSide := net.Pipe()
	c, stop := okCtlServer(t)
	defer stop()

	s, err := OpenCapture(Config{
		RateHz:        8000,
		BytesPerFrame: bpf,
		PeriodSize:    2,
		BufferSize:    bufferSize,
		Boundary:      400,
		AvailMin:      2,
		Mode:          hwcompat.None,
		Data:          clientSide,
		Samples:       make([]byte, bufferSize*bpf),
		Ctl:           c,
		Event:         newTestDescriptor(),
	})
	require.NoError(t, err)
	s.Prepare()

	require.NoError(t, s.Drain(context.Background(), false))
	assert.Equal(t, pcmstate.Setup, s.State())
}

func TestOpenHonorsBusyHWCompatGate(t *testing.T) {
	_, clientSide := net.Pipe()
	c, stop := okCtlServer(t)
	defer stop()

	_, err := OpenPlayback(Config{
		RateHz:           8000,
		BytesPerFrame:    2,
		PeriodSize:       2,
		BufferSize:       4,
		Boundary:         400,
		AvailMin:         2,
		Mode:             hwcompat.Busy,
		TransportRunning: false,
		Data:             clientSide,
		Samples:          make([]byte, 8),
		Ctl:              c,
		Event:            newTestDescriptor(),
	})
	assert.ErrorIs(t, err, hwcompat.ErrDeviceBusy)
}

func TestPollRevEntsSignalsOutReadyOnAvailMin(t *testing.T) {
	s, server := newPlaybackSession(t, 0) // free to write a full buffer
	defer server.Close()

	require.NoError(t, s.Start(context.Background()))

	mask, err := s.PollRevents(false)
	require.NoError(t, err)
	assert.NotZero(t, mask&RevOut)
}

func TestPollRevEntsOpenSetsErrAndNVal(t *testing.T) {
	s, server := newPlaybackSession(t, 0)
	defer server.Close()

	s.setState(pcmstate.Open)

	mask, err := s.PollRevents(false)
	require.NoError(t, err)
	assert.NotZero(t, mask&RevErr)
	assert.NotZero(t, mask&RevNVal)
}
