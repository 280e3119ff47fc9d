package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalWaitRoundTrip(t *testing.T) {
	d, err := New()
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Signal(Wake))

	done := make(chan uint64, 1)
	go func() {
		v, err := d.Wait()
		require.NoError(t, err)
		done <- v
	}()

	select {
	case v := <-done:
		require.Equal(t, Wake, v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestDisconnectSentinelRoundTrips(t *testing.T) {
	d, err := New()
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Signal(Disconnect))

	v, err := d.Wait()
	require.NoError(t, err)
	require.Equal(t, Disconnect, v)
}
