package esco

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineFrame(codeSamples, frameIdx int) []int16 {
	out := make([]int16, codeSamples)
	for i := range out {
		phase := 2 * math.Pi * float64(frameIdx*codeSamples+i) / 48.0
		out[i] = int16(8000 * math.Sin(phase))
	}
	return out
}

// feedAndDecodeAll streams wire through dec in frame-sized chunks,
// draining with Decode() between feeds so the fixed-size wire buffer
// (three frames) is never exceeded, and collects every sample
// Decode() produces.
func feedAndDecodeAll(t *testing.T, dec *Framer, wire []byte, frameBytes int) []int16 {
	t.Helper()
	var decoded []int16
	drain := func() {
		for {
			progressed, err := dec.Decode()
			require.NoError(t, err)
			if !progressed {
				return
			}
			decoded = append(decoded, dec.PCMOut()...)
			dec.ConsumePCM(len(dec.PCMOut()))
		}
	}
	for len(wire) > 0 {
		n := frameBytes
		if n > len(wire) {
			n = len(wire)
		}
		require.NoError(t, dec.FeedWire(wire[:n]))
		wire = wire[n:]
		drain()
	}
	drain()
	return decoded
}

func encodeFrames(t *testing.T, backend Backend, numFrames int, skip map[int]bool) []byte {
	t.Helper()
	enc := NewFramer(backend, ConcealOnError)
	cs := backend.CodeSamples()
	var wire []byte
	for i := 0; i < numFrames; i++ {
		require.NoError(t, enc.FeedPCM(sineFrame(cs, i)))
		frame, ok, err := enc.Encode()
		require.NoError(t, err)
		require.True(t, ok)
		if skip[i] {
			continue
		}
		wire = append(wire, frame...)
	}
	return wire
}

func TestEncodeDecodeLosslessFrameCountPreserved(t *testing.T) {
	backend := NewReferenceBackend(MSBC, 120)
	const numFrames = 18

	wire := encodeFrames(t, backend, numFrames, nil)

	dec := NewFramer(backend, ConcealOnError)
	decoded := feedAndDecodeAll(t, dec, wire, dec.FrameBytes())

	require.Equal(t, numFrames*120, len(decoded))
}

func TestDropOneFrameRecoveredByPLC(t *testing.T) {
	backend := NewReferenceBackend(MSBC, 120)
	const numFrames = 18
	const droppedIdx = 2 // "the 3rd frame"

	wire := encodeFrames(t, backend, numFrames, map[int]bool{droppedIdx: true})

	dec := NewFramer(backend, ConcealOnError)
	decoded := feedAndDecodeAll(t, dec, wire, dec.FrameBytes())

	require.Equal(t, numFrames*120, len(decoded))
}

func TestDropFourConsecutiveFramesExceedsRecoveryWindow(t *testing.T) {
	backend := NewReferenceBackend(MSBC, 120)
	const numFrames = 18
	dropStart, dropCount := 5, 4

	skip := map[int]bool{}
	for i := dropStart; i < dropStart+dropCount; i++ {
		skip[i] = true
	}
	wire := encodeFrames(t, backend, numFrames, skip)

	dec := NewFramer(backend, ConcealOnError)
	decoded := feedAndDecodeAll(t, dec, wire, dec.FrameBytes())

	require.Equal(t, (numFrames-dropCount)*120, len(decoded))
}

func TestResetIsIdempotent(t *testing.T) {
	backend := NewReferenceBackend(MSBC, 120)
	f := NewFramer(backend, ConcealOnError)
	require.NoError(t, f.FeedPCM(sineFrame(120, 0)))
	f.Reset()
	f.Reset()
	_, ok, err := f.Encode()
	require.NoError(t, err)
	require.False(t, ok, "buffer should be empty after Reset")
}
