package esco

import "fmt"

// Name identifies which eSCO transparent codec a Framer frames for.
type Name int

const (
	MSBC Name = iota
	LC3SWB
)

func (n Name) String() string {
	if n == LC3SWB {
		return "LC3-SWB"
	}
	return "mSBC"
}

// Backend is the external codec collaborator: it knows how to turn
// CodeSamples() PCM samples into PayloadBytes() of wire payload and
// back. Real mSBC/LC3-SWB compression lives behind this interface;
// Framer only owns the H2 header and the PLC recovery window around
// it.
type Backend interface {
	Name() Name
	PayloadBytes() int
	CodeSamples() int
	// DelaySamples is the codec's constant algorithmic delay, added by
	// the delay estimator: 73 for mSBC, a library-reported value for
	// LC3-SWB.
	DelaySamples() int
	Encode(pcm []int16) ([]byte, error)
	Decode(payload []byte) ([]int16, error)
}

// payloadBytesFor returns the fixed per-frame payload size: 57 bytes
// for mSBC, 58 for LC3-SWB.
func payloadBytesFor(n Name) int {
	if n == LC3SWB {
		return 58
	}
	return 57
}

// frameBytesFor returns the total wire-frame size including the
// 2-byte H2 header and, for mSBC, the single padding byte bringing it
// to 60 bytes.
func frameBytesFor(n Name) int {
	if n == LC3SWB {
		return 2 + payloadBytesFor(n)
	}
	return 2 + payloadBytesFor(n) + 1 // mSBC pads to 60
}

// referenceBackend is a deterministic, lossy stand-in codec used where
// no real mSBC/LC3-SWB library is wired in (e.g. tests, or a build
// without the external codec dependency). It scalar-quantizes PCM
// samples down to whatever fits PayloadBytes and stretches them back
// out on decode; it preserves sample counts exactly, which is all the
// ring-buffer and PLC machinery in this package cares about.
type referenceBackend struct {
	name         Name
	codeSamples  int
	payloadBytes int
	delaySamples int
}

// NewReferenceBackend builds the stand-in Backend for the given codec
// (codeSamples is the PCM samples per frame the codec's real encoder
// would consume). The reported algorithmic delay is fixed per codec:
// 73 samples for mSBC, 180 for LC3-SWB.
func NewReferenceBackend(name Name, codeSamples int) Backend {
	delay := 73
	if name == LC3SWB {
		delay = 180 // derived from the underlying LC3 library
	}
	return &referenceBackend{
		name:         name,
		codeSamples:  codeSamples,
		payloadBytes: payloadBytesFor(name),
		delaySamples: delay,
	}
}

func (b *referenceBackend) Name() Name         { return b.name }
func (b *referenceBackend) PayloadBytes() int  { return b.payloadBytes }
func (b *referenceBackend) CodeSamples() int   { return b.codeSamples }
func (b *referenceBackend) DelaySamples() int  { return b.delaySamples }

func (b *referenceBackend) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != b.codeSamples {
		return nil, fmt.Errorf("esco: encode expects %d samples, got %d", b.codeSamples, len(pcm))
	}
	out := make([]byte, b.payloadBytes)
	step := float64(len(pcm)) / float64(b.payloadBytes)
	for i := 0; i < b.payloadBytes; i++ {
		s := pcm[int(float64(i)*step)]
		out[i] = byte(s>>8) + 0x80 // coarse 8-bit quantization
	}
	return out, nil
}

func (b *referenceBackend) Decode(payload []byte) ([]int16, error) {
	if len(payload) != b.payloadBytes {
		return nil, fmt.Errorf("esco: decode expects %d payload bytes, got %d", b.payloadBytes, len(payload))
	}
	out := make([]int16, b.codeSamples)
	step := float64(b.payloadBytes) / float64(b.codeSamples)
	for i := range out {
		q := payload[int(float64(i)*step)]
		out[i] = int16(q-0x80) << 8
	}
	return out, nil
}
