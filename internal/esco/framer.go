package esco

import "errors"

// DecodeErrorPolicy selects what happens when the codec backend fails
// to decode a payload whose H2 header looked valid. The default keeps
// the sample-count invariant for downstream consumers by concealing;
// callers that need to know about the underlying error can opt into
// surfacing it instead.
type DecodeErrorPolicy int

const (
	ConcealOnError DecodeErrorPolicy = iota
	SurfaceError
)

// ErrBufferFull is returned by FeedWire when the fixed-size wire
// buffer has no room; the caller should Decode() to drain first.
var ErrBufferFull = errors.New("esco: fixed-size buffer full")

// Framer frames PCM into eSCO wire frames and back, synchronizing on
// H2 headers and concealing lost frames. One Framer handles one
// direction's worth of buffering but exposes both Encode and Decode,
// since the two fixed linear buffers it owns are independent.
type Framer struct {
	backend     Backend
	frameBytes  int
	padded      bool
	errorPolicy DecodeErrorPolicy

	pcmIn    []int16 // buffered PCM awaiting Encode
	maxPCMIn int

	wireIn    []byte // buffered wire bytes awaiting Decode
	maxWireIn int

	pcmOut    []int16 // decoded PCM awaiting the caller
	maxPCMOut int

	seq     uint8 // next sequence number to emit on Encode
	lastSeq uint8 // last sequence number accepted on Decode
	init    bool  // idempotent-init guard
	plc     *PLC
	armed   bool // sequence latch: have we seen a first real frame yet?
}

// NewFramer builds a Framer around the given codec backend, sized for
// three frames of wire data and six frames of PCM.
func NewFramer(backend Backend, errorPolicy DecodeErrorPolicy) *Framer {
	f := &Framer{backend: backend, errorPolicy: errorPolicy}
	f.frameBytes = frameBytesFor(backend.Name())
	f.padded = backend.Name() == MSBC
	f.maxWireIn = 3 * f.frameBytes
	f.maxPCMIn = 6 * backend.CodeSamples()
	f.maxPCMOut = 6 * backend.CodeSamples()
	f.plc = NewPLC()
	f.Reset()
	return f
}

// Reset reinitializes sequence tracking and buffers; idempotent.
func (f *Framer) Reset() {
	f.pcmIn = f.pcmIn[:0]
	f.wireIn = f.wireIn[:0]
	f.pcmOut = f.pcmOut[:0]
	f.seq = 0
	f.armed = false
	f.init = true
}

// FrameBytes returns the total wire-frame size (header + payload +
// any padding).
func (f *Framer) FrameBytes() int { return f.frameBytes }

// CodeSamples returns the codec's PCM samples per frame.
func (f *Framer) CodeSamples() int { return f.backend.CodeSamples() }

// DelaySamples returns the codec's constant algorithmic delay.
func (f *Framer) DelaySamples() int { return f.backend.DelaySamples() }

// FeedPCM appends samples to the encode-side input buffer.
func (f *Framer) FeedPCM(samples []int16) error {
	if len(f.pcmIn)+len(samples) > f.maxPCMIn {
		return ErrBufferFull
	}
	f.pcmIn = append(f.pcmIn, samples...)
	return nil
}

// Encode produces one wire frame once at least CodeSamples() of PCM
// is buffered.
func (f *Framer) Encode() ([]byte, bool, error) {
	cs := f.backend.CodeSamples()
	if len(f.pcmIn) < cs {
		return nil, false, nil
	}
	payload, err := f.backend.Encode(f.pcmIn[:cs])
	if err != nil {
		return nil, false, err
	}
	f.pcmIn = append(f.pcmIn[:0], f.pcmIn[cs:]...)

	header := EncodeH2(f.seq)
	f.seq = (f.seq + 1) & 0x3

	out := make([]byte, 0, f.frameBytes)
	out = append(out, header[:]...)
	out = append(out, payload...)
	if f.padded {
		out = append(out, 0)
	}
	return out, true, nil
}

// FeedWire appends raw bytes to the decode-side input buffer.
func (f *Framer) FeedWire(b []byte) error {
	if len(f.wireIn)+len(b) > f.maxWireIn {
		return ErrBufferFull
	}
	f.wireIn = append(f.wireIn, b...)
	return nil
}

// PCMOut returns the decoded PCM currently buffered for the caller.
func (f *Framer) PCMOut() []int16 { return f.pcmOut }

// ConsumePCM removes the first n samples from the output buffer,
// after the caller has copied them out.
func (f *Framer) ConsumePCM(n int) {
	f.pcmOut = append(f.pcmOut[:0], f.pcmOut[n:]...)
}

// Decode performs one unit of decode work: skip to the next valid H2
// header, recover 1-3 missing frames via PLC if the sequence gap
// indicates loss within the recovery window, and decode the frame at
// the header (or conceal/surface on a codec error). It returns false
// when it cannot make progress — either because no complete frame is
// available yet, or because the output buffer has no room — the
// decoder defers work rather than overflow output.
func (f *Framer) Decode() (bool, error) {
	cs := f.backend.CodeSamples()
	if len(f.pcmOut)+cs > f.maxPCMOut {
		return false, nil
	}

	off, seq, found := FindH2(f.wireIn)
	if !found {
		return false, nil
	}
	if off+f.frameBytes > len(f.wireIn) {
		return false, nil // header seen, but frame not fully arrived
	}

	if !f.armed {
		f.armed = true
		return f.decodeFrameAt(off, seq)
	}

	// gap counts frames missing between the last frame accepted and
	// this one, aliased modulo 4 by the 2-bit sequence field. A gap of
	// exactly 4 (or any multiple of 4) is indistinguishable from no
	// loss at all and is therefore not concealed — a dropped run of
	// exactly 4 consecutive frames is indistinguishable from no drop.
	expectedNext := (f.lastSeq + 1) & 0x3
	gap := SeqGap(expectedNext, seq)
	if gap == 0 {
		return f.decodeFrameAt(off, seq)
	}
	if f.maxPCMOut-len(f.pcmOut) < cs*int(gap) {
		return false, nil // can't fit the concealment run yet
	}
	for i := uint8(0); i < gap; i++ {
		f.pcmOut = append(f.pcmOut, f.plc.Conceal(cs, int(i)+1)...)
	}
	return f.decodeFrameAt(off, seq)
}

func (f *Framer) decodeFrameAt(off int, seq uint8) (bool, error) {
	header := off
	payload := f.wireIn[header+2 : header+2+f.backend.PayloadBytes()]

	pcm, err := f.backend.Decode(payload)
	if err != nil {
		// Advance one byte past the broken header and either conceal
		// or surface, per the configured error policy.
		f.wireIn = append(f.wireIn[:0], f.wireIn[header+1:]...)
		f.lastSeq = seq
		if f.errorPolicy == SurfaceError {
			return false, err
		}
		f.pcmOut = append(f.pcmOut, f.plc.Conceal(f.backend.CodeSamples(), 1)...)
		return true, nil
	}

	f.plc.Learn(pcm)
	f.pcmOut = append(f.pcmOut, pcm...)
	f.lastSeq = seq
	f.wireIn = append(f.wireIn[:0], f.wireIn[header+f.frameBytes:]...)
	return true, nil
}
