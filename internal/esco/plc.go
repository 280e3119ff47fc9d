package esco

// PLC synthesizes PCM samples to mask missing wire frames. It keeps
// the last successfully decoded frame and conceals by
// repeating it with a linearly decreasing envelope, the standard cheap
// concealment strategy for a constant-bitrate voice codec: plausible
// enough to keep downstream consumers' sample-count invariant intact
// without claiming to be a real perceptual PLC algorithm (that detail
// belongs to the external codec library this package stands in for).
type PLC struct {
	lastGood []int16
	primed   bool
}

// NewPLC creates an empty concealment context; the frame length is
// given to each Conceal call.
func NewPLC() *PLC {
	return &PLC{}
}

// Learn records the most recently, successfully decoded frame so a
// subsequent Conceal call has material to work from.
func (p *PLC) Learn(frame []int16) {
	p.lastGood = append(p.lastGood[:0], frame...)
	p.primed = true
}

// Conceal synthesizes one frame's worth (codeSamples) of PCM to stand
// in for a lost wire frame. attenuationStep selects how much quieter
// each successively concealed frame is (reset by the next Learn), so
// a run of several losses decays toward silence rather than looping
// the same buzz forever.
func (p *PLC) Conceal(codeSamples int, attenuationStep int) []int16 {
	out := make([]int16, codeSamples)
	if !p.primed || len(p.lastGood) == 0 {
		return out // silence: nothing learned yet to conceal from
	}
	shift := attenuationStep
	if shift > 8 {
		shift = 8
	}
	for i := range out {
		src := p.lastGood[i%len(p.lastGood)]
		out[i] = src >> uint(shift)
	}
	return out
}
