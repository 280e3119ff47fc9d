// Package esco implements eSCO transparent-data framing (H2 sync
// header + sequence numbers) for mSBC and LC3-SWB, and the
// packet-loss-concealment recovery window that rides on top of it.
// The actual codec compression is an external collaborator; this
// package only frames and synchronizes wire frames around whatever
// codec backend is plugged in.
package esco

import "encoding/binary"

// h2SyncWord occupies the low 12 bits of the 2-byte H2 header.
const h2SyncWord = 0x801

// h2RepetitionTable maps a 2-bit sequence number to its (sn0, sn1)
// repetition-coded pair, each already bit-duplicated: {00,00},
// {11,00}, {00,11}, {11,11}.
var h2RepetitionTable = [4][2]uint16{
	{0b00, 0b00},
	{0b11, 0b00},
	{0b00, 0b11},
	{0b11, 0b11},
}

// EncodeH2 returns the 2-byte little-endian H2 header for sequence
// number seq (0-3, wrapping).
func EncodeH2(seq uint8) [2]byte {
	pair := h2RepetitionTable[seq&0x3]
	v := uint16(h2SyncWord) | (pair[0] << 12) | (pair[1] << 14)
	var out [2]byte
	binary.LittleEndian.PutUint16(out[:], v)
	return out
}

// decodeH2At checks whether buf[off:off+2] holds a structurally valid
// H2 header (correct syncword, both sequence-number pairs internally
// repetition-consistent) and, if so, returns its sequence number.
func decodeH2At(buf []byte, off int) (seq uint8, ok bool) {
	if off+2 > len(buf) {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(buf[off : off+2])
	if v&0x0FFF != h2SyncWord {
		return 0, false
	}
	sn0 := (v >> 12) & 0x3
	sn1 := (v >> 14) & 0x3
	if sn0 != 0b00 && sn0 != 0b11 {
		return 0, false
	}
	if sn1 != 0b00 && sn1 != 0b11 {
		return 0, false
	}
	for s, pair := range h2RepetitionTable {
		if pair[0] == sn0 && pair[1] == sn1 {
			return uint8(s), true
		}
	}
	return 0, false
}

// FindH2 scans buf for the first byte offset holding a structurally
// valid H2 header. It is position-invariant: callers that re-scan
// buf[consumed:] after advancing by exactly the returned offset will
// never skip a valid header and will never report a false one ahead
// of an earlier genuine one.
func FindH2(buf []byte) (offset int, seq uint8, found bool) {
	for i := 0; i+2 <= len(buf); i++ {
		if s, ok := decodeH2At(buf, i); ok {
			return i, s, true
		}
	}
	return 0, 0, false
}

// SeqGap returns the number of frames missing between a previously
// seen sequence number and a newly observed one, modulo 4. A result
// of 0 means consecutive; the framer only attempts PLC recovery for
// gaps of 1-3; a gap that wraps past 3 (i.e. genuinely larger, aliased
// down to 0-3 by the 2-bit field) cannot be distinguished from "no
// loss" and is the caller's problem, not this function's.
func SeqGap(prev, next uint8) uint8 {
	return (next - prev) & 0x3
}
