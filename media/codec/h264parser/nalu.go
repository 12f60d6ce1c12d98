package h264parser

import (
	"github.com/bugVanisher/berrycam/utils/bits/pio"
)

const (
	NALU_NON_IDR = 1
	NALU_IDR     = 5
	NALU_SEI     = 6
	NALU_SPS     = 7
	NALU_PPS     = 8
	NALU_AUD     = 9
)

const (
	NALU_RAW = iota
	NALU_AVCC
	NALU_ANNEXB
)

var StartCodeBytes = []byte{0, 0, 0, 1}

func NALUType(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	return int(b[0] & 0x1f)
}

func IsDataNALU(b []byte) bool {
	typ := NALUType(b)
	return typ >= 1 && typ <= 5
}

func IsSpsNALU(b byte) bool {
	return b&0x1f == NALU_SPS
}

func IsPpsNALU(b byte) bool {
	return b&0x1f == NALU_PPS
}

// HasStartCode reports whether b begins with an Annex-B start code.
func HasStartCode(b []byte) bool {
	if len(b) >= 4 && b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 1 {
		return true
	}
	return len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1
}

// SplitNALUs splits an Annex-B or AVCC buffer into NAL units without start codes or lengths.
func SplitNALUs(b []byte) (nalus [][]byte, typ int) {
	if len(b) < 4 {
		return [][]byte{b}, NALU_RAW
	}

	val3 := pio.U24BE(b)
	val4 := pio.U32BE(b)

	if val3 == 1 || val4 == 1 {
		return splitAnnexB(b), NALU_ANNEXB
	}

	// maybe AVCC
	if val4 <= uint32(len(b)) {
		rest := b
		for len(rest) >= 4 {
			n := pio.U32BE(rest)
			rest = rest[4:]
			if n > uint32(len(rest)) {
				break
			}
			nalus = append(nalus, rest[:n])
			rest = rest[n:]
		}
		if len(rest) == 0 {
			return nalus, NALU_AVCC
		}
		nalus = nil
	}

	return [][]byte{b}, NALU_RAW
}

func splitAnnexB(b []byte) (nalus [][]byte) {
	start := -1
	for i := 0; i+2 < len(b); {
		if b[i] != 0 || b[i+1] != 0 {
			i++
			continue
		}
		scLen := 0
		if b[i+2] == 1 {
			scLen = 3
		} else if b[i+2] == 0 && i+3 < len(b) && b[i+3] == 1 {
			scLen = 4
		}
		if scLen == 0 {
			i++
			continue
		}
		if start >= 0 && i > start {
			nalus = append(nalus, b[start:i])
		}
		i += scLen
		start = i
	}
	if start >= 0 && start < len(b) {
		nalus = append(nalus, b[start:])
	}
	return
}

// IsKeyFrame reports whether an Annex-B access unit carries an IDR slice.
func IsKeyFrame(b []byte) bool {
	nalus, _ := SplitNALUs(b)
	for _, nalu := range nalus {
		if NALUType(nalu) == NALU_IDR {
			return true
		}
	}
	return false
}

// FindSPS returns the first SPS NAL unit in an Annex-B buffer.
func FindSPS(b []byte) ([]byte, bool) {
	nalus, typ := SplitNALUs(b)
	if typ == NALU_RAW {
		return nil, false
	}
	for _, nalu := range nalus {
		if len(nalu) > 0 && IsSpsNALU(nalu[0]) {
			return nalu, true
		}
	}
	return nil, false
}

// DeEmulationPrevention strips 0x000003 emulation prevention bytes.
func DeEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for _, c := range data {
		if zeros >= 2 && c == 0x03 {
			zeros = 0
			continue
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, c)
	}
	return out
}
