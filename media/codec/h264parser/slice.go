package h264parser

import (
	"bytes"
	"fmt"

	"github.com/bugVanisher/berrycam/utils/bits"
)

type SliceType uint

func (self SliceType) String() string {
	switch self {
	case SLICE_P:
		return "P"
	case SLICE_B:
		return "B"
	case SLICE_I:
		return "I"
	}
	return ""
}

const (
	SLICE_P = iota + 1
	SLICE_B
	SLICE_I
)

func sliceHeaderReader(packet []byte) (*bits.GolombBitReader, error) {
	if len(packet) <= 1 {
		return nil, fmt.Errorf("h264parser: packet too short to parse slice header")
	}
	switch NALUType(packet) {
	case 1, 2, 5, 19:
	default:
		return nil, fmt.Errorf("h264parser: nal_unit_type=%d has no slice header", NALUType(packet))
	}
	return &bits.GolombBitReader{R: bytes.NewReader(packet[1:])}, nil
}

// FirstMbInSlice returns first_mb_in_slice; zero marks the first slice of a picture.
func FirstMbInSlice(packet []byte) (uint, error) {
	r, err := sliceHeaderReader(packet)
	if err != nil {
		return 0, err
	}
	return r.ReadExponentialGolombCode()
}

func ParseSliceHeaderFromNALU(packet []byte) (sliceType SliceType, err error) {
	r, err := sliceHeaderReader(packet)
	if err != nil {
		return
	}

	// first_mb_in_slice
	if _, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}

	var u uint
	if u, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}

	switch u {
	case 0, 3, 5, 8:
		sliceType = SLICE_P
	case 1, 6:
		sliceType = SLICE_B
	case 2, 4, 7, 9:
		sliceType = SLICE_I
	default:
		err = fmt.Errorf("h264parser: slice_type=%d invalid", u)
	}
	return
}

// IsIntraAccessUnit reports whether an access unit can start decoding: an IDR or an I slice.
func IsIntraAccessUnit(b []byte) bool {
	nalus, _ := SplitNALUs(b)
	for _, nalu := range nalus {
		if NALUType(nalu) == NALU_IDR {
			return true
		}
		if IsDataNALU(nalu) {
			if typ, err := ParseSliceHeaderFromNALU(nalu); err == nil && typ == SLICE_I {
				return true
			}
		}
	}
	return false
}
