package h264parser

// AUSplitter regroups an Annex-B byte stream into access units.
// Each emitted unit is rewritten with 4-byte start codes.
type AUSplitter struct {
	buf      []byte
	scanFrom int
	naluAt   int // start of the pending nal unit payload, -1 before the first start code

	au     []byte
	hasVCL bool
	key    bool
}

func NewAUSplitter() *AUSplitter {
	return &AUSplitter{naluAt: -1}
}

// Write feeds stream bytes and calls emit for each completed access unit.
// The au slice is only valid during the callback.
func (s *AUSplitter) Write(p []byte, emit func(au []byte, key bool)) {
	s.buf = append(s.buf, p...)
	i := s.scanFrom
	for i+2 < len(s.buf) {
		if s.buf[i] != 0 || s.buf[i+1] != 0 || s.buf[i+2] != 1 {
			i++
			continue
		}
		end := i
		if end > 0 && s.buf[end-1] == 0 {
			end--
		}
		if s.naluAt >= 0 && end > s.naluAt {
			s.addNALU(s.buf[s.naluAt:end], emit)
		}
		i += 3
		s.naluAt = i
	}
	s.scanFrom = i

	// compact consumed bytes
	keep := s.naluAt
	if keep < 0 {
		keep = len(s.buf) - 3
		if keep < 0 {
			keep = 0
		}
	}
	if keep > 0 {
		n := copy(s.buf, s.buf[keep:])
		s.buf = s.buf[:n]
		s.scanFrom -= keep
		if s.naluAt >= 0 {
			s.naluAt -= keep
		}
	}
}

// Flush emits whatever is pending, treating the tail as a complete nal unit.
func (s *AUSplitter) Flush(emit func(au []byte, key bool)) {
	if s.naluAt >= 0 && s.naluAt < len(s.buf) {
		s.addNALU(s.buf[s.naluAt:], emit)
	}
	s.emitAU(emit)
	s.Reset()
}

// Reset drops all buffered state.
func (s *AUSplitter) Reset() {
	s.buf = s.buf[:0]
	s.scanFrom = 0
	s.naluAt = -1
	s.au = s.au[:0]
	s.hasVCL = false
	s.key = false
}

func (s *AUSplitter) addNALU(nalu []byte, emit func(au []byte, key bool)) {
	typ := NALUType(nalu)
	if s.hasVCL && s.startsNewAU(nalu, typ) {
		s.emitAU(emit)
	}
	s.au = append(s.au, StartCodeBytes...)
	s.au = append(s.au, nalu...)
	if IsDataNALU(nalu) {
		s.hasVCL = true
		if typ == NALU_IDR {
			s.key = true
		}
	}
}

func (s *AUSplitter) startsNewAU(nalu []byte, typ int) bool {
	switch {
	case typ == NALU_AUD || typ == NALU_SPS || typ == NALU_PPS || typ == NALU_SEI:
		return true
	case typ >= 14 && typ <= 18:
		return true
	case IsDataNALU(nalu):
		mb, err := FirstMbInSlice(nalu)
		return err == nil && mb == 0
	}
	return false
}

func (s *AUSplitter) emitAU(emit func(au []byte, key bool)) {
	if len(s.au) > 0 && s.hasVCL {
		emit(s.au, s.key)
	}
	s.au = s.au[:0]
	s.hasVCL = false
	s.key = false
}
