package decoder

import (
	"image"

	"golang.org/x/image/draw"
)

// scaler converts pictures to RGBA, resizing when the output size differs.
// The kernel is rebuilt only when a source or destination dimension changes.
type scaler struct {
	sw, sh int
	dw, dh int
	kernel draw.Scaler
}

func (s *scaler) matches(sw, sh, dw, dh int) bool {
	return s.sw == sw && s.sh == sh && s.dw == dw && s.dh == dh
}

func newScaler(sw, sh, dw, dh int) *scaler {
	s := &scaler{sw: sw, sh: sh, dw: dw, dh: dh}
	if sw != dw || sh != dh {
		s.kernel = draw.BiLinear.NewScaler(dw, dh, sw, sh)
	}
	return s
}

func (s *scaler) convert(dst *image.RGBA, src image.Image) {
	if s.kernel == nil {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	s.kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}
