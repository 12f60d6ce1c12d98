package decoder

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/av"
)

// MJPEGCodec decodes each payload as a standalone JPEG.
type MJPEGCodec struct {
	r bytes.Reader
}

func NewMJPEGCodec() *MJPEGCodec {
	return &MJPEGCodec{}
}

func (c *MJPEGCodec) Type() av.CodecType {
	return av.CodecMJPEG
}

func (c *MJPEGCodec) Decode(data []byte) (image.Image, error) {
	c.r.Reset(data)
	img, err := jpeg.Decode(&c.r)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrInvalidPayload, "jpeg: %v", err)
	}
	return img, nil
}

// Flush is a no-op; JPEG frames carry no cross-frame state.
func (c *MJPEGCodec) Flush() {}

func (c *MJPEGCodec) Close() error {
	c.r.Reset(nil)
	return nil
}
