package decoder

import (
	"image"

	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/pkg/errors"
)

// ErrNeedMoreData means the codec accepted input but has no picture yet.
var ErrNeedMoreData = errors.New("decoder: need more data")

// Codec decodes one compressed payload class into pictures.
type Codec interface {
	Type() av.CodecType
	// Decode submits data. It returns a picture, ErrNeedMoreData, or a decode error.
	// The picture is valid until the next call.
	Decode(data []byte) (image.Image, error)
	// Flush drops all buffered and reference state.
	Flush()
	Close() error
}

// CodecFactory opens a codec for a payload class.
type CodecFactory func(typ av.CodecType, opts *Options) (Codec, error)

// DefaultCodecFactory opens the built-in codecs.
func DefaultCodecFactory(typ av.CodecType, opts *Options) (Codec, error) {
	switch typ {
	case av.CodecMJPEG:
		return NewMJPEGCodec(), nil
	case av.CodecH264:
		return NewH264Codec(opts.FFmpegPath)
	}
	return nil, errs.Wrapf(errs.ErrDecoderUnavailable, "codec %s", typ)
}

// Sniff classifies a payload by its leading bytes.
func Sniff(data []byte) av.CodecType {
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8 {
		return av.CodecMJPEG
	}
	if len(data) >= 4 && data[0] == 0 && data[1] == 0 && (data[2] == 1 || (data[2] == 0 && data[3] == 1)) {
		return av.CodecH264
	}
	return av.CodecUnknown
}
