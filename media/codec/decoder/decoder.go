package decoder

import (
	"image"
	"sync"
	"time"

	"github.com/bugVanisher/berrycam/media/av"
	"github.com/rs/zerolog/log"
)

const reopenBackoff = 2 * time.Second

// Stat ...
type Stat struct {
	Codec        string `json:"codec"`
	Decoded      uint64 `json:"decoded"`
	NeedMore     uint64 `json:"need_more"`
	Errors       uint64 `json:"errors"`
	CodecSwitch  uint64 `json:"codec_switch"`
	Flushes      uint64 `json:"flushes"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Unproductive int    `json:"unproductive"`
}

// Decoder turns compressed frames into RGBA, switching between H.264 and
// MJPEG by sniffing each payload.
type Decoder struct {
	opts Options
	lock sync.Mutex

	codec     Codec
	codecType av.CodecType
	openFail  time.Time

	scaler *scaler
	out    av.DecodedFrame
	rgba   image.RGBA

	unproductive int
	closed       bool
	stat         Stat
}

func NewDecoder(opt ...Option) *Decoder {
	opts := Options{
		StallThreshold: DefaultStallThreshold,
		CodecFactory:   DefaultCodecFactory,
	}
	for _, o := range opt {
		o(&opts)
	}
	return &Decoder{
		opts:      opts,
		codecType: av.CodecH264,
	}
}

// Decode decodes one payload. The frame is owned by the decoder and valid
// until the next Decode, Flush or Shutdown.
func (d *Decoder) Decode(data []byte) (*av.DecodedFrame, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed || len(data) == 0 {
		return nil, false
	}

	if typ := Sniff(data); typ != av.CodecUnknown && typ != d.codecType {
		log.Info().Str("sid", d.opts.SID).Str("from", d.codecType.String()).Str("to", typ.String()).Msg("[Decoder] switch codec")
		d.closeCodec()
		d.codecType = typ
		d.stat.CodecSwitch++
	}
	if d.codec == nil && !d.openCodec() {
		d.miss()
		return nil, false
	}

	pic, err := d.codec.Decode(data)
	if err != nil {
		if err == ErrNeedMoreData {
			d.stat.NeedMore++
		} else {
			d.stat.Errors++
			log.Debug().Str("sid", d.opts.SID).Err(err).Int("size", len(data)).Msg("[Decoder] drop frame")
		}
		d.miss()
		return nil, false
	}

	d.unproductive = 0
	d.stat.Decoded++
	return d.toRGBA(pic), true
}

func (d *Decoder) openCodec() bool {
	if !d.openFail.IsZero() && time.Since(d.openFail) < reopenBackoff {
		return false
	}
	codec, err := d.opts.CodecFactory(d.codecType, &d.opts)
	if err != nil {
		if d.openFail.IsZero() {
			log.Error().Str("sid", d.opts.SID).Err(err).Str("codec", d.codecType.String()).Msg("[Decoder] open codec fail")
		}
		d.openFail = time.Now()
		return false
	}
	d.openFail = time.Time{}
	d.codec = codec
	return true
}

func (d *Decoder) closeCodec() {
	if d.codec != nil {
		if err := d.codec.Close(); err != nil {
			log.Warn().Str("sid", d.opts.SID).Err(err).Msg("[Decoder] close codec fail")
		}
		d.codec = nil
	}
	d.openFail = time.Time{}
}

func (d *Decoder) miss() {
	d.unproductive++
	if d.opts.StallThreshold > 0 && d.unproductive == d.opts.StallThreshold {
		log.Warn().Str("sid", d.opts.SID).Int("unproductive", d.unproductive).Str("codec", d.codecType.String()).Msg("[Decoder] decoder stalled")
	}
}

func (d *Decoder) toRGBA(pic image.Image) *av.DecodedFrame {
	b := pic.Bounds()
	sw, sh := b.Dx(), b.Dy()
	dw, dh := sw, sh
	if d.opts.Width > 0 && d.opts.Height > 0 {
		dw, dh = d.opts.Width, d.opts.Height
	}
	if d.scaler == nil || !d.scaler.matches(sw, sh, dw, dh) {
		d.scaler = newScaler(sw, sh, dw, dh)
		log.Debug().Str("sid", d.opts.SID).Int("src_w", sw).Int("src_h", sh).Int("dst_w", dw).Int("dst_h", dh).Msg("[Decoder] rebuild scaler")
	}

	need := dw * dh * 4
	if cap(d.out.Pix) < need {
		d.out.Pix = make([]byte, need)
	}
	d.out.Pix = d.out.Pix[:need]
	d.out.Width, d.out.Height, d.out.Stride = dw, dh, dw*4

	d.rgba = image.RGBA{Pix: d.out.Pix, Stride: d.out.Stride, Rect: image.Rect(0, 0, dw, dh)}
	d.scaler.convert(&d.rgba, pic)

	d.stat.Width, d.stat.Height = dw, dh
	return &d.out
}

// Flush drops buffered codec state so no reference data survives into the next stream.
func (d *Decoder) Flush() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.codec != nil {
		d.codec.Flush()
	}
	d.unproductive = 0
	d.stat.Flushes++
}

// Stalled reports whether the last StallThreshold decodes produced nothing.
func (d *Decoder) Stalled() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.opts.StallThreshold > 0 && d.unproductive >= d.opts.StallThreshold
}

// CodecType is the payload class currently selected.
func (d *Decoder) CodecType() av.CodecType {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.codecType
}

func (d *Decoder) Stat() Stat {
	d.lock.Lock()
	defer d.lock.Unlock()
	s := d.stat
	s.Codec = d.codecType.String()
	s.Unproductive = d.unproductive
	return s
}

// Shutdown releases the codec and scaler. Safe to call more than once.
func (d *Decoder) Shutdown() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.closeCodec()
	d.scaler = nil
	d.out = av.DecodedFrame{}
	d.rgba = image.RGBA{}
}
