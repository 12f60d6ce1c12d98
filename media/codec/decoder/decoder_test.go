package decoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os/exec"
	"testing"
	"time"

	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/codec/h264parser"
	"github.com/stretchr/testify/require"
)

func jpegFrame(t *testing.T, w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.Nil(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// fakeCodec records what it was fed and returns a picture for every payload
// ending in 0xEE.
type fakeCodec struct {
	typ     av.CodecType
	fed     [][]byte
	flushes int
	closed  bool
}

func (c *fakeCodec) Type() av.CodecType { return c.typ }

func (c *fakeCodec) Decode(data []byte) (image.Image, error) {
	c.fed = append(c.fed, append([]byte(nil), data...))
	if data[len(data)-1] != 0xEE {
		return nil, ErrNeedMoreData
	}
	return image.NewGray(image.Rect(0, 0, 4, 2)), nil
}

func (c *fakeCodec) Flush() {
	c.flushes++
	c.fed = nil
}

func (c *fakeCodec) Close() error {
	c.closed = true
	return nil
}

type fakeFactory struct {
	opened []*fakeCodec
}

func (f *fakeFactory) open(typ av.CodecType, _ *Options) (Codec, error) {
	c := &fakeCodec{typ: typ}
	f.opened = append(f.opened, c)
	return c, nil
}

func TestSniff(t *testing.T) {
	require.Equal(t, av.CodecMJPEG, Sniff([]byte{0xFF, 0xD8}))
	require.Equal(t, av.CodecH264, Sniff([]byte{0, 0, 0, 1, 0x67}))
	require.Equal(t, av.CodecH264, Sniff([]byte{0, 0, 1, 0x65}))
	require.Equal(t, av.CodecUnknown, Sniff([]byte{0, 0, 1}))
	require.Equal(t, av.CodecUnknown, Sniff([]byte{0x47, 0x40, 0x00, 0x10}))
}

func TestDecodeMJPEG(t *testing.T) {
	d := NewDecoder()
	defer d.Shutdown()

	frame, ok := d.Decode(jpegFrame(t, 32, 16, color.RGBA{R: 255, A: 255}))
	require.True(t, ok)
	require.Equal(t, 32, frame.Width)
	require.Equal(t, 16, frame.Height)
	require.Equal(t, 32*4, frame.Stride)
	require.Equal(t, 32*16*4, len(frame.Pix))
	// JPEG is lossy; red must dominate
	require.Greater(t, int(frame.Pix[0]), 200)
	require.Less(t, int(frame.Pix[1]), 60)
	require.Equal(t, byte(255), frame.Pix[3])
	require.Equal(t, av.CodecMJPEG, d.CodecType())
}

func TestDecodeReusesOutputBuffer(t *testing.T) {
	d := NewDecoder()
	defer d.Shutdown()

	big, ok := d.Decode(jpegFrame(t, 32, 32, color.White))
	require.True(t, ok)
	first := &big.Pix[0]

	small, ok := d.Decode(jpegFrame(t, 16, 16, color.Black))
	require.True(t, ok)
	require.Equal(t, 16*16*4, len(small.Pix))
	require.True(t, first == &small.Pix[0])
}

func TestDecodeScalesToOutputSize(t *testing.T) {
	d := NewDecoder(WithOutputSize(8, 4))
	defer d.Shutdown()

	frame, ok := d.Decode(jpegFrame(t, 64, 32, color.White))
	require.True(t, ok)
	require.Equal(t, 8, frame.Width)
	require.Equal(t, 4, frame.Height)
	require.Equal(t, 8*4*4, len(frame.Pix))
}

func TestDecodeDropsCorruptJPEG(t *testing.T) {
	d := NewDecoder()
	defer d.Shutdown()

	_, ok := d.Decode([]byte{0xFF, 0xD8, 0x00, 0x01, 0x02})
	require.False(t, ok)
	require.Equal(t, uint64(1), d.Stat().Errors)

	_, ok = d.Decode(jpegFrame(t, 8, 8, color.White))
	require.True(t, ok)
}

func TestCodecSwitch(t *testing.T) {
	f := &fakeFactory{}
	d := NewDecoder(WithCodecFactory(f.open))
	defer d.Shutdown()

	_, ok := d.Decode([]byte{0, 0, 0, 1, 0x65, 0xEE})
	require.True(t, ok)
	require.Equal(t, 1, len(f.opened))
	require.Equal(t, av.CodecH264, f.opened[0].typ)

	_, ok = d.Decode([]byte{0xFF, 0xD8, 0xEE})
	require.True(t, ok)
	require.Equal(t, 2, len(f.opened))
	require.True(t, f.opened[0].closed)
	require.Equal(t, av.CodecMJPEG, f.opened[1].typ)

	// unknown payloads stay on the open codec
	_, ok = d.Decode([]byte{0x12, 0x34, 0xEE})
	require.True(t, ok)
	require.Equal(t, 2, len(f.opened))
	require.Equal(t, 2, len(f.opened[1].fed))
	require.Equal(t, uint64(1), d.Stat().CodecSwitch)
}

func TestFlushIsolatesStreams(t *testing.T) {
	f := &fakeFactory{}
	d := NewDecoder(WithCodecFactory(f.open))
	defer d.Shutdown()

	_, ok := d.Decode([]byte{0, 0, 0, 1, 0x41, 0x01})
	require.False(t, ok)
	d.Flush()
	require.Equal(t, 1, f.opened[0].flushes)
	require.Equal(t, 0, len(f.opened[0].fed))

	_, ok = d.Decode([]byte{0, 0, 0, 1, 0x65, 0xEE})
	require.True(t, ok)
	require.Equal(t, [][]byte{{0, 0, 0, 1, 0x65, 0xEE}}, f.opened[0].fed)
}

func TestStallDetection(t *testing.T) {
	f := &fakeFactory{}
	d := NewDecoder(WithCodecFactory(f.open), WithStallThreshold(3))
	defer d.Shutdown()

	for i := 0; i < 2; i++ {
		d.Decode([]byte{0, 0, 0, 1, 0x41})
	}
	require.False(t, d.Stalled())
	d.Decode([]byte{0, 0, 0, 1, 0x41})
	require.True(t, d.Stalled())

	_, ok := d.Decode([]byte{0, 0, 0, 1, 0x65, 0xEE})
	require.True(t, ok)
	require.False(t, d.Stalled())

	for i := 0; i < 3; i++ {
		d.Decode([]byte{0, 0, 0, 1, 0x41})
	}
	require.True(t, d.Stalled())
	d.Flush()
	require.False(t, d.Stalled())
}

func TestShutdownIsIdempotent(t *testing.T) {
	f := &fakeFactory{}
	d := NewDecoder(WithCodecFactory(f.open))
	_, ok := d.Decode([]byte{0xFF, 0xD8, 0xEE})
	require.True(t, ok)
	d.Shutdown()
	d.Shutdown()
	require.True(t, f.opened[0].closed)
	_, ok = d.Decode([]byte{0xFF, 0xD8, 0xEE})
	require.False(t, ok)
}

func TestDecodeH264WithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	out, err := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10", "-frames:v", "5",
		"-bf", "0", "-g", "5", "-f", "h264", "pipe:1").Output()
	if err != nil || len(out) == 0 {
		t.Skip("ffmpeg has no h264 encoder")
	}

	var aus [][]byte
	s := h264parser.NewAUSplitter()
	collect := func(au []byte, key bool) { aus = append(aus, append([]byte(nil), au...)) }
	s.Write(out, collect)
	s.Flush(collect)
	require.Greater(t, len(aus), 1)

	d := NewDecoder()
	defer d.Shutdown()
	var frame *av.DecodedFrame
	ok := false
	for _, au := range aus {
		if frame, ok = d.Decode(au); ok {
			break
		}
	}
	aud := []byte{0, 0, 0, 1, 0x09, 0xF0}
	deadline := time.Now().Add(3 * time.Second)
	for !ok && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		frame, ok = d.Decode(aud)
	}
	require.True(t, ok)
	require.Equal(t, 64, frame.Width)
	require.Equal(t, 48, frame.Height)
	require.Equal(t, av.CodecH264, d.CodecType())
}
