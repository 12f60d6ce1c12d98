package decoder

import (
	"bufio"
	"image"
	"io"
	"os/exec"
	"sync"

	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/codec/h264parser"
	"github.com/rs/zerolog/log"
)

const pictureBacklog = 2

// H264Codec decodes Annex-B access units through an ffmpeg child process.
// The process is (re)started from an SPS so the output geometry is known.
type H264Codec struct {
	ffmpegPath string

	proc   *ffmpegProc
	width  int
	height int
	synced bool // an intra access unit has been written since start

	last []byte
}

// NewH264Codec checks that ffmpeg is runnable. The process starts on the first SPS.
func NewH264Codec(ffmpegPath string) (*H264Codec, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrDecoderUnavailable, "ffmpeg not found: %s", ffmpegPath)
	}
	return &H264Codec{ffmpegPath: path}, nil
}

func (c *H264Codec) Type() av.CodecType {
	return av.CodecH264
}

func (c *H264Codec) Decode(data []byte) (image.Image, error) {
	if c.last != nil && c.proc != nil {
		c.proc.recycle(c.last)
		c.last = nil
	}

	if spsNALU, ok := h264parser.FindSPS(data); ok {
		sps, err := h264parser.ParseSPS(spsNALU)
		if err == nil && sps.Width > 0 && sps.Height > 0 {
			w, h := int(sps.Width), int(sps.Height)
			if c.proc == nil || w != c.width || h != c.height {
				if c.proc != nil {
					log.Info().Int("width", w).Int("height", h).Msg("[Decoder] h264 geometry changed, restart ffmpeg")
				}
				if err := c.start(w, h); err != nil {
					return nil, err
				}
			}
		}
	}
	if c.proc == nil {
		return nil, ErrNeedMoreData
	}
	if !c.synced {
		if !h264parser.IsIntraAccessUnit(data) {
			return nil, ErrNeedMoreData
		}
		c.synced = true
	}
	if err := c.proc.write(data); err != nil {
		log.Warn().Err(err).Msg("[Decoder] ffmpeg write fail")
		c.stop()
		return nil, ErrNeedMoreData
	}

	pic, ok := c.proc.latest()
	if !ok {
		return nil, ErrNeedMoreData
	}
	c.last = pic
	return yuv420(pic, c.width, c.height), nil
}

// Flush kills the process; decoding resumes at the next SPS and intra unit.
func (c *H264Codec) Flush() {
	c.stop()
}

func (c *H264Codec) Close() error {
	c.stop()
	return nil
}

func (c *H264Codec) start(w, h int) error {
	c.stop()
	proc, err := startFFmpeg(c.ffmpegPath, w, h)
	if err != nil {
		return err
	}
	c.proc = proc
	c.width, c.height = w, h
	c.synced = false
	return nil
}

func (c *H264Codec) stop() {
	if c.proc != nil {
		c.proc.close()
		c.proc = nil
	}
	c.last = nil
	c.synced = false
}

func yuv420(pic []byte, w, h int) *image.YCbCr {
	cw, ch := (w+1)/2, (h+1)/2
	ySize := w * h
	cSize := cw * ch
	return &image.YCbCr{
		Y:              pic[:ySize],
		Cb:             pic[ySize : ySize+cSize],
		Cr:             pic[ySize+cSize : ySize+2*cSize],
		YStride:        w,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}
}

type ffmpegProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames chan []byte
	free   chan []byte
	done   chan struct{}
	once   sync.Once
}

func startFFmpeg(path string, w, h int) (*ffmpegProc, error) {
	cmd := exec.Command(path,
		"-hide_banner", "-loglevel", "error",
		"-fflags", "nobuffer", "-flags", "low_delay",
		"-probesize", "32", "-analyzeduration", "0",
		"-f", "h264", "-i", "pipe:0",
		"-f", "rawvideo", "-pix_fmt", "yuv420p", "pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.Wrapf(errs.ErrDecoderUnavailable, "stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrapf(errs.ErrDecoderUnavailable, "stdout pipe: %v", err)
	}
	if err = cmd.Start(); err != nil {
		return nil, errs.Wrapf(errs.ErrDecoderUnavailable, "start ffmpeg: %v", err)
	}
	p := &ffmpegProc{
		cmd:    cmd,
		stdin:  stdin,
		frames: make(chan []byte, pictureBacklog),
		free:   make(chan []byte, pictureBacklog+2),
		done:   make(chan struct{}),
	}
	size := w*h + 2*((w+1)/2)*((h+1)/2)
	go p.readLoop(bufio.NewReaderSize(stdout, 1<<20), size)
	log.Debug().Int("pid", cmd.Process.Pid).Int("width", w).Int("height", h).Msg("[Decoder] ffmpeg started")
	return p, nil
}

func (p *ffmpegProc) readLoop(r io.Reader, size int) {
	defer close(p.done)
	for {
		var buf []byte
		select {
		case buf = <-p.free:
		default:
			buf = make([]byte, size)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		for {
			select {
			case p.frames <- buf:
			default:
				// drop the oldest picture
				select {
				case old := <-p.frames:
					p.recycle(old)
				default:
				}
				continue
			}
			break
		}
	}
}

func (p *ffmpegProc) write(data []byte) error {
	_, err := p.stdin.Write(data)
	return err
}

// latest returns the newest ready picture, recycling older ones.
func (p *ffmpegProc) latest() ([]byte, bool) {
	var pic []byte
	for {
		select {
		case next := <-p.frames:
			if pic != nil {
				p.recycle(pic)
			}
			pic = next
			continue
		default:
		}
		return pic, pic != nil
	}
}

func (p *ffmpegProc) recycle(buf []byte) {
	select {
	case p.free <- buf:
	default:
	}
}

func (p *ffmpegProc) close() {
	p.once.Do(func() {
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
		_ = p.cmd.Wait()
	})
}
