package httpstream

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/codec/h264parser"
	"github.com/pkg/errors"
)

var (
	// errDropped reports a frame that was read but discarded; the stream is still healthy.
	errDropped = errors.New("frame dropped")
	errNoVideo = errors.New("no recognisable video in stream")
)

// extractor cuts compressed frames out of an HTTP body.
type extractor interface {
	Next() (*av.Frame, error)
	Close() error
}

// newExtractor picks the demuxer from the content type: multipart bodies carry
// JPEG parts, anything else is Annex-B unless the handler expects MJPEG.
func newExtractor(codec av.CodecType, body io.ReadCloser, contentType string, probeBytes int) extractor {
	if codec == av.CodecMJPEG || isMultipart(contentType) {
		return newMJPEGExtractor(body, contentType, probeBytes)
	}
	return newH264Extractor(body, probeBytes)
}

func isMultipart(contentType string) bool {
	mediaType, params, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != ""
}

// h264Extractor regroups a raw Annex-B stream into access units.
type h264Extractor struct {
	body       io.ReadCloser
	splitter   *h264parser.AUSplitter
	buf        []byte
	ready      []*av.Frame
	dropped    int
	scanned    int
	probeBytes int
	err        error
}

func newH264Extractor(body io.ReadCloser, probeBytes int) *h264Extractor {
	return &h264Extractor{
		body:       body,
		splitter:   h264parser.NewAUSplitter(),
		buf:        make([]byte, 32*1024),
		probeBytes: probeBytes,
	}
}

func (e *h264Extractor) Next() (*av.Frame, error) {
	for len(e.ready) == 0 {
		if e.dropped > 0 {
			e.dropped--
			return nil, errDropped
		}
		if e.err != nil {
			return nil, e.err
		}
		n, err := e.body.Read(e.buf)
		if n > 0 {
			e.scanned += n
			e.splitter.Write(e.buf[:n], e.emit)
		}
		if err != nil {
			e.splitter.Flush(e.emit)
			e.err = err
		} else if len(e.ready) == 0 && e.probeBytes > 0 && e.scanned > e.probeBytes {
			e.err = errNoVideo
		}
	}
	f := e.ready[0]
	e.ready[0] = nil
	e.ready = e.ready[1:]
	return f, nil
}

func (e *h264Extractor) emit(au []byte, key bool) {
	e.scanned = 0
	f := av.NewFrame(au)
	if f == nil {
		e.dropped++
		return
	}
	f.KeyFrame = key
	f.Codec = av.CodecH264
	e.ready = append(e.ready, f)
}

func (e *h264Extractor) Close() error {
	for _, f := range e.ready {
		f.Release()
	}
	e.ready = nil
	return e.body.Close()
}

// mjpegExtractor reads multipart/x-mixed-replace parts, or scans for SOI/EOI
// markers when the server sends bare concatenated JPEGs.
type mjpegExtractor struct {
	body       io.ReadCloser
	mr         *multipart.Reader
	br         *bufio.Reader
	buf        bytes.Buffer
	probeBytes int
}

func newMJPEGExtractor(body io.ReadCloser, contentType string, probeBytes int) *mjpegExtractor {
	e := &mjpegExtractor{body: body, probeBytes: probeBytes}
	if isMultipart(contentType) {
		_, params, _ := mime.ParseMediaType(contentType)
		e.mr = multipart.NewReader(body, params["boundary"])
	} else {
		e.br = bufio.NewReaderSize(body, 64*1024)
	}
	return e
}

func (e *mjpegExtractor) Next() (*av.Frame, error) {
	var data []byte
	var err error
	if e.mr != nil {
		data, err = e.nextPart()
	} else {
		data, err = e.scan()
	}
	if err != nil {
		return nil, err
	}
	f := av.NewFrame(data)
	if f == nil {
		return nil, errDropped
	}
	f.KeyFrame = true
	f.Codec = av.CodecMJPEG
	return f, nil
}

func (e *mjpegExtractor) nextPart() ([]byte, error) {
	part, err := e.mr.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()
	e.buf.Reset()
	if _, err = e.buf.ReadFrom(io.LimitReader(part, int64(av.MaxFrameSize)+1)); err != nil {
		return nil, err
	}
	data := e.buf.Bytes()
	if len(data) > av.MaxFrameSize || !isJPEG(data) {
		return nil, errDropped
	}
	return data, nil
}

func (e *mjpegExtractor) scan() ([]byte, error) {
	var prev byte
	skipped := 0
	for {
		c, err := e.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if prev == 0xFF && c == 0xD8 {
			break
		}
		prev = c
		if skipped++; e.probeBytes > 0 && skipped > e.probeBytes {
			return nil, errNoVideo
		}
	}

	e.buf.Reset()
	e.buf.Write([]byte{0xFF, 0xD8})
	prev = 0
	for {
		c, err := e.br.ReadByte()
		if err != nil {
			return nil, err
		}
		e.buf.WriteByte(c)
		if prev == 0xFF && c == 0xD9 {
			return e.buf.Bytes(), nil
		}
		prev = c
		if e.buf.Len() > av.MaxFrameSize {
			return nil, errDropped
		}
	}
}

func (e *mjpegExtractor) Close() error {
	return e.body.Close()
}

func isJPEG(data []byte) bool {
	return len(data) >= 4 && data[0] == 0xFF && data[1] == 0xD8
}
