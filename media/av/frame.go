package av

import (
	"sync"
	"sync/atomic"
	"time"
)

// MaxFrameSize bounds a single compressed frame (two 1080p RGB frames).
const MaxFrameSize = 1920 * 1080 * 3 * 2

// CodecType identifies the compressed payload class.
type CodecType int8

const (
	CodecUnknown CodecType = iota
	CodecH264
	CodecMJPEG
)

func (c CodecType) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecMJPEG:
		return "MJPEG"
	}
	return "UNKNOWN"
}

// Frame is one compressed video frame. Data is owned by the frame and
// returned to the pool by Release.
type Frame struct {
	Data      []byte
	Timestamp time.Time
	PTS       int64
	DTS       int64
	Sequence  uint64
	KeyFrame  bool
	Codec     CodecType

	pooled   *[]byte
	released int32
}

var framePool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

// NewFrame copies data into a pooled buffer. It returns nil when data is
// empty or larger than MaxFrameSize.
func NewFrame(data []byte) *Frame {
	if len(data) == 0 || len(data) > MaxFrameSize {
		return nil
	}
	bp := framePool.Get().(*[]byte)
	buf := append((*bp)[:0], data...)
	*bp = buf
	return &Frame{
		Data:      buf,
		Timestamp: time.Now(),
		pooled:    bp,
	}
}

// Size is the payload length in bytes.
func (f *Frame) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Release hands the buffer back to the pool. Calls after the first are no-ops.
func (f *Frame) Release() {
	if f == nil || !atomic.CompareAndSwapInt32(&f.released, 0, 1) {
		return
	}
	f.Data = nil
	if f.pooled != nil {
		// oversized buffers are left to the GC
		if cap(*f.pooled) <= 1<<20 {
			framePool.Put(f.pooled)
		}
		f.pooled = nil
	}
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return atomic.LoadInt32(&f.released) == 1
}

// DecodedFrame is an RGBA raster owned by the decoder; valid until the next decode.
type DecodedFrame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}
