package statistics

import (
	"sync"
	"time"

	"github.com/bugVanisher/berrycam/media/av"
)

const StatInterval = 3 * time.Second

// FrameFlow gathers per-session statistics for received and decoded frames.
// Methods are safe for concurrent use.
type FrameFlow struct {
	lock sync.Mutex

	bitrate    *Bitrate
	fps        *FPS
	decodedFPS *FPS
	gop        *Gop
	delay      *Delay
	duration   *Duration

	frames    uint64
	keyFrames uint64
	decoded   uint64
	dropped   uint64
	stalls    uint64
	width     int
	height    int
	codec     av.CodecType
}

// FlowStat is a point-in-time copy of a FrameFlow.
type FlowStat struct {
	Frames     uint64  `json:"frames"`
	KeyFrames  uint64  `json:"key_frames"`
	Decoded    uint64  `json:"decoded"`
	Dropped    uint64  `json:"dropped"`
	Stalls     uint64  `json:"stalls"`
	Bitrate    uint64  `json:"bitrate"`
	FPS        uint32  `json:"fps"`
	DecodedFPS uint32  `json:"decoded_fps"`
	Gop        float64 `json:"gop"`
	DelayMs    int64   `json:"delay_ms"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Codec      string  `json:"codec"`
}

func NewFrameFlow() *FrameFlow {
	return &FrameFlow{
		bitrate:    NewBitrate(),
		fps:        NewFPS(),
		decodedFPS: NewFPS(),
		gop:        NewGop(),
		delay:      NewDelay(),
		duration:   NewDuration(),
	}
}

// Stat records a received compressed frame.
func (s *FrameFlow) Stat(f *av.Frame) {
	now := time.Now()
	ts := f.Timestamp
	if ts.IsZero() {
		ts = now
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.frames++
	if f.KeyFrame {
		s.keyFrames++
	}
	if f.Codec != av.CodecUnknown {
		s.codec = f.Codec
	}
	s.bitrate.Add(f.Size())
	s.fps.Add(now)
	s.gop.Add(ts, f.KeyFrame)
	s.delay.Add(now, ts)
	s.duration.Add(ts)
}

// Decoded records a picture handed to the host.
func (s *FrameFlow) Decoded(width, height int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.decoded++
	s.width, s.height = width, height
	s.decodedFPS.Add(time.Now())
}

// Dropped records a frame that produced no picture.
func (s *FrameFlow) Dropped() {
	s.lock.Lock()
	s.dropped++
	s.lock.Unlock()
}

func (s *FrameFlow) Stalled() {
	s.lock.Lock()
	s.stalls++
	s.lock.Unlock()
}

// MediaTime returns the media time received since the previous call.
func (s *FrameFlow) MediaTime() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.duration.Take()
}

func (s *FrameFlow) Snapshot() FlowStat {
	s.lock.Lock()
	defer s.lock.Unlock()
	return FlowStat{
		Frames:     s.frames,
		KeyFrames:  s.keyFrames,
		Decoded:    s.decoded,
		Dropped:    s.dropped,
		Stalls:     s.stalls,
		Bitrate:    s.bitrate.BitsPerSecond(),
		FPS:        s.fps.Get(),
		DecodedFPS: s.decodedFPS.Get(),
		Gop:        s.gop.Seconds(),
		DelayMs:    s.delay.Millis(),
		Width:      s.width,
		Height:     s.height,
		Codec:      s.codec.String(),
	}
}
