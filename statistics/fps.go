package statistics

import (
	"fmt"
	"time"
)

// FPS recomputes the frame rate once per interval.
type FPS struct {
	fps      uint32
	interval time.Duration

	count int64
	begin time.Time
}

func NewFPS() *FPS {
	return &FPS{
		interval: time.Second,
	}
}

func (f *FPS) Add(now time.Time) {
	if f.begin.IsZero() {
		f.begin = now
	}
	f.count++
	if d := now.Sub(f.begin); d >= f.interval {
		f.fps = uint32(f.count * int64(time.Second) / int64(d))
		f.count = 0
		f.begin = now
	}
}

func (f *FPS) Get() uint32 {
	return f.fps
}

func (f *FPS) String() string {
	return fmt.Sprintf("%d", f.fps)
}
