package statistics

import (
	"fmt"
)

// Bitrate averages bits per second over a rolling window.
type Bitrate struct {
	window *Window
}

func NewBitrate() *Bitrate {
	return &Bitrate{
		window: NewWindow(DefaultWindowSlots, 1),
	}
}

// Add records a payload of size bytes.
func (b *Bitrate) Add(size int) {
	b.window.Add(int64(size) * 8)
}

func (b *Bitrate) BitsPerSecond() uint64 {
	return uint64(b.window.Avg())
}

func (b *Bitrate) TotalBits() uint64 {
	return uint64(b.window.Sum())
}

func (b *Bitrate) String() string {
	return fmt.Sprintf("%dkb/s", b.window.Avg()/1024)
}
