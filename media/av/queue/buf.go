package queue

import (
	"github.com/bugVanisher/berrycam/media/av"
)

// Buf is a growable ring of frames addressed by monotonically increasing BufPos.
type Buf struct {
	Head, Tail BufPos
	frames     []*av.Frame
	Size       int
	Count      int
}

func NewBuf() *Buf {
	return &Buf{
		frames: make([]*av.Frame, 64),
	}
}

// Pop removes the oldest frame. The caller owns it.
func (b *Buf) Pop() *av.Frame {
	if b.Count == 0 {
		panic("queue.Buf: Pop() when count == 0")
	}

	i := int(b.Head) & (len(b.frames) - 1)
	frame := b.frames[i]
	b.frames[i] = nil
	b.Size -= frame.Size()
	b.Head++
	b.Count--

	return frame
}

func (b *Buf) grow() {
	newframes := make([]*av.Frame, len(b.frames)*2)
	for i := b.Head; i.LT(b.Tail); i++ {
		newframes[int(i)&(len(newframes)-1)] = b.frames[int(i)&(len(b.frames)-1)]
	}
	b.frames = newframes
}

func (b *Buf) Push(frame *av.Frame) {
	if b.Count == len(b.frames) {
		b.grow()
	}
	b.frames[int(b.Tail)&(len(b.frames)-1)] = frame
	b.Tail++
	b.Count++
	b.Size += frame.Size()
}

func (b *Buf) Get(pos BufPos) *av.Frame {
	return b.frames[int(pos)&(len(b.frames)-1)]
}

func (b *Buf) IsValidPos(pos BufPos) bool {
	return pos.GE(b.Head) && pos.LT(b.Tail)
}

type BufPos int

func (a BufPos) LT(b BufPos) bool {
	return a-b < 0
}

func (a BufPos) GE(b BufPos) bool {
	return a-b >= 0
}

func (a BufPos) GT(b BufPos) bool {
	return a-b > 0
}
