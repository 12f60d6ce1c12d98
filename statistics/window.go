package statistics

import "time"

const DefaultWindowSlots = int64(5)

// Window keeps rolling per-slot sums over the last slots*slotSec seconds.
// The slot being written is left out of the average. Single writer only.
type Window struct {
	slots   []int64
	n       int64
	slotSec int64

	sum, max, min, avg int64

	lastIdx int64
	lastAt  int64
	now     func() int64
}

func NewWindow(slots, slotSec int64) *Window {
	return &Window{
		slots:   make([]int64, slots+1),
		n:       slots + 1,
		slotSec: slotSec,
		now:     func() int64 { return time.Now().Unix() },
	}
}

func (w *Window) span() int64 {
	return w.n * w.slotSec
}

func (w *Window) expired() bool {
	return w.now() > w.lastAt+w.span()
}

func (w *Window) Add(val int64) {
	now := w.now()
	idx := now % w.span() / w.slotSec

	switch {
	case now >= w.lastAt+w.span():
		// stale: start over
		for i := range w.slots {
			w.slots[i] = 0
		}
		w.sum, w.max, w.min = 0, val, val
	case idx == w.lastIdx && now-w.lastAt <= w.slotSec:
	default:
		end := idx
		if end <= w.lastIdx {
			end += w.n
		}
		for i := w.lastIdx + 1; i <= end; i++ {
			pos := i % w.n
			w.sum -= w.slots[pos]
			w.slots[pos] = 0
		}
	}

	w.slots[idx] += val
	w.sum += val
	if val > w.max {
		w.max = val
	}
	if val < w.min {
		w.min = val
	}
	w.lastIdx = idx
	w.lastAt = now
	w.avg = (w.sum - w.slots[w.lastIdx]) / (w.n - 1)
}

func (w *Window) Avg() int64 {
	if w.expired() {
		return 0
	}
	return w.avg
}

func (w *Window) Max() int64 {
	if w.expired() {
		return 0
	}
	return w.max
}

func (w *Window) Min() int64 {
	if w.expired() {
		return 0
	}
	return w.min
}

func (w *Window) Sum() int64 {
	if w.expired() {
		return 0
	}
	return w.sum
}
