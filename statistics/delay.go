package statistics

import (
	"fmt"
	"time"
)

const (
	DelayInterval = time.Second * 5
)

// Delay measures how far frame timestamps fall behind the wall clock over each interval.
type Delay struct {
	delay    time.Duration
	interval time.Duration

	begin   time.Time
	firstTS time.Time
}

func NewDelay() *Delay {
	return &Delay{
		interval: DelayInterval,
	}
}

func (d *Delay) Add(now, ts time.Time) {
	if d.begin.IsZero() {
		d.begin = now
		d.firstTS = ts
		return
	}
	if wnd := now.Sub(d.begin); wnd > d.interval {
		d.delay = wnd - ts.Sub(d.firstTS)
		d.begin = now
		d.firstTS = ts
	}
}

func (d *Delay) Millis() int64 {
	return d.delay.Milliseconds()
}

func (d *Delay) String() string {
	return fmt.Sprintf("%d ms", d.Millis())
}
