package statistics

import "time"

// Duration sums the media time between consecutive frames. Gaps longer than
// maxGap count as maxGap; timestamps going backwards count as zero.
type Duration struct {
	duration time.Duration
	last     time.Time
	maxGap   time.Duration
}

func NewDuration() *Duration {
	return &Duration{
		maxGap: 100 * time.Millisecond,
	}
}

func (d *Duration) Add(ts time.Time) {
	if d.last.IsZero() {
		d.last = ts
		return
	}
	gap := ts.Sub(d.last)
	switch {
	case gap <= 0:
	case gap > d.maxGap:
		d.duration += d.maxGap
	default:
		d.duration += gap
	}
	d.last = ts
}

// Take returns the media time gathered since the previous call.
func (d *Duration) Take() time.Duration {
	tmp := d.duration
	d.duration = 0
	return tmp
}
