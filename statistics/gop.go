package statistics

import (
	"fmt"
	"time"
)

// Gop is the distance between the last two keyframes.
type Gop struct {
	gop     time.Duration
	lastKey time.Time
}

func NewGop() *Gop {
	return &Gop{}
}

func (g *Gop) Add(ts time.Time, key bool) {
	if !key {
		return
	}
	if !g.lastKey.IsZero() {
		g.gop = ts.Sub(g.lastKey)
	}
	g.lastKey = ts
}

// Seconds is 0 until two keyframes were seen.
func (g *Gop) Seconds() float64 {
	return g.gop.Seconds()
}

func (g *Gop) String() string {
	return fmt.Sprintf("%.2f s", g.Seconds())
}
