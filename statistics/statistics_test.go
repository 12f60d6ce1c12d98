package statistics

import (
	"testing"
	"time"

	"github.com/bugVanisher/berrycam/media/av"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	w := NewWindow(5, 1)
	var now int64 = 1000
	w.now = func() int64 { return now }

	for i := 0; i < 5; i++ {
		w.Add(10)
		w.Add(10)
		now++
	}
	// slot being written is excluded from the average
	w.Add(0)
	require.Equal(t, int64(100), w.Sum())
	require.Equal(t, int64(20), w.Avg())
	require.Equal(t, int64(10), w.Max())
	require.Equal(t, int64(0), w.Min())

	now += 100
	require.Equal(t, int64(0), w.Avg())
	w.Add(7)
	require.Equal(t, int64(7), w.Sum())
}

func TestFPS(t *testing.T) {
	f := NewFPS()
	start := time.Unix(100, 0)
	for i := 0; i <= 30; i++ {
		f.Add(start.Add(time.Duration(i) * time.Second / 30))
	}
	require.Equal(t, uint32(31), f.Get())
}

func TestGop(t *testing.T) {
	g := NewGop()
	start := time.Unix(100, 0)
	g.Add(start, true)
	require.Equal(t, 0.0, g.Seconds())
	g.Add(start.Add(time.Second), false)
	g.Add(start.Add(2*time.Second), true)
	require.Equal(t, 2.0, g.Seconds())
}

func TestDuration(t *testing.T) {
	d := NewDuration()
	start := time.Unix(100, 0)
	d.Add(start)
	d.Add(start.Add(33 * time.Millisecond))
	d.Add(start.Add(10 * time.Second))
	d.Add(start.Add(5 * time.Second))
	require.Equal(t, 133*time.Millisecond, d.Take())
	require.Equal(t, time.Duration(0), d.Take())
}

func TestDelay(t *testing.T) {
	d := NewDelay()
	start := time.Unix(100, 0)
	d.Add(start, start)
	// six wall seconds but only five media seconds
	d.Add(start.Add(6*time.Second), start.Add(5*time.Second))
	require.Equal(t, int64(1000), d.Millis())
}

func TestFrameFlow(t *testing.T) {
	s := NewFrameFlow()
	for i := 0; i < 10; i++ {
		f := av.NewFrame(make([]byte, 100))
		f.KeyFrame = i%5 == 0
		f.Codec = av.CodecH264
		s.Stat(f)
		f.Release()
	}
	s.Decoded(640, 480)
	s.Dropped()
	s.Stalled()

	stat := s.Snapshot()
	require.Equal(t, uint64(10), stat.Frames)
	require.Equal(t, uint64(2), stat.KeyFrames)
	require.Equal(t, uint64(1), stat.Decoded)
	require.Equal(t, uint64(1), stat.Dropped)
	require.Equal(t, uint64(1), stat.Stalls)
	require.Equal(t, 640, stat.Width)
	require.Equal(t, "H264", stat.Codec)
}
