package httpstream

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var errIdle = errors.New("read idle timeout")

// idleReader closes the body when no bytes arrive for idle.
type idleReader struct {
	r     io.ReadCloser
	idle  time.Duration
	timer *time.Timer
	fired atomic.Bool
}

func newIdleReader(r io.ReadCloser, idle time.Duration) io.ReadCloser {
	if idle <= 0 {
		return r
	}
	ir := &idleReader{r: r, idle: idle}
	ir.timer = time.AfterFunc(idle, func() {
		ir.fired.Store(true)
		_ = r.Close()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.idle)
	}
	if err != nil && ir.fired.Load() {
		err = errIdle
	}
	return n, err
}

func (ir *idleReader) Close() error {
	ir.timer.Stop()
	return ir.r.Close()
}
