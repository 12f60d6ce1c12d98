package protocol

import (
	"context"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/rs/zerolog/log"
)

const (
	// ConnectTimeout bounds Connect for every transport.
	ConnectTimeout = 5 * time.Second
	// StopGrace bounds how long Disconnect waits for the receive loop.
	StopGrace = 2 * time.Second
)

//go:generate mockgen -destination=mock/handler_mock.go -package=mock github.com/bugVanisher/berrycam/media/protocol Handler

// Handler pulls compressed frames from one transport.
type Handler interface {
	// Connect dials url and starts receiving. A nil error means connected.
	Connect(ctx context.Context, url string) error
	// Disconnect stops receiving and closes the transport. It is idempotent and never fails.
	Disconnect()
	IsConnected() bool
	// ReceiveFrame pops the oldest buffered frame without blocking.
	ReceiveFrame() (*av.Frame, bool)
}

// Factory builds a fresh handler for a protocol.
type Factory func(p config.Protocol, sid string) (Handler, error)

var handlers = map[config.Protocol]func(sid string) Handler{}

// Register installs the constructor used by NewHandler for p.
func Register(p config.Protocol, newHandler func(sid string) Handler) {
	handlers[p] = newHandler
}

// NewHandler builds a handler from the registered constructors.
func NewHandler(p config.Protocol, sid string) (Handler, error) {
	newHandler, ok := handlers[p]
	if !ok {
		return nil, UnsupportedProtocol(p)
	}
	return newHandler(sid), nil
}

// WaitOrDetach waits for done up to timeout. On timeout the goroutine is left
// to finish on its own and false is returned.
func WaitOrDetach(done <-chan struct{}, timeout time.Duration, sid, what string) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		log.Warn().Str("sid", sid).Dur("timeout", timeout).Msgf("[Protocol] %s did not stop in time, detached", what)
		return false
	}
}

// Recover logs a panic raised during teardown instead of propagating it.
func Recover(sid, what string) {
	if err := recover(); err != nil {
		log.Error().Str("sid", sid).Any("error", err).Msgf("[Protocol] %s panic recover", what)
	}
}
