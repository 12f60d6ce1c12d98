package ws

import (
	"time"

	"github.com/bugVanisher/berrycam/media/av/queue"
	"github.com/bugVanisher/berrycam/media/protocol"
)

type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	QueueSize      int
	RequireHello   bool
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		ConnectTimeout: protocol.ConnectTimeout,
		ReadTimeout:    10 * time.Second,
		QueueSize:      queue.DefaultPktCount,
		RequireHello:   true,
	}
}

// WithConnectTimeout bounds dial plus hello.
func WithConnectTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.ConnectTimeout = d
	}
}

// WithReadTimeout sets the idle time after which the connection counts as lost.
func WithReadTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.ReadTimeout = d
	}
}

func WithQueueSize(n int) Option {
	return func(opts *Options) {
		opts.QueueSize = n
	}
}

// WithRequireHello controls whether Connect waits for the hello message.
func WithRequireHello(b bool) Option {
	return func(opts *Options) {
		opts.RequireHello = b
	}
}
