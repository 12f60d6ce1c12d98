package httpstream

import (
	"time"

	"github.com/bugVanisher/berrycam/media/av/queue"
	"github.com/bugVanisher/berrycam/media/protocol"
)

type Options struct {
	ConnectTimeout time.Duration
	// ReadTimeout is how long the body may stay silent before the stream counts as interrupted.
	ReadTimeout       time.Duration
	QueueSize         int
	Reconnects        int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	// ProbeBytes caps how much data may pass without yielding a frame.
	ProbeBytes int
	UserAgent  string
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		ConnectTimeout:    protocol.ConnectTimeout,
		ReadTimeout:       10 * time.Second,
		QueueSize:         queue.DefaultPktCount,
		Reconnects:        3,
		ReconnectDelay:    250 * time.Millisecond,
		ReconnectDelayMax: 2 * time.Second,
		ProbeBytes:        4 << 20,
		UserAgent:         "berrycam",
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.ConnectTimeout = d
	}
}

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

// WithReconnects sets how many times an interrupted stream is reopened before giving up.
func WithReconnects(n int, delay, delayMax time.Duration) Option {
	return func(opts *Options) {
		opts.Reconnects = n
		opts.ReconnectDelay = delay
		opts.ReconnectDelayMax = delayMax
	}
}

func WithProbeBytes(n int) Option {
	return func(opts *Options) {
		opts.ProbeBytes = n
	}
}
