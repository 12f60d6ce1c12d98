package session

import (
	"time"

	"github.com/bugVanisher/berrycam/media/codec/decoder"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/bugVanisher/berrycam/metrics"
	"github.com/bugVanisher/berrycam/statistics"

	// registers the websocket, http and rtsp handlers
	_ "github.com/bugVanisher/berrycam/media/protocol/all"
)

const (
	DefaultMaxRetries = 3
	DefaultWidth      = 1920
	DefaultHeight     = 1080

	JoinTimeout   = 3 * time.Second
	RestartSettle = 300 * time.Millisecond
)

type Options struct {
	Factory        protocol.Factory
	DecoderOptions []decoder.Option
	Sink           FrameSink
	Metrics        *metrics.Metrics

	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	JoinTimeout   time.Duration
	RestartSettle time.Duration
	IdleSleep     time.Duration
	PausedSleep   time.Duration
	StatInterval  time.Duration
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Factory:       protocol.NewHandler,
		MaxRetries:    DefaultMaxRetries,
		BackoffBase:   500 * time.Millisecond,
		BackoffMax:    5 * time.Second,
		JoinTimeout:   JoinTimeout,
		RestartSettle: RestartSettle,
		IdleSleep:     time.Millisecond,
		PausedSleep:   100 * time.Millisecond,
		StatInterval:  statistics.StatInterval,
	}
}

// WithFactory replaces the handler constructor.
func WithFactory(f protocol.Factory) Option {
	return func(opts *Options) {
		opts.Factory = f
	}
}

func WithDecoderOptions(opt ...decoder.Option) Option {
	return func(opts *Options) {
		opts.DecoderOptions = append(opts.DecoderOptions, opt...)
	}
}

// WithSink pushes every decoded picture and every output clear to sink.
func WithSink(sink FrameSink) Option {
	return func(opts *Options) {
		opts.Sink = sink
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithMaxRetries sets how many consecutive connect failures are tolerated
// before falling back or stopping.
func WithMaxRetries(n int) Option {
	return func(opts *Options) {
		opts.MaxRetries = n
	}
}

// WithBackoff sets the first retry delay and its cap. The delay doubles per failure.
func WithBackoff(base, max time.Duration) Option {
	return func(opts *Options) {
		opts.BackoffBase = base
		opts.BackoffMax = max
	}
}

// WithJoinTimeout bounds how long Stop waits for the loop before detaching it.
func WithJoinTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.JoinTimeout = d
	}
}

// WithRestartSettle sets the pause between stop and start on restart.
func WithRestartSettle(d time.Duration) Option {
	return func(opts *Options) {
		opts.RestartSettle = d
	}
}

func WithStatInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.StatInterval = d
	}
}
