package discovery

import (
	"time"

	"github.com/bugVanisher/berrycam/common/config"
)

const (
	DefaultInterval     = 15 * time.Second
	DefaultProbeTimeout = 2 * time.Second
)

var (
	DefaultSubnets = []string{"192.168.1.", "192.168.0.", "10.0.0."}
	DefaultHosts   = []int{1, 2, 10, 100, 101, 150}
)

type Options struct {
	ProbeTimeout time.Duration
	RTSPTimeout  time.Duration
	Subnets      []string
	Hosts        []int
	WSPort       int
	HTTPPort     int
	RTSPPort     int
	Concurrency  int
	// Lister resolves candidate ips over mDNS; nil skips straight to the subnet sweep.
	Lister Lister
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		ProbeTimeout: DefaultProbeTimeout,
		RTSPTimeout:  time.Second,
		Subnets:      DefaultSubnets,
		Hosts:        DefaultHosts,
		WSPort:       config.WebSocketPort,
		HTTPPort:     config.HTTPPort,
		RTSPPort:     config.RTSPPort,
		Concurrency:  8,
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.ProbeTimeout = d
	}
}

// WithCandidates replaces the subnet sweep list: every prefix is combined with every host.
func WithCandidates(subnets []string, hosts []int) Option {
	return func(opts *Options) {
		opts.Subnets = subnets
		opts.Hosts = hosts
	}
}

func WithPorts(ws, http, rtsp int) Option {
	return func(opts *Options) {
		opts.WSPort = ws
		opts.HTTPPort = http
		opts.RTSPPort = rtsp
	}
}

func WithLister(l Lister) Option {
	return func(opts *Options) {
		opts.Lister = l
	}
}

func WithConcurrency(n int) Option {
	return func(opts *Options) {
		opts.Concurrency = n
	}
}
