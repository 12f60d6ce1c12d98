package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bugVanisher/berrycam/statistics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters of one streaming session.
type Metrics struct {
	ConnectAttempts atomic.Uint64
	ConnectFailures atomic.Uint64
	Connects        atomic.Uint64
	Fallbacks       atomic.Uint64
	Restarts        atomic.Uint64
	Stalls          atomic.Uint64
	FramesReceived  atomic.Uint64
	FramesDecoded   atomic.Uint64
	FramesDropped   atomic.Uint64

	State      atomic.Int32
	RetryCount atomic.Int32

	flowLock sync.Mutex
	flow     func() statistics.FlowStat

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register()
	return m
}

// SetFlow installs the source of the rate gauges.
func (m *Metrics) SetFlow(fn func() statistics.FlowStat) {
	m.flowLock.Lock()
	m.flow = fn
	m.flowLock.Unlock()
}

func (m *Metrics) snapshot() statistics.FlowStat {
	m.flowLock.Lock()
	fn := m.flow
	m.flowLock.Unlock()
	if fn == nil {
		return statistics.FlowStat{}
	}
	return fn()
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		fn,
	))
}

func (m *Metrics) register() {
	m.counter("berrycam_connect_attempts_total", "Handler connect attempts", &m.ConnectAttempts)
	m.counter("berrycam_connect_failures_total", "Failed connect attempts and lost connections", &m.ConnectFailures)
	m.counter("berrycam_connects_total", "Successful connects", &m.Connects)
	m.counter("berrycam_fallbacks_total", "Fallbacks to websocket", &m.Fallbacks)
	m.counter("berrycam_restarts_total", "Session restarts", &m.Restarts)
	m.counter("berrycam_decoder_stalls_total", "Decoder stall episodes", &m.Stalls)
	m.counter("berrycam_frames_received_total", "Compressed frames taken from the handler", &m.FramesReceived)
	m.counter("berrycam_frames_decoded_total", "Frames decoded and delivered", &m.FramesDecoded)
	m.counter("berrycam_frames_dropped_total", "Frames that produced no picture", &m.FramesDropped)

	m.gauge("berrycam_session_state", "0 stopped, 1 paused, 2 streaming", func() float64 { return float64(m.State.Load()) })
	m.gauge("berrycam_retry_count", "Consecutive connect failures", func() float64 { return float64(m.RetryCount.Load()) })
	m.gauge("berrycam_receive_fps", "Received frames per second", func() float64 { return float64(m.snapshot().FPS) })
	m.gauge("berrycam_decode_fps", "Decoded frames per second", func() float64 { return float64(m.snapshot().DecodedFPS) })
	m.gauge("berrycam_bitrate_bps", "Received bits per second", func() float64 { return float64(m.snapshot().Bitrate) })
	m.gauge("berrycam_gop_seconds", "Distance between the last two keyframes", func() float64 { return m.snapshot().Gop })
	m.gauge("berrycam_delay_ms", "Frame timestamp lag behind the wall clock", func() float64 { return float64(m.snapshot().DelayMs) })
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
