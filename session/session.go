package session

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/discovery"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/codec/decoder"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/bugVanisher/berrycam/metrics"
	"github.com/bugVanisher/berrycam/statistics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FrameSink receives pictures as they are decoded. Pix is only valid during the call.
type FrameSink interface {
	OnFrame(pix []byte, width, height int)
	// OnClear is called when the rendered output must be discarded.
	OnClear()
}

// Stats is a snapshot of a session.
type Stats struct {
	SID              string              `json:"sid"`
	State            string              `json:"state"`
	Protocol         string              `json:"protocol"`
	URL              string              `json:"url"`
	RetryCount       int                 `json:"retry_count"`
	ConnectionFailed bool                `json:"connection_failed"`
	Flow             statistics.FlowStat `json:"flow"`
	Decoder          decoder.Stat        `json:"decoder"`
}

// Session pulls one device stream, decodes it and holds the latest picture.
//
// Start, Stop, Pause, Resume and Configure may be called from any goroutine.
// The handler and the receive side of the decoder belong to the session loop.
type Session struct {
	sid  string
	opts Options
	log  zerolog.Logger

	lock   sync.Mutex // serializes Start, Stop, Restart and Configure
	cancel context.CancelFunc
	done   chan struct{}

	cfgLock      sync.RWMutex
	cfg          config.SessionConfig
	lastProtocol config.Protocol

	state      atomic.Int32
	streaming  atomic.Bool
	active     atomic.Bool
	retry      atomic.Int32
	connFailed atomic.Bool
	generation atomic.Uint64

	decoder *decoder.Decoder
	flow    *statistics.FrameFlow
	metrics *metrics.Metrics

	frameLock sync.Mutex
	pix       []byte
	width     int
	height    int
	hasFrame  bool

	devLock sync.RWMutex
	devices []discovery.Device
}

func NewSession(cfg config.SessionConfig, opt ...Option) *Session {
	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	sid := uuid.NewString()
	if cfg.StreamURL == "" {
		cfg.StreamURL = cfg.Protocol.StreamURL(cfg.DeviceIP)
	}
	s := &Session{
		sid:          sid,
		opts:         opts,
		log:          log.With().Str("sid", sid).Logger(),
		cfg:          cfg,
		lastProtocol: cfg.Protocol,
		decoder:      decoder.NewDecoder(append([]decoder.Option{decoder.WithSID(sid)}, opts.DecoderOptions...)...),
		flow:         statistics.NewFrameFlow(),
		metrics:      opts.Metrics,
		width:        DefaultWidth,
		height:       DefaultHeight,
	}
	s.metrics.SetFlow(s.flow.Snapshot)
	return s
}

func (s *Session) SID() string {
	return s.sid
}

// Start spawns the session loop. It is a no-op while streaming or without a device ip.
func (s *Session) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.startLocked()
}

func (s *Session) startLocked() {
	if s.streaming.Load() {
		return
	}
	cfg := s.Config()
	if cfg.DeviceIP == "" {
		s.log.Warn().Msg("[Session] no device ip, not starting")
		return
	}
	// a loop that ended on its own is joined before a new one starts
	if s.cancel != nil {
		s.cancel()
	}
	s.joinLocked()

	s.active.Store(true)
	s.streaming.Store(true)
	s.setState(StateStreaming)
	gen := s.generation.Add(1)

	s.cfgLock.Lock()
	s.lastProtocol = cfg.Protocol
	s.cfgLock.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.run(ctx, done, gen)
	s.log.Info().Str("protocol", cfg.Protocol.String()).Str("url", cfg.URL()).Msg("[Session] start")
}

// Stop ends the loop from any state and marks the session inactive.
func (s *Session) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stopLocked()
	s.active.Store(false)
}

func (s *Session) stopLocked() {
	s.generation.Add(1)
	s.setState(StateStopped)
	s.streaming.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	if s.joinLocked() {
		s.log.Info().Msg("[Session] stopped")
	}
}

// joinLocked waits for the previous loop, detaching it after JoinTimeout.
func (s *Session) joinLocked() bool {
	if s.done == nil {
		return false
	}
	protocol.WaitOrDetach(s.done, s.opts.JoinTimeout, s.sid, "session loop")
	s.done, s.cancel = nil, nil
	return true
}

// Restart stops the loop, waits RestartSettle and starts again. Only active sessions restart.
func (s *Session) Restart() {
	s.restart(0, false)
}

// restart is abandoned when gen is set and another Start or Stop happened since.
// With reset the output and decoder are cleared once the old loop is gone.
func (s *Session) restart(gen uint64, reset bool) {
	s.lock.Lock()
	if !s.active.Load() || (gen != 0 && s.generation.Load() != gen) {
		if reset {
			s.resetPipeline()
		}
		s.lock.Unlock()
		return
	}
	s.log.Info().Msg("[Session] restart")
	s.metrics.Restarts.Add(1)
	s.stopLocked()
	if reset {
		s.resetPipeline()
	}
	gen = s.generation.Load()
	s.lock.Unlock()

	time.Sleep(s.opts.RestartSettle)

	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.active.Load() || s.generation.Load() != gen {
		s.log.Info().Msg("[Session] restart abandoned")
		return
	}
	s.startLocked()
}

// Close stops the session and releases the decoder. The session is unusable afterwards.
func (s *Session) Close() {
	s.Stop()
	s.decoder.Shutdown()
	s.clearOutput()
}

// Pause moves Streaming to Paused. The loop then disconnects its handler.
func (s *Session) Pause() {
	if s.casState(StateStreaming, StatePaused) {
		s.log.Info().Msg("[Session] pause")
	}
}

// Resume moves Paused to Streaming. The loop reconnects with a fresh handler.
func (s *Session) Resume() {
	if s.casState(StatePaused, StateStreaming) {
		s.log.Info().Msg("[Session] resume")
	}
}

// Configure replaces the session config. A protocol change clears the output,
// flushes the decoder, resets the failure state and restarts an active session.
func (s *Session) Configure(cfg config.SessionConfig) {
	if cfg.StreamURL == "" {
		cfg.StreamURL = cfg.Protocol.StreamURL(cfg.DeviceIP)
	}
	s.lock.Lock()
	s.cfgLock.Lock()
	changed := cfg.Protocol != s.lastProtocol
	s.cfg = cfg
	s.lastProtocol = cfg.Protocol
	s.cfgLock.Unlock()
	s.lock.Unlock()

	s.log.Info().Str("protocol", cfg.Protocol.String()).Str("ip", cfg.DeviceIP).Str("url", cfg.StreamURL).Bool("protocol_changed", changed).Msg("[Session] configure")
	if !changed {
		return
	}
	s.restart(0, true)
}

// resetPipeline drops everything tied to the previous protocol. No loop may be running.
func (s *Session) resetPipeline() {
	s.clearOutput()
	s.decoder.Flush()
	s.resetRetry()
	s.connFailed.Store(false)
}

func (s *Session) Config() config.SessionConfig {
	s.cfgLock.RLock()
	defer s.cfgLock.RUnlock()
	return s.cfg
}

func (s *Session) setConfig(cfg config.SessionConfig) {
	s.cfgLock.Lock()
	s.cfg = cfg
	s.lastProtocol = cfg.Protocol
	s.cfgLock.Unlock()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.State.Store(int32(st))
}

func (s *Session) casState(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.metrics.State.Store(int32(to))
	return true
}

// IsStreaming reports whether a session loop is running.
func (s *Session) IsStreaming() bool {
	return s.streaming.Load()
}

func (s *Session) IsActive() bool {
	return s.active.Load()
}

func (s *Session) RetryCount() int {
	return int(s.retry.Load())
}

// ConnectionFailed is set when the session had to give up on a protocol and
// cleared by the next successful connect.
func (s *Session) ConnectionFailed() bool {
	return s.connFailed.Load()
}

func (s *Session) resetRetry() {
	s.retry.Store(0)
	s.metrics.RetryCount.Store(0)
}

func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Session) Stats() Stats {
	cfg := s.Config()
	return Stats{
		SID:              s.sid,
		State:            s.State().String(),
		Protocol:         cfg.Protocol.String(),
		URL:              cfg.URL(),
		RetryCount:       s.RetryCount(),
		ConnectionFailed: s.ConnectionFailed(),
		Flow:             s.flow.Snapshot(),
		Decoder:          s.decoder.Stat(),
	}
}

// SetDevices stores the result of the last discovery scan.
func (s *Session) SetDevices(devices []discovery.Device) {
	s.devLock.Lock()
	s.devices = append([]discovery.Device(nil), devices...)
	s.devLock.Unlock()
}

func (s *Session) Devices() []discovery.Device {
	s.devLock.RLock()
	defer s.devLock.RUnlock()
	return append([]discovery.Device(nil), s.devices...)
}

// Width is the width of the latest picture, 1920 before the first one.
func (s *Session) Width() int {
	s.frameLock.Lock()
	defer s.frameLock.Unlock()
	return s.width
}

func (s *Session) Height() int {
	s.frameLock.Lock()
	defer s.frameLock.Unlock()
	return s.height
}

// ReadFrame calls fn with the latest picture under the frame lock and reports
// whether there was one. pix must not be retained after fn returns.
func (s *Session) ReadFrame(fn func(pix []byte, width, height int)) bool {
	s.frameLock.Lock()
	defer s.frameLock.Unlock()
	if !s.hasFrame {
		return false
	}
	fn(s.pix, s.width, s.height)
	return true
}

func (s *Session) deliver(pic *av.DecodedFrame) {
	s.frameLock.Lock()
	if cap(s.pix) < len(pic.Pix) {
		s.pix = make([]byte, len(pic.Pix))
	}
	s.pix = s.pix[:len(pic.Pix)]
	copy(s.pix, pic.Pix)
	s.width, s.height = pic.Width, pic.Height
	s.hasFrame = true
	s.frameLock.Unlock()

	if s.opts.Sink != nil {
		s.opts.Sink.OnFrame(pic.Pix, pic.Width, pic.Height)
	}
}

func (s *Session) clearOutput() {
	s.frameLock.Lock()
	s.pix = s.pix[:0]
	s.hasFrame = false
	s.width, s.height = DefaultWidth, DefaultHeight
	s.frameLock.Unlock()

	if s.opts.Sink != nil {
		s.opts.Sink.OnClear()
	}
}

// run is the session loop. It owns the handler it connects.
func (s *Session) run(ctx context.Context, done chan struct{}, gen uint64) {
	var (
		h        protocol.Handler
		fellBack bool
	)
	defer close(done)
	defer func() {
		if h != nil {
			h.Disconnect()
		}
		if fellBack || s.generation.Load() != gen {
			return
		}
		// ended on its own
		s.streaming.Store(false)
		s.active.Store(false)
		s.setState(StateStopped)
	}()
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			s.log.Error().Str("stack", string(buf)).Any("error", err).Msg("[Session] loop panic recover")
		}
	}()

	ticker := time.NewTicker(s.opts.StatInterval)
	defer ticker.Stop()

	stalled := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logStat()
		default:
		}

		switch s.State() {
		case StateStopped:
			return
		case StatePaused:
			if h != nil {
				s.log.Info().Msg("[Session] disconnect handler (paused)")
				h.Disconnect()
				h = nil
			}
			sleep(ctx, s.opts.PausedSleep)
			continue
		}

		if h == nil {
			var v verdict
			if h, v = s.connect(ctx, gen); h == nil {
				if v == verdictRetry {
					continue
				}
				fellBack = v == verdictFallback
				return
			}
			stalled = false
			// paused or stopped while connecting
			if s.State() != StateStreaming {
				continue
			}
		}

		f, ok := h.ReceiveFrame()
		if !ok {
			if h.IsConnected() {
				sleep(ctx, s.opts.IdleSleep)
				continue
			}
			s.log.Warn().Msg("[Session] connection lost")
			h.Disconnect()
			h = nil
			if ctx.Err() != nil {
				return
			}
			if v := s.onConnectFailure(ctx, gen, s.Config(), errs.ErrConnectionLost); v != verdictRetry {
				fellBack = v == verdictFallback
				return
			}
			continue
		}
		stalled = s.handleFrame(f, stalled)
	}
}

type verdict int

const (
	verdictRetry verdict = iota
	verdictFallback
	verdictStop
)

// connect builds a fresh handler for the current config and connects it.
func (s *Session) connect(ctx context.Context, gen uint64) (protocol.Handler, verdict) {
	cfg := s.Config()
	s.metrics.ConnectAttempts.Add(1)
	s.log.Info().Str("protocol", cfg.Protocol.String()).Str("url", cfg.URL()).Int("retry", s.RetryCount()).Msg("[Session] connect")

	h, err := s.opts.Factory(cfg.Protocol, s.sid)
	if err == nil {
		if err = h.Connect(ctx, cfg.URL()); err != nil {
			h.Disconnect()
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, verdictStop
		}
		if s.State() == StatePaused {
			s.log.Info().Err(err).Msg("[Session] connect fail while paused, ignored")
			return nil, verdictRetry
		}
		return nil, s.onConnectFailure(ctx, gen, cfg, err)
	}
	if ctx.Err() != nil || s.generation.Load() != gen {
		h.Disconnect()
		s.log.Info().Str("url", cfg.URL()).Msg("[Session] stopped while connecting, drop handler")
		return nil, verdictStop
	}

	s.metrics.Connects.Add(1)
	s.resetRetry()
	s.connFailed.Store(false)
	s.log.Info().Str("protocol", cfg.Protocol.String()).Str("url", cfg.URL()).Msg("[Session] connected")
	return h, verdictRetry
}

// onConnectFailure decides what follows a failed connect or a lost connection.
// Below MaxRetries it backs off and retries. Past it, other protocols fall back
// to websocket and websocket stops the session.
func (s *Session) onConnectFailure(ctx context.Context, gen uint64, cfg config.SessionConfig, err error) verdict {
	n := s.retry.Add(1)
	s.metrics.RetryCount.Store(n)
	s.metrics.ConnectFailures.Add(1)
	s.log.Warn().Err(err).Str("protocol", cfg.Protocol.String()).Str("url", cfg.URL()).
		Int32("retry", n).Int("max_retries", s.opts.MaxRetries).Msg("[Session] connect fail")

	if int(n) < s.opts.MaxRetries {
		if !sleep(ctx, s.backoff(int(n))) {
			return verdictStop
		}
		return verdictRetry
	}
	if cfg.Protocol != config.ProtocolWebSocket {
		s.fallback(gen, cfg)
		return verdictFallback
	}
	s.connFailed.Store(true)
	s.log.Error().Str("url", cfg.URL()).Int32("retry", n).Msg("[Session] websocket unreachable, stop streaming")
	return verdictStop
}

// fallback switches the config to websocket and schedules a restart of this loop generation.
func (s *Session) fallback(gen uint64, cfg config.SessionConfig) {
	ws := cfg.WithProtocol(config.ProtocolWebSocket)
	s.log.Warn().Str("from", cfg.Protocol.String()).Str("url", ws.StreamURL).Msg("[Session] fall back to websocket")

	s.setConfig(ws)
	s.connFailed.Store(true)
	s.resetRetry()
	s.decoder.Flush()
	s.clearOutput()
	s.metrics.Fallbacks.Add(1)

	go s.restart(gen, false)
}

func (s *Session) backoff(n int) time.Duration {
	d := s.opts.BackoffBase
	for i := 1; i < n && d < s.opts.BackoffMax; i++ {
		d *= 2
	}
	if d > s.opts.BackoffMax {
		d = s.opts.BackoffMax
	}
	return d
}

// handleFrame decodes one frame, delivers the picture and releases the frame.
func (s *Session) handleFrame(f *av.Frame, stalled bool) bool {
	defer f.Release()
	s.flow.Stat(f)
	s.metrics.FramesReceived.Add(1)

	pic, ok := s.decoder.Decode(f.Data)
	if ok {
		s.flow.Decoded(pic.Width, pic.Height)
		s.metrics.FramesDecoded.Add(1)
		s.deliver(pic)
		return false
	}
	s.flow.Dropped()
	s.metrics.FramesDropped.Add(1)
	if stalled || !s.decoder.Stalled() {
		return stalled
	}
	s.log.Warn().Str("codec", s.decoder.CodecType().String()).Msg("[Session] decoder stalled, flush")
	s.decoder.Flush()
	s.flow.Stalled()
	s.metrics.Stalls.Add(1)
	return true
}

func (s *Session) logStat() {
	stat := s.Stats()
	s.log.Info().
		Str("state", stat.State).
		Str("protocol", stat.Protocol).
		Uint64("frames", stat.Flow.Frames).
		Uint64("decoded", stat.Flow.Decoded).
		Uint64("dropped", stat.Flow.Dropped).
		Uint32("fps", stat.Flow.FPS).
		Uint32("decoded_fps", stat.Flow.DecodedFPS).
		Uint64("bitrate", stat.Flow.Bitrate).
		Float64("gop", stat.Flow.Gop).
		Int64("delay_ms", stat.Flow.DelayMs).
		Dur("media_time", s.flow.MediaTime()).
		Str("codec", stat.Decoder.Codec).
		Msg("[Session] stat")
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
