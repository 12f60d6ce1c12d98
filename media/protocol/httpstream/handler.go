package httpstream

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/av/queue"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func init() {
	protocol.Register(config.ProtocolHTTPH264, func(sid string) protocol.Handler {
		return NewHandler(sid, av.CodecH264)
	})
	protocol.Register(config.ProtocolMJPEG, func(sid string) protocol.Handler {
		return NewHandler(sid, av.CodecMJPEG)
	})
}

const maxProbeDrops = 10

// Stat ...
type Stat struct {
	Received   uint64 `json:"received"`
	KeyFrames  uint64 `json:"key_frames"`
	Dropped    uint64 `json:"dropped"`
	Reconnects uint64 `json:"reconnects"`
}

type link struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	up     atomic.Bool

	start    time.Time
	sequence uint64
}

// Handler pulls a long-lived HTTP response and cuts it into frames:
// access units for raw H.264, whole JPEGs for MJPEG.
type Handler struct {
	sid    string
	codec  av.CodecType
	opts   Options
	client *http.Client

	lock sync.Mutex
	link atomic.Pointer[link]
	que  *queue.Queue

	received   uint64
	keyFrames  uint64
	dropped    uint64
	reconnects uint64
}

func NewHandler(sid string, codec av.CodecType, opt ...Option) *Handler {
	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	que := queue.NewQueue()
	que.SetMaxPktCount(opts.QueueSize)
	que.SetSID(sid)

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	httpTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Handler{
		sid:    sid,
		codec:  codec,
		opts:   opts,
		client: &http.Client{Transport: httpTransport},
		que:    que,
	}
}

func (h *Handler) Connect(ctx context.Context, url string) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.teardown()

	lctx, cancel := context.WithCancel(context.Background())
	ok := false
	defer func() {
		if !ok {
			cancel()
		}
	}()

	// the request outlives Connect, so the connect deadline is applied by hand
	cctx, ccancel := context.WithTimeout(ctx, h.opts.ConnectTimeout)
	defer ccancel()
	var probed atomic.Bool
	stopWatch := context.AfterFunc(cctx, func() {
		if !probed.Load() {
			cancel()
		}
	})
	defer stopWatch()

	ex, err := h.open(lctx, url)
	if err != nil {
		log.Error().Str("sid", h.sid).Err(err).Str("url", url).Msg("[HTTPHandler] open fail")
		return err
	}

	l := &link{url: url, cancel: cancel, done: make(chan struct{}), start: time.Now()}
	first, err := h.probe(ex)
	probed.Store(true)
	if err != nil {
		_ = ex.Close()
		log.Error().Str("sid", h.sid).Err(err).Str("url", url).Msg("[HTTPHandler] probe fail")
		if errors.Is(err, errNoVideo) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.Wrapf(errs.ErrNoVideoStream, "url: %s", url)
		}
		return errs.Wrapf(errs.ErrConnectURL, "url: %s", url)
	}
	h.push(l, first)

	l.up.Store(true)
	h.link.Store(l)
	go h.readLoop(lctx, l, ex)
	ok = true

	log.Info().Str("sid", h.sid).Str("url", url).Str("codec", h.codec.String()).Msg("[HTTPHandler] connected")
	return nil
}

func (h *Handler) open(ctx context.Context, url string) (extractor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrConnectURL, "url: %s", url)
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept", "*/*")

	response, err := h.client.Do(req)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrConnectURL, "url: %s, err: %v", url, err)
	}
	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, errs.Wrapf(errs.ErrStreamNotExist, "url: %s, status: %d", url, response.StatusCode)
	}
	body := newIdleReader(response.Body, h.opts.ReadTimeout)
	return newExtractor(h.codec, body, response.Header.Get("Content-Type"), h.opts.ProbeBytes), nil
}

// probe waits for the first usable frame.
func (h *Handler) probe(ex extractor) (*av.Frame, error) {
	for drops := 0; ; {
		f, err := ex.Next()
		if err == nil {
			return f, nil
		}
		if err != errDropped {
			return nil, err
		}
		atomic.AddUint64(&h.dropped, 1)
		if drops++; drops > maxProbeDrops {
			return nil, errNoVideo
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, l *link, ex extractor) {
	defer close(l.done)
	defer l.up.Store(false)
	defer protocol.Recover(h.sid, "http read loop")
	defer func() {
		if ex != nil {
			_ = ex.Close()
		}
	}()

	for {
		f, err := ex.Next()
		if err == nil {
			h.push(l, f)
			continue
		}
		if err == errDropped {
			atomic.AddUint64(&h.dropped, 1)
			continue
		}
		_ = ex.Close()
		ex = nil
		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("sid", h.sid).Err(err).Str("url", l.url).Msg("[HTTPHandler] stream interrupted")
		if ex = h.reconnect(ctx, l.url); ex == nil {
			log.Warn().Str("sid", h.sid).Str("url", l.url).Msg("[HTTPHandler] connection lost")
			return
		}
	}
}

func (h *Handler) reconnect(ctx context.Context, url string) extractor {
	delay := h.opts.ReconnectDelay
	for i := 1; i <= h.opts.Reconnects; i++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if delay *= 2; delay > h.opts.ReconnectDelayMax {
			delay = h.opts.ReconnectDelayMax
		}
		ex, err := h.open(ctx, url)
		if err == nil {
			n := atomic.AddUint64(&h.reconnects, 1)
			log.Info().Str("sid", h.sid).Int("attempt", i).Uint64("reconnects", n).Msg("[HTTPHandler] reconnected")
			return ex
		}
		log.Warn().Str("sid", h.sid).Err(err).Int("attempt", i).Msg("[HTTPHandler] reconnect fail")
	}
	return nil
}

func (h *Handler) push(l *link, f *av.Frame) {
	now := time.Now()
	f.Timestamp = now
	f.PTS = now.Sub(l.start).Milliseconds()
	f.DTS = f.PTS
	f.Sequence = l.sequence
	l.sequence++
	h.que.Push(f)

	received := atomic.AddUint64(&h.received, 1)
	if f.KeyFrame && f.Codec == av.CodecH264 {
		keys := atomic.AddUint64(&h.keyFrames, 1)
		log.Info().Str("sid", h.sid).Uint64("seq", f.Sequence).Uint64("keyframes", keys).Int("size", f.Size()).Msg("[HTTPHandler] keyframe")
	} else if received%100 == 0 {
		log.Debug().Str("sid", h.sid).Uint64("received", received).Int("queue", h.que.Len()).Msg("[HTTPHandler] frames")
	}
}

// Disconnect cancels the request, waits for the read loop and drops buffered frames.
func (h *Handler) Disconnect() {
	defer protocol.Recover(h.sid, "http disconnect")
	h.lock.Lock()
	defer h.lock.Unlock()
	h.teardown()
}

func (h *Handler) teardown() {
	if l := h.link.Swap(nil); l != nil {
		l.up.Store(false)
		l.cancel()
		protocol.WaitOrDetach(l.done, protocol.StopGrace, h.sid, "http read loop")
		log.Info().Str("sid", h.sid).Any("stat", h.Stat()).Msg("[HTTPHandler] disconnected")
	}
	h.que.Clear()
}

func (h *Handler) IsConnected() bool {
	l := h.link.Load()
	return l != nil && l.up.Load()
}

func (h *Handler) ReceiveFrame() (*av.Frame, bool) {
	return h.que.Pop()
}

func (h *Handler) Stat() Stat {
	return Stat{
		Received:   atomic.LoadUint64(&h.received),
		KeyFrames:  atomic.LoadUint64(&h.keyFrames),
		Dropped:    atomic.LoadUint64(&h.dropped),
		Reconnects: atomic.LoadUint64(&h.reconnects),
	}
}
