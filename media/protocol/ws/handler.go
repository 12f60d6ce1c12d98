package ws

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/av/queue"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func init() {
	protocol.Register(config.ProtocolWebSocket, func(sid string) protocol.Handler {
		return NewHandler(sid)
	})
}

// Stat ...
type Stat struct {
	Received  uint64 `json:"received"`
	KeyFrames uint64 `json:"key_frames"`
	Dropped   uint64 `json:"dropped"`
	Ignored   uint64 `json:"ignored"`
}

// link is one live socket and its read loop.
type link struct {
	conn *websocket.Conn
	stop chan struct{}
	done chan struct{}
	up   atomic.Bool
}

// Handler receives video_frame messages over a WebSocket.
type Handler struct {
	sid  string
	opts Options

	lock sync.Mutex // serializes Connect and Disconnect
	link atomic.Pointer[link]

	que   *queue.Queue
	hello Message

	received  uint64
	keyFrames uint64
	dropped   uint64
	ignored   uint64
}

func NewHandler(sid string, opt ...Option) *Handler {
	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	que := queue.NewQueue()
	que.SetMaxPktCount(opts.QueueSize)
	que.SetSID(sid)
	return &Handler{
		sid:  sid,
		opts: opts,
		que:  que,
	}
}

func (h *Handler) Connect(ctx context.Context, url string) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	// a previous connection is never reused
	h.teardown()

	ctx, cancel := context.WithTimeout(ctx, h.opts.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: h.opts.ConnectTimeout,
		ReadBufferSize:   64 * 1024,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Error().Str("sid", h.sid).Err(err).Str("url", url).Int("status", status).Msg("[WSHandler] dial fail")
		return errs.Wrapf(errs.ErrConnectURL, "url: %s", url)
	}
	conn.SetReadLimit(int64(av.MaxFrameSize) * 2)

	if h.opts.RequireHello {
		if err = h.awaitHello(ctx, conn); err != nil {
			_ = conn.Close()
			log.Error().Str("sid", h.sid).Err(err).Str("url", url).Msg("[WSHandler] handshake fail")
			return errs.Wrapf(errs.ErrHandshake, "url: %s", url)
		}
	}

	l := &link{
		conn: conn,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	l.up.Store(true)
	h.link.Store(l)
	go h.readLoop(l)

	log.Info().Str("sid", h.sid).Str("url", url).Msg("[WSHandler] connected")
	return nil
}

// awaitHello reads until a hello arrives; anything before it is ignored.
// The socket is closed if ctx ends first.
func (h *Handler) awaitHello(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	deadline, _ := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}
		var msg Message
		if err = Unmarshal(data, &msg); err != nil || msg.Type != TypeHello {
			atomic.AddUint64(&h.ignored, 1)
			continue
		}
		h.hello = msg
		ev := log.Info().Str("sid", h.sid).Str("version", msg.Version).Str("client", msg.Client)
		if msg.Capabilities != nil {
			ev = ev.Strs("codecs", msg.Capabilities.VideoCodecs).
				Str("maxResolution", msg.Capabilities.MaxResolution).
				Int("maxFramerate", msg.Capabilities.MaxFramerate)
		}
		ev.Msg("[WSHandler] hello")
		if !stop() {
			return ctx.Err()
		}
		return conn.SetReadDeadline(time.Time{})
	}
}

func (h *Handler) readLoop(l *link) {
	defer close(l.done)
	defer l.up.Store(false)
	defer protocol.Recover(h.sid, "ws read loop")

	conn, stop := l.conn, l.stop

	var scratch []byte
	for {
		select {
		case <-stop:
			return
		default:
		}
		if h.opts.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
		}
		typ, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
			default:
				log.Warn().Str("sid", h.sid).Err(err).Msg("[WSHandler] connection lost")
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		scratch = h.handleMessage(data, scratch)
	}
}

func (h *Handler) handleMessage(data []byte, scratch []byte) []byte {
	var msg Message
	if err := Unmarshal(data, &msg); err != nil {
		atomic.AddUint64(&h.dropped, 1)
		log.Debug().Str("sid", h.sid).Err(err).Msg("[WSHandler] bad json")
		return scratch
	}
	switch msg.Type {
	case TypeVideoFrame:
		return h.handleVideoFrame(&msg, scratch)
	case TypeHello:
		log.Info().Str("sid", h.sid).Str("version", msg.Version).Str("client", msg.Client).Msg("[WSHandler] hello again")
	case TypeAudioFrame, TypeMetadata:
	default:
		atomic.AddUint64(&h.ignored, 1)
		log.Debug().Str("sid", h.sid).Str("type", msg.Type).Msg("[WSHandler] unknown message")
	}
	return scratch
}

func (h *Handler) handleVideoFrame(msg *Message, scratch []byte) []byte {
	if msg.Data == "" {
		atomic.AddUint64(&h.dropped, 1)
		return scratch
	}
	n := base64.StdEncoding.DecodedLen(len(msg.Data))
	if n > av.MaxFrameSize {
		atomic.AddUint64(&h.dropped, 1)
		log.Debug().Str("sid", h.sid).Int("size", n).Msg("[WSHandler] frame too large")
		return scratch
	}
	if cap(scratch) < n {
		scratch = make([]byte, n)
	}
	n, err := base64.StdEncoding.Decode(scratch[:n], []byte(msg.Data))
	if err != nil || n == 0 {
		atomic.AddUint64(&h.dropped, 1)
		log.Debug().Str("sid", h.sid).Err(err).Msg("[WSHandler] bad base64")
		return scratch
	}

	frame := av.NewFrame(scratch[:n])
	if frame == nil {
		atomic.AddUint64(&h.dropped, 1)
		return scratch
	}
	if msg.Timestamp > 0 {
		frame.Timestamp = time.UnixMilli(msg.Timestamp)
	}
	frame.PTS = msg.PTS
	frame.DTS = msg.DTS
	frame.Sequence = msg.Sequence
	frame.KeyFrame = msg.KeyFrame
	frame.Codec = ParseCodec(msg.Codec)
	h.que.Push(frame)

	received := atomic.AddUint64(&h.received, 1)
	if msg.KeyFrame {
		keys := atomic.AddUint64(&h.keyFrames, 1)
		log.Info().Str("sid", h.sid).Uint64("seq", msg.Sequence).Uint64("keyframes", keys).Int("size", n).Msg("[WSHandler] keyframe")
	} else if received%60 == 0 {
		log.Debug().Str("sid", h.sid).Uint64("received", received).Msg("[WSHandler] frames")
	}
	return scratch
}

// Disconnect stops the read loop, closes the socket and drops buffered frames.
func (h *Handler) Disconnect() {
	defer protocol.Recover(h.sid, "ws disconnect")
	h.lock.Lock()
	defer h.lock.Unlock()
	h.teardown()
}

func (h *Handler) teardown() {
	if l := h.link.Swap(nil); l != nil {
		l.up.Store(false)
		close(l.stop)
		deadline := time.Now().Add(time.Second)
		_ = l.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		if err := l.conn.Close(); err != nil {
			log.Debug().Str("sid", h.sid).Err(err).Msg("[WSHandler] close")
		}
		protocol.WaitOrDetach(l.done, protocol.StopGrace, h.sid, "ws read loop")
		log.Info().Str("sid", h.sid).Any("stat", h.Stat()).Msg("[WSHandler] disconnected")
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

// Hello returns the last hello received from the phone.
func (h *Handler) Hello() Message {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.hello
}

func (h *Handler) Stat() Stat {
	return Stat{
		Received:  atomic.LoadUint64(&h.received),
		KeyFrames: atomic.LoadUint64(&h.keyFrames),
		Dropped:   atomic.LoadUint64(&h.dropped),
		Ignored:   atomic.LoadUint64(&h.ignored),
	}
}
