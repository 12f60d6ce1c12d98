package emulator

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/protocol/ws"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	FPS               int
	Version           string
	Client            string
	SkipHello         bool
	FramesBeforeHello int
	WSAddr            string
	HTTPAddr          string
}

type Option func(*Options)

func WithFPS(fps int) Option {
	return func(opts *Options) {
		opts.FPS = fps
	}
}

// WithoutHello makes the websocket endpoint stream frames without a hello.
func WithoutHello() Option {
	return func(opts *Options) {
		opts.SkipHello = true
	}
}

// WithFramesBeforeHello sends n video frames before the hello message.
func WithFramesBeforeHello(n int) Option {
	return func(opts *Options) {
		opts.FramesBeforeHello = n
	}
}

// WithAddrs sets the listen addresses used by Publish.
func WithAddrs(wsAddr, httpAddr string) Option {
	return func(opts *Options) {
		opts.WSAddr = wsAddr
		opts.HTTPAddr = httpAddr
	}
}

// Server plays the phone side: a websocket endpoint on the stream port and
// raw H.264 or MJPEG over plain HTTP on the http port.
type Server struct {
	opts     Options
	src      Source
	upgrader websocket.Upgrader

	clients int32
	sent    uint64
}

func NewServer(src Source, opt ...Option) *Server {
	opts := Options{
		FPS:      30,
		Version:  "1.0",
		Client:   "berrycam-emulator",
		WSAddr:   fmt.Sprintf(":%d", config.WebSocketPort),
		HTTPAddr: fmt.Sprintf(":%d", config.HTTPPort),
	}
	for _, o := range opt {
		o(&opts)
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	return &Server{
		opts: opts,
		src:  src,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WSHandler serves /stream and /health.
func (s *Server) WSHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.serveWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HTTPHandler serves /, /stream.h264 and /mjpeg.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream.h264", s.serveH264)
	mux.HandleFunc("/mjpeg", s.serveMJPEG)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Publish listens on both ports until ctx is done.
func (s *Server) Publish(ctx context.Context) error {
	servers := []*http.Server{
		{Addr: s.opts.WSAddr, Handler: s.WSHandler()},
		{Addr: s.opts.HTTPAddr, Handler: s.HTTPHandler()},
	}
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, started := range servers {
				_ = started.Close()
			}
			log.Error().Err(err).Str("addr", srv.Addr).Msg("[Emulator] listen fail")
			return err
		}
		log.Info().Str("addr", ln.Addr().String()).Msg("[Emulator] listening")
		go func(srv *http.Server, ln net.Listener) {
			errCh <- srv.Serve(ln)
		}(srv, ln)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	for _, srv := range servers {
		_ = srv.Close()
	}
	if err == http.ErrServerClosed {
		err = nil
	}
	log.Info().Uint64("sent", atomic.LoadUint64(&s.sent)).Msg("[Emulator] stopped")
	return err
}

func (s *Server) interval() time.Duration {
	return time.Second / time.Duration(s.opts.FPS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[Emulator] upgrade fail")
		return
	}
	defer conn.Close()
	n := atomic.AddInt32(&s.clients, 1)
	defer atomic.AddInt32(&s.clients, -1)
	log.Info().Str("remote", r.RemoteAddr).Int32("clients", n).Msg("[Emulator] ws client")

	// drain reads so close frames are processed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var seq uint64
	send := func() error {
		sample := s.src.Sample(seq)
		msg := &ws.Message{
			Type:      ws.TypeVideoFrame,
			Timestamp: time.Now().UnixMilli(),
			PTS:       int64(seq) * int64(s.interval()/time.Millisecond),
			DTS:       int64(seq) * int64(s.interval()/time.Millisecond),
			Sequence:  seq,
			KeyFrame:  sample.KeyFrame,
			Codec:     codecName(s.src.Codec()),
			Data:      base64.StdEncoding.EncodeToString(sample.Data),
		}
		seq++
		return s.writeJSON(conn, msg)
	}

	for i := 0; i < s.opts.FramesBeforeHello; i++ {
		if send() != nil {
			return
		}
	}
	if !s.opts.SkipHello {
		hello := &ws.Message{
			Type:    ws.TypeHello,
			Version: s.opts.Version,
			Client:  s.opts.Client,
			Capabilities: &ws.Capabilities{
				VideoCodecs:   []string{codecName(s.src.Codec())},
				MaxResolution: "1920x1080",
				MaxFramerate:  s.opts.FPS,
			},
		}
		if s.writeJSON(conn, hello) != nil {
			return
		}
	}

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				log.Debug().Err(err).Msg("[Emulator] ws client gone")
				return
			}
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, msg *ws.Message) error {
	b, err := ws.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err = conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return err
	}
	if msg.Type == ws.TypeVideoFrame {
		atomic.AddUint64(&s.sent, 1)
	}
	return nil
}

func (s *Server) serveH264(w http.ResponseWriter, r *http.Request) {
	if s.src.Codec() != av.CodecH264 {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "video/h264")
	w.Header().Set("Cache-Control", "no-cache")

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for seq := uint64(0); ; seq++ {
		if _, err := w.Write(s.src.Sample(seq).Data); err != nil {
			return
		}
		flusher.Flush()
		atomic.AddUint64(&s.sent, 1)
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) serveMJPEG(w http.ResponseWriter, r *http.Request) {
	if s.src.Codec() != av.CodecMJPEG {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for seq := uint64(0); ; seq++ {
		data := s.src.Sample(seq).Data
		header := fmt.Sprintf("--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write([]byte(header)); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()
		atomic.AddUint64(&s.sent, 1)
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// Sent is the number of video frames written to any client.
func (s *Server) Sent() uint64 {
	return atomic.LoadUint64(&s.sent)
}

// Clients is the number of connected websocket clients.
func (s *Server) Clients() int {
	return int(atomic.LoadInt32(&s.clients))
}

func codecName(c av.CodecType) string {
	if c == av.CodecMJPEG {
		return "mjpeg"
	}
	return "h264"
}
