package session

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/discovery"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/bugVanisher/berrycam/media/protocol/mock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

const testIP = "10.0.0.5"

// factory hands out prepared handlers in order and records what was asked for.
type factory struct {
	lock      sync.Mutex
	handlers  []protocol.Handler
	protocols []config.Protocol
}

func (f *factory) add(h ...protocol.Handler) *factory {
	f.lock.Lock()
	f.handlers = append(f.handlers, h...)
	f.lock.Unlock()
	return f
}

func (f *factory) New(p config.Protocol, sid string) (protocol.Handler, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.protocols = append(f.protocols, p)
	if len(f.handlers) == 0 {
		return nil, errs.Wrapf(errs.ErrUnsupportedProtocol, "no handler left for %s", p)
	}
	h := f.handlers[0]
	f.handlers = f.handlers[1:]
	return h, nil
}

func (f *factory) calls() []config.Protocol {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]config.Protocol(nil), f.protocols...)
}

type sink struct {
	lock   sync.Mutex
	frames int
	clears int
	width  int
	height int
}

func (s *sink) OnFrame(pix []byte, width, height int) {
	s.lock.Lock()
	s.frames++
	s.width, s.height = width, height
	s.lock.Unlock()
}

func (s *sink) OnClear() {
	s.lock.Lock()
	s.clears++
	s.lock.Unlock()
}

func (s *sink) counts() (frames, clears int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.frames, s.clears
}

func fastOptions(f *factory, opt ...Option) []Option {
	return append([]Option{
		WithFactory(f.New),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithRestartSettle(10 * time.Millisecond),
	}, opt...)
}

// idleHandler connects and then never has a frame.
func idleHandler(ctrl *gomock.Controller) *mock.MockHandler {
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil)
	h.EXPECT().ReceiveFrame().Return(nil, false).AnyTimes()
	h.EXPECT().IsConnected().Return(true).AnyTimes()
	h.EXPECT().Disconnect()
	return h
}

// failingHandler refuses to connect.
func failingHandler(ctrl *gomock.Controller) *mock.MockHandler {
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(errs.Wrapf(errs.ErrConnectURL, "refused"))
	h.EXPECT().Disconnect()
	return h
}

func jpegFrame(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.Nil(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPauseFromStoppedIsNoop(t *testing.T) {
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(&factory{})...)
	defer s.Close()

	s.Pause()
	require.Equal(t, StateStopped, s.State())
	s.Resume()
	require.Equal(t, StateStopped, s.State())
	require.False(t, s.IsStreaming())
}

func TestStartWithoutDeviceIP(t *testing.T) {
	f := &factory{}
	s := NewSession(config.SessionConfig{Protocol: config.ProtocolWebSocket}, fastOptions(f)...)
	defer s.Close()

	s.Start()
	require.False(t, s.IsStreaming())
	require.False(t, s.IsActive())
	require.Equal(t, StateStopped, s.State())
	require.Empty(t, f.calls())
}

func TestResumeFromStreamingIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := (&factory{}).add(idleHandler(ctrl))
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f)...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { return s.Metrics().Connects.Load() == 1 }, time.Second, time.Millisecond)
	s.Resume()
	s.Start()
	require.Equal(t, StateStreaming, s.State())
	time.Sleep(50 * time.Millisecond)
	require.Len(t, f.calls(), 1)
}

func TestPauseResumeReconnectsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	connected := make(chan string, 2)
	disconnected := make(chan string, 2)

	newHandler := func(name string) *mock.MockHandler {
		h := mock.NewMockHandler(ctrl)
		h.EXPECT().Connect(gomock.Any(), "ws://10.0.0.5:8080/stream").DoAndReturn(func(ctx context.Context, url string) error {
			connected <- name
			return nil
		}).Times(1)
		h.EXPECT().ReceiveFrame().Return(nil, false).AnyTimes()
		h.EXPECT().IsConnected().Return(true).AnyTimes()
		h.EXPECT().Disconnect().Do(func() {
			disconnected <- name
		}).Times(1)
		return h
	}
	f := (&factory{}).add(newHandler("first"), newHandler("second"))
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f)...)
	defer s.Close()

	s.Start()
	require.Equal(t, "first", <-connected)

	s.Pause()
	require.Equal(t, StatePaused, s.State())
	require.Equal(t, "first", <-disconnected)
	require.True(t, s.IsStreaming())

	s.Resume()
	require.Equal(t, StateStreaming, s.State())
	require.Equal(t, "second", <-connected)

	s.Stop()
	require.Equal(t, "second", <-disconnected)
	require.Len(t, f.calls(), 2)
	require.Equal(t, StateStopped, s.State())
	require.False(t, s.IsActive())
}

func TestFallbackAfterThreeFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	release := make(chan struct{})
	ws := mock.NewMockHandler(ctrl)
	ws.EXPECT().Connect(gomock.Any(), "ws://10.0.0.5:8080/stream").DoAndReturn(func(ctx context.Context, url string) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ws.EXPECT().ReceiveFrame().Return(nil, false).AnyTimes()
	ws.EXPECT().IsConnected().Return(true).AnyTimes()
	ws.EXPECT().Disconnect()

	f := (&factory{}).add(failingHandler(ctrl), failingHandler(ctrl), failingHandler(ctrl), ws)
	out := &sink{}
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolMJPEG), fastOptions(f, WithSink(out))...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.Config().Protocol == config.ProtocolWebSocket && len(f.calls()) == 4
	}, 2*time.Second, time.Millisecond)

	cfg := s.Config()
	require.Equal(t, "ws://10.0.0.5:8080/stream", cfg.URL())
	require.True(t, s.ConnectionFailed())
	require.Equal(t, 0, s.RetryCount())
	_, clears := out.counts()
	require.Equal(t, 1, clears)
	require.Equal(t, uint64(1), s.Metrics().Fallbacks.Load())
	require.Equal(t, []config.Protocol{config.ProtocolMJPEG, config.ProtocolMJPEG, config.ProtocolMJPEG, config.ProtocolWebSocket}, f.calls())

	close(release)
	require.Eventually(t, func() bool { return !s.ConnectionFailed() }, time.Second, time.Millisecond)
	require.Equal(t, 0, s.RetryCount())
	require.Equal(t, StateStreaming, s.State())
	require.True(t, s.IsActive())
	require.Equal(t, uint64(1), s.Metrics().Restarts.Load())
}

func TestRetryResetOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := (&factory{}).add(failingHandler(ctrl), failingHandler(ctrl), idleHandler(ctrl))
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f)...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { return s.Metrics().Connects.Load() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(2), s.Metrics().ConnectFailures.Load())
	require.Equal(t, 0, s.RetryCount())
	require.False(t, s.ConnectionFailed())
	require.Equal(t, config.ProtocolWebSocket, s.Config().Protocol)
	require.Equal(t, StateStreaming, s.State())
}

func TestWebSocketStopsAfterThreeFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := (&factory{}).add(failingHandler(ctrl), failingHandler(ctrl), failingHandler(ctrl))
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f)...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { return !s.IsStreaming() }, time.Second, time.Millisecond)
	require.Equal(t, StateStopped, s.State())
	require.False(t, s.IsActive())
	require.True(t, s.ConnectionFailed())
	require.Equal(t, 3, s.RetryCount())
	require.Equal(t, uint64(0), s.Metrics().Fallbacks.Load())

	time.Sleep(30 * time.Millisecond)
	require.Len(t, f.calls(), 3)
}

func TestConnectionLostReconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	lost := mock.NewMockHandler(ctrl)
	lost.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil)
	lost.EXPECT().ReceiveFrame().Return(nil, false)
	lost.EXPECT().IsConnected().Return(false)
	lost.EXPECT().Disconnect()

	f := (&factory{}).add(lost, idleHandler(ctrl))
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f)...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { return s.Metrics().Connects.Load() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(1), s.Metrics().ConnectFailures.Load())
	require.Equal(t, 0, s.RetryCount())
}

func TestMJPEGURLDerivation(t *testing.T) {
	ctrl := gomock.NewController(t)
	urls := make(chan string, 1)
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, url string) error {
		urls <- url
		return nil
	})
	h.EXPECT().ReceiveFrame().Return(nil, false).AnyTimes()
	h.EXPECT().IsConnected().Return(true).AnyTimes()
	h.EXPECT().Disconnect()

	f := (&factory{}).add(h)
	s := NewSession(config.SessionConfig{Protocol: config.ProtocolMJPEG, DeviceIP: "192.168.1.50"}, fastOptions(f)...)
	defer s.Close()
	require.Equal(t, "http://192.168.1.50:8081/mjpeg", s.Config().URL())

	s.Start()
	require.Equal(t, "http://192.168.1.50:8081/mjpeg", <-urls)
	require.Equal(t, []config.Protocol{config.ProtocolMJPEG}, f.calls())
}

// recorder wraps the registered handlers and keeps every one it built.
type recorder struct {
	lock     sync.Mutex
	handlers []protocol.Handler
}

func (r *recorder) New(p config.Protocol, sid string) (protocol.Handler, error) {
	h, err := protocol.NewHandler(p, sid)
	if err != nil {
		return nil, err
	}
	r.lock.Lock()
	r.handlers = append(r.handlers, h)
	r.lock.Unlock()
	return h, nil
}

func closedPort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.Nil(t, ln.Close())
	return port
}

func TestUnreachableMJPEGHostNeverStreamsDeadHandler(t *testing.T) {
	rec := &recorder{}
	cfg := config.SessionConfig{
		Protocol:  config.ProtocolMJPEG,
		DeviceIP:  "127.0.0.1",
		StreamURL: fmt.Sprintf("http://127.0.0.1:%d/mjpeg", closedPort(t)),
	}
	s := NewSession(cfg,
		WithFactory(rec.New),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithRestartSettle(10*time.Millisecond),
	)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.Metrics().Fallbacks.Load() == 1 && !s.IsStreaming()
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, StateStopped, s.State())
	require.Equal(t, config.ProtocolWebSocket, s.Config().Protocol)
	require.True(t, s.ConnectionFailed())

	rec.lock.Lock()
	defer rec.lock.Unlock()
	require.Len(t, rec.handlers, 6)
	for _, h := range rec.handlers {
		require.False(t, h.IsConnected())
	}
}

func TestConfigureProtocolChangeRestarts(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := (&factory{}).add(idleHandler(ctrl), idleHandler(ctrl))
	out := &sink{}
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f, WithSink(out))...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { return s.Metrics().Connects.Load() == 1 }, time.Second, time.Millisecond)

	// same protocol, nothing restarts
	s.Configure(config.NewSessionConfig(testIP, config.ProtocolWebSocket))
	require.Equal(t, uint64(0), s.Metrics().Restarts.Load())

	s.Configure(config.NewSessionConfig(testIP, config.ProtocolMJPEG))
	require.Eventually(t, func() bool { return s.Metrics().Connects.Load() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(1), s.Metrics().Restarts.Load())
	require.Equal(t, []config.Protocol{config.ProtocolWebSocket, config.ProtocolMJPEG}, f.calls())
	require.Equal(t, "http://10.0.0.5:8081/mjpeg", s.Config().URL())
	_, clears := out.counts()
	require.Equal(t, 1, clears)
}

func TestConfigureInactiveDoesNotStart(t *testing.T) {
	f := &factory{}
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f)...)
	defer s.Close()

	s.Configure(config.NewSessionConfig(testIP, config.ProtocolHTTPH264))
	time.Sleep(30 * time.Millisecond)
	require.False(t, s.IsStreaming())
	require.Empty(t, f.calls())
	require.Equal(t, "http://10.0.0.5:8081/stream.h264", s.Config().URL())
}

func TestDecodeAndReadFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	data := jpegFrame(t, 16, 8)
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil)
	h.EXPECT().ReceiveFrame().DoAndReturn(func() (*av.Frame, bool) {
		f := av.NewFrame(data)
		f.KeyFrame = true
		f.Codec = av.CodecMJPEG
		return f, true
	})
	h.EXPECT().ReceiveFrame().Return(nil, false).AnyTimes()
	h.EXPECT().IsConnected().Return(true).AnyTimes()
	h.EXPECT().Disconnect()

	out := &sink{}
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolMJPEG), fastOptions((&factory{}).add(h), WithSink(out))...)
	defer s.Close()

	require.Equal(t, DefaultWidth, s.Width())
	require.Equal(t, DefaultHeight, s.Height())
	require.False(t, s.ReadFrame(func(pix []byte, w, h int) {}))

	s.Start()
	require.Eventually(t, func() bool {
		frames, _ := out.counts()
		return frames == 1
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, 16, s.Width())
	require.Equal(t, 8, s.Height())
	var got []byte
	require.True(t, s.ReadFrame(func(pix []byte, w, h int) {
		require.Equal(t, 16, w)
		require.Equal(t, 8, h)
		got = append(got, pix...)
	}))
	require.Len(t, got, 16*8*4)
	// green channel survives the jpeg round trip
	require.Greater(t, got[1], byte(150))

	stats := s.Stats()
	require.Equal(t, uint64(1), stats.Flow.Frames)
	require.Equal(t, uint64(1), stats.Flow.Decoded)
	require.Equal(t, "MJPEG", stats.Decoder.Codec)
	require.Equal(t, uint64(1), s.Metrics().FramesDecoded.Load())
}

func TestLoopPanicStopsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil)
	h.EXPECT().ReceiveFrame().DoAndReturn(func() (*av.Frame, bool) {
		panic("boom")
	})
	h.EXPECT().Disconnect()

	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions((&factory{}).add(h))...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool { return !s.IsStreaming() }, time.Second, time.Millisecond)
	require.Equal(t, StateStopped, s.State())
}

func TestBackoff(t *testing.T) {
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket))
	defer s.Close()
	for n, want := range []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second} {
		require.Equal(t, want, s.backoff(n+1), n+1)
	}
}

func TestDevices(t *testing.T) {
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket))
	defer s.Close()
	require.Empty(t, s.Devices())

	devices := []discovery.Device{{Name: "Streamberry-10.0.0.5", IP: testIP, Active: true}}
	s.SetDevices(devices)
	devices[0].Name = "changed"
	got := s.Devices()
	require.Len(t, got, 1)
	require.Equal(t, "Streamberry-10.0.0.5", got[0].Name)
}

func TestLaunch(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions((&factory{}).add(idleHandler(ctrl)))...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Launch(context.Background(), "cam", s, time.Minute)
	}()
	require.Eventually(t, func() bool {
		_, ok := Get("cam")
		return ok && s.Metrics().Connects.Load() == 1
	}, time.Second, time.Millisecond)

	dup := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket))
	require.True(t, errs.Is(Launch(context.Background(), "cam", dup, time.Minute), errs.ErrDuplicateStream))

	require.Nil(t, Stop("cam"))
	require.Nil(t, <-errCh)
	require.False(t, s.IsStreaming())
	require.True(t, errs.Is(Stop("cam"), errs.ErrStreamNotExist))
}

func TestProtocolChangeDropsOldPicture(t *testing.T) {
	ctrl := gomock.NewController(t)
	data := jpegFrame(t, 16, 8)
	old := mock.NewMockHandler(ctrl)
	old.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil)
	old.EXPECT().ReceiveFrame().DoAndReturn(func() (*av.Frame, bool) {
		f := av.NewFrame(data)
		f.KeyFrame = true
		f.Codec = av.CodecMJPEG
		return f, true
	}).AnyTimes()
	old.EXPECT().IsConnected().Return(true).AnyTimes()
	old.EXPECT().Disconnect()

	out := &sink{}
	f := (&factory{}).add(old, idleHandler(ctrl))
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f, WithSink(out))...)
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.ReadFrame(func(pix []byte, w, h int) {})
	}, 2*time.Second, time.Millisecond)

	s.Configure(config.NewSessionConfig(testIP, config.ProtocolMJPEG))
	require.Eventually(t, func() bool { return s.Metrics().Connects.Load() == 2 }, time.Second, time.Millisecond)

	require.False(t, s.ReadFrame(func(pix []byte, w, h int) {}))
	require.Equal(t, DefaultWidth, s.Width())
	require.Equal(t, DefaultHeight, s.Height())
	frames, clears := out.counts()
	require.Equal(t, 1, clears)

	// nothing from the old handler arrives after the clear
	time.Sleep(20 * time.Millisecond)
	after, _ := out.counts()
	require.Equal(t, frames, after)
}

func TestStopDuringPendingConnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	connecting := make(chan struct{})
	h := mock.NewMockHandler(ctrl)
	// completes the handshake even though ctx was cancelled
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, url string) error {
		close(connecting)
		<-ctx.Done()
		return nil
	})
	h.EXPECT().Disconnect()

	f := (&factory{}).add(h)
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions(f, WithJoinTimeout(5*time.Second))...)
	defer s.Close()

	s.Start()
	<-connecting
	start := time.Now()
	s.Stop()
	require.Less(t, time.Since(start), time.Second)

	require.Equal(t, StateStopped, s.State())
	require.False(t, s.IsStreaming())
	require.Equal(t, uint64(0), s.Metrics().Connects.Load())
	require.Equal(t, uint64(0), s.Metrics().ConnectFailures.Load())
	require.Equal(t, 0, s.RetryCount())
	require.Len(t, f.calls(), 1)
}

func TestPauseDuringConnectSkipsDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	connecting := make(chan struct{})
	release := make(chan struct{})
	disconnected := make(chan struct{})
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, url string) error {
		close(connecting)
		<-release
		return nil
	})
	h.EXPECT().ReceiveFrame().Times(0)
	h.EXPECT().Disconnect().Do(func() {
		close(disconnected)
	})

	out := &sink{}
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolWebSocket), fastOptions((&factory{}).add(h), WithSink(out))...)
	defer s.Close()

	s.Start()
	<-connecting
	s.Pause()
	close(release)
	<-disconnected

	require.Equal(t, StatePaused, s.State())
	frames, _ := out.counts()
	require.Equal(t, 0, frames)
}

func TestFailedConnectWhilePausedNotCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	connecting := make(chan struct{})
	release := make(chan struct{})
	h := mock.NewMockHandler(ctrl)
	h.EXPECT().Connect(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, url string) error {
		close(connecting)
		<-release
		return errs.Wrapf(errs.ErrConnectURL, "refused")
	})
	h.EXPECT().Disconnect()

	f := (&factory{}).add(h)
	s := NewSession(config.NewSessionConfig(testIP, config.ProtocolMJPEG), fastOptions(f)...)
	defer s.Close()

	s.Start()
	<-connecting
	s.Pause()
	close(release)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StatePaused, s.State())
	require.Equal(t, 0, s.RetryCount())
	require.Equal(t, uint64(0), s.Metrics().ConnectFailures.Load())
	require.Equal(t, uint64(0), s.Metrics().Fallbacks.Load())
	require.Equal(t, config.ProtocolMJPEG, s.Config().Protocol)
	require.Len(t, f.calls(), 1)
}
