package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/emulator"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/protocol/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var jpegish = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0xFF, 0xD9}

func startPhone(t *testing.T, opt ...emulator.Option) string {
	opt = append([]emulator.Option{emulator.WithFPS(100)}, opt...)
	s := emulator.NewServer(emulator.NewMemorySource(av.CodecMJPEG, emulator.Sample{Data: jpegish, KeyFrame: true}), opt...)
	srv := httptest.NewServer(s.WSHandler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func waitFrame(t *testing.T, h *ws.Handler) *av.Frame {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f, ok := h.ReceiveFrame(); ok {
			return f
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no frame received")
	return nil
}

func TestHandler_ConnectReceive(t *testing.T) {
	url := startPhone(t)
	h := ws.NewHandler("t1")
	require.Nil(t, h.Connect(context.Background(), url))
	defer h.Disconnect()
	require.True(t, h.IsConnected())
	require.Equal(t, "berrycam-emulator", h.Hello().Client)

	f := waitFrame(t, h)
	require.Equal(t, jpegish, f.Data)
	require.Equal(t, av.CodecMJPEG, f.Codec)
	require.True(t, f.KeyFrame)
	f.Release()
}

func TestHandler_FramesBeforeHelloIgnored(t *testing.T) {
	url := startPhone(t, emulator.WithFramesBeforeHello(3))
	h := ws.NewHandler("t2")
	require.Nil(t, h.Connect(context.Background(), url))
	defer h.Disconnect()

	require.Equal(t, uint64(3), h.Stat().Ignored)
	f := waitFrame(t, h)
	// sequences 0..2 went out before the hello
	require.True(t, f.Sequence >= 3)
	f.Release()
}

func TestHandler_HandshakeTimeout(t *testing.T) {
	url := startPhone(t, emulator.WithoutHello(), emulator.WithFPS(1))
	h := ws.NewHandler("t3", ws.WithConnectTimeout(300*time.Millisecond))
	start := time.Now()
	err := h.Connect(context.Background(), url)
	require.True(t, errs.Is(err, errs.ErrHandshake))
	require.True(t, time.Since(start) < 2*time.Second)
	require.False(t, h.IsConnected())
}

func TestHandler_HandshakeCancelled(t *testing.T) {
	url := startPhone(t, emulator.WithoutHello(), emulator.WithFPS(1))
	h := ws.NewHandler("t3c", ws.WithConnectTimeout(10*time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	err := h.Connect(ctx, url)
	require.True(t, errs.Is(err, errs.ErrHandshake))
	require.Less(t, time.Since(start), 2*time.Second)
	require.False(t, h.IsConnected())
}

func TestHandler_NoHelloRequired(t *testing.T) {
	url := startPhone(t, emulator.WithoutHello())
	h := ws.NewHandler("t4", ws.WithRequireHello(false))
	require.Nil(t, h.Connect(context.Background(), url))
	defer h.Disconnect()
	waitFrame(t, h).Release()
}

func TestHandler_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	srv.Close()

	h := ws.NewHandler("t5", ws.WithConnectTimeout(time.Second))
	err := h.Connect(context.Background(), url)
	require.True(t, errs.Is(err, errs.ErrConnectURL))
	require.Equal(t, errs.CodeConnectURL, int(errs.Code(err)))
	require.False(t, h.IsConnected())
}

func TestHandler_DisconnectIdempotent(t *testing.T) {
	url := startPhone(t)
	h := ws.NewHandler("t6")
	h.Disconnect()
	require.Nil(t, h.Connect(context.Background(), url))
	waitFrame(t, h).Release()

	h.Disconnect()
	h.Disconnect()
	require.False(t, h.IsConnected())
	_, ok := h.ReceiveFrame()
	require.False(t, ok)
}

func TestHandler_Reconnect(t *testing.T) {
	url := startPhone(t)
	h := ws.NewHandler("t7")
	require.Nil(t, h.Connect(context.Background(), url))
	require.Nil(t, h.Connect(context.Background(), url))
	defer h.Disconnect()
	require.True(t, h.IsConnected())
	waitFrame(t, h).Release()
}

func TestHandler_PeerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b, _ := ws.Marshal(&ws.Message{Type: ws.TypeHello, Version: "1.0", Client: "test"})
		_ = conn.WriteMessage(websocket.TextMessage, b)
		_ = conn.Close()
	}))
	defer srv.Close()

	h := ws.NewHandler("t8")
	require.Nil(t, h.Connect(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")))
	require.Eventually(t, func() bool { return !h.IsConnected() }, 3*time.Second, 10*time.Millisecond)
	h.Disconnect()
}
