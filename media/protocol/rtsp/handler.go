package rtsp

import (
	"context"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/rs/zerolog/log"
)

func init() {
	protocol.Register(config.ProtocolRTSP, func(sid string) protocol.Handler {
		return NewHandler(sid)
	})
}

// Handler reserves the RTSP slot. It never connects.
type Handler struct {
	sid string
}

func NewHandler(sid string) *Handler {
	return &Handler{sid: sid}
}

func (h *Handler) Connect(ctx context.Context, url string) error {
	log.Warn().Str("sid", h.sid).Str("url", url).Msg("[RTSPHandler] rtsp is not supported")
	return protocol.UnsupportedProtocol(config.ProtocolRTSP)
}

func (h *Handler) Disconnect() {}

func (h *Handler) IsConnected() bool {
	return false
}

func (h *Handler) ReceiveFrame() (*av.Frame, bool) {
	return nil, false
}
