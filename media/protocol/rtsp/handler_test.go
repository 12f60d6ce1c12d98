package rtsp

import (
	"context"
	"testing"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/stretchr/testify/require"
)

func TestHandler_Unsupported(t *testing.T) {
	h, err := protocol.NewHandler(config.ProtocolRTSP, "r1")
	require.Nil(t, err)
	err = h.Connect(context.Background(), config.ProtocolRTSP.StreamURL("10.0.0.2"))
	require.True(t, errs.Is(err, errs.ErrUnsupportedProtocol))
	require.False(t, h.IsConnected())
	_, ok := h.ReceiveFrame()
	require.False(t, ok)
	h.Disconnect()
}
