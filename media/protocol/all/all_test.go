package all

import (
	"testing"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	for _, p := range []config.Protocol{config.ProtocolWebSocket, config.ProtocolHTTPH264, config.ProtocolMJPEG, config.ProtocolRTSP} {
		h, err := protocol.NewHandler(p, "all")
		require.Nil(t, err, p.String())
		require.NotNil(t, h)
		require.False(t, h.IsConnected())
	}
	_, err := protocol.NewHandler(config.Protocol(42), "all")
	require.NotNil(t, err)
}
