package cmd

import (
	"bytes"
	"testing"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/discovery"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func TestPrintDevices(t *testing.T) {
	devices := []discovery.Device{{
		Name: "Streamberry-192.168.1.100",
		IP:   "192.168.1.100",
		Protocols: []discovery.ProtocolInfo{
			{Name: discovery.NameWebSocket, Protocol: config.ProtocolWebSocket, Playable: true, URL: "ws://192.168.1.100:8080/stream", Port: 8080, Available: true},
			{Name: discovery.NameRTSP, Protocol: config.ProtocolRTSP, URL: "rtsp://192.168.1.100:8554/stream", Port: 8554},
		},
		Active: true,
	}}

	var buf bytes.Buffer
	require.Nil(t, printDevices(&buf, devices, false))
	require.Equal(t, "Streamberry-192.168.1.100\t192.168.1.100\n\twebsocket\tws://192.168.1.100:8080/stream\n", buf.String())

	buf.Reset()
	require.Nil(t, printDevices(&buf, devices, true))
	var got []discovery.Device
	require.Nil(t, jsoniter.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "192.168.1.100", got[0].IP)
	require.Len(t, got[0].Protocols, 2)

	buf.Reset()
	require.Nil(t, printDevices(&buf, nil, false))
	require.Equal(t, "no device found\n", buf.String())
}
