package config

import (
	"fmt"
	"strings"

	"github.com/bugVanisher/berrycam/common/errs"
)

// Protocol is the wire protocol used to pull video from the phone.
type Protocol int

const (
	ProtocolWebSocket Protocol = iota
	ProtocolHTTPH264
	ProtocolMJPEG
	ProtocolRTSP
)

const (
	WebSocketPort = 8080
	HTTPPort      = 8081
	RTSPPort      = 8554
)

func (p Protocol) String() string {
	switch p {
	case ProtocolWebSocket:
		return "websocket"
	case ProtocolHTTPH264:
		return "http_h264"
	case ProtocolMJPEG:
		return "mjpeg"
	case ProtocolRTSP:
		return "rtsp"
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

// DefaultPort returns the port the phone app listens on for p.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolHTTPH264, ProtocolMJPEG:
		return HTTPPort
	case ProtocolRTSP:
		return RTSPPort
	}
	return WebSocketPort
}

// StreamURL derives the stream endpoint for a device ip.
func (p Protocol) StreamURL(ip string) string {
	if ip == "" {
		return ""
	}
	switch p {
	case ProtocolHTTPH264:
		return fmt.Sprintf("http://%s:%d/stream.h264", ip, HTTPPort)
	case ProtocolMJPEG:
		return fmt.Sprintf("http://%s:%d/mjpeg", ip, HTTPPort)
	case ProtocolRTSP:
		return fmt.Sprintf("rtsp://%s:%d/stream", ip, RTSPPort)
	}
	return fmt.Sprintf("ws://%s:%d/stream", ip, WebSocketPort)
}

func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(text []byte) error {
	v, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProtocol accepts the protocol names used on the command line and in config files.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "websocket", "ws", "":
		return ProtocolWebSocket, nil
	case "http_h264", "http", "h264":
		return ProtocolHTTPH264, nil
	case "mjpeg", "http_mjpeg":
		return ProtocolMJPEG, nil
	case "rtsp":
		return ProtocolRTSP, nil
	}
	return ProtocolWebSocket, errs.Wrapf(errs.ErrInvalidConfig, "unknown protocol: %s", s)
}
