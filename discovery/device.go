package discovery

import (
	"time"

	"github.com/bugVanisher/berrycam/common/config"
)

// Names of the endpoints a phone may advertise. Only the first four map to a
// playable config.Protocol.
const (
	NameWebSocket = "websocket"
	NameHTTPH264  = "http_h264"
	NameMJPEG     = "mjpeg"
	NameDASH      = "dash"
	NameRTSP      = "rtsp"
)

type ProtocolInfo struct {
	Name      string          `json:"name"`
	Protocol  config.Protocol `json:"-"`
	Playable  bool            `json:"playable"`
	URL       string          `json:"url"`
	Port      int             `json:"port"`
	Available bool            `json:"available"`
}

// Device is one phone found on the network.
type Device struct {
	Name      string         `json:"name"`
	IP        string         `json:"ip"`
	Protocols []ProtocolInfo `json:"protocols"`
	LastSeen  time.Time      `json:"last_seen"`
	Active    bool           `json:"active"`
}

// Supports reports whether the device advertised a playable endpoint for p.
func (d Device) Supports(p config.Protocol) bool {
	for _, info := range d.Protocols {
		if info.Playable && info.Available && info.Protocol == p {
			return true
		}
	}
	return false
}

// Preferred picks the protocol to play: WebSocket first, then raw H.264, then MJPEG.
func (d Device) Preferred() (config.Protocol, bool) {
	for _, p := range []config.Protocol{config.ProtocolWebSocket, config.ProtocolHTTPH264, config.ProtocolMJPEG} {
		if d.Supports(p) {
			return p, true
		}
	}
	return config.ProtocolWebSocket, false
}

func deviceName(ip string) string {
	return "Streamberry-" + ip
}
