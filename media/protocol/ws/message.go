package ws

import (
	"strings"

	"github.com/bugVanisher/berrycam/media/av"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	TypeHello      = "hello"
	TypeVideoFrame = "video_frame"
	TypeAudioFrame = "audio_frame"
	TypeMetadata   = "metadata"
)

// Capabilities is what the phone advertises in its hello.
type Capabilities struct {
	VideoCodecs   []string `json:"videoCodecs"`
	MaxResolution string   `json:"maxResolution"`
	MaxFramerate  int      `json:"maxFramerate"`
}

// Message is the union of all JSON messages on the stream socket.
type Message struct {
	Type string `json:"type"`

	// hello
	Version      string        `json:"version,omitempty"`
	Client       string        `json:"client,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`

	// video_frame
	Timestamp int64  `json:"timestamp,omitempty"`
	PTS       int64  `json:"pts,omitempty"`
	DTS       int64  `json:"dts,omitempty"`
	Sequence  uint64 `json:"sequence,omitempty"`
	KeyFrame  bool   `json:"keyframe,omitempty"`
	Codec     string `json:"codec,omitempty"`
	Data      string `json:"data,omitempty"`
}

// ParseCodec maps the codec field to a codec type; unknown names yield CodecUnknown.
func ParseCodec(s string) av.CodecType {
	switch strings.ToLower(s) {
	case "h264", "avc", "h.264":
		return av.CodecH264
	case "mjpeg", "jpeg", "jpg":
		return av.CodecMJPEG
	}
	return av.CodecUnknown
}

func Marshal(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

func Unmarshal(b []byte, m *Message) error {
	return json.Unmarshal(b, m)
}
