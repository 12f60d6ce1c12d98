// Package all registers every protocol handler.
package all

import (
	_ "github.com/bugVanisher/berrycam/media/protocol/httpstream"
	_ "github.com/bugVanisher/berrycam/media/protocol/rtsp"
	_ "github.com/bugVanisher/berrycam/media/protocol/ws"
)
