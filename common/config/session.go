package config

// SessionConfig selects what a session pulls. It is replaced wholesale on Configure.
type SessionConfig struct {
	Protocol  Protocol
	DeviceIP  string
	StreamURL string
}

// NewSessionConfig builds a config with the stream url derived from ip and protocol.
func NewSessionConfig(ip string, protocol Protocol) SessionConfig {
	return SessionConfig{
		Protocol:  protocol,
		DeviceIP:  ip,
		StreamURL: protocol.StreamURL(ip),
	}
}

// WithProtocol returns a copy switched to protocol with a re-derived url.
func (c SessionConfig) WithProtocol(protocol Protocol) SessionConfig {
	return NewSessionConfig(c.DeviceIP, protocol)
}

// URL returns the explicit stream url, or the derived one when none was set.
func (c SessionConfig) URL() string {
	if c.StreamURL != "" {
		return c.StreamURL
	}
	return c.Protocol.StreamURL(c.DeviceIP)
}
