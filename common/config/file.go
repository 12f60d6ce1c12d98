package config

import (
	"net"
	"os"
	"time"

	"github.com/bugVanisher/berrycam/common/errs"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDiscoveryInterval = 15 * time.Second
	DefaultFFmpegPath        = "ffmpeg"
)

// File is the on-disk configuration of the headless host.
type File struct {
	Device    DeviceConfig    `yaml:"device"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Decoder   DecoderConfig   `yaml:"decoder"`
}

type DeviceConfig struct {
	IP       string   `yaml:"ip"`
	ManualIP string   `yaml:"manual_ip"` // wins over ip and discovered devices
	Protocol Protocol `yaml:"protocol"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type DiscoveryConfig struct {
	Interval time.Duration `yaml:"interval"`
	MDNS     bool          `yaml:"mdns"`
}

type DecoderConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Device:    DeviceConfig{Protocol: ProtocolWebSocket},
		Log:       LogConfig{Level: "INFO"},
		Discovery: DiscoveryConfig{Interval: DefaultDiscoveryInterval, MDNS: true},
		Decoder:   DecoderConfig{FFmpegPath: DefaultFFmpegPath},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrInvalidConfig, "read %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default.
func Parse(data []byte) (*File, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrapf(errs.ErrInvalidConfig, "parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *File) Validate() error {
	for _, ip := range []string{f.Device.IP, f.Device.ManualIP} {
		if ip != "" && net.ParseIP(ip) == nil {
			return errs.Wrapf(errs.ErrInvalidConfig, "bad device ip: %s", ip)
		}
	}
	if f.Discovery.Interval <= 0 {
		f.Discovery.Interval = DefaultDiscoveryInterval
	}
	if f.Decoder.FFmpegPath == "" {
		f.Decoder.FFmpegPath = DefaultFFmpegPath
	}
	if f.Decoder.Width < 0 || f.Decoder.Height < 0 || (f.Decoder.Width == 0) != (f.Decoder.Height == 0) {
		return errs.Wrapf(errs.ErrInvalidConfig, "bad output size %dx%d", f.Decoder.Width, f.Decoder.Height)
	}
	return nil
}

// DeviceIP resolves which ip to use: manual, then configured, then discovered.
func (f *File) DeviceIP(discovered string) string {
	if f.Device.ManualIP != "" {
		return f.Device.ManualIP
	}
	if f.Device.IP != "" {
		return f.Device.IP
	}
	return discovered
}
