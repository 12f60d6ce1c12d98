package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/media/protocol"
	"github.com/rs/zerolog/log"
)

// Scanner finds phones by probing the stream ports of candidate hosts.
type Scanner struct {
	opts   Options
	client *http.Client
}

func NewScanner(opt ...Option) *Scanner {
	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	dialer := net.Dialer{Timeout: opts.ProbeTimeout}
	return &Scanner{
		opts: opts,
		client: &http.Client{
			Timeout: opts.ProbeTimeout,
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				DisableKeepAlives: true,
			},
		},
	}
}

// Scan probes mDNS answers first and sweeps the subnet candidates only when
// mDNS yields no device.
func (s *Scanner) Scan(ctx context.Context) []Device {
	start := time.Now()
	var devices []Device
	if s.opts.Lister != nil {
		ips, err := s.opts.Lister.List(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("[Discovery] mdns unavailable")
		}
		devices = s.probeAll(ctx, ips)
	}
	if len(devices) == 0 {
		candidates := Candidates(s.opts.Subnets, s.opts.Hosts)
		log.Debug().Int("candidates", len(candidates)).Msg("[Discovery] no mdns device, subnet scan")
		devices = s.probeAll(ctx, candidates)
	}
	log.Info().Int("devices", len(devices)).Dur("cost", time.Since(start)).Msg("[Discovery] scan done")
	return devices
}

func (s *Scanner) probeAll(ctx context.Context, ips []string) []Device {
	found := make([]*Device, len(ips))
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup
	for i, ip := range ips {
		wg.Add(1)
		go func(i int, ip string) {
			defer wg.Done()
			defer protocol.Recover("", "discovery probe")
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if d, ok := s.Probe(ctx, ip); ok {
				found[i] = &d
			}
		}(i, ip)
	}
	wg.Wait()

	var devices []Device
	for _, d := range found {
		if d != nil {
			devices = append(devices, *d)
		}
	}
	return devices
}

// Probe checks the websocket, http and rtsp ports of one host.
func (s *Scanner) Probe(ctx context.Context, ip string) (Device, bool) {
	d := Device{
		Name:     deviceName(ip),
		IP:       ip,
		LastSeen: time.Now(),
	}
	log.Debug().Str("ip", ip).Msg("[Discovery] probing")

	if s.head(ctx, fmt.Sprintf("http://%s/health", s.hostPort(ip, s.opts.WSPort)), true) {
		d.Protocols = append(d.Protocols, ProtocolInfo{
			Name:      NameWebSocket,
			Protocol:  config.ProtocolWebSocket,
			Playable:  true,
			URL:       fmt.Sprintf("ws://%s/stream", s.hostPort(ip, s.opts.WSPort)),
			Port:      s.opts.WSPort,
			Available: true,
		})
	}

	if s.head(ctx, fmt.Sprintf("http://%s/", s.hostPort(ip, s.opts.HTTPPort)), false) {
		base := "http://" + s.hostPort(ip, s.opts.HTTPPort)
		d.Protocols = append(d.Protocols,
			ProtocolInfo{Name: NameHTTPH264, Protocol: config.ProtocolHTTPH264, Playable: true, URL: base + "/stream.h264", Port: s.opts.HTTPPort, Available: true},
			ProtocolInfo{Name: NameMJPEG, Protocol: config.ProtocolMJPEG, Playable: true, URL: base + "/mjpeg", Port: s.opts.HTTPPort, Available: true},
			ProtocolInfo{Name: NameDASH, URL: base + "/dash/manifest.mpd", Port: s.opts.HTTPPort, Available: true},
		)
	}

	if s.dial(ctx, s.hostPort(ip, s.opts.RTSPPort)) {
		d.Protocols = append(d.Protocols, ProtocolInfo{
			Name:      NameRTSP,
			Protocol:  config.ProtocolRTSP,
			URL:       fmt.Sprintf("rtsp://%s/stream", s.hostPort(ip, s.opts.RTSPPort)),
			Port:      s.opts.RTSPPort,
			Available: true,
		})
	}

	d.Active = len(d.Protocols) > 0
	if d.Active {
		log.Info().Str("ip", ip).Int("protocols", len(d.Protocols)).Msg("[Discovery] found device")
	}
	return d, d.Active
}

func (s *Scanner) hostPort(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

// head sends a HEAD request. With want200 only a 200 counts, otherwise any response.
func (s *Scanner) head(ctx context.Context, url string, want200 bool) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return !want200 || resp.StatusCode == http.StatusOK
}

func (s *Scanner) dial(ctx context.Context, addr string) bool {
	dialer := net.Dialer{Timeout: s.opts.RTSPTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Candidates combines every subnet prefix with every host number.
func Candidates(subnets []string, hosts []int) []string {
	ips := make([]string, 0, len(subnets)*len(hosts))
	for _, subnet := range subnets {
		for _, host := range hosts {
			ips = append(ips, subnet+strconv.Itoa(host))
		}
	}
	return ips
}

// DeviceScanner is satisfied by *Scanner.
type DeviceScanner interface {
	Scan(ctx context.Context) []Device
}

// Run scans immediately and then every interval until ctx is done.
func Run(ctx context.Context, scanner DeviceScanner, interval time.Duration, fn func([]Device)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		devices := scanner.Scan(ctx)
		if ctx.Err() != nil {
			return
		}
		fn(devices)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
