package discovery

import (
	"context"
	"net"
	"time"

	"github.com/pion/mdns"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"
)

// Lister returns candidate device ips.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// DefaultMDNSNames are the hostnames the phone app answers for.
var DefaultMDNSNames = []string{"streamberry.local"}

// MDNSLister resolves fixed .local hostnames with multicast DNS.
type MDNSLister struct {
	Names   []string
	Timeout time.Duration
}

func NewMDNSLister(names ...string) *MDNSLister {
	if len(names) == 0 {
		names = DefaultMDNSNames
	}
	return &MDNSLister{Names: names, Timeout: DefaultProbeTimeout}
}

func (m *MDNSLister) List(ctx context.Context) ([]string, error) {
	addr, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddress)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	server, err := mdns.Server(ipv4.NewPacketConn(l), &mdns.Config{})
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	defer server.Close()

	seen := map[string]bool{}
	var ips []string
	for _, name := range m.Names {
		qctx, cancel := context.WithTimeout(ctx, m.Timeout)
		_, src, err := server.Query(qctx, name)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("name", name).Msg("[Discovery] mdns no answer")
			continue
		}
		ip := hostOf(src)
		if ip == "" || seen[ip] {
			continue
		}
		seen[ip] = true
		ips = append(ips, ip)
		log.Debug().Str("name", name).Str("ip", ip).Msg("[Discovery] mdns answer")
	}
	return ips, nil
}

func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP.String()
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
