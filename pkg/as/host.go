package as

import (
	"context"
	"net"
	"strconv"
)

// Host is an immutable endpoint identity: an address (IP literal or DNS
// name), a port, and an optional TLS name used for certificate
// verification when the connection is wrapped in TLS.
type Host struct {
	Name    string
	Port    int
	TLSName string
}

func NewHost(name string, port int) Host {
	return Host{Name: name, Port: port}
}

func (h Host) String() string {
	return net.JoinHostPort(h.Name, strconv.Itoa(h.Port))
}

// IsIP reports whether Name is already an IP literal.
func (h Host) IsIP() bool {
	return net.ParseIP(h.Name) != nil
}

// IsLoopback reports whether Name resolves to a loopback address.
func (h Host) IsLoopback() bool {
	ip := net.ParseIP(h.Name)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// Resolve expands a DNS name into the set of IP-literal hosts it maps to,
// preserving Port and TLSName. An already-IP host resolves to itself.
func (h Host) Resolve(ctx context.Context) ([]Host, error) {
	if h.IsIP() {
		return []Host{h}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, h.Name)
	if err != nil {
		return nil, err
	}
	out := make([]Host, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Host{Name: a.IP.String(), Port: h.Port, TLSName: h.TLSName})
	}
	return out, nil
}
