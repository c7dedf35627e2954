package as

import (
	"fmt"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
)

// parsePeersResponse decodes the body of peers-clear-std (or its TLS/
// alternate variants), per spec.md §4.6:
//
//	<generation>,<default_port>,[<peer>[,<peer>]*]
//	peer := [<node_name>,<tls_name>,[<host>[,<host>]*]]
//	host := <ipv4-or-name>[:port] | [<ipv6>][:port]
func parsePeersResponse(body []byte) (generation int64, peers []Peer, err error) {
	p := aswire.NewParser(body)
	if p.Len() == 0 {
		return 0, nil, errParse("peers response is empty")
	}

	if err := p.SkipToValue(); err != nil {
		return 0, nil, err
	}
	generation, err = p.ParseInt()
	if err != nil {
		return 0, nil, err
	}
	if err := p.Expect(','); err != nil {
		return 0, nil, err
	}
	defaultPort, err := p.ParseInt()
	if err != nil {
		return 0, nil, err
	}
	if err := p.Expect(','); err != nil {
		return 0, nil, err
	}
	if err := p.Expect('['); err != nil {
		return 0, nil, err
	}

	if p.Offset < p.Len() && p.Buffer[p.Offset] == ']' {
		return generation, nil, nil
	}

	for {
		peer, err := parsePeer(p, int(defaultPort))
		if err != nil {
			return 0, nil, err
		}
		peers = append(peers, peer)

		if p.Offset < p.Len() && p.Buffer[p.Offset] == ',' {
			p.Offset++
			continue
		}
		break
	}
	return generation, peers, nil
}

func parsePeer(p *aswire.Parser, defaultPort int) (Peer, error) {
	if err := p.Expect('['); err != nil {
		return Peer{}, err
	}
	nodeName, err := p.ParseString(',')
	if err != nil {
		return Peer{}, err
	}
	p.Offset++ // consume ','
	tlsName, err := p.ParseString(',')
	if err != nil {
		return Peer{}, err
	}
	p.Offset++ // consume ','

	hosts, err := parseHosts(p, defaultPort, tlsName)
	if err != nil {
		return Peer{}, err
	}
	if err := p.Expect(']'); err != nil {
		return Peer{}, err
	}
	return Peer{NodeName: nodeName, Hosts: hosts}, nil
}

func parseHosts(p *aswire.Parser, defaultPort int, tlsName string) ([]Host, error) {
	var hosts []Host
	if err := p.Expect('['); err != nil {
		return nil, err
	}
	if p.Offset < p.Len() && p.Buffer[p.Offset] == ']' {
		p.Offset++
		return hosts, nil
	}
	for {
		h, err := parseHost(p, defaultPort)
		if err != nil {
			return nil, err
		}
		h.TLSName = tlsName
		hosts = append(hosts, h)

		if p.Offset >= p.Len() {
			return nil, &aswire.ParseError{Reason: "unterminated host list", Truncated: p.Buffer}
		}
		if p.Buffer[p.Offset] == ']' {
			p.Offset++
			return hosts, nil
		}
		p.Offset++ // consume ','
	}
}

func parseHost(p *aswire.Parser, defaultPort int) (Host, error) {
	var name string
	var err error
	if p.Offset < p.Len() && p.Buffer[p.Offset] == '[' {
		p.Offset++
		name, err = p.ParseString(']')
		if err != nil {
			return Host{}, err
		}
		p.Offset++
	} else {
		name, err = p.ParseString(':', ',', ']')
		if err != nil {
			return Host{}, err
		}
	}

	if p.Offset >= p.Len() {
		return Host{}, &aswire.ParseError{Reason: fmt.Sprintf("unterminated host %q in response", name), Truncated: p.Buffer}
	}

	switch p.Buffer[p.Offset] {
	case ':':
		p.Offset++
		port, err := p.ParseInt()
		if err != nil {
			return Host{}, err
		}
		return Host{Name: name, Port: int(port)}, nil
	case ',', ']':
		return Host{Name: name, Port: defaultPort}, nil
	default:
		return Host{}, &aswire.ParseError{Reason: fmt.Sprintf("unterminated host %q in response", name), Truncated: p.Buffer}
	}
}
