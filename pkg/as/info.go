package as

import (
	"time"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
)

// infoRequest sends commands over conn and returns the raw decoded body
// bytes (not yet split into command->value pairs), so callers that need
// sequential multi-command parsing (partition/peers parsers) can scan it
// directly.
func infoRequest(conn *Connection, commands []string, deadline time.Time) ([]byte, error) {
	req := aswire.EncodeInfoRequest(commands)
	if err := conn.WriteAll(req, deadline); err != nil {
		return nil, err
	}

	header := make([]byte, aswire.InfoHeaderSize)
	if err := conn.ReadExact(header, deadline); err != nil {
		return nil, err
	}
	_, _, bodyLen, err := aswire.DecodeInfoHeader(header)
	if err != nil {
		return nil, err
	}

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if err := conn.ReadExact(body, deadline); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// infoRequestMap is infoRequest followed by ParseInfoResponse, for callers
// that only need independent command->value lookups (handshake, node
// refresh).
func infoRequestMap(conn *Connection, commands []string, deadline time.Time) (map[string]string, error) {
	body, err := infoRequest(conn, commands, deadline)
	if err != nil {
		return nil, err
	}
	return aswire.ParseInfoResponse(body), nil
}
