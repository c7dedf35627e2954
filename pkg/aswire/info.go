// Package aswire implements the Aerospike binary wire protocol: the
// text-framed info subprotocol used for all control traffic, and the
// record message framing used for record-level commands. It has no
// knowledge of clusters, nodes, or connections — it only encodes and
// decodes byte slices.
package aswire

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	// InfoProtocolVersion is the first byte of every info frame.
	InfoProtocolVersion byte = 2
	// InfoMessageType is the second byte of every info frame.
	InfoMessageType     byte = 1

	// InfoHeaderSize is the fixed 8-byte header preceding every info body.
	InfoHeaderSize = 8
)

// EncodeInfoRequest joins commands with '\n', appends a trailing '\n', and
// prepends the 8-byte info frame header with the resulting body length.
func EncodeInfoRequest(commands []string) []byte {
	n := 0
	for _, c := range commands {
		n += len(c) + 1
	}
	buf := make([]byte, InfoHeaderSize+n)
	buf[0] = InfoProtocolVersion
	buf[1] = InfoMessageType
	putUint48(buf[2:8], uint64(n))

	off := InfoHeaderSize
	for _, c := range commands {
		off += copy(buf[off:], c)
		buf[off] = '\n'
		off++
	}
	return buf
}

// DecodeInfoHeader reads the protocol version, message type and body length
// out of an 8-byte info frame header.
func DecodeInfoHeader(header []byte) (version, msgType byte, bodyLen int64, err error) {
	if len(header) != InfoHeaderSize {
		return 0, 0, 0, fmt.Errorf("aswire: info header must be %d bytes, got %d", InfoHeaderSize, len(header))
	}
	return header[0], header[1], int64(getUint48(header[2:8])), nil
}

func putUint48(b []byte, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	copy(b, tmp[2:8])
}

func getUint48(b []byte) uint64 {
	var tmp [8]byte
	copy(tmp[2:8], b)
	return binary.BigEndian.Uint64(tmp[:])
}

// ParseInfoResponse splits a decoded info body on '\n' and each non-empty
// line on the first '\t' into a command -> value map. A command whose reply
// had invalid syntax still appears in the map with its ERROR-carrying value.
func ParseInfoResponse(body []byte) map[string]string {
	out := make(map[string]string)
	start := 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || body[i] == '\n' {
			line := body[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			tab := -1
			for j, b := range line {
				if b == '\t' {
					tab = j
					break
				}
			}
			if tab < 0 {
				out[string(line)] = ""
				continue
			}
			out[string(line[:tab])] = string(line[tab+1:])
		}
	}
	return out
}

// ParseError is returned by Parser methods when the body does not match the
// expected grammar. Truncated carries the (possibly partial) response that
// was being parsed, for diagnostics.
type ParseError struct {
	Reason    string
	Truncated []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("aswire: parse error: %s (response=%q)", e.Reason, string(e.Truncated))
}

// Parser is a cursor over a decoded info response body, with the primitive
// scanners the partition and peer parsers are built from.
type Parser struct {
	Buffer []byte
	Offset int
}

func NewParser(buf []byte) *Parser {
	return &Parser{Buffer: buf}
}

func (p *Parser) errf(reason string) error {
	return &ParseError{Reason: reason, Truncated: p.Buffer}
}

func (p *Parser) Len() int { return len(p.Buffer) }

// Expect consumes a single expected byte, failing if the cursor is at the
// end of the buffer or the byte does not match.
func (p *Parser) Expect(b byte) error {
	if p.Offset >= len(p.Buffer) {
		return p.errf(fmt.Sprintf("expected %q, got end of buffer", b))
	}
	if p.Buffer[p.Offset] != b {
		return p.errf(fmt.Sprintf("expected %q, got %q", b, p.Buffer[p.Offset]))
	}
	p.Offset++
	return nil
}

// ParseName consumes the expected command name followed by a tab.
func (p *Parser) ParseName(expected string) error {
	end := p.Offset + len(expected)
	if end > len(p.Buffer) || string(p.Buffer[p.Offset:end]) != expected {
		return p.errf(fmt.Sprintf("expected command name %q", expected))
	}
	p.Offset = end
	return p.Expect('\t')
}

// ParseInt scans a run of ASCII digits (optionally signed) and returns the
// integer value.
func (p *Parser) ParseInt() (int64, error) {
	begin := p.Offset
	if p.Offset < len(p.Buffer) && (p.Buffer[p.Offset] == '-' || p.Buffer[p.Offset] == '+') {
		p.Offset++
	}
	for p.Offset < len(p.Buffer) && p.Buffer[p.Offset] >= '0' && p.Buffer[p.Offset] <= '9' {
		p.Offset++
	}
	if p.Offset == begin {
		return 0, p.errf("expected integer")
	}
	v, err := strconv.ParseInt(string(p.Buffer[begin:p.Offset]), 10, 64)
	if err != nil {
		return 0, p.errf("invalid integer: " + err.Error())
	}
	return v, nil
}

// ParseString scans until one of the terminators (exclusive) or the end of
// the buffer, and returns the scanned slice as a string. The terminator
// itself is not consumed.
func (p *Parser) ParseString(terminators ...byte) (string, error) {
	begin := p.Offset
	for p.Offset < len(p.Buffer) {
		b := p.Buffer[p.Offset]
		for _, t := range terminators {
			if b == t {
				return string(p.Buffer[begin:p.Offset]), nil
			}
		}
		p.Offset++
	}
	return string(p.Buffer[begin:p.Offset]), nil
}

// SkipToValue advances the cursor past the next tab character, used after
// a command name has already been matched some other way.
func (p *Parser) SkipToValue() error {
	for p.Offset < len(p.Buffer) {
		if p.Buffer[p.Offset] == '\t' {
			p.Offset++
			return nil
		}
		p.Offset++
	}
	return p.errf("expected tab before value")
}
