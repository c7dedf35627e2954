package aswire

import "encoding/binary"

// Record message framing constants, per spec.md §4.9.
const (
	ProtoHeaderSize     = 8
	RecordHeaderSize    = 22
	FieldHeaderSize     = 5
	OperationHeaderSize = 8

	ClMsgVersion byte = 2
	AsMsgType    byte = 3

	// read/write/info attribute bits.
	Info1Read       byte = 1 << 0
	Info1GetAll     byte = 1 << 1
	Info1NoBinData  byte = 1 << 5
	Info2Write      byte = 1 << 0
	Info2Delete     byte = 1 << 1
	Info2Generation byte = 1 << 2
)

// FieldType enumerates the record message field types spec.md §4.9 names.
type FieldType uint8

const (
	FieldNamespace  FieldType = 0
	FieldSet        FieldType = 1
	FieldDigestRipe FieldType = 4
)

// ParticleType enumerates the bin value particle types.
type ParticleType uint8

const (
	ParticleInteger ParticleType = 1
	ParticleString  ParticleType = 3
	ParticleBlob    ParticleType = 4
	ParticleList    ParticleType = 20
	ParticleMap     ParticleType = 19
	ParticleHLL     ParticleType = 18
	ParticleGeoJSON ParticleType = 23
)

// PutProtoHeader writes the 8-byte proto header: size in the low 48 bits
// (size is the message length not counting these 8 bytes), with the
// protocol version in the top byte and the message type in the next one:
// `size | (version << 56) | (msgType << 48)`.
func PutProtoHeader(buf []byte, size uint64) {
	proto := size | uint64(ClMsgVersion)<<56 | uint64(AsMsgType)<<48
	binary.BigEndian.PutUint64(buf, proto)
}

// ParseProtoHeader reverses PutProtoHeader, returning the encoded size.
func ParseProtoHeader(buf []byte) (size uint64, version, msgType byte) {
	proto := binary.BigEndian.Uint64(buf)
	return proto & 0xFFFFFFFFFFFF, byte(proto >> 56), byte(proto >> 48)
}

// RecordHeader is the 22-byte record message header that follows the proto
// header, per spec.md §4.9's table.
type RecordHeader struct {
	HeaderLength   byte
	ReadAttr       byte
	WriteAttr      byte
	InfoAttr       byte
	ResultCode     byte
	Generation     uint32
	Expiration     uint32
	ServerTimeout  uint32
	FieldCount     uint16
	OperationCount uint16
}

// Put writes the header into buf[0:22].
func (h RecordHeader) Put(buf []byte) {
	buf[0] = RecordHeaderSize
	buf[1] = h.ReadAttr
	buf[2] = h.WriteAttr
	buf[3] = h.InfoAttr
	buf[4] = 0 // unused
	buf[5] = h.ResultCode
	binary.BigEndian.PutUint32(buf[6:10], h.Generation)
	binary.BigEndian.PutUint32(buf[10:14], h.Expiration)
	binary.BigEndian.PutUint32(buf[14:18], h.ServerTimeout)
	binary.BigEndian.PutUint16(buf[18:20], h.FieldCount)
	binary.BigEndian.PutUint16(buf[20:22], h.OperationCount)
}

// ParseRecordHeader reads a RecordHeader out of buf[0:22].
func ParseRecordHeader(buf []byte) RecordHeader {
	return RecordHeader{
		HeaderLength:   buf[0],
		ReadAttr:       buf[1],
		WriteAttr:      buf[2],
		InfoAttr:       buf[3],
		ResultCode:     buf[5],
		Generation:     binary.BigEndian.Uint32(buf[6:10]),
		Expiration:     binary.BigEndian.Uint32(buf[10:14]),
		ServerTimeout:  binary.BigEndian.Uint32(buf[14:18]),
		FieldCount:     binary.BigEndian.Uint16(buf[18:20]),
		OperationCount: binary.BigEndian.Uint16(buf[20:22]),
	}
}

// PutFieldHeader writes a field's 5-byte header: 4-byte big-endian length
// (payload length + 1 for the type byte) followed by the type byte.
func PutFieldHeader(buf []byte, payloadLen int, typ FieldType) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(payloadLen+1))
	buf[4] = byte(typ)
}

// OperationHeader describes a single bin operation's fixed-size prefix.
type OperationHeader struct {
	OpType       byte
	ParticleType ParticleType
	NameLen      byte
}

// PutOperationHeader writes an 8-byte operation header: 4-byte size
// (name + value + 4 trailing descriptor bytes), op type, particle type,
// version byte (always 0 on the wire today), and bin-name length.
func PutOperationHeader(buf []byte, nameLen, valueLen int, opType byte, particle ParticleType) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(nameLen+valueLen+4))
	buf[4] = opType
	buf[5] = byte(particle)
	buf[6] = 0 // version
	buf[7] = byte(nameLen)
}
