package as

import (
	"time"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/ascode"
	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
)

// baseCommand carries the routing state every record command shares: the
// key, its Partition (with the replica sequence cursor), the policy, and
// the retry attempt counter prepareRetry advances.
type baseCommand struct {
	key     Key
	part    Partition
	policy  Policy
	attempt int
}

func newBaseCommand(key Key, policy Policy) baseCommand {
	return baseCommand{key: key, part: PartitionForKey(key), policy: policy}
}

func (b *baseCommand) prepareRetry(wasTimeout bool) { b.attempt++ }

func (b *baseCommand) selectNode(cluster *Cluster, forWrite bool) (*Node, error) {
	node, err := b.part.resolve(cluster.partitionMap, b.policy.Replica, forWrite, b.attempt)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// writeRecordHeader writes the common proto + record header + namespace/
// set/digest fields, returning the buffer positioned after the fields so
// the caller can append operations.
func writeRecordHeader(key Key, readAttr, writeAttr, infoAttr byte, opCount int, serverTimeoutMs uint32) []byte {
	nsLen := len(key.Namespace)
	setLen := len(key.SetName)
	digest := key.Digest()

	fieldsLen := aswire.FieldHeaderSize + nsLen
	if setLen > 0 {
		fieldsLen += aswire.FieldHeaderSize + setLen
	}
	fieldsLen += aswire.FieldHeaderSize + len(digest)

	size := aswire.RecordHeaderSize + fieldsLen
	buf := make([]byte, aswire.ProtoHeaderSize+size, aswire.ProtoHeaderSize+size+64)
	aswire.PutProtoHeader(buf, uint64(size))

	fieldCount := uint16(2)
	if setLen > 0 {
		fieldCount = 3
	}
	header := aswire.RecordHeader{
		ReadAttr:       readAttr,
		WriteAttr:      writeAttr,
		InfoAttr:       infoAttr,
		ServerTimeout:  serverTimeoutMs,
		FieldCount:     fieldCount,
		OperationCount: uint16(opCount),
	}
	header.Put(buf[aswire.ProtoHeaderSize:])

	off := aswire.ProtoHeaderSize + aswire.RecordHeaderSize
	aswire.PutFieldHeader(buf[off:], nsLen, aswire.FieldNamespace)
	off += aswire.FieldHeaderSize
	off += copy(buf[off:], key.Namespace)

	if setLen > 0 {
		aswire.PutFieldHeader(buf[off:], setLen, aswire.FieldSet)
		off += aswire.FieldHeaderSize
		off += copy(buf[off:], key.SetName)
	}

	aswire.PutFieldHeader(buf[off:], len(digest), aswire.FieldDigestRipe)
	off += aswire.FieldHeaderSize
	off += copy(buf[off:], digest[:])

	return buf
}

func appendOperation(buf []byte, opType byte, name string, value Value) []byte {
	valueLen := value.EstimateSize()
	opBuf := make([]byte, aswire.OperationHeaderSize+len(name)+valueLen)
	aswire.PutOperationHeader(opBuf, len(name), valueLen, opType, value.ParticleType())
	copy(opBuf[aswire.OperationHeaderSize:], name)
	value.Put(opBuf[aswire.OperationHeaderSize+len(name):])
	buf = append(buf, opBuf...)
	patchProtoSize(buf)
	return buf
}

func patchProtoSize(buf []byte) {
	size := uint64(len(buf) - aswire.ProtoHeaderSize)
	aswire.PutProtoHeader(buf, size)
}

const (
	opTypeRead  = 1
	opTypeWrite = 2
)

// GetCommand reads every bin of a record.
type GetCommand struct {
	baseCommand
	Bins Bins
}

func NewGetCommand(key Key, policy Policy) *GetCommand {
	return &GetCommand{baseCommand: newBaseCommand(key, policy)}
}

func (c *GetCommand) kind() commandKind { return kindGet }
func (c *GetCommand) isWrite() bool     { return false }

func (c *GetCommand) getNode(cluster *Cluster, attempt int) (*Node, error) {
	return c.selectNode(cluster, false)
}

func (c *GetCommand) writeBuffer() ([]byte, error) {
	timeoutMs := uint32(c.policy.SocketTimeout / time.Millisecond)
	buf := writeRecordHeader(c.key, aswire.Info1Read|aswire.Info1GetAll, 0, 0, 0, timeoutMs)
	return buf, nil
}

func (c *GetCommand) parseResult(conn *Connection, deadline time.Time) error {
	header, body, err := readRecordMessage(conn, deadline)
	if err != nil {
		return err
	}
	if ae := classifyResultCode(header.ResultCode); ae != nil {
		return ae
	}

	bins := make(Bins, header.OperationCount)
	off := 0
	for i := uint16(0); i < header.OperationCount; i++ {
		if off+aswire.OperationHeaderSize > len(body) {
			return errParse("truncated operation in get response")
		}
		opSize := int(beUint32(body[off : off+4]))
		particle := aswire.ParticleType(body[off+5])
		nameLen := int(body[off+7])
		valueLen := opSize - nameLen - 4

		nameStart := off + aswire.OperationHeaderSize
		name := string(body[nameStart : nameStart+nameLen])
		valueStart := nameStart + nameLen
		value, err := decodeValue(particle, body[valueStart:valueStart+valueLen])
		if err != nil {
			return err
		}
		bins[name] = value
		off = valueStart + valueLen
	}
	c.Bins = bins
	return nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutCommand writes the given bins to a record, creating it if absent.
// This is spec.md §4.9's WriteCommand, renamed to the verb the rest of
// the public API uses.
type PutCommand struct {
	baseCommand
	writePolicy WritePolicy
	bins        Bins
}

func NewPutCommand(key Key, bins Bins, policy WritePolicy) *PutCommand {
	return &PutCommand{baseCommand: newBaseCommand(key, policy.Policy), writePolicy: policy, bins: bins}
}

func (c *PutCommand) kind() commandKind { return kindPut }
func (c *PutCommand) isWrite() bool     { return true }

func (c *PutCommand) getNode(cluster *Cluster, attempt int) (*Node, error) {
	return c.selectNode(cluster, true)
}

func (c *PutCommand) writeBuffer() ([]byte, error) {
	timeoutMs := uint32(c.policy.SocketTimeout / time.Millisecond)
	infoAttr := byte(0)
	if c.writePolicy.DurableDelete {
		infoAttr |= aswire.Info2Generation
	}
	buf := writeRecordHeader(c.key, 0, aswire.Info2Write, infoAttr, len(c.bins), timeoutMs)
	for name, value := range c.bins {
		buf = appendOperation(buf, opTypeWrite, name, value)
	}
	return buf, nil
}

func (c *PutCommand) parseResult(conn *Connection, deadline time.Time) error {
	header, _, err := readRecordMessage(conn, deadline)
	if err != nil {
		return err
	}
	return classifyResultCode(header.ResultCode)
}

// DeleteCommand removes a record.
type DeleteCommand struct {
	baseCommand
}

func NewDeleteCommand(key Key, policy Policy) *DeleteCommand {
	return &DeleteCommand{baseCommand: newBaseCommand(key, policy)}
}

func (c *DeleteCommand) kind() commandKind { return kindDelete }
func (c *DeleteCommand) isWrite() bool     { return true }

func (c *DeleteCommand) getNode(cluster *Cluster, attempt int) (*Node, error) {
	return c.selectNode(cluster, true)
}

func (c *DeleteCommand) writeBuffer() ([]byte, error) {
	timeoutMs := uint32(c.policy.SocketTimeout / time.Millisecond)
	return writeRecordHeader(c.key, 0, aswire.Info2Write|aswire.Info2Delete, 0, 0, timeoutMs), nil
}

func (c *DeleteCommand) parseResult(conn *Connection, deadline time.Time) error {
	header, _, err := readRecordMessage(conn, deadline)
	if err != nil {
		return err
	}
	return classifyResultCode(header.ResultCode)
}

// ExistsCommand reports whether a record exists, without reading bins.
type ExistsCommand struct {
	baseCommand
	Exists bool
}

func NewExistsCommand(key Key, policy Policy) *ExistsCommand {
	return &ExistsCommand{baseCommand: newBaseCommand(key, policy)}
}

func (c *ExistsCommand) kind() commandKind { return kindExists }
func (c *ExistsCommand) isWrite() bool     { return false }

func (c *ExistsCommand) getNode(cluster *Cluster, attempt int) (*Node, error) {
	return c.selectNode(cluster, false)
}

func (c *ExistsCommand) writeBuffer() ([]byte, error) {
	timeoutMs := uint32(c.policy.SocketTimeout / time.Millisecond)
	return writeRecordHeader(c.key, aswire.Info1Read|aswire.Info1NoBinData, 0, 0, 0, timeoutMs), nil
}

func (c *ExistsCommand) parseResult(conn *Connection, deadline time.Time) error {
	header, _, err := readRecordMessage(conn, deadline)
	if err != nil {
		return err
	}
	switch ascode.ResultCode(int8(header.ResultCode)) {
	case ascode.Ok:
		c.Exists = true
		return nil
	case ascode.KeyNotFound:
		c.Exists = false
		return nil
	default:
		return classifyResultCode(header.ResultCode)
	}
}

// TouchCommand bumps a record's generation/TTL without changing bins,
// distinct from a put with an empty bin map (grounded on the original
// source's dedicated touch operation).
type TouchCommand struct {
	baseCommand
	writePolicy WritePolicy
}

func NewTouchCommand(key Key, policy WritePolicy) *TouchCommand {
	return &TouchCommand{baseCommand: newBaseCommand(key, policy.Policy), writePolicy: policy}
}

func (c *TouchCommand) kind() commandKind { return kindTouch }
func (c *TouchCommand) isWrite() bool     { return true }

func (c *TouchCommand) getNode(cluster *Cluster, attempt int) (*Node, error) {
	return c.selectNode(cluster, true)
}

func (c *TouchCommand) writeBuffer() ([]byte, error) {
	timeoutMs := uint32(c.policy.SocketTimeout / time.Millisecond)
	return writeRecordHeader(c.key, 0, aswire.Info2Write|aswire.Info2Generation, 0, 0, timeoutMs), nil
}

func (c *TouchCommand) parseResult(conn *Connection, deadline time.Time) error {
	header, _, err := readRecordMessage(conn, deadline)
	if err != nil {
		return err
	}
	return classifyResultCode(header.ResultCode)
}
