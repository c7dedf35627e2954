package as

import (
	"time"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/ascode"
	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
)

// commandKind names a command for observability, e.g. OnCommandComplete.
type commandKind string

const (
	kindGet    commandKind = "get"
	kindPut    commandKind = "put"
	kindDelete commandKind = "delete"
	kindExists commandKind = "exists"
	kindTouch  commandKind = "touch"
)

// commander is the capability interface the execution engine drives, per
// spec.md §4.9's `get_node/write_buffer/parse_result/prepare_retry`.
// Each concrete command (get/put/delete/exists/touch) implements this.
type commander interface {
	kind() commandKind
	isWrite() bool
	getNode(cluster *Cluster, attempt int) (*Node, error)
	writeBuffer() ([]byte, error)
	parseResult(conn *Connection, deadline time.Time) error
	prepareRetry(wasTimeout bool)
}

// execute runs commander's full retry/timeout loop against cluster, per
// spec.md §4.9's main loop.
func execute(cluster *Cluster, cmd commander, policy Policy) (err error) {
	start0 := time.Now()
	defer func() {
		cluster.cfg.CommandObserver.OnCommandComplete(string(cmd.kind()), time.Since(start0), err)
	}()

	socketTimeout := policy.SocketTimeout
	totalTimeout := policy.TotalTimeout

	if totalTimeout > 0 && (socketTimeout == 0 || socketTimeout > totalTimeout) {
		socketTimeout = totalTimeout
	}

	start := time.Now()
	var deadline time.Time
	if totalTimeout > 0 {
		deadline = start.Add(totalTimeout)
	}

	var lastErr error
	var lastNode *Node
	var lastWasClientTimeout bool
	commandSent := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			cmd.prepareRetry(lastWasClientTimeout)
			cluster.cfg.CommandObserver.OnCommandRetry(string(cmd.kind()), attempt)
			if policy.SleepBetweenRetries > 0 {
				time.Sleep(policy.SleepBetweenRetries)
			}
		}

		if totalTimeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			if remaining < socketTimeout {
				socketTimeout = remaining
			}
		}

		node, err := cmd.getNode(cluster, attempt)
		if err != nil {
			lastWasClientTimeout = false
			if cluster.IsClosed() {
				lastErr = ErrClusterClosed
				break
			}
			lastErr = err
			if ae, ok := err.(*AerospikeError); ok && !ae.Code.Retriable() && ae.Code != ascode.InvalidNodeError {
				break
			}
			continue
		}
		lastNode = node

		if !node.ErrorCountWithinLimit() {
			lastErr = ErrMaxErrorRate
			break
		}

		socketDeadline := time.Now().Add(socketTimeout)
		conn, err := node.getConnection(socketDeadline)
		if err != nil {
			lastErr = err
			lastWasClientTimeout = false
			continue
		}

		buf, err := cmd.writeBuffer()
		if err != nil {
			node.putConnection(conn)
			return wrapError(ascode.ClientError, "failed to build command buffer", err)
		}

		if err := conn.WriteAll(buf, socketDeadline); err != nil {
			commandSent++
			node.closeConnectionOnError(conn)
			lastErr = err
			lastWasClientTimeout = isClientTimeoutErr(err)
			continue
		}
		commandSent++

		err = cmd.parseResult(conn, socketDeadline)
		lastWasClientTimeout = false

		if err == nil {
			node.putConnection(conn)
			return nil
		}

		ae, ok := err.(*AerospikeError)
		if !ok {
			node.closeConnectionOnError(conn)
			lastErr = err
			continue
		}

		lastErr = ae
		if ae.Code == ascode.ReadTimeout {
			lastWasClientTimeout = true
			node.closeConnectionOnError(conn)
			continue
		}
		if ae.Code.Retriable() {
			node.incErrorCount()
			if ae.KeepConnection() {
				node.putConnection(conn)
			} else {
				node.closeConnectionOnError(conn)
			}
			continue
		}

		// Terminal: not retriable.
		if ae.KeepConnection() {
			node.putConnection(conn)
		} else {
			node.closeConnectionOnError(conn)
		}
		ae.Node = node
		ae.Iteration = attempt
		ae.InDoubt = commandSent > 0 && cmd.isWrite()
		return ae
	}

	if lastErr == nil {
		lastErr = errClient("command execution exhausted retries without a recorded error")
	}
	ae, ok := lastErr.(*AerospikeError)
	if !ok {
		ae = wrapError(ascode.ClientError, "command execution failed", lastErr)
	} else {
		// lastErr may alias a package-level sentinel (ErrClusterClosed,
		// ErrMaxErrorRate, ErrNoMoreConnections); clone before annotating
		// so concurrent commands never race on the same error value.
		cp := *ae
		ae = &cp
	}
	ae.Node = lastNode
	ae.ClientTimeout = lastWasClientTimeout
	ae.Iteration = policy.MaxRetries + 1
	ae.InDoubt = commandSent > 0 && cmd.isWrite()
	return ae
}

func isClientTimeoutErr(err error) bool {
	ae, ok := err.(*AerospikeError)
	return ok && (ae.Code == ascode.ReadTimeout || ae.Code == ascode.WriteTimeout)
}

// recordHeaderResultCodeOffset is the fixed offset (5) of the result code
// byte within the 22-byte record header; aswire.ParseRecordHeader reads the
// result code from this position.
const recordHeaderResultCodeOffset = 5

func readRecordMessage(conn *Connection, deadline time.Time) (aswire.RecordHeader, []byte, error) {
	protoBuf := make([]byte, aswire.ProtoHeaderSize)
	if err := conn.ReadExact(protoBuf, deadline); err != nil {
		return aswire.RecordHeader{}, nil, err
	}
	size, _, _ := aswire.ParseProtoHeader(protoBuf)
	if size < aswire.RecordHeaderSize {
		return aswire.RecordHeader{}, nil, errParse("record message shorter than its own header")
	}

	rest := make([]byte, size)
	if err := conn.ReadExact(rest, deadline); err != nil {
		return aswire.RecordHeader{}, nil, err
	}

	header := aswire.ParseRecordHeader(rest[:aswire.RecordHeaderSize])
	body := rest[aswire.RecordHeaderSize:]
	return header, body, nil
}

func classifyResultCode(rc byte) *AerospikeError {
	code := ascode.ResultCode(int8(rc))
	if code == ascode.Ok {
		return nil
	}
	return newError(code, code.String())
}
