package as

import (
	"fmt"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/ascode"
)

// AerospikeError wraps a wire or client-side ResultCode with the retry
// context the command engine attaches once it gives up: the node last
// tried, the iteration count, and whether the write may have been applied
// despite the error (InDoubt). The policy in effect is not recorded.
type AerospikeError struct {
	Code      ascode.ResultCode
	Message   string
	Node      *Node
	Iteration int
	InDoubt   bool

	// ClientTimeout is true when the final failure was a client-side
	// deadline rather than a server result code.
	ClientTimeout bool

	wrapped error
}

func (e *AerospikeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("aerospike: %s (code=%s, iteration=%d, in_doubt=%v)", e.Message, e.Code, e.Iteration, e.InDoubt)
	}
	return fmt.Sprintf("aerospike: %s (iteration=%d, in_doubt=%v)", e.Code, e.Iteration, e.InDoubt)
}

func (e *AerospikeError) Unwrap() error { return e.wrapped }

func (e *AerospikeError) KeepConnection() bool { return e.Code.KeepConnection() }

func newError(code ascode.ResultCode, msg string) *AerospikeError {
	return &AerospikeError{Code: code, Message: msg}
}

func wrapError(code ascode.ResultCode, msg string, wrapped error) *AerospikeError {
	return &AerospikeError{Code: code, Message: msg, wrapped: wrapped}
}

// Sentinel-ish constructors used throughout the cluster/command code.

func errInvalidNode(msg string) *AerospikeError {
	return newError(ascode.InvalidNodeError, msg)
}

func errParse(msg string) *AerospikeError {
	return newError(ascode.ParseError, msg)
}

func errClient(msg string) *AerospikeError {
	return newError(ascode.ClientError, msg)
}

func errInvalidNamespace(namespace string, mapSize int) *AerospikeError {
	if mapSize == 0 {
		return newError(ascode.InvalidNamespace, "partition map empty")
	}
	return newError(ascode.InvalidNamespace, fmt.Sprintf("namespace not found in partition map: %s", namespace))
}

func errNoAvailableNode(clusterSize int, namespace string, partitionID int) *AerospikeError {
	if clusterSize == 0 {
		return newError(ascode.InvalidNodeError, "cluster is empty")
	}
	return newError(ascode.InvalidNodeError, fmt.Sprintf("no available node for partition %s:%d (cluster_size=%d)", namespace, partitionID, clusterSize))
}

// ErrClusterClosed is returned by command execution when the cluster is
// shutting down and node selection cannot proceed.
var ErrClusterClosed = newError(ascode.ClientError, "cluster has been closed")

// ErrMaxErrorRate is returned when a node's rolling error count exceeds
// ClientPolicy.MaxErrorRate and no more connections may be opened to it
// until the error-rate window resets.
var ErrMaxErrorRate = newError(ascode.ClientError, "max error rate exceeded")

// ErrNoMoreConnections is returned by Node.getConnection when the pool is
// exhausted and the node is already at MaxConnsPerNode.
var ErrNoMoreConnections = newError(ascode.ClientError, "no more connections available for node")
