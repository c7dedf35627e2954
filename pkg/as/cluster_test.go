package as

import (
	"context"
	"net"
	"testing"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseMarksClusterClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cluster{
		cfg:          defaultClientPolicy(),
		nodesMap:     map[string]*Node{},
		partitionMap: newPartitionMap(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	close(c.done) // stand in for the tender goroutine having already exited
	c.tendValid.Store(true)

	assert.False(t, c.IsClosed())
	c.Close()
	assert.True(t, c.IsClosed(), "Close must flip tendValid so in-flight commands fail fast")
}

func TestFindNodesToRemoveInactiveNode(t *testing.T) {
	c := &Cluster{partitionMap: newPartitionMap()}
	n1 := &Node{name: "n1"}
	n1.active.Store(false)
	c.nodes = []*Node{n1}

	remove := c.findNodesToRemove(1)
	require.Len(t, remove, 1)
	assert.Same(t, n1, remove[0])
}

func TestFindNodesToRemoveRefreshCountZeroWithFailures(t *testing.T) {
	c := &Cluster{partitionMap: newPartitionMap()}
	n1 := &Node{name: "n1"}
	n1.active.Store(true)
	n1.failures.Store(5)
	c.nodes = []*Node{n1}

	remove := c.findNodesToRemove(0)
	require.Len(t, remove, 1)

	n1.failures.Store(4)
	remove = c.findNodesToRemove(0)
	assert.Empty(t, remove, "fewer than 5 consecutive failures must not trigger removal")
}

func TestFindNodesToRemoveReferenceCountZero(t *testing.T) {
	pm := newPartitionMap()
	owner := &Node{name: "owner"}
	owner.active.Store(true)
	orphan := &Node{name: "orphan"}
	orphan.active.Store(true)

	partitions := newPartitions(1)
	partitions.Replicas[0][0] = owner
	pm.store(map[string]*Partitions{"test": partitions})

	c := &Cluster{partitionMap: pm, nodes: []*Node{owner, orphan}}

	remove := c.findNodesToRemove(1)
	require.Len(t, remove, 1)
	assert.Same(t, orphan, remove[0], "a node with zero references and no partition ownership must be removed")
}

func TestFindNodesToRemoveSingleNodeNeverRemovedByReferenceCount(t *testing.T) {
	c := &Cluster{partitionMap: newPartitionMap()}
	n1 := &Node{name: "solo"}
	n1.active.Store(true)
	c.nodes = []*Node{n1}

	remove := c.findNodesToRemove(1)
	assert.Empty(t, remove, "the last remaining node must never be removed via the reference-count predicate")
}

// wrapInfoBody frames an already-built info body the same way the server
// side of the wire protocol does, for scripting multi-step node refresh
// sequences that encodeInfoResponse's pair-joining can't express directly
// (the replicas body is not a flat key/value list).
func wrapInfoBody(body []byte) []byte {
	header := make([]byte, aswire.InfoHeaderSize)
	header[0] = aswire.InfoProtocolVersion
	header[1] = aswire.InfoMessageType
	n := len(body)
	header[5] = byte(n >> 16)
	header[6] = byte(n >> 8)
	header[7] = byte(n)
	return append(header, body...)
}

func newTendTestCluster(n *Node) *Cluster {
	c := &Cluster{
		cfg:          defaultClientPolicy(),
		nodesMap:     map[string]*Node{n.name: n},
		partitionMap: newPartitionMap(),
		nodes:        []*Node{n},
	}
	n.cluster = c
	return c
}

func TestTendOnceSkipsPartitionMapSwapWhenNothingChanged(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	n := &Node{name: "N1", tendConn: &Connection{conn: client}}
	n.active.Store(true)
	n.partitionGeneration.Store(2)
	n.peersGeneration.Store(1)
	n.rebalanceGeneration.Store(1)
	n.refreshCount.Store(1)

	c := newTendTestCluster(n)
	before := c.partitionMap.ptr.Load()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainInfoRequest(t, server)
		resp := encodeInfoResponse(
			"node", "N1",
			"partition-generation", "2",
			"peers-generation", "1",
			"services", "",
			"rebalance-generation", "1",
		)
		_, err := server.Write(resp)
		assert.NoError(t, err)
	}()

	require.NoError(t, c.tendOnce())
	<-done

	after := c.partitionMap.ptr.Load()
	assert.True(t, before == after, "a tend iteration that observes no partition-generation change must not swap the published map")
}

func TestTendOnceSwapsPartitionMapWhenPartitionGenerationChanges(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	n := &Node{name: "N1", tendConn: &Connection{conn: client}}
	n.active.Store(true)
	n.partitionGeneration.Store(2)
	n.peersGeneration.Store(1)
	n.rebalanceGeneration.Store(1)
	n.refreshCount.Store(0)

	c := newTendTestCluster(n)
	before := c.partitionMap.ptr.Load()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainInfoRequest(t, server)
		resp := encodeInfoResponse(
			"node", "N1",
			"partition-generation", "3",
			"peers-generation", "1",
			"services", "",
			"rebalance-generation", "1",
		)
		_, err := server.Write(resp)
		assert.NoError(t, err)

		drainInfoRequest(t, server)
		bitmap := bitmapWithBitsSet(0)
		body := []byte("partition-generation\t3\nreplicas\ttest:1,1," + bitmap + ";")
		_, err = server.Write(wrapInfoBody(body))
		assert.NoError(t, err)
	}()

	require.NoError(t, c.tendOnce())
	<-done

	after := c.partitionMap.ptr.Load()
	assert.False(t, before == after, "a tend iteration that observes a partition-generation change must swap the published map")

	partitions := c.partitionMap.Load()["test"]
	require.NotNil(t, partitions)
	assert.Same(t, n, partitions.Replicas[0][0])
}
