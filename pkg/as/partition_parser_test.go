package as

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bitmapWithBitsSet(bits ...int) string {
	raw := make([]byte, PartitionCount/8)
	for _, b := range bits {
		raw[b>>3] |= 0x80 >> uint(b&7)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestPartitionParserParsesSingleNamespaceSingleReplica(t *testing.T) {
	bitmap := bitmapWithBitsSet(0, 10, 4095)
	body := []byte("partition-generation\t7\nreplicas\ttest:1,1," + bitmap + ";")

	working := map[string]*Partitions{}
	pp := newPartitionParser(working, body)
	node := &Node{name: "n1"}
	node.partitionGeneration.Store(-1)

	require.NoError(t, pp.parse(node))
	assert.Equal(t, int64(7), pp.generation)

	partitions := pp.working["test"]
	require.NotNil(t, partitions)
	require.Len(t, partitions.Replicas, 1)

	assert.Same(t, node, partitions.Replicas[0][0])
	assert.Same(t, node, partitions.Replicas[0][10])
	assert.Same(t, node, partitions.Replicas[0][4095])
	assert.Nil(t, partitions.Replicas[0][1])
	assert.Equal(t, uint32(1), partitions.Regimes[0])
}

func TestDecodeBitmapForcesOldOwnerRereadOnHandoff(t *testing.T) {
	working := map[string]*Partitions{}
	bitmap := bitmapWithBitsSet(3)
	body := []byte("partition-generation\t1\nreplicas\ttest:1,1," + bitmap + ";")

	oldOwner := &Node{name: "old"}
	working["test"] = newPartitions(1)
	working["test"].Replicas[0][3] = oldOwner

	newOwner := &Node{name: "new"}
	newOwner.partitionGeneration.Store(5)
	newOwner.cluster = &Cluster{cfg: defaultClientPolicy()}

	pp := newPartitionParser(working, body)
	require.NoError(t, pp.parse(newOwner))

	assert.Equal(t, int64(-1), oldOwner.partitionGeneration.Load())
	assert.Same(t, newOwner, pp.working["test"].Replicas[0][3])
}

func TestPartitionParserDoesNotMutatePublishedSnapshot(t *testing.T) {
	published := map[string]*Partitions{"test": newPartitions(1)}
	oldOwner := &Node{name: "old"}
	published["test"].Replicas[0][7] = oldOwner
	published["test"].Regimes[7] = 1

	// working starts as the exact same *Partitions pointers a concurrent
	// reader could be holding via pm.Load().
	working := map[string]*Partitions{"test": published["test"]}

	newOwner := &Node{name: "new"}
	newOwner.partitionGeneration.Store(5)
	newOwner.cluster = &Cluster{cfg: defaultClientPolicy()}

	bitmap := bitmapWithBitsSet(7)
	body := []byte("partition-generation\t1\nreplicas\ttest:2,1," + bitmap + ";")
	pp := newPartitionParser(working, body)
	require.NoError(t, pp.parse(newOwner))

	assert.Same(t, oldOwner, published["test"].Replicas[0][7], "published snapshot's replica array must not be mutated in place")
	assert.Equal(t, uint32(1), published["test"].Regimes[7], "published snapshot's regimes must not be mutated in place")
	assert.Same(t, newOwner, pp.working["test"].Replicas[0][7])
	assert.Equal(t, uint32(2), pp.working["test"].Regimes[7])
}

func TestDecodeBitmapIgnoresLowerRegime(t *testing.T) {
	working := map[string]*Partitions{}
	working["test"] = newPartitions(1)
	working["test"].Regimes[0] = 5
	existing := &Node{name: "existing"}
	working["test"].Replicas[0][0] = existing

	bitmap := bitmapWithBitsSet(0)
	body := []byte("partition-generation\t1\nreplicas\ttest:2,1," + bitmap + ";")

	challenger := &Node{name: "challenger"}
	challenger.cluster = &Cluster{cfg: defaultClientPolicy()}

	pp := newPartitionParser(working, body)
	require.NoError(t, pp.parse(challenger))

	assert.Same(t, existing, pp.working["test"].Replicas[0][0])
	assert.Equal(t, uint32(5), pp.working["test"].Regimes[0])
}
