package as

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPartitionsShape(t *testing.T) {
	p := newPartitions(2)
	require.Len(t, p.Replicas, 2)
	assert.Len(t, p.Replicas[0], PartitionCount)
	assert.Len(t, p.Regimes, PartitionCount)
}

func TestPartitionsResizeGrowKeepsExisting(t *testing.T) {
	p := newPartitions(1)
	n := &Node{name: "a"}
	p.Replicas[0][5] = n
	p.Regimes[5] = 3

	grown := p.resize(3)
	require.Len(t, grown.Replicas, 3)
	assert.Same(t, n, grown.Replicas[0][5])
	assert.Len(t, grown.Replicas[1], PartitionCount)
	assert.Len(t, grown.Replicas[2], PartitionCount)
	assert.Equal(t, uint32(3), grown.Regimes[5])
}

func TestPartitionsResizeShrinkDropsTrailing(t *testing.T) {
	p := newPartitions(3)
	p.Regimes[5] = 9
	shrunk := p.resize(1)
	assert.Len(t, shrunk.Replicas, 1)
	assert.Equal(t, p.Regimes, shrunk.Regimes)
	assert.NotSame(t, &p.Regimes[0], &shrunk.Regimes[0])
}

func TestCloneReplicaIsIndependent(t *testing.T) {
	p := newPartitions(1)
	a := &Node{name: "a"}
	p.Replicas[0][0] = a

	clone := p.cloneReplica(0)
	clone[0] = &Node{name: "b"}

	assert.Same(t, a, p.Replicas[0][0])
	assert.NotSame(t, p.Replicas[0][0], clone[0])
}

func TestPartitionMapCoWSwap(t *testing.T) {
	pm := newPartitionMap()
	empty := pm.Load()
	assert.Empty(t, empty)

	next := map[string]*Partitions{"test": newPartitions(2)}
	pm.store(next)

	assert.Same(t, next["test"], pm.Load()["test"])
	assert.NotNil(t, pm.namespacePartitions("test"))
	assert.Nil(t, pm.namespacePartitions("unknown"))
}
