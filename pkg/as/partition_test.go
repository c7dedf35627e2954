package as

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeNode(name string) *Node {
	n := &Node{name: name}
	n.active.Store(true)
	return n
}

func partitionMapWith(ns string, replicas [][]*Node) *PartitionMap {
	regimes := make([]uint32, PartitionCount)
	pm := newPartitionMap()
	pm.store(map[string]*Partitions{ns: {Replicas: replicas, Regimes: regimes}})
	return pm
}

func TestPartitionResolveWriteUsesMaster(t *testing.T) {
	master := activeNode("master")
	replicas := [][]*Node{make([]*Node, PartitionCount), make([]*Node, PartitionCount)}
	replicas[0][10] = master
	pm := partitionMapWith("test", replicas)

	part := Partition{Namespace: "test", PartitionID: 10}
	node, err := part.resolve(pm, ReplicaSequence, true, 0)
	require.NoError(t, err)
	assert.Same(t, master, node)
}

func TestPartitionResolveWriteFailsWhenMasterGone(t *testing.T) {
	replicas := [][]*Node{make([]*Node, PartitionCount)}
	pm := partitionMapWith("test", replicas)

	part := Partition{Namespace: "test", PartitionID: 0}
	_, err := part.resolve(pm, ReplicaSequence, true, 0)
	assert.Error(t, err)
}

func TestPartitionResolveReadFallsBackToNextReplica(t *testing.T) {
	replica1 := activeNode("replica1")
	replicas := [][]*Node{make([]*Node, PartitionCount), make([]*Node, PartitionCount)}
	replicas[0][5] = nil
	replicas[1][5] = replica1
	pm := partitionMapWith("test", replicas)

	part := Partition{Namespace: "test", PartitionID: 5}
	node, err := part.resolve(pm, ReplicaSequence, false, 0)
	require.NoError(t, err)
	assert.Same(t, replica1, node)
}

func TestPartitionResolveUnknownNamespace(t *testing.T) {
	pm := newPartitionMap()
	part := Partition{Namespace: "missing", PartitionID: 0}
	_, err := part.resolve(pm, ReplicaSequence, false, 0)
	assert.Error(t, err)
}

func TestPartitionForKeyRoutesWithinRange(t *testing.T) {
	key := NewKey("test", "set", IntValue(42))
	part := PartitionForKey(key)
	assert.Equal(t, "test", part.Namespace)
	assert.GreaterOrEqual(t, part.PartitionID, 0)
	assert.Less(t, part.PartitionID, PartitionCount)
}
