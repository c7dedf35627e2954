package as

// Partitions is the per-namespace replica ownership table, per spec.md §3:
// Replicas[i][p] is the Node believed to own replica i of partition p;
// Regimes[p] is the monotonic tie-break counter for partition p.
type Partitions struct {
	Replicas [][]*Node
	Regimes  []uint32
}

func newPartitions(replicaCount int) *Partitions {
	replicas := make([][]*Node, replicaCount)
	for i := range replicas {
		replicas[i] = make([]*Node, PartitionCount)
	}
	return &Partitions{
		Replicas: replicas,
		Regimes:  make([]uint32, PartitionCount),
	}
}

// resize returns a new Partitions with newReplicaCount replica arrays,
// retaining existing arrays where present (shrink keeps the first
// newReplicaCount, grow appends fresh all-nil arrays). The regimes slice is
// copied too: callers mutate regimes in place, and a reader holding the
// previous Partitions value must never observe that mutation.
func (p *Partitions) resize(newReplicaCount int) *Partitions {
	replicas := make([][]*Node, newReplicaCount)
	n := len(p.Replicas)
	if n > newReplicaCount {
		n = newReplicaCount
	}
	for i := 0; i < n; i++ {
		replicas[i] = p.Replicas[i]
	}
	for i := n; i < newReplicaCount; i++ {
		replicas[i] = make([]*Node, len(p.Regimes))
	}
	regimes := make([]uint32, len(p.Regimes))
	copy(regimes, p.Regimes)
	return &Partitions{Replicas: replicas, Regimes: regimes}
}

// clone makes a copy of the replica-array slice headers (not the underlying
// per-partition arrays, which are copy-on-written individually via
// cloneReplica) and a deep copy of regimes, so a caller can swap in new
// replica arrays and update regimes without disturbing a reader holding the
// previous Partitions value.
func (p *Partitions) clone() *Partitions {
	replicas := make([][]*Node, len(p.Replicas))
	copy(replicas, p.Replicas)
	regimes := make([]uint32, len(p.Regimes))
	copy(regimes, p.Regimes)
	return &Partitions{Replicas: replicas, Regimes: regimes}
}

// cloneReplica returns a copy of replica array i so it can be mutated in
// place without the mutation being visible to a reader holding a pointer
// to the previous Partitions value (copy-on-write at the array level).
func (p *Partitions) cloneReplica(i int) []*Node {
	out := make([]*Node, len(p.Replicas[i]))
	copy(out, p.Replicas[i])
	return out
}
