package as

import "math/rand"

// Partition identifies a single record's routing coordinates: its
// namespace, partition id, and a sequence cursor the command engine
// advances on retry to walk replicas in policy order, per spec.md §4.8.
type Partition struct {
	Namespace   string
	PartitionID int
	sequence    int
}

// PartitionForKey derives the Partition a key belongs to, per spec.md
// §4.8: partition_id = little-endian uint32(digest[0:4]) mod PartitionCount.
func PartitionForKey(key Key) Partition {
	digest := key.Digest()
	return Partition{
		Namespace:   key.Namespace,
		PartitionID: PartitionIDFor(digest),
	}
}

// resolve picks the node owning this partition for replica attempt
// `attempt` (0-indexed) under the given policy, per spec.md §4.8's
// replica-policy table. Returns NoAvailableNode once replicas are
// exhausted.
func (part *Partition) resolve(pm *PartitionMap, policy ReplicaPolicy, forWrite bool, attempt int) (*Node, error) {
	m := pm.Load()
	partitions := m[part.Namespace]
	if partitions == nil {
		return nil, errInvalidNamespace(part.Namespace, len(m))
	}

	replicaCount := len(partitions.Replicas)
	if replicaCount == 0 {
		return nil, errNoAvailableNode(0, part.Namespace, part.PartitionID)
	}

	if forWrite {
		// Writes always target the master replica. Re-reading it on every
		// attempt (rather than caching the first lookup) lets a retry pick
		// up a newer PartitionMap snapshot if the tender re-elected a
		// master mid-command.
		node := partitions.Replicas[0][part.PartitionID]
		if node == nil || !node.IsActive() {
			return nil, errNoAvailableNode(replicaCount, part.Namespace, part.PartitionID)
		}
		return node, nil
	}

	start := part.replicaStart(policy, replicaCount)
	// Only ReplicaSequence advances its starting point on retry (master
	// first, then replicas 1..n). ReplicaMaster must stay pinned to replica
	// 0 across every attempt; MasterProle and Random already pick a fresh
	// start each call via their own cursor/randomization, so folding attempt
	// into their start too would double-advance them.
	retryAdvance := attempt
	if policy == ReplicaMaster {
		retryAdvance = 0
	}
	for i := 0; i < replicaCount; i++ {
		idx := (start + retryAdvance + i) % replicaCount
		node := partitions.Replicas[idx][part.PartitionID]
		if node != nil && node.IsActive() {
			return node, nil
		}
	}
	return nil, errNoAvailableNode(replicaCount, part.Namespace, part.PartitionID)
}

func (part *Partition) replicaStart(policy ReplicaPolicy, replicaCount int) int {
	switch policy {
	case ReplicaMaster:
		return 0
	case ReplicaMasterProle:
		part.sequence = (part.sequence + 1) % replicaCount
		return part.sequence
	case ReplicaRandom:
		return rand.Intn(replicaCount)
	case ReplicaSequence:
		fallthrough
	default:
		return 0
	}
}
