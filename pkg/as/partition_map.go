package as

import "sync/atomic"

// PartitionMap is the copy-on-write namespace -> Partitions mapping command
// execution routes through. Mutation is confined to the tender; readers
// load a consistent snapshot via a single atomic pointer, per spec.md §3
// and §5's "atomic pointer swap" contract.
type PartitionMap struct {
	ptr atomic.Pointer[map[string]*Partitions]
}

func newPartitionMap() *PartitionMap {
	m := &PartitionMap{}
	empty := make(map[string]*Partitions)
	m.ptr.Store(&empty)
	return m
}

// Load returns the current snapshot. Callers must not mutate the returned
// map or its Partitions values directly — only the tender does that,
// through cloned working copies installed via store.
func (m *PartitionMap) Load() map[string]*Partitions {
	return *m.ptr.Load()
}

// store installs a new snapshot, the one point where the map version
// changes. Called at most once per tend iteration that observed any
// partition change (spec.md §3's "PartitionMap: replaced wholesale per
// tend iteration that observes any change").
func (m *PartitionMap) store(next map[string]*Partitions) {
	m.ptr.Store(&next)
}

// namespacePartitions returns the Partitions for ns, or nil if unknown.
func (m *PartitionMap) namespacePartitions(ns string) *Partitions {
	return m.Load()[ns]
}
