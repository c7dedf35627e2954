package as

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Node is one cluster member: identity, a dedicated tend connection, a
// pool of command connections, and the generation counters the tender
// uses to decide what needs re-fetching, per spec.md §4.4.
type Node struct {
	cluster *Cluster

	name string
	host Host

	pool     *Pool
	tendConn *Connection

	features map[string]bool

	active atomic.Bool

	partitionGeneration atomic.Int64
	peersGeneration     atomic.Int64
	rebalanceGeneration atomic.Int64

	partitionChanged atomic.Bool
	rebalanceChanged atomic.Bool

	failures       atomic.Int32
	refreshCount   atomic.Int32
	referenceCount atomic.Int32

	errorCount  atomic.Int64
	connsOpened atomic.Int64
	connsClosed atomic.Int64
}

func newNode(cluster *Cluster, nv *nodeValidator) *Node {
	n := &Node{
		cluster:  cluster,
		name:     nv.name,
		host:     nv.primaryHost,
		tendConn: nv.primaryConn,
		features: nv.features,
		pool:     newPool(cluster.cfg.MinConnsPerNode, cluster.cfg.MaxConnsPerNode),
	}
	n.active.Store(true)
	n.partitionGeneration.Store(-1)
	n.peersGeneration.Store(-1)
	n.rebalanceGeneration.Store(-1)
	return n
}

func (n *Node) String() string { return fmt.Sprintf("%s(%s)", n.name, n.host) }

func (n *Node) IsActive() bool { return n.active.Load() }

// HasPartitionQuery reports whether the node advertises the pquery
// capability string.
func (n *Node) HasPartitionQuery() bool { return n.features["pquery"] }

// ErrorCountWithinLimit implements spec.md §4.4/§5's error-rate gate: a
// node refuses new connections once its rolling error count exceeds
// MaxErrorRate within the current ErrorRateWindow.
func (n *Node) ErrorCountWithinLimit() bool {
	return n.errorCount.Load() < int64(n.cluster.cfg.MaxErrorRate)
}

func (n *Node) resetErrorCount() { n.errorCount.Store(0) }

func (n *Node) incErrorCount() { n.errorCount.Add(1) }

// refresh issues one info round-trip over the tend connection: node,
// partition-generation, peers-generation, services, rebalance-generation,
// plus cluster-name when ClientPolicy.ClusterName is set. Per spec.md §4.4.
func (n *Node) refresh(peers *Peers) error {
	deadline := time.Now().Add(n.cluster.cfg.ConnTimeout)
	commands := []string{"node", "partition-generation", "peers-generation", "services", "rebalance-generation"}
	hasClusterName := n.cluster.cfg.ClusterName != ""
	if hasClusterName {
		commands = append(commands, "cluster-name")
	}

	info, err := infoRequestMap(n.tendConn, commands, deadline)
	if err != nil {
		n.onRefreshFailed(peers)
		return err
	}

	if got := info["node"]; got != n.name {
		n.active.Store(false)
		n.onRefreshFailed(peers)
		return errInvalidNode(fmt.Sprintf("node identity changed: expected %s, got %s", n.name, got))
	}
	if hasClusterName && info["cluster-name"] != n.cluster.cfg.ClusterName {
		n.active.Store(false)
		n.onRefreshFailed(peers)
		return errInvalidNode(fmt.Sprintf("node %s cluster name mismatch: expected %q, got %q", n.name, n.cluster.cfg.ClusterName, info["cluster-name"]))
	}

	if err := n.applyGeneration(&n.partitionGeneration, info["partition-generation"], &n.partitionChanged); err != nil {
		n.onRefreshFailed(peers)
		return err
	}
	if err := n.applyGeneration(&n.peersGeneration, info["peers-generation"], nil); err != nil {
		n.onRefreshFailed(peers)
		return err
	}
	if err := n.applyGeneration(&n.rebalanceGeneration, info["rebalance-generation"], &n.rebalanceChanged); err != nil {
		n.onRefreshFailed(peers)
		return err
	}

	n.failures.Store(0)
	n.refreshCount.Add(1)
	return nil
}

func (n *Node) onRefreshFailed(peers *Peers) {
	n.tendConn.Close()
	n.failures.Add(1)
	peers.GenerationChanged = true
}

func (n *Node) applyGeneration(field *atomic.Int64, raw string, changed *atomic.Bool) error {
	gen, err := parseInt64(raw)
	if err != nil {
		return errParse(fmt.Sprintf("node %s returned invalid generation %q", n.name, raw))
	}
	if field.Swap(gen) != gen && changed != nil {
		changed.Store(true)
	}
	return nil
}

// refreshPeers issues peers-clear-std and attempts to validate every
// newly announced peer, per spec.md §4.4. Skipped entirely (returns nil)
// if this node already failed a refresh this tend or is inactive.
func (n *Node) refreshPeers(peers *Peers) error {
	if n.failures.Load() > 0 || !n.IsActive() {
		return nil
	}

	deadline := time.Now().Add(n.cluster.cfg.ConnTimeout)
	body, err := infoRequest(n.tendConn, []string{"peers-clear-std"}, deadline)
	if err != nil {
		n.onRefreshFailed(peers)
		return err
	}

	generation, peerList, err := parsePeersResponse(body)
	if err != nil {
		n.onRefreshFailed(peers)
		return err
	}

	peers.Peers = append(peers.Peers, peerList...)

	allResolved := true
	for _, peer := range peerList {
		if existing, ok := peers.Nodes[peer.NodeName]; ok {
			existing.referenceCount.Add(1)
			continue
		}
		if existing := n.cluster.findNode(peer.NodeName); existing != nil {
			peers.Nodes[peer.NodeName] = existing
			existing.referenceCount.Add(1)
			continue
		}

		resolved := false
		for _, host := range peer.Hosts {
			if peers.InvalidHosts[host] {
				continue
			}
			nv, err := validateAddress(n.cluster, host)
			if err != nil {
				peers.InvalidHosts[host] = true
				n.cluster.logf(LogLevelWarn, "peer %s host %s failed validation: %v", peer.NodeName, host, err)
				continue
			}
			peers.Nodes[peer.NodeName] = newNode(n.cluster, nv)
			resolved = true
			break
		}
		if !resolved {
			allResolved = false
		}
	}

	if allResolved {
		n.peersGeneration.Store(generation)
	}
	peers.RefreshCount++
	return nil
}

// refreshPartitions issues "replicas" and folds the response into the
// tender's working PartitionMap copy, per spec.md §4.4/§4.5. Skipped if
// this node failed this tend, is inactive, or (the single-seed guard) it
// announced no peers and has already refreshed once this tend.
func (n *Node) refreshPartitions(peers *Peers, working map[string]*Partitions) (map[string]*Partitions, error) {
	if n.failures.Load() > 0 || !n.IsActive() {
		return working, nil
	}
	if len(peers.Peers) == 0 && n.refreshCount.Load() > 1 {
		return working, nil
	}

	deadline := time.Now().Add(n.cluster.cfg.ConnTimeout)
	body, err := infoRequest(n.tendConn, []string{"partition-generation", "replicas"}, deadline)
	if err != nil {
		n.onRefreshFailed(peers)
		return working, err
	}

	pp := newPartitionParser(working, body)
	if err := pp.parse(n); err != nil {
		n.onRefreshFailed(peers)
		return working, err
	}
	n.partitionChanged.Store(false)
	return pp.working, nil
}

// getConnection checks out a Connection for a command, trying the idle
// pool first and dialing a fresh one under MaxConnsPerNode otherwise.
func (n *Node) getConnection(deadline time.Time) (*Connection, error) {
	if c := n.pool.Take(); c != nil {
		return c, nil
	}
	if n.pool.TotalOpen() >= n.cluster.cfg.MaxConnsPerNode {
		return nil, ErrNoMoreConnections
	}
	if !n.ErrorCountWithinLimit() {
		return nil, ErrMaxErrorRate
	}

	connTimeout := n.cluster.cfg.ConnTimeout
	if remaining := time.Until(deadline); remaining > 0 && remaining < connTimeout {
		connTimeout = remaining
	}
	c, err := DialConnection(n.host, connTimeout, n.cluster.cfg.TLSConfig)
	if err != nil {
		n.incErrorCount()
		return nil, err
	}
	n.pool.incTotalOpen(1)
	n.connsOpened.Add(1)
	n.cluster.cfg.PoolObserver.OnConnOpened(n.name)
	return c, nil
}

func (n *Node) putConnection(c *Connection) {
	if !n.pool.Offer(c) {
		c.Close()
		n.pool.incTotalOpen(-1)
	}
}

func (n *Node) closeConnectionOnError(c *Connection) {
	c.Close()
	n.pool.incTotalOpen(-1)
	n.connsClosed.Add(1)
	n.incErrorCount()
	n.cluster.cfg.PoolObserver.OnConnClosed(n.name, "error")
}

// balanceConnections implements spec.md §4.4's once-per-30-tends pool
// trim/fill rule.
func (n *Node) balanceConnections() {
	excess := n.pool.Excess()
	if excess > 0 {
		cutoff := time.Now().Add(-n.cluster.cfg.MaxSocketIdleTrim)
		closed := n.pool.CloseIdle(excess, func(c *Connection) bool {
			return c.LastUsed().After(cutoff)
		})
		if closed > 0 {
			n.pool.incTotalOpen(-closed)
			n.connsClosed.Add(int64(closed))
			n.cluster.cfg.PoolObserver.OnConnClosed(n.name, "idle_trim")
		}
		return
	}
	if excess >= 0 || !n.ErrorCountWithinLimit() {
		return
	}
	shortfall := -excess
	for i := 0; i < shortfall; i++ {
		c, err := DialConnection(n.host, n.cluster.cfg.ConnTimeout, n.cluster.cfg.TLSConfig)
		if err != nil {
			n.incErrorCount()
			break
		}
		if !n.pool.Offer(c) {
			c.Close()
			break
		}
		n.pool.incTotalOpen(1)
		n.connsOpened.Add(1)
	}
	n.cluster.cfg.PoolObserver.OnPoolSize(n.name, n.pool.Size(), n.pool.TotalOpen())
}

func (n *Node) close() {
	n.active.Store(false)
	if n.tendConn != nil {
		n.tendConn.Close()
	}
	for {
		c := n.pool.Take()
		if c == nil {
			break
		}
		c.Close()
	}
}

func parseInt64(s string) (int64, error) {
	var v int64
	if s == "" {
		return 0, fmt.Errorf("empty generation field")
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, fmt.Errorf("invalid generation field %q", s)
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid generation field %q", s)
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v, nil
}
