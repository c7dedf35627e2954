package as

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Cluster owns the set of live Nodes, the published PartitionMap, and the
// single background tender that keeps both current, per spec.md §4.7.
// All topology mutation is confined to the tender goroutine; command
// callers only ever read.
type Cluster struct {
	cfg   *ClientPolicy
	seeds []Host

	mu       sync.Mutex
	nodes    []*Node
	nodesMap map[string]*Node

	partitionMap *PartitionMap

	// dialLimiter throttles the rate of candidate-host handshake dials a
	// single tend iteration can issue against seeds and newly announced
	// peers, so a large topology change doesn't open a dial storm.
	dialLimiter *rate.Limiter

	tendValid atomic.Bool
	tendCount atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	forceTend chan struct{}
	done      chan struct{}
}

// NewCluster resolves seeds, runs one stabilizing tend synchronously
// (spec.md's wait_till_stabilized), and if that produced at least one
// active node launches the background tend loop. If it produced none and
// FailIfNotConnected is set, it fails startup with ClusterSeedFailed.
func NewCluster(ctx context.Context, seeds []Host, cfg *ClientPolicy) (*Cluster, error) {
	if cfg == nil {
		cfg = defaultClientPolicy()
	}
	cctx, cancel := context.WithCancel(ctx)
	c := &Cluster{
		cfg:          cfg,
		seeds:        seeds,
		nodesMap:     make(map[string]*Node),
		partitionMap: newPartitionMap(),
		dialLimiter:  rate.NewLimiter(cfg.SeedDialLimit, cfg.SeedDialBurst),
		ctx:          cctx,
		cancel:       cancel,
		forceTend:    make(chan struct{}, 1),
		done:         make(chan struct{}),
	}

	c.tendOnce()

	if len(c.nodes) == 0 {
		cancel()
		if cfg.FailIfNotConnected {
			return nil, errClient("no seed host could be validated (ClusterSeedFailed)")
		}
	}
	c.tendValid.Store(true)

	for _, n := range c.nodes {
		c.seeds = appendHostIfAbsent(c.seeds, n.host)
	}

	go c.tendLoop()
	return c, nil
}

func appendHostIfAbsent(hosts []Host, h Host) []Host {
	for _, existing := range hosts {
		if existing == h {
			return hosts
		}
	}
	return append(hosts, h)
}

func (c *Cluster) logf(level LogLevel, format string, args ...any) {
	c.cfg.Logger.Log(level, fmt.Sprintf(format, args...))
}

func (c *Cluster) findNode(name string) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodesMap[name]
}

// Nodes returns a snapshot slice of the currently known nodes.
func (c *Cluster) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

func (c *Cluster) PartitionMap() *PartitionMap { return c.partitionMap }

// IsClosed reports whether Close has been called. The command engine
// checks this to fail fast with ClusterClosed instead of retrying node
// selection against a cluster that will never tend again, per spec.md
// §4.9 step 1.
func (c *Cluster) IsClosed() bool { return !c.tendValid.Load() }

// Close stops the tender and closes every node's connections.
func (c *Cluster) Close() {
	c.tendValid.Store(false)
	c.cancel()
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		n.close()
	}
}

func (c *Cluster) triggerTend() {
	select {
	case c.forceTend <- struct{}{}:
	default:
	}
}

func (c *Cluster) tendLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.TendInterval)
	defer ticker.Stop()

	var consecutiveErrors int
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		case <-c.forceTend:
		}

		start := time.Now()
		err := c.tendOnce()
		c.cfg.TendObserver.OnTendComplete(time.Since(start), len(c.Nodes()), err)

		if err != nil {
			consecutiveErrors++
			c.logf(LogLevelWarn, "tend iteration failed: %v", err)
			backoff := c.cfg.RetryBackoff(consecutiveErrors)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		consecutiveErrors = 0
	}
}

// tendOnce runs exactly one tend iteration, per spec.md §4.7's numbered
// steps.
func (c *Cluster) tendOnce() error {
	peers := newPeers()

	c.mu.Lock()
	nodes := make([]*Node, len(c.nodes))
	copy(nodes, c.nodes)
	c.mu.Unlock()

	for _, n := range nodes {
		n.referenceCount.Store(0)
		n.partitionChanged.Store(false)
		n.rebalanceChanged.Store(false)
	}

	if len(nodes) == 0 {
		if err := c.seedNodes(peers); err != nil {
			return err
		}
	} else {
		for _, n := range nodes {
			n.refresh(peers)
		}
	}

	if peers.GenerationChanged {
		for _, n := range nodes {
			n.refreshPeers(peers)
		}
		toRemove := c.findNodesToRemove(peers.RefreshCount)
		c.removeNodes(toRemove)
	}

	// Transitive closure: newly discovered nodes may themselves announce
	// further peers; keep draining until a pass adds nothing new.
	for len(peers.Nodes) > 0 {
		added := make([]*Node, 0, len(peers.Nodes))
		for _, n := range peers.Nodes {
			added = append(added, n)
		}
		peers.Nodes = make(map[string]*Node)
		c.addNodes(added)

		for _, n := range added {
			n.refreshPeers(peers)
		}
	}

	c.mu.Lock()
	nodes = make([]*Node, len(c.nodes))
	copy(nodes, c.nodes)
	c.mu.Unlock()

	working := c.partitionMap.Load()
	anyPartitionChange := false
	for _, n := range nodes {
		if !n.partitionChanged.Load() {
			continue
		}
		anyPartitionChange = true
		var err error
		working, err = n.refreshPartitions(peers, working)
		if err != nil {
			c.logf(LogLevelWarn, "refresh_partitions failed for %s: %v", n, err)
		}
	}
	if anyPartitionChange {
		c.partitionMap.store(working)
	}

	tendCount := c.tendCount.Add(1)
	if tendCount%30 == 0 {
		for _, n := range nodes {
			n.balanceConnections()
		}
	}
	if int(tendCount)%c.cfg.ErrorRateWindow == 0 {
		for _, n := range nodes {
			n.resetErrorCount()
		}
	}

	return nil
}

// seedNodes implements spec.md §4.7's seeding algorithm: validate every
// seed host; the first that both validates and has non-empty peers is
// accepted; a validated-but-peerless seed is kept as a fallback and only
// accepted if nothing better turns up.
func (c *Cluster) seedNodes(peers *Peers) error {
	var fallback *Node

	for _, seedHost := range c.seeds {
		resolved, err := seedHost.Resolve(c.ctx)
		if err != nil {
			c.logf(LogLevelWarn, "seed %s failed to resolve: %v", seedHost, err)
			continue
		}

		for _, host := range resolved {
			nv, err := validateAddress(c, host)
			if err != nil {
				c.logf(LogLevelWarn, "seed %s failed validation: %v", host, err)
				continue
			}
			node := newNode(c, nv)

			localPeers := newPeers()
			node.refreshPeers(localPeers)

			if len(localPeers.Peers) > 0 {
				c.addNodes([]*Node{node})
				for name, n := range localPeers.Nodes {
					peers.Nodes[name] = n
				}
				return nil
			}
			if fallback == nil {
				fallback = node
			} else {
				node.close()
			}
		}
	}

	if fallback != nil {
		c.addNodes([]*Node{fallback})
		return nil
	}
	return nil
}

// findNodesToRemove implements spec.md §4.7's removal predicate.
func (c *Cluster) findNodesToRemove(refreshCount int) []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remove []*Node
	for _, n := range c.nodes {
		if !n.IsActive() {
			remove = append(remove, n)
			continue
		}
		if refreshCount == 0 && n.failures.Load() >= 5 {
			remove = append(remove, n)
			continue
		}
		if len(c.nodes) > 1 && refreshCount >= 1 && n.referenceCount.Load() == 0 {
			if n.failures.Load() > 0 || !c.nodeInPartitionMap(n) {
				remove = append(remove, n)
			}
		}
	}
	return remove
}

func (c *Cluster) nodeInPartitionMap(n *Node) bool {
	for _, partitions := range c.partitionMap.Load() {
		for _, replica := range partitions.Replicas {
			for _, owner := range replica {
				if owner == n {
					return true
				}
			}
		}
	}
	return false
}

func (c *Cluster) addNodes(added []*Node) {
	if len(added) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range added {
		if _, exists := c.nodesMap[n.name]; exists {
			continue
		}
		c.nodesMap[n.name] = n
		c.nodes = append(c.nodes, n)
	}
}

func (c *Cluster) removeNodes(removed []*Node) {
	if len(removed) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range removed {
		delete(c.nodesMap, n.name)
		for i, existing := range c.nodes {
			if existing == n {
				c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
				break
			}
		}
		n.close()
	}
}
