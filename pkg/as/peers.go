package as

// Peer is a logical peer announced by peers-clear-std: one node name with
// one or more host aliases, per spec.md §3. The first host that
// handshakes successfully wins.
type Peer struct {
	NodeName string
	Hosts    []Host
}

// Peers is per-tend scratch state shared across every node's refresh pass
// within one tend iteration, per spec.md §3/§4.7.
type Peers struct {
	Peers             []Peer
	Nodes             map[string]*Node
	InvalidHosts      map[Host]bool
	RefreshCount      int
	GenerationChanged bool
}

func newPeers() *Peers {
	return &Peers{
		Nodes:        make(map[string]*Node),
		InvalidHosts: make(map[Host]bool),
	}
}
