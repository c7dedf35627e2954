package as

import "sync"

// Pool is a bounded ring buffer of idle Connections belonging to one Node,
// per spec.md §4.1. Invariant: size <= capacity; totalOpen >= size; a
// connection is either in the pool or checked out, never both.
type Pool struct {
	mu        sync.Mutex
	conns     []*Connection
	head      int
	tail      int
	size      int
	minSize   int
	totalOpen int
}

func newPool(minSize, maxSize int) *Pool {
	return &Pool{
		conns:   make([]*Connection, maxSize),
		minSize: minSize,
	}
}

// Offer returns a connection to the pool. Returns false if the pool is
// already at capacity; the caller must then close the connection instead.
func (p *Pool) Offer(c *Connection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size == len(p.conns) {
		return false
	}
	p.conns[p.head] = c
	p.head = (p.head + 1) % len(p.conns)
	p.size++
	return true
}

// Take removes and returns the oldest idle connection, or nil if the pool
// is empty.
func (p *Pool) Take() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size == 0 {
		return nil
	}
	c := p.conns[p.tail]
	p.conns[p.tail] = nil
	p.tail = (p.tail + 1) % len(p.conns)
	p.size--
	return c
}

// Size returns the number of idle connections currently held.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// TotalOpen returns the total number of connections this node has open,
// idle or checked out.
func (p *Pool) TotalOpen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalOpen
}

func (p *Pool) incTotalOpen(delta int) {
	p.mu.Lock()
	p.totalOpen += delta
	p.mu.Unlock()
}

// Excess returns how many connections above minSize the pool currently
// holds open in total (may be negative, meaning the pool is short).
func (p *Pool) Excess() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalOpen - p.minSize
}

// CloseIdle closes up to count of the oldest idle connections whose
// LastUsed is older than isCurrent's cutoff, per spec.md §4.4's
// balance_connections trim rule.
func (p *Pool) CloseIdle(count int, isCurrent func(c *Connection) bool) (closed int) {
	for closed < count {
		p.mu.Lock()
		if p.size == 0 {
			p.mu.Unlock()
			return closed
		}
		c := p.conns[p.tail]
		if isCurrent(c) {
			p.mu.Unlock()
			return closed
		}
		p.conns[p.tail] = nil
		p.tail = (p.tail + 1) % len(p.conns)
		p.size--
		p.mu.Unlock()

		c.Close()
		closed++
	}
	return closed
}
