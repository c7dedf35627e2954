package as

import (
	"net"
	"testing"
	"time"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt64(t *testing.T) {
	v, err := parseInt64("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = parseInt64("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)

	_, err = parseInt64("")
	assert.Error(t, err)

	_, err = parseInt64("12x")
	assert.Error(t, err)
}

func TestNodeApplyGenerationTracksChange(t *testing.T) {
	n := &Node{name: "n1"}
	n.partitionGeneration.Store(-1)

	require.NoError(t, n.applyGeneration(&n.partitionGeneration, "7", &n.partitionChanged))
	assert.Equal(t, int64(7), n.partitionGeneration.Load())
	assert.True(t, n.partitionChanged.Load())

	n.partitionChanged.Store(false)
	require.NoError(t, n.applyGeneration(&n.partitionGeneration, "7", &n.partitionChanged))
	assert.False(t, n.partitionChanged.Load(), "unchanged generation must not flip the changed flag")

	err := n.applyGeneration(&n.partitionGeneration, "not-a-number", &n.partitionChanged)
	assert.Error(t, err)
}

func TestNodeErrorCountWithinLimit(t *testing.T) {
	n := &Node{cluster: &Cluster{cfg: defaultClientPolicy()}}
	n.cluster.cfg.MaxErrorRate = 2
	assert.True(t, n.ErrorCountWithinLimit())
	n.incErrorCount()
	n.incErrorCount()
	assert.False(t, n.ErrorCountWithinLimit())
	n.resetErrorCount()
	assert.True(t, n.ErrorCountWithinLimit())
}

func TestNodeHasPartitionQuery(t *testing.T) {
	n := &Node{features: map[string]bool{"pquery": true}}
	assert.True(t, n.HasPartitionQuery())
	n2 := &Node{features: map[string]bool{}}
	assert.False(t, n2.HasPartitionQuery())
}

func pipeConnection() (*Connection, net.Conn) {
	client, server := net.Pipe()
	return &Connection{conn: client}, server
}

func TestNodeGetConnectionReusesIdle(t *testing.T) {
	n := &Node{
		cluster: &Cluster{cfg: defaultClientPolicy()},
		pool:    newPool(0, 4),
	}
	n.active.Store(true)

	idle, server := pipeConnection()
	server.Close()
	n.pool.Offer(idle)
	n.pool.incTotalOpen(1)

	got, err := n.getConnection(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Same(t, idle, got, "an idle pooled connection must be reused before dialing")
}

func TestNodeGetConnectionRejectsOverMaxConns(t *testing.T) {
	cfg := defaultClientPolicy()
	cfg.MaxConnsPerNode = 1
	n := &Node{
		cluster: &Cluster{cfg: cfg},
		pool:    newPool(0, 1),
	}
	n.active.Store(true)
	n.pool.incTotalOpen(1) // pool already at MaxConnsPerNode=1 with nothing idle

	_, err := n.getConnection(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrNoMoreConnections)
}

func TestNodePutAndCloseConnectionOnError(t *testing.T) {
	n := &Node{
		cluster: &Cluster{cfg: defaultClientPolicy()},
		pool:    newPool(0, 4),
	}
	c, server := pipeConnection()
	defer server.Close()
	n.pool.incTotalOpen(1)

	n.putConnection(c)
	assert.Equal(t, 1, n.pool.Size())

	back := n.pool.Take()
	require.Same(t, c, back)
	n.closeConnectionOnError(back)
	assert.True(t, back.IsClosed())
	assert.Equal(t, 0, n.pool.TotalOpen())
}

// encodeInfoResponse frames pairs the same way the server side of the wire
// protocol does, so refresh()/refreshPeers() can be driven over a net.Pipe.
func encodeInfoResponse(pairs ...string) []byte {
	body := make([]byte, 0, 64)
	for i := 0; i < len(pairs); i += 2 {
		body = append(body, pairs[i]...)
		body = append(body, '\t')
		body = append(body, pairs[i+1]...)
		body = append(body, '\n')
	}
	header := make([]byte, aswire.InfoHeaderSize)
	header[0] = aswire.InfoProtocolVersion
	header[1] = aswire.InfoMessageType
	n := len(body)
	header[5] = byte(n >> 16)
	header[6] = byte(n >> 8)
	header[7] = byte(n)
	return append(header, body...)
}

func drainInfoRequest(t *testing.T, server net.Conn) {
	t.Helper()
	header := make([]byte, aswire.InfoHeaderSize)
	_, err := readFull(server, header)
	require.NoError(t, err)
	_, _, bodyLen, err := aswire.DecodeInfoHeader(header)
	require.NoError(t, err)
	body := make([]byte, bodyLen)
	_, err = readFull(server, body)
	require.NoError(t, err)
}

func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestNodeRefreshAppliesGenerations(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	cluster := &Cluster{cfg: defaultClientPolicy()}
	n := &Node{cluster: cluster, name: "BB9020011AC4202", tendConn: &Connection{conn: client}}
	n.active.Store(true)
	n.partitionGeneration.Store(-1)
	n.peersGeneration.Store(-1)
	n.rebalanceGeneration.Store(-1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainInfoRequest(t, server)
		resp := encodeInfoResponse(
			"node", "BB9020011AC4202",
			"partition-generation", "3",
			"peers-generation", "1",
			"services", "",
			"rebalance-generation", "2",
		)
		_, err := server.Write(resp)
		assert.NoError(t, err)
	}()

	require.NoError(t, n.refresh(&Peers{Nodes: map[string]*Node{}}))
	<-done

	assert.Equal(t, int64(3), n.partitionGeneration.Load())
	assert.Equal(t, int64(1), n.peersGeneration.Load())
	assert.Equal(t, int64(2), n.rebalanceGeneration.Load())
	assert.Equal(t, int32(1), n.refreshCount.Load())
	assert.Equal(t, int32(0), n.failures.Load())
}

func TestNodeRefreshDeactivatesOnIdentityMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	cluster := &Cluster{cfg: defaultClientPolicy()}
	n := &Node{cluster: cluster, name: "expected-name", tendConn: &Connection{conn: client}}
	n.active.Store(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainInfoRequest(t, server)
		resp := encodeInfoResponse(
			"node", "different-name",
			"partition-generation", "1",
			"peers-generation", "1",
			"services", "",
			"rebalance-generation", "1",
		)
		_, _ = server.Write(resp)
	}()

	err := n.refresh(&Peers{Nodes: map[string]*Node{}})
	<-done

	assert.Error(t, err)
	assert.False(t, n.IsActive())
}
