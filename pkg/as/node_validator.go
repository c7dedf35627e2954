package as

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/ascode"
)

// nodeValidator performs the handshake spec.md §4.3 describes: dial a
// candidate Host, issue an info request for {node, partition-generation,
// features[, cluster-name]}, and validate the reply.
type nodeValidator struct {
	name        string
	primaryHost Host
	primaryConn *Connection
	features    map[string]bool
}

// validateAddress dials host and runs the handshake, populating the
// validator on success. On any failure it closes any connection it opened.
func validateAddress(cluster *Cluster, host Host) (*nodeValidator, error) {
	if !host.IsIP() {
		return nil, errInvalidNode(fmt.Sprintf("host %s must be resolved to an IP before validation", host.Name))
	}

	if err := cluster.dialLimiter.Wait(cluster.ctx); err != nil {
		return nil, wrapError(ascode.ConnectionFailed, fmt.Sprintf("dial throttle wait for %s aborted", host), err)
	}

	conn, err := DialConnection(host, cluster.cfg.ConnTimeout, cluster.cfg.TLSConfig)
	if err != nil {
		return nil, err
	}

	nv := &nodeValidator{primaryHost: host, primaryConn: conn}
	deadline := time.Now().Add(cluster.cfg.ConnTimeout)

	commands := []string{"node", "partition-generation", "features"}
	hasClusterName := cluster.cfg.ClusterName != ""
	if hasClusterName {
		commands = append(commands, "cluster-name")
	}

	info, err := infoRequestMap(conn, commands, deadline)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := nv.validateNodeName(info); err != nil {
		conn.Close()
		return nil, err
	}
	if err := nv.validatePartitionGeneration(info); err != nil {
		conn.Close()
		return nil, err
	}
	nv.setFeatures(info)
	if err := nv.validateFeatures(); err != nil {
		conn.Close()
		return nil, err
	}
	if hasClusterName {
		if err := nv.validateClusterName(cluster.cfg.ClusterName, info); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return nv, nil
}

func (nv *nodeValidator) validateNodeName(info map[string]string) error {
	name, ok := info["node"]
	if !ok || name == "" {
		return errInvalidNode("node name is empty")
	}
	nv.name = name
	return nil
}

func (nv *nodeValidator) validatePartitionGeneration(info map[string]string) error {
	s, ok := info["partition-generation"]
	if !ok {
		return newError(ascode.ParseError, fmt.Sprintf("node %s %s returned no partition-generation", nv.name, nv.primaryHost))
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return newError(ascode.ParseError, fmt.Sprintf("node %s %s returned invalid partition-generation %q", nv.name, nv.primaryHost, s))
	}
	if gen == -1 {
		return newError(ascode.ParseError, fmt.Sprintf("node %s %s is not yet fully initialized (partition-generation=-1)", nv.name, nv.primaryHost))
	}
	return nil
}

func (nv *nodeValidator) setFeatures(info map[string]string) {
	nv.features = make(map[string]bool)
	raw, ok := info["features"]
	if !ok {
		return
	}
	for _, f := range strings.Split(raw, ";") {
		if f != "" {
			nv.features[f] = true
		}
	}
}

// validateFeatures enforces spec.md §4.3's pscans requirement.
func (nv *nodeValidator) validateFeatures() error {
	if !nv.features["pscans"] {
		return newError(ascode.UnsupportedFeature, fmt.Sprintf("node %s %s does not advertise pscans; server version < 4.9 is unsupported", nv.name, nv.primaryHost))
	}
	return nil
}

func (nv *nodeValidator) validateClusterName(expected string, info map[string]string) error {
	got, ok := info["cluster-name"]
	if !ok || got != expected {
		return errInvalidNode(fmt.Sprintf("node %s %s expected cluster name %q, received %q", nv.name, nv.primaryHost, expected, got))
	}
	return nil
}

func (nv *nodeValidator) hasPartitionQuery() bool {
	return nv.features["pquery"]
}
