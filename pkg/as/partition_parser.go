package as

import (
	"encoding/base64"
	"fmt"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
)

// partitionParser decodes a node's "partition-generation" + "replicas"
// info response and updates the cluster's PartitionMap's working copy
// accordingly, per spec.md §4.5. One parser instance is used per node per
// tend iteration; it mutates a private working-copy map lazily cloned from
// the published snapshot on first structural change, and the cluster
// installs it via a single atomic swap once the whole tend iteration is
// done mutating it.
type partitionParser struct {
	p          *aswire.Parser
	generation int64

	working     map[string]*Partitions
	copied      bool
	regimeError bool
	touched     map[string]bool
}

func newPartitionParser(working map[string]*Partitions, body []byte) *partitionParser {
	return &partitionParser{p: aswire.NewParser(body), working: working, touched: make(map[string]bool)}
}

// ensureCopied clones the top-level namespace map exactly once per tend
// (copy-on-write), the point spec.md §3 calls out as "the containing map
// is cloned once per tend iteration before mutation."
func (pp *partitionParser) ensureCopied() {
	if pp.copied {
		return
	}
	next := make(map[string]*Partitions, len(pp.working))
	for k, v := range pp.working {
		next[k] = v
	}
	pp.working = next
	pp.copied = true
}

// parse runs the full "partition-generation\n...replicas\n..." decode,
// storing the parsed generation in pp.generation and leaving pp.working
// updated (and pp.copied true if anything changed). It returns only an
// error.
func (pp *partitionParser) parse(node *Node) error {
	if pp.p.Len() == 0 {
		return errParse("partition info response is empty")
	}
	if err := pp.p.ParseName("partition-generation"); err != nil {
		return err
	}
	gen, err := pp.p.ParseInt()
	if err != nil {
		return err
	}
	pp.generation = gen
	if err := pp.p.Expect('\n'); err != nil {
		return err
	}
	if err := pp.p.ParseName("replicas"); err != nil {
		return err
	}
	return pp.parseReplicasAll(node)
}

func (pp *partitionParser) parseReplicasAll(node *Node) error {
	p := pp.p
	begin := p.Offset
	var regime uint32

	for p.Offset < p.Len() {
		if p.Buffer[p.Offset] != ':' {
			p.Offset++
			continue
		}

		namespace := string(p.Buffer[begin:p.Offset])
		if len(namespace) == 0 || len(namespace) > 31 {
			return &aswire.ParseError{Reason: fmt.Sprintf("invalid partition namespace %q", namespace), Truncated: p.Buffer}
		}
		p.Offset++
		begin = p.Offset

		// regime: big-endian integer field up to ','
		for p.Offset < p.Len() && p.Buffer[p.Offset] != ',' {
			p.Offset++
		}
		r, err := parseBigEndianUint(p.Buffer[begin:p.Offset])
		if err != nil {
			return err
		}
		regime = r
		p.Offset++
		begin = p.Offset

		// replica count, up to ','
		for p.Offset < p.Len() && p.Buffer[p.Offset] != ',' {
			p.Offset++
		}
		replicaCount64, err := parseBigEndianUint(p.Buffer[begin:p.Offset])
		if err != nil {
			return err
		}
		replicaCount := int(replicaCount64)

		partitions := pp.working[namespace]
		if partitions == nil {
			partitions = newPartitions(replicaCount)
			pp.ensureCopied()
			pp.working[namespace] = partitions
		} else if len(partitions.Replicas) != replicaCount {
			partitions = partitions.resize(replicaCount)
			pp.ensureCopied()
			pp.working[namespace] = partitions
		} else if !pp.touched[namespace] {
			// First mutation of this namespace in this tend: detach from
			// whatever Partitions value is still reachable through the
			// published snapshot before decodeBitmap writes into it.
			partitions = partitions.clone()
			pp.ensureCopied()
			pp.working[namespace] = partitions
		}
		pp.touched[namespace] = true

		for i := 0; i < replicaCount; i++ {
			p.Offset++ // skip separator before this bitmap
			begin = p.Offset
			for p.Offset < p.Len() && p.Buffer[p.Offset] != ',' && p.Buffer[p.Offset] != ';' {
				p.Offset++
			}
			if p.Offset == begin {
				return &aswire.ParseError{Reason: fmt.Sprintf("empty partition bitmap for namespace %s", namespace), Truncated: p.Buffer}
			}
			if err := pp.decodeBitmap(node, partitions, i, regime, p.Buffer[begin:p.Offset]); err != nil {
				return err
			}
		}
		p.Offset++
		begin = p.Offset
	}
	return nil
}

// decodeBitmap implements spec.md §4.5's ownership update rule exactly.
func (pp *partitionParser) decodeBitmap(node *Node, partitions *Partitions, replicaIndex int, regime uint32, b64 []byte) error {
	restore := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(restore, b64)
	if err != nil {
		return &aswire.ParseError{Reason: "invalid base64 partition bitmap: " + err.Error(), Truncated: pp.p.Buffer}
	}
	restore = restore[:n]

	nodeArray := partitions.Replicas[replicaIndex]
	regimes := partitions.Regimes
	var clonedArray []*Node

	for i := 0; i < PartitionCount; i++ {
		if restore[i>>3]&(0x80>>uint(i&7)) == 0 {
			continue
		}
		regimeOld := regimes[i]
		if regime < regimeOld {
			if !pp.regimeError {
				node.cluster.logf(LogLevelInfo, "node %s regime(%d) < old regime(%d) for partition %d", node.name, regime, regimeOld, i)
				pp.regimeError = true
			}
			continue
		}
		if regime > regimeOld {
			regimes[i] = regime
		}

		oldOwner := nodeArray[i]
		if oldOwner != nil && oldOwner != node {
			// Force the previously mapped node to re-read its
			// partition map on the next tend.
			oldOwner.partitionGeneration.Store(-1)
		}

		if clonedArray == nil {
			clonedArray = partitions.cloneReplica(replicaIndex)
			nodeArray = clonedArray
			pp.ensureCopied()
			partitions.Replicas[replicaIndex] = clonedArray
		}
		nodeArray[i] = node
	}
	return nil
}

func parseBigEndianUint(b []byte) (uint32, error) {
	var v uint32
	if len(b) == 0 {
		return 0, errParse("expected integer field")
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errParse(fmt.Sprintf("invalid integer field %q", b))
		}
		v = v*10 + uint32(c-'0')
	}
	return v, nil
}
