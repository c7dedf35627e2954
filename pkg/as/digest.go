package as

import (
	"encoding/binary"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // deprecated upstream, still the only RIPEMD160 in the dependency surface
)

// PartitionCount is the fixed number of hash buckets a key's digest routes
// into, per spec.md §3/§4.8.
const PartitionCount = 4096

// ComputeDigest hashes a record key the way the server does: RIPEMD160 over
// the set name, a one-byte particle type tag for the user key, and the
// user key's raw bytes. The namespace is never part of the digest — it
// routes through the PartitionMap's namespace key instead.
func ComputeDigest(setName string, keyParticleType byte, keyBytes []byte) [20]byte {
	h := ripemd160.New()
	h.Write([]byte(setName))
	h.Write([]byte{keyParticleType})
	h.Write(keyBytes)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// PartitionIDFor maps a digest to its partition bucket: the first 4 bytes
// of the digest, interpreted little-endian, mod PartitionCount. This is
// spec.md's documented-algorithm resolution of its Open Question, not the
// source's `int(digest[:12])`.
func PartitionIDFor(digest [20]byte) int {
	v := binary.LittleEndian.Uint32(digest[0:4])
	return int(v % PartitionCount)
}
