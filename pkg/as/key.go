package as

import (
	"fmt"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/aswire"
)

// Value is a bin or user-key value of one of the particle types the core
// encodes directly, per spec.md §4.9 ("plus LIST, MAP, HLL, GEOJSON
// reserved codes" — left undecoded here as those are out of scope for the
// core per spec.md's builder exclusion).
type Value struct {
	particle aswire.ParticleType
	i        int64
	s        string
	b        []byte
}

func IntValue(v int64) Value    { return Value{particle: aswire.ParticleInteger, i: v} }
func StringValue(v string) Value { return Value{particle: aswire.ParticleString, s: v} }
func BytesValue(v []byte) Value  { return Value{particle: aswire.ParticleBlob, b: v} }

func (v Value) ParticleType() aswire.ParticleType { return v.particle }

// EstimateSize returns the on-wire byte length of the value's payload
// (not including the operation header).
func (v Value) EstimateSize() int {
	switch v.particle {
	case aswire.ParticleInteger:
		return 8
	case aswire.ParticleString:
		return len(v.s)
	case aswire.ParticleBlob:
		return len(v.b)
	default:
		return 0
	}
}

// Put writes the value's payload bytes into buf.
func (v Value) Put(buf []byte) {
	switch v.particle {
	case aswire.ParticleInteger:
		putUint64(buf, uint64(v.i))
	case aswire.ParticleString:
		copy(buf, v.s)
	case aswire.ParticleBlob:
		copy(buf, v.b)
	}
}

func (v Value) String() string {
	switch v.particle {
	case aswire.ParticleInteger:
		return fmt.Sprintf("%d", v.i)
	case aswire.ParticleString:
		return v.s
	case aswire.ParticleBlob:
		return fmt.Sprintf("%x", v.b)
	default:
		return "<unsupported>"
	}
}

// AsInt64 returns the integer value, if this is one.
func (v Value) AsInt64() (int64, bool) {
	if v.particle != aswire.ParticleInteger {
		return 0, false
	}
	return v.i, true
}

// AsString returns the string value, if this is one.
func (v Value) AsString() (string, bool) {
	if v.particle != aswire.ParticleString {
		return "", false
	}
	return v.s, true
}

// AsBytes returns the blob value, if this is one.
func (v Value) AsBytes() ([]byte, bool) {
	if v.particle != aswire.ParticleBlob {
		return nil, false
	}
	return v.b, true
}

func decodeValue(particle aswire.ParticleType, payload []byte) (Value, error) {
	switch particle {
	case aswire.ParticleInteger:
		if len(payload) != 8 {
			return Value{}, errParse("integer particle must be 8 bytes")
		}
		return IntValue(int64(getUint64(payload))), nil
	case aswire.ParticleString:
		return StringValue(string(payload)), nil
	case aswire.ParticleBlob:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return BytesValue(cp), nil
	default:
		return Value{}, errParse(fmt.Sprintf("unsupported particle type %d", particle))
	}
}

// Bins maps bin name to value for read and write commands.
type Bins map[string]Value

// Key identifies a single record: a namespace, an optional set, and a
// user key whose digest determines partition placement.
type Key struct {
	Namespace string
	SetName   string
	UserKey   Value
	digest    [20]byte
}

// NewKey computes the key's digest eagerly so routing is cheap on every
// retry.
func NewKey(namespace, setName string, userKey Value) Key {
	k := Key{Namespace: namespace, SetName: setName, UserKey: userKey}
	k.digest = ComputeDigest(setName, byte(userKey.ParticleType()), userKeyBytes(userKey))
	return k
}

func (k Key) Digest() [20]byte { return k.digest }

func userKeyBytes(v Value) []byte {
	switch v.particle {
	case aswire.ParticleInteger:
		buf := make([]byte, 8)
		putUint64(buf, uint64(v.i))
		return buf
	case aswire.ParticleString:
		return []byte(v.s)
	case aswire.ParticleBlob:
		return v.b
	default:
		return nil
	}
}

func putUint64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(v)
		v >>= 8
	}
}

func getUint64(buf []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return v
}
