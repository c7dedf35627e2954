package as

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDigestDeterministic(t *testing.T) {
	d1 := ComputeDigest("myset", 3, []byte("key1"))
	d2 := ComputeDigest("myset", 3, []byte("key1"))
	assert.Equal(t, d1, d2)

	d3 := ComputeDigest("otherset", 3, []byte("key1"))
	assert.NotEqual(t, d1, d3, "different set name must change the digest")
}

func TestPartitionIDForRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := ComputeDigest("s", 3, []byte{byte(i)})
		id := PartitionIDFor(d)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, PartitionCount)
	}
}

func TestPartitionIDForLittleEndian(t *testing.T) {
	var d [20]byte
	d[0], d[1], d[2], d[3] = 0x01, 0x00, 0x00, 0x00
	assert.Equal(t, 1%PartitionCount, PartitionIDFor(d))
}
