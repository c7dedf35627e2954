package aswire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInfoRequest(t *testing.T) {
	req := EncodeInfoRequest([]string{"node", "partition-generation"})

	version, msgType, bodyLen, err := DecodeInfoHeader(req[:InfoHeaderSize])
	require.NoError(t, err)
	assert.Equal(t, InfoProtocolVersion, version)
	assert.Equal(t, InfoMessageType, msgType)

	body := req[InfoHeaderSize:]
	assert.Equal(t, int64(len(body)), bodyLen)
	assert.Equal(t, "node\npartition-generation\n", string(body))
}

func TestDecodeInfoHeaderWrongSize(t *testing.T) {
	_, _, _, err := DecodeInfoHeader([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseInfoResponse(t *testing.T) {
	body := []byte("node\tBB9020011AC4202\npartition-generation\t1\nempty-line-skip\n\nfeatures\tpscans;pquery\n")
	got := ParseInfoResponse(body)

	assert.Equal(t, map[string]string{
		"node":                 "BB9020011AC4202",
		"partition-generation": "1",
		"empty-line-skip":      "",
		"features":             "pscans;pquery",
	}, got)
}

func TestParserPrimitives(t *testing.T) {
	p := NewParser([]byte("replicas\t1:0,2,abc=="))

	require.NoError(t, p.ParseName("replicas"))
	require.NoError(t, p.Expect('1'))
	require.NoError(t, p.Expect(':'))

	v, err := p.ParseInt()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, p.Expect(','))

	s, err := p.ParseString(',')
	require.NoError(t, err)
	assert.Equal(t, "2", s)
}

func TestParserExpectAtEndOfBuffer(t *testing.T) {
	p := NewParser([]byte("ab"))
	require.NoError(t, p.Expect('a'))
	require.NoError(t, p.Expect('b'))
	err := p.Expect('c')
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}
