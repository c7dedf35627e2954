package ascode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetriable(t *testing.T) {
	retriable := []ResultCode{Timeout, DeviceOverload, ConnectionFailed, ReadTimeout, WriteTimeout, IOError, InvalidNodeError}
	for _, rc := range retriable {
		assert.Truef(t, rc.Retriable(), "%s should be retriable", rc)
	}

	notRetriable := []ResultCode{Ok, KeyNotFound, KeyExists, ParseError, ClientError, FilteredOut}
	for _, rc := range notRetriable {
		assert.Falsef(t, rc.Retriable(), "%s should not be retriable", rc)
	}
}

func TestKeepConnection(t *testing.T) {
	assert.True(t, KeyNotFound.KeepConnection())
	assert.True(t, GenerationError.KeepConnection())
	assert.False(t, Ok.KeepConnection())
	assert.False(t, ClientError.KeepConnection())
	assert.False(t, ConnectionFailed.KeepConnection())
}

func TestStringUnknownCode(t *testing.T) {
	assert.Equal(t, "RESULT_CODE(42)", ResultCode(42).String())
	assert.Equal(t, "OK", Ok.String())
}
