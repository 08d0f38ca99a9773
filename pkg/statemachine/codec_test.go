package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSnapshot_DeterministicRegardlessOfMapOrder(t *testing.T) {
	a := map[string]string{"z": "1", "a": "2", "m": "3"}
	b := map[string]string{"m": "3", "z": "1", "a": "2"}

	encA, err := EncodeSnapshot(a)
	require.NoError(t, err)
	encB, err := EncodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB)
}

func TestEncodeDecodeSnapshot_RoundTrip(t *testing.T) {
	kvs := map[string]string{"a": "1", "b": "2"}
	data, err := EncodeSnapshot(kvs)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, kvs, decoded)
}

func TestEncodeSnapshot_EmptyMap(t *testing.T) {
	data, err := EncodeSnapshot(map[string]string{})
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
