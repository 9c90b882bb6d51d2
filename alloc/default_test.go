package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAllocator(t *testing.T) {
	require.Same(t, Default(), Default())

	p := Malloc(100)
	require.NotZero(t, p)
	copy(Default().Bytes(p, 5), "hello")

	p = Realloc(p, 10000)
	require.NotZero(t, p)
	assert.Equal(t, "hello", string(Default().Bytes(p, 5)))
	Free(p)

	z := Calloc(16, 16)
	require.NotZero(t, z)
	assert.Equal(t, make([]byte, 256), Default().Bytes(z, 256))
	Free(z)

	u := UnsafeMalloc(8)
	require.NotNil(t, u)
	UnsafeFree(u)
}
