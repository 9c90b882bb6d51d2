package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/spanalloc/internal/rawmem"
)

func TestGoHeap(t *testing.T) {
	g := NewGoHeap()

	assert.Zero(t, g.Malloc(0))
	g.Free(0)

	p := g.Malloc(10)
	require.NotZero(t, p)
	assert.Zero(t, p%rawmem.WordSize)
	assert.Equal(t, uintptr(16), g.UsableSize(p))
	copy(rawmem.Bytes(p, 10), "0123456789")

	q := g.Realloc(p, 100)
	require.NotZero(t, q)
	assert.Equal(t, "0123456789", string(rawmem.Bytes(q, 10)))
	assert.Zero(t, g.UsableSize(p))
	assert.Equal(t, 1, g.Len())

	assert.Zero(t, g.Realloc(q, 0))
	assert.Zero(t, g.Len())

	z := g.Calloc(4, 4)
	require.NotZero(t, z)
	assert.Equal(t, make([]byte, 16), rawmem.Bytes(z, 16))
	assert.Zero(t, g.Calloc(^uintptr(0), 2))

	assert.Zero(t, g.Realloc(12345, 8), "unknown block")
	g.Free(z)
	assert.Zero(t, g.Len())
}

func TestEnterFallback(t *testing.T) {
	g := NewGoHeap()
	a := newTestAllocator(t, WithFallback(g))
	ps := a.PageSize()

	small := a.Malloc(100)
	large := a.Malloc(2 * ps)
	moved := a.Malloc(50)
	require.NotZero(t, small)
	require.NotZero(t, large)
	require.NotZero(t, moved)
	fill(a, moved, 50, 4)

	a.EnterFallback()
	assert.Equal(t, StateFallback, a.State())

	p := a.Malloc(100)
	require.NotZero(t, p)
	assert.False(t, a.owns(p))
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, uintptr(104), a.UsableSize(p))
	fill(a, p, 100, 1)
	assert.Equal(t, pattern(100, 1), a.Bytes(p, 100))
	a.Free(p)
	assert.Zero(t, g.Len())

	// Blocks from before the switch still go back to the spans.
	a.Free(small)
	a.Free(large)
	st := a.Stats()
	assert.Equal(t, 1, st.Small.Releases)
	assert.Equal(t, 1, st.Heap.FreeSpans)

	// Resizing an owned block moves it to the fallback.
	q := a.Realloc(moved, 500)
	require.NotZero(t, q)
	assert.False(t, a.owns(q))
	assert.Equal(t, pattern(50, 4), a.Bytes(q, 50))
	assert.Equal(t, 2, a.Stats().Small.Releases)

	q = a.Realloc(q, 1000)
	require.NotZero(t, q)
	assert.Equal(t, pattern(50, 4), a.Bytes(q, 50))

	z := a.Calloc(10, 10)
	require.NotZero(t, z)
	assert.Equal(t, 2, g.Len())

	st = a.Stats()
	assert.Equal(t, 5, st.FallbackCalls)
	assert.Equal(t, 3, st.Source.Spans, "nothing is mapped after the switch")
}

func TestEnterFallbackBeforeInit(t *testing.T) {
	a := newTestAllocator(t)
	a.EnterFallback()

	p := a.Malloc(8)
	require.NotZero(t, p)
	a.Free(p)
	assert.Equal(t, StateFallback, a.State())
	assert.Equal(t, 0, a.Stats().Source.Spans)
}
