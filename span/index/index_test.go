package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = uintptr(4096)

// register reserves and commits pages at addr, failing the test on error.
func register(t *testing.T, idx Index, addr, pages uintptr, id SpanID) {
	t.Helper()
	slot, err := idx.Reserve(pages)
	require.NoError(t, err)
	require.Equal(t, pages, slot.Pages())
	idx.Commit(slot, addr, id)
}

func newBoth(t *testing.T, maxPages uintptr) map[string]Index {
	t.Helper()
	r, err := NewRadix(testPage, maxPages)
	require.NoError(t, err)
	tb, err := NewTable(testPage, maxPages)
	require.NoError(t, err)
	return map[string]Index{"radix": r, "linear": tb}
}

func TestIndex_LookupAndFirstPage(t *testing.T) {
	for name, idx := range newBoth(t, 64) {
		t.Run(name, func(t *testing.T) {
			// Two adjacent spans: the second starts right where the first ends.
			a := uintptr(0x7f0000000000)
			register(t, idx, a, 3, 1)
			register(t, idx, a+3*testPage, 2, 2)
			assert.Equal(t, uintptr(5), idx.Len())
			assert.Equal(t, uintptr(64), idx.Cap())

			for i := uintptr(0); i < 3; i++ {
				id, ok := idx.Lookup(a + i*testPage)
				require.True(t, ok)
				assert.Equal(t, SpanID(1), id)

				first, ok := idx.FirstPage(a + i*testPage)
				require.True(t, ok)
				assert.Equal(t, a, first)
			}
			for i := uintptr(3); i < 5; i++ {
				id, ok := idx.Lookup(a + i*testPage)
				require.True(t, ok)
				assert.Equal(t, SpanID(2), id)

				first, ok := idx.FirstPage(a + i*testPage)
				require.True(t, ok)
				assert.Equal(t, a+3*testPage, first, "walk must stop at the span boundary")
			}

			_, ok := idx.Lookup(a + 5*testPage)
			assert.False(t, ok)
			_, ok = idx.Lookup(a - testPage)
			assert.False(t, ok)
			_, ok = idx.FirstPage(0x1000)
			assert.False(t, ok)
		})
	}
}

func TestIndex_CapacityExhaustion(t *testing.T) {
	for name, idx := range newBoth(t, 8) {
		t.Run(name, func(t *testing.T) {
			register(t, idx, 0x100000, 5, 1)
			register(t, idx, 0x200000, 3, 2)

			_, err := idx.Reserve(1)
			require.ErrorIs(t, err, ErrFull)
			_, err = idx.Reserve(0)
			require.ErrorIs(t, err, ErrFull)
			assert.Equal(t, uintptr(8), idx.Len())
		})
	}
}

func TestIndex_Unregister(t *testing.T) {
	for name, idx := range newBoth(t, 16) {
		t.Run(name, func(t *testing.T) {
			register(t, idx, 0x100000, 4, 1)
			idx.Unregister(0x100000, 4)
			assert.Zero(t, idx.Len())
			_, ok := idx.Lookup(0x100000)
			assert.False(t, ok)

			// Unregistering an unknown range is a no-op.
			idx.Unregister(0x900000, 2)
			assert.Zero(t, idx.Len())
		})
	}
}

func TestTable_ReusesFreeRun(t *testing.T) {
	tb, err := NewTable(testPage, 8)
	require.NoError(t, err)

	register(t, tb, 0x100000, 2, 1)
	register(t, tb, 0x200000, 3, 2)
	register(t, tb, 0x300000, 3, 3)
	require.Equal(t, 8, tb.Entries())

	// Table is full by entries; freeing span 2 leaves a 3-entry hole.
	_, err = tb.Reserve(1)
	require.ErrorIs(t, err, ErrFull)
	tb.Unregister(0x200000, 3)

	_, err = tb.Reserve(4)
	require.ErrorIs(t, err, ErrFull, "hole is only three entries wide")

	register(t, tb, 0x400000, 3, 4)
	assert.Equal(t, 8, tb.Entries(), "hole must be reused instead of appending")

	id, ok := tb.Lookup(0x400000 + 2*testPage)
	require.True(t, ok)
	assert.Equal(t, SpanID(4), id)

	first, ok := tb.FirstPage(0x400000 + 2*testPage)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x400000), first)
}

func TestRadix_LeafBoundary(t *testing.T) {
	r, err := NewRadix(testPage, 0)
	require.NoError(t, err)
	assert.Equal(t, uintptr(DefaultMaxPages), r.Cap())

	// Span straddling two leaves.
	start := uintptr(leafLen-2) * testPage
	register(t, r, start, 4, 7)

	first, ok := r.FirstPage(start + 3*testPage)
	require.True(t, ok)
	assert.Equal(t, start, first)

	_, ok = r.Lookup(start + 1)
	assert.False(t, ok, "unaligned address is never registered")

	r.Unregister(start, 4)
	assert.Empty(t, r.root, "empty leaves are dropped")
}

func TestNew(t *testing.T) {
	idx, err := New(KindLinear, testPage, 10)
	require.NoError(t, err)
	assert.IsType(t, &Table{}, idx)

	idx, err = New("", testPage, 10)
	require.NoError(t, err)
	assert.IsType(t, &Radix{}, idx)

	_, err = New("btree", testPage, 10)
	require.Error(t, err)

	_, err = New(KindRadix, 3000, 10)
	require.ErrorIs(t, err, ErrBadPageSize)
	_, err = NewTable(0, 10)
	require.ErrorIs(t, err, ErrBadPageSize)
}

func TestMetaTable(t *testing.T) {
	mt := NewMetaTable()
	assert.Nil(t, mt.Get(0))
	assert.Nil(t, mt.Get(1))

	id, err := mt.Mint(Meta{Pages: 2, Start: 0x1000})
	require.NoError(t, err)
	assert.Equal(t, SpanID(1), id)

	id, err = mt.Mint(Meta{Pages: 1})
	require.NoError(t, err)
	assert.Equal(t, SpanID(2), id)
	assert.Equal(t, 2, mt.Len())

	m := mt.Get(1)
	require.NotNil(t, m)
	assert.Equal(t, uintptr(2), m.Pages)
	assert.False(t, m.Small)
	m.Small = true
	assert.True(t, mt.Get(1).Small)

	mt.SetLimit(3)
	_, err = mt.Mint(Meta{Pages: 1})
	require.NoError(t, err)
	assert.True(t, mt.Exhausted())
	_, err = mt.Mint(Meta{Pages: 1})
	require.ErrorIs(t, err, ErrSpanIDsExhausted)
}
