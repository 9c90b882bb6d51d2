package pagesource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/spanalloc/internal/rawmem"
	"github.com/joshuapare/spanalloc/internal/sysmem"
	"github.com/joshuapare/spanalloc/span/index"
)

func newTestSource(t *testing.T, kind index.Kind, pageSize, maxPages uintptr) *Source {
	t.Helper()
	idx, err := index.New(kind, pageSize, maxPages)
	require.NoError(t, err)
	s := New(pageSize, idx, index.NewMetaTable())
	t.Cleanup(func() {
		require.NoError(t, s.Release())
	})
	return s
}

func TestAcquireSpan_RegistersEveryPage(t *testing.T) {
	ps := sysmem.PageSize()
	for _, kind := range []index.Kind{index.KindRadix, index.KindLinear} {
		t.Run(string(kind), func(t *testing.T) {
			s := newTestSource(t, kind, ps, 0)

			span, err := s.AcquireSpan(3)
			require.NoError(t, err)
			assert.Equal(t, index.SpanID(1), span.ID)
			assert.Equal(t, uintptr(3), span.Pages)
			assert.Zero(t, span.Addr%ps)

			for i := uintptr(0); i < 3; i++ {
				id, ok := s.Index().Lookup(span.Addr + i*ps)
				require.True(t, ok)
				assert.Equal(t, span.ID, id)
			}
			meta := s.Metas().Get(span.ID)
			require.NotNil(t, meta)
			assert.Equal(t, uintptr(3), meta.Pages)
			assert.False(t, meta.Small)
			assert.Equal(t, span.Addr, meta.Start)

			// Fresh memory is zeroed and writable.
			b := rawmem.Bytes(span.Addr, 3*ps)
			assert.Zero(t, b[0])
			assert.Zero(t, b[len(b)-1])
			b[len(b)-1] = 1

			second, err := s.AcquireSpan(1)
			require.NoError(t, err)
			assert.Equal(t, index.SpanID(2), second.ID, "identifiers are minted in order")

			st := s.Stats()
			assert.Equal(t, 2, st.Spans)
			assert.Equal(t, uintptr(4), st.Pages)
			assert.Equal(t, 4*ps, st.BytesMapped)
		})
	}
}

func TestAcquireSpan_IndexFull(t *testing.T) {
	s := newTestSource(t, index.KindLinear, sysmem.PageSize(), 4)

	_, err := s.AcquireSpan(3)
	require.NoError(t, err)

	mapCalls := 0
	s.SetMapFunc(func(size uintptr) (sysmem.Mapping, error) {
		mapCalls++
		return sysmem.Map(size)
	})
	_, err = s.AcquireSpan(2)
	require.ErrorIs(t, err, index.ErrFull)
	assert.Zero(t, mapCalls, "nothing is mapped when the index is full")
	assert.Equal(t, 1, s.Stats().IndexFull)

	_, err = s.AcquireSpan(1)
	require.NoError(t, err, "the last free slot is still usable")
}

func TestAcquireSpan_MapRefused(t *testing.T) {
	s := newTestSource(t, index.KindRadix, sysmem.PageSize(), 0)
	refused := errors.New("ENOMEM")
	s.SetMapFunc(func(uintptr) (sysmem.Mapping, error) {
		return sysmem.Mapping{}, refused
	})

	_, err := s.AcquireSpan(1)
	require.ErrorIs(t, err, ErrMapFailed)
	require.ErrorIs(t, err, refused)
	assert.Zero(t, s.Index().Len(), "a refused mapping registers nothing")
	assert.Zero(t, s.Metas().Len(), "a refused mapping burns no identifier")
	assert.Equal(t, 1, s.Stats().MapFailures)
}

func TestAcquireSpan_IdentifiersExhausted(t *testing.T) {
	s := newTestSource(t, index.KindRadix, sysmem.PageSize(), 0)
	s.Metas().SetLimit(1)

	_, err := s.AcquireSpan(1)
	require.NoError(t, err)
	_, err = s.AcquireSpan(1)
	require.ErrorIs(t, err, index.ErrSpanIDsExhausted)
}

func TestAcquireSpan_ZeroPages(t *testing.T) {
	s := newTestSource(t, index.KindRadix, sysmem.PageSize(), 0)
	_, err := s.AcquireSpan(0)
	require.Error(t, err)
}

func TestAcquireSpan_LargerThanOSPage(t *testing.T) {
	ps := 4 * sysmem.PageSize()
	s := newTestSource(t, index.KindRadix, ps, 0)

	for range 4 {
		span, err := s.AcquireSpan(2)
		require.NoError(t, err)
		require.Zero(t, span.Addr%ps, "span must start on a %d-byte boundary", ps)
		rawmem.Bytes(span.Addr, 2*ps)[2*ps-1] = 0xff
	}
}

func TestRelease_UnregistersSpans(t *testing.T) {
	idx, err := index.NewRadix(sysmem.PageSize(), 0)
	require.NoError(t, err)
	s := New(sysmem.PageSize(), idx, index.NewMetaTable())

	span, err := s.AcquireSpan(2)
	require.NoError(t, err)
	require.NoError(t, s.Release())

	_, ok := idx.Lookup(span.Addr)
	assert.False(t, ok)
	assert.Zero(t, idx.Len())
	require.NoError(t, s.Release(), "second release is a no-op")
}
