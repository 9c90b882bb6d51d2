// Package pagesource acquires fresh spans from the OS and registers them in the
// span index and metadata table.
//
// Spans obtained here are never handed back to the OS while the allocator is
// running; Release exists only for teardown.
package pagesource

import (
	"errors"
	"fmt"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/internal/diag"
	"github.com/joshuapare/spanalloc/internal/sysmem"
	"github.com/joshuapare/spanalloc/span/index"
)

// ErrMapFailed indicates that the OS refused a mapping.
var ErrMapFailed = errors.New("pagesource: mapping failed")

// Span is a contiguous run of pages registered under one identifier.
type Span struct {
	ID    index.SpanID
	Addr  uintptr
	Pages uintptr
}

// MapFunc obtains size bytes of zeroed read/write memory.
type MapFunc func(size uintptr) (sysmem.Mapping, error)

// Stats counts what the source has obtained from the OS.
type Stats struct {
	Spans       int
	Pages       uintptr
	BytesMapped uintptr
	MapFailures int
	IndexFull   int
}

// Source is the OS page source.
type Source struct {
	pageSize uintptr
	osPage   uintptr
	idx      index.Index
	metas    *index.MetaTable
	mapFn    MapFunc
	mapped   []mapped
	stats    Stats
}

type mapped struct {
	m    sysmem.Mapping
	span Span
}

// New creates a page source registering spans in idx and metas. pageSize must
// be a power of two; when it is larger than the OS page, mappings are
// over-allocated so every span starts on a pageSize boundary.
func New(pageSize uintptr, idx index.Index, metas *index.MetaTable) *Source {
	return &Source{
		pageSize: pageSize,
		osPage:   sysmem.PageSize(),
		idx:      idx,
		metas:    metas,
		mapFn:    sysmem.Map,
	}
}

// SetMapFunc replaces the OS mapping primitive. Tests use it to simulate a
// refusing OS.
func (s *Source) SetMapFunc(fn MapFunc) { s.mapFn = fn }

// PageSize returns the span granularity.
func (s *Source) PageSize() uintptr { return s.pageSize }

// Index returns the span index the source registers into.
func (s *Source) Index() index.Index { return s.idx }

// Metas returns the span metadata table.
func (s *Source) Metas() *index.MetaTable { return s.metas }

// AcquireSpan maps pages fresh pages and registers them as one new span.
//
// Index capacity is reserved before anything is mapped, so a full index never
// leaks a mapping. Failures are resource exhaustion and are returned, not fatal.
func (s *Source) AcquireSpan(pages uintptr) (Span, error) {
	if pages == 0 {
		return Span{}, fmt.Errorf("pagesource: zero-page span")
	}
	if s.metas.Exhausted() {
		return Span{}, index.ErrSpanIDsExhausted
	}
	slot, err := s.idx.Reserve(pages)
	if err != nil {
		s.stats.IndexFull++
		diag.Debug("span index full", "pages", pages, "registered", s.idx.Len(), "cap", s.idx.Cap())
		return Span{}, err
	}

	size := pages * s.pageSize
	if s.pageSize > s.osPage {
		size += s.pageSize - s.osPage
	}
	m, err := s.mapFn(size)
	if err != nil {
		s.stats.MapFailures++
		diag.Debug("span mapping refused", "pages", pages, "err", err)
		return Span{}, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}

	addr := buf.RoundUp(m.Addr, s.pageSize)
	id, err := s.metas.Mint(index.Meta{Pages: pages, Start: addr})
	if err != nil {
		_ = sysmem.Unmap(m)
		return Span{}, err
	}
	s.idx.Commit(slot, addr, id)
	span := Span{ID: id, Addr: addr, Pages: pages}
	s.mapped = append(s.mapped, mapped{m: m, span: span})

	s.stats.Spans++
	s.stats.Pages += pages
	s.stats.BytesMapped += m.Size
	diag.Debug("span acquired", "id", id, "addr", addr, "pages", pages)

	return span, nil
}

// Release unregisters and unmaps every span obtained so far. The source and
// every address it handed out are unusable afterwards.
func (s *Source) Release() error {
	var errs []error
	for _, mp := range s.mapped {
		s.idx.Unregister(mp.span.Addr, mp.span.Pages)
		if err := sysmem.Unmap(mp.m); err != nil {
			errs = append(errs, err)
		}
	}
	s.mapped = nil
	return errors.Join(errs...)
}

// Spans returns every span obtained so far, in acquisition order.
func (s *Source) Spans() []Span {
	out := make([]Span, len(s.mapped))
	for i, mp := range s.mapped {
		out[i] = mp.span
	}
	return out
}

// Stats returns a snapshot of the source counters.
func (s *Source) Stats() Stats { return s.stats }
