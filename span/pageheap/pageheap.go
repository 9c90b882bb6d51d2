// Package pageheap is the central page heap: free whole spans, bucketed by
// exact page count, serving large allocations and backing small-object spans.
//
// A free span is linked into its bucket through its own first word, so the heap
// keeps no per-span bookkeeping of its own. Spans are never split and never
// merged: a request for N pages is served only by a free N-page span or by a
// fresh span of exactly N pages from the page source.
package pageheap

import (
	"fmt"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/internal/diag"
	"github.com/joshuapare/spanalloc/internal/rawmem"
	"github.com/joshuapare/spanalloc/span/pagesource"
)

// Stats holds page heap counters.
type Stats struct {
	Hits      int // allocations served from a bucket
	Misses    int // allocations that needed a fresh span
	Releases  int
	FreeSpans int
	FreePages uintptr
}

// Heap is the central page heap. It is not safe for concurrent use.
type Heap struct {
	src      *pagesource.Source
	pageSize uintptr

	// buckets[n] heads the list of free n-page spans; 0 ends a list.
	buckets []uintptr
	counts  []int

	stats Stats
}

// New creates a page heap drawing fresh spans from src.
func New(src *pagesource.Source) *Heap {
	return &Heap{
		src:      src,
		pageSize: src.PageSize(),
		buckets:  make([]uintptr, 256),
		counts:   make([]int, 256),
	}
}

// Source returns the page source behind the heap.
func (h *Heap) Source() *pagesource.Source { return h.src }

// PagesFor returns the number of pages needed to hold size bytes.
func (h *Heap) PagesFor(size uintptr) uintptr {
	return buf.DivCeil(size, h.pageSize)
}

// AllocateLarge returns the address of a span able to hold size bytes.
func (h *Heap) AllocateLarge(size uintptr) (uintptr, error) {
	if size == 0 {
		return 0, fmt.Errorf("pageheap: zero-byte allocation")
	}
	return h.AllocatePages(h.PagesFor(size))
}

// AllocatePages returns the address of a span of exactly pages pages, reusing
// a free one when the bucket is non-empty.
func (h *Heap) AllocatePages(pages uintptr) (uintptr, error) {
	if pages < uintptr(len(h.buckets)) {
		if head := h.buckets[pages]; head != 0 {
			h.buckets[pages] = rawmem.Load(head)
			h.counts[pages]--
			h.stats.Hits++
			h.stats.FreeSpans--
			h.stats.FreePages -= pages
			diag.Debug("page heap hit", "pages", pages, "addr", head)
			return head, nil
		}
	}

	span, err := h.src.AcquireSpan(pages)
	if err != nil {
		return 0, err
	}
	h.stats.Misses++
	return span.Addr, nil
}

// ReleaseLarge pushes the span starting at addr onto the bucket for pages.
func (h *Heap) ReleaseLarge(addr, pages uintptr) {
	// Adjacent free spans are not coalesced; a span keeps its page count for life.
	h.grow(pages)
	rawmem.Store(addr, h.buckets[pages])
	h.buckets[pages] = addr
	h.counts[pages]++
	h.stats.Releases++
	h.stats.FreeSpans++
	h.stats.FreePages += pages
}

// Contains reports whether the span at addr is already on the free list for pages.
func (h *Heap) Contains(addr, pages uintptr) bool {
	found := false
	h.Each(pages, func(p uintptr) bool {
		found = p == addr
		return !found
	})
	return found
}

// FreeSpans returns how many free spans of exactly pages pages are held.
func (h *Heap) FreeSpans(pages uintptr) int {
	if pages >= uintptr(len(h.counts)) {
		return 0
	}
	return h.counts[pages]
}

// BucketCount returns the number of buckets; every span on the heap has fewer
// pages than this.
func (h *Heap) BucketCount() int { return len(h.buckets) }

// Each calls fn for every free span of exactly pages pages, most recently
// released first, until fn returns false.
func (h *Heap) Each(pages uintptr, fn func(addr uintptr) bool) {
	if pages >= uintptr(len(h.buckets)) {
		return
	}
	for p := h.buckets[pages]; p != 0; p = rawmem.Load(p) {
		if !fn(p) {
			return
		}
	}
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats { return h.stats }

func (h *Heap) grow(pages uintptr) {
	if pages < uintptr(len(h.buckets)) {
		return
	}
	n := max(pages+1, uintptr(2*len(h.buckets)))
	buckets := make([]uintptr, n)
	copy(buckets, h.buckets)
	counts := make([]int, n)
	copy(counts, h.counts)
	h.buckets, h.counts = buckets, counts
}
