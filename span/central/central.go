// Package central holds the per-size-class free lists of small objects and
// carves page-heap spans into objects when a list runs dry.
//
// A small-object span starts with a Header naming the class of every object in
// it. Objects follow the header back to back, classSize bytes apart. A free
// object stores the address of the next free object of its class in its first
// word; 0 ends the list.
//
//	span start                                              span end
//	| Header | obj 0 | obj 1 | obj 2 | ...          | obj n-1 | slack |
//
// Freed objects go back to their class list only. Spans are never returned to
// the page heap, even when every object in them is free.
package central

import (
	"errors"
	"fmt"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/internal/diag"
	"github.com/joshuapare/spanalloc/internal/rawmem"
	"github.com/joshuapare/spanalloc/span/index"
	"github.com/joshuapare/spanalloc/span/pageheap"
	"github.com/joshuapare/spanalloc/span/sizeclass"
)

// HeaderSize is the number of bytes the Header occupies at the start of a span.
const HeaderSize = 2 * rawmem.WordSize

var (
	// ErrNotSmall indicates a size that has no small-object class.
	ErrNotSmall = errors.New("central: size is not a small-object size")

	// ErrUnknownAddress indicates an address that belongs to no registered span.
	ErrUnknownAddress = errors.New("central: address not owned by any span")

	// ErrBadHeader indicates a small-object span header that fails validation.
	ErrBadHeader = errors.New("central: invalid span header")

	// ErrMisaligned indicates an address that is not the start of an object.
	ErrMisaligned = errors.New("central: address is not an object boundary")

	// ErrDoubleFree indicates an object that is already on its free list.
	ErrDoubleFree = errors.New("central: object already free")
)

// Header is the first two words of every small-object span.
type Header struct {
	Class     uintptr
	ClassSize uintptr
}

// ReadHeader reads the header of the span starting at addr.
func ReadHeader(addr uintptr) Header {
	return Header{
		Class:     rawmem.Load(addr),
		ClassSize: rawmem.Load(addr + rawmem.WordSize),
	}
}

func writeHeader(addr uintptr, h Header) {
	rawmem.Store(addr, h.Class)
	rawmem.Store(addr+rawmem.WordSize, h.ClassSize)
}

// Stats holds small-object counters.
type Stats struct {
	FastPath    int // allocations popped from a list
	SlowPath    int // allocations that carved a new span
	SpansCarved int
	Releases    int
	FreeObjects int
}

// Lists is the set of central free lists. It is not safe for concurrent use.
type Lists struct {
	heap     *pageheap.Heap
	catalog  *sizeclass.Catalog
	idx      index.Index
	metas    *index.MetaTable
	pageSize uintptr

	heads  []uintptr
	counts []int
	checks bool

	stats Stats
}

// New creates empty lists for every class of catalog, carving spans from heap.
func New(heap *pageheap.Heap, catalog *sizeclass.Catalog) *Lists {
	src := heap.Source()
	return &Lists{
		heap:     heap,
		catalog:  catalog,
		idx:      src.Index(),
		metas:    src.Metas(),
		pageSize: src.PageSize(),
		heads:    make([]uintptr, catalog.NumClasses()),
		counts:   make([]int, catalog.NumClasses()),
	}
}

// SetChecks turns on misuse detection on release: object alignment and list
// membership are verified before an object is pushed. Membership is a walk of
// the class list, so this is meant for debugging.
func (l *Lists) SetChecks(on bool) { l.checks = on }

// AllocateSmall returns an object of the class serving size.
func (l *Lists) AllocateSmall(size uintptr) (uintptr, error) {
	class := l.catalog.ClassForSize(size)
	if class < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNotSmall, size)
	}
	classSize := l.catalog.ClassSizeForSize(size)

	if head := l.heads[class]; head != 0 {
		l.heads[class] = rawmem.Load(head)
		l.counts[class]--
		l.stats.FastPath++
		l.stats.FreeObjects--
		return head, nil
	}

	pages := l.catalog.SpanPagesForClassSize(classSize, l.pageSize)
	span, err := l.heap.AllocatePages(pages)
	if err != nil {
		return 0, err
	}
	id, ok := l.idx.Lookup(span)
	if !ok {
		return 0, fmt.Errorf("%w: fresh span", ErrUnknownAddress)
	}
	meta := l.metas.Get(id)
	meta.Small = true

	l.stats.SlowPath++
	l.stats.SpansCarved++
	return l.carve(span, meta.Pages*l.pageSize, class, classSize), nil
}

// carve writes the span header, threads every object but the first onto the
// class list, and returns the first object.
func (l *Lists) carve(span, spanBytes uintptr, class int, classSize uintptr) uintptr {
	writeHeader(span, Header{Class: uintptr(class), ClassSize: classSize})

	first := span + HeaderSize
	end := span + spanBytes

	it := first + classSize
	if it+classSize > end {
		return first
	}
	l.heads[class] = it
	n := 1
	for it+2*classSize <= end {
		rawmem.Store(it, it+classSize)
		it += classSize
		n++
	}
	// The span may come from the page heap and hold stale bytes.
	rawmem.Store(it, 0)

	l.counts[class] += n
	l.stats.FreeObjects += n
	diag.Debug("span carved", "class", class, "class_size", classSize, "addr", span, "objects", n+1)
	return first
}

// SpanHeader locates the span containing ptr and returns its validated header
// and first address.
func (l *Lists) SpanHeader(ptr uintptr) (Header, uintptr, error) {
	first, ok := l.idx.FirstPage(buf.RoundDown(ptr, l.pageSize))
	if !ok {
		return Header{}, 0, fmt.Errorf("%w: %#x", ErrUnknownAddress, ptr)
	}
	h := ReadHeader(first)
	if err := l.validate(h); err != nil {
		return Header{}, 0, err
	}
	return h, first, nil
}

func (l *Lists) validate(h Header) error {
	switch {
	case h.Class == 0 && h.ClassSize != l.catalog.UnitSize():
		return fmt.Errorf("%w: class 0 with size %d", ErrBadHeader, h.ClassSize)
	case h.Class >= uintptr(l.catalog.NumClasses()):
		return fmt.Errorf("%w: class %d out of range", ErrBadHeader, h.Class)
	case h.ClassSize != l.catalog.ClassSize(int(h.Class)):
		return fmt.Errorf("%w: class %d with size %d", ErrBadHeader, h.Class, h.ClassSize)
	}
	return nil
}

// ReleaseSmall pushes ptr onto the free list of its span's class.
//
// ErrUnknownAddress and ErrBadHeader mean the tables or the span are corrupt;
// callers must treat them as fatal.
func (l *Lists) ReleaseSmall(ptr uintptr) error {
	h, first, err := l.SpanHeader(ptr)
	if err != nil {
		return err
	}
	class := int(h.Class)

	if l.checks {
		if ptr < first+HeaderSize || (ptr-first-HeaderSize)%h.ClassSize != 0 {
			return fmt.Errorf("%w: %#x in class %d", ErrMisaligned, ptr, class)
		}
		if l.Contains(class, ptr) {
			return fmt.Errorf("%w: %#x in class %d", ErrDoubleFree, ptr, class)
		}
	}

	rawmem.Store(ptr, l.heads[class])
	l.heads[class] = ptr
	l.counts[class]++
	l.stats.Releases++
	l.stats.FreeObjects++
	return nil
}

// ClassSizeOf returns the class size of the object at ptr.
func (l *Lists) ClassSizeOf(ptr uintptr) (uintptr, error) {
	h, _, err := l.SpanHeader(ptr)
	if err != nil {
		return 0, err
	}
	return h.ClassSize, nil
}

// Contains reports whether ptr is on the free list of class.
func (l *Lists) Contains(class int, ptr uintptr) bool {
	found := false
	l.Each(class, func(p uintptr) bool {
		found = p == ptr
		return !found
	})
	return found
}

// Each calls fn for every object on the free list of class, head first, until
// fn returns false.
func (l *Lists) Each(class int, fn func(ptr uintptr) bool) {
	if class < 0 || class >= len(l.heads) {
		return
	}
	for p := l.heads[class]; p != 0; p = rawmem.Load(p) {
		if !fn(p) {
			return
		}
	}
}

// FreeObjects returns the number of objects on the free list of class.
func (l *Lists) FreeObjects(class int) int {
	if class < 0 || class >= len(l.counts) {
		return 0
	}
	return l.counts[class]
}

// Catalog returns the size-class catalog the lists serve.
func (l *Lists) Catalog() *sizeclass.Catalog { return l.catalog }

// Stats returns a snapshot of the counters.
func (l *Lists) Stats() Stats { return l.stats }
