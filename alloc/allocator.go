package alloc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/internal/diag"
	"github.com/joshuapare/spanalloc/internal/rawmem"
	"github.com/joshuapare/spanalloc/span/central"
	"github.com/joshuapare/spanalloc/span/index"
	"github.com/joshuapare/spanalloc/span/pageheap"
	"github.com/joshuapare/spanalloc/span/pagesource"
	"github.com/joshuapare/spanalloc/span/sizeclass"
	"github.com/joshuapare/spanalloc/span/verify"
)

// Allocator is a span-based pooling allocator. The zero value is not usable;
// create one with New.
type Allocator struct {
	mu   sync.Mutex
	opts Options
	log  *slog.Logger

	state   State
	initErr error

	catalog *sizeclass.Catalog
	idx     index.Index
	metas   *index.MetaTable
	src     *pagesource.Source
	heap    *pageheap.Heap
	small   *central.Lists

	counters counters
}

// New validates opts and returns an uninitialized allocator. Pages are not
// touched until the first entry point is called.
func New(opts ...Option) (*Allocator, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	cat, err := o.validate()
	if err != nil {
		return nil, err
	}
	if o.Fallback == nil {
		o.Fallback = NewGoHeap()
	}
	return &Allocator{opts: *o, log: o.Logger, catalog: cat}, nil
}

func (a *Allocator) lock() {
	if !a.opts.Unlocked {
		a.mu.Lock()
	}
}

func (a *Allocator) unlock() {
	if !a.opts.Unlocked {
		a.mu.Unlock()
	}
}

func (a *Allocator) logger() *slog.Logger {
	if a.log != nil {
		return a.log
	}
	return diag.L
}

// ensure performs the one-time initialization. It reports whether the engine
// is usable.
func (a *Allocator) ensure() bool {
	if a.state != StateUninitialized {
		return a.small != nil
	}
	a.state = StateInitialized

	idx, err := index.New(a.opts.Index, a.opts.PageSize, a.opts.MaxPages)
	if err != nil {
		a.initErr = err
		a.logger().Error("allocator init failed", "err", err)
		return false
	}
	a.idx = idx
	a.metas = index.NewMetaTable()
	a.src = pagesource.New(a.opts.PageSize, idx, a.metas)
	a.heap = pageheap.New(a.src)
	a.small = central.New(a.heap, a.catalog)
	a.small.SetChecks(a.opts.CheckDoubleFree)

	a.logger().Debug("allocator initialized",
		"page_size", a.opts.PageSize,
		"max_pages", a.opts.MaxPages,
		"index", string(a.opts.Index),
		"classes", a.catalog.NumClasses(),
		"threshold", a.catalog.Threshold())
	return true
}

// fatal reports an invariant violation and never returns.
func (a *Allocator) fatal(op string, p uintptr, err error) {
	fe := &FatalError{Op: op, Addr: p, Err: err}
	if a.opts.FatalHandler != nil {
		a.opts.FatalHandler(fe)
	} else {
		diag.FatalAddr(fmt.Sprintf("%s: %v", op, err), p)
	}
	panic(fe)
}

// Malloc returns the address of a block of at least size bytes, or 0 when size
// is 0 or memory is exhausted. The block is not zeroed.
func (a *Allocator) Malloc(size uintptr) uintptr {
	a.lock()
	defer a.unlock()
	return a.malloc(size)
}

func (a *Allocator) malloc(size uintptr) uintptr {
	a.counters.mallocs++
	if size == 0 {
		return 0
	}
	switch a.state {
	case StateFallback:
		a.counters.fallback++
		return a.opts.Fallback.Malloc(size)
	case StateClosed:
		a.logger().Debug("malloc after close", "size", size)
		return 0
	}
	if !a.ensure() {
		return 0
	}

	var (
		p   uintptr
		err error
	)
	if a.catalog.IsSmall(size) {
		p, err = a.small.AllocateSmall(size)
	} else {
		p, err = a.heap.AllocateLarge(size)
	}
	if err != nil {
		a.counters.failures++
		a.logger().Debug("allocation failed", "size", size, "err", err)
		return 0
	}
	return p
}

// Free releases the block at p. Free(0) is a no-op. Releasing an address the
// allocator does not own is fatal.
func (a *Allocator) Free(p uintptr) {
	a.lock()
	defer a.unlock()
	a.free("free", p)
}

func (a *Allocator) free(op string, p uintptr) {
	if p == 0 {
		return
	}
	a.counters.frees++
	switch a.state {
	case StateClosed:
		a.fatal(op, p, ErrClosed)
	case StateUninitialized:
		// Nothing has been handed out yet.
		a.fatal(op, p, central.ErrUnknownAddress)
	case StateFallback:
		if !a.owns(p) {
			a.counters.fallback++
			a.opts.Fallback.Free(p)
			return
		}
	}
	if a.small == nil {
		a.fatal(op, p, a.initErr)
	}

	first, meta, ok := a.spanOf(p)
	if !ok {
		a.fatal(op, p, central.ErrUnknownAddress)
	}
	if meta.Small {
		if err := a.small.ReleaseSmall(p); err != nil {
			a.fatal(op, p, err)
		}
		return
	}

	if a.opts.CheckDoubleFree {
		if p != first {
			a.fatal(op, p, central.ErrMisaligned)
		}
		if a.heap.Contains(first, meta.Pages) {
			a.fatal(op, p, central.ErrDoubleFree)
		}
	}
	a.heap.ReleaseLarge(first, meta.Pages)
}

// spanOf returns the first page and metadata of the span holding p.
func (a *Allocator) spanOf(p uintptr) (uintptr, *index.Meta, bool) {
	if a.idx == nil {
		return 0, nil, false
	}
	first, ok := a.idx.FirstPage(buf.RoundDown(p, a.opts.PageSize))
	if !ok {
		return 0, nil, false
	}
	id, ok := a.idx.Lookup(first)
	if !ok {
		return 0, nil, false
	}
	return first, a.metas.Get(id), true
}

func (a *Allocator) owns(p uintptr) bool {
	_, _, ok := a.spanOf(p)
	return ok
}

// Calloc returns a zeroed block of count*size bytes, or 0 when the product is
// 0, overflows, or cannot be allocated.
func (a *Allocator) Calloc(count, size uintptr) uintptr {
	a.lock()
	defer a.unlock()

	a.counters.callocs++
	n, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		a.logger().Debug("calloc overflow", "count", count, "size", size)
		return 0
	}
	if a.state == StateFallback {
		a.counters.fallback++
		return a.opts.Fallback.Calloc(count, size)
	}
	p := a.malloc(n)
	if p != 0 {
		rawmem.Zero(p, n)
	}
	return p
}

// Realloc resizes the block at p to size bytes and returns its new address.
//
// Realloc(0, size) is Malloc(size). Realloc(p, 0) frees p and returns 0. When
// the new block cannot be allocated, p is left untouched and 0 is returned.
// The contents are copied up to the smaller of size and the old block's
// usable size; the block always moves.
func (a *Allocator) Realloc(p, size uintptr) uintptr {
	a.lock()
	defer a.unlock()

	a.counters.reallocs++
	if p == 0 {
		return a.malloc(size)
	}
	if size == 0 {
		a.free("realloc", p)
		return 0
	}
	if a.state == StateFallback && !a.owns(p) {
		a.counters.fallback++
		return a.opts.Fallback.Realloc(p, size)
	}

	old := a.usableSize("realloc", p)
	q := a.malloc(size)
	if q == 0 {
		a.logger().Debug("realloc failed, block kept", "addr", p, "size", size)
		return 0
	}
	rawmem.Copy(q, p, min(old, size))
	a.free("realloc", p)
	return q
}

// UsableSize returns how many bytes starting at p belong to the block: the
// class size for small blocks, the rest of the span for large ones.
func (a *Allocator) UsableSize(p uintptr) uintptr {
	if p == 0 {
		return 0
	}
	a.lock()
	defer a.unlock()
	if a.state == StateFallback && !a.owns(p) {
		if g, ok := a.opts.Fallback.(interface{ UsableSize(uintptr) uintptr }); ok {
			return g.UsableSize(p)
		}
		return 0
	}
	return a.usableSize("usable size", p)
}

func (a *Allocator) usableSize(op string, p uintptr) uintptr {
	first, meta, ok := a.spanOf(p)
	if !ok {
		a.fatal(op, p, central.ErrUnknownAddress)
	}
	if meta.Small {
		cs, err := a.small.ClassSizeOf(p)
		if err != nil {
			a.fatal(op, p, err)
		}
		return cs
	}
	return first + meta.Pages*a.opts.PageSize - p
}

// UnsafeMalloc is Malloc returning an unsafe.Pointer.
func (a *Allocator) UnsafeMalloc(size uintptr) unsafe.Pointer {
	return rawmem.Pointer(a.Malloc(size))
}

// UnsafeCalloc is Calloc returning an unsafe.Pointer.
func (a *Allocator) UnsafeCalloc(count, size uintptr) unsafe.Pointer {
	return rawmem.Pointer(a.Calloc(count, size))
}

// UnsafeFree is Free taking an unsafe.Pointer.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) {
	a.Free(uintptr(p))
}

// UnsafeRealloc is Realloc on unsafe.Pointers.
func (a *Allocator) UnsafeRealloc(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	return rawmem.Pointer(a.Realloc(uintptr(p), size))
}

// Bytes returns a slice aliasing n bytes of the block at p. n is clamped to
// the block's usable size. The slice must not be used after the block is freed.
func (a *Allocator) Bytes(p, n uintptr) []byte {
	if p == 0 {
		return nil
	}
	if u := a.UsableSize(p); u != 0 {
		n = min(n, u)
	}
	return rawmem.Bytes(p, n)
}

// EnterFallback routes every later request to the fallback allocator. Blocks
// handed out before the switch can still be released and resized.
func (a *Allocator) EnterFallback() {
	a.lock()
	defer a.unlock()
	if a.state == StateClosed {
		return
	}
	a.logger().Debug("entering fallback mode", "from", a.state.String())
	a.state = StateFallback
}

// State returns the allocator lifecycle state.
func (a *Allocator) State() State {
	a.lock()
	defer a.unlock()
	return a.state
}

// Verify walks the spans, the page heap and the free lists and checks them
// against the span index. It returns nil before the first allocation and in
// fallback mode reports only on blocks handed out before the switch.
func (a *Allocator) Verify() error {
	a.lock()
	defer a.unlock()
	if a.small == nil || a.state == StateClosed {
		return nil
	}
	return verify.AllInvariants(a.src, a.heap, a.small)
}

// PageSize returns the allocation page size.
func (a *Allocator) PageSize() uintptr { return a.opts.PageSize }

// Catalog returns the size-class catalog.
func (a *Allocator) Catalog() *sizeclass.Catalog { return a.catalog }

// Close unmaps every span. Every block handed out becomes invalid and the
// allocator must not be used afterwards.
func (a *Allocator) Close() error {
	a.lock()
	defer a.unlock()
	if a.state == StateClosed {
		return nil
	}
	a.state = StateClosed
	if a.src == nil {
		return nil
	}
	if err := a.src.Release(); err != nil {
		return fmt.Errorf("alloc: close: %w", err)
	}
	return nil
}

// IsFatal reports whether err is an invariant violation raised by an entry point.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
