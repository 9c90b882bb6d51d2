package alloc

import (
	"unsafe"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/internal/rawmem"
)

// Fallback is the secondary allocator used once an Allocator enters fallback
// mode. Implementations follow the same contract as the Allocator entry
// points: size 0 and exhaustion return 0, Free(0) is a no-op.
//
// Calls are serialised by the Allocator unless it was built WithoutLocking.
type Fallback interface {
	Malloc(size uintptr) uintptr
	Free(p uintptr)
	Calloc(count, size uintptr) uintptr
	Realloc(p, size uintptr) uintptr
}

// GoHeap is a Fallback that serves blocks from the Go heap. Each block is a
// word slice pinned in a map until it is freed, so the garbage collector
// neither reclaims nor moves it.
type GoHeap struct {
	blocks map[uintptr][]uintptr
}

// NewGoHeap creates an empty GoHeap.
func NewGoHeap() *GoHeap {
	return &GoHeap{blocks: make(map[uintptr][]uintptr)}
}

// Malloc implements Fallback.
func (g *GoHeap) Malloc(size uintptr) uintptr {
	if size == 0 {
		return 0
	}
	words := buf.DivCeil(size, rawmem.WordSize)
	if words > uintptr(maxInt)/rawmem.WordSize {
		return 0
	}
	b := make([]uintptr, words)
	p := uintptr(unsafe.Pointer(&b[0]))
	g.blocks[p] = b
	return p
}

// Free implements Fallback. Addresses it did not hand out are ignored.
func (g *GoHeap) Free(p uintptr) {
	delete(g.blocks, p)
}

// Calloc implements Fallback. Go heap memory is always zeroed.
func (g *GoHeap) Calloc(count, size uintptr) uintptr {
	n, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return 0
	}
	return g.Malloc(n)
}

// Realloc implements Fallback.
func (g *GoHeap) Realloc(p, size uintptr) uintptr {
	if p == 0 {
		return g.Malloc(size)
	}
	if size == 0 {
		g.Free(p)
		return 0
	}
	old, ok := g.blocks[p]
	if !ok {
		return 0
	}
	q := g.Malloc(size)
	if q == 0 {
		return 0
	}
	rawmem.Copy(q, p, min(uintptr(len(old))*rawmem.WordSize, size))
	g.Free(p)
	return q
}

// UsableSize returns the usable size of a block handed out by g, or 0.
func (g *GoHeap) UsableSize(p uintptr) uintptr {
	return uintptr(len(g.blocks[p])) * rawmem.WordSize
}

// Len returns the number of live blocks.
func (g *GoHeap) Len() int { return len(g.blocks) }

const maxInt = int(^uint(0) >> 1)
