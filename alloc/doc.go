// Package alloc is a span-based, size-class pooling memory allocator over
// OS-mapped pages.
//
// # Overview
//
// Memory handed out by an Allocator lives outside the Go heap. It is obtained
// from the OS in whole pages, grouped into spans, and never scanned or moved by
// the garbage collector. Blocks are identified by their address (uintptr); use
// Bytes or the Unsafe* entry points to reach the memory itself.
//
//	a, err := alloc.New()
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	p := a.Malloc(100)
//	b := a.Bytes(p, 100)
//	copy(b, "hello")
//	a.Free(p)
//
// # Small and Large Blocks
//
// Requests up to the catalog threshold (2048 bytes with the default size
// classes) are rounded up to a size class and served from per-class free lists.
// A class list that runs dry takes a span from the page heap, writes a two-word
// header at its start, and carves the rest into objects.
//
// Larger requests are rounded up to whole pages and served from the page heap,
// which keeps freed spans in buckets by exact page count. Adjacent free spans
// are never coalesced and no span is returned to the OS before Close.
//
// # Errors
//
// Running out of address space or page budget is not fatal: Malloc, Calloc and
// Realloc return 0. Releasing an address the allocator does not own, or one
// whose span header is corrupt, is fatal: the default handler writes one line
// to stderr and exits with status 1. See WithFatalHandler.
//
// # Concurrency
//
// Every entry point takes a single mutex. WithoutLocking removes it for
// callers that use an Allocator from one goroutine.
//
// # Consistency Checks
//
// Verify walks the spans, the page heap and the free lists and returns the
// inconsistencies it finds as span/verify ValidationErrors. Its cost grows
// with the number of free objects, so it is meant for tests and tools.
//
// # Fallback Mode
//
// EnterFallback switches the allocator to a secondary allocator (GoHeap by
// default, Libc when built with cgo). Blocks already handed out by the
// allocator can still be released after the switch.
package alloc
