// Package rawmem provides typed views over memory that lives outside the Go heap.
//
// Every address handed to this package must point into a mapping obtained from
// internal/sysmem. The garbage collector never scans or moves that memory, so
// converting an address to a pointer here is sound as long as the mapping is alive.
//
// Word views (Load, Store) are how the span packages read and write intrusive
// free-list links and span headers. They must only be used on memory that the
// allocator owns at that moment: a free block, or a span header. Client-owned
// blocks are only ever touched through Bytes, Zero and Copy on behalf of the client.
package rawmem

import "unsafe"

// WordSize is the size of one machine word, the unit of free-list links and header fields.
const WordSize = unsafe.Sizeof(uintptr(0))

// Load reads the machine word stored at addr.
//
//go:nocheckptr
func Load(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// Store writes v as a machine word at addr.
//
//go:nocheckptr
func Store(addr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

// Pointer converts addr to an unsafe.Pointer.
//
//go:nocheckptr
func Pointer(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

// Bytes returns a slice aliasing n bytes at addr. A zero addr yields nil.
//
//go:nocheckptr
func Bytes(addr, n uintptr) []byte {
	if addr == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Zero clears n bytes starting at addr.
func Zero(addr, n uintptr) {
	clear(Bytes(addr, n))
}

// Copy copies n bytes from src to dst. The regions may overlap.
func Copy(dst, src, n uintptr) {
	if n == 0 {
		return
	}
	copy(Bytes(dst, n), Bytes(src, n))
}
