//go:build cgo

package alloc

/*
#include <stdlib.h>
*/
import "C"

import "github.com/joshuapare/spanalloc/internal/rawmem"

// Libc is a Fallback backed by the C library allocator.
type Libc struct{}

// Malloc implements Fallback.
func (Libc) Malloc(size uintptr) uintptr {
	if size == 0 {
		return 0
	}
	return uintptr(C.malloc(C.size_t(size)))
}

// Free implements Fallback.
func (Libc) Free(p uintptr) {
	if p == 0 {
		return
	}
	C.free(rawmem.Pointer(p))
}

// Calloc implements Fallback.
func (Libc) Calloc(count, size uintptr) uintptr {
	if count == 0 || size == 0 {
		return 0
	}
	return uintptr(C.calloc(C.size_t(count), C.size_t(size)))
}

// Realloc implements Fallback.
func (l Libc) Realloc(p, size uintptr) uintptr {
	if p == 0 {
		return l.Malloc(size)
	}
	if size == 0 {
		l.Free(p)
		return 0
	}
	return uintptr(C.realloc(rawmem.Pointer(p), C.size_t(size)))
}
