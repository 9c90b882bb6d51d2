package alloc

import (
	"sync"
	"unsafe"

	"github.com/joshuapare/spanalloc/internal/diag"
)

var (
	defaultOnce sync.Once
	defaultA    *Allocator
)

// Default returns the process-wide allocator, creating it on first use from
// the SPANALLOC_* environment. Malformed variables are logged and ignored.
func Default() *Allocator {
	defaultOnce.Do(func() {
		diag.InitFromEnv()
		opts, err := OptionsFromEnv()
		if err != nil {
			diag.Warn("ignoring allocator environment", "err", err)
			opts = nil
		}
		a, err := New(opts...)
		if err != nil {
			diag.Warn("ignoring allocator environment", "err", err)
			a, _ = New()
		}
		defaultA = a
	})
	return defaultA
}

// Malloc allocates from the default allocator.
func Malloc(size uintptr) uintptr { return Default().Malloc(size) }

// Free releases a block of the default allocator.
func Free(p uintptr) { Default().Free(p) }

// Calloc allocates zeroed memory from the default allocator.
func Calloc(count, size uintptr) uintptr { return Default().Calloc(count, size) }

// Realloc resizes a block of the default allocator.
func Realloc(p, size uintptr) uintptr { return Default().Realloc(p, size) }

// UnsafeMalloc is Malloc on the default allocator returning an unsafe.Pointer.
func UnsafeMalloc(size uintptr) unsafe.Pointer { return Default().UnsafeMalloc(size) }

// UnsafeFree is Free on the default allocator.
func UnsafeFree(p unsafe.Pointer) { Default().UnsafeFree(p) }
