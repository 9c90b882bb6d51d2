// Package sysmem acquires and releases anonymous, process-private memory from the OS.
//
// Memory returned by Map is zero-filled, readable and writable, and lives outside
// the Go heap: the garbage collector never scans it, so it may hold raw addresses.
package sysmem

import "errors"

// ErrUnsupported is returned on platforms without an anonymous mapping primitive.
var ErrUnsupported = errors.New("sysmem: anonymous mappings not supported on this platform")

// Mapping is one region obtained from Map.
type Mapping struct {
	Addr uintptr
	Size uintptr

	// platform handle needed to release the region (the mapped slice on unix).
	data []byte
}

// PageSize returns the OS page size.
func PageSize() uintptr {
	return uintptr(pageSize())
}
