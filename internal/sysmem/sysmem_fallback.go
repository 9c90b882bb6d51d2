//go:build !unix && !windows

package sysmem

import "os"

func pageSize() int { return os.Getpagesize() }

// Map always fails when no anonymous mapping primitive is available.
func Map(size uintptr) (Mapping, error) {
	return Mapping{}, ErrUnsupported
}

// Unmap is a no-op on unsupported platforms.
func Unmap(m Mapping) error {
	return nil
}
