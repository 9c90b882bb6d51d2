//go:build windows

package sysmem

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func pageSize() int { return os.Getpagesize() }

// Map reserves and commits size bytes of fresh memory, rounded up to whole pages.
func Map(size uintptr) (Mapping, error) {
	if size == 0 {
		return Mapping{}, fmt.Errorf("sysmem: zero-length mapping")
	}
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return Mapping{}, fmt.Errorf("sysmem: VirtualAlloc %d bytes: %w", size, err)
	}
	return Mapping{Addr: addr, Size: size}, nil
}

// Unmap releases a mapping obtained from Map.
func Unmap(m Mapping) error {
	if m.Addr == 0 {
		return nil
	}
	return windows.VirtualFree(m.Addr, 0, windows.MEM_RELEASE)
}
