//go:build unix

package sysmem

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func pageSize() int { return unix.Getpagesize() }

// Map maps size bytes of fresh anonymous memory. The kernel rounds size up to whole pages.
func Map(size uintptr) (Mapping, error) {
	if size == 0 {
		return Mapping{}, fmt.Errorf("sysmem: zero-length mapping")
	}
	if size > uintptr(^uint(0)>>1) {
		return Mapping{}, fmt.Errorf("sysmem: mapping too large (%d bytes)", size)
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Mapping{}, fmt.Errorf("sysmem: mmap %d bytes: %w", size, err)
	}
	return Mapping{
		Addr: uintptr(unsafe.Pointer(&data[0])),
		Size: size,
		data: data,
	}, nil
}

// Unmap releases a mapping obtained from Map.
func Unmap(m Mapping) error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
