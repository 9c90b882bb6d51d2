package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrBadOption indicates an option value the allocator cannot work with.
	ErrBadOption = errors.New("alloc: invalid option")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator is closed")
)

// FatalError describes an invariant violation detected by an entry point.
// Operation cannot continue once one is raised: if the fatal handler returns,
// the entry point panics with the *FatalError.
type FatalError struct {
	Op   string  // entry point: "free", "realloc", ...
	Addr uintptr // offending address
	Err  error   // violated condition, e.g. central.ErrUnknownAddress
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s %#x: %v", e.Op, e.Addr, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
