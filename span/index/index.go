package index

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxPages is the default page budget: 4 GiB of address space at 4 KiB pages.
const DefaultMaxPages = 4 * 256 * 1024

var (
	// ErrFull indicates that registering more pages would exceed the index capacity.
	ErrFull = errors.New("index: page capacity exhausted")

	// ErrSpanIDsExhausted indicates that no span identifier is left to mint.
	ErrSpanIDsExhausted = errors.New("index: span identifiers exhausted")

	// ErrBadPageSize indicates a page size that is zero or not a power of two.
	ErrBadPageSize = errors.New("index: page size must be a power of two")
)

// SpanID identifies a span. Zero marks an unused slot; live spans are positive.
type SpanID uint32

// MaxSpanID is the largest identifier MetaTable will mint.
const MaxSpanID = SpanID(math.MaxUint32)

// Slot is a capacity reservation returned by Reserve and consumed by Commit.
type Slot struct {
	pos   int // first table entry, -1 for the radix index
	pages uintptr
}

// Pages returns the number of pages reserved.
func (s Slot) Pages() uintptr { return s.pages }

// Index maps page-aligned addresses to span identifiers.
type Index interface {
	// Reserve checks that pages more pages fit and picks where they will go.
	// Nothing is registered until Commit.
	Reserve(pages uintptr) (Slot, error)

	// Commit registers the reserved pages, starting at addr, under id.
	Commit(slot Slot, addr uintptr, id SpanID)

	// Unregister removes pages registered at addr.
	Unregister(addr, pages uintptr)

	// Lookup returns the span registered for a page-aligned address.
	Lookup(page uintptr) (SpanID, bool)

	// FirstPage returns the first page of the span containing page.
	FirstPage(page uintptr) (uintptr, bool)

	// Len returns the number of registered pages.
	Len() uintptr

	// Cap returns the page budget.
	Cap() uintptr
}

// Kind selects an Index implementation.
type Kind string

const (
	KindRadix  Kind = "radix"
	KindLinear Kind = "linear"
)

// New creates an index of the given kind.
func New(kind Kind, pageSize, maxPages uintptr) (Index, error) {
	switch kind {
	case KindRadix, "":
		return NewRadix(pageSize, maxPages)
	case KindLinear:
		return NewTable(pageSize, maxPages)
	}
	return nil, fmt.Errorf("index: unknown kind %q", kind)
}

func checkPageSize(pageSize uintptr) error {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("%w: %d", ErrBadPageSize, pageSize)
	}
	return nil
}
