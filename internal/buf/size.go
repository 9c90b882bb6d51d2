// Package buf contains overflow-checked size arithmetic shared by the span packages.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uintptr.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a > math.MaxUint-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uintptr.
// This is what calloc-style count * elementSize computations go through.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint/b {
		return 0, false
	}
	return a * b, true
}

// DivCeil returns ceil(n/d). d must be non-zero.
func DivCeil(n, d uintptr) uintptr {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}

// RoundDown rounds addr down to a multiple of align. align must be a power of two.
func RoundDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// CheckRange validates that n bytes starting at off fit inside [base, base+size).
// Returns the end address if valid, or an error describing the failure.
//
//	end, err := buf.CheckRange(span.Addr, span.Bytes(), p, n)
//	if err != nil {
//	    return fmt.Errorf("copy: %w", err)
//	}
func CheckRange(base, size, off, n uintptr) (uintptr, error) {
	if off < base {
		return 0, fmt.Errorf("bounds: start %#x below base %#x", off, base)
	}
	limit, ok := AddOverflowSafe(base, size)
	if !ok {
		return 0, fmt.Errorf("overflow: base=%#x + size=%d", base, size)
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok {
		return 0, fmt.Errorf("overflow: off=%#x + n=%d", off, n)
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=%#x > limit=%#x", end, limit)
	}
	return end, nil
}

// RoundUp rounds addr up to a multiple of align. align must be a power of two.
func RoundUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
