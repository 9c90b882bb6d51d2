package alloc

import (
	"fmt"
	"testing"
)

// The Compare benchmarks run each workload against the allocator and against
// the Go heap, named Benchmark<Op>/<impl>/<size> for scripts/benchmark_parser.go.

var (
	compareSizes = []uintptr{16, 256, 2048, 16 << 10, 256 << 10}
	sink         []byte
)

func BenchmarkCompareMallocFree(b *testing.B) {
	for _, size := range compareSizes {
		name := fmt.Sprintf("%dB", size)
		b.Run("spanalloc/"+name, func(b *testing.B) {
			a := newTestAllocator(b, WithoutLocking())
			b.ReportAllocs()
			for range b.N {
				p := a.Malloc(size)
				a.Bytes(p, 1)[0] = 1
				a.Free(p)
			}
		})
		b.Run("goheap/"+name, func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				sink = make([]byte, size)
				sink[0] = 1
			}
		})
	}
}

func BenchmarkCompareGrow(b *testing.B) {
	const steps = 8
	for _, size := range compareSizes {
		name := fmt.Sprintf("%dB", size)
		b.Run("spanalloc/"+name, func(b *testing.B) {
			a := newTestAllocator(b, WithoutLocking())
			b.ReportAllocs()
			for range b.N {
				p := a.Malloc(size)
				for i := uintptr(2); i <= steps; i++ {
					p = a.Realloc(p, size*i)
				}
				a.Free(p)
			}
		})
		b.Run("goheap/"+name, func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				buf := make([]byte, size)
				for i := uintptr(2); i <= steps; i++ {
					next := make([]byte, size*i)
					copy(next, buf)
					buf = next
				}
				sink = buf
			}
		})
	}
}
