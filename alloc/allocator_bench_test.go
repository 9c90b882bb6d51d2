package alloc

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

func BenchmarkMallocFreeSmall(b *testing.B) {
	for _, size := range []uintptr{8, 64, 512, 2048} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			a := newTestAllocator(b, WithoutLocking())
			b.ReportAllocs()
			for range b.N {
				a.Free(a.Malloc(size))
			}
		})
	}
}

func BenchmarkMallocFreeLarge(b *testing.B) {
	a := newTestAllocator(b, WithoutLocking())
	size := 4 * a.PageSize()
	b.ReportAllocs()
	for range b.N {
		a.Free(a.Malloc(size))
	}
}

func BenchmarkMallocFreeLocked(b *testing.B) {
	a := newTestAllocator(b)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a.Free(a.Malloc(64))
		}
	})
}

// BenchmarkMixed keeps a window of live blocks of random sizes.
func BenchmarkMixed(b *testing.B) {
	for _, kind := range []IndexKind{IndexRadix, IndexLinear} {
		b.Run(string(kind), func(b *testing.B) {
			a := newTestAllocator(b, WithIndex(kind), WithoutLocking())
			rng := rand.New(rand.NewPCG(1, 2))
			live := make([]uintptr, 256)
			for range b.N {
				i := rng.IntN(len(live))
				a.Free(live[i])
				live[i] = a.Malloc(uintptr(rng.IntN(16384) + 1))
			}
			b.StopTimer()
			for _, p := range live {
				a.Free(p)
			}
		})
	}
}
