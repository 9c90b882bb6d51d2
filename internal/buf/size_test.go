package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxUint, 1); ok {
		t.Fatalf("expected overflow when adding to MaxUint")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	tests := []struct {
		a, b uintptr
		want uintptr
		ok   bool
	}{
		{0, 100, 0, true},
		{100, 0, 0, true},
		{7, 6, 42, true},
		{math.MaxUint, 1, math.MaxUint, true},
		{math.MaxUint / 2, 3, 0, false},
	}
	for _, tt := range tests {
		got, ok := MulOverflowSafe(tt.a, tt.b)
		if ok != tt.ok || got != tt.want {
			t.Errorf("MulOverflowSafe(%d,%d)=%d,%v want %d,%v", tt.a, tt.b, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDivCeil(t *testing.T) {
	if got := DivCeil(4097, 4096); got != 2 {
		t.Fatalf("DivCeil(4097,4096)=%d want 2", got)
	}
	if got := DivCeil(4096, 4096); got != 1 {
		t.Fatalf("DivCeil(4096,4096)=%d want 1", got)
	}
	if got := DivCeil(0, 4096); got != 0 {
		t.Fatalf("DivCeil(0,4096)=%d want 0", got)
	}
}

func TestRoundDownAndPowerOfTwo(t *testing.T) {
	if got := RoundUp(0x12001, 0x1000); got != 0x13000 {
		t.Fatalf("RoundUp=%#x want 0x13000", got)
	}
	if got := RoundUp(0x12000, 0x1000); got != 0x12000 {
		t.Fatalf("RoundUp aligned=%#x want 0x12000", got)
	}
	if got := RoundDown(0x12345, 0x1000); got != 0x12000 {
		t.Fatalf("RoundDown=%#x want 0x12000", got)
	}
	if !IsPowerOfTwo(4096) || IsPowerOfTwo(0) || IsPowerOfTwo(12288) {
		t.Fatalf("IsPowerOfTwo misclassified")
	}
}

func TestCheckRange(t *testing.T) {
	if end, err := CheckRange(0x1000, 0x2000, 0x1800, 0x100); err != nil || end != 0x1900 {
		t.Fatalf("CheckRange valid: end=%#x err=%v", end, err)
	}
	if _, err := CheckRange(0x1000, 0x2000, 0x2f00, 0x200); err == nil {
		t.Fatalf("CheckRange should reject range past limit")
	}
	if _, err := CheckRange(0x1000, 0x2000, 0x800, 0x10); err == nil {
		t.Fatalf("CheckRange should reject start below base")
	}
	if _, err := CheckRange(0x1000, 0x2000, math.MaxUint-1, 4); err == nil {
		t.Fatalf("CheckRange should reject overflow")
	}
}
