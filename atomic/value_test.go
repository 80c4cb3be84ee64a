package atomic_test

import (
	"testing"

	vatm "github.com/sabouaram/vsock/atomic"
)

func TestValueLoadStore(t *testing.T) {
	v := vatm.NewValue[int32]()
	if got := v.Load(); got != 0 {
		t.Fatalf("Load on untouched Value = %d, want 0", got)
	}

	v.Store(5)
	if got := v.Load(); got != 5 {
		t.Fatalf("Load after Store = %d, want 5", got)
	}

	v.Store(0)
	if got := v.Load(); got != 0 {
		t.Fatalf("Load after storing zero = %d, want 0", got)
	}
}

func TestValueCompareAndSwap(t *testing.T) {
	v := vatm.NewValue[int32]()

	if !v.CompareAndSwap(0, 1) {
		t.Fatal("CompareAndSwap(0, 1) on untouched Value should succeed")
	}
	if got := v.Load(); got != 1 {
		t.Fatalf("Load = %d, want 1", got)
	}

	if v.CompareAndSwap(0, 2) {
		t.Fatal("CompareAndSwap(0, 2) should fail once the value is 1")
	}
	if !v.CompareAndSwap(1, 2) {
		t.Fatal("CompareAndSwap(1, 2) should succeed")
	}
	if got := v.Load(); got != 2 {
		t.Fatalf("Load = %d, want 2", got)
	}
}

func TestValueCompareAndSwapBool(t *testing.T) {
	owned := vatm.NewValue[bool]()

	if !owned.CompareAndSwap(false, true) {
		t.Fatal("CompareAndSwap(false, true) on untouched bool Value should succeed")
	}
	if !owned.Load() {
		t.Fatal("Load should be true after claiming ownership")
	}
	if owned.CompareAndSwap(false, true) {
		t.Fatal("a second claim should fail while already owned")
	}
}
