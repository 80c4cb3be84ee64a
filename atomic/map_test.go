package atomic_test

import (
	"testing"

	vatm "github.com/sabouaram/vsock/atomic"
)

func TestMapTypedLoadStoreDelete(t *testing.T) {
	m := vatm.NewMapTyped[string, int]()

	if _, ok := m.Load("a"); ok {
		t.Fatal("Load on an empty map should miss")
	}

	m.Store("a", 1)
	got, ok := m.Load("a")
	if !ok || got != 1 {
		t.Fatalf("Load(a) = %d, %v, want 1, true", got, ok)
	}

	m.Delete("a")
	if _, ok := m.Load("a"); ok {
		t.Fatal("Load after Delete should miss")
	}
}

func TestMapTypedRange(t *testing.T) {
	m := vatm.NewMapTyped[int, string]()
	m.Store(1, "one")
	m.Store(2, "two")
	m.Store(3, "three")

	seen := map[int]string{}
	m.Range(func(k int, v string) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 3 || seen[1] != "one" || seen[2] != "two" || seen[3] != "three" {
		t.Fatalf("Range visited %v, want all three entries", seen)
	}

	count := 0
	m.Range(func(k int, v string) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Range should stop after f returns false once, visited %d", count)
	}
}
