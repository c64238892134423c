package hash

import (
	"testing"
)

var item = []byte("0e1f461bbefa6e07cc2ef06b9ee1ed25101e24d4345af266ed2f5a58bcd26c5e")

func TestDeterministic(t *testing.T) {
	for _, typ := range []int{Murmur3, Metro} {
		h1, err := New(typ, 0xdeadbeef)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		h2, err := New(typ, 0xdeadbeef)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if h1.Hash64(item) != h2.Hash64(item) {
			t.Fatalf("hasher type %d is not deterministic for a fixed seed", typ)
		}
	}
}

func TestSeedChangesOutput(t *testing.T) {
	for _, typ := range []int{Murmur3, Metro} {
		h1, _ := New(typ, 1)
		h2, _ := New(typ, 2)

		if h1.Hash64(item) == h2.Hash64(item) {
			t.Fatalf("hasher type %d produced the same digest for two different seeds", typ)
		}
	}
}

func TestUnknownHashType(t *testing.T) {
	if _, err := New(42, 0); err != ErrUnknownHash {
		t.Fatalf("expected ErrUnknownHash, got %v", err)
	}
}

func BenchmarkMurmur3(b *testing.B) {
	h, _ := New(Murmur3, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Hash64(item)
	}
}

func BenchmarkMetro(b *testing.B) {
	h, _ := New(Metro, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Hash64(item)
	}
}
