package psi

import (
	"errors"
	"testing"
)

// TestCuckooHashExceedsEvictionCeiling forces CuckooHash to fail by
// pigeonhole: bucket_count is 2 for a receiver_size of 1, so no eviction
// chain, however long, can seat 50 distinct items.
func TestCuckooHashExceedsEvictionCeiling(t *testing.T) {
	params, err := NewParams(1, 1, 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	values := make([]uint64, 50)
	for i := range values {
		values[i] = spread(uint64(i))
	}

	if _, err := params.CuckooHash(values); !errors.Is(err, ErrHashingFailure) {
		t.Fatalf("expected ErrHashingFailure, got %v", err)
	}
}

// TestCompleteHashExceedsCapacity forces CompleteHash to overflow a bucket
// by pigeonhole: every item consumes Nhash slots total, so once
// Nhash*len(values) exceeds bucket_count*capacity, some bucket must
// overflow regardless of how the hash functions distribute items.
func TestCompleteHashExceedsCapacity(t *testing.T) {
	params, err := NewParams(4, 4, 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	n := int(params.BucketCount()) * params.SenderBucketCapacity()
	values := make([]uint64, n+1000)
	for i := range values {
		values[i] = spread(uint64(i))
	}

	if _, err := params.CompleteHash(values); !errors.Is(err, ErrHashingFailure) {
		t.Fatalf("expected ErrHashingFailure, got %v", err)
	}
}
