package psi

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/optable/psi-bfv/internal/hash"
)

// BucketSlot is one slot of either party's hash table: a 64-bit item value
// together with the index (0..Nhash-1) of the hash function that placed it
// there, or the empty marker if the slot holds no item.
type BucketSlot struct {
	Value     uint64
	HashIndex uint8
}

func emptySlot() BucketSlot {
	return BucketSlot{HashIndex: emptyHashIndex}
}

func (s BucketSlot) isEmpty() bool {
	return s.HashIndex == emptyHashIndex
}

// bucketIndices returns the Nhash candidate bucket indices for value under
// hashers, reduced modulo bucketCount. Both the Receiver's cuckoo hash and
// the Sender's complete hash call this with the same hashers and bucket
// count, so they agree on where any given value can land.
func bucketIndices(value uint64, hashers [Nhash]hash.Hasher, bucketCount uint64) [Nhash]uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)

	var idx [Nhash]uint64
	for i, h := range hashers {
		idx[i] = h.Hash64(buf[:]) % bucketCount
	}
	return idx
}

// cuckooEvictionCeiling bounds the number of evictions attempted before a
// cuckoo insertion is declared failed, per spec.md §4.2's 8*log2(n) rule.
func cuckooEvictionCeiling(n uint64) int {
	if n < 2 {
		return 8
	}
	return int(math.Ceil(8 * math.Log2(float64(n))))
}

// CuckooHash places each of values into one of bucketCount buckets using
// the three keyed hashers derived from p's seeds, evicting and
// re-inserting displaced items up to an 8*log2(len(values)) ceiling per
// item (spec.md §4.2). It returns ErrHashingFailure if any item cannot be
// placed within the ceiling.
func (p *Params) CuckooHash(values []uint64) ([]BucketSlot, error) {
	hashers := p.hashers()
	buckets := make([]BucketSlot, p.bucketCount)
	for i := range buckets {
		buckets[i] = emptySlot()
	}

	ceiling := cuckooEvictionCeiling(uint64(len(values)))

	for _, v := range values {
		if ok := insertCuckoo(buckets, hashers, p.bucketCount, v, ceiling); !ok {
			return nil, fmt.Errorf("%w: cuckoo insertion of item exceeded eviction ceiling of %d", ErrHashingFailure, ceiling)
		}
	}
	return buckets, nil
}

// insertCuckoo inserts value into buckets, evicting occupants along their
// other candidate slots as needed. It mirrors the try-then-evict structure
// of a textbook cuckoo hash table: first look for any empty candidate
// slot, then repeatedly displace an occupant into one of ITS other
// candidate slots, carrying the displaced value forward.
func insertCuckoo(buckets []BucketSlot, hashers [Nhash]hash.Hasher, bucketCount uint64, value uint64, ceiling int) bool {
	evictHash := 0
	for attempt := 0; attempt < ceiling; attempt++ {
		idx := bucketIndices(value, hashers, bucketCount)

		for h, b := range idx {
			if buckets[b].isEmpty() {
				buckets[b] = BucketSlot{Value: value, HashIndex: uint8(h)}
				return true
			}
		}

		// no empty candidate slot: evict the occupant of the candidate
		// bucket under evictHash and carry it forward for re-insertion
		// under the hash index after the one that had placed it.
		evictBucket := idx[evictHash]
		evicted := buckets[evictBucket]
		buckets[evictBucket] = BucketSlot{Value: value, HashIndex: uint8(evictHash)}
		value = evicted.Value
		evictHash = (int(evicted.HashIndex) + 1) % Nhash
	}
	return false
}

// CompleteHash places every one of values into ALL Nhash of its candidate
// buckets (not just one), each bucket holding a fixed capacity slice
// (spec.md §4.3). It returns ErrHashingFailure if any bucket would need to
// hold more than capacity items.
func (p *Params) CompleteHash(values []uint64) ([][]BucketSlot, error) {
	hashers := p.hashers()
	capacity := p.senderBucketCapacity

	buckets := make([][]BucketSlot, p.bucketCount)
	for i := range buckets {
		buckets[i] = make([]BucketSlot, 0, capacity)
	}

	for _, v := range values {
		idx := bucketIndices(v, hashers, p.bucketCount)
		for h, b := range idx {
			if len(buckets[b]) >= capacity {
				return nil, fmt.Errorf("%w: complete hash bucket %d exceeded capacity %d", ErrHashingFailure, b, capacity)
			}
			buckets[b] = append(buckets[b], BucketSlot{Value: v, HashIndex: uint8(h)})
		}
	}

	for i := range buckets {
		for len(buckets[i]) < capacity {
			buckets[i] = append(buckets[i], emptySlot())
		}
	}

	return buckets, nil
}
