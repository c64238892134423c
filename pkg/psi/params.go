package psi

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/optable/psi-bfv/internal/hash"
)

// Nhash is the number of keyed hash functions used for both the Receiver's
// cuckoo hash table and the Sender's complete hash table.
const Nhash = hash.Murmur3 - hash.Murmur3 + 3 // keep in lockstep with BucketSlot.HashIndex's 2-bit range

// emptyHashIndex is the distinguished BucketSlot.HashIndex value that marks a
// slot as unoccupied. It must not collide with a real hash index (0,1,2).
const emptyHashIndex = 3

// polyModulusDegree is the BFV ring degree (slot count of the batching
// encoder), fixed by spec.md §3.
const polyModulusDegree = 16384

// defaultPlainModulus is 4*polyModulusDegree + 1 = 65537, the canonical
// batching-compatible prime for a poly_modulus_degree of 16384.
const defaultPlainModulus = 4*polyModulusDegree + 1

// overflowLog2Bound is the target probability (as a negative power of two)
// that any bucket in the Sender's complete hash table overflows its capacity,
// per spec.md Design Notes §9.
const overflowLog2Bound = 40

// Params holds the immutable protocol parameters shared by the Receiver and
// Sender. Both parties must construct identical Params (spec.md §3); there
// is no in-protocol negotiation.
type Params struct {
	ReceiverSize uint64
	SenderSize   uint64
	InputBits    uint64

	seeds [Nhash]uint64

	bucketCountLog uint64
	bucketCount    uint64

	senderBucketCapacity int
	plainModulus         uint64
}

// NewParams constructs a Params for a session between a Receiver holding
// receiverSize elements and a Sender holding senderSize elements, each
// drawn from [0, 2^inputBits). It fixes bucketCount, senderBucketCapacity,
// and plainModulus, validating that every encoded bucket slot value fits
// under plainModulus (spec.md §4.1).
func NewParams(receiverSize, senderSize, inputBits uint64) (*Params, error) {
	if receiverSize == 0 {
		return nil, fmt.Errorf("%w: receiver_size must be positive", ErrParameterMismatch)
	}

	bucketCountLog := uint64(math.Ceil(math.Log2(float64(receiverSize)))) + 1
	bucketCount := uint64(1) << bucketCountLog

	capacity := senderBucketCapacityFor(senderSize, bucketCount)

	plainModulus, err := choosePlainModulus(inputBits, bucketCountLog)
	if err != nil {
		return nil, err
	}

	p := &Params{
		ReceiverSize:         receiverSize,
		SenderSize:           senderSize,
		InputBits:            inputBits,
		bucketCountLog:       bucketCountLog,
		bucketCount:          bucketCount,
		senderBucketCapacity: capacity,
		plainModulus:         plainModulus,
	}

	if err := p.validateEncoding(); err != nil {
		return nil, err
	}

	return p, nil
}

// BucketCount returns the number of buckets in both parties' hash tables.
func (p *Params) BucketCount() uint64 { return p.bucketCount }

// BucketCountLog returns ceil(log2(ReceiverSize)) + 1.
func (p *Params) BucketCountLog() uint64 { return p.bucketCountLog }

// SenderBucketCapacity returns the fixed per-bucket capacity of the Sender's
// complete hash table.
func (p *Params) SenderBucketCapacity() int { return p.senderBucketCapacity }

// PlainModulus returns the BFV plaintext modulus chosen for this session.
func (p *Params) PlainModulus() uint64 { return p.plainModulus }

// PolyModulusDegree returns the BFV ring degree, which is also the batching
// encoder's slot count.
func (p *Params) PolyModulusDegree() int { return polyModulusDegree }

// CiphertextCount returns ceil(BucketCount / slot_count), the number of
// ciphertexts exchanged in each direction of the protocol.
func (p *Params) CiphertextCount(slotCount int) uint64 {
	bc := p.bucketCount
	sc := uint64(slotCount)
	return (bc + sc - 1) / sc
}

// Seeds returns the three keyed-hash seeds currently installed.
func (p *Params) Seeds() [Nhash]uint64 { return p.seeds }

// GenerateSeeds fills Params.seeds with Nhash independently sampled 64-bit
// values from a cryptographically secure RNG. The caller (typically the
// Receiver) is responsible for transmitting the result to its counterpart
// out-of-band; the core performs no negotiation (spec.md §4.1).
func (p *Params) GenerateSeeds() error {
	var seeds [Nhash]uint64
	var buf [8]byte
	for i := range seeds {
		if _, err := rand.Read(buf[:]); err != nil {
			return fmt.Errorf("generating seed %d: %w", i, err)
		}
		seeds[i] = binary.BigEndian.Uint64(buf[:])
	}
	p.seeds = seeds
	return nil
}

// SetSeeds adopts externally supplied seeds, as the Sender does after
// receiving them from the Receiver. It fails if len(seeds) != Nhash.
func (p *Params) SetSeeds(seeds []uint64) error {
	if len(seeds) != Nhash {
		return fmt.Errorf("%w: expected %d seeds, got %d", ErrParameterMismatch, Nhash, len(seeds))
	}
	var s [Nhash]uint64
	copy(s[:], seeds)
	p.seeds = s
	return nil
}

// hashers returns the Nhash keyed mixers derived from the current seeds,
// alternating hash families the way internal/hash exposes them (Murmur3 for
// even indices, Metro for odd). Placement depends on the seeds, but two
// sessions with different seeds can still place an item in the same bucket.
func (p *Params) hashers() [Nhash]hash.Hasher {
	var hs [Nhash]hash.Hasher
	for i, seed := range p.seeds {
		family := hash.Murmur3
		if i%2 == 1 {
			family = hash.Metro
		}
		h, err := hash.New(family, seed)
		if err != nil {
			// hash.New only fails for an unknown family constant, which
			// cannot happen here since family is hard-coded above.
			panic(err)
		}
		hs[i] = h
	}
	return hs
}

// EncodeBucketElement is the single on-wire numeric encoding of a bucket
// slot (spec.md §4.1). It is used both as a plaintext slot value (Receiver)
// and as a polynomial root (Sender). A Receiver dummy (7) never equals a
// Sender dummy (3), so the two EMPTY encodings never collide.
func (p *Params) EncodeBucketElement(slot BucketSlot, isReceiver bool) uint64 {
	if !slot.isEmpty() {
		base := (slot.Value >> p.bucketCountLog) << 2
		return base | uint64(slot.HashIndex)
	}
	if isReceiver {
		return emptyHashIndex | 4
	}
	return emptyHashIndex
}

// validateEncoding checks the invariant from spec.md §4.1:
// input_bits - bucket_count_log + 2 <= log2(plain_modulus).
func (p *Params) validateEncoding() error {
	maxEncoded := encodedUpperBound(p.InputBits, p.bucketCountLog)
	if maxEncoded >= p.plainModulus {
		return fmt.Errorf("%w: encoded slot value can reach %d, which is >= plain_modulus %d",
			ErrEncodingOverflow, maxEncoded, p.plainModulus)
	}
	return nil
}

// encodedUpperBound returns an upper bound (inclusive) on any value
// EncodeBucketElement can produce for the given inputBits/bucketCountLog.
func encodedUpperBound(inputBits, bucketCountLog uint64) uint64 {
	shifted := inputBits
	if bucketCountLog < shifted {
		shifted -= bucketCountLog
	} else {
		shifted = 0
	}
	// (v >> bucketCountLog) has at most `shifted` bits; shifted left by 2
	// and or'd with a 2-bit hash index.
	valueBound := (uint64(1)<<shifted)<<2 | 3
	// the Receiver-dummy encoding (7) must also fit.
	if valueBound < 7 {
		valueBound = 7
	}
	return valueBound
}

// choosePlainModulus picks the smallest BFV-batching-compatible prime (one
// congruent to 1 mod 2*polyModulusDegree, so the batching encoder's NTT
// exists) that exceeds the largest value EncodeBucketElement can produce.
// This implements spec.md Design Notes §9's plain-modulus sizing TODO.
func choosePlainModulus(inputBits, bucketCountLog uint64) (uint64, error) {
	bound := encodedUpperBound(inputBits, bucketCountLog)

	if defaultPlainModulus > bound {
		return defaultPlainModulus, nil
	}

	modulus := uint64(2 * polyModulusDegree)
	candidate := new(big.Int)
	for c := bound + 1; c < bound+1_000_000; c++ {
		if c%modulus != 1 {
			continue
		}
		candidate.SetUint64(c)
		if candidate.ProbablyPrime(20) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: no batching-compatible plain_modulus found above %d", ErrEncodingOverflow, bound)
}

// senderBucketCapacityFor derives sender_bucket_capacity as a function of
// (senderSize, bucketCount, Nhash) so that the probability any one of the
// Sender's buckets overflows is at most 2^-overflowLog2Bound, replacing the
// hardcoded constant from spec.md Design Notes §9. Each of the Sender's
// senderSize items lands in Nhash buckets (one per hash function), so bucket
// occupancy is modeled as Poisson(lambda) with lambda = Nhash*senderSize /
// bucketCount, and the capacity is chosen via the standard Poisson upper-tail
// Chernoff bound, union-bounded over all buckets.
func senderBucketCapacityFor(senderSize, bucketCount uint64) int {
	lambda := float64(Nhash) * float64(senderSize) / float64(bucketCount)
	if lambda <= 0 {
		lambda = 1e-9
	}

	// union bound: P(any bucket overflows) <= bucketCount * P(one bucket
	// overflows capacity) <= 2^-overflowLog2Bound
	targetLogP := -float64(overflowLog2Bound)*math.Ln2 - math.Log(float64(bucketCount))

	capacity := int(math.Ceil(lambda)) + 1
	for poissonUpperTailLogBound(lambda, capacity) > targetLogP {
		capacity++
	}
	return capacity
}

// poissonUpperTailLogBound returns a Chernoff upper bound on
// log(P(X >= k)) for X ~ Poisson(lambda), valid for k > lambda:
//
//	P(X >= k) <= (e*lambda/k)^k * e^(-lambda)
func poissonUpperTailLogBound(lambda float64, k int) float64 {
	kk := float64(k)
	if kk <= lambda {
		return 0 // bound is vacuous (>= 0, i.e. "not proven small") below the mean
	}
	return kk*(1+math.Log(lambda/kk)) - lambda
}
