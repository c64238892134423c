package psi

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	psilog "github.com/optable/psi-bfv/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Sender holds the state the sending party needs to compute its half of a
// PSI session: the protocol parameters and the homomorphic Engine. Unlike
// the Receiver, the Sender carries no cross-call state; ComputeMatches
// depends only on its arguments and a freshly sampled random mask, since
// the Sender learns nothing it needs to remember between sessions.
type Sender struct {
	params *Params
	engine Engine
}

// NewSender creates a Sender for params backed by engine. The caller must
// have already installed the Receiver's seeds into params via SetSeeds.
func NewSender(params *Params, engine Engine) *Sender {
	return &Sender{params: params, engine: engine}
}

// ComputeMatches complete-hashes the Sender's values into its bucket
// table, builds one polynomial per bucket whose roots are that bucket's
// (encoded) items, and homomorphically evaluates each polynomial at the
// Receiver's corresponding encrypted bucket value, one ciphertext block at
// a time, masking every result with a fresh random nonzero value so a
// non-match reveals nothing (spec.md §5, §7). Blocks are evaluated
// concurrently.
func (s *Sender) ComputeMatches(ctx context.Context, values []uint64, pk PublicKey, rlk RelinKeys, receiverCiphertexts []Ciphertext, observer NoiseObserver) ([]Ciphertext, error) {
	logger := psilog.GetLoggerFromContextWithName(ctx, "sender")

	if uint64(len(values)) != s.params.SenderSize {
		return nil, fmt.Errorf("%w: ComputeMatches given %d inputs, want sender_size %d",
			ErrParameterMismatch, len(values), s.params.SenderSize)
	}

	slotCount := s.engine.SlotCount()
	wantBlocks := s.params.CiphertextCount(slotCount)
	if uint64(len(receiverCiphertexts)) != wantBlocks {
		return nil, fmt.Errorf("%w: ComputeMatches given %d receiver ciphertexts, want %d",
			ErrParameterMismatch, len(receiverCiphertexts), wantBlocks)
	}

	logger.V(1).Info("hashing sender inputs", "n", len(values))

	buckets, err := s.params.CompleteHash(values)
	if err != nil {
		return nil, err
	}

	capacity := s.params.SenderBucketCapacity()
	plainModulus := s.params.PlainModulus()

	// coeffBlocks[j][b] is the plaintext-encodable slice of degree-j
	// coefficients for every bucket in block b, the SIMD batching trick
	// that lets one power-ladder evaluation serve every bucket's distinct
	// polynomial at once (spec.md §5.2).
	coeffBlocks := make([][][]uint64, capacity+1)
	for j := range coeffBlocks {
		coeffBlocks[j] = make([][]uint64, len(receiverCiphertexts))
		for b := range coeffBlocks[j] {
			coeffBlocks[j][b] = make([]uint64, 0, slotCount)
		}
	}

	for bucket, slots := range buckets {
		roots := make([]uint64, len(slots))
		for i, slot := range slots {
			roots[i] = s.params.EncodeBucketElement(slot, false)
		}
		coeffs := PolynomialFromRoots(roots, plainModulus)

		block := bucket / slotCount
		for j := 0; j <= capacity; j++ {
			var c uint64
			if j < len(coeffs) {
				c = coeffs[j]
			}
			coeffBlocks[j][block] = append(coeffBlocks[j][block], c)
		}
	}

	results := make([]Ciphertext, len(receiverCiphertexts))

	g, gctx := errgroup.WithContext(ctx)
	for b := range receiverCiphertexts {
		b := b
		g.Go(func() error {
			ct, err := s.evaluateBlock(gctx, b, receiverCiphertexts[b], pk, rlk, coeffBlocks, capacity, observer)
			if err != nil {
				return err
			}
			results[b] = ct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.V(1).Info("computed sender reply", "blocks", len(results))
	return results, nil
}

// evaluateBlock runs the power ladder and coefficient accumulation for a
// single ciphertext block: x^0..x^capacity via repeated squaring and
// multiplication, relinearized after every ciphertext-ciphertext product,
// then sum_j coeff_j * x^j, masked by a fresh random nonzero plaintext.
func (s *Sender) evaluateBlock(ctx context.Context, block int, x Ciphertext, pk PublicKey, rlk RelinKeys, coeffBlocks [][][]uint64, capacity int, observer NoiseObserver) (Ciphertext, error) {
	powers := make([]Ciphertext, capacity+1)
	if capacity >= 1 {
		powers[1] = x
	}

	for j := 2; j <= capacity; j++ {
		var pw Ciphertext
		var err error
		if j&1 == 0 {
			pw, err = s.engine.MulRelinNew(powers[j/2], powers[j/2], rlk)
		} else {
			pw, err = s.engine.MulRelinNew(powers[j-1], powers[1], rlk)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: computing power %d of block %d: %v", ErrCryptoFailure, j, block, err)
		}
		powers[j] = pw
		if observer != nil {
			observer.ReportNoise("power", j, pw)
		}
	}

	coeff0, err := s.engine.Encode(coeffBlocks[0][block])
	if err != nil {
		return nil, fmt.Errorf("%w: encoding degree-0 coefficients of block %d: %v", ErrCryptoFailure, block, err)
	}
	acc, err := s.engine.EncryptNew(pk, coeff0)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypting degree-0 term of block %d: %v", ErrCryptoFailure, block, err)
	}

	for j := 1; j <= capacity; j++ {
		coeffPt, err := s.engine.Encode(coeffBlocks[j][block])
		if err != nil {
			return nil, fmt.Errorf("%w: encoding degree-%d coefficients of block %d: %v", ErrCryptoFailure, j, block, err)
		}
		term, err := s.engine.MulPlainNew(powers[j], coeffPt)
		if err != nil {
			return nil, fmt.Errorf("%w: multiplying power %d of block %d: %v", ErrCryptoFailure, j, block, err)
		}
		acc, err = s.engine.AddNew(acc, term)
		if err != nil {
			return nil, fmt.Errorf("%w: accumulating degree %d of block %d: %v", ErrCryptoFailure, j, block, err)
		}
	}
	if observer != nil {
		observer.ReportNoise("accumulate", block, acc)
	}

	mask, err := randomNonzeroMask(len(coeffBlocks[0][block]), s.params.PlainModulus())
	if err != nil {
		return nil, fmt.Errorf("%w: sampling mask for block %d: %v", ErrCryptoFailure, block, err)
	}
	maskPt, err := s.engine.Encode(mask)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding mask for block %d: %v", ErrCryptoFailure, block, err)
	}
	masked, err := s.engine.MulPlainNew(acc, maskPt)
	if err != nil {
		return nil, fmt.Errorf("%w: masking block %d: %v", ErrCryptoFailure, block, err)
	}
	if observer != nil {
		observer.ReportNoise("mask", block, masked)
	}

	return masked, nil
}

// randomNonzeroMask samples n independent values uniform over
// [1, plainModulus-1], so that multiplying a zero slot (a match) leaves it
// zero while blinding every nonzero (non-match) slot, per spec.md §7's
// semi-honest masking requirement.
func randomNonzeroMask(n int, plainModulus uint64) ([]uint64, error) {
	mask := make([]uint64, n)
	bound := new(big.Int).SetUint64(plainModulus - 1)
	for i := range mask {
		v, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return nil, err
		}
		mask[i] = v.Uint64() + 1
	}
	return mask, nil
}
