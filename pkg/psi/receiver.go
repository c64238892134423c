package psi

import (
	"context"
	"fmt"

	"github.com/optable/psi-bfv/internal/util"
	psilog "github.com/optable/psi-bfv/pkg/log"
)

// Receiver holds the state the receiving party of a PSI session must keep
// between encrypting its inputs and decrypting the Sender's reply: its
// keys, and whether EncryptInputs has run yet (spec.md §4.2, §6).
type Receiver struct {
	params *Params
	engine Engine

	pk  PublicKey
	sk  SecretKey
	rlk RelinKeys

	encrypted bool
}

// NewReceiver creates a Receiver for params backed by engine, generating a
// fresh keypair and relinearization keys. It also generates params' seeds,
// which the caller must transmit to its counterpart Sender before calling
// EncryptInputs.
func NewReceiver(ctx context.Context, params *Params, engine Engine) (*Receiver, error) {
	logger := psilog.GetLoggerFromContextWithName(ctx, "receiver")

	if err := params.GenerateSeeds(); err != nil {
		return nil, fmt.Errorf("generating seeds: %w", err)
	}

	pk, sk, err := engine.NewKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: generating keypair: %v", ErrCryptoFailure, err)
	}

	rlk, err := engine.NewRelinKeys(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: generating relinearization keys: %v", ErrCryptoFailure, err)
	}

	logger.V(1).Info("receiver initialized", "bucket_count", params.BucketCount())

	return &Receiver{params: params, engine: engine, pk: pk, sk: sk, rlk: rlk}, nil
}

// PublicKey returns the Receiver's public key, to be handed to the Sender.
func (r *Receiver) PublicKey() PublicKey { return r.pk }

// RelinKeys returns the Receiver's relinearization keys, to be handed to
// the Sender.
func (r *Receiver) RelinKeys() RelinKeys { return r.rlk }

// Seeds returns the hash seeds generated by NewReceiver, to be handed to
// the Sender.
func (r *Receiver) Seeds() [Nhash]uint64 { return r.params.Seeds() }

// EncryptInputs cuckoo-hashes *inputs into the Receiver's bucket table,
// batch-encodes and encrypts it, and returns one ciphertext per block of
// SlotCount buckets (spec.md §4.2, §5.1). It fails with ErrParameterMismatch
// if len(*inputs) != params.ReceiverSize.
//
// As required by spec.md §4.4 step 5, *inputs is rewritten in place to
// length BucketCount: (*inputs)[i] becomes the value now occupying bucket
// i, or 0 for an empty bucket. DecryptMatches returns bucket indices, not
// values, precisely so a caller recovers the matched value as
// (*inputs)[i] after this rewrite — the two calls share this slice as
// their contract, the way spec.md's testable property 3 describes.
func (r *Receiver) EncryptInputs(ctx context.Context, inputs *[]uint64) ([]Ciphertext, error) {
	logger := psilog.GetLoggerFromContextWithName(ctx, "receiver")

	if uint64(len(*inputs)) != r.params.ReceiverSize {
		return nil, fmt.Errorf("%w: EncryptInputs given %d inputs, want receiver_size %d",
			ErrParameterMismatch, len(*inputs), r.params.ReceiverSize)
	}

	var cts []Ciphertext

	stage := func() error {
		logger.V(1).Info("hashing receiver inputs", "n", len(*inputs))
		buckets, err := r.params.CuckooHash(*inputs)
		if err != nil {
			return err
		}

		rewritten := make([]uint64, len(buckets))
		plain := make([]uint64, len(buckets))
		for i, slot := range buckets {
			if !slot.isEmpty() {
				rewritten[i] = slot.Value
			}
			plain[i] = r.params.EncodeBucketElement(slot, true)
		}
		*inputs = rewritten

		slotCount := r.engine.SlotCount()
		blocks := int(r.params.CiphertextCount(slotCount))
		cts = make([]Ciphertext, blocks)

		for b := 0; b < blocks; b++ {
			lo := b * slotCount
			hi := lo + slotCount
			if hi > len(plain) {
				hi = len(plain)
			}

			pt, err := r.engine.Encode(plain[lo:hi])
			if err != nil {
				return fmt.Errorf("%w: encoding block %d: %v", ErrCryptoFailure, b, err)
			}
			ct, err := r.engine.EncryptNew(r.pk, pt)
			if err != nil {
				return fmt.Errorf("%w: encrypting block %d: %v", ErrCryptoFailure, b, err)
			}
			cts[b] = ct
		}

		r.encrypted = true
		logger.V(1).Info("encrypted receiver inputs", "blocks", blocks)
		return nil
	}

	if err := util.Sel(ctx, stage); err != nil {
		return nil, err
	}
	return cts, nil
}

// DecryptMatches decrypts and decodes the Sender's reply ciphertexts and
// returns, in strictly increasing order, the global bucket index of every
// slot whose decrypted value was zero, i.e. every matched bucket (spec.md
// §5.3, §6). The caller recovers the matched values themselves by indexing
// the *inputs slice EncryptInputs rewrote.
func (r *Receiver) DecryptMatches(ctx context.Context, resultCiphertexts []Ciphertext) ([]int, error) {
	logger := psilog.GetLoggerFromContextWithName(ctx, "receiver")

	if !r.encrypted {
		return nil, fmt.Errorf("%w: DecryptMatches called before EncryptInputs", ErrParameterMismatch)
	}

	slotCount := r.engine.SlotCount()
	wantBlocks := r.params.CiphertextCount(slotCount)
	if uint64(len(resultCiphertexts)) != wantBlocks {
		return nil, fmt.Errorf("%w: DecryptMatches given %d ciphertexts, want %d",
			ErrParameterMismatch, len(resultCiphertexts), wantBlocks)
	}

	var matches []int

	stage := func() error {
		bucketCount := int(r.params.BucketCount())

		for b, ct := range resultCiphertexts {
			pt, err := r.engine.DecryptNew(r.sk, ct)
			if err != nil {
				return fmt.Errorf("%w: decrypting block %d: %v", ErrCryptoFailure, b, err)
			}
			values, err := r.engine.Decode(pt)
			if err != nil {
				return fmt.Errorf("%w: decoding block %d: %v", ErrCryptoFailure, b, err)
			}

			lo := b * slotCount
			for i, v := range values {
				bucket := lo + i
				if bucket >= bucketCount {
					break
				}
				if v == 0 {
					matches = append(matches, bucket)
				}
			}
		}

		logger.V(1).Info("decrypted sender reply", "matches", len(matches))
		return nil
	}

	if err := util.Sel(ctx, stage); err != nil {
		return nil, err
	}
	return matches, nil
}
