// Package fhebfv implements psi.Engine against lattigo's BGV scheme, which
// since v4 subsumes the deprecated bfv package the scheme is historically
// known by. It is the only Engine implementation backed by a real lattice
// cryptosystem; internal/fhemock stands in for it in fast unit tests.
package fhebfv

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/bgv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// logN is the log2 of the ring degree, fixed at 16384 to match
// poly_modulus_degree (spec.md §3).
const logN = 14

// Engine is a psi.Engine backed by lattigo's BGV implementation.
type Engine struct {
	params    bgv.Parameters
	encoder   bgv.Encoder
	evaluator bgv.Evaluator
}

// New builds an Engine for the given plaintext modulus, using a 128-bit
// secure ring/modulus chain sized for a handful of ciphertext-ciphertext
// multiplications (the deepest power-ladder chains spec.md's protocol
// needs).
func New(plainModulus uint64) (*Engine, error) {
	lit := bgv.ParametersLiteral{
		LogN: logN,
		LogQ: []int{55, 45, 45, 45, 45},
		LogP: []int{61},
		T:    plainModulus,
	}

	params, err := bgv.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("fhebfv: building parameters: %w", err)
	}

	return &Engine{
		params:    params,
		encoder:   bgv.NewEncoder(params),
		evaluator: bgv.NewEvaluator(params, rlwe.EvaluationKey{}),
	}, nil
}

func (e *Engine) SlotCount() int       { return e.params.N() }
func (e *Engine) PlainModulus() uint64 { return e.params.T() }

func (e *Engine) NewKeyPair() (any, any, error) {
	keygen := bgv.NewKeyGenerator(e.params)
	sk, pk := keygen.GenKeyPair()
	return pk, sk, nil
}

func (e *Engine) NewRelinKeys(sk any) (any, error) {
	secretKey, ok := sk.(*rlwe.SecretKey)
	if !ok {
		return nil, fmt.Errorf("fhebfv: NewRelinKeys given a non-*rlwe.SecretKey")
	}
	keygen := bgv.NewKeyGenerator(e.params)
	return keygen.GenRelinearizationKey(secretKey, 1), nil
}

func (e *Engine) Encode(values []uint64) (any, error) {
	padded := make([]uint64, e.SlotCount())
	copy(padded, values)
	pt := bgv.NewPlaintext(e.params, e.params.MaxLevel())
	pt.Scale = e.params.DefaultScale()
	e.encoder.Encode(padded, pt)
	return pt, nil
}

func (e *Engine) Decode(pt any) ([]uint64, error) {
	plaintext, ok := pt.(*rlwe.Plaintext)
	if !ok {
		return nil, fmt.Errorf("fhebfv: Decode given a non-*rlwe.Plaintext")
	}
	values := make([]uint64, e.SlotCount())
	e.encoder.DecodeUint(plaintext, values)
	return values, nil
}

func (e *Engine) EncryptNew(pk any, pt any) (any, error) {
	publicKey, ok := pk.(*rlwe.PublicKey)
	if !ok {
		return nil, fmt.Errorf("fhebfv: EncryptNew given a non-*rlwe.PublicKey")
	}
	plaintext, ok := pt.(*rlwe.Plaintext)
	if !ok {
		return nil, fmt.Errorf("fhebfv: EncryptNew given a non-*rlwe.Plaintext")
	}
	encryptor := bgv.NewEncryptor(e.params, publicKey)
	return encryptor.EncryptNew(plaintext), nil
}

func (e *Engine) DecryptNew(sk any, ct any) (any, error) {
	secretKey, ok := sk.(*rlwe.SecretKey)
	if !ok {
		return nil, fmt.Errorf("fhebfv: DecryptNew given a non-*rlwe.SecretKey")
	}
	ciphertext, ok := ct.(*rlwe.Ciphertext)
	if !ok {
		return nil, fmt.Errorf("fhebfv: DecryptNew given a non-*rlwe.Ciphertext")
	}
	decryptor := bgv.NewDecryptor(e.params, secretKey)
	return decryptor.DecryptNew(ciphertext), nil
}

func (e *Engine) AddNew(a, b any) (any, error) {
	ca, ok := a.(*rlwe.Ciphertext)
	cb, ok2 := b.(*rlwe.Ciphertext)
	if !ok || !ok2 {
		return nil, fmt.Errorf("fhebfv: AddNew given a non-*rlwe.Ciphertext")
	}
	return e.evaluator.AddNew(ca, cb), nil
}

func (e *Engine) MulPlainNew(ct any, pt any) (any, error) {
	ciphertext, ok := ct.(*rlwe.Ciphertext)
	if !ok {
		return nil, fmt.Errorf("fhebfv: MulPlainNew given a non-*rlwe.Ciphertext")
	}
	plaintext, ok := pt.(*rlwe.Plaintext)
	if !ok {
		return nil, fmt.Errorf("fhebfv: MulPlainNew given a non-*rlwe.Plaintext")
	}
	return e.evaluator.MulNew(ciphertext, plaintext), nil
}

func (e *Engine) MulRelinNew(a, b any, rlk any) (any, error) {
	ca, ok := a.(*rlwe.Ciphertext)
	cb, ok2 := b.(*rlwe.Ciphertext)
	relinKeys, ok3 := rlk.(*rlwe.RelinearizationKey)
	if !ok || !ok2 || !ok3 {
		return nil, fmt.Errorf("fhebfv: MulRelinNew given the wrong argument kinds")
	}
	eval := e.evaluator.WithKey(rlwe.EvaluationKey{Rlk: relinKeys})
	return eval.MulRelinNew(ca, cb), nil
}
