// Package fhemock implements psi.Engine with plain modular arithmetic
// instead of a real lattice cryptosystem. A ciphertext is its plaintext's
// slot values wrapped in a marker struct; "encryption" and "decryption"
// are no-ops. It exists so the hashing, polynomial, and masking logic in
// pkg/psi can be exercised by fast, deterministic tests without paying for
// genuine homomorphic noise growth or needing real lattice parameters.
package fhemock

import (
	"fmt"
	"math/bits"
)

// plaintext is a batch of values reduced mod modulus.
type plaintext struct {
	values []uint64
}

// ciphertext wraps a plaintext. Since this engine performs no real
// encryption, a ciphertext and the plaintext it carries are
// interchangeable; the wrapper exists only so Engine's signature matches
// internal/fhebfv's.
type ciphertext struct {
	values []uint64
}

type keyMarker struct{ id int }

// Engine is a non-cryptographic psi.Engine: SlotCount values per
// plaintext, reduced mod Modulus.
type Engine struct {
	Modulus   uint64
	Slots     int
	nextKeyID int
}

// New returns an Engine with the given plaintext modulus and slot count.
func New(modulus uint64, slots int) *Engine {
	return &Engine{Modulus: modulus, Slots: slots}
}

func (e *Engine) SlotCount() int       { return e.Slots }
func (e *Engine) PlainModulus() uint64 { return e.Modulus }

func (e *Engine) NewKeyPair() (any, any, error) {
	e.nextKeyID++
	return keyMarker{e.nextKeyID}, keyMarker{e.nextKeyID}, nil
}

func (e *Engine) NewRelinKeys(sk any) (any, error) {
	return struct{}{}, nil
}

func (e *Engine) Encode(values []uint64) (any, error) {
	if len(values) > e.Slots {
		return nil, fmt.Errorf("fhemock: %d values exceeds slot count %d", len(values), e.Slots)
	}
	padded := make([]uint64, e.Slots)
	for i, v := range values {
		padded[i] = v % e.Modulus
	}
	return plaintext{values: padded}, nil
}

func (e *Engine) Decode(pt any) ([]uint64, error) {
	p, ok := pt.(plaintext)
	if !ok {
		return nil, fmt.Errorf("fhemock: Decode called on a non-plaintext value")
	}
	return p.values, nil
}

func (e *Engine) EncryptNew(pk any, pt any) (any, error) {
	p, ok := pt.(plaintext)
	if !ok {
		return nil, fmt.Errorf("fhemock: EncryptNew called on a non-plaintext value")
	}
	return ciphertext{values: p.values}, nil
}

func (e *Engine) DecryptNew(sk any, ct any) (any, error) {
	c, ok := ct.(ciphertext)
	if !ok {
		return nil, fmt.Errorf("fhemock: DecryptNew called on a non-ciphertext value")
	}
	return plaintext{values: c.values}, nil
}

func (e *Engine) AddNew(a, b any) (any, error) {
	ca, ok := a.(ciphertext)
	cb, ok2 := b.(ciphertext)
	if !ok || !ok2 {
		return nil, fmt.Errorf("fhemock: AddNew called on a non-ciphertext value")
	}
	out := make([]uint64, e.Slots)
	for i := range out {
		out[i] = (ca.values[i] + cb.values[i]) % e.Modulus
	}
	return ciphertext{values: out}, nil
}

func (e *Engine) MulPlainNew(ct any, pt any) (any, error) {
	c, ok := ct.(ciphertext)
	p, ok2 := pt.(plaintext)
	if !ok || !ok2 {
		return nil, fmt.Errorf("fhemock: MulPlainNew called on the wrong value kinds")
	}
	out := make([]uint64, e.Slots)
	for i := range out {
		out[i] = mulModSmall(c.values[i], p.values[i], e.Modulus)
	}
	return ciphertext{values: out}, nil
}

func (e *Engine) MulRelinNew(a, b any, rlk any) (any, error) {
	ca, ok := a.(ciphertext)
	cb, ok2 := b.(ciphertext)
	if !ok || !ok2 {
		return nil, fmt.Errorf("fhemock: MulRelinNew called on a non-ciphertext value")
	}
	out := make([]uint64, e.Slots)
	for i := range out {
		out[i] = mulModSmall(ca.values[i], cb.values[i], e.Modulus)
	}
	return ciphertext{values: out}, nil
}

// mulModSmall computes a*b mod m using a 128-bit-safe path for moduli that
// may approach 2^64, mirroring psi.mulMod without importing the psi
// package (which would create an import cycle with its tests).
func mulModSmall(a, b, m uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, m)
	return rem
}
