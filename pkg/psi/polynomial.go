package psi

import "math/bits"

// mulMod computes a*b mod m without overflowing uint64, using a 128-bit
// intermediate product (spec.md §5.2's "128-bit-safe modular multiplication"
// requirement for coefficient arithmetic).
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, m)
	return rem
}

// addMod computes a+b mod m.
func addMod(a, b, m uint64) uint64 {
	s := a + b
	if s < a || s >= m {
		s -= m
	}
	return s
}

// subMod computes a-b mod m.
func subMod(a, b, m uint64) uint64 {
	if a >= b {
		return a - b
	}
	return m - (b - a)
}

// PolynomialFromRoots returns the coefficients, ascending degree, of the
// monic polynomial prod_i (x - roots[i]) reduced mod modulus (spec.md
// §5.2). An empty roots slice yields the constant polynomial [1].
func PolynomialFromRoots(roots []uint64, modulus uint64) []uint64 {
	coeffs := make([]uint64, 1, len(roots)+1)
	coeffs[0] = 1 % modulus

	for _, r := range roots {
		next := make([]uint64, len(coeffs)+1)
		for i, c := range coeffs {
			// next[i+1] += c (the x * coeffs[i] term)
			next[i+1] = addMod(next[i+1], c, modulus)
			// next[i] += c * (-r), i.e. the c*(modulus-r) term
			next[i] = addMod(next[i], mulMod(c, subMod(0, r, modulus), modulus), modulus)
		}
		coeffs = next
	}
	return coeffs
}
