package psi

// Plaintext, Ciphertext, PublicKey, SecretKey, and RelinKeys are opaque
// values owned by an Engine implementation. The psi package never inspects
// their contents; it only ever passes them back into the Engine that
// produced them. This is the seam spec.md Design Notes §9 asks for: the
// BFV library itself is an external collaborator, named only by this
// capability interface.
type (
	Plaintext  = any
	Ciphertext = any
	PublicKey  = any
	SecretKey  = any
	RelinKeys  = any
)

// Engine is the homomorphic-encryption capability the Receiver and Sender
// depend on. internal/fhebfv implements it against a real lattice library;
// internal/fhemock implements it with plain modular arithmetic for tests
// that exercise hashing, polynomial construction, and masking without
// paying for real lattice noise growth.
type Engine interface {
	// SlotCount returns the number of uint64 values a single Plaintext can
	// batch-encode, i.e. the ring's poly_modulus_degree.
	SlotCount() int

	// PlainModulus returns the modulus values are reduced into before
	// encoding.
	PlainModulus() uint64

	// NewKeyPair generates a fresh public/secret key pair.
	NewKeyPair() (PublicKey, SecretKey, error)

	// NewRelinKeys generates relinearization keys for sk, needed after
	// every ciphertext-ciphertext multiplication.
	NewRelinKeys(sk SecretKey) (RelinKeys, error)

	// Encode batch-packs up to SlotCount() values into one Plaintext.
	Encode(values []uint64) (Plaintext, error)

	// Decode unpacks a Plaintext's slots back into their uint64 values.
	Decode(pt Plaintext) ([]uint64, error)

	// EncryptNew encrypts pt under pk.
	EncryptNew(pk PublicKey, pt Plaintext) (Ciphertext, error)

	// DecryptNew decrypts ct under sk.
	DecryptNew(sk SecretKey, ct Ciphertext) (Plaintext, error)

	// AddNew returns a ciphertext-ciphertext sum.
	AddNew(a, b Ciphertext) (Ciphertext, error)

	// MulPlainNew returns the ciphertext-plaintext product ct*pt.
	MulPlainNew(ct Ciphertext, pt Plaintext) (Ciphertext, error)

	// MulRelinNew returns the ciphertext-ciphertext product a*b,
	// relinearized under rlk back down to a degree-1 ciphertext.
	MulRelinNew(a, b Ciphertext, rlk RelinKeys) (Ciphertext, error)
}
