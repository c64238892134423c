package psi

import "fmt"

// ErrParameterMismatch is returned when an argument does not fit the
// session's Params: an input set whose length differs from receiver_size
// or sender_size, a ciphertext count other than CiphertextCount, a seed
// count other than Nhash, a zero receiver_size, or DecryptMatches called
// before EncryptInputs. Seeds that differ between the two parties are not
// detected.
var ErrParameterMismatch = fmt.Errorf("psi: parameter mismatch between receiver and sender")

// ErrHashingFailure is returned when the Receiver's cuckoo hash table
// cannot place every input within the eviction ceiling, or when the
// Sender's complete hash table overflows a bucket's fixed capacity.
var ErrHashingFailure = fmt.Errorf("psi: hashing failure")

// ErrEncodingOverflow is returned when an encoded bucket element, or the
// plain modulus chosen for it, cannot satisfy the sizing invariant of
// spec.md §4.1.
var ErrEncodingOverflow = fmt.Errorf("psi: encoding overflow")

// ErrCryptoFailure is returned when the underlying Engine reports a failure
// performing a homomorphic operation (key generation, encode, encrypt,
// multiply, or decrypt).
var ErrCryptoFailure = fmt.Errorf("psi: crypto failure")
