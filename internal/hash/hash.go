package hash

import (
	"fmt"

	metro "github.com/dgryski/go-metro"
	"github.com/twmb/murmur3"
)

const (
	Murmur3 = iota
	Metro
)

var ErrUnknownHash = fmt.Errorf("cannot create a hasher of unknown hash type")

// Hasher is a keyed 64-bit mixer. It must be computable identically on both
// sides of the protocol given only the shared seed, so that the Receiver's
// cuckoo hash and the Sender's complete hash agree on bucket placement for
// any given hash index.
type Hasher interface {
	Hash64(item []byte) uint64
}

// New creates a hasher of type t, keyed by seed.
func New(t int, seed uint64) (Hasher, error) {
	switch t {
	case Murmur3:
		return murmurHasher{seed: seed}, nil
	case Metro:
		return metroHasher{seed: seed}, nil
	default:
		return nil, ErrUnknownHash
	}
}

// murmurHasher is a Murmur3 implementation of Hasher, keyed with seed.
type murmurHasher struct {
	seed uint64
}

func (h murmurHasher) Hash64(item []byte) uint64 {
	return murmur3.SeedSum64(h.seed, item)
}

// metroHasher is a MetroHash implementation of Hasher, keyed with seed.
type metroHasher struct {
	seed uint64
}

func (h metroHasher) Hash64(item []byte) uint64 {
	return metro.Hash64(item, h.seed)
}
