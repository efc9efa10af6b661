package csmt

import (
	"hash"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Digest accumulates bytes and produces a Hash256. It mirrors the two-method
// shape of the teacher's HashFunc, but streaming rather than one-shot, so
// node and leaf encodings never need an intermediate allocation to
// concatenate their tagged fields.
type Digest interface {
	Write(p []byte) (n int, err error)
	Sum() Hash256
}

// Hasher constructs fresh Digest values. Implementations must be safe for
// concurrent use by multiple goroutines calling New independently; the
// Digest values themselves are not required to be.
type Hasher interface {
	New() Digest
}

// turboShakeDomain is this package's own domain-separation byte for the
// TurboSHAKE128 construction, distinct from the 0x00/0x01 leaf/internal tags
// mixed into the hashed bytes themselves. TurboSHAKE reserves 0x00 and 0x7F
// so implementations built on top of it can pick their own value; this one
// has no meaning beyond "compacted sparse Merkle tree, not some other use".
const turboShakeDomain byte = 0x1f

type turboShake128Hasher struct{}

// TurboShake128 is a Hasher backed by TurboSHAKE128, truncated to 32 bytes.
func TurboShake128() Hasher { return turboShake128Hasher{} }

func (turboShake128Hasher) New() Digest {
	return &turboShake128Digest{sh: sha3.NewTurboShake128(turboShakeDomain)}
}

type turboShake128Digest struct {
	sh sha3.ShakeHash
}

func (d *turboShake128Digest) Write(p []byte) (int, error) {
	return d.sh.Write(p)
}

func (d *turboShake128Digest) Sum() Hash256 {
	// Read is destructive on a ShakeHash, so clone before draining the
	// output in case the caller (accidentally or not) sums twice.
	var out Hash256
	d.sh.Clone().Read(out[:])
	return out
}

type blake3Hasher struct{}

// BLAKE3 is a Hasher backed by BLAKE3 with a 32-byte output.
func BLAKE3() Hasher { return blake3Hasher{} }

func (blake3Hasher) New() Digest {
	return &blake3Digest{h: blake3.New(32, nil)}
}

type blake3Digest struct {
	h hash.Hash
}

func (d *blake3Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

func (d *blake3Digest) Sum() Hash256 {
	var out Hash256
	copy(out[:], d.h.Sum(nil))
	return out
}
