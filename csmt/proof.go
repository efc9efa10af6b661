package csmt

import (
	"context"
	"encoding/binary"
	"fmt"
)

// MerkleProof proves inclusion of an ordered, non-empty set of (key, leaf
// digest) pairs against a single root. It is immutable once constructed and
// freely shareable.
type MerkleProof struct {
	// leavesBitmap holds one 256-bit mask per proved leaf, in the same
	// sorted order as the keys the proof was built for. Bit h (using the
	// Hash256.Bit convention, i.e. bit (255-height) of the mask) is 1 iff
	// the sibling at that height was supplied explicitly in path, rather
	// than derived from a neighboring leaf or known to be zero.
	leavesBitmap []Hash256

	// path is the explicit non-zero sibling digests, in bottom-up,
	// left-to-right emission order.
	path []Hash256
}

// foldEntry is one lineage in the bottom-up fold shared by construction and
// verification: a (still-growing) subtree digest together with the indices,
// into the caller's sorted key list, of every leaf it descends from.
type foldEntry struct {
	prefix Hash256
	digest Hash256
	leaves []int
}

// checkSorted reports ErrNonIncreasingKeys unless keys are strictly
// increasing (sorted and unique). MerkleProof uses it for its keys; it does
// not check for an empty list, and verify runs its own equivalent loop over
// its leaves.
func checkSorted(keys []Hash256) error {
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			return ErrNonIncreasingKeys
		}
	}
	return nil
}

// MerkleProof constructs a proof of inclusion for keys, which must be
// sorted in strictly increasing byte-lexicographic order with no
// duplicates. The proof covers the tree's current (root, store) state.
func (t *Tree) MerkleProof(ctx context.Context, keys []Hash256) (*MerkleProof, error) {
	if len(keys) == 0 {
		// A vacuous proof only makes sense against the empty tree; asking
		// for one against a populated tree is almost certainly caller
		// error, not a deliberate non-claim, so it is rejected rather than
		// silently handed back a proof that verifies against any root.
		if !t.root.IsZero() {
			return nil, ErrEmptyKeys
		}
		return &MerkleProof{}, nil
	}
	if err := checkSorted(keys); err != nil {
		return nil, err
	}

	entries := make([]foldEntry, len(keys))
	bitmap := make([]Hash256, len(keys))
	for i, key := range keys {
		digest, err := t.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		entries[i] = foldEntry{prefix: key, digest: digest, leaves: []int{i}}
	}

	var path []Hash256
	for h := uint8(0); ; h++ {
		var next []foldEntry
		for i := 0; i < len(entries); {
			e := entries[i]
			if i+1 < len(entries) && sameParent(e.prefix, entries[i+1].prefix, h) {
				partner := entries[i+1]
				next = append(next, foldPair(t.hasher, e, partner, h))
				i += 2
				continue
			}

			branch, err := t.readBranch(ctx, e.prefix, int(h)+1)
			if err != nil {
				return nil, err
			}
			side := bitAt(e.prefix, h)
			sibling := branch.child(1 - side)
			if !sibling.IsZero() {
				path = append(path, sibling)
				for _, leaf := range e.leaves {
					bitmap[leaf].setBit(255 - int(h))
				}
			}
			next = append(next, foldLeaf(t.hasher, e, sibling, side, h))
			i++
		}
		entries = next
		if h == 255 {
			break
		}
	}

	if len(entries) != 1 || !entries[0].digest.Equal(t.root) {
		return nil, fmt.Errorf("%w: fold did not reach the current root", ErrCorruptedStore)
	}

	t.metrics.observeProof(len(keys), len(path))
	return &MerkleProof{leavesBitmap: bitmap, path: path}, nil
}

func foldPair(h Hasher, a, b foldEntry, height uint8) foldEntry {
	var left, right Hash256
	if bitAt(a.prefix, height) == 0 {
		left, right = a.digest, b.digest
	} else {
		left, right = b.digest, a.digest
	}
	leaves := make([]int, 0, len(a.leaves)+len(b.leaves))
	leaves = append(leaves, a.leaves...)
	leaves = append(leaves, b.leaves...)
	return foldEntry{
		prefix: maskLowBits(a.prefix, int(height)+1),
		digest: merge(h, left, right),
		leaves: leaves,
	}
}

func foldLeaf(h Hasher, e foldEntry, sibling Hash256, side int, height uint8) foldEntry {
	var left, right Hash256
	if side == 0 {
		left, right = e.digest, sibling
	} else {
		left, right = sibling, e.digest
	}
	return foldEntry{
		prefix: maskLowBits(e.prefix, int(height)+1),
		digest: merge(h, left, right),
		leaves: e.leaves,
	}
}

// KeyDigest is a (key, leaf digest) pair verified against a MerkleProof.
type KeyDigest struct {
	Key    Hash256
	Digest Hash256
}

// Verify reports whether p proves that every (key, digest) pair in leaves,
// which must be sorted in strictly increasing order by Key with no
// duplicates, is present at the given root. It never panics on malformed
// input or a malformed proof: both produce a false result.
func (p *MerkleProof) Verify(hasher Hasher, root Hash256, leaves []KeyDigest) bool {
	ok, _ := p.verify(hasher, root, leaves)
	return ok
}

// verify is Verify's internal form, also returning a short, machine-readable
// rejection reason for logging.
func (p *MerkleProof) verify(hasher Hasher, root Hash256, leaves []KeyDigest) (bool, string) {
	if len(leaves) == 0 {
		if len(p.path) != 0 {
			return false, "non-empty proof for empty query"
		}
		return root.IsZero(), "empty query only verifies against the empty root"
	}
	for i := 1; i < len(leaves); i++ {
		if !leaves[i-1].Key.Less(leaves[i].Key) {
			return false, "leaves not sorted or not unique"
		}
	}
	if len(p.leavesBitmap) != len(leaves) {
		return false, "bitmap count does not match leaf count"
	}

	entries := make([]foldEntry, len(leaves))
	for i, l := range leaves {
		entries[i] = foldEntry{prefix: l.Key, digest: l.Digest, leaves: []int{i}}
	}

	pathIdx := 0
	for h := uint8(0); ; h++ {
		var next []foldEntry
		for i := 0; i < len(entries); {
			e := entries[i]
			if i+1 < len(entries) && sameParent(e.prefix, entries[i+1].prefix, h) {
				next = append(next, foldPair(hasher, e, entries[i+1], h))
				i += 2
				continue
			}

			side := bitAt(e.prefix, h)
			var sibling Hash256
			if p.leavesBitmap[e.leaves[0]].Bit(255-int(h)) == 1 {
				if pathIdx >= len(p.path) {
					return false, "path exhausted before fold completed"
				}
				sibling = p.path[pathIdx]
				pathIdx++
			}
			next = append(next, foldLeaf(hasher, e, sibling, side, h))
			i++
		}
		entries = next
		if h == 255 {
			break
		}
	}

	if pathIdx != len(p.path) {
		return false, "path not fully consumed"
	}
	if len(entries) != 1 {
		return false, "fold did not converge to a single root"
	}
	if !entries[0].digest.Equal(root) {
		return false, "root mismatch"
	}
	return true, ""
}

// Marshal encodes p in the normative wire format: a big-endian leaf count,
// one 32-byte bitmap per leaf in sorted order, a big-endian path length, and
// the path itself as that many 32-byte digests.
func (p *MerkleProof) Marshal() []byte {
	out := make([]byte, 0, 4+len(p.leavesBitmap)*32+4+len(p.path)*32)
	out = binary.BigEndian.AppendUint32(out, uint32(len(p.leavesBitmap)))
	for _, b := range p.leavesBitmap {
		out = append(out, b[:]...)
	}
	out = binary.BigEndian.AppendUint32(out, uint32(len(p.path)))
	for _, s := range p.path {
		out = append(out, s[:]...)
	}
	return out
}

// Unmarshal decodes a proof previously produced by Marshal.
func Unmarshal(data []byte) (*MerkleProof, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: truncated leaf count", ErrCorruptedProof)
	}
	leavesCount := binary.BigEndian.Uint32(data)
	data = data[4:]

	if len(data) < int(leavesCount)*32 {
		return nil, fmt.Errorf("%w: truncated bitmap", ErrCorruptedProof)
	}
	bitmap := make([]Hash256, leavesCount)
	for i := range bitmap {
		copy(bitmap[i][:], data[:32])
		data = data[32:]
	}

	if len(data) < 4 {
		return nil, fmt.Errorf("%w: truncated path length", ErrCorruptedProof)
	}
	pathLen := binary.BigEndian.Uint32(data)
	data = data[4:]

	if len(data) != int(pathLen)*32 {
		return nil, fmt.Errorf("%w: path length does not match remaining bytes", ErrCorruptedProof)
	}
	path := make([]Hash256, pathLen)
	for i := range path {
		copy(path[i][:], data[:32])
		data = data[32:]
	}

	return &MerkleProof{leavesBitmap: bitmap, path: path}, nil
}
