// Package csmt implements a compacted sparse Merkle tree: an authenticated
// key-value dictionary over 256-bit keys, backed by a pluggable hash function
// and a pluggable node store, that produces compact inclusion proofs for one
// or many leaves at once.
//
// Chains of branch nodes with one empty child collapse for free in the
// digests, because the node-combining function passes a non-empty child
// straight through when its sibling is empty: no hashing is done for them
// and proofs spend no path entries on them. The node store does not shrink
// the same way: a one-sided branch is still stored at every height of a
// populated path, so storage is O(leaves · 256) entries. Only fully empty
// (zero, zero) branches occupy no store entry.
//
// This package is NOT STABLE, regardless of the module version, and the API
// may change without notice.
package csmt
