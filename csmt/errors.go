package csmt

import "errors"

// Sentinel errors, in the same style as mpt.ErrNodeNotFound and
// internal/witness's package-level err variables: exported where a caller
// needs errors.Is, unexported where the failure is purely internal.
var (
	// ErrEmptyKeys is returned by MerkleProof when called with no keys at
	// all against a tree whose root is non-zero. Verify has no error
	// return; its analogous case (an empty leaf list checked against a
	// non-zero root) is simply a verification failure.
	ErrEmptyKeys = errors.New("csmt: empty key list")

	// ErrNonIncreasingKeys is returned when the keys passed to MerkleProof
	// are not strictly increasing: either out of order or containing a
	// duplicate. Verify has no error return; leaves in that state simply
	// fail to verify. Callers must sort and deduplicate themselves; this
	// package never does it silently.
	ErrNonIncreasingKeys = errors.New("csmt: keys are not sorted and unique")

	// ErrCorruptedProof is returned by Unmarshal when the encoded proof is
	// truncated or its declared path length does not match the remaining
	// bytes. Verify reports an inconsistent bitmap and path (the path is
	// exhausted before the fold completes, or entries remain after it
	// does) as a verification failure, not as this error.
	ErrCorruptedProof = errors.New("csmt: corrupted proof")

	// ErrCorruptedStore is returned when a BranchNode read from a
	// NodeStore by Update or MerkleProof fails a basic sanity check (both
	// children zero), and by MerkleProof when its fold does not reach the
	// tree's current root. This indicates a bug in the store
	// implementation or tampered storage, not ordinary caller misuse.
	ErrCorruptedStore = errors.New("csmt: corrupted node store")
)
