package csmt

import (
	"context"
	"fmt"
	"log/slog"
)

// Tree is a compacted sparse Merkle tree over 256-bit keys. It is
// single-writer: callers must not mutate a Tree concurrently with any other
// operation on it, though concurrent reads of a Tree that is not being
// mutated are fine. There is no internal synchronization, matching the
// single-threaded contract of the algorithm this package implements.
type Tree struct {
	hasher Hasher
	store  NodeStore

	// root is merge(rootBranch.Left, rootBranch.Right), cached for O(1)
	// Root(). rootBranch is the tree's one height-256 branch: the pair of
	// subtrees the root itself splits into. Because NodeStore's domain is
	// capped at height 255 (see InternalKey), this single topmost branch
	// is kept directly on Tree rather than routed through the store.
	root       Hash256
	rootBranch BranchNode

	log     *slog.Logger
	metrics *Metrics
}

// NewTree returns an empty Tree (root() == Hash256{}) using hasher for all
// digests and store for all persisted branches.
func NewTree(hasher Hasher, store NodeStore, opts ...Option) *Tree {
	t := &Tree{
		hasher: hasher,
		store:  store,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Root returns the tree's current root digest.
func (t *Tree) Root() Hash256 {
	return t.root
}

// RootBranch returns the tree's height-256 branch: the pair of subtrees the
// root splits into. Unlike every other branch, this one is never persisted
// to the NodeStore, so a caller that wants a Tree's state to survive across
// process restarts must save RootBranch itself and restore it via
// WithRootBranch when reopening the same store.
func (t *Tree) RootBranch() BranchNode {
	return t.rootBranch
}

// readBranch returns the branch stored at (key, height), where height is in
// [1, 256]. Height 256 is the tree's own cached rootBranch; any other
// height is read from the NodeStore, with a miss treated as the sentinel
// empty branch rather than an error; a stored (zero, zero) branch is
// reported as ErrCorruptedStore. height is an int, not a uint8, because
// 256 itself must be representable.
func (t *Tree) readBranch(ctx context.Context, key Hash256, height int) (BranchNode, error) {
	if height == 256 {
		return t.rootBranch, nil
	}
	node, ok, err := t.store.Get(ctx, NewInternalKey(key, uint8(height)))
	if err != nil {
		return BranchNode{}, fmt.Errorf("csmt: reading node store: %w", err)
	}
	if !ok {
		return BranchNode{}, nil
	}
	if node.Left.IsZero() && node.Right.IsZero() {
		return BranchNode{}, fmt.Errorf("%w: (zero, zero) branch at height %d", ErrCorruptedStore, height)
	}
	return node, nil
}

// writeBranch stores node at (key, height), or deletes the entry if node is
// the fully empty (zero, zero) branch. Height 256 instead updates the
// tree's cached rootBranch directly, which may legitimately be one-sided
// (the whole tree has a single populated leaf).
//
// A one-sided branch below height 256 is still stored: the node store's
// entries are addressed by fixed height, not by variable-length skip
// distance, so a future insert that diverges from this key partway down
// needs to find this exact BranchNode to merge against. What the zero-zero
// deletion buys is the other half of compaction: a genuinely empty subtree,
// however many heights deep, never costs a store entry, and a proof never
// spends a merkle_path byte on a sibling that merge would absorb for free.
//
// height is an int, not a uint8, for the same reason as readBranch: 256
// must be representable.
func (t *Tree) writeBranch(ctx context.Context, key Hash256, height int, node BranchNode) error {
	if height == 256 {
		t.rootBranch = node
		return nil
	}
	ik := NewInternalKey(key, uint8(height))
	if node.Left.IsZero() && node.Right.IsZero() {
		if err := t.store.Remove(ctx, ik); err != nil {
			return fmt.Errorf("csmt: removing node: %w", err)
		}
		return nil
	}
	if err := t.store.Insert(ctx, ik, node); err != nil {
		return fmt.Errorf("csmt: storing node: %w", err)
	}
	return nil
}

// Update sets the leaf at key to value, mutating the tree's root and node
// store. Updating a key to the value it already holds is a no-op on the
// resulting (root, store). Updating a key to Hash256{} deletes it.
func (t *Tree) Update(ctx context.Context, key, value Hash256) error {
	t.metrics.observeUpdate()

	// A zero value leaves an empty leaf, so the path collapses back to what
	// it was before the key was written.
	var leaf Hash256
	if !value.IsZero() {
		leaf = leafDigest(t.hasher, key, value)
	}

	var siblings [256]Hash256
	for h := range 256 {
		parent, err := t.readBranch(ctx, key, h+1)
		if err != nil {
			return err
		}
		siblings[h] = parent.child(1 - bitAt(key, uint8(h)))
	}

	cur := leaf
	for h := range 256 {
		var node BranchNode
		if bitAt(key, uint8(h)) == 0 {
			node = BranchNode{Left: cur, Right: siblings[h]}
		} else {
			node = BranchNode{Left: siblings[h], Right: cur}
		}
		if err := t.writeBranch(ctx, key, h+1, node); err != nil {
			return err
		}
		cur = merge(t.hasher, node.Left, node.Right)
	}
	t.root = cur

	t.log.DebugContext(ctx, "updated leaf", "key", key, "root", t.root)
	return nil
}

// Get returns the leaf digest stored at key, or Hash256{} if key's subtree
// is empty. It returns the digest produced by leaf encoding, not the
// original value passed to Update: a caller that needs the value back must
// keep its own key-to-value index.
func (t *Tree) Get(ctx context.Context, key Hash256) (Hash256, error) {
	t.metrics.observeGet()

	cur := t.rootBranch.child(bitAt(key, 255))
	for h := 254; h >= 0; h-- {
		if cur.IsZero() {
			return Hash256{}, nil
		}
		height := uint8(h) + 1
		node, ok, err := t.store.Get(ctx, NewInternalKey(key, height))
		if err != nil {
			return Hash256{}, fmt.Errorf("csmt: reading node store: %w", err)
		}
		if !ok {
			// A missing branch means both its children are empty, so
			// whatever digest we carried down from the level above is
			// already final: the leaf at this path if non-zero, or
			// nothing at all. This is unreachable along a path Update
			// actually populated; it only guards a tampered store.
			return cur, nil
		}
		cur = node.child(bitAt(key, uint8(h)))
	}
	return cur, nil
}

// VerifyProof checks p against root and leaves using this tree's hasher,
// logging the rejection reason at debug level on failure. It does not read
// t's own state otherwise, so it is safe to call with a proof and root that
// came from elsewhere.
func (t *Tree) VerifyProof(ctx context.Context, p *MerkleProof, root Hash256, leaves []KeyDigest) bool {
	ok, reason := p.verify(t.hasher, root, leaves)
	if !ok {
		t.log.DebugContext(ctx, "proof verification failed", "reason", reason)
	}
	return ok
}
