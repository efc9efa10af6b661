package csmt

import (
	"context"
	"math/rand/v2"
	"testing"
)

// testAllHashers runs f against every concrete Hasher this package ships,
// mirroring mpt/tree_test.go's testAllStorage harness but over hash
// capabilities instead of storage backends.
func testAllHashers(t *testing.T, f func(t *testing.T, h Hasher)) {
	t.Helper()
	for name, h := range map[string]Hasher{"blake3": BLAKE3(), "turboshake128": TurboShake128()} {
		t.Run(name, func(t *testing.T) { f(t, h) })
	}
}

func TestEmptyTreeRootIsZero(t *testing.T) {
	testAllHashers(t, func(t *testing.T, h Hasher) {
		tree := NewTree(h, NewMemoryStore())
		if !tree.Root().IsZero() {
			t.Fatal("new tree has non-zero root")
		}
	})
}

func TestSingleLeafRootMatchesLeafDigest(t *testing.T) {
	testAllHashers(t, func(t *testing.T, h Hasher) {
		ctx := context.Background()
		tree := NewTree(h, NewMemoryStore())
		var key, value Hash256
		value[31] = 0x01

		fatalIfErr(t, tree.Update(ctx, key, value))

		want := leafDigest(h, key, value)
		if tree.Root() != want {
			t.Fatalf("root = %v, want %v", tree.Root(), want)
		}
	})
}

func TestTwoAdjacentLeavesMergeAtHeightZero(t *testing.T) {
	testAllHashers(t, func(t *testing.T, h Hasher) {
		ctx := context.Background()
		tree := NewTree(h, NewMemoryStore())

		var k0, k1, v Hash256
		k1[31] = 0x01
		v[31] = 0x2a

		fatalIfErr(t, tree.Update(ctx, k0, v))
		fatalIfErr(t, tree.Update(ctx, k1, v))

		leaf0 := leafDigest(h, k0, v)
		leaf1 := leafDigest(h, k1, v)
		want := merge(h, leaf0, leaf1)
		if tree.Root() != want {
			t.Fatalf("root = %v, want %v", tree.Root(), want)
		}
	})
}

func TestTwoDistantLeavesMergeAtHeight255(t *testing.T) {
	testAllHashers(t, func(t *testing.T, h Hasher) {
		ctx := context.Background()
		tree := NewTree(h, NewMemoryStore())

		var k0, k1, v Hash256
		k1[0] = 0x80
		v[31] = 0x2a

		fatalIfErr(t, tree.Update(ctx, k0, v))
		fatalIfErr(t, tree.Update(ctx, k1, v))

		leaf0 := leafDigest(h, k0, v)
		leaf1 := leafDigest(h, k1, v)
		want := merge(h, leaf0, leaf1)
		if tree.Root() != want {
			t.Fatalf("root = %v, want %v", tree.Root(), want)
		}
	})
}

func TestUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	r := rand.New(rand.NewPCG(100, 200))
	tree := NewTree(h, NewMemoryStore())

	for i := 0; i < 50; i++ {
		key, value := randomHash256(r), randomHash256(r)
		fatalIfErr(t, tree.Update(ctx, key, value))
		before := tree.Root()
		fatalIfErr(t, tree.Update(ctx, key, value))
		if tree.Root() != before {
			t.Fatalf("repeating Update(%v, %v) changed the root", key, value)
		}
	}
}

func TestGetReturnsLastWrittenDigest(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	r := rand.New(rand.NewPCG(101, 201))
	tree := NewTree(h, NewMemoryStore())

	key := randomHash256(r)
	var last Hash256
	for i := 0; i < 5; i++ {
		last = randomHash256(r)
		fatalIfErr(t, tree.Update(ctx, key, last))
	}

	got, err := tree.Get(ctx, key)
	fatalIfErr(t, err)
	want := leafDigest(h, key, last)
	if got != want {
		t.Fatalf("Get returned %v, want %v", got, want)
	}
}

func TestGetOnEmptyKeyIsZero(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	r := rand.New(rand.NewPCG(102, 202))
	tree := NewTree(h, NewMemoryStore())

	// Populate some unrelated keys, then query one that was never written.
	for i := 0; i < 20; i++ {
		fatalIfErr(t, tree.Update(ctx, randomHash256(r), randomHash256(r)))
	}
	got, err := tree.Get(ctx, randomHash256(r))
	fatalIfErr(t, err)
	if !got.IsZero() {
		t.Fatalf("Get on an unwritten key = %v, want zero", got)
	}
}

func TestDeletionRestoresPriorRoot(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	r := rand.New(rand.NewPCG(103, 203))
	tree := NewTree(h, NewMemoryStore())

	for i := 0; i < 30; i++ {
		fatalIfErr(t, tree.Update(ctx, randomHash256(r), randomHash256(r)))
	}
	before := tree.Root()

	key, value := randomHash256(r), randomHash256(r)
	fatalIfErr(t, tree.Update(ctx, key, value))
	fatalIfErr(t, tree.Update(ctx, key, Hash256{}))

	if tree.Root() != before {
		t.Fatalf("root after insert-then-delete = %v, want %v", tree.Root(), before)
	}
}

func TestOrderIndependenceOfConstruction(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	r := rand.New(rand.NewPCG(104, 204))

	const n = 300
	type kv struct{ key, value Hash256 }
	pairs := make([]kv, n)
	for i := range pairs {
		pairs[i] = kv{randomHash256(r), randomHash256(r)}
	}

	forward := NewTree(h, NewMemoryStore())
	for _, p := range pairs {
		fatalIfErr(t, forward.Update(ctx, p.key, p.value))
	}

	reverse := NewTree(h, NewMemoryStore())
	for i := len(pairs) - 1; i >= 0; i-- {
		fatalIfErr(t, reverse.Update(ctx, pairs[i].key, pairs[i].value))
	}

	shuffled := append([]kv(nil), pairs...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	random := NewTree(h, NewMemoryStore())
	for _, p := range shuffled {
		fatalIfErr(t, random.Update(ctx, p.key, p.value))
	}

	if forward.Root() != reverse.Root() {
		t.Fatal("forward and reverse insertion order produced different roots")
	}
	if forward.Root() != random.Root() {
		t.Fatal("forward and shuffled insertion order produced different roots")
	}
}

func TestCompactnessNoFullyEmptyBranchIsStored(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	r := rand.New(rand.NewPCG(105, 205))
	store := NewMemoryStore().(*memStore)
	tree := NewTree(h, store)

	for i := 0; i < 50; i++ {
		fatalIfErr(t, tree.Update(ctx, randomHash256(r), randomHash256(r)))
	}
	for ik, node := range store.nodes {
		if node.Left.IsZero() && node.Right.IsZero() {
			t.Fatalf("store holds a (zero, zero) branch at %+v", ik)
		}
	}
}

func TestCompactnessDeletionEmptiesStore(t *testing.T) {
	ctx := context.Background()
	h := BLAKE3()
	store := NewMemoryStore().(*memStore)
	tree := NewTree(h, store)

	var key, value Hash256
	value[31] = 0x01
	fatalIfErr(t, tree.Update(ctx, key, value))
	fatalIfErr(t, tree.Update(ctx, key, Hash256{}))

	if len(store.nodes) != 0 {
		t.Fatalf("store has %d entries after inserting then deleting the only key, want 0", len(store.nodes))
	}
}
