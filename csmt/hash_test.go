package csmt

import (
	"math/rand/v2"
	"testing"
)

func fatalIfErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func randomHash256(r *rand.Rand) Hash256 {
	var h Hash256
	for i := 0; i < len(h); i += 8 {
		b := r.Uint64()
		for j := 0; j < 8 && i+j < len(h); j++ {
			h[i+j] = byte(b >> (8 * j))
		}
	}
	return h
}

func TestHash256Bit(t *testing.T) {
	var h Hash256
	h[0] = 0b1000_0000 // MSB of byte 0 set
	h[31] = 0b0000_0001 // LSB of byte 31 set

	if got := h.Bit(0); got != 1 {
		t.Errorf("Bit(0) = %d, want 1", got)
	}
	if got := h.Bit(1); got != 0 {
		t.Errorf("Bit(1) = %d, want 0", got)
	}
	if got := h.Bit(255); got != 1 {
		t.Errorf("Bit(255) = %d, want 1", got)
	}
	if got := h.Bit(254); got != 0 {
		t.Errorf("Bit(254) = %d, want 0", got)
	}
}

func TestHash256SetBit(t *testing.T) {
	var h Hash256
	h.setBit(0)
	h.setBit(255)
	if h.Bit(0) != 1 || h.Bit(255) != 1 {
		t.Fatal("setBit did not set the expected bits")
	}
	for i := 1; i < 255; i++ {
		if h.Bit(i) != 0 {
			t.Fatalf("unexpected bit %d set", i)
		}
	}
}

func TestHash256Less(t *testing.T) {
	a := Hash256{0x00}
	b := Hash256{0x01}
	if !a.Less(b) {
		t.Fatal("expected a < b")
	}
	if b.Less(a) {
		t.Fatal("expected b not< a")
	}
	if a.Less(a) {
		t.Fatal("expected a not< a")
	}
}

func TestMergeAbsorbsZero(t *testing.T) {
	h := BLAKE3()
	r := rand.New(rand.NewPCG(1, 2))
	x := randomHash256(r)

	if got := merge(h, Hash256{}, Hash256{}); !got.IsZero() {
		t.Errorf("merge(0,0) = %v, want zero", got)
	}
	if got := merge(h, x, Hash256{}); got != x {
		t.Errorf("merge(x,0) = %v, want %v", got, x)
	}
	if got := merge(h, Hash256{}, x); got != x {
		t.Errorf("merge(0,x) = %v, want %v", got, x)
	}
}

func TestMergeNonZeroIsDomainSeparatedFromLeaf(t *testing.T) {
	h := BLAKE3()
	r := rand.New(rand.NewPCG(3, 4))
	a, b := randomHash256(r), randomHash256(r)

	internal := merge(h, a, b)
	leaf := leafDigest(h, a, b)
	if internal == leaf {
		t.Fatal("internal merge and leaf digest collided for the same inputs")
	}
}

func TestLeafDigestBindsKey(t *testing.T) {
	h := BLAKE3()
	r := rand.New(rand.NewPCG(5, 6))
	key1, key2 := randomHash256(r), randomHash256(r)
	value := randomHash256(r)

	if key1 == key2 {
		t.Skip("randomly drew equal keys")
	}
	if leafDigest(h, key1, value) == leafDigest(h, key2, value) {
		t.Fatal("leaf digests collided across distinct keys with the same value")
	}
}

func TestHashersProduce32Bytes(t *testing.T) {
	for name, h := range map[string]Hasher{"blake3": BLAKE3(), "turboshake128": TurboShake128()} {
		d := h.New()
		d.Write([]byte("csmt"))
		sum := d.Sum()
		if len(sum) != 32 {
			t.Errorf("%s: Sum() has length %d, want 32", name, len(sum))
		}
	}
}
