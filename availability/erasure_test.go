package availability

import (
	"testing"

	"archimedes/group"
)

func scalars(vals ...uint64) []group.Scalar {
	out := make([]group.Scalar, len(vals))
	for i, v := range vals {
		out[i] = group.ScalarFromUint64(v)
	}
	return out
}

func TestEncodeDecodeRoundTripFromSourceChunks(t *testing.T) {
	data := scalars(1, 2, 3, 4, 5, 6, 7, 8)
	chunks, err := Encode(data, 4, 8)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(chunks) != 8 {
		t.Fatalf("expected 8 chunks, got %d", len(chunks))
	}
	got, err := Decode(chunks[:4], 4, len(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertScalarsEqual(t, data, got)
}

func TestEncodeDecodeRoundTripFromParityChunks(t *testing.T) {
	data := scalars(10, 20, 30, 40)
	chunks, err := Encode(data, 4, 8)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Reconstruct using only parity chunks (indices 4..7), none of the
	// systematic source chunks.
	got, err := Decode(chunks[4:8], 4, len(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertScalarsEqual(t, data, got)
}

func TestEncodeDecodeRoundTripFromMixedChunks(t *testing.T) {
	data := scalars(100, 200, 300, 400, 500, 600)
	chunks, err := Encode(data, 3, 6)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mixed := []Chunk{chunks[1], chunks[3], chunks[5]}
	got, err := Decode(mixed, 3, len(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertScalarsEqual(t, data, got)
}

func TestDecodeInsufficientChunks(t *testing.T) {
	data := scalars(1, 2, 3, 4)
	chunks, err := Encode(data, 4, 8)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(chunks[:2], 4, len(data)); err == nil {
		t.Fatal("expected an error decoding from fewer than k chunks")
	}
}

func TestEncodeInvalidParams(t *testing.T) {
	if _, err := Encode(scalars(1), 0, 4); err == nil {
		t.Fatal("expected an error for k=0")
	}
	if _, err := Encode(scalars(1), 4, 4); err == nil {
		t.Fatal("expected an error when n <= k")
	}
}

func assertScalarsEqual(t *testing.T, want, got []group.Scalar) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("length mismatch: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if !w.Equal(&g) {
			t.Fatalf("scalar %d mismatch", i)
		}
	}
}
