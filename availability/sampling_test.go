package availability

import (
	"testing"

	"archimedes/group"
	"archimedes/merkle"
)

func testParams() Params { return Params{K: 4, N: 8, S: 5} }

func buildSession(t *testing.T) (*Session, []Chunk, merkle.Digest) {
	t.Helper()
	data := scalars(1, 2, 3, 4, 5, 6, 7, 8)
	tree, chunks, err := ChunkRoot(data, testParams())
	if err != nil {
		t.Fatalf("ChunkRoot: %v", err)
	}
	sess, err := Open([16]byte{1}, tree.Root(), testParams(), []byte("agg-point"), []byte("verifier-nonce"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess, chunks, tree.Root()
}

func answerAll(t *testing.T, sess *Session, chunks []Chunk, tree *merkle.Tree) {
	t.Helper()
	for _, idx := range sess.SampledIndices {
		path, err := tree.Path(idx)
		if err != nil {
			t.Fatalf("Path(%d): %v", idx, err)
		}
		if err := sess.Answer(Response{Chunk: chunks[idx], Path: path}); err != nil {
			t.Fatalf("Answer(%d): %v", idx, err)
		}
	}
}

func TestSamplingVerdictAcceptsHonestResponses(t *testing.T) {
	data := scalars(1, 2, 3, 4, 5, 6, 7, 8)
	tree, chunks, err := ChunkRoot(data, testParams())
	if err != nil {
		t.Fatalf("ChunkRoot: %v", err)
	}
	sess, err := Open([16]byte{1}, tree.Root(), testParams(), []byte("agg-point"), []byte("verifier-nonce"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	answerAll(t, sess, chunks, tree)
	if !sess.Verdict() {
		t.Fatal("Verdict must accept a fully and correctly answered session")
	}
}

func TestSamplingVerdictRejectsMissingResponse(t *testing.T) {
	sess, chunks, root := buildSession(t)
	tree, _, err := ChunkRoot(scalars(1, 2, 3, 4, 5, 6, 7, 8), testParams())
	if err != nil {
		t.Fatalf("ChunkRoot: %v", err)
	}
	if tree.Root() != root {
		t.Fatal("test setup: chunk_root should be reproducible from the same data")
	}
	for i, idx := range sess.SampledIndices {
		if i == 0 {
			if err := sess.Answer(Response{Chunk: Chunk{Index: uint64(idx)}, Missing: true}); err != nil {
				t.Fatalf("Answer: %v", err)
			}
			continue
		}
		path, err := tree.Path(idx)
		if err != nil {
			t.Fatalf("Path(%d): %v", idx, err)
		}
		if err := sess.Answer(Response{Chunk: chunks[idx], Path: path}); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}
	if sess.Verdict() {
		t.Fatal("Verdict must reject a session with even one missing response")
	}
}

func TestSamplingVerdictRejectsTamperedChunk(t *testing.T) {
	sess, chunks, _ := buildSession(t)
	tree, _, err := ChunkRoot(scalars(1, 2, 3, 4, 5, 6, 7, 8), testParams())
	if err != nil {
		t.Fatalf("ChunkRoot: %v", err)
	}
	for i, idx := range sess.SampledIndices {
		c := chunks[idx]
		path, err := tree.Path(idx)
		if err != nil {
			t.Fatalf("Path(%d): %v", idx, err)
		}
		if i == 0 {
			c.Data = append([]group.Scalar(nil), c.Data...)
			c.Data[0] = group.AddScalars(c.Data[0], group.ScalarFromUint64(1))
		}
		if err := sess.Answer(Response{Chunk: c, Path: path}); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}
	if sess.Verdict() {
		t.Fatal("Verdict must reject a tampered chunk even with a syntactically valid path")
	}
}

func TestOpenIsDeterministicForSameSeed(t *testing.T) {
	root := merkle.Digest{1, 2, 3}
	s1, err := Open([16]byte{1}, root, testParams(), []byte("agg"), []byte("nonce"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s2, err := Open([16]byte{2}, root, testParams(), []byte("agg"), []byte("nonce"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(s1.SampledIndices) != len(s2.SampledIndices) {
		t.Fatal("same (aggPoint, nonce) must yield the same number of sampled indices")
	}
	for i := range s1.SampledIndices {
		if s1.SampledIndices[i] != s2.SampledIndices[i] {
			t.Fatal("same (aggPoint, nonce) must yield the same sampled indices regardless of session_id")
		}
	}
}
