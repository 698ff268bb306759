package availability

import (
	"archimedes/errs"
	"archimedes/group"
	"archimedes/merkle"
	"archimedes/transcript"
)

// Params fixes the systematic Reed-Solomon shape and the sampling
// aggressiveness for one commitment vector: K source chunks extended to N
// total, S samples drawn per verifier.
type Params struct {
	K int
	N int
	S int
}

// DefaultParams matches §4.5's worked example: k/N = 1/2, s = 30, giving a
// withholding-detection failure probability < 2⁻³⁰.
var DefaultParams = Params{K: 16, N: 32, S: 30}

// ChunkRoot builds all N chunks for data and returns the tree that commits
// to them, published alongside the aggregate as chunk_root.
func ChunkRoot(data []group.Scalar, p Params) (*merkle.Tree, []Chunk, error) {
	chunks, err := Encode(data, p.K, p.N)
	if err != nil {
		return nil, nil, err
	}
	leaves := make([][]byte, len(chunks))
	for i, c := range chunks {
		leaves[i] = chunkBytes(c)
	}
	return merkle.Build(leaves), chunks, nil
}

func chunkBytes(c Chunk) []byte {
	out := make([]byte, 0, 8+32*len(c.Data))
	var idx [8]byte
	idx[0] = byte(c.Index)
	idx[1] = byte(c.Index >> 8)
	idx[2] = byte(c.Index >> 16)
	idx[3] = byte(c.Index >> 24)
	idx[4] = byte(c.Index >> 32)
	idx[5] = byte(c.Index >> 40)
	idx[6] = byte(c.Index >> 48)
	idx[7] = byte(c.Index >> 56)
	out = append(out, idx[:]...)
	for _, s := range c.Data {
		b := group.ScalarBytes(s)
		out = append(out, b[:]...)
	}
	return out
}

func decodeChunkBytes(data []byte) (Chunk, error) {
	if len(data) < 8 || (len(data)-8)%32 != 0 {
		return Chunk{}, errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "availability.decodeChunkBytes",
			"malformed chunk encoding: %d bytes", len(data))
	}
	var index uint64
	for i := 7; i >= 0; i-- {
		index = index<<8 | uint64(data[i])
	}
	n := (len(data) - 8) / 32
	values := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		var b [32]byte
		copy(b[:], data[8+32*i:8+32*(i+1)])
		values[i] = group.ScalarFromBytes(b)
	}
	return Chunk{Index: index, Data: values}, nil
}

// PublishChunks stores every encoded chunk in store, keyed by content ID,
// so a proposer answering many concurrent AvailabilitySessions over the
// same chunk_root shares one cache instead of re-deriving or duplicating
// storage per session. The returned map lets RespondFromStore look a chunk
// back up by its index.
func PublishChunks(store *ChunkStore, chunks []Chunk) (map[uint64]ContentID, error) {
	ids := make(map[uint64]ContentID, len(chunks))
	for _, c := range chunks {
		id, err := store.Put(c)
		if err != nil {
			return nil, err
		}
		ids[c.Index] = id
	}
	return ids, nil
}

// RespondFromStore builds the Response a proposer sends for a sampled
// index, sourcing the chunk's wire bytes from store instead of holding the
// full chunk set live in memory, and re-deriving the Merkle opening from
// tree. A chunk that store no longer holds (evicted via Release, or never
// published) answers Missing rather than erroring, matching an honest
// proposer that simply doesn't have the data anymore.
func RespondFromStore(store *ChunkStore, tree *merkle.Tree, ids map[uint64]ContentID, index int) (Response, error) {
	id, ok := ids[uint64(index)]
	if !ok {
		return Response{Chunk: Chunk{Index: uint64(index)}, Missing: true}, nil
	}
	data, ok := store.Get(id)
	if !ok {
		return Response{Chunk: Chunk{Index: uint64(index)}, Missing: true}, nil
	}
	c, err := decodeChunkBytes(data)
	if err != nil {
		return Response{}, err
	}
	path, err := tree.Path(index)
	if err != nil {
		return Response{}, err
	}
	return Response{Chunk: c, Path: path}, nil
}

// Response is one proposer answer to a sampled chunk index: the chunk data
// plus its Merkle opening against chunk_root.
type Response struct {
	Chunk Chunk
	Path  []merkle.Digest
	// Missing marks a sample the proposer failed to answer before the
	// per-sample deadline (§4.5): an honest-baseline rejection trigger
	// distinct from a Merkle verification failure.
	Missing bool
}

// Session is one verifier's availability challenge against a published
// chunk_root, per the AvailabilitySession row: session_id, chunk_root, k,
// n, sampled_indices, responses.
type Session struct {
	SessionID     [16]byte
	ChunkRoot     merkle.Digest
	Params        Params
	SampledIndices []int
	Responses      []Response
}

// Open derives the sampled indices deterministically from the aggregate
// point and a verifier-chosen nonce, so any two honest verifiers challenging
// the same aggregate sample independently (§4.5).
func Open(sessionID [16]byte, chunkRoot merkle.Digest, p Params, aggPoint, verifierNonce []byte) (*Session, error) {
	t := transcript.New(nil)
	seed := t.SampleSeed(aggPoint, verifierNonce)
	indices, err := transcript.SampleIndices(seed, p.N, p.S)
	if err != nil {
		return nil, errs.New(errs.ProgrammerError, errs.OffenderNone, "availability.Open", err)
	}
	return &Session{SessionID: sessionID, ChunkRoot: chunkRoot, Params: p, SampledIndices: indices}, nil
}

// Answer records the proposer's response to one sampled index (r.Chunk.Index
// must always be set, even for a Missing response). Index must be one of
// s.SampledIndices; answering the same index twice overwrites the earlier
// response.
func (s *Session) Answer(r Response) error {
	found := false
	for _, idx := range s.SampledIndices {
		if idx == int(r.Chunk.Index) {
			found = true
			break
		}
	}
	if !found {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "availability.Answer",
			"index %d was not sampled", r.Chunk.Index)
	}
	s.Responses = append(s.Responses, r)
	return nil
}

// Verdict reports whether every sampled index was answered with a chunk
// that opens correctly against chunk_root. A single missing or invalid
// response fails the whole session: §4.5 makes availability a per-sample
// AND, not a majority vote.
func (s *Session) Verdict() bool {
	if len(s.Responses) < len(s.SampledIndices) {
		return false
	}
	answered := make(map[int]Response, len(s.Responses))
	for _, r := range s.Responses {
		answered[int(r.Chunk.Index)] = r
	}
	for _, idx := range s.SampledIndices {
		r, ok := answered[idx]
		if !ok || r.Missing {
			return false
		}
		if !merkle.VerifyPath(chunkBytes(r.Chunk), r.Path, s.ChunkRoot, idx) {
			return false
		}
	}
	return true
}
