package availability

import (
	"archimedes/errs"

	"golang.org/x/crypto/sha3"
)

// ContentID addresses a stored chunk by the SHAKE-256 digest of its wire
// bytes, so two proposers that encode the same commitment vector converge
// on identical storage keys without coordinating (§4.5 supplement, grounded
// on the original content-addressed store).
type ContentID [32]byte

func contentIDOf(data []byte) ContentID {
	var id ContentID
	x := sha3.NewShake256()
	x.Write(data)
	x.Read(id[:])
	return id
}

type storedChunk struct {
	data []byte
	refs uint32
}

// ChunkStore is a reference-counted, size-bounded content-addressed cache
// of encoded chunks, so a proposer answering many overlapping availability
// sessions for the same chunk_root doesn't re-encode or duplicate storage.
type ChunkStore struct {
	maxSize     int
	currentSize int
	entries     map[ContentID]*storedChunk
}

// NewChunkStore returns an empty store capped at maxSize bytes of live
// content.
func NewChunkStore(maxSize int) *ChunkStore {
	return &ChunkStore{maxSize: maxSize, entries: map[ContentID]*storedChunk{}}
}

// Put stores c (keyed by the hash of its wire encoding) and returns its
// ContentID. Storing an already-present chunk just bumps its reference
// count.
func (cs *ChunkStore) Put(c Chunk) (ContentID, error) {
	data := chunkBytes(c)
	id := contentIDOf(data)
	if existing, ok := cs.entries[id]; ok {
		existing.refs++
		return id, nil
	}
	if cs.currentSize+len(data) > cs.maxSize {
		return ContentID{}, errs.Wrap(errs.Transient, errs.OffenderNone, "availability.ChunkStore.Put",
			"store full: %d+%d > %d", cs.currentSize, len(data), cs.maxSize)
	}
	cs.entries[id] = &storedChunk{data: data, refs: 1}
	cs.currentSize += len(data)
	return id, nil
}

// Get retrieves the raw wire bytes stored under id.
func (cs *ChunkStore) Get(id ContentID) ([]byte, bool) {
	e, ok := cs.entries[id]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Release drops one reference to id, evicting it once the count reaches
// zero.
func (cs *ChunkStore) Release(id ContentID) {
	e, ok := cs.entries[id]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
	if e.refs == 0 {
		cs.currentSize -= len(e.data)
		delete(cs.entries, id)
	}
}

// Size returns the total bytes of live (referenced) content.
func (cs *ChunkStore) Size() int { return cs.currentSize }
