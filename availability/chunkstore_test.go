package availability

import "testing"

func TestChunkStorePutGetRoundTrip(t *testing.T) {
	cs := NewChunkStore(1 << 20)
	c := Chunk{Index: 0, Data: scalars(1, 2, 3)}
	id, err := cs.Put(c)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, ok := cs.Get(id)
	if !ok {
		t.Fatal("expected the stored chunk to be retrievable")
	}
	if len(data) == 0 {
		t.Fatal("stored chunk data must not be empty")
	}
}

func TestChunkStoreDeduplicatesIdenticalChunks(t *testing.T) {
	cs := NewChunkStore(1 << 20)
	c := Chunk{Index: 1, Data: scalars(9, 9, 9)}
	id1, err := cs.Put(c)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	sizeAfterFirst := cs.Size()
	id2, err := cs.Put(c)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id1 != id2 {
		t.Fatal("identical chunks must map to the same ContentID")
	}
	if cs.Size() != sizeAfterFirst {
		t.Fatal("storing an identical chunk again must not grow storage")
	}
}

func TestChunkStoreReleaseEvictsAtZeroRefs(t *testing.T) {
	cs := NewChunkStore(1 << 20)
	c := Chunk{Index: 2, Data: scalars(5)}
	id, err := cs.Put(c)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	cs.Release(id)
	if _, ok := cs.Get(id); ok {
		t.Fatal("expected the chunk to be evicted after its only reference is released")
	}
	if cs.Size() != 0 {
		t.Fatal("expected storage to be empty after eviction")
	}
}

func TestChunkStoreRejectsOverCapacity(t *testing.T) {
	cs := NewChunkStore(4)
	c := Chunk{Index: 0, Data: scalars(1, 2, 3, 4, 5, 6, 7, 8)}
	if _, err := cs.Put(c); err == nil {
		t.Fatal("expected an error storing a chunk larger than the store's capacity")
	}
}
