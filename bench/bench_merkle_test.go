package bench

import (
	"encoding/binary"
	"testing"

	"archimedes/merkle"
)

func leavesForBench(n int) [][]byte {
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(i))
		out[i] = buf
	}
	return out
}

func BenchmarkBuild1024(b *testing.B) {
	leaves := leavesForBench(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		merkle.Build(leaves)
	}
}

func BenchmarkPath1024(b *testing.B) {
	leaves := leavesForBench(1024)
	tree := merkle.Build(leaves)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tree.Path(i % 1024); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerifyPath1024(b *testing.B) {
	leaves := leavesForBench(1024)
	tree := merkle.Build(leaves)
	root := tree.Root()
	path, err := tree.Path(512)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !merkle.VerifyPath(leaves[512], path, root, 512) {
			b.Fatal("VerifyPath returned false")
		}
	}
}
