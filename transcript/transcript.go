// Package transcript implements the Fiat-Shamir transcript used to turn an
// interactive availability challenge into a seed a verifier can derive
// unilaterally (§4.5): seed = transcript(agg.point ‖ verifier_nonce). The
// XOF abstraction and SHAKE-256 backing follow the same pattern a PIOP
// Fiat-Shamir helper would use; the transcript itself is new, since
// ARCHIMEDES's single-seed sampling challenge is far simpler than a
// multi-round grinding transcript.
package transcript

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// XOF models an extendable-output function keyed by a label plus a sequence
// of byte-string parts.
type XOF interface {
	Expand(label string, parts ...[]byte) []byte
}

// Shake256XOF is the SHAKE-256 backed XOF used everywhere in this module.
type Shake256XOF struct {
	outLen int
}

// NewShake256XOF returns a XOF that emits outLen bytes per Expand call.
func NewShake256XOF(outLen int) Shake256XOF {
	if outLen <= 0 {
		panic("transcript: NewShake256XOF: outLen must be > 0")
	}
	return Shake256XOF{outLen: outLen}
}

// Expand keys a SHAKE-256 duplex with label then parts, and squeezes outLen
// bytes.
func (s Shake256XOF) Expand(label string, parts ...[]byte) []byte {
	h := sha3.NewShake256()
	var labelLen [8]byte
	binary.LittleEndian.PutUint64(labelLen[:], uint64(len(label)))
	h.Write(labelLen[:])
	h.Write([]byte(label))
	for _, p := range parts {
		var partLen [8]byte
		binary.LittleEndian.PutUint64(partLen[:], uint64(len(p)))
		h.Write(partLen[:])
		h.Write(p)
	}
	out := make([]byte, s.outLen)
	h.Read(out)
	return out
}

const sampleSeedLabel = "archimedes-availability-sample-seed"

// Transcript derives verifier-side pseudorandomness from public,
// already-committed values, so any two honest verifiers sampling the same
// (aggregate, nonce) pair pick the same chunk indices without talking to
// each other.
type Transcript struct {
	xof XOF
}

// New builds a Transcript over xof. A nil xof defaults to 32-byte SHAKE-256.
func New(xof XOF) *Transcript {
	if xof == nil {
		xof = NewShake256XOF(32)
	}
	return &Transcript{xof: xof}
}

// SampleSeed computes transcript(aggPoint ‖ verifierNonce).
func (t *Transcript) SampleSeed(aggPoint, verifierNonce []byte) [32]byte {
	out := t.xof.Expand(sampleSeedLabel, aggPoint, verifierNonce)
	var seed [32]byte
	copy(seed[:], out)
	return seed
}

// SampleIndices derives count distinct indices in [0, n) from seed by
// chained hashing: hash the running digest, take a big-endian uint64 modulo
// n, and re-hash for the next draw. Duplicate draws are skipped so a caller
// asking for count ≤ n indices always gets exactly count back.
func SampleIndices(seed [32]byte, n, count int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("transcript: SampleIndices: n must be positive, got %d", n)
	}
	if count < 0 || count > n {
		return nil, fmt.Errorf("transcript: SampleIndices: count %d out of range [0,%d]", count, n)
	}
	seen := make(map[int]struct{}, count)
	indices := make([]int, 0, count)
	current := seed[:]
	xof := NewShake256XOF(32)
	for len(indices) < count {
		digest := xof.Expand("archimedes-availability-sample-index", current)
		idx := int(binary.BigEndian.Uint64(digest[:8]) % uint64(n))
		if _, dup := seen[idx]; !dup {
			seen[idx] = struct{}{}
			indices = append(indices, idx)
		}
		current = digest
	}
	return indices, nil
}
