package group

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Domain-separation tags for the two disjoint uses of EncodeToScalar. A
// state commitment and a transition commitment can never hash to the same
// scalar even given colliding raw byte strings, because the tag is mixed in
// before any bytes of the caller's message.
const (
	domainStateRoot = "ARCHIMEDES-ENCODE-STATE-ROOT-v1"
	domainTransition = "ARCHIMEDES-ENCODE-TRANSITION-v1"
)

// EncodeStateRoot maps a 32-byte state root to 𝔽 for use as the value
// committed by a StateCommitment (§3: point = encode(state_root)·G + blinder·H).
func EncodeStateRoot(stateRoot [32]byte) (Scalar, error) {
	return hashToScalar(domainStateRoot, stateRoot[:])
}

// EncodeTransition maps pre‖post‖fn_id to 𝔽 for use as the value committed
// by a TransitionCommitment.
func EncodeTransition(pre, post [32]byte, fnID uint64) (Scalar, error) {
	var fnBytes [8]byte
	binary.LittleEndian.PutUint64(fnBytes[:], fnID)
	msg := make([]byte, 0, 32+32+8)
	msg = append(msg, pre[:]...)
	msg = append(msg, post[:]...)
	msg = append(msg, fnBytes[:]...)
	return hashToScalar(domainTransition, msg)
}

// hashToScalar draws a uniform 𝔽_r element from (tag, msg) via rejection
// sampling: expand a SHAKE-256 stream tagged with the domain separator,
// interpret 32-byte blocks as big-endian integers, and keep the first block
// that lands below the field modulus. Modular reduction of an oversized
// value would bias the low residues; rejection sampling does not.
func hashToScalar(tag string, msg []byte) (Scalar, error) {
	xof := sha3.NewShake256()
	xof.Write([]byte(tag))
	var tagLen [8]byte
	binary.LittleEndian.PutUint64(tagLen[:], uint64(len(tag)))
	xof.Write(tagLen[:])
	xof.Write(msg)

	const maxAttempts = 256
	buf := make([]byte, 32)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := xof.Read(buf); err != nil {
			return Scalar{}, fmt.Errorf("group: expand hash-to-field stream: %w", err)
		}
		var s Scalar
		if s.SetBytesCanonical(buf) == nil {
			return s, nil
		}
		// buf ≥ field modulus: reject and draw the next block.
	}
	return Scalar{}, fmt.Errorf("group: hash-to-field: exceeded %d rejection attempts", maxAttempts)
}
