// Package wire implements the bit-exact, little-endian, length-prefixed
// persisted layout of §6: AggregateCommitment, StepRecord, and
// DisputeMessage — explicit byte offsets, binary.LittleEndian, no
// reflection or generic codec, errors.New/fmt.Errorf on any malformed
// input rather than panics, since this package parses attacker-controlled
// bytes.
package wire

import (
	"encoding/binary"
	"fmt"

	"archimedes/group"
	"archimedes/model"
)

const (
	pointSize   = 48
	scalarSize  = 32
	digestSize  = 32
	stateCSize  = digestSize + pointSize + scalarSize                 // 112
	transCSize  = digestSize*2 + 8 + pointSize + scalarSize           // 152
	stepRecSize = 8 + stateCSize + transCSize + digestSize            // 32-byte witness digest, fixed prefix before witness
	aggCSize    = pointSize + scalarSize*2 + 8 + digestSize*4         // point, value_sum, blinder_sum, count, 4 roots
)

// PutPoint writes p's 48-byte compressed encoding into dst[0:48].
func putPoint(dst []byte, p group.Point) {
	b := p.Bytes()
	copy(dst, b[:])
}

func getPoint(src []byte) (group.Point, error) {
	var p group.Point
	if _, err := p.SetBytes(src[:pointSize]); err != nil {
		return group.Point{}, fmt.Errorf("wire: decode point: %w", err)
	}
	return p, nil
}

func putScalar(dst []byte, s group.Scalar) {
	b := s.Bytes()
	copy(dst, b[:])
}

func getScalar(src []byte) group.Scalar {
	var s group.Scalar
	s.SetBytes(src[:scalarSize])
	return s
}

// EncodeStateCommitment writes state_root[32] point[48] blinder[32].
func EncodeStateCommitment(c model.StateCommitment) []byte {
	buf := make([]byte, stateCSize)
	copy(buf[0:32], c.StateRoot[:])
	putPoint(buf[32:32+pointSize], c.Point)
	putScalar(buf[32+pointSize:], c.Blinder)
	return buf
}

// DecodeStateCommitment parses the layout EncodeStateCommitment writes and
// returns the number of bytes consumed.
func DecodeStateCommitment(buf []byte) (model.StateCommitment, int, error) {
	if len(buf) < stateCSize {
		return model.StateCommitment{}, 0, fmt.Errorf("wire: StateCommitment: need %d bytes, have %d", stateCSize, len(buf))
	}
	var c model.StateCommitment
	copy(c.StateRoot[:], buf[0:32])
	p, err := getPoint(buf[32 : 32+pointSize])
	if err != nil {
		return model.StateCommitment{}, 0, err
	}
	c.Point = p
	c.Blinder = getScalar(buf[32+pointSize : stateCSize])
	return c, stateCSize, nil
}

// EncodeTransitionCommitment writes pre[32] post[32] fn_id[8] point[48] blinder[32].
func EncodeTransitionCommitment(c model.TransitionCommitment) []byte {
	buf := make([]byte, transCSize)
	copy(buf[0:32], c.Pre[:])
	copy(buf[32:64], c.Post[:])
	binary.LittleEndian.PutUint64(buf[64:72], c.FnID)
	putPoint(buf[72:72+pointSize], c.Point)
	putScalar(buf[72+pointSize:], c.Blinder)
	return buf
}

// DecodeTransitionCommitment parses the layout EncodeTransitionCommitment
// writes and returns the number of bytes consumed.
func DecodeTransitionCommitment(buf []byte) (model.TransitionCommitment, int, error) {
	if len(buf) < transCSize {
		return model.TransitionCommitment{}, 0, fmt.Errorf("wire: TransitionCommitment: need %d bytes, have %d", transCSize, len(buf))
	}
	var c model.TransitionCommitment
	copy(c.Pre[:], buf[0:32])
	copy(c.Post[:], buf[32:64])
	c.FnID = binary.LittleEndian.Uint64(buf[64:72])
	p, err := getPoint(buf[72 : 72+pointSize])
	if err != nil {
		return model.TransitionCommitment{}, 0, err
	}
	c.Point = p
	c.Blinder = getScalar(buf[72+pointSize : transCSize])
	return c, transCSize, nil
}

// EncodeStepRecord writes index[8] state_c[StateCommitment] trans_c[TransitionCommitment] witness_digest[32].
func EncodeStepRecord(r model.StepRecord) []byte {
	buf := make([]byte, 8, stepRecSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.Index)
	buf = append(buf, EncodeStateCommitment(r.StateC)...)
	buf = append(buf, EncodeTransitionCommitment(r.TransC)...)
	buf = append(buf, r.WitnessDigest[:]...)
	return buf
}

// DecodeStepRecord parses the layout EncodeStepRecord writes and returns
// the number of bytes consumed.
func DecodeStepRecord(buf []byte) (model.StepRecord, int, error) {
	if len(buf) < 8 {
		return model.StepRecord{}, 0, fmt.Errorf("wire: StepRecord: buffer too short for index")
	}
	var r model.StepRecord
	r.Index = binary.LittleEndian.Uint64(buf[0:8])
	off := 8
	stateC, n, err := DecodeStateCommitment(buf[off:])
	if err != nil {
		return model.StepRecord{}, 0, err
	}
	r.StateC = stateC
	off += n
	transC, n, err := DecodeTransitionCommitment(buf[off:])
	if err != nil {
		return model.StepRecord{}, 0, err
	}
	r.TransC = transC
	off += n
	if len(buf) < off+digestSize {
		return model.StepRecord{}, 0, fmt.Errorf("wire: StepRecord: buffer too short for witness digest")
	}
	copy(r.WitnessDigest[:], buf[off:off+digestSize])
	off += digestSize
	return r, off, nil
}

// EncodeAggregateCommitment writes point[48] value_sum[32] blinder_sum[32]
// count[8] aux_root[32] initial_root[32] final_root[32] chunk_root[32].
func EncodeAggregateCommitment(a model.AggregateCommitment) []byte {
	buf := make([]byte, aggCSize)
	off := 0
	putPoint(buf[off:off+pointSize], a.Point)
	off += pointSize
	putScalar(buf[off:off+scalarSize], a.ValueSum)
	off += scalarSize
	putScalar(buf[off:off+scalarSize], a.BlinderSum)
	off += scalarSize
	binary.LittleEndian.PutUint64(buf[off:off+8], a.Count)
	off += 8
	copy(buf[off:off+digestSize], a.AuxRoot[:])
	off += digestSize
	copy(buf[off:off+digestSize], a.InitialRoot[:])
	off += digestSize
	copy(buf[off:off+digestSize], a.FinalRoot[:])
	off += digestSize
	copy(buf[off:off+digestSize], a.ChunkRoot[:])
	return buf
}

// DecodeAggregateCommitment parses the layout EncodeAggregateCommitment writes.
func DecodeAggregateCommitment(buf []byte) (model.AggregateCommitment, error) {
	if len(buf) < aggCSize {
		return model.AggregateCommitment{}, fmt.Errorf("wire: AggregateCommitment: need %d bytes, have %d", aggCSize, len(buf))
	}
	var a model.AggregateCommitment
	off := 0
	p, err := getPoint(buf[off : off+pointSize])
	if err != nil {
		return model.AggregateCommitment{}, err
	}
	a.Point = p
	off += pointSize
	a.ValueSum = getScalar(buf[off : off+scalarSize])
	off += scalarSize
	a.BlinderSum = getScalar(buf[off : off+scalarSize])
	off += scalarSize
	a.Count = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	copy(a.AuxRoot[:], buf[off:off+digestSize])
	off += digestSize
	copy(a.InitialRoot[:], buf[off:off+digestSize])
	off += digestSize
	copy(a.FinalRoot[:], buf[off:off+digestSize])
	off += digestSize
	copy(a.ChunkRoot[:], buf[off:off+digestSize])
	return a, nil
}
