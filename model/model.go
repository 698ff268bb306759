// Package model holds the ARCHIMEDES data model (§3): the commitment
// entities that flow between CommitmentCore, the Aggregator, and the
// Dispute engine, as tagged structs behind small capability methods rather
// than a type hierarchy; StateCommitment and TransitionCommitment share a
// shape, both exposing AsPoint/AsBlinder so callers that only need the
// algebra don't need a type switch.
package model

import (
	"archimedes/group"
)

// Pointed is the small capability interface both commitment kinds satisfy.
type Pointed interface {
	AsPoint() group.Point
	AsBlinder() group.Scalar
}

// StateCommitment binds a 32-byte state root: point = encode(state_root)·G + blinder·H.
type StateCommitment struct {
	StateRoot [32]byte
	Point     group.Point
	Blinder   group.Scalar
}

func (c StateCommitment) AsPoint() group.Point     { return c.Point }
func (c StateCommitment) AsBlinder() group.Scalar { return c.Blinder }

// TransitionCommitment binds pre‖post‖fn_id: point = encode(pre‖post‖fn_id)·G + blinder·H.
type TransitionCommitment struct {
	Pre     [32]byte
	Post    [32]byte
	FnID    uint64
	Point   group.Point
	Blinder group.Scalar
}

func (c TransitionCommitment) AsPoint() group.Point     { return c.Point }
func (c TransitionCommitment) AsBlinder() group.Scalar { return c.Blinder }

// StepRecord is one transition in the chain, produced exclusively by the
// proposer and frozen once folded into the Aggregator.
//
// Invariants: index is contiguous, TransC.Pre equals the previous step's
// StateC.StateRoot, and TransC.Post equals this step's StateC.StateRoot.
// The Aggregator enforces the first two on append; the third is not checked
// there, only at dispute time, where RevealStep compares the executed post
// root against both TransC.Post and StateC.StateRoot.
type StepRecord struct {
	Index         uint64
	StateC        StateCommitment
	TransC        TransitionCommitment
	WitnessDigest [32]byte
}

// AggregateCommitment is the immutable, published summary of a finalized
// step log. ValueSum is the running sum of every step's encoded
// state/transition values (Σ(encode(state_root_i) + encode(transition_i))),
// published alongside BlinderSum so OptimisticVerify can reopen Point as a
// single Pedersen commitment without needing the underlying step log.
type AggregateCommitment struct {
	Point       group.Point
	ValueSum    group.Scalar
	BlinderSum  group.Scalar
	Count       uint64
	AuxRoot     [32]byte
	InitialRoot [32]byte
	FinalRoot   [32]byte
	ChunkRoot   [32]byte
}

// AuxNode is a range summary from the auxiliary prefix-sum Merkle tree: the
// delta between two prefix openings over (Lo, Hi], as returned by
// Aggregator.AuxNodeRange.
type AuxNode struct {
	PrefixPoint   group.Point
	PrefixBlinder group.Scalar
	Lo, Hi        uint64
}
