// Package aggregator implements the Aggregator (§4.2): an append-only log
// of StepRecords, the running aggregate point and blinder sum, and the
// auxiliary Merkle tree over prefix sums that makes every intermediate
// aggregate cheaply openable during a dispute.
package aggregator

import (
	"encoding/binary"

	"archimedes/commitment"
	"archimedes/errs"
	"archimedes/group"
	"archimedes/merkle"
	"archimedes/model"
)

// Aggregator holds one proposer's step log from the genesis state up to
// (optionally) a finalized AggregateCommitment. It is not safe for
// concurrent use — per §5, each session is a single-threaded state
// transformer; concurrency comes from running independent Aggregators in
// parallel, not from sharing one.
type Aggregator struct {
	core *commitment.Core

	initialRoot [32]byte
	steps       []model.StepRecord

	// prefixPoints[i], prefixBlinders[i], prefixValues[i] are P_i, R_i, and
	// the running sum of encoded step values V_i, for i in [0, len(steps)].
	// V_i = Σ_{j<=i} (encode(state_root_j) + encode(transition_j)) — it is
	// recomputed from each step's public fields (state roots, fn_id), never
	// from a secret. Append does not check a step's points against these
	// values, so P_i == Commit(V_i, R_i) holds only when every appended
	// step's commitments open to them; OptimisticVerify checks exactly that
	// equation at i = count.
	prefixPoints   []group.Point
	prefixBlinders []group.Scalar
	prefixValues   []group.Scalar

	tree      *merkle.Tree
	finalized bool
	aggregate model.AggregateCommitment
}

// New starts an Aggregator over a state chain whose genesis state root is
// initialRoot.
func New(core *commitment.Core, initialRoot [32]byte) *Aggregator {
	return &Aggregator{
		core:           core,
		initialRoot:    initialRoot,
		prefixPoints:   []group.Point{group.IdentityPoint()},
		prefixBlinders: []group.Scalar{group.ZeroScalar()},
		prefixValues:   []group.Scalar{group.ZeroScalar()},
	}
}

// Count returns the number of steps folded so far.
func (a *Aggregator) Count() uint64 {
	return uint64(len(a.steps))
}

func (a *Aggregator) currentStateRoot() [32]byte {
	if len(a.steps) == 0 {
		return a.initialRoot
	}
	return a.steps[len(a.steps)-1].StateC.StateRoot
}

// Append folds step onto the log. It fails with an OrderViolation
// (ProtocolViolation) if step.Index does not immediately follow the
// current count, or if step's transition does not chain from the current
// state root.
func (a *Aggregator) Append(step model.StepRecord) error {
	if a.finalized {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "aggregator.Append",
			"cannot append to a finalized aggregator")
	}
	expected := uint64(len(a.steps)) + 1
	if step.Index != expected {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "aggregator.Append",
			"OrderViolation: expected index %d, got %d", expected, step.Index)
	}
	if step.TransC.Pre != a.currentStateRoot() {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "aggregator.Append",
			"OrderViolation: transition pre-root does not match current state root")
	}
	if err := commitment.CheckExternalPoint(step.StateC.Point, errs.OffenderProposer); err != nil {
		return err
	}
	if err := commitment.CheckExternalPoint(step.TransC.Point, errs.OffenderProposer); err != nil {
		return err
	}

	stateVal, err := group.EncodeStateRoot(step.StateC.StateRoot)
	if err != nil {
		return errs.New(errs.CryptoRejected, errs.OffenderProposer, "aggregator.Append", err)
	}
	transVal, err := group.EncodeTransition(step.TransC.Pre, step.TransC.Post, step.TransC.FnID)
	if err != nil {
		return errs.New(errs.CryptoRejected, errs.OffenderProposer, "aggregator.Append", err)
	}

	stepPoint := group.Add(step.StateC.Point, step.TransC.Point)
	stepBlinder := group.AddScalars(step.StateC.Blinder, step.TransC.Blinder)
	stepValue := group.AddScalars(stateVal, transVal)

	prevPoint := a.prefixPoints[len(a.prefixPoints)-1]
	prevBlinder := a.prefixBlinders[len(a.prefixBlinders)-1]
	prevValue := a.prefixValues[len(a.prefixValues)-1]

	a.prefixPoints = append(a.prefixPoints, group.Add(prevPoint, stepPoint))
	a.prefixBlinders = append(a.prefixBlinders, group.AddScalars(prevBlinder, stepBlinder))
	a.prefixValues = append(a.prefixValues, group.AddScalars(prevValue, stepValue))
	a.steps = append(a.steps, step)
	return nil
}

// leafBytes is the preimage hashed into aux-tree leaf i: i ‖ serialize(Pi) ‖ serialize(Ri).
func leafBytes(i uint64, p group.Point, r group.Scalar) []byte {
	buf := make([]byte, 8, 8+48+32)
	binary.LittleEndian.PutUint64(buf, i)
	pb := p.Bytes()
	buf = append(buf, pb[:]...)
	rb := r.Bytes()
	buf = append(buf, rb[:]...)
	return buf
}

// Finalize freezes the log into an immutable AggregateCommitment. It fails
// with Empty if no steps have been appended.
func (a *Aggregator) Finalize() (model.AggregateCommitment, error) {
	if a.finalized {
		return a.aggregate, nil
	}
	n := len(a.steps)
	if n == 0 {
		return model.AggregateCommitment{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer,
			"aggregator.Finalize", "Empty: no steps appended")
	}
	leaves := make([][]byte, n)
	for i := 1; i <= n; i++ {
		leaves[i-1] = leafBytes(uint64(i), a.prefixPoints[i], a.prefixBlinders[i])
	}
	a.tree = merkle.Build(leaves)
	a.aggregate = model.AggregateCommitment{
		Point:       a.prefixPoints[n],
		ValueSum:    a.prefixValues[n],
		BlinderSum:  a.prefixBlinders[n],
		Count:       uint64(n),
		AuxRoot:     a.tree.Root(),
		InitialRoot: a.initialRoot,
		FinalRoot:   a.steps[n-1].StateC.StateRoot,
	}
	a.finalized = true
	return a.aggregate, nil
}

// Opening is the result of Open(i): the prefix aggregate at index i and its
// Merkle proof of membership in aux_root.
type Opening struct {
	P    group.Point
	R    group.Scalar
	Path []merkle.Digest
}

// Open returns (P_i, R_i) and its Merkle path for any i in [0, count]. The
// sentinel prefixes P_0 = identity, R_0 = 0 are returned directly with a
// nil path — no Merkle opening is needed for them (§4.3).
func (a *Aggregator) Open(i uint64) (Opening, error) {
	if !a.finalized {
		return Opening{}, errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "aggregator.Open",
			"cannot open before Finalize")
	}
	if i > a.aggregate.Count {
		return Opening{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderNone, "aggregator.Open",
			"index %d exceeds count %d", i, a.aggregate.Count)
	}
	if i == 0 {
		return Opening{P: group.IdentityPoint(), R: group.ZeroScalar()}, nil
	}
	path, err := a.tree.Path(int(i - 1))
	if err != nil {
		return Opening{}, errs.New(errs.ProgrammerError, errs.OffenderNone, "aggregator.Open", err)
	}
	return Opening{P: a.prefixPoints[i], R: a.prefixBlinders[i], Path: path}, nil
}

// AuxNodeRange summarizes the half-open step range (lo, hi] as a
// model.AuxNode: the delta between the two prefix openings, which is what a
// bisection round narrows against (§4.3 windows are always expressed as a
// (lo, hi] pair, not a single index).
func (a *Aggregator) AuxNodeRange(lo, hi uint64) (model.AuxNode, error) {
	if !a.finalized {
		return model.AuxNode{}, errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "aggregator.AuxNodeRange",
			"cannot summarize before Finalize")
	}
	if lo > hi || hi > a.aggregate.Count {
		return model.AuxNode{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderNone, "aggregator.AuxNodeRange",
			"invalid range (%d, %d] over count %d", lo, hi, a.aggregate.Count)
	}
	deltaPoint := group.Sub(a.prefixPoints[hi], a.prefixPoints[lo])
	deltaBlinder := group.SubScalars(a.prefixBlinders[hi], a.prefixBlinders[lo])
	return model.AuxNode{PrefixPoint: deltaPoint, PrefixBlinder: deltaBlinder, Lo: lo, Hi: hi}, nil
}

// VerifyOpening checks a claimed (P_i, R_i, path) against auxRoot without
// access to the Aggregator itself — this is what a challenger runs against
// a proposer-supplied reply(P,R,path) message.
func VerifyOpening(auxRoot [32]byte, i uint64, p group.Point, r group.Scalar, path []merkle.Digest) bool {
	if i == 0 {
		return group.IsIdentity(p) && r.IsZero()
	}
	leaf := leafBytes(i, p, r)
	return merkle.VerifyPath(leaf, path, merkle.Digest(auxRoot), int(i-1))
}

// OptimisticVerify implements §4.2's commitment-equality optimistic check
// (§9 resolves the pairing-vs-equality ambiguity in favor of equality): a
// single MSM of size 2, no pairing. It first checks the claimed final state
// root against the one baked into agg at Finalize time, then reopens
// agg.Point as a single Pedersen commitment to the published (ValueSum,
// BlinderSum) pair — homomorphically identical to the sum of every step's
// individual commitment, per the prefix-sum invariant Append/Finalize
// maintain, so it holds for any internally consistent chain rather than
// only ones whose ValueSum happens to collapse to encode(finalStateRoot)
// alone.
func OptimisticVerify(core *commitment.Core, agg model.AggregateCommitment, finalStateRoot [32]byte) (bool, error) {
	if agg.FinalRoot != finalStateRoot {
		return false, nil
	}
	expected := core.Commit(agg.ValueSum, agg.BlinderSum)
	return group.Equal(agg.Point, expected), nil
}
