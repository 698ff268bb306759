package dispute

import (
	"context"
	"encoding/binary"
	"testing"

	"archimedes/aggregator"
	"archimedes/commitment"
	"archimedes/executor"
	"archimedes/group"
	"archimedes/model"
	"archimedes/wire"
)

func newCore(t *testing.T) *commitment.Core {
	t.Helper()
	c, err := commitment.New(nil)
	if err != nil {
		t.Fatalf("commitment.New: %v", err)
	}
	return c
}

func counterRoot(v uint64) [32]byte {
	var root [32]byte
	for i := 31; i >= 24; i-- {
		root[i] = byte(v)
		v >>= 8
	}
	return root
}

func incrementWitness(delta uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, delta)
	return buf
}

// counterStep builds a StepRecord that increments the counter state by
// delta, chaining from prevRoot to prevRoot+delta.
func counterStep(t *testing.T, core *commitment.Core, index, prevCounter, delta uint64) model.StepRecord {
	t.Helper()
	prevRoot := counterRoot(prevCounter)
	postRoot := counterRoot(prevCounter + delta)
	transVal, err := group.EncodeTransition(prevRoot, postRoot, 0)
	if err != nil {
		t.Fatalf("EncodeTransition: %v", err)
	}
	stateVal, err := group.EncodeStateRoot(postRoot)
	if err != nil {
		t.Fatalf("EncodeStateRoot: %v", err)
	}
	transBlinder := group.ScalarFromUint64(index*2 + 100)
	stateBlinder := group.ScalarFromUint64(index*2 + 101)
	return model.StepRecord{
		Index: index,
		TransC: model.TransitionCommitment{
			Pre: prevRoot, Post: postRoot, FnID: 0,
			Point: core.Commit(transVal, transBlinder), Blinder: transBlinder,
		},
		StateC: model.StateCommitment{
			StateRoot: postRoot,
			Point:     core.Commit(stateVal, stateBlinder),
			Blinder:   stateBlinder,
		},
	}
}

// honestFixture builds a 4-step counter chain (deltas 1,2,3,4) and returns
// the finalized Aggregator plus the raw steps, so a test can dispute any
// index and either reveal the true step (ACCEPT) or a forged one
// (SLASH_PROPOSER).
func honestFixture(t *testing.T) (*aggregator.Aggregator, []model.StepRecord, *commitment.Core) {
	t.Helper()
	core := newCore(t)
	agg := aggregator.New(core, counterRoot(0))
	deltas := []uint64{1, 2, 3, 4}
	steps := make([]model.StepRecord, len(deltas))
	counter := uint64(0)
	for i, d := range deltas {
		step := counterStep(t, core, uint64(i+1), counter, d)
		if err := agg.Append(step); err != nil {
			t.Fatalf("Append(%d): %v", i+1, err)
		}
		steps[i] = step
		counter += d
	}
	return agg, steps, core
}

func TestChallengeSingleStepGoesStraightToOneStep(t *testing.T) {
	agg, steps, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{1}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)

	loOp, err := agg.Open(3)
	if err != nil {
		t.Fatalf("Open(3): %v", err)
	}
	if err := sess.Challenge(0, "challenger", 3, 4, loOp, aggregator.Opening{}, 5, 0); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if sess.State != ONE_STEP {
		t.Fatalf("expected ONE_STEP for a width-1 range, got %s", sess.State)
	}
	if err := sess.RevealStep(context.Background(), 0, steps[3], incrementWitness(4)); err != nil {
		t.Fatalf("RevealStep: %v", err)
	}
	if sess.State != ACCEPT {
		t.Fatalf("expected ACCEPT for a correctly revealed step, got %s", sess.State)
	}
}

func TestFullBisectionAcceptsHonestProposer(t *testing.T) {
	agg, steps, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{2}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)

	if err := sess.Challenge(0, "challenger", 0, 4, aggregator.Opening{}, aggregator.Opening{}, 5, 0); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if sess.State != BISECTING {
		t.Fatalf("expected BISECTING, got %s", sess.State)
	}

	// Round 1: mid = 2.
	if _, err := sess.Query(0, 2); err != nil {
		t.Fatalf("Query round 1: %v", err)
	}
	op2, err := agg.Open(2)
	if err != nil {
		t.Fatalf("Open(2): %v", err)
	}
	if _, err := sess.Reply(0, op2.P, op2.R, op2.Path); err != nil {
		t.Fatalf("Reply round 1: %v", err)
	}
	if _, err := sess.Narrow(0, wire.DirRight); err != nil {
		t.Fatalf("Narrow round 1: %v", err)
	}
	if sess.State != BISECTING {
		t.Fatalf("expected to still be BISECTING after round 1, got %s", sess.State)
	}

	// Round 2: window is now [2,4), mid = 3.
	if _, err := sess.Query(0, 3); err != nil {
		t.Fatalf("Query round 2: %v", err)
	}
	op3, err := agg.Open(3)
	if err != nil {
		t.Fatalf("Open(3): %v", err)
	}
	if _, err := sess.Reply(0, op3.P, op3.R, op3.Path); err != nil {
		t.Fatalf("Reply round 2: %v", err)
	}
	if _, err := sess.Narrow(0, wire.DirRight); err != nil {
		t.Fatalf("Narrow round 2: %v", err)
	}
	if sess.State != ONE_STEP {
		t.Fatalf("expected ONE_STEP after narrowing to width 1, got %s", sess.State)
	}

	lo, hi := sess.Window()
	if lo != 3 || hi != 4 {
		t.Fatalf("expected window [3,4), got [%d,%d)", lo, hi)
	}
	if err := sess.RevealStep(context.Background(), 0, steps[3], incrementWitness(4)); err != nil {
		t.Fatalf("RevealStep: %v", err)
	}
	if sess.State != ACCEPT {
		t.Fatalf("expected ACCEPT, got %s", sess.State)
	}
	if sess.Revealed() == nil || sess.Revealed().Index != 4 {
		t.Fatal("expected Revealed() to return the accepted step")
	}
}

func TestRevealStepSlashesForgedStep(t *testing.T) {
	agg, steps, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{3}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)

	loOp, err := agg.Open(3)
	if err != nil {
		t.Fatalf("Open(3): %v", err)
	}
	if err := sess.Challenge(0, "challenger", 3, 4, loOp, aggregator.Opening{}, 5, 0); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	// Reveal the wrong step (index 3's record instead of index 4's).
	if err := sess.RevealStep(context.Background(), 0, steps[2], incrementWitness(4)); err == nil {
		t.Fatal("expected an error revealing a step at the wrong index")
	}
	if sess.State != SLASH_PROPOSER {
		t.Fatalf("expected SLASH_PROPOSER, got %s", sess.State)
	}
}

func TestRevealStepSlashesWrongWitness(t *testing.T) {
	agg, steps, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{4}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)

	loOp, err := agg.Open(3)
	if err != nil {
		t.Fatalf("Open(3): %v", err)
	}
	if err := sess.Challenge(0, "challenger", 3, 4, loOp, aggregator.Opening{}, 5, 0); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	// Witness claims a different delta than the committed transition, so
	// the executor's PostRoot will not match TransC.Post.
	err = sess.RevealStep(context.Background(), 0, steps[3], incrementWitness(999))
	if err == nil {
		t.Fatal("expected an error for a witness inconsistent with the committed transition")
	}
	if sess.State != SLASH_PROPOSER {
		t.Fatalf("expected SLASH_PROPOSER, got %s", sess.State)
	}
}

func TestQueryRejectsWrongMidpoint(t *testing.T) {
	agg, _, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{5}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)
	if err := sess.Challenge(0, "challenger", 0, 4, aggregator.Opening{}, aggregator.Opening{}, 5, 0); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if _, err := sess.Query(0, 1); err == nil {
		t.Fatal("expected an error for a non-midpoint query")
	}
	if sess.State != SLASH_CHALLENGER {
		t.Fatalf("expected SLASH_CHALLENGER, got %s", sess.State)
	}
}

func TestCheckTimeoutSlashesTheAwaitingParty(t *testing.T) {
	agg, _, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{6}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)
	if err := sess.Challenge(0, "challenger", 0, 4, aggregator.Opening{}, aggregator.Opening{}, 5, 1000); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	// BISECTING starts awaiting the challenger's Query.
	if !sess.CheckTimeout(2000) {
		t.Fatal("expected CheckTimeout to fire past the deadline")
	}
	if sess.State != SLASH_CHALLENGER {
		t.Fatalf("expected SLASH_CHALLENGER on challenger timeout, got %s", sess.State)
	}
}

func TestCancelFromLiveState(t *testing.T) {
	agg, _, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{7}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)
	if err := sess.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if sess.State != ABORTED {
		t.Fatalf("expected ABORTED, got %s", sess.State)
	}
	if err := sess.Cancel(); err != nil {
		t.Fatalf("Cancel must be idempotent once ABORTED: %v", err)
	}
}

func TestCancelRejectedOnceResolved(t *testing.T) {
	agg, steps, core := honestFixture(t)
	finalAgg, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess := NewProposed([16]byte{8}, "proposer", core, executor.CounterExecutor{}, finalAgg, 10)
	loOp, err := agg.Open(3)
	if err != nil {
		t.Fatalf("Open(3): %v", err)
	}
	if err := sess.Challenge(0, "challenger", 3, 4, loOp, aggregator.Opening{}, 5, 0); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if err := sess.RevealStep(context.Background(), 0, steps[3], incrementWitness(4)); err != nil {
		t.Fatalf("RevealStep: %v", err)
	}
	if err := sess.Cancel(); err == nil {
		t.Fatal("expected an error cancelling a session already resolved to ACCEPT")
	}
}
