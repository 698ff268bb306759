package aggregator

import (
	"testing"

	"archimedes/commitment"
	"archimedes/group"
	"archimedes/model"
)

func newCore(t *testing.T) *commitment.Core {
	t.Helper()
	c, err := commitment.New(nil)
	if err != nil {
		t.Fatalf("commitment.New: %v", err)
	}
	return c
}

// buildStep commits a trivial state/transition pair chaining from prevRoot
// to postRoot, for test scaffolding only — it does not need to encode
// anything domain-meaningful, just be internally consistent.
func buildStep(t *testing.T, core *commitment.Core, index uint64, prevRoot, postRoot [32]byte) model.StepRecord {
	t.Helper()
	transVal, err := group.EncodeTransition(prevRoot, postRoot, 0)
	if err != nil {
		t.Fatalf("EncodeTransition: %v", err)
	}
	stateVal, err := group.EncodeStateRoot(postRoot)
	if err != nil {
		t.Fatalf("EncodeStateRoot: %v", err)
	}
	transBlinder := group.ScalarFromUint64(index*2 + 1)
	stateBlinder := group.ScalarFromUint64(index*2 + 2)
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

func TestAppendRejectsOutOfOrderIndex(t *testing.T) {
	core := newCore(t)
	a := New(core, [32]byte{})
	bad := buildStep(t, core, 2, [32]byte{}, [32]byte{1})
	if err := a.Append(bad); err == nil {
		t.Fatal("expected an OrderViolation for a non-contiguous index")
	}
}

func TestAppendRejectsBrokenChain(t *testing.T) {
	core := newCore(t)
	a := New(core, [32]byte{})
	bad := buildStep(t, core, 1, [32]byte{9}, [32]byte{1})
	if err := a.Append(bad); err == nil {
		t.Fatal("expected an OrderViolation for a transition not chaining from the current state root")
	}
}

func TestFinalizeRequiresAtLeastOneStep(t *testing.T) {
	core := newCore(t)
	a := New(core, [32]byte{})
	if _, err := a.Finalize(); err == nil {
		t.Fatal("expected an Empty error finalizing with no steps")
	}
}

func TestOpenAndVerifyOpeningRoundTrip(t *testing.T) {
	core := newCore(t)
	genesis := [32]byte{}
	a := New(core, genesis)
	roots := [][32]byte{genesis, {1}, {2}, {3}}
	for i := 1; i < len(roots); i++ {
		step := buildStep(t, core, uint64(i), roots[i-1], roots[i])
		if err := a.Append(step); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	agg, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if agg.Count != uint64(len(roots)-1) {
		t.Fatalf("expected count %d, got %d", len(roots)-1, agg.Count)
	}

	// Sentinel at 0.
	op0, err := a.Open(0)
	if err != nil {
		t.Fatalf("Open(0): %v", err)
	}
	if !VerifyOpening(agg.AuxRoot, 0, op0.P, op0.R, op0.Path) {
		t.Fatal("VerifyOpening must accept the zero-index sentinel")
	}

	// A genuine interior opening.
	op2, err := a.Open(2)
	if err != nil {
		t.Fatalf("Open(2): %v", err)
	}
	if !VerifyOpening(agg.AuxRoot, 2, op2.P, op2.R, op2.Path) {
		t.Fatal("VerifyOpening must accept a genuine interior opening")
	}

	// Tampering with the opened point must be caught.
	tampered := group.Add(op2.P, core.Commit(group.ScalarFromUint64(1), group.ZeroScalar()))
	if VerifyOpening(agg.AuxRoot, 2, tampered, op2.R, op2.Path) {
		t.Fatal("VerifyOpening must reject a tampered point")
	}
}

func TestOptimisticVerifyAcceptsExactlyOneStep(t *testing.T) {
	core := newCore(t)
	genesis := [32]byte{}
	final := [32]byte{7}
	a := New(core, genesis)
	step := buildStep(t, core, 1, genesis, final)
	if err := a.Append(step); err != nil {
		t.Fatalf("Append: %v", err)
	}
	agg, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	ok, err := OptimisticVerify(core, agg, final)
	if err != nil {
		t.Fatalf("OptimisticVerify: %v", err)
	}
	if !ok {
		t.Fatal("expected OptimisticVerify to accept a single internally consistent step")
	}
}

func TestOptimisticVerifyAcceptsTenSteps(t *testing.T) {
	core := newCore(t)
	genesis := [32]byte{}
	a := New(core, genesis)
	roots := make([][32]byte, 11)
	roots[0] = genesis
	for i := 1; i <= 10; i++ {
		roots[i] = [32]byte{byte(i)}
		step := buildStep(t, core, uint64(i), roots[i-1], roots[i])
		if err := a.Append(step); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	agg, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if agg.Count != 10 {
		t.Fatalf("expected count 10, got %d", agg.Count)
	}
	ok, err := OptimisticVerify(core, agg, roots[10])
	if err != nil {
		t.Fatalf("OptimisticVerify: %v", err)
	}
	if !ok {
		t.Fatal("expected OptimisticVerify to accept ten internally consistent steps")
	}
}

func TestOptimisticVerifyRejectsWrongFinalRoot(t *testing.T) {
	core := newCore(t)
	genesis := [32]byte{}
	final := [32]byte{7}
	a := New(core, genesis)
	step := buildStep(t, core, 1, genesis, final)
	if err := a.Append(step); err != nil {
		t.Fatalf("Append: %v", err)
	}
	agg, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	ok, err := OptimisticVerify(core, agg, [32]byte{99})
	if err != nil {
		t.Fatalf("OptimisticVerify: %v", err)
	}
	if ok {
		t.Fatal("expected OptimisticVerify to reject a mismatched final root")
	}
}

func TestOptimisticVerifyRejectsTamperedValueSum(t *testing.T) {
	core := newCore(t)
	genesis := [32]byte{}
	final := [32]byte{7}
	a := New(core, genesis)
	step := buildStep(t, core, 1, genesis, final)
	if err := a.Append(step); err != nil {
		t.Fatalf("Append: %v", err)
	}
	agg, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	agg.ValueSum = group.AddScalars(agg.ValueSum, group.ScalarFromUint64(1))
	ok, err := OptimisticVerify(core, agg, final)
	if err != nil {
		t.Fatalf("OptimisticVerify: %v", err)
	}
	if ok {
		t.Fatal("expected OptimisticVerify to reject a tampered ValueSum")
	}
}

func TestAuxNodeRangeMatchesPrefixDelta(t *testing.T) {
	core := newCore(t)
	genesis := [32]byte{}
	a := New(core, genesis)
	roots := [][32]byte{genesis, {1}, {2}, {3}}
	for i := 1; i < len(roots); i++ {
		step := buildStep(t, core, uint64(i), roots[i-1], roots[i])
		if err := a.Append(step); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if _, err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	node, err := a.AuxNodeRange(1, 3)
	if err != nil {
		t.Fatalf("AuxNodeRange: %v", err)
	}
	if node.Lo != 1 || node.Hi != 3 {
		t.Fatalf("expected range (1,3], got (%d,%d]", node.Lo, node.Hi)
	}

	op1, err := a.Open(1)
	if err != nil {
		t.Fatalf("Open(1): %v", err)
	}
	op3, err := a.Open(3)
	if err != nil {
		t.Fatalf("Open(3): %v", err)
	}
	wantPoint := group.Sub(op3.P, op1.P)
	wantBlinder := group.SubScalars(op3.R, op1.R)
	if !group.Equal(node.PrefixPoint, wantPoint) {
		t.Fatal("AuxNodeRange point must equal the delta between the two prefix openings")
	}
	if !node.PrefixBlinder.Equal(&wantBlinder) {
		t.Fatal("AuxNodeRange blinder must equal the delta between the two prefix openings")
	}

	if _, err := a.AuxNodeRange(3, 1); err == nil {
		t.Fatal("expected an error for lo > hi")
	}
	if _, err := a.AuxNodeRange(0, 100); err == nil {
		t.Fatal("expected an error for hi beyond count")
	}
}
