// Package executor defines the StepExecutor capability (§6) the Dispute
// engine's single-step resolution invokes, plus two small deterministic
// demonstration executors used by the demo driver and the end-to-end
// tests. Neither is part of the protocol core: the real state-machine
// semantics under which a transition executes are explicitly out of scope
// (§1), consumed only through this interface.
package executor

import (
	"context"
	"fmt"
)

// ExecError is the failure a StepExecutor reports when a transition cannot
// be replayed, distinct from an infrastructure Transient failure — an
// ExecError means the executor ran and the transition itself is invalid.
type ExecError struct {
	Reason string
}

func (e *ExecError) Error() string { return fmt.Sprintf("exec error: %s", e.Reason) }

// IntermediateValue is one step of an execution trace, optionally attached
// to a Result for debugging; nothing in the dispute engine depends on it.
type IntermediateValue struct {
	Label string
	Value []byte
}

// Result is what a StepExecutor returns on success.
type Result struct {
	PostRoot [32]byte
	Trace    []IntermediateValue
}

// StepExecutor deterministically re-executes one state transition. Any
// non-determinism here (two calls with identical inputs returning
// different PostRoot) is a fatal safety bug per §6, not a recoverable
// error — callers should treat divergence in that sense as a
// ProgrammerError, not a protocol outcome.
type StepExecutor interface {
	Execute(ctx context.Context, preRoot [32]byte, fnID uint64, witness []byte) (Result, error)
}

// CounterExecutor implements a trivial single-register state machine: the
// state root IS the big-endian encoding of a uint64 counter (zero-padded
// into 32 bytes), and fn_id 0 means "increment by the big-endian uint64
// found in witness". It exists to exercise the dispute engine against a
// deterministic, easily-hand-verified executor (§8 scenario 1: an
// "identity-increment" transition).
type CounterExecutor struct{}

const fnIncrement = 0

func (CounterExecutor) Execute(_ context.Context, preRoot [32]byte, fnID uint64, witness []byte) (Result, error) {
	if fnID != fnIncrement {
		return Result{}, &ExecError{Reason: fmt.Sprintf("unknown fn_id %d", fnID)}
	}
	if len(witness) != 8 {
		return Result{}, &ExecError{Reason: fmt.Sprintf("increment witness must be 8 bytes, got %d", len(witness))}
	}
	pre := decodeCounter(preRoot)
	delta := decodeUint64(witness)
	post := pre + delta
	return Result{PostRoot: encodeCounter(post)}, nil
}

func decodeCounter(root [32]byte) uint64 {
	var v uint64
	for i := 24; i < 32; i++ {
		v = (v << 8) | uint64(root[i])
	}
	return v
}

func encodeCounter(v uint64) [32]byte {
	var root [32]byte
	for i := 31; i >= 24; i-- {
		root[i] = byte(v)
		v >>= 8
	}
	return root
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = (v << 8) | uint64(b[i])
	}
	return v
}
