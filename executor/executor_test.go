package executor

import (
	"context"
	"encoding/binary"
	"testing"
)

func witness8(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func TestCounterExecutorIncrements(t *testing.T) {
	e := CounterExecutor{}
	pre := encodeCounter(10)
	res, err := e.Execute(context.Background(), pre, fnIncrement, witness8(5))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if decodeCounter(res.PostRoot) != 15 {
		t.Fatalf("expected post counter 15, got %d", decodeCounter(res.PostRoot))
	}
}

func TestCounterExecutorRejectsUnknownFnID(t *testing.T) {
	e := CounterExecutor{}
	_, err := e.Execute(context.Background(), encodeCounter(0), 99, witness8(1))
	if err == nil {
		t.Fatal("expected an error for an unknown fn_id")
	}
	if _, ok := err.(*ExecError); !ok {
		t.Fatalf("expected an *ExecError, got %T", err)
	}
}

func TestCounterExecutorRejectsMalformedWitness(t *testing.T) {
	e := CounterExecutor{}
	_, err := e.Execute(context.Background(), encodeCounter(0), fnIncrement, []byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error for a malformed witness")
	}
}
