package executor

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Account is a toy balance/nonce pair. It exists purely as a second,
// slightly richer demonstration executor — the dispute engine treats it
// exactly like CounterExecutor, as an opaque StepExecutor.
type Account struct {
	Balance uint64
	Nonce   uint64
}

// AccountLedger maps account IDs (small integers, for demo purposes) to
// Accounts, and hashes the whole ledger into a 32-byte root the same way
// StateCommitment.StateRoot is defined to work: any deterministic function
// of the ledger contents.
type AccountLedger map[uint32]Account

// Root hashes the ledger deterministically: sorted account IDs, each
// contributing (id, balance, nonce) to a SHAKE-256 stream.
func (l AccountLedger) Root() [32]byte {
	ids := make([]uint32, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	// simple insertion sort: ledgers used in tests/demos are tiny.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	h := sha3.NewShake256()
	h.Write([]byte("archimedes-account-ledger-root"))
	for _, id := range ids {
		acc := l[id]
		var rec [20]byte
		binary.LittleEndian.PutUint32(rec[0:4], id)
		binary.LittleEndian.PutUint64(rec[4:12], acc.Balance)
		binary.LittleEndian.PutUint64(rec[12:20], acc.Nonce)
		h.Write(rec[:])
	}
	var out [32]byte
	h.Read(out[:])
	return out
}

// AccountExecutor replays a "transfer" transition (fn_id 1) against a fixed
// pre-image ledger snapshot: witness encodes (from, to, amount), the
// executor debits/credits accordingly, bumps the sender's nonce, and
// returns the resulting ledger's root. It errors (ExecError, attributable
// to the proposer) on insufficient balance, matching a real state
// machine's rejection of an invalid transition.
type AccountExecutor struct {
	// Ledgers maps a known pre-root to the ledger it represents, standing
	// in for the "state trie" a real executor would page in from storage.
	Ledgers map[[32]byte]AccountLedger
}

const fnTransfer = 1

func (e AccountExecutor) Execute(_ context.Context, preRoot [32]byte, fnID uint64, witness []byte) (Result, error) {
	if fnID != fnTransfer {
		return Result{}, &ExecError{Reason: fmt.Sprintf("unknown fn_id %d", fnID)}
	}
	if len(witness) != 16 {
		return Result{}, &ExecError{Reason: fmt.Sprintf("transfer witness must be 16 bytes, got %d", len(witness))}
	}
	ledger, ok := e.Ledgers[preRoot]
	if !ok {
		return Result{}, &ExecError{Reason: "unknown pre-image for pre_root"}
	}
	from := binary.LittleEndian.Uint32(witness[0:4])
	to := binary.LittleEndian.Uint32(witness[4:8])
	amount := binary.LittleEndian.Uint64(witness[8:16])

	next := make(AccountLedger, len(ledger))
	for id, acc := range ledger {
		next[id] = acc
	}
	sender := next[from]
	if sender.Balance < amount {
		return Result{}, &ExecError{Reason: "insufficient balance"}
	}
	sender.Balance -= amount
	sender.Nonce++
	next[from] = sender
	receiver := next[to]
	receiver.Balance += amount
	next[to] = receiver

	root := next.Root()
	e.Ledgers[root] = next
	trace := []IntermediateValue{
		{Label: "from_balance", Value: encodeU64(next[from].Balance)},
		{Label: "to_balance", Value: encodeU64(next[to].Balance)},
	}
	return Result{PostRoot: root, Trace: trace}, nil
}

func encodeU64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}
