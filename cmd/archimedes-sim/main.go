// Command archimedes-sim drives one proposer/challenger pair through the
// full protocol end to end: build a counter-increment step chain, publish
// it as an AggregateCommitment, open a dispute over the whole range, drive
// the bisection to ONE_STEP, reveal, and settle the incentive layer. Pass
// -fault to publish a deliberately incorrect step and watch the same
// driver reach SLASH_PROPOSER instead of ACCEPT.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"

	"archimedes/aggregator"
	"archimedes/commitment"
	"archimedes/dispute"
	"archimedes/executor"
	"archimedes/group"
	"archimedes/incentive"
	"archimedes/model"
	"archimedes/wire"
)

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

func counterStep(core *commitment.Core, index, prevCounter uint64, override *uint64) (model.StepRecord, error) {
	prevRoot := counterRoot(prevCounter)
	claimed := prevCounter + 1
	if override != nil {
		claimed = *override
	}
	postRoot := counterRoot(claimed)
	transVal, err := group.EncodeTransition(prevRoot, postRoot, 0)
	if err != nil {
		return model.StepRecord{}, err
	}
	stateVal, err := group.EncodeStateRoot(postRoot)
	if err != nil {
		return model.StepRecord{}, err
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
	}, nil
}

func main() {
	steps := flag.Uint64("steps", 8, "number of counter-increment steps to publish")
	fault := flag.Uint64("fault", 0, "1-based step index to corrupt with a wrong post root; 0 means no fault")
	bond := flag.Uint64("bond", 5, "bond recorded on the dispute session (the ledger locks the amount incentive.HoldBond derives from the range size)")
	flag.Parse()

	core, err := commitment.New(nil)
	if err != nil {
		log.Fatalf("commitment.New: %v", err)
	}

	agg := aggregator.New(core, counterRoot(0))
	counter := uint64(0)
	for i := uint64(1); i <= *steps; i++ {
		var override *uint64
		if i == *fault {
			bad := counter + 2
			override = &bad
		}
		step, err := counterStep(core, i, counter, override)
		if err != nil {
			log.Fatalf("build step %d: %v", i, err)
		}
		if err := agg.Append(step); err != nil {
			log.Fatalf("append step %d: %v", i, err)
		}
		if override != nil {
			counter = *override
		} else {
			counter++
		}
	}
	finalAgg, err := agg.Finalize()
	if err != nil {
		log.Fatalf("finalize: %v", err)
	}
	fmt.Printf("published aggregate: count=%d aux_root=%x final_root=%x\n",
		finalAgg.Count, finalAgg.AuxRoot, finalAgg.FinalRoot)

	ledger := incentive.NewLedger()
	ledger.Fund("proposer", 1000)
	ledger.Fund("challenger", 1000)
	stakeHold, err := ledger.HoldStake("proposer", finalAgg.Count, incentive.DefaultStakeMultiplier)
	if err != nil {
		log.Fatalf("hold stake: %v", err)
	}

	sess := dispute.NewProposed([16]byte{1}, "proposer", core, executor.CounterExecutor{}, finalAgg, stakeHold)
	if err := sess.Challenge(0, "challenger", 0, finalAgg.Count, aggregator.Opening{}, aggregator.Opening{}, *bond, 0); err != nil {
		log.Fatalf("challenge: %v", err)
	}
	bondHeld, err := ledger.HoldBond("challenger", finalAgg.Count, incentive.DefaultBondParams)
	if err != nil {
		log.Fatalf("hold bond: %v", err)
	}

	rounds := uint32(0)
	for sess.State == dispute.BISECTING {
		lo, hi := sess.Window()
		mid := lo + (hi-lo)/2
		if _, err := sess.Query(0, mid); err != nil {
			log.Fatalf("query: %v", err)
		}
		op, err := agg.Open(mid)
		if err != nil {
			log.Fatalf("open(%d): %v", mid, err)
		}
		if _, err := sess.Reply(0, op.P, op.R, op.Path); err != nil {
			log.Fatalf("reply: %v", err)
		}
		dir := narrowToward(*fault, mid)
		if _, err := sess.Narrow(0, dir); err != nil {
			log.Fatalf("narrow: %v", err)
		}
		rounds++
	}
	fmt.Printf("bisection converged in %d rounds\n", rounds)

	if sess.State == dispute.ONE_STEP {
		_, hi := sess.Window()
		var override *uint64
		if hi == *fault {
			bad := hi + 1
			override = &bad
		}
		step, err := counterStep(core, hi, hi-1, override)
		if err != nil {
			log.Fatalf("rebuild disputed step: %v", err)
		}
		if err := sess.RevealStep(context.Background(), 0, step, incrementWitness(1)); err != nil {
			fmt.Printf("reveal_step rejected: %v\n", err)
		}
	}
	fmt.Printf("dispute resolved: %s\n", sess.State)

	if err := ledger.Settle(sess.State, "proposer", "challenger", stakeHold, bondHeld, incentive.DefaultRewardParams); err != nil {
		log.Fatalf("settle: %v", err)
	}
	fmt.Printf("final balances: proposer=%d challenger=%d treasury=%d\n",
		ledger.Balance("proposer"), ledger.Balance("challenger"), ledger.Balance(incentive.Treasury))
}

// narrowToward picks the bisection direction that keeps a suspected fault
// at faultIndex inside the remaining window (faultIndex==0 means "no known
// fault", so it always narrows right, converging toward the last step).
func narrowToward(faultIndex, mid uint64) wire.Direction {
	if faultIndex != 0 && faultIndex <= mid {
		return wire.DirLeft
	}
	return wire.DirRight
}
