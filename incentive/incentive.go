// Package incentive implements the Incentive layer (§4.4): a pure
// accounting state machine over balances keyed by participant identity,
// closing every dispute terminal with a concrete transfer of locked
// capital. It never reads a wall clock — callers pass an abstract
// monotonic `now` wherever a deadline check is needed (§4.4, §5).
package incentive

import (
	"math"

	"archimedes/dispute"
	"archimedes/errs"
)

// Treasury is the participant identity that receives the non-refunded
// remainder of a forfeited bond or slashed stake.
const Treasury = "treasury"

// Ledger tracks each participant's free and locked balance. Locking moves
// funds from free to locked (an escrow); release moves them back; forfeit
// removes them from locked permanently so Settle can redistribute them.
// Every path preserves total supply except Fund, which is the ledger's
// only source of new balance (demo/test seeding, not part of the protocol).
type Ledger struct {
	balances map[string]uint64
	locked   map[string]uint64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: map[string]uint64{}, locked: map[string]uint64{}}
}

// Fund credits id's free balance. Used to seed participants before the
// protocol runs; the protocol itself never calls it.
func (l *Ledger) Fund(id string, amount uint64) {
	l.balances[id] += amount
}

// Balance returns id's free (unlocked) balance.
func (l *Ledger) Balance(id string) uint64 { return l.balances[id] }

// LockedBalance returns id's currently escrowed balance.
func (l *Ledger) LockedBalance(id string) uint64 { return l.locked[id] }

func (l *Ledger) hold(id string, amount uint64) error {
	if l.balances[id] < amount {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderNone, "incentive.hold",
			"%s has insufficient free balance: has %d, needs %d", id, l.balances[id], amount)
	}
	l.balances[id] -= amount
	l.locked[id] += amount
	return nil
}

func (l *Ledger) release(id string, amount uint64) error {
	if l.locked[id] < amount {
		return errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "incentive.release",
			"%s has only %d locked, cannot release %d", id, l.locked[id], amount)
	}
	l.locked[id] -= amount
	l.balances[id] += amount
	return nil
}

func (l *Ledger) forfeit(id string, amount uint64) error {
	if l.locked[id] < amount {
		return errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "incentive.forfeit",
			"%s has only %d locked, cannot forfeit %d", id, l.locked[id], amount)
	}
	l.locked[id] -= amount
	return nil
}

// DefaultStakeMultiplier is the per-protocol multiplier applied to a step count to
// derive a proposer's required stake_hold.
const DefaultStakeMultiplier uint64 = 1

// HoldStake locks stake_hold = count * multiplier from proposer's free
// balance at publish(agg) time.
func (l *Ledger) HoldStake(proposer string, count, multiplier uint64) (uint64, error) {
	stake := count * multiplier
	if err := l.hold(proposer, stake); err != nil {
		return 0, err
	}
	return stake, nil
}

// BondParams configures the bond-scale formula.
type BondParams struct {
	Base  uint64
	Alpha float64
}

// DefaultBondParams matches §4.4's stated defaults (alpha is left to the
// deployer in the source text; 1.0 is a reasonable, no-op-at-range-1
// default since log2(1) = 0).
var DefaultBondParams = BondParams{Base: 1, Alpha: 1.0}

// HoldBond locks scale = base_bond · (1 + α · log2(range_size)) from
// challenger's free balance at challenge(range) time, so deep ranges cost
// proportionally more to dispute and cannot be used to troll for free.
func (l *Ledger) HoldBond(challenger string, rangeSize uint64, p BondParams) (uint64, error) {
	if rangeSize == 0 {
		rangeSize = 1
	}
	scale := float64(p.Base) * (1 + p.Alpha*math.Log2(float64(rangeSize)))
	bond := uint64(math.Round(scale))
	if err := l.hold(challenger, bond); err != nil {
		return 0, err
	}
	return bond, nil
}

// RewardParams configures the ACCEPT/SLASH_PROPOSER reward splits.
type RewardParams struct {
	// X is the fraction of a forfeited bond that goes to the winning
	// proposer on ACCEPT/SLASH_CHALLENGER; the remainder goes to Treasury.
	X float64
	// Beta is the fraction of stake_hold that goes to the winning
	// challenger on SLASH_PROPOSER; the remainder goes to Treasury.
	Beta float64
}

// DefaultRewardParams matches §4.4's stated defaults: x=50%, β=0.8.
var DefaultRewardParams = RewardParams{X: 0.5, Beta: 0.8}

// Settle applies the economic consequence of a dispute's terminal state,
// releasing or forfeiting the stake_hold and bond that were locked when the
// session opened.
func (l *Ledger) Settle(outcome dispute.State, proposer, challenger string, stakeHold, bond uint64, p RewardParams) error {
	switch outcome {
	case dispute.ACCEPT, dispute.SLASH_CHALLENGER:
		// Proposer keeps stake; challenger forfeits bond, split x/(1-x)
		// between proposer and treasury.
		if err := l.release(proposer, stakeHold); err != nil {
			return err
		}
		if err := l.forfeit(challenger, bond); err != nil {
			return err
		}
		toProposer := uint64(math.Round(float64(bond) * p.X))
		l.balances[proposer] += toProposer
		l.balances[Treasury] += bond - toProposer
		return nil

	case dispute.SLASH_PROPOSER:
		// Challenger recovers their bond plus a β share of the proposer's
		// forfeited stake; the remainder goes to treasury.
		if err := l.release(challenger, bond); err != nil {
			return err
		}
		if err := l.forfeit(proposer, stakeHold); err != nil {
			return err
		}
		toChallenger := uint64(math.Round(float64(stakeHold) * p.Beta))
		l.balances[challenger] += toChallenger
		l.balances[Treasury] += stakeHold - toChallenger
		return nil

	case dispute.ABORTED:
		// Incentive-neutral: everything simply unwinds.
		if err := l.release(proposer, stakeHold); err != nil {
			return err
		}
		if bond > 0 {
			if err := l.release(challenger, bond); err != nil {
				return err
			}
		}
		return nil

	default:
		return errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "incentive.Settle",
			"Settle called on non-terminal state %s", outcome)
	}
}

// ReleaseStake unlocks a proposer's stake_hold when the challenge window
// closes with no challenge ever opened.
func (l *Ledger) ReleaseStake(proposer string, stakeHold uint64) error {
	return l.release(proposer, stakeHold)
}
