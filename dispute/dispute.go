// Package dispute implements the interactive bisection state machine
// (§4.3): a deterministic engine that drives one challenge against one
// published AggregateCommitment through log2(n) narrowing rounds to a
// single disputed index, then adjudicates it via an injected StepExecutor.
//
// Per §5, a Session is a pure synchronous state transformer: every method
// here takes the caller's current timestamp and any message payload, and
// returns either an outgoing message or an error — there is no goroutine,
// channel, or blocking wait inside this package. A transport layer (or, in
// tests, a driver loop) is responsible for delivering messages and calling
// CheckTimeout with real time.
package dispute

import (
	"math/bits"

	"archimedes/aggregator"
	"archimedes/commitment"
	"archimedes/errs"
	"archimedes/executor"
	"archimedes/group"
	"archimedes/internal/measure"
	"archimedes/merkle"
	"archimedes/model"
	"archimedes/wire"
)

// State is one of the seven states in §4.3's diagram (six named there plus
// ABORTED, the incentive-neutral cancellation terminal added by §5).
type State int

const (
	PROPOSED State = iota
	BISECTING
	ONE_STEP
	ACCEPT
	SLASH_PROPOSER
	SLASH_CHALLENGER
	ABORTED
)

func (s State) String() string {
	switch s {
	case PROPOSED:
		return "PROPOSED"
	case BISECTING:
		return "BISECTING"
	case ONE_STEP:
		return "ONE_STEP"
	case ACCEPT:
		return "ACCEPT"
	case SLASH_PROPOSER:
		return "SLASH_PROPOSER"
	case SLASH_CHALLENGER:
		return "SLASH_CHALLENGER"
	case ABORTED:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is one of the four states the session cannot
// leave.
func (s State) Terminal() bool {
	switch s {
	case ACCEPT, SLASH_PROPOSER, SLASH_CHALLENGER, ABORTED:
		return true
	default:
		return false
	}
}

// turn identifies which party's clock is currently ticking.
type turn int

const (
	turnChallenger turn = iota
	turnProposer
	turnNone
)

// Timestamp and Duration are opaque monotonic units (conventionally
// nanoseconds); the engine never reads a wall clock itself (§5, §6's
// Clock.now() contract).
type Timestamp = uint64
type Duration = uint64

// DefaultRoundDeadline is 24 hours expressed in the same units as Timestamp.
const DefaultRoundDeadline Duration = 24 * 60 * 60 * 1_000_000_000

// endpoint is a verified prefix-sum boundary the engine trusts for the
// remainder of the session (either a sentinel, or a Merkle-verified
// opening).
type endpoint struct {
	p group.Point
	r group.Scalar
}

// Session adjudicates one challenge against one published aggregate.
type Session struct {
	SessionID  [16]byte
	Proposer   string
	Challenger string

	core     *commitment.Core
	stepExec executor.StepExecutor

	State State
	Round uint32

	agg     model.AggregateCommitment
	lo, hi  uint64
	loPoint endpoint
	hiPoint endpoint
	midPoint endpoint

	awaiting      turn
	roundDeadline Duration
	deadline      Timestamp
	sessionCap    Timestamp

	pendingMid uint64
	revealed   *model.StepRecord

	Bond      uint64
	StakeHold uint64

	// transientRetried tracks whether the executor's single allotted
	// retry (§7: Transient failures) has already been used this session.
	transientRetried bool
}

// NewProposed creates a session in PROPOSED for an aggregate that has just
// been published, before any challenge has arrived.
func NewProposed(sessionID [16]byte, proposer string, core *commitment.Core, stepExec executor.StepExecutor, agg model.AggregateCommitment, stakeHold uint64) *Session {
	return &Session{
		SessionID: sessionID,
		Proposer:  proposer,
		core:      core,
		stepExec:  stepExec,
		State:     PROPOSED,
		agg:       agg,
		StakeHold: stakeHold,
	}
}

func log2Ceil(n uint64) uint32 {
	if n <= 1 {
		return 0
	}
	return uint32(bits.Len64(n - 1))
}

// Challenge transitions PROPOSED -> BISECTING (or straight to ONE_STEP if
// the range is already a single index). lo/hi delimit the suspected fault
// range; loVal/hiVal must be valid openings of P_lo/R_lo and P_hi/R_hi
// against agg.AuxRoot, except at the range's natural sentinels (lo=0 uses
// the zero prefix directly, hi=count uses the published aggregate).
func (s *Session) Challenge(now Timestamp, challenger string, lo, hi uint64, loVal, hiVal aggregator.Opening, bond uint64, roundDeadline Duration) error {
	if s.State != PROPOSED {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Challenge",
			"cannot challenge a session in state %s", s.State)
	}
	if lo >= hi || hi > s.agg.Count {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Challenge",
			"invalid range [%d,%d) for count %d", lo, hi, s.agg.Count)
	}
	loEnd, err := s.resolveEndpoint(lo, loVal)
	if err != nil {
		return err
	}
	hiEnd, err := s.resolveEndpoint(hi, hiVal)
	if err != nil {
		return err
	}
	if roundDeadline == 0 {
		roundDeadline = DefaultRoundDeadline
	}
	s.Challenger = challenger
	s.lo, s.hi = lo, hi
	s.loPoint, s.hiPoint = loEnd, hiEnd
	s.Bond = bond
	s.roundDeadline = roundDeadline
	s.deadline = now + roundDeadline
	s.sessionCap = now + Duration(2*log2Ceil(s.agg.Count)+2)*roundDeadline

	if hi-lo == 1 {
		s.State = ONE_STEP
		s.awaiting = turnProposer
	} else {
		s.State = BISECTING
		s.awaiting = turnChallenger
	}
	return nil
}

// resolveEndpoint trusts the sentinel values at the natural boundaries
// (i=0 is always the zero prefix; i=count is always the published
// aggregate) and otherwise requires a Merkle-verified opening.
func (s *Session) resolveEndpoint(i uint64, val aggregator.Opening) (endpoint, error) {
	if i == 0 {
		return endpoint{p: group.IdentityPoint(), r: group.ZeroScalar()}, nil
	}
	if i == s.agg.Count {
		return endpoint{p: s.agg.Point, r: s.agg.BlinderSum}, nil
	}
	if !aggregator.VerifyOpening(s.agg.AuxRoot, i, val.P, val.R, val.Path) {
		return endpoint{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Challenge",
			"opening at index %d does not verify against aux_root", i)
	}
	return endpoint{p: val.P, r: val.R}, nil
}

// CheckTimeout advances the session to a slashing terminal if now is past
// the current round's deadline. It is idempotent once the session is
// terminal, and returns true iff it just produced a transition.
func (s *Session) CheckTimeout(now Timestamp) bool {
	if s.State.Terminal() {
		return false
	}
	if now <= s.deadline {
		return false
	}
	switch s.awaiting {
	case turnChallenger:
		s.State = SLASH_CHALLENGER
	case turnProposer:
		s.State = SLASH_PROPOSER
	}
	return true
}

// Query is the challenger's round-1 message: propose the midpoint of the
// current window. The engine validates that mid is exactly the midpoint
// (any other value is a ProtocolViolation attributed to the challenger)
// and returns the framed message a transport would send to the proposer.
func (s *Session) Query(now Timestamp, mid uint64) (wire.DisputeMessage, error) {
	if s.CheckTimeout(now) {
		return wire.DisputeMessage{}, errs.Wrap(errs.Timeout, errs.OffenderNone, "dispute.Query", "session timed out")
	}
	if s.State != BISECTING || s.awaiting != turnChallenger {
		return wire.DisputeMessage{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Query",
			"query not expected in state %s", s.State)
	}
	measure.Global.Add("dispute.rounds", 1)
	expected := s.lo + (s.hi-s.lo)/2
	if mid != expected {
		s.State = SLASH_CHALLENGER
		return wire.DisputeMessage{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Query",
			"expected mid=%d, got %d", expected, mid)
	}
	s.pendingMid = mid
	s.awaiting = turnProposer
	s.deadline = now + s.roundDeadline
	return wire.DisputeMessage{
		SessionID: s.SessionID,
		Round:     s.Round,
		Tag:       wire.TagQuery,
		Query:     &wire.QueryPayload{Mid: mid},
	}, nil
}

// Reply is the proposer's response to Query: the opening of the midpoint
// prefix. §4.3 step 2 requires subgroup-checking the two round differences
// (P_hi − P_mid) and (P_mid − P_lo), not P_mid in isolation. G₁'s prime-order
// subgroup is closed under subtraction, so if P_lo and P_hi are already
// known-good (each was either a Query 0/n sentinel or a previously
// subgroup-checked reply from an earlier round) and p == P_mid itself
// passes CheckExternalPoint, both differences are subgroup elements too —
// checking p alone is equivalent to checking (P_hi − p) and (p − P_lo)
// directly, without materializing either subtraction. A bad Merkle path, or
// p failing subgroup membership, is proposer fault and ends the session
// immediately per §4.3's tie-breaking rule ("a Merkle path verifies but the
// implied point does not match" is also handled here, via the caller
// re-deriving via aggregator.Open and comparing before calling Reply — this
// method only re-checks the proof).
func (s *Session) Reply(now Timestamp, p group.Point, r group.Scalar, path []merkle.Digest) (wire.DisputeMessage, error) {
	if s.CheckTimeout(now) {
		return wire.DisputeMessage{}, errs.Wrap(errs.Timeout, errs.OffenderNone, "dispute.Reply", "session timed out")
	}
	if s.State != BISECTING || s.awaiting != turnProposer {
		return wire.DisputeMessage{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.Reply",
			"reply not expected in state %s", s.State)
	}
	if err := commitment.CheckExternalPoint(p, errs.OffenderProposer); err != nil {
		s.State = SLASH_PROPOSER
		return wire.DisputeMessage{}, err
	}
	if !aggregator.VerifyOpening(s.agg.AuxRoot, s.pendingMid, p, r, path) {
		s.State = SLASH_PROPOSER
		return wire.DisputeMessage{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.Reply",
			"opening at mid=%d does not verify against aux_root", s.pendingMid)
	}
	s.midPoint = endpoint{p: p, r: r}
	s.awaiting = turnChallenger
	s.deadline = now + s.roundDeadline
	return wire.DisputeMessage{
		SessionID: s.SessionID,
		Round:     s.Round,
		Tag:       wire.TagReply,
		Reply:     &wire.ReplyPayload{Point: p, Blinder: r, Path: path},
	}, nil
}
