package dispute

import (
	"context"

	"archimedes/commitment"
	"archimedes/errs"
	"archimedes/executor"
	"archimedes/group"
	"archimedes/model"
	"archimedes/wire"
)

// RevealStep is the proposer's ONE_STEP message: the full StepRecord and
// witness for the single disputed index (== s.hi, since hi-lo == 1). The
// engine checks every consistency condition in §4.3 and then invokes the
// injected StepExecutor to adjudicate.
func (s *Session) RevealStep(ctx context.Context, now Timestamp, step model.StepRecord, witness []byte) error {
	if s.CheckTimeout(now) {
		return errs.Wrap(errs.Timeout, errs.OffenderNone, "dispute.RevealStep", "session timed out")
	}
	if s.State != ONE_STEP || s.awaiting != turnProposer {
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.RevealStep",
			"reveal_step not expected in state %s", s.State)
	}
	if step.Index != s.hi {
		s.State = SLASH_PROPOSER
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.RevealStep",
			"revealed index %d does not match disputed index %d", step.Index, s.hi)
	}
	if err := commitment.CheckExternalPoint(step.StateC.Point, errs.OffenderProposer); err != nil {
		s.State = SLASH_PROPOSER
		return err
	}
	if err := commitment.CheckExternalPoint(step.TransC.Point, errs.OffenderProposer); err != nil {
		s.State = SLASH_PROPOSER
		return err
	}

	// (P_hi - P_lo) must equal trans_c.point + state_c.point: the folded
	// step recorded in the aux tree must be exactly this revealed step.
	implied := group.Add(step.TransC.Point, step.StateC.Point)
	actual := group.Sub(s.hiPoint.p, s.loPoint.p)
	if !group.Equal(implied, actual) {
		s.State = SLASH_PROPOSER
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.RevealStep",
			"revealed step does not reconstruct the folded prefix delta")
	}

	// trans_c must be a well-formed commitment to (pre, post, fn_id).
	fnID := step.TransC.FnID
	transVal, err := group.EncodeTransition(step.TransC.Pre, step.TransC.Post, fnID)
	if err != nil {
		s.State = SLASH_PROPOSER
		return errs.New(errs.CryptoRejected, errs.OffenderProposer, "dispute.RevealStep", err)
	}
	if !s.core.VerifyOpen(step.TransC.Point, transVal, step.TransC.Blinder) {
		s.State = SLASH_PROPOSER
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.RevealStep",
			"trans_c does not open to (pre,post,fn_id)")
	}

	result, execErr := s.stepExec.Execute(ctx, step.TransC.Pre, fnID, witness)
	if execErr != nil {
		if _, isExecErr := execErr.(*executor.ExecError); isExecErr {
			s.State = SLASH_PROPOSER
			return errs.New(errs.ProtocolViolation, errs.OffenderProposer, "dispute.RevealStep", execErr)
		}
		if !s.transientRetried {
			s.transientRetried = true
			result, execErr = s.stepExec.Execute(ctx, step.TransC.Pre, fnID, witness)
		}
		if execErr != nil {
			// §7: Transient failure, no attribution possible after the
			// single retry — safety over liveness means the proposer
			// bears it, since only the proposer can supply a working
			// witness.
			s.State = SLASH_PROPOSER
			return errs.New(errs.Transient, errs.OffenderProposer, "dispute.RevealStep", execErr)
		}
	}

	stepValid := result.PostRoot == step.TransC.Post &&
		result.PostRoot == step.StateC.StateRoot &&
		s.core.VerifyOpen(step.StateC.Point, mustEncodeStateRoot(result.PostRoot), step.StateC.Blinder)

	s.revealed = &step
	if stepValid {
		s.State = ACCEPT
		return nil
	}
	s.State = SLASH_PROPOSER
	return errs.Wrap(errs.ProtocolViolation, errs.OffenderProposer, "dispute.RevealStep",
		"executed post-root does not match the committed transition and state")
}

func mustEncodeStateRoot(root [32]byte) group.Scalar {
	v, err := group.EncodeStateRoot(root)
	if err != nil {
		// EncodeStateRoot only fails if the XOF stream is exhausted,
		// astronomically unlikely; there is no attributable party to
		// blame for it, so this is the one place the dispute engine
		// panics rather than misattributing a ProgrammerError as a
		// protocol outcome.
		panic(err)
	}
	return v
}

// RevealStepMessage is the wire message form of RevealStep's transition,
// used by callers framing a DisputeMessage for the reveal, symmetrical
// with the messages Query/Reply/Narrow return directly.
func RevealStepMessage(sessionID [16]byte, round uint32, step model.StepRecord, witness []byte) wire.DisputeMessage {
	return wire.DisputeMessage{
		SessionID: sessionID,
		Round:     round,
		Tag:       wire.TagRevealStep,
		Reveal:    &wire.RevealStepPayload{Step: step, Witness: witness},
	}
}
