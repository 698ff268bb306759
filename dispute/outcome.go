package dispute

import (
	"archimedes/errs"
	"archimedes/model"
)

// Cancel moves a live session to ABORTED, the incentive-neutral terminal
// (§5): bonds refunded, stake retained, distinct from every slashing
// terminal. Cancellation is only legal at a suspension point, i.e. any
// non-terminal state, and is idempotent once the session is already
// terminal.
func (s *Session) Cancel() error {
	if s.State.Terminal() {
		if s.State == ABORTED {
			return nil
		}
		return errs.Wrap(errs.ProtocolViolation, errs.OffenderNone, "dispute.Cancel",
			"cannot cancel a session already resolved to %s", s.State)
	}
	s.State = ABORTED
	return nil
}

// Revealed returns the StepRecord revealed during ONE_STEP, if any.
func (s *Session) Revealed() *model.StepRecord {
	return s.revealed
}

// SessionCap returns the absolute timestamp beyond which the session is
// guaranteed to have reached a terminal state under honest, synchronous
// participation (§4.3: (2·log2(n)+2)·per-round deadline after the
// challenge was opened).
func (s *Session) SessionCap() Timestamp {
	return s.sessionCap
}
