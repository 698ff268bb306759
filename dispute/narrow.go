package dispute

import (
	"archimedes/errs"
	"archimedes/wire"
)

// Narrow is the challenger's round-3 message: declare which half of the
// window still contains the fault. The engine updates (lo,hi) and its
// trusted boundary openings accordingly, and moves to ONE_STEP once the
// window has shrunk to a single index.
func (s *Session) Narrow(now Timestamp, dir wire.Direction) (wire.DisputeMessage, error) {
	if s.CheckTimeout(now) {
		return wire.DisputeMessage{}, errs.Wrap(errs.Timeout, errs.OffenderNone, "dispute.Narrow", "session timed out")
	}
	if s.State != BISECTING || s.awaiting != turnChallenger {
		return wire.DisputeMessage{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Narrow",
			"narrow not expected in state %s", s.State)
	}
	mid := s.pendingMid
	switch dir {
	case wire.DirLeft:
		s.hi = mid
		s.hiPoint = s.midPoint
	case wire.DirRight:
		s.lo = mid
		s.loPoint = s.midPoint
	default:
		s.State = SLASH_CHALLENGER
		return wire.DisputeMessage{}, errs.Wrap(errs.ProtocolViolation, errs.OffenderChallenger, "dispute.Narrow",
			"invalid direction %v", dir)
	}
	s.Round++
	s.deadline = now + s.roundDeadline
	if s.hi-s.lo == 1 {
		s.State = ONE_STEP
		s.awaiting = turnProposer
	} else {
		s.awaiting = turnChallenger
	}
	return wire.DisputeMessage{
		SessionID: s.SessionID,
		Round:     s.Round,
		Tag:       wire.TagNarrow,
		Narrow:    &wire.NarrowPayload{Dir: dir},
	}, nil
}

// RemainingRounds returns how many more Query/Reply/Narrow round-trips are
// needed to reach ONE_STEP from the current window, i.e. ceil(log2(hi-lo)).
func (s *Session) RemainingRounds() uint32 {
	return log2Ceil(s.hi - s.lo)
}

// Window returns the current [lo, hi) bisection window.
func (s *Session) Window() (lo, hi uint64) {
	return s.lo, s.hi
}
