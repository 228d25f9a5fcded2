package signal

import (
	"time"

	"callbridge/logger"
	"callbridge/module/call"
	"callbridge/module/presence"
	"callbridge/service/hub"
	"callbridge/tools/errs"
)

// PollResult is what a poll hands back: at most one SDP envelope plus the
// drained candidate queue. Both empty means nothing was pending — that is a
// normal result, not an error.
type PollResult struct {
	SDP        *Envelope   `json:"sdp"`
	Candidates []*Envelope `json:"candidates"`
}

func (r PollResult) Empty() bool {
	return r.SDP == nil && len(r.Candidates) == 0
}

// endNotice is the push payload for hangup/reject/timeout/disconnect frames.
type endNotice struct {
	Reason call.EndReason `json:"reason"`
	By     int64          `json:"by,omitempty"`
}

// Service ties the mailbox, the call table, presence and the hub together:
// it is the component behind every signaling boundary operation. The
// mailbox stays the single source of truth; push is a best-effort
// notify-and-drain of it, never a second copy.
type Service struct {
	mbox  *Mailbox
	calls *call.Table
	hub   *hub.Hub
	reg   *presence.Registry
	clock func() time.Time
}

func NewService(calls *call.Table, h *hub.Hub, reg *presence.Registry, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	s := &Service{
		mbox:  NewMailbox(),
		calls: calls,
		hub:   h,
		reg:   reg,
		clock: clock,
	}
	h.OnAttach(s.NotifyAndDrain)
	reg.OnOffline(s.handleOffline)
	return s
}

// PutOffer stores an offer, opening or superseding the pair's call session,
// and pushes it if the receiver is attached. The returned bool is whether
// the receiver is currently online — an offline receiver is "unreachable",
// not an error: the offer stays polled-for until it times out.
func (s *Service) PutOffer(sender, receiver int64, sdp string) (bool, error) {
	outcome, err := s.calls.OnOffer(sender, receiver)
	if err != nil {
		return s.reg.IsOnline(receiver), err
	}
	if outcome.GlareTo != 0 {
		// the prior initiator's competing offer lost; clear it and say so
		s.mbox.ClearPair(sender, receiver)
		s.pushEvent(outcome.GlareTo, hub.NewEvent(hub.EventGlare, sender, outcome.GlareTo, nil))
	}

	s.mbox.PutSDP(&Envelope{
		SenderID:   sender,
		ReceiverID: receiver,
		Kind:       KindOffer,
		SDP:        sdp,
		CreatedAt:  s.clock(),
	})
	s.NotifyAndDrain(receiver)
	return s.reg.IsOnline(receiver), nil
}

// PutAnswer stores an answer and advances the session to Connecting. With
// no matching live session it reports StaleSignal and stores nothing.
func (s *Service) PutAnswer(sender, receiver int64, sdp string) error {
	if err := s.calls.OnAnswer(sender, receiver); err != nil {
		return err
	}
	s.mbox.PutSDP(&Envelope{
		SenderID:   sender,
		ReceiverID: receiver,
		Kind:       KindAnswer,
		SDP:        sdp,
		CreatedAt:  s.clock(),
	})
	s.NotifyAndDrain(receiver)
	return nil
}

// PutCandidate always enqueues: candidates may arrive before either side
// has set its remote description, so they are independent of call state.
func (s *Service) PutCandidate(sender, receiver int64, candidate string) {
	s.mbox.PutCandidate(&Envelope{
		SenderID:   sender,
		ReceiverID: receiver,
		Kind:       KindCandidate,
		Candidate:  candidate,
		CreatedAt:  s.clock(),
	})
	s.NotifyAndDrain(receiver)
}

// Poll consumes everything pending for userID. Consuming an answer means
// the initiator has finally seen it, which is the session's cue to go
// Active.
func (s *Service) Poll(userID int64) PollResult {
	sdp, cands := s.mbox.Poll(userID)
	if sdp != nil && sdp.Kind == KindAnswer {
		s.calls.MarkActive(sdp.SenderID, sdp.ReceiverID)
	}
	return PollResult{SDP: sdp, Candidates: cands}
}

// Hangup ends the pair's session, wipes both mailbox directions and tells
// the other party, whoever of the two initiated the call.
func (s *Service) Hangup(from, to int64) {
	s.endAndNotify(from, to, call.EndHungUp, from, hub.EventHangup)
}

// Reject is the callee declining a ringing call.
func (s *Service) Reject(rejecter, caller int64) {
	s.endAndNotify(rejecter, caller, call.EndRejected, rejecter, hub.EventReject)
}

func (s *Service) endAndNotify(from, to int64, reason call.EndReason, by int64, eventType string) {
	sess := s.calls.End(from, to, reason, by)
	s.mbox.ClearPair(from, to)
	if sess == nil {
		return
	}
	peer := sess.Peer(by)
	s.pushEvent(peer, hub.NewEvent(eventType, by, peer, endNotice{Reason: reason, By: by}))
}

// Status exposes the most recent session between two users, for the
// call-status query.
func (s *Service) Status(a, b int64) (call.Session, bool) {
	return s.calls.Status(a, b)
}

// ExpireRinging times out unanswered calls: sessions end with reason
// timeout, their signaling state is wiped, and the initiator learns the
// call was not answered. Driven by the reaper.
func (s *Service) ExpireRinging() {
	for _, sess := range s.calls.ExpireRinging() {
		s.mbox.ClearPair(sess.Low, sess.High)
		s.pushEvent(sess.InitiatorID, hub.NewEvent(
			hub.EventCallTimeout, sess.Callee(), sess.InitiatorID,
			endNotice{Reason: call.EndTimeout},
		))
		logger.Infof("[signal] ringing timed out pair=(%d,%d)", sess.Low, sess.High)
	}
}

// PruneEnded forwards retention cleanup to the call table.
func (s *Service) PruneEnded() {
	s.calls.PruneEnded()
}

// handleOffline runs when presence drops a user: any live call involving
// them ends as disconnected and the peer is told.
func (s *Service) handleOffline(userID int64) {
	s.hub.DetachUser(userID)
	for _, sess := range s.calls.EndForUser(userID, call.EndDisconnected) {
		s.mbox.ClearPair(sess.Low, sess.High)
		peer := sess.Peer(userID)
		s.pushEvent(peer, hub.NewEvent(
			hub.EventHangup, userID, peer,
			endNotice{Reason: call.EndDisconnected, By: userID},
		))
	}
}

// NotifyAndDrain is the push path: drain the mailbox for userID and write
// the envelopes to the live channel. The poll-path copy is gone the moment
// a write is accepted, which keeps delivery at-most-once; a failed write
// restores everything undelivered so nothing is lost either.
func (s *Service) NotifyAndDrain(userID int64) {
	if !s.mbox.HasPending(userID) {
		return
	}
	sdp, cands := s.mbox.Poll(userID)
	if sdp != nil {
		ev := hub.NewEvent(string(sdp.Kind), sdp.SenderID, userID, sdp)
		if err := s.hub.Send(userID, ev); err != nil {
			s.mbox.Restore(userID, sdp, cands)
			return
		}
		if sdp.Kind == KindAnswer {
			s.calls.MarkActive(sdp.SenderID, sdp.ReceiverID)
		}
	}
	for i, env := range cands {
		ev := hub.NewEvent(hub.EventCandidate, env.SenderID, userID, env)
		if err := s.hub.Send(userID, ev); err != nil {
			s.mbox.Restore(userID, nil, cands[i:])
			return
		}
	}
}

func (s *Service) pushEvent(userID int64, ev hub.Event) {
	if err := s.hub.Send(userID, ev); err != nil {
		if ce := errs.Unwrap(err); ce == nil || ce.Code != errs.CodePresenceExpired {
			logger.Debug("[signal] push skipped: " + err.Error())
		}
	}
}
