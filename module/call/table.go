package call

import (
	"sync"
	"time"

	"callbridge/tools/errs"
)

// OfferOutcome tells the caller of OnOffer what happened besides the error.
type OfferOutcome struct {
	Created bool  // a fresh Ringing session was opened
	GlareTo int64 // non-zero: this user's competing offer just lost glare
}

type Conf struct {
	RingTimeout   time.Duration // unanswered Ringing sessions time out after this
	EndedRetained time.Duration // how long Ended sessions stay queryable
	Clock         func() time.Time
}

func (c *Conf) norm() {
	if c.RingTimeout <= 0 {
		c.RingTimeout = 60 * time.Second
	}
	if c.EndedRetained <= 0 {
		c.EndedRetained = 10 * time.Minute
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Table owns every call session and arbitrates concurrent offer, answer,
// hangup and reject events. All transitions happen under one lock; no
// blocking work is done while holding it.
type Table struct {
	mu       sync.Mutex
	sessions map[pairKey]*Session
	conf     Conf
}

func NewTable(conf Conf) *Table {
	conf.norm()
	return &Table{sessions: make(map[pairKey]*Session), conf: conf}
}

// OnOffer applies an offer from sender to receiver.
//
// No session (or only an Ended one) for the pair: open a fresh Ringing
// session with sender as initiator. Same initiator re-offering: supersede,
// state and StartedAt unchanged — the caller redialed. Offer from the other
// participant while Ringing is glare: the lower user id wins
// deterministically; the loser gets ErrGlare, and if the previous initiator
// is the loser its id comes back in GlareTo so it can be notified.
func (t *Table) OnOffer(sender, receiver int64) (OfferOutcome, error) {
	now := t.conf.Clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	key := keyFor(sender, receiver)
	s, ok := t.sessions[key]
	if !ok || s.State == StateEnded {
		t.sessions[key] = &Session{
			Low:         key.lo,
			High:        key.hi,
			State:       StateRinging,
			InitiatorID: sender,
			StartedAt:   now,
		}
		return OfferOutcome{Created: true}, nil
	}

	if s.InitiatorID == sender {
		// re-offer, supersede semantics: nothing to change here
		return OfferOutcome{}, nil
	}

	if s.State == StateRinging {
		// glare: both sides dialed at once, lower id is canonical
		if sender < s.InitiatorID {
			loser := s.InitiatorID
			s.InitiatorID = sender
			s.StartedAt = now
			return OfferOutcome{GlareTo: loser}, nil
		}
		return OfferOutcome{}, errs.ErrGlare.Wrap()
	}

	// answered call already in progress, a counter-offer makes no sense
	return OfferOutcome{}, errs.ErrStaleSignal.WrapMsg("call already answered")
}

// OnAnswer applies an answer from sender (the callee). Valid only while a
// Ringing or Connecting session exists with sender as non-initiator;
// anything else is a stale signal the client should resync from.
func (t *Table) OnAnswer(sender, receiver int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[keyFor(sender, receiver)]
	if !ok || s.State == StateEnded {
		return errs.ErrStaleSignal.WrapMsg("no live session for answer")
	}
	if s.InitiatorID == sender {
		return errs.ErrStaleSignal.WrapMsg("initiator cannot answer its own call")
	}
	if s.State != StateRinging && s.State != StateConnecting {
		return errs.ErrStaleSignal.WrapMsg("answer in state " + s.State.String())
	}
	s.State = StateConnecting
	return nil
}

// MarkActive promotes Connecting to Active. Called when the answer envelope
// has actually been handed to the initiator — the closest observable proxy
// for "both sides are connected" without a dedicated client signal.
func (t *Table) MarkActive(a, b int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[keyFor(a, b)]; ok && s.State == StateConnecting {
		s.State = StateActive
	}
}

// End terminates the pair's session with the given reason. Returns the
// session so the caller can notify the other participant, or nil if there
// was nothing live to end. Ending an already-Ended session is a no-op.
func (t *Table) End(a, b int64, reason EndReason, by int64) *Session {
	now := t.conf.Clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[keyFor(a, b)]
	if !ok || s.State == StateEnded {
		return nil
	}
	s.State = StateEnded
	s.EndedAt = now
	s.EndReason = reason
	s.EndedBy = by
	return s
}

// EndForUser terminates every live session involving userID (presence loss,
// explicit logout). Returns the ended sessions for peer notification.
func (t *Table) EndForUser(userID int64, reason EndReason) []*Session {
	now := t.conf.Clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	var ended []*Session
	for _, s := range t.sessions {
		if s.State != StateEnded && s.Involves(userID) {
			s.State = StateEnded
			s.EndedAt = now
			s.EndReason = reason
			s.EndedBy = userID
			ended = append(ended, s)
		}
	}
	return ended
}

// ExpireRinging ends every Ringing session older than the ring timeout with
// reason timeout. Called from the reaper sweep.
func (t *Table) ExpireRinging() []*Session {
	now := t.conf.Clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	var ended []*Session
	for _, s := range t.sessions {
		if s.State == StateRinging && now.Sub(s.StartedAt) > t.conf.RingTimeout {
			s.State = StateEnded
			s.EndedAt = now
			s.EndReason = EndTimeout
			ended = append(ended, s)
		}
	}
	return ended
}

// PruneEnded drops Ended sessions past the retention window so the table
// does not grow without bound. The call-status query can still see recent
// outcomes (rejected vs timed out) until then.
func (t *Table) PruneEnded() int {
	now := t.conf.Clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for k, s := range t.sessions {
		if s.State == StateEnded && now.Sub(s.EndedAt) > t.conf.EndedRetained {
			delete(t.sessions, k)
			n++
		}
	}
	return n
}

// Status returns a copy of the pair's most recent session, if any.
func (t *Table) Status(a, b int64) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[keyFor(a, b)]
	if !ok {
		return Session{}, false
	}
	return *s, true
}
