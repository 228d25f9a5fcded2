package signal

import (
	"sort"
	"sync"
)

// Mailbox holds not-yet-delivered signaling envelopes per receiver. It is
// the single source of truth for signaling delivery: the push path drains it
// and the poll path drains it, so each envelope is handed out at most once
// no matter which path gets there first.
//
// Per sender->receiver direction there is at most one pending SDP envelope
// (a newer offer or answer supersedes the unconsumed older one — the caller
// redialed) plus a FIFO queue of candidates that is never dropped on
// supersession.
type Mailbox struct {
	mu    sync.Mutex
	seq   uint64
	boxes map[int64]*box // keyed by receiver id
}

type box struct {
	sdp        map[int64]*Envelope   // sender -> pending offer/answer
	candidates map[int64][]*Envelope // sender -> FIFO candidate queue
}

func NewMailbox() *Mailbox {
	return &Mailbox{boxes: make(map[int64]*box)}
}

func (m *Mailbox) boxFor(receiver int64) *box {
	b, ok := m.boxes[receiver]
	if !ok {
		b = &box{
			sdp:        make(map[int64]*Envelope),
			candidates: make(map[int64][]*Envelope),
		}
		m.boxes[receiver] = b
	}
	return b
}

// PutSDP stores an offer or answer, superseding any unconsumed SDP envelope
// from the same sender to the same receiver.
func (m *Mailbox) PutSDP(env *Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	env.seq = m.seq
	m.boxFor(env.ReceiverID).sdp[env.SenderID] = env
}

// PutCandidate appends to the per-direction candidate queue. Candidates are
// queued regardless of call state: they may legitimately arrive before the
// remote description is set on either side.
func (m *Mailbox) PutCandidate(env *Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	env.seq = m.seq
	b := m.boxFor(env.ReceiverID)
	b.candidates[env.SenderID] = append(b.candidates[env.SenderID], env)
}

// Poll consumes and returns what is pending for the receiver: the newest
// pending SDP envelope across all senders plus every queued candidate in
// per-sender submission order. A nil SDP with an empty slice means nothing
// was pending. SDP envelopes from other senders stay queued for the next
// poll so none of them is ever lost or double-delivered.
func (m *Mailbox) Poll(receiver int64) (*Envelope, []*Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boxes[receiver]
	if !ok {
		return nil, nil
	}

	var sdp *Envelope
	for _, env := range b.sdp {
		if sdp == nil || env.seq > sdp.seq {
			sdp = env
		}
	}
	if sdp != nil {
		delete(b.sdp, sdp.SenderID)
	}

	senders := make([]int64, 0, len(b.candidates))
	for id := range b.candidates {
		senders = append(senders, id)
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i] < senders[j] })

	var cands []*Envelope
	for _, id := range senders {
		cands = append(cands, b.candidates[id]...)
		delete(b.candidates, id)
	}
	return sdp, cands
}

// Restore puts drained envelopes back after a failed push write, preserving
// queue order, so a flaky channel does not lose signaling. An SDP envelope
// is only restored if the direction is still vacant: a newer offer that
// arrived in the meantime wins.
func (m *Mailbox) Restore(receiver int64, sdp *Envelope, cands []*Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.boxFor(receiver)
	if sdp != nil {
		if _, occupied := b.sdp[sdp.SenderID]; !occupied {
			b.sdp[sdp.SenderID] = sdp
		}
	}
	for i := len(cands) - 1; i >= 0; i-- {
		env := cands[i]
		b.candidates[env.SenderID] = append([]*Envelope{env}, b.candidates[env.SenderID]...)
	}
}

// HasPending reports whether anything is waiting for the receiver.
func (m *Mailbox) HasPending(receiver int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[receiver]
	if !ok {
		return false
	}
	if len(b.sdp) > 0 {
		return true
	}
	for _, q := range b.candidates {
		if len(q) > 0 {
			return true
		}
	}
	return false
}

// ClearPair wipes both directions between two users: pending SDP and all
// candidates. Used when a call ends so stale negotiation state cannot leak
// into the next call.
func (m *Mailbox) ClearPair(a, b int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if box, ok := m.boxes[a]; ok {
		delete(box.sdp, b)
		delete(box.candidates, b)
	}
	if box, ok := m.boxes[b]; ok {
		delete(box.sdp, a)
		delete(box.candidates, a)
	}
}
