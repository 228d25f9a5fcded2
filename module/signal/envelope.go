package signal

import "time"

// Kind classifies a signaling envelope.
type Kind string

const (
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
	KindHangup    Kind = "hangup"
	KindReject    Kind = "reject"
)

// Envelope is one signaling message from sender to receiver. Offers and
// answers carry SDP; candidates carry the serialized ICE candidate exactly
// as the sending browser produced it.
type Envelope struct {
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Kind       Kind      `json:"kind"`
	SDP        string    `json:"sdp,omitempty"`
	Candidate  string    `json:"candidate,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`

	seq uint64 // mailbox-internal arrival order
}

// IsSDP reports whether the envelope carries a session description.
func (e *Envelope) IsSDP() bool {
	return e.Kind == KindOffer || e.Kind == KindAnswer
}
