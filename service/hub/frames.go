package hub

import (
	"encoding/json"
	"time"
)

// Event types pushed over a channel.
const (
	EventOffer       = "offer"
	EventAnswer      = "answer"
	EventCandidate   = "candidate"
	EventHangup      = "hangup"
	EventReject      = "reject"
	EventGlare       = "glare"
	EventCallTimeout = "call_timeout"
	EventChat        = "chat"
	EventUnread      = "unread"
	EventReplaced    = "replaced"
)

// Event is the JSON frame written to a push channel. Payload shape depends
// on Type; From is the other user involved, when there is one.
type Event struct {
	Type    string          `json:"type"`
	From    int64           `json:"from,omitempty"`
	To      int64           `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ts      int64           `json:"ts"`
}

// NewEvent builds a frame, marshalling payload. A payload that fails to
// marshal is a programming error; the frame is sent without it.
func NewEvent(typ string, from, to int64, payload any) Event {
	ev := Event{Type: typ, From: from, To: to, Ts: time.Now().UnixMilli()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}
