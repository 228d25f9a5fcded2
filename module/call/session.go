package call

import "time"

// State is the call lifecycle position.
type State int

const (
	StateRinging State = iota
	StateConnecting
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateRinging:
		return "ringing"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// EndReason records why a session reached Ended.
type EndReason string

const (
	EndNone         EndReason = ""
	EndHungUp       EndReason = "hungup"
	EndRejected     EndReason = "rejected"
	EndTimeout      EndReason = "timeout"
	EndDisconnected EndReason = "disconnected"
	EndGlareLost    EndReason = "glare"
)

// Session is one call between two users, keyed by the canonical unordered
// pair (lower id first). At most one non-Ended session exists per pair.
type Session struct {
	Low, High   int64
	State       State
	InitiatorID int64
	StartedAt   time.Time
	EndedAt     time.Time
	EndReason   EndReason
	EndedBy     int64 // who triggered the end, 0 for timeouts
}

// Peer returns the other participant.
func (s *Session) Peer(userID int64) int64 {
	if userID == s.Low {
		return s.High
	}
	return s.Low
}

// Callee returns the non-initiating participant.
func (s *Session) Callee() int64 {
	return s.Peer(s.InitiatorID)
}

// Involves reports whether userID is one of the participants.
func (s *Session) Involves(userID int64) bool {
	return s.Low == userID || s.High == userID
}

type pairKey struct{ lo, hi int64 }

func keyFor(a, b int64) pairKey {
	if a < b {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}
