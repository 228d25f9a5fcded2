package chat

import (
	"context"
	"time"

	"callbridge/logger"
	"callbridge/service/hub"
	"callbridge/tools/ids"
)

// unreadNotice is the push payload telling a user their unread count from
// one peer changed.
type unreadNotice struct {
	Peer  int64 `json:"peer"`
	Count int64 `json:"count"`
}

// Service is the messaging half of the relay: durable append first, then
// best-effort live push. The store is the source of truth; a user who was
// offline sees everything on their next history/unread query.
type Service struct {
	store Store
	hub   *hub.Hub
	clock func() time.Time
}

func NewService(store Store, h *hub.Hub, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, hub: h, clock: clock}
}

// Send persists the message, acknowledges it to the sender, and pushes the
// message plus an updated unread count to the receiver if connected.
func (s *Service) Send(ctx context.Context, sender, receiver int64, content string) (*Message, error) {
	msg := &Message{
		ID:         ids.Generate(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  s.clock(),
	}
	if err := s.store.Append(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.hub.Send(receiver, hub.NewEvent(hub.EventChat, sender, receiver, msg)); err == nil {
		if counts, cerr := s.store.UnreadCounts(ctx, receiver); cerr == nil {
			_ = s.hub.Send(receiver, hub.NewEvent(hub.EventUnread, sender, receiver,
				unreadNotice{Peer: sender, Count: counts[sender]}))
		}
	} else {
		logger.Debug("[chat] receiver not pushable, stored only: " + err.Error())
	}
	return msg, nil
}

// History pages the conversation between two users, oldest to newest.
func (s *Service) History(ctx context.Context, a, b int64, limit int, beforeID int64) ([]Message, error) {
	return s.store.History(ctx, a, b, limit, beforeID)
}

// UnreadSummary maps peer id to unread count for the viewer.
func (s *Service) UnreadSummary(ctx context.Context, viewer int64) (map[int64]int64, error) {
	return s.store.UnreadCounts(ctx, viewer)
}

// MarkRead clears the viewer's unread state against one peer.
func (s *Service) MarkRead(ctx context.Context, viewer, peer int64) error {
	_, err := s.store.MarkRead(ctx, viewer, peer, s.clock())
	return err
}
