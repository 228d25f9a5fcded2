package hub

import (
	"callbridge/logger"

	"github.com/gorilla/websocket"
)

// RemotePublisher forwards an event toward a user homed on another gateway
// node. Implemented by service/relay; nil in single-node deployments.
type RemotePublisher interface {
	Publish(userID int64, ev Event) error
}

// Hub fans events out to the right recipient. It stores nothing: callers
// (mailbox, chat store) must already hold the durable copy before calling
// Send, and treat an error as "deliver via the poll path instead".
type Hub struct {
	mgr    *ConnManager
	remote RemotePublisher

	onAttach []func(userID int64)
}

func New(remote RemotePublisher) *Hub {
	return &Hub{mgr: NewConnManager(), remote: remote}
}

// OnAttach registers a hook fired after a user's channel comes up. The
// signaling service hooks in to drain that user's mailbox immediately.
func (h *Hub) OnAttach(fn func(userID int64)) {
	h.onAttach = append(h.onAttach, fn)
}

// Attach registers the connection and fires attach hooks.
func (h *Hub) Attach(userID int64, conn *websocket.Conn) *Channel {
	ch := h.mgr.Attach(userID, conn)
	for _, fn := range h.onAttach {
		fn(userID)
	}
	return ch
}

func (h *Hub) Detach(userID int64, ch *Channel) {
	h.mgr.Detach(userID, ch)
}

// DetachUser closes the user's channel whatever connection backs it.
// Used by the presence offline hook.
func (h *Hub) DetachUser(userID int64) {
	h.mgr.mu.Lock()
	ch := h.mgr.byUser[userID]
	delete(h.mgr.byUser, userID)
	h.mgr.mu.Unlock()
	if ch != nil {
		ch.close()
	}
}

func (h *Hub) IsConnected(userID int64) bool {
	return h.mgr.IsConnected(userID)
}

// Send delivers locally if the user is attached here, otherwise hands the
// event to the cross-gateway relay when one is configured. An error from
// both paths means "not reachable by push right now".
func (h *Hub) Send(userID int64, ev Event) error {
	err := h.mgr.Send(userID, ev)
	if err == nil {
		return nil
	}
	if h.remote != nil {
		if rerr := h.remote.Publish(userID, ev); rerr == nil {
			return nil
		} else {
			logger.Debug("[hub] remote publish failed: " + rerr.Error())
		}
	}
	return err
}

// SendLocal skips the relay. The relay consumer uses this to deliver
// inbound remote events without bouncing them back out.
func (h *Hub) SendLocal(userID int64, ev Event) error {
	return h.mgr.Send(userID, ev)
}

// Close tears down every channel.
func (h *Hub) Close() {
	h.mgr.CloseAll()
}
