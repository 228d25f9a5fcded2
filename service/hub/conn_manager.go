package hub

import (
	"encoding/json"
	"sync"
	"time"

	"callbridge/logger"
	"callbridge/tools/errs"
	"callbridge/tools/safe"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 64
	writeDeadline = 5 * time.Second
	pingEvery     = 25 * time.Second
)

// Channel is one live push connection. Writes go through a buffered queue
// consumed by a single writer goroutine, so events for a user are delivered
// in the order Send was called.
type Channel struct {
	UserID    int64
	CreatedAt time.Time

	conn      *websocket.Conn
	sendCh    chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func (ch *Channel) close() {
	ch.closeOnce.Do(func() {
		close(ch.done)
		_ = ch.conn.Close()
	})
}

// Done is closed when the channel is torn down; the read loop selects on it.
func (ch *Channel) Done() <-chan struct{} { return ch.done }

func (ch *Channel) writeLoop() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ch.done:
			return
		case data := <-ch.sendCh:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := ch.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[hub] write failed user=%d err=%v", ch.UserID, err)
				ch.close()
				return
			}
		case <-ticker.C:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := ch.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ch.close()
				return
			}
		}
	}
}

// ConnManager owns the userID -> channel registry. One channel per user: a
// second attach forcibly closes the first after telling its holder why.
type ConnManager struct {
	mu     sync.RWMutex
	byUser map[int64]*Channel
}

func NewConnManager() *ConnManager {
	return &ConnManager{byUser: make(map[int64]*Channel)}
}

// Attach registers conn as the user's push channel and starts its writer.
// An existing channel for the same user is notified and closed first; that
// is not an error for the new attacher.
func (m *ConnManager) Attach(userID int64, conn *websocket.Conn) *Channel {
	ch := &Channel{
		UserID:    userID,
		CreatedAt: time.Now(),
		conn:      conn,
		sendCh:    make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	old := m.byUser[userID]
	m.byUser[userID] = ch
	m.mu.Unlock()

	if old != nil {
		// best effort: let the old holder know it was displaced
		if data, err := json.Marshal(NewEvent(EventReplaced, 0, userID, nil)); err == nil {
			select {
			case old.sendCh <- data:
			default:
			}
		}
		// give the queued frame a moment to flush before the close
		time.AfterFunc(100*time.Millisecond, old.close)
		logger.Infof("[hub] channel conflict user=%d, prior channel closed", userID)
	}

	safe.Go(ch.writeLoop)
	return ch
}

// Detach removes the channel only if ch is still the user's current one, so
// a late teardown from a replaced connection cannot kill its successor.
func (m *ConnManager) Detach(userID int64, ch *Channel) {
	m.mu.Lock()
	if cur, ok := m.byUser[userID]; ok && cur == ch {
		delete(m.byUser, userID)
	}
	m.mu.Unlock()
	ch.close()
}

// IsConnected reports whether the user has a live channel.
func (m *ConnManager) IsConnected(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byUser[userID]
	return ok
}

// Send enqueues one event for the user's channel. It fails fast when there
// is no channel or the queue is full; the caller keeps the durable copy, so
// a failed send only means delivery falls back to the poll path.
func (m *ConnManager) Send(userID int64, ev Event) error {
	m.mu.RLock()
	ch := m.byUser[userID]
	m.mu.RUnlock()

	if ch == nil {
		return errs.ErrPresenceExpired.WithDetail("no live channel")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case ch.sendCh <- data:
		return nil
	case <-ch.done:
		return errs.ErrPresenceExpired.WithDetail("channel closed")
	default:
		return errs.New("send queue full")
	}
}

// CloseAll tears down every channel (shutdown path).
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	chans := m.byUser
	m.byUser = make(map[int64]*Channel)
	m.mu.Unlock()
	for _, ch := range chans {
		ch.close()
	}
}
