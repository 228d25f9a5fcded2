package presence

import (
	"sync"
	"time"

	"callbridge/logger"
)

// Entry is one online user. At most one entry exists per user id.
type Entry struct {
	UserID        int64
	Username      string
	LastHeartbeat time.Time
}

// Mirror publishes presence transitions to a shared store so other gateway
// nodes can answer "is this user online, and where". Nil mirror is fine for
// single-node deployments and tests.
type Mirror interface {
	Online(userID int64, username string, ttl time.Duration) error
	Offline(userID int64) error
}

type Conf struct {
	Timeout time.Duration    // entry considered stale after this much silence
	Clock   func() time.Time // injectable for tests; nil => time.Now
	Mirror  Mirror
}

func (c *Conf) norm() {
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Registry tracks who is online from heartbeats. It is the component every
// other part of the relay queries; expiry of silent entries is driven by the
// reaper calling ExpireStale.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*Entry

	conf      Conf
	offlineMu sync.RWMutex
	onOffline []func(userID int64)
}

func NewRegistry(conf Conf) *Registry {
	conf.norm()
	return &Registry{
		entries: make(map[int64]*Entry),
		conf:    conf,
	}
}

// OnOffline registers a callback fired whenever a user goes offline, whether
// explicitly or by expiry. The connection hub and call table hook in here.
func (r *Registry) OnOffline(fn func(userID int64)) {
	r.offlineMu.Lock()
	r.onOffline = append(r.onOffline, fn)
	r.offlineMu.Unlock()
}

// MarkOnline registers a user after login. Idempotent; refreshes the
// heartbeat and display name if the entry already exists.
func (r *Registry) MarkOnline(userID int64, username string) {
	now := r.conf.Clock()
	r.mu.Lock()
	e, ok := r.entries[userID]
	if !ok {
		e = &Entry{UserID: userID}
		r.entries[userID] = e
	}
	if username != "" {
		e.Username = username
	}
	e.LastHeartbeat = now
	r.mu.Unlock()

	r.mirrorOnline(userID, username)
}

// Heartbeat upserts the last-seen time. Unknown users are silently created:
// authentication already happened at the boundary, so a heartbeat is proof
// enough of presence.
func (r *Registry) Heartbeat(userID int64) {
	now := r.conf.Clock()
	r.mu.Lock()
	e, ok := r.entries[userID]
	if !ok {
		e = &Entry{UserID: userID}
		r.entries[userID] = e
	}
	e.LastHeartbeat = now
	name := e.Username
	r.mu.Unlock()

	r.mirrorOnline(userID, name)
}

// MarkOffline removes the entry immediately (explicit logout) and fires the
// offline hooks so the hub tears the channel down and live calls end with
// reason disconnected.
func (r *Registry) MarkOffline(userID int64) {
	r.mu.Lock()
	_, ok := r.entries[userID]
	delete(r.entries, userID)
	r.mu.Unlock()
	if !ok {
		return
	}
	if m := r.conf.Mirror; m != nil {
		if err := m.Offline(userID); err != nil {
			logger.Warnf("[presence] mirror offline user=%d err=%v", userID, err)
		}
	}
	r.fireOffline(userID)
}

// IsOnline reports whether the user has a non-stale entry.
func (r *Registry) IsOnline(userID int64) bool {
	now := r.conf.Clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	return ok && now.Sub(e.LastHeartbeat) <= r.conf.Timeout
}

// ListOnline returns a snapshot of all non-stale entries. Staleness of a few
// seconds is acceptable here; the reaper removes expired entries on its own
// schedule.
func (r *Registry) ListOnline() []Entry {
	now := r.conf.Clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if now.Sub(e.LastHeartbeat) <= r.conf.Timeout {
			out = append(out, *e)
		}
	}
	return out
}

// ExpireStale drops every entry past the timeout and fires offline hooks for
// each. Called from the reaper sweep; returns the expired ids.
func (r *Registry) ExpireStale() []int64 {
	now := r.conf.Clock()
	var expired []int64
	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.LastHeartbeat) > r.conf.Timeout {
			delete(r.entries, id)
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		if m := r.conf.Mirror; m != nil {
			if err := m.Offline(id); err != nil {
				logger.Warnf("[presence] mirror offline user=%d err=%v", id, err)
			}
		}
		r.fireOffline(id)
	}
	return expired
}

func (r *Registry) mirrorOnline(userID int64, username string) {
	if m := r.conf.Mirror; m != nil {
		if err := m.Online(userID, username, r.conf.Timeout); err != nil {
			logger.Warnf("[presence] mirror online user=%d err=%v", userID, err)
		}
	}
}

func (r *Registry) fireOffline(userID int64) {
	r.offlineMu.RLock()
	hooks := r.onOffline
	r.offlineMu.RUnlock()
	for _, fn := range hooks {
		fn(userID)
	}
}
