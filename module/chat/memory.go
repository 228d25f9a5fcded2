package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps messages in process memory. Used by tests and by dev
// runs with no Mongo configured. Same semantics as MongoStore.
type MemoryStore struct {
	mu   sync.RWMutex
	msgs []*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *MemoryStore) History(_ context.Context, a, b int64, limit int, beforeID int64) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	s.mu.RLock()
	var matched []Message
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			if beforeID > 0 && m.ID >= beforeID {
				continue
			}
			matched = append(matched, *m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *MemoryStore) UnreadCounts(_ context.Context, viewer int64) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]int64)
	for _, m := range s.msgs {
		if m.ReceiverID == viewer && m.ReadAt == nil {
			out[m.SenderID]++
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, viewer, peer int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.SenderID == peer && m.ReceiverID == viewer && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}
