package chat

import (
	"context"
	"time"
)

// Store persists chat messages and read state. Two implementations: MongoDB
// for production and an in-memory one for tests and single-node dev runs.
// Implementations surface failures as StorageUnavailable so the boundary
// can report them as retryable.
type Store interface {
	// Append inserts one message durably; no partial writes.
	Append(ctx context.Context, msg *Message) error

	// History returns messages between a and b (both directions), oldest to
	// newest. beforeID > 0 restricts to messages older than that id, which
	// makes paging backwards restartable; limit <= 0 means a default page.
	History(ctx context.Context, a, b int64, limit int, beforeID int64) ([]Message, error)

	// UnreadCounts maps each peer to the number of their messages the
	// viewer has not read yet. Reflects appends immediately.
	UnreadCounts(ctx context.Context, viewer int64) (map[int64]int64, error)

	// MarkRead stamps readAt=at on every unread message from peer to
	// viewer. Idempotent; returns how many rows changed.
	MarkRead(ctx context.Context, viewer, peer int64, at time.Time) (int64, error)
}

const defaultHistoryLimit = 100
