package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// presence key: cb:presence:<user>
// Value: gateway id; the TTL is the online validity window, renewed by
// every heartbeat, so expiry needs no sweeper on the Redis side.
func presenceKey(userID int64) string {
	return "cb:presence:" + strconv.FormatInt(userID, 10)
}

// PresenceMirror implements presence.Mirror on Redis so every gateway node
// can answer "is this user online and which node owns their channel".
type PresenceMirror struct {
	rdb       *redis.Client
	gatewayID string
}

func NewPresenceMirror(rdb *redis.Client, gatewayID string) *PresenceMirror {
	return &PresenceMirror{rdb: rdb, gatewayID: gatewayID}
}

func (m *PresenceMirror) Online(userID int64, _ string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.rdb.Set(ctx, presenceKey(userID), m.gatewayID, ttl).Err()
}

func (m *PresenceMirror) Offline(userID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.rdb.Del(ctx, presenceKey(userID)).Err()
}

// Lookup reports whether the user is online anywhere and on which gateway.
func (m *PresenceMirror) Lookup(ctx context.Context, userID int64) (gatewayID string, online bool, err error) {
	val, err := m.rdb.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
