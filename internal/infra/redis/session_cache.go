package redis

import (
	"context"
	"encoding/json"
	"time"

	"content-enrichment/internal/domain/model"
)

// SessionCache memoizes resolved session metadata per conversation id so
// repeated continuations skip the parent-chain walk. Negative results are
// not cached; the TTL bounds staleness for writes made by other processes.
type SessionCache struct {
	client *Client
	ttl    time.Duration
}

func NewSessionCache(client *Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(contentID string) string { return "session_meta:" + contentID }

func (c *SessionCache) Get(ctx context.Context, contentID string) (*model.SessionMetadata, bool) {
	data, err := c.client.Get(ctx, sessionKey(contentID))
	if err != nil {
		return nil, false
	}
	var meta model.SessionMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

func (c *SessionCache) Set(ctx context.Context, contentID string, meta *model.SessionMetadata) {
	if meta == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, sessionKey(contentID), data, c.ttl)
}

func (c *SessionCache) Invalidate(ctx context.Context, contentID string) {
	_ = c.client.Del(ctx, sessionKey(contentID))
}
