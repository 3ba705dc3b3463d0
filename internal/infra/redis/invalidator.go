package redis

import (
	"context"
)

// InvalidateChannel carries conversation ids whose children changed; UI
// processes subscribe to it to refetch their views.
const InvalidateChannel = "content.invalidate"

// ChildrenInvalidator drops any cached children listing for a conversation
// and broadcasts the change. Invalidation is advisory: failures are dropped
// because the TTL on cached entries bounds staleness anyway.
type ChildrenInvalidator struct {
	client *Client
}

func NewChildrenInvalidator(client *Client) *ChildrenInvalidator {
	return &ChildrenInvalidator{client: client}
}

func childrenKey(contentID string) string { return "content_children:" + contentID }

func (i *ChildrenInvalidator) InvalidateChildren(ctx context.Context, contentID string) {
	_ = i.client.Del(ctx, childrenKey(contentID), sessionKey(contentID))
	_ = i.client.Publish(ctx, InvalidateChannel, contentID)
}
