package model

import (
	"encoding/json"
	"time"
)

// Content mirrors the hosted content table: a tree-structured record owned
// by a user inside a group. Data holds the item body (text, a URL, a file
// reference); Metadata is a free-form blob shared by several features, of
// which this service only ever merges its own keys.
type Content struct {
	ID              string
	Type            string
	Data            string
	Metadata        map[string]json.RawMessage
	UserID          string
	GroupID         string
	ParentContentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionMetadata decodes the continuation blob from the metadata map, or
// returns nil when absent or unreadable.
func (c *Content) SessionMetadata() *SessionMetadata {
	if c == nil || c.Metadata == nil {
		return nil
	}
	raw, ok := c.Metadata[MetadataKeySession]
	if !ok {
		return nil
	}
	var meta SessionMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return &meta
}

// Group is a minimal projection of the groups table.
type Group struct {
	ID   string
	Name string
}

// GroupMembership links a user to a group.
type GroupMembership struct {
	GroupID string
	UserID  string
}
