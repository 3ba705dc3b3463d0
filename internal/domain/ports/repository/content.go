package repository

import (
	"context"
	"encoding/json"

	"content-enrichment/internal/domain/model"
)

// ContentRepository is the thin port over the hosted content table. The
// storage engine (schema, RLS, search) is an external collaborator; this
// service only reads records, creates children, and merges metadata keys.
type ContentRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Content, error)
	CreateChild(ctx context.Context, tx Tx, child *model.Content) (string, error)
	ListChildren(ctx context.Context, tx Tx, parentID string) ([]*model.Content, error)

	// MergeMetadata merges the given keys into the record's metadata blob,
	// leaving sibling keys untouched.
	MergeMetadata(ctx context.Context, tx Tx, id string, keys map[string]json.RawMessage) error
}

// GroupRepository reads group membership for authorization checks.
type GroupRepository interface {
	FindGroup(ctx context.Context, tx Tx, id string) (*model.Group, error)
	Memberships(ctx context.Context, tx Tx, userID string) ([]*model.GroupMembership, error)
}
