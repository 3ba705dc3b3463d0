// File: internal/infra/db/postgres/postgres_content_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/repository"
)

var _ repository.ContentRepository = (*ContentRepo)(nil)

// ContentRepo is the thin wrapper over the hosted content table. Schema,
// RLS and search live with the hosting service; this repo only reads
// records, inserts children, and merges metadata keys.
type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

const contentColumns = `id, type, data, COALESCE(metadata, '{}'::jsonb), user_id, group_id, parent_content_id, created_at, updated_at`

func (r *ContentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Content, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM content WHERE id = $1;`, contentColumns)
	return scanContent(ex.QueryRow(ctx, q, id))
}

func (r *ContentRepo) CreateChild(ctx context.Context, tx repository.Tx, child *model.Content) (string, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return "", err
	}
	if child.ID == "" {
		child.ID = ulid.Make().String()
	}
	metaJSON, err := encodeMetadata(child.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	const q = `
INSERT INTO content (id, type, data, metadata, user_id, group_id, parent_content_id, created_at, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, NOW(), NOW())
RETURNING id;`
	var id string
	if err := ex.QueryRow(ctx, q,
		child.ID, child.Type, child.Data, metaJSON,
		child.UserID, child.GroupID, child.ParentContentID,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("insert content: %w", err)
	}
	return id, nil
}

func (r *ContentRepo) ListChildren(ctx context.Context, tx repository.Tx, parentID string) ([]*model.Content, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM content WHERE parent_content_id = $1 ORDER BY created_at;`, contentColumns)
	rows, err := ex.Query(ctx, q, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []*model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MergeMetadata merges the given keys into the record's jsonb metadata,
// leaving sibling keys in place. The || operator replaces only top-level
// keys, which is exactly the contract.
func (r *ContentRepo) MergeMetadata(ctx context.Context, tx repository.Tx, id string, keys map[string]json.RawMessage) error {
	if len(keys) == 0 {
		return nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	patch, err := encodeMetadata(keys)
	if err != nil {
		return fmt.Errorf("encode metadata patch: %w", err)
	}

	const q = `
UPDATE content
SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
    updated_at = NOW()
WHERE id = $1;`
	tag, err := ex.Exec(ctx, q, id, patch)
	if err != nil {
		return fmt.Errorf("merge metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeMetadata(meta map[string]json.RawMessage) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func scanContent(row pgx.Row) (*model.Content, error) {
	var (
		c        model.Content
		metaJSON []byte
		created  time.Time
		updated  time.Time
	)
	err := row.Scan(&c.ID, &c.Type, &c.Data, &metaJSON, &c.UserID, &c.GroupID, &c.ParentContentID, &created, &updated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	c.CreatedAt = created
	c.UpdatedAt = updated
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &c, nil
}
