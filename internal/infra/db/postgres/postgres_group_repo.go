// File: internal/infra/db/postgres/postgres_group_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/repository"
)

var _ repository.GroupRepository = (*GroupRepo)(nil)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) FindGroup(ctx context.Context, tx repository.Tx, id string) (*model.Group, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var g model.Group
	err = ex.QueryRow(ctx, `SELECT id, name FROM groups WHERE id = $1;`, id).Scan(&g.ID, &g.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &g, nil
}

func (r *GroupRepo) Memberships(ctx context.Context, tx repository.Tx, userID string) ([]*model.GroupMembership, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT group_id, user_id FROM group_memberships WHERE user_id = $1;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []*model.GroupMembership
	for rows.Next() {
		var m model.GroupMembership
		if err := rows.Scan(&m.GroupID, &m.UserID); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
