// File: internal/infra/db/postgres/postgres_account_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"content-enrichment/internal/usecase"
)

// AccountRepo lists bank-account content records for the daily sync sweep.
// The Teller account id and the encrypted access token live under the
// "teller_account" metadata key.
type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) DueAccounts(ctx context.Context) ([]usecase.AccountRef, error) {
	const q = `
		SELECT id,
		       COALESCE(metadata->'teller_account'->>'account_id', ''),
		       COALESCE(metadata->'teller_account'->>'access_token', '')
		FROM content
		WHERE type = 'bank_account'
		  AND metadata ? 'teller_account'
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query due accounts: %w", err)
	}
	defer rows.Close()

	var refs []usecase.AccountRef
	for rows.Next() {
		var ref usecase.AccountRef
		if err := rows.Scan(&ref.ContentID, &ref.AccountID, &ref.AccessToken); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		if ref.AccountID == "" || ref.AccessToken == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
