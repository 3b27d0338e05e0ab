// Package db gives the scheduled functions a direct Postgres connection for set-based updates
// that PostgREST cannot express atomically.
package db

import (
	"context"
	"fmt"
	"os"

	"podmarket/common/app"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx.Tx the lifecycle queries need.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WithTx runs fn inside one transaction on DATABASE_URL. A Querier placed in the app cache
// under {"DB", "Querier"} is used directly instead.
func WithTx(ctx context.Context, fn func(q Querier) error) error {
	if fake, found := app.GetCacheValue[Querier](ctx, []any{"DB", "Querier"}, nil); found {
		return fn(fake)
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return fmt.Errorf("invalid or incomplete database environment variables")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("could not connect to database:\n>>> %w", err)
	}
	defer pool.Close()

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
	if err != nil {
		return fmt.Errorf("transaction failed:\n>>> %w", err)
	}
	return nil
}

// CollectIDs reads (id, business_id) pairs from RETURNING clauses.
func CollectIDs(rows pgx.Rows) ([]Ref, error) {
	defer rows.Close()
	refs := []Ref{}
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.ID, &ref.BusinessID); err != nil {
			return nil, fmt.Errorf("could not scan returned row:\n>>> %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading returned rows:\n>>> %w", err)
	}
	return refs, nil
}

type Ref struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
}
