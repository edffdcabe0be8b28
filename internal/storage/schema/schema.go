package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var DDL string

// Apply creates missing tables and indexes. Every statement is idempotent,
// so it is safe to run on each start.
func Apply(ctx context.Context, pg *pgxpool.Pool) error {
	err := pgx.BeginFunc(ctx, pg, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, DDL)
		return err
	})
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}
