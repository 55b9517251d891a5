package flags

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is the pgx query surface shared by a pool and a transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Upsert writes one flag row through the given executor. Toggle code
// passes its open transaction here so the flag flip commits or rolls
// back together with the listing and ledger writes.
func Upsert(ctx context.Context, ex Execer, flag Flag) error {
	if ex == nil {
		return errors.New("flags: executor required")
	}
	_, err := ex.Exec(ctx, `INSERT INTO flags (axis, key, enabled, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (axis, key) DO UPDATE SET enabled=EXCLUDED.enabled, updated_at=NOW()`,
		flag.Axis, flag.Key, flag.Enabled)
	if err != nil {
		return fmt.Errorf("flags: upsert %s %s: %w", flag.Axis, flag.Key, err)
	}
	return nil
}

// Repository reads persisted flags from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFlags reads every persisted flag row.
func (r *Repository) ListFlags(ctx context.Context) ([]Flag, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("flags repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT axis, key, enabled FROM flags`)
	if err != nil {
		return nil, fmt.Errorf("flags: list: %w", err)
	}
	defer rows.Close()
	var out []Flag
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.Axis, &f.Key, &f.Enabled); err != nil {
			return nil, fmt.Errorf("flags: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
