package suppress

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
	"github.com/kazna-mp/kazna-mp/internal/flags"
	"github.com/kazna-mp/kazna-mp/internal/platform/db"
)

// Repository persists the suppression ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("suppress repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) ListMarketplaceRows(ctx context.Context, m catalog.Marketplace) ([]Row, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, qty FROM listings WHERE marketplace=$1 ORDER BY id ASC`, string(m))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (r *txRepository) ListSupplierRows(ctx context.Context, m catalog.Marketplace, s catalog.Supplier) ([]Row, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, qty FROM listings WHERE marketplace=$1 AND active_supplier=$2 ORDER BY id ASC`,
		string(m), string(s))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (r *txRepository) InsertRecord(ctx context.Context, rec Record) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO suppression_records (axis, key, listing_id, qty, created_at)
VALUES ($1, $2, $3, $4, NOW())`, string(rec.Axis), rec.Key, rec.ListingID, rec.Qty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSnapshotExists
		}
		return err
	}
	return nil
}

func (r *txRepository) ListRecords(ctx context.Context, axis flags.Axis, key string) ([]Record, error) {
	rows, err := r.tx.Query(ctx, `SELECT axis, key, listing_id, qty FROM suppression_records
WHERE axis=$1 AND key=$2 ORDER BY listing_id ASC`, string(axis), key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Axis, &rec.Key, &rec.ListingID, &rec.Qty); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *txRepository) SetQty(ctx context.Context, listingID int64, qty int, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE listings SET qty=$2, updated_at=$3 WHERE id=$1`, listingID, qty, at)
	return err
}

func (r *txRepository) DeleteRecords(ctx context.Context, axis flags.Axis, key string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM suppression_records WHERE axis=$1 AND key=$2`, string(axis), key)
	return err
}

func (r *txRepository) UpsertFlag(ctx context.Context, f flags.Flag) error {
	return flags.Upsert(ctx, r.tx, f)
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	out := []Row{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ListingID, &row.Qty); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
