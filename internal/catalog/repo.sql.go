package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazna-mp/kazna-mp/internal/platform/db"
)

// Repository persists listings in PostgreSQL.
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
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const listingColumns = `id, marketplace, sku, model, sklad_code, invask_code, okno_code, united_code,
active_supplier, disabled, qty, cost, markup, price, updated_at`

// ListListings reads every listing of the marketplace outside a
// transaction, for the read-only HTTP surface.
func (r *Repository) ListListings(ctx context.Context, m Marketplace) ([]Listing, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE marketplace=$1 ORDER BY id ASC`, string(m))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

func (r *txRepository) ListListings(ctx context.Context, m Marketplace) ([]Listing, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE marketplace=$1 ORDER BY id ASC`, string(m))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

func (r *txRepository) UpdateDerived(ctx context.Context, upd DerivedUpdate) error {
	if upd.QtyOnly {
		_, err := r.tx.Exec(ctx, `UPDATE listings SET qty=$2, updated_at=$3 WHERE id=$1`,
			upd.ListingID, upd.Qty, upd.UpdatedAt)
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE listings SET qty=$2, cost=$3, price=$4, active_supplier=$5, updated_at=$6 WHERE id=$1`,
		upd.ListingID, upd.Qty, upd.Cost, upd.Price, string(upd.ActiveSupplier), upd.UpdatedAt)
	return err
}

func scanListings(rows pgx.Rows) ([]Listing, error) {
	listings := []Listing{}
	for rows.Next() {
		var l Listing
		var active string
		if err := rows.Scan(&l.ID, &l.Marketplace, &l.SKU, &l.Model,
			&l.SkladCode, &l.InvaskCode, &l.OknoCode, &l.UnitedCode,
			&active, &l.Disabled, &l.Qty, &l.Cost, &l.Markup, &l.Price, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.ActiveSupplier = Supplier(active)
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}
