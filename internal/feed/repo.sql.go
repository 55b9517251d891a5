package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
)

// Loader reads the supplier_prices mirror from PostgreSQL.
type Loader struct {
	pool   *pgxpool.Pool
	minQty int
	logger *slog.Logger
}

// NewLoader constructs a Loader. minQty is the feed quantity floor.
func NewLoader(pool *pgxpool.Pool, minQty int, logger *slog.Logger) *Loader {
	return &Loader{pool: pool, minQty: minQty, logger: logger}
}

// Load reads the whole feed into a Snapshot. Rows naming an unknown
// supplier are skipped with a warning; they must not abort the pass.
func (l *Loader) Load(ctx context.Context) (catalog.SnapshotLookup, error) {
	if l == nil || l.pool == nil {
		return nil, errors.New("feed: loader not initialised")
	}
	rows, err := l.pool.Query(ctx, `SELECT supplier, code, qty, cost FROM supplier_prices`)
	if err != nil {
		return nil, fmt.Errorf("feed: load supplier prices: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			supplier string
			code     string
			qty      int
			cost     *float64
		)
		if err := rows.Scan(&supplier, &code, &qty, &cost); err != nil {
			return nil, fmt.Errorf("feed: scan supplier price: %w", err)
		}
		parsed, err := catalog.ParseSupplier(supplier)
		if err != nil {
			if l.logger != nil {
				l.logger.Warn("feed row skipped", slog.String("supplier", supplier), slog.String("code", code))
			}
			continue
		}
		entries = append(entries, Entry{Supplier: parsed, Code: code, Qty: qty, Cost: cost})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feed: read supplier prices: %w", err)
	}
	return NewSnapshot(entries, l.minQty), nil
}
