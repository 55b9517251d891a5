package suppress

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
	"github.com/kazna-mp/kazna-mp/internal/flags"
)

type memoryListing struct {
	marketplace catalog.Marketplace
	supplier    catalog.Supplier
	qty         int
}

// memoryRepo commits the transaction's staged state only when the
// callback succeeds, mirroring the rollback behaviour of the SQL
// repository.
type memoryRepo struct {
	listings map[int64]memoryListing
	records  map[string]Record
	flagRows map[string]bool

	flagErr error
}

type memoryTx struct {
	repo     *memoryRepo
	listings map[int64]memoryListing
	records  map[string]Record
	flagRows map[string]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		listings: make(map[int64]memoryListing),
		records:  make(map[string]Record),
		flagRows: make(map[string]bool),
	}
}

func (r *memoryRepo) add(id int64, m catalog.Marketplace, s catalog.Supplier, qty int) {
	r.listings[id] = memoryListing{marketplace: m, supplier: s, qty: qty}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:     r,
		listings: maps.Clone(r.listings),
		records:  maps.Clone(r.records),
		flagRows: maps.Clone(r.flagRows),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.listings = tx.listings
	r.records = tx.records
	r.flagRows = tx.flagRows
	return nil
}

func recordKey(axis flags.Axis, key string, listingID int64) string {
	return string(axis) + ":" + key + ":" + strconv.FormatInt(listingID, 10)
}

func flagKey(axis flags.Axis, key string) string {
	return string(axis) + ":" + key
}

func (tx *memoryTx) ListMarketplaceRows(ctx context.Context, m catalog.Marketplace) ([]Row, error) {
	out := []Row{}
	for id, l := range tx.listings {
		if l.marketplace == m {
			out = append(out, Row{ListingID: id, Qty: l.qty})
		}
	}
	return out, nil
}

func (tx *memoryTx) ListSupplierRows(ctx context.Context, m catalog.Marketplace, s catalog.Supplier) ([]Row, error) {
	out := []Row{}
	for id, l := range tx.listings {
		if l.marketplace == m && l.supplier == s {
			out = append(out, Row{ListingID: id, Qty: l.qty})
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertRecord(ctx context.Context, rec Record) error {
	k := recordKey(rec.Axis, rec.Key, rec.ListingID)
	if _, exists := tx.records[k]; exists {
		return ErrSnapshotExists
	}
	tx.records[k] = rec
	return nil
}

func (tx *memoryTx) ListRecords(ctx context.Context, axis flags.Axis, key string) ([]Record, error) {
	out := []Record{}
	for _, rec := range tx.records {
		if rec.Axis == axis && rec.Key == key {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (tx *memoryTx) SetQty(ctx context.Context, listingID int64, qty int, at time.Time) error {
	l := tx.listings[listingID]
	l.qty = qty
	tx.listings[listingID] = l
	return nil
}

func (tx *memoryTx) DeleteRecords(ctx context.Context, axis flags.Axis, key string) error {
	for k, rec := range tx.records {
		if rec.Axis == axis && rec.Key == key {
			delete(tx.records, k)
		}
	}
	return nil
}

func (tx *memoryTx) UpsertFlag(ctx context.Context, f flags.Flag) error {
	if tx.repo.flagErr != nil {
		return tx.repo.flagErr
	}
	tx.flagRows[flagKey(f.Axis, f.Key)] = f.Enabled
	return nil
}

type memoryFlags struct {
	marketplaces map[catalog.Marketplace]bool
	suppliers    map[catalog.Supplier]bool
}

func newMemoryFlags() *memoryFlags {
	return &memoryFlags{
		marketplaces: make(map[catalog.Marketplace]bool),
		suppliers:    make(map[catalog.Supplier]bool),
	}
}

func (f *memoryFlags) MarketplaceEnabled(m catalog.Marketplace) bool {
	enabled, ok := f.marketplaces[m]
	if !ok {
		return true
	}
	return enabled
}

func (f *memoryFlags) SupplierEnabled(s catalog.Supplier) bool {
	enabled, ok := f.suppliers[s]
	if !ok {
		return true
	}
	return enabled
}

func (f *memoryFlags) Apply(fl flags.Flag) {
	switch fl.Axis {
	case flags.AxisMarketplace:
		f.marketplaces[catalog.Marketplace(fl.Key)] = fl.Enabled
	case flags.AxisSupplier:
		f.suppliers[catalog.Supplier(fl.Key)] = fl.Enabled
	}
}

type countingReconciler struct {
	calls []catalog.Marketplace
}

func (r *countingReconciler) ReconcileMarketplace(ctx context.Context, m catalog.Marketplace) (catalog.Summary, error) {
	r.calls = append(r.calls, m)
	return catalog.Summary{Marketplace: m}, nil
}

func newTestLedger(t *testing.T, repo *memoryRepo, fl *memoryFlags, rec ReconcilerPort, onRestore bool) *Ledger {
	t.Helper()
	ledger, err := NewLedger(LedgerConfig{
		Repo:               repo,
		Flags:              fl,
		Reconciler:         rec,
		ReconcileOnRestore: onRestore,
	})
	require.NoError(t, err)
	return ledger
}

func TestMarketplaceRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierSklad, 5)
	repo.add(2, catalog.MarketplaceOzon, catalog.SupplierInvask, 0)
	repo.add(3, catalog.MarketplaceOzon, catalog.SupplierOkno, 7)
	repo.add(4, catalog.MarketplaceYandex, catalog.SupplierSklad, 9)
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)
	ctx := context.Background()

	result, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.False(t, result.NoOp)
	require.Equal(t, 3, result.Rows)
	require.False(t, fl.MarketplaceEnabled(catalog.MarketplaceOzon))
	require.Equal(t, 0, repo.listings[1].qty)
	require.Equal(t, 0, repo.listings[3].qty)
	require.Equal(t, 9, repo.listings[4].qty)
	require.Len(t, repo.records, 3)
	require.False(t, repo.flagRows["marketplace:ozon"])

	result, err = ledger.Enable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.Equal(t, 3, result.Rows)
	require.True(t, fl.MarketplaceEnabled(catalog.MarketplaceOzon))
	require.Equal(t, 5, repo.listings[1].qty)
	require.Equal(t, 0, repo.listings[2].qty)
	require.Equal(t, 7, repo.listings[3].qty)
	require.Empty(t, repo.records)
	require.True(t, repo.flagRows["marketplace:ozon"])
}

func TestDoubleDisableIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierSklad, 5)
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)
	ctx := context.Background()

	_, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)

	result, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.True(t, result.NoOp)
	require.Equal(t, 0, result.Rows)
	require.Len(t, repo.records, 1)
}

func TestDoubleEnableIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)

	result, err := ledger.Enable(context.Background(), flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.True(t, result.NoOp)
}

func TestDisableRollsBackWhenFlagWriteFails(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierSklad, 5)
	repo.flagErr = errors.New("flags table unavailable")
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)
	ctx := context.Background()

	_, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.Error(t, err)

	// The failed toggle must leave no trace: quantity intact, no ledger
	// records, flag still enabled everywhere.
	require.Equal(t, 5, repo.listings[1].qty)
	require.Empty(t, repo.records)
	require.Empty(t, repo.flagRows)
	require.True(t, fl.MarketplaceEnabled(catalog.MarketplaceOzon))

	// Once the flag write recovers, the retry goes through cleanly.
	repo.flagErr = nil
	result, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.False(t, result.NoOp)
	require.Equal(t, 1, result.Rows)
	require.Equal(t, 0, repo.listings[1].qty)
	require.False(t, fl.MarketplaceEnabled(catalog.MarketplaceOzon))
	require.False(t, repo.flagRows["marketplace:ozon"])
}

func TestEnableRollsBackWhenFlagWriteFails(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierSklad, 5)
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)
	ctx := context.Background()

	_, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)

	repo.flagErr = errors.New("flags table unavailable")
	_, err = ledger.Enable(ctx, flags.AxisMarketplace, "ozon")
	require.Error(t, err)
	require.Equal(t, 0, repo.listings[1].qty)
	require.Len(t, repo.records, 1)
	require.False(t, fl.MarketplaceEnabled(catalog.MarketplaceOzon))

	repo.flagErr = nil
	result, err := ledger.Enable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.Equal(t, 1, result.Rows)
	require.Equal(t, 5, repo.listings[1].qty)
	require.Empty(t, repo.records)
	require.True(t, fl.MarketplaceEnabled(catalog.MarketplaceOzon))
}

func TestToggleKeysAreCanonical(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierSklad, 5)
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)
	ctx := context.Background()

	result, err := ledger.Disable(ctx, flags.AxisMarketplace, "OZON")
	require.NoError(t, err)
	require.Equal(t, "ozon", result.Key)
	require.Contains(t, repo.records, recordKey(flags.AxisMarketplace, "ozon", 1))

	result, err = ledger.Enable(ctx, flags.AxisMarketplace, "Ozon")
	require.NoError(t, err)
	require.Equal(t, 1, result.Rows)
	require.Equal(t, 5, repo.listings[1].qty)
}

func TestSupplierAxisScopesByActiveSupplier(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierInvask, 4)
	repo.add(2, catalog.MarketplaceOzon, catalog.SupplierSklad, 6)
	repo.add(3, catalog.MarketplaceWildberries, catalog.SupplierInvask, 2)
	fl := newMemoryFlags()
	ledger := newTestLedger(t, repo, fl, nil, false)
	ctx := context.Background()

	result, err := ledger.Disable(ctx, flags.AxisSupplier, "Invask")
	require.NoError(t, err)
	require.Equal(t, 2, result.Rows)
	require.False(t, fl.SupplierEnabled(catalog.SupplierInvask))
	require.Equal(t, 0, repo.listings[1].qty)
	require.Equal(t, 6, repo.listings[2].qty)
	require.Equal(t, 0, repo.listings[3].qty)

	result, err = ledger.Enable(ctx, flags.AxisSupplier, "Invask")
	require.NoError(t, err)
	require.Equal(t, 2, result.Rows)
	require.Equal(t, 4, repo.listings[1].qty)
	require.Equal(t, 2, repo.listings[3].qty)
}

func TestRestoreTriggersReconcile(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(1, catalog.MarketplaceOzon, catalog.SupplierSklad, 5)
	fl := newMemoryFlags()
	rec := &countingReconciler{}
	ledger := newTestLedger(t, repo, fl, rec, true)
	ctx := context.Background()

	_, err := ledger.Disable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.Empty(t, rec.calls)

	_, err = ledger.Enable(ctx, flags.AxisMarketplace, "ozon")
	require.NoError(t, err)
	require.Equal(t, []catalog.Marketplace{catalog.MarketplaceOzon}, rec.calls)

	rec.calls = nil
	_, err = ledger.Disable(ctx, flags.AxisSupplier, "United")
	require.NoError(t, err)
	_, err = ledger.Enable(ctx, flags.AxisSupplier, "United")
	require.NoError(t, err)
	require.Len(t, rec.calls, len(catalog.Marketplaces()))
}

func TestUnknownKeyRejected(t *testing.T) {
	ledger := newTestLedger(t, newMemoryRepo(), newMemoryFlags(), nil, false)
	ctx := context.Background()

	_, err := ledger.Disable(ctx, flags.AxisMarketplace, "ebay")
	require.ErrorIs(t, err, catalog.ErrUnknownMarketplace)

	_, err = ledger.Disable(ctx, flags.AxisSupplier, "Nobody")
	require.ErrorIs(t, err, catalog.ErrUnknownSupplier)
}
