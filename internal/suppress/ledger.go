// Package suppress owns the suppression ledger: disabling a marketplace
// or a supplier snapshots the affected listing quantities, zeroes them,
// and restoring replays the snapshot exactly.
package suppress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
	"github.com/kazna-mp/kazna-mp/internal/flags"
	"github.com/kazna-mp/kazna-mp/internal/shared"
)

// ErrSnapshotExists indicates a ledger snapshot already holds rows for
// the axis and key, so a second disable must not overwrite it.
var ErrSnapshotExists = errors.New("suppress: snapshot already exists")

// Record is one suppressed listing row in the ledger.
type Record struct {
	Axis      flags.Axis
	Key       string
	ListingID int64
	Qty       int
}

// Row is a listing row candidate for suppression.
type Row struct {
	ListingID int64
	Qty       int
}

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional ledger operations. Snapshot,
// zeroing, restore and the flag flip always share one transaction, so
// a failure anywhere leaves no trace of the toggle.
type TxRepository interface {
	ListMarketplaceRows(ctx context.Context, m catalog.Marketplace) ([]Row, error)
	ListSupplierRows(ctx context.Context, m catalog.Marketplace, s catalog.Supplier) ([]Row, error)
	InsertRecord(ctx context.Context, rec Record) error
	ListRecords(ctx context.Context, axis flags.Axis, key string) ([]Record, error)
	SetQty(ctx context.Context, listingID int64, qty int, at time.Time) error
	DeleteRecords(ctx context.Context, axis flags.Axis, key string) error
	UpsertFlag(ctx context.Context, f flags.Flag) error
}

// FlagPort is the in-memory flag view. The persisted flag row is
// written through TxRepository.UpsertFlag; Apply only moves the view
// after the transaction commits.
type FlagPort interface {
	MarketplaceEnabled(m catalog.Marketplace) bool
	SupplierEnabled(s catalog.Supplier) bool
	Apply(f flags.Flag)
}

// ReconcilerPort re-runs affected marketplaces after a restore.
type ReconcilerPort interface {
	ReconcileMarketplace(ctx context.Context, m catalog.Marketplace) (catalog.Summary, error)
}

// NotifierPort delivers operator notifications.
type NotifierPort interface {
	Notify(ctx context.Context, message string)
}

// MetricsPort observes ledger transitions.
type MetricsPort interface {
	ObserveToggle(axis, state string)
}

// ToggleResult describes the outcome of one disable or enable call.
type ToggleResult struct {
	Axis flags.Axis `json:"axis"`
	Key  string     `json:"key"`
	Rows int        `json:"rows"`
	NoOp bool       `json:"no_op"`
}

// Ledger coordinates flag state, the snapshot table and listing rows.
type Ledger struct {
	repo               RepositoryPort
	flags              FlagPort
	locks              *shared.KeyedMutex
	reconciler         ReconcilerPort
	audit              catalog.AuditPort
	notifier           NotifierPort
	metrics            MetricsPort
	logger             *slog.Logger
	reconcileOnRestore bool
	now                func() time.Time
}

// LedgerConfig groups the ledger's collaborators. Reconciler, Audit,
// Notifier and Metrics are optional.
type LedgerConfig struct {
	Repo               RepositoryPort
	Flags              FlagPort
	Locks              *shared.KeyedMutex
	Reconciler         ReconcilerPort
	Audit              catalog.AuditPort
	Notifier           NotifierPort
	Metrics            MetricsPort
	Logger             *slog.Logger
	ReconcileOnRestore bool
}

// NewLedger builds a Ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Repo == nil || cfg.Flags == nil {
		return nil, errors.New("suppress: ledger requires repo and flags")
	}
	locks := cfg.Locks
	if locks == nil {
		locks = shared.NewKeyedMutex()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		repo:               cfg.Repo,
		flags:              cfg.Flags,
		locks:              locks,
		reconciler:         cfg.Reconciler,
		audit:              cfg.Audit,
		notifier:           cfg.Notifier,
		metrics:            cfg.Metrics,
		logger:             logger,
		reconcileOnRestore: cfg.ReconcileOnRestore,
		now:                func() time.Time { return time.Now().UTC() },
	}, nil
}

// Disable suppresses one marketplace or supplier: it snapshots the
// affected quantities into the ledger, zeroes them and flips the flag
// off, all in one transaction while holding the affected marketplace
// locks. A failure rolls the whole toggle back, so it is always safe
// to retry. Calling it on an already disabled key is a no-op.
func (l *Ledger) Disable(ctx context.Context, axis flags.Axis, key string) (ToggleResult, error) {
	scope, err := l.scope(axis, key)
	if err != nil {
		return ToggleResult{}, err
	}
	unlock := l.lockScope(scope)
	defer unlock()

	result := ToggleResult{Axis: axis, Key: scope.key()}
	if !scope.enabled(l.flags) {
		result.NoOp = true
		l.logger.Warn("disable skipped, already disabled",
			slog.String("axis", string(axis)), slog.String("key", result.Key))
		return result, nil
	}

	flag := flags.Flag{Axis: axis, Key: scope.key(), Enabled: false}
	err = l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := scope.rows(ctx, tx)
		if err != nil {
			return err
		}
		at := l.now()
		for _, row := range rows {
			if err := tx.InsertRecord(ctx, Record{Axis: axis, Key: flag.Key, ListingID: row.ListingID, Qty: row.Qty}); err != nil {
				return err
			}
			if err := tx.SetQty(ctx, row.ListingID, 0, at); err != nil {
				return err
			}
		}
		if err := tx.UpsertFlag(ctx, flag); err != nil {
			return err
		}
		result.Rows = len(rows)
		return nil
	})
	if err != nil {
		return ToggleResult{}, fmt.Errorf("suppress: disable %s %s: %w", axis, flag.Key, err)
	}

	l.flags.Apply(flag)
	l.finish(ctx, result, "disabled")
	return result, nil
}

// Enable restores one marketplace or supplier: it replays the ledger
// snapshot into the listing quantities, clears the snapshot and flips
// the flag on, all in one transaction. When both axes suppress the
// same listing, the snapshot taken second holds an already-zeroed
// quantity, so restoring in the opposite order replays that zero. When
// configured, it reconciles the affected marketplaces afterwards so
// such rows pick up fresh feed data; those reconcile failures are
// logged, never returned.
func (l *Ledger) Enable(ctx context.Context, axis flags.Axis, key string) (ToggleResult, error) {
	scope, err := l.scope(axis, key)
	if err != nil {
		return ToggleResult{}, err
	}
	unlock := l.lockScope(scope)
	defer unlock()

	result := ToggleResult{Axis: axis, Key: scope.key()}
	if scope.enabled(l.flags) {
		result.NoOp = true
		l.logger.Warn("enable skipped, already enabled",
			slog.String("axis", string(axis)), slog.String("key", result.Key))
		return result, nil
	}

	flag := flags.Flag{Axis: axis, Key: scope.key(), Enabled: true}
	err = l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		records, err := tx.ListRecords(ctx, axis, flag.Key)
		if err != nil {
			return err
		}
		at := l.now()
		for _, rec := range records {
			if err := tx.SetQty(ctx, rec.ListingID, rec.Qty, at); err != nil {
				return err
			}
		}
		if err := tx.DeleteRecords(ctx, axis, flag.Key); err != nil {
			return err
		}
		if err := tx.UpsertFlag(ctx, flag); err != nil {
			return err
		}
		result.Rows = len(records)
		return nil
	})
	if err != nil {
		return ToggleResult{}, fmt.Errorf("suppress: enable %s %s: %w", axis, flag.Key, err)
	}

	l.flags.Apply(flag)
	l.finish(ctx, result, "enabled")

	if l.reconcileOnRestore && l.reconciler != nil {
		for _, m := range scope.marketplaces {
			if _, err := l.reconciler.ReconcileMarketplace(ctx, m); err != nil {
				l.logger.Warn("reconcile after restore failed",
					slog.String("marketplace", string(m)), slog.Any("error", err))
			}
		}
	}
	return result, nil
}

// toggleScope resolves an axis and key into the set of marketplaces
// whose rows it touches and the flag it flips.
type toggleScope struct {
	marketplaces []catalog.Marketplace
	marketplace  catalog.Marketplace
	supplier     catalog.Supplier
	axis         flags.Axis
}

func (l *Ledger) scope(axis flags.Axis, key string) (toggleScope, error) {
	switch axis {
	case flags.AxisMarketplace:
		m, err := catalog.ParseMarketplace(key)
		if err != nil {
			return toggleScope{}, err
		}
		return toggleScope{axis: axis, marketplace: m, marketplaces: []catalog.Marketplace{m}}, nil
	case flags.AxisSupplier:
		s, err := catalog.ParseSupplier(key)
		if err != nil {
			return toggleScope{}, err
		}
		return toggleScope{axis: axis, supplier: s, marketplaces: catalog.Marketplaces()}, nil
	}
	return toggleScope{}, fmt.Errorf("flags: unknown axis %q", axis)
}

// lockScope acquires all affected marketplace locks in declaration
// order so concurrent supplier toggles never deadlock.
func (l *Ledger) lockScope(scope toggleScope) func() {
	unlocks := make([]func(), 0, len(scope.marketplaces))
	for _, m := range scope.marketplaces {
		unlocks = append(unlocks, l.locks.Lock(shared.MarketplaceLockKey(string(m))))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (s toggleScope) enabled(f FlagPort) bool {
	if s.axis == flags.AxisMarketplace {
		return f.MarketplaceEnabled(s.marketplace)
	}
	return f.SupplierEnabled(s.supplier)
}

// key returns the canonical form of the toggle key, so ledger records
// and flag rows never depend on the caller's spelling.
func (s toggleScope) key() string {
	if s.axis == flags.AxisMarketplace {
		return string(s.marketplace)
	}
	return string(s.supplier)
}

func (s toggleScope) rows(ctx context.Context, tx TxRepository) ([]Row, error) {
	if s.axis == flags.AxisMarketplace {
		return tx.ListMarketplaceRows(ctx, s.marketplace)
	}
	out := []Row{}
	for _, m := range s.marketplaces {
		rows, err := tx.ListSupplierRows(ctx, m, s.supplier)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (l *Ledger) finish(ctx context.Context, result ToggleResult, state string) {
	if l.metrics != nil {
		l.metrics.ObserveToggle(string(result.Axis), state)
	}
	if l.audit != nil {
		_ = l.audit.Record(ctx, shared.AuditLog{
			Action:   "suppress:" + state,
			Entity:   string(result.Axis),
			EntityID: result.Key,
			Meta:     map[string]any{"rows": result.Rows},
		})
	}
	if l.notifier != nil {
		l.notifier.Notify(ctx, fmt.Sprintf("%s %s %s (%d rows)", result.Axis, result.Key, state, result.Rows))
	}
	l.logger.Info("suppression toggled",
		slog.String("axis", string(result.Axis)),
		slog.String("key", result.Key),
		slog.String("state", state),
		slog.Int("rows", result.Rows),
	)
}
