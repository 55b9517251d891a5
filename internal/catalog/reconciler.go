package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kazna-mp/kazna-mp/internal/shared"
)

// RepositoryPort abstracts listing persistence for the runner.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional operations of one pass.
// All writes of a pass share one transaction so a crash never leaves a
// half-applied sweep.
type TxRepository interface {
	ListListings(ctx context.Context, m Marketplace) ([]Listing, error)
	UpdateDerived(ctx context.Context, upd DerivedUpdate) error
}

// DerivedUpdate carries the fields a reconciliation pass may write.
// QtyOnly marks a freeze-on-zero write: cost, price and active supplier
// stay untouched.
type DerivedUpdate struct {
	ListingID      int64
	Qty            int
	Cost           float64
	Price          int64
	ActiveSupplier Supplier
	QtyOnly        bool
	UpdatedAt      time.Time
}

// SnapshotLoader provides one consistent feed snapshot per pass.
type SnapshotLoader interface {
	Load(ctx context.Context) (SnapshotLookup, error)
}

// AuditPort records pass outcomes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort observes pass outcomes.
type MetricsPort interface {
	ObserveReconcile(marketplace, result string, rowsChanged int, elapsed time.Duration)
}

// SummarySink stores the latest pass summary per marketplace.
type SummarySink interface {
	Store(ctx context.Context, summary Summary) error
}

// Summary describes one reconciliation pass.
type Summary struct {
	RunID       string      `json:"run_id"`
	Marketplace Marketplace `json:"marketplace"`
	Total       int         `json:"total"`
	Changed     int         `json:"changed"`
	// Skipped counts rows whose price update was withheld over invalid
	// numeric inputs.
	Skipped     int           `json:"skipped"`
	Suppressed  bool          `json:"suppressed"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Runner sweeps marketplace listings, resolving each against the feed
// snapshot and writing only rows whose derived values changed.
type Runner struct {
	repo    RepositoryPort
	feed    SnapshotLoader
	flags   FlagView
	locks   *shared.KeyedMutex
	audit   AuditPort
	metrics MetricsPort
	sink    SummarySink
	logger  *slog.Logger
	now     func() time.Time
}

// RunnerConfig groups the runner's collaborators. Audit, Metrics and
// Sink are optional.
type RunnerConfig struct {
	Repo    RepositoryPort
	Feed    SnapshotLoader
	Flags   FlagView
	Locks   *shared.KeyedMutex
	Audit   AuditPort
	Metrics MetricsPort
	Sink    SummarySink
	Logger  *slog.Logger
}

// NewRunner builds a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Repo == nil || cfg.Feed == nil || cfg.Flags == nil {
		return nil, errors.New("catalog: runner requires repo, feed and flags")
	}
	locks := cfg.Locks
	if locks == nil {
		locks = shared.NewKeyedMutex()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		repo:    cfg.Repo,
		feed:    cfg.Feed,
		flags:   cfg.Flags,
		locks:   locks,
		audit:   cfg.Audit,
		metrics: cfg.Metrics,
		sink:    cfg.Sink,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Locks exposes the keyed mutex so toggle operations can serialise
// against passes on the same marketplace.
func (r *Runner) Locks() *shared.KeyedMutex {
	return r.locks
}

// ReconcileMarketplace runs one full pass over the marketplace and
// returns a summary with the count of rows changed. Running it twice
// with an unchanged snapshot produces zero writes on the second run.
func (r *Runner) ReconcileMarketplace(ctx context.Context, m Marketplace) (Summary, error) {
	if _, err := ParseMarketplace(string(m)); err != nil {
		return Summary{}, err
	}

	unlock := r.locks.Lock(shared.MarketplaceLockKey(string(m)))
	defer unlock()

	started := r.now()
	summary := Summary{
		RunID:       uuid.NewString(),
		Marketplace: m,
		StartedAt:   started,
	}

	// A suppressed marketplace is already in its correct zeroed state;
	// writing anything here would fight the suppression ledger.
	if !r.flags.MarketplaceEnabled(m) {
		summary.Suppressed = true
		summary.Elapsed = r.now().Sub(started)
		r.observe(summary, "suppressed")
		r.logger.Info("reconcile skipped, marketplace suppressed", slog.String("marketplace", string(m)))
		return summary, nil
	}

	snap, err := r.feed.Load(ctx)
	if err != nil {
		r.observe(summary, "error")
		return Summary{}, fmt.Errorf("catalog: reconcile %s: %w", m, err)
	}

	err = r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		listings, err := tx.ListListings(ctx, m)
		if err != nil {
			return err
		}
		summary.Total = len(listings)
		for _, l := range listings {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			changed, skipped, err := r.reconcileListing(ctx, tx, l, snap)
			if err != nil {
				return err
			}
			if changed {
				summary.Changed++
			}
			if skipped {
				summary.Skipped++
			}
		}
		return nil
	})
	summary.Elapsed = r.now().Sub(started)
	if err != nil {
		r.observe(summary, "error")
		return Summary{}, fmt.Errorf("catalog: reconcile %s: %w", m, err)
	}

	r.observe(summary, "ok")
	r.record(ctx, summary)
	r.logger.Info("reconcile finished",
		slog.String("marketplace", string(m)),
		slog.String("run_id", summary.RunID),
		slog.Int("total", summary.Total),
		slog.Int("changed", summary.Changed),
		slog.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// ReconcileAll reconciles every marketplace. Passes touch disjoint row
// sets, so they run concurrently, each under its own marketplace lock.
func (r *Runner) ReconcileAll(ctx context.Context) ([]Summary, error) {
	var (
		mu        sync.Mutex
		summaries []Summary
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range Marketplaces() {
		m := m
		g.Go(func() error {
			summary, err := r.ReconcileMarketplace(ctx, m)
			if err != nil {
				return err
			}
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// reconcileListing applies the resolver's decision to one row. It
// reports whether it wrote anything and whether the price update was
// skipped over bad numeric inputs.
func (r *Runner) reconcileListing(ctx context.Context, tx TxRepository, l Listing, snap SnapshotLookup) (changed, skipped bool, err error) {
	res := Resolve(l, snap, r.flags)

	newQty := 0
	if !res.None() {
		newQty = res.Qty
	}

	// Freeze-on-zero: an out-of-stock listing keeps its last known cost
	// and price; only the quantity may move.
	if newQty == 0 {
		if l.Qty == 0 {
			return false, false, nil
		}
		return true, false, tx.UpdateDerived(ctx, DerivedUpdate{
			ListingID: l.ID,
			Qty:       0,
			QtyOnly:   true,
			UpdatedAt: r.now(),
		})
	}

	newCost := l.Cost
	if res.HasCost {
		newCost = res.Cost
	}
	price, err := Price(newCost, l.Markup)
	if err != nil {
		// Bad numbers never zero a price. Move the quantity if needed
		// and leave the rest for the operator to fix.
		r.logger.Warn("price kept, invalid inputs",
			slog.String("marketplace", string(l.Marketplace)),
			slog.String("sku", l.SKU),
			slog.Any("error", err),
		)
		if newQty == l.Qty {
			return false, true, nil
		}
		return true, true, tx.UpdateDerived(ctx, DerivedUpdate{
			ListingID: l.ID,
			Qty:       newQty,
			QtyOnly:   true,
			UpdatedAt: r.now(),
		})
	}

	if newQty == l.Qty && newCost == l.Cost && price == l.Price && res.Supplier == l.ActiveSupplier {
		return false, false, nil
	}
	return true, false, tx.UpdateDerived(ctx, DerivedUpdate{
		ListingID:      l.ID,
		Qty:            newQty,
		Cost:           newCost,
		Price:          price,
		ActiveSupplier: res.Supplier,
		UpdatedAt:      r.now(),
	})
}

func (r *Runner) observe(summary Summary, result string) {
	if r.metrics != nil {
		r.metrics.ObserveReconcile(string(summary.Marketplace), result, summary.Changed, summary.Elapsed)
	}
}

func (r *Runner) record(ctx context.Context, summary Summary) {
	if r.sink != nil {
		if err := r.sink.Store(ctx, summary); err != nil {
			r.logger.Warn("store reconcile summary", slog.Any("error", err))
		}
	}
	if r.audit != nil {
		_ = r.audit.Record(ctx, shared.AuditLog{
			Action:   "catalog:reconcile",
			Entity:   "marketplace",
			EntityID: string(summary.Marketplace),
			Meta: map[string]any{
				"run_id":  summary.RunID,
				"total":   summary.Total,
				"changed": summary.Changed,
				"skipped": summary.Skipped,
			},
		})
	}
}
