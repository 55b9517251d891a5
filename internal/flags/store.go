// Package flags owns the marketplace and supplier enable flags. The
// persisted state is loaded once at process start into an in-memory
// view. Toggle transactions persist the flag row themselves (see
// Upsert) and apply the new state to the view only after commit, so
// the view never runs ahead of the table.
package flags

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
)

// Axis distinguishes the two independent toggle dimensions.
type Axis string

const (
	// AxisMarketplace toggles a whole marketplace.
	AxisMarketplace Axis = "marketplace"
	// AxisSupplier toggles one upstream supplier.
	AxisSupplier Axis = "supplier"
)

// ParseAxis validates a toggle axis.
func ParseAxis(raw string) (Axis, error) {
	switch Axis(raw) {
	case AxisMarketplace:
		return AxisMarketplace, nil
	case AxisSupplier:
		return AxisSupplier, nil
	}
	return "", fmt.Errorf("flags: unknown axis %q", raw)
}

// Flag is one persisted toggle row.
type Flag struct {
	Axis    Axis
	Key     string
	Enabled bool
}

// RepositoryPort reads persisted flags at startup.
type RepositoryPort interface {
	ListFlags(ctx context.Context) ([]Flag, error)
}

// Store is the explicit flag-state object handed to the engine. Keys
// missing from the table default to enabled.
type Store struct {
	mu           sync.RWMutex
	marketplaces map[catalog.Marketplace]bool
	suppliers    map[catalog.Supplier]bool
}

// Load reads persisted flags and builds the in-memory view.
func Load(ctx context.Context, repo RepositoryPort) (*Store, error) {
	if repo == nil {
		return nil, errors.New("flags: repository required")
	}
	s := &Store{
		marketplaces: make(map[catalog.Marketplace]bool),
		suppliers:    make(map[catalog.Supplier]bool),
	}
	persisted, err := repo.ListFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("flags: load: %w", err)
	}
	for _, f := range persisted {
		s.Apply(f)
	}
	return s, nil
}

// MarketplaceEnabled reports whether the marketplace is live.
func (s *Store) MarketplaceEnabled(m catalog.Marketplace) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.marketplaces[m]
	if !ok {
		return true
	}
	return enabled
}

// SupplierEnabled reports whether the supplier is live.
func (s *Store) SupplierEnabled(sup catalog.Supplier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.suppliers[sup]
	if !ok {
		return true
	}
	return enabled
}

// Apply updates the in-memory view. The caller is responsible for
// persisting the flag row first, inside the same transaction as the
// listing rows the flag guards, and applying only after that
// transaction commits. Unknown keys are ignored.
func (s *Store) Apply(f Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch f.Axis {
	case AxisMarketplace:
		if m, err := catalog.ParseMarketplace(f.Key); err == nil {
			s.marketplaces[m] = f.Enabled
		}
	case AxisSupplier:
		if sup, err := catalog.ParseSupplier(f.Key); err == nil {
			s.suppliers[sup] = f.Enabled
		}
	}
}
