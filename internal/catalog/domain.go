package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Marketplace identifies one of the sales channels the catalog serves.
type Marketplace string

const (
	// MarketplaceOzon is the Ozon channel.
	MarketplaceOzon Marketplace = "ozon"
	// MarketplaceWildberries is the Wildberries channel.
	MarketplaceWildberries Marketplace = "wildberries"
	// MarketplaceYandex is the Yandex Market channel.
	MarketplaceYandex Marketplace = "yandex"
)

// Marketplaces returns all known marketplaces in a fixed order.
func Marketplaces() []Marketplace {
	return []Marketplace{MarketplaceOzon, MarketplaceWildberries, MarketplaceYandex}
}

// ParseMarketplace normalises free-form input into a Marketplace.
func ParseMarketplace(raw string) (Marketplace, error) {
	switch Marketplace(strings.ToLower(strings.TrimSpace(raw))) {
	case MarketplaceOzon:
		return MarketplaceOzon, nil
	case MarketplaceWildberries:
		return MarketplaceWildberries, nil
	case MarketplaceYandex:
		return MarketplaceYandex, nil
	}
	return "", fmt.Errorf("catalog: %w: %q", ErrUnknownMarketplace, raw)
}

// Supplier names an upstream supply source.
type Supplier string

const (
	// SupplierSklad is the in-house warehouse, the primary supplier.
	SupplierSklad Supplier = "Sklad"
	// SupplierInvask is a third-party wholesale feed.
	SupplierInvask Supplier = "Invask"
	// SupplierOkno is a third-party wholesale feed.
	SupplierOkno Supplier = "Okno"
	// SupplierUnited is a third-party wholesale feed keyed by numeric articles.
	SupplierUnited Supplier = "United"
)

// PrimarySupplier is preferred unconditionally whenever it has stock.
const PrimarySupplier = SupplierSklad

// Suppliers returns every configured supplier in priority order.
// The order is the tie-break rule: on an exact cost tie the earlier
// supplier wins.
func Suppliers() []Supplier {
	return []Supplier{SupplierSklad, SupplierInvask, SupplierOkno, SupplierUnited}
}

// ParseSupplier normalises free-form input into a Supplier.
func ParseSupplier(raw string) (Supplier, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range Suppliers() {
		if strings.ToLower(string(s)) == trimmed {
			return s, nil
		}
	}
	return "", fmt.Errorf("catalog: %w: %q", ErrUnknownSupplier, raw)
}

// Listing is one product's presence and commercial terms on one marketplace.
type Listing struct {
	ID          int64
	Marketplace Marketplace
	SKU         string
	Model       string

	// Per-supplier identifier fields; empty means the supplier cannot
	// fulfil this listing.
	SkladCode  string
	InvaskCode string
	OknoCode   string
	UnitedCode string

	// ActiveSupplier is the last resolver winner. It is left untouched
	// by zero-quantity freezes so supplier suppression keeps matching
	// the listing that was actually backed by that supplier.
	ActiveSupplier Supplier

	Disabled  bool
	Qty       int
	Cost      float64
	Markup    float64
	Price     int64
	UpdatedAt time.Time
}

// SupplierCode returns the listing's identifier for the given supplier.
func (l Listing) SupplierCode(s Supplier) string {
	switch s {
	case SupplierSklad:
		return strings.TrimSpace(l.SkladCode)
	case SupplierInvask:
		return strings.TrimSpace(l.InvaskCode)
	case SupplierOkno:
		return strings.TrimSpace(l.OknoCode)
	case SupplierUnited:
		return strings.TrimSpace(l.UnitedCode)
	}
	return ""
}

// SnapshotLookup reads one supplier feed snapshot. Implementations must
// stay consistent for the duration of a reconciliation pass.
type SnapshotLookup interface {
	// Lookup returns the available quantity and unit cost for a supplier
	// code. Absent codes return (0, nil).
	Lookup(supplier Supplier, code string) (qty int, cost *float64)
}

// FlagView exposes the current enable flags to the resolver.
type FlagView interface {
	MarketplaceEnabled(m Marketplace) bool
	SupplierEnabled(s Supplier) bool
}

// ErrUnknownMarketplace indicates input naming no configured marketplace.
var ErrUnknownMarketplace = errors.New("unknown marketplace")

// ErrUnknownSupplier indicates input naming no configured supplier.
var ErrUnknownSupplier = errors.New("unknown supplier")

// ErrInvalidCost indicates an unparseable cost value; callers keep the
// previously stored price.
var ErrInvalidCost = errors.New("catalog: invalid cost")

// ErrInvalidMarkup indicates an unparseable markup percentage.
var ErrInvalidMarkup = errors.New("catalog: invalid markup")
