// Package feed loads the read-only supplier price feed into an
// immutable in-memory snapshot. A reconciliation pass works against one
// snapshot so every row sees the same view of upstream supply.
package feed

import (
	"strings"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
)

// Entry is one feed row: a supplier's offer for one article.
type Entry struct {
	Supplier catalog.Supplier
	Code     string
	Qty      int
	Cost     *float64
}

type key struct {
	supplier catalog.Supplier
	code     string
}

// Snapshot is a consistent point-in-time view of the supplier feed.
// It implements catalog.SnapshotLookup.
type Snapshot struct {
	offers map[key]Entry
}

// NewSnapshot indexes feed entries. Quantities below minQty load as
// zero; the upstream feeds report reserved units the seller cannot
// actually promise, so a small floor avoids overselling.
func NewSnapshot(entries []Entry, minQty int) *Snapshot {
	offers := make(map[key]Entry, len(entries))
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			continue
		}
		if e.Qty < minQty {
			e.Qty = 0
		}
		offers[key{supplier: e.Supplier, code: code}] = Entry{
			Supplier: e.Supplier,
			Code:     code,
			Qty:      e.Qty,
			Cost:     e.Cost,
		}
	}
	return &Snapshot{offers: offers}
}

// Lookup returns the quantity and unit cost for a supplier code.
// Unknown codes return (0, nil).
func (s *Snapshot) Lookup(supplier catalog.Supplier, code string) (int, *float64) {
	if s == nil {
		return 0, nil
	}
	e, ok := s.offers[key{supplier: supplier, code: strings.TrimSpace(code)}]
	if !ok {
		return 0, nil
	}
	return e.Qty, e.Cost
}

// Len reports the number of indexed offers.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.offers)
}
