package catalog

import "strconv"

// Resolution is the outcome of resolving one listing against the
// supplier snapshot. A zero Supplier means no supplier currently backs
// the listing and the quantity is forced to zero.
type Resolution struct {
	Supplier Supplier
	Qty      int
	Cost     float64
	// HasCost reports whether Cost carries a feed value. The primary
	// supplier may win on quantity alone with no cost published; the
	// caller then keeps the stored cost.
	HasCost bool
}

// None reports whether no supplier backs the listing.
func (r Resolution) None() bool {
	return r.Supplier == ""
}

// Resolve decides which supplier currently backs the listing.
//
// Order of decision:
//  1. a suppressed marketplace or a disabled listing resolves to none;
//  2. the primary supplier wins unconditionally when its snapshot
//     quantity is at least one, with no price comparison;
//  3. otherwise the cheapest enabled third-party candidate with stock
//     and a published cost wins, ties broken by the fixed supplier
//     priority order.
//
// Resolve is pure: it never touches the listing and never errors.
// Malformed identifiers degrade to "absent" for that supplier.
func Resolve(l Listing, snap SnapshotLookup, flags FlagView) Resolution {
	if !flags.MarketplaceEnabled(l.Marketplace) || l.Disabled {
		return Resolution{}
	}

	if code := usableCode(l, PrimarySupplier); code != "" && flags.SupplierEnabled(PrimarySupplier) {
		qty, cost := snap.Lookup(PrimarySupplier, code)
		if qty >= 1 {
			res := Resolution{Supplier: PrimarySupplier, Qty: qty}
			if cost != nil {
				res.Cost = *cost
				res.HasCost = true
			}
			return res
		}
	}

	var best Resolution
	for _, s := range Suppliers() {
		if s == PrimarySupplier {
			continue
		}
		code := usableCode(l, s)
		if code == "" || !flags.SupplierEnabled(s) {
			continue
		}
		qty, cost := snap.Lookup(s, code)
		if qty <= 0 || cost == nil {
			continue
		}
		// Strict < keeps the first supplier in priority order on ties.
		if best.None() || *cost < best.Cost {
			best = Resolution{Supplier: s, Qty: qty, Cost: *cost, HasCost: true}
		}
	}
	return best
}

// usableCode returns the listing's identifier for the supplier, or ""
// when it is unset or malformed for that supplier's code format.
func usableCode(l Listing, s Supplier) string {
	code := l.SupplierCode(s)
	if code == "" {
		return ""
	}
	if supplierCodeNumeric(s) {
		if _, err := strconv.ParseInt(code, 10, 64); err != nil {
			return ""
		}
	}
	return code
}

// supplierCodeNumeric reports whether the supplier's feed is keyed by
// numeric articles only.
func supplierCodeNumeric(s Supplier) bool {
	return s == SupplierUnited
}
