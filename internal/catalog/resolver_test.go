package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSnapshot map[Supplier]map[string]fakeOffer

type fakeOffer struct {
	qty  int
	cost *float64
}

func (s fakeSnapshot) Lookup(supplier Supplier, code string) (int, *float64) {
	offer, ok := s[supplier][code]
	if !ok {
		return 0, nil
	}
	return offer.qty, offer.cost
}

type fakeFlags struct {
	marketplaces map[Marketplace]bool
	suppliers    map[Supplier]bool
}

func (f fakeFlags) MarketplaceEnabled(m Marketplace) bool {
	enabled, ok := f.marketplaces[m]
	if !ok {
		return true
	}
	return enabled
}

func (f fakeFlags) SupplierEnabled(s Supplier) bool {
	enabled, ok := f.suppliers[s]
	if !ok {
		return true
	}
	return enabled
}

func ptr(v float64) *float64 { return &v }

func baseListing() Listing {
	return Listing{
		ID:          1,
		Marketplace: MarketplaceOzon,
		SKU:         "SKU-1",
		SkladCode:   "A-100",
		InvaskCode:  "INV-1",
		OknoCode:    "OKN-1",
		UnitedCode:  "4411",
	}
}

func TestResolvePrimaryWinsRegardlessOfCost(t *testing.T) {
	snap := fakeSnapshot{
		SupplierSklad:  {"A-100": {qty: 2, cost: ptr(9000)}},
		SupplierInvask: {"INV-1": {qty: 50, cost: ptr(100)}},
	}
	res := Resolve(baseListing(), snap, fakeFlags{})
	require.Equal(t, SupplierSklad, res.Supplier)
	require.Equal(t, 2, res.Qty)
	require.True(t, res.HasCost)
	require.InDelta(t, 9000, res.Cost, 0.0001)
}

func TestResolvePrimaryWithoutCostKeepsStoredCost(t *testing.T) {
	snap := fakeSnapshot{
		SupplierSklad: {"A-100": {qty: 1, cost: nil}},
	}
	res := Resolve(baseListing(), snap, fakeFlags{})
	require.Equal(t, SupplierSklad, res.Supplier)
	require.False(t, res.HasCost)
}

func TestResolveCheapestWinsWithPriorityTieBreak(t *testing.T) {
	snap := fakeSnapshot{
		SupplierInvask: {"INV-1": {qty: 3, cost: ptr(1500)}},
		SupplierOkno:   {"OKN-1": {qty: 8, cost: ptr(1500)}},
		SupplierUnited: {"4411": {qty: 2, cost: ptr(1600)}},
	}
	res := Resolve(baseListing(), snap, fakeFlags{})
	require.Equal(t, SupplierInvask, res.Supplier)
	require.Equal(t, 3, res.Qty)

	snap[SupplierOkno]["OKN-1"] = fakeOffer{qty: 8, cost: ptr(1400)}
	res = Resolve(baseListing(), snap, fakeFlags{})
	require.Equal(t, SupplierOkno, res.Supplier)
}

func TestResolveSkipsCandidatesWithoutCostOrStock(t *testing.T) {
	snap := fakeSnapshot{
		SupplierInvask: {"INV-1": {qty: 5, cost: nil}},
		SupplierOkno:   {"OKN-1": {qty: 0, cost: ptr(900)}},
		SupplierUnited: {"4411": {qty: 1, cost: ptr(2000)}},
	}
	res := Resolve(baseListing(), snap, fakeFlags{})
	require.Equal(t, SupplierUnited, res.Supplier)
}

func TestResolveDisabledSupplierIsIgnored(t *testing.T) {
	snap := fakeSnapshot{
		SupplierSklad:  {"A-100": {qty: 4, cost: ptr(800)}},
		SupplierInvask: {"INV-1": {qty: 4, cost: ptr(700)}},
	}
	flags := fakeFlags{suppliers: map[Supplier]bool{SupplierSklad: false}}
	res := Resolve(baseListing(), snap, flags)
	require.Equal(t, SupplierInvask, res.Supplier)
}

func TestResolveDisabledListingAndMarketplace(t *testing.T) {
	snap := fakeSnapshot{
		SupplierSklad: {"A-100": {qty: 4, cost: ptr(800)}},
	}

	l := baseListing()
	l.Disabled = true
	require.True(t, Resolve(l, snap, fakeFlags{}).None())

	flags := fakeFlags{marketplaces: map[Marketplace]bool{MarketplaceOzon: false}}
	require.True(t, Resolve(baseListing(), snap, flags).None())
}

func TestResolveMalformedUnitedCodeIsAbsent(t *testing.T) {
	snap := fakeSnapshot{
		SupplierUnited: {"картинка.jpg": {qty: 9, cost: ptr(100)}},
	}
	l := baseListing()
	l.SkladCode = ""
	l.InvaskCode = ""
	l.OknoCode = ""
	l.UnitedCode = "картинка.jpg"
	require.True(t, Resolve(l, snap, fakeFlags{}).None())
}
