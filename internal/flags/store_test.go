package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
)

type memoryRepo struct {
	flags map[string]Flag
}

func newMemoryRepo(persisted ...Flag) *memoryRepo {
	repo := &memoryRepo{flags: make(map[string]Flag)}
	for _, f := range persisted {
		repo.flags[string(f.Axis)+":"+f.Key] = f
	}
	return repo
}

func (r *memoryRepo) ListFlags(ctx context.Context) ([]Flag, error) {
	out := []Flag{}
	for _, f := range r.flags {
		out = append(out, f)
	}
	return out, nil
}

func TestMissingFlagsDefaultToEnabled(t *testing.T) {
	store, err := Load(context.Background(), newMemoryRepo())
	require.NoError(t, err)
	require.True(t, store.MarketplaceEnabled(catalog.MarketplaceOzon))
	require.True(t, store.SupplierEnabled(catalog.SupplierUnited))
}

func TestLoadAppliesPersistedState(t *testing.T) {
	repo := newMemoryRepo(
		Flag{Axis: AxisMarketplace, Key: "wildberries", Enabled: false},
		Flag{Axis: AxisSupplier, Key: "Invask", Enabled: false},
	)
	store, err := Load(context.Background(), repo)
	require.NoError(t, err)
	require.False(t, store.MarketplaceEnabled(catalog.MarketplaceWildberries))
	require.True(t, store.MarketplaceEnabled(catalog.MarketplaceOzon))
	require.False(t, store.SupplierEnabled(catalog.SupplierInvask))
}

func TestApplyUpdatesView(t *testing.T) {
	store, err := Load(context.Background(), newMemoryRepo())
	require.NoError(t, err)

	store.Apply(Flag{Axis: AxisMarketplace, Key: "yandex", Enabled: false})
	require.False(t, store.MarketplaceEnabled(catalog.MarketplaceYandex))

	store.Apply(Flag{Axis: AxisSupplier, Key: "Okno", Enabled: false})
	store.Apply(Flag{Axis: AxisSupplier, Key: "Okno", Enabled: true})
	require.True(t, store.SupplierEnabled(catalog.SupplierOkno))

	// Unknown keys never poison the typed view.
	store.Apply(Flag{Axis: AxisMarketplace, Key: "ebay", Enabled: false})
	require.True(t, store.MarketplaceEnabled(catalog.MarketplaceOzon))
}

func TestParseAxis(t *testing.T) {
	axis, err := ParseAxis("marketplace")
	require.NoError(t, err)
	require.Equal(t, AxisMarketplace, axis)

	_, err = ParseAxis("warehouse")
	require.Error(t, err)
}
