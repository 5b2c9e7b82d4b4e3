package report

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketReportSetOnce(t *testing.T) {
	r := NewMarketReport(1, "test", common.HexToAddress("0xdead"))
	addr := common.HexToAddress("0x01")

	require.False(t, r.Has(FieldPoolProxy))
	require.NoError(t, r.Set(FieldPoolProxy, addr))
	assert.True(t, r.Has(FieldPoolProxy))
	assert.Equal(t, addr, r.Get(FieldPoolProxy))

	// Same value again is a no-op.
	require.NoError(t, r.Set(FieldPoolProxy, addr))

	// A different value is refused: fields are never silently overwritten.
	err := r.Set(FieldPoolProxy, common.HexToAddress("0x02"))
	require.Error(t, err)
	assert.Equal(t, addr, r.Get(FieldPoolProxy))
}

func TestMarketReportUnknownField(t *testing.T) {
	r := NewMarketReport(1, "test", common.HexToAddress("0xdead"))
	require.Error(t, r.Set(Field("bogus"), common.HexToAddress("0x01")))
	assert.Equal(t, common.Address{}, r.Get(Field("bogus")))
}

func TestFieldSetsCoverEveryField(t *testing.T) {
	r := NewMarketReport(1, "test", common.HexToAddress("0xdead"))
	all := append(CoreFields(), PeripheralFields()...)

	seen := make(map[Field]bool, len(all))
	for _, f := range all {
		require.False(t, seen[f], "field %s listed twice", f)
		seen[f] = true
		require.NoError(t, r.Set(f, common.BigToAddress(common.Big1)), "field %s has no slot", f)
	}
	assert.Len(t, all, 20)
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	t.Run("MissingFilesYieldNil", func(t *testing.T) {
		m, err := store.LoadMarket()
		require.NoError(t, err)
		assert.Nil(t, m)

		tok, err := store.LoadToken()
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	t.Run("MarketReport", func(t *testing.T) {
		r := NewMarketReport(31337, "local", common.HexToAddress("0xdead"))
		require.NoError(t, r.Set(FieldPoolProxy, common.HexToAddress("0x01")))
		require.NoError(t, store.SaveMarket(r))

		loaded, err := store.LoadMarket()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, r.RunID, loaded.RunID)
		assert.Equal(t, r.PoolProxy, loaded.PoolProxy)
		assert.Equal(t, uint64(31337), loaded.ChainID)
	})

	t.Run("TokenReport", func(t *testing.T) {
		r := NewTokenReport(31337, common.HexToAddress("0xdead"))
		r.Tokens["DAI"] = common.HexToAddress("0x0a")
		require.NoError(t, store.SaveToken(r))

		loaded, err := store.LoadToken()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, common.HexToAddress("0x0a"), loaded.Tokens["DAI"])
	})
}
