package validator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/ledger/ledgertest"
	"github.com/lendstate/lendstate-deployer-go/report"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// healthyFixture builds a report and a chain where every component is live
// and every cross-reference agrees.
func healthyFixture(t *testing.T) (*ledgertest.Ledger, *report.MarketReport) {
	t.Helper()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	r := report.NewMarketReport(31337, "local", chain.Sender())

	next := uint64(0x1000)
	for _, f := range append(report.CoreFields(), report.PeripheralFields()...) {
		addr := common.BigToAddress(new(big.Int).SetUint64(next))
		next++
		require.NoError(t, r.Set(f, addr))
		chain.Install(addr, ledgertest.Return(nil))
	}

	chain.Install(r.AddressesProvider, ledgertest.Dispatch(map[string]ledgertest.Handler{
		"getPool()":       ledgertest.Return(ledger.EncodeAddress(r.PoolProxy)),
		"getACLManager()": ledgertest.Return(ledger.EncodeAddress(r.ACLManager)),
	}))
	chain.Install(r.PoolProxy, ledgertest.Dispatch(map[string]ledgertest.Handler{
		"ADDRESSES_PROVIDER()": ledgertest.Return(ledger.EncodeAddress(r.AddressesProvider)),
	}))
	chain.Install(r.Oracle, ledgertest.Dispatch(map[string]ledgertest.Handler{
		"BASE_CURRENCY()":        ledgertest.Return(ledger.EncodeAddress(common.Address{})),
		"getAssetPrice(address)": ledgertest.Fail(errors.New("no assets listed")),
	}))
	return chain, r
}

func run(t *testing.T, chain *ledgertest.Ledger, r *report.MarketReport) *Result {
	t.Helper()
	v, err := New(Config{Ledger: chain, Report: r, Logger: testLogger()})
	require.NoError(t, err)
	return v.Run(context.Background())
}

func TestValidatorHealthyMarket(t *testing.T) {
	chain, r := healthyFixture(t)
	result := run(t, chain, r)

	assert.True(t, result.AllValid())
	assert.Zero(t, result.ErrorCount())
	// The sentinel price probe fails on an empty market: a warning, never
	// an error.
	require.NotZero(t, result.WarningCount())
	var sawProbe bool
	for _, w := range result.Warnings {
		if strings.HasPrefix(w.Check, "oracle/price-probe") {
			sawProbe = true
		}
	}
	assert.True(t, sawProbe)
}

func TestValidatorMissingComponents(t *testing.T) {
	t.Run("ZeroCoreFieldIsError", func(t *testing.T) {
		chain, r := healthyFixture(t)
		r.RateStrategy = common.Address{}
		result := run(t, chain, r)

		assert.False(t, result.AllValid())
		require.NotZero(t, result.ErrorCount())
	})

	t.Run("ZeroPeripheralFieldIsWarning", func(t *testing.T) {
		chain, r := healthyFixture(t)
		r.Treasury = common.Address{}
		result := run(t, chain, r)

		assert.True(t, result.AllValid(), "peripheral problems must stay advisory")
	})

	t.Run("DeadCoreAddressIsError", func(t *testing.T) {
		chain, r := healthyFixture(t)
		r.DataProvider = common.HexToAddress("0x9999") // nothing installed here
		result := run(t, chain, r)

		assert.False(t, result.AllValid())
	})
}

func TestValidatorCrossReferences(t *testing.T) {
	t.Run("BothDirectionsCheckedIndependently", func(t *testing.T) {
		chain, r := healthyFixture(t)
		wrong := common.HexToAddress("0xbad")
		chain.Install(r.AddressesProvider, ledgertest.Dispatch(map[string]ledgertest.Handler{
			"getPool()":       ledgertest.Return(ledger.EncodeAddress(wrong)),
			"getACLManager()": ledgertest.Return(ledger.EncodeAddress(r.ACLManager)),
		}))
		chain.Install(r.PoolProxy, ledgertest.Dispatch(map[string]ledgertest.Handler{
			"ADDRESSES_PROVIDER()": ledgertest.Return(ledger.EncodeAddress(wrong)),
		}))

		result := run(t, chain, r)
		assert.False(t, result.AllValid())

		var mismatches int
		for _, e := range result.Errors {
			if strings.HasPrefix(e.Check, "crossref/") {
				mismatches++
			}
		}
		assert.Equal(t, 2, mismatches, "one mismatch must not mask the other")
	})

	t.Run("ACLManagerMismatch", func(t *testing.T) {
		chain, r := healthyFixture(t)
		chain.Install(r.AddressesProvider, ledgertest.Dispatch(map[string]ledgertest.Handler{
			"getPool()":       ledgertest.Return(ledger.EncodeAddress(r.PoolProxy)),
			"getACLManager()": ledgertest.Return(ledger.EncodeAddress(common.HexToAddress("0xbad"))),
		}))

		result := run(t, chain, r)
		assert.False(t, result.AllValid())
	})
}

func TestValidatorOracle(t *testing.T) {
	chain, r := healthyFixture(t)
	chain.Install(r.Oracle, ledgertest.Dispatch(map[string]ledgertest.Handler{
		"getAssetPrice(address)": ledgertest.Fail(errors.New("no assets")),
		// BASE_CURRENCY missing: the query fails.
	}))

	result := run(t, chain, r)
	assert.False(t, result.AllValid())
}

func TestValidatorFallbackReference(t *testing.T) {
	runWithFeed := func(t *testing.T, chain *ledgertest.Ledger, r *report.MarketReport, feed common.Address) *Result {
		t.Helper()
		v, err := New(Config{Ledger: chain, Report: r, Logger: testLogger(), ReferenceFeed: feed})
		require.NoError(t, err)
		return v.Run(context.Background())
	}
	fallbackFindings := func(result *Result) []Issue {
		var out []Issue
		for _, e := range result.Errors {
			if e.Check == "oracle/fallback-reference" {
				out = append(out, e)
			}
		}
		return out
	}
	feedAddr := common.HexToAddress("0xfeed")

	t.Run("PositiveReading", func(t *testing.T) {
		chain, r := healthyFixture(t)
		chain.Install(feedAddr, ledgertest.NewFeed(big.NewInt(2000_0000_0000)).Handler())

		result := runWithFeed(t, chain, r, feedAddr)
		assert.True(t, result.AllValid())
		assert.Empty(t, fallbackFindings(result))
	})

	t.Run("NonPositiveReadingIsError", func(t *testing.T) {
		chain, r := healthyFixture(t)
		chain.Install(feedAddr, ledgertest.NewFeed(big.NewInt(-1)).Handler())

		result := runWithFeed(t, chain, r, feedAddr)
		assert.False(t, result.AllValid())
		assert.NotEmpty(t, fallbackFindings(result))
	})

	t.Run("DeadFeedIsError", func(t *testing.T) {
		chain, r := healthyFixture(t)
		// Nothing installed at the feed address.
		result := runWithFeed(t, chain, r, feedAddr)
		assert.False(t, result.AllValid())
		assert.NotEmpty(t, fallbackFindings(result))
	})

	t.Run("SkippedWithoutFallbackOracle", func(t *testing.T) {
		chain, r := healthyFixture(t)
		r.FallbackOracle = common.Address{}
		chain.Install(feedAddr, ledgertest.NewFeed(big.NewInt(-1)).Handler())

		result := runWithFeed(t, chain, r, feedAddr)
		assert.Empty(t, fallbackFindings(result),
			"without a fallback oracle there is no reference to check")
	})
}

func TestValidatorMonotonicity(t *testing.T) {
	// allValid == (errorCount == 0), irrespective of warnings.
	scenarios := []func(chain *ledgertest.Ledger, r *report.MarketReport){
		func(*ledgertest.Ledger, *report.MarketReport) {},
		func(_ *ledgertest.Ledger, r *report.MarketReport) { r.Treasury = common.Address{} },
		func(_ *ledgertest.Ledger, r *report.MarketReport) { r.PoolImplementation = common.Address{} },
		func(_ *ledgertest.Ledger, r *report.MarketReport) {
			r.Treasury = common.Address{}
			r.PoolImplementation = common.Address{}
		},
	}
	for _, mutate := range scenarios {
		chain, r := healthyFixture(t)
		mutate(chain, r)
		result := run(t, chain, r)
		assert.Equal(t, result.ErrorCount() == 0, result.AllValid())
	}
}

func TestValidatorNeverMutates(t *testing.T) {
	chain, r := healthyFixture(t)
	run(t, chain, r)
	assert.Empty(t, chain.Calls(), "the validator must issue no state-changing calls")
}
