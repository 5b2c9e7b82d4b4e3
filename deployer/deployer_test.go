package deployer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/ledger/ledgertest"
	"github.com/lendstate/lendstate-deployer-go/market"
	"github.com/lendstate/lendstate-deployer-go/report"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(chain *ledgertest.Ledger) Config {
	return Config{
		Ledger:  chain,
		Factory: chain,
		Roles: market.Roles{
			MarketOwner:    common.HexToAddress("0x100"),
			PoolAdmin:      common.HexToAddress("0x101"),
			EmergencyAdmin: common.HexToAddress("0x102"),
		},
		Market: market.Config{
			ChainID:        31337,
			MarketID:       "Local Market",
			ProviderID:     1,
			WrappedNative:  common.HexToAddress("0x200"),
			NativeUSDFeed:  common.HexToAddress("0x201"),
			BaseUSDFeed:    common.HexToAddress("0x202"),
			OracleDecimals: 8,
		},
		Flags:    market.DefaultFlags(),
		Logger:   testLogger(),
		Registry: prometheus.NewRegistry(),
	}
}

func TestDeployFullRun(t *testing.T) {
	ctx := context.Background()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	orch, err := New(testConfig(chain))
	require.NoError(t, err)

	r, err := orch.Deploy(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, r)

	t.Run("EveryCoreFieldLive", func(t *testing.T) {
		for _, f := range report.CoreFields() {
			addr := r.Get(f)
			require.NotEqual(t, common.Address{}, addr, "field %s is zero", f)
			code, err := chain.GetCode(ctx, addr)
			require.NoError(t, err)
			assert.NotEmpty(t, code, "field %s has no live code", f)
		}
	})

	t.Run("OptionalComponentsDeployed", func(t *testing.T) {
		assert.True(t, r.Has(report.FieldTreasury))
		assert.True(t, r.Has(report.FieldSentinel))
		assert.True(t, r.Has(report.FieldConfigEngine))
		assert.True(t, r.Has(report.FieldWrappedTokenGateway))
	})

	t.Run("ProviderWired", func(t *testing.T) {
		calls := chain.CallsTo(r.AddressesProvider)
		require.NotEmpty(t, calls)

		var sawSetPool bool
		want := ledger.MustPack("setPool(address)", r.PoolProxy)
		for _, c := range calls {
			if string(c.Payload) == string(want) {
				sawSetPool = true
			}
		}
		assert.True(t, sawSetPool, "provider never told about the pool proxy")
	})

	t.Run("GenesisRolesGranted", func(t *testing.T) {
		assert.NotEmpty(t, chain.CallsTo(r.ACLManager))
	})

	t.Run("ReportMetadata", func(t *testing.T) {
		assert.Equal(t, uint64(31337), r.ChainID)
		assert.Equal(t, "Local Market", r.MarketID)
		assert.Equal(t, chain.Sender(), r.Deployer)
		assert.NotEmpty(t, r.RunID)
	})
}

func TestDeployResume(t *testing.T) {
	ctx := context.Background()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	orch, err := New(testConfig(chain))
	require.NoError(t, err)

	first, err := orch.Deploy(ctx, nil)
	require.NoError(t, err)

	// Re-running with the finished report reuses every address.
	second, err := orch.Deploy(ctx, first)
	require.NoError(t, err)
	for _, f := range append(report.CoreFields(), report.PeripheralFields()...) {
		assert.Equal(t, first.Get(f), second.Get(f), "field %s changed on resume", f)
	}
}

func TestDeployResumeAfterFailure(t *testing.T) {
	ctx := context.Background()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	cfg := testConfig(chain)
	orch, err := New(cfg)
	require.NoError(t, err)

	// The ACL manager creation fails mid-way through a fresh run. The
	// partial report must still come back: it is the caller's only record
	// of the components already committed on-chain.
	chain.FailArtifact(ledger.ArtifactACLManager, errors.New("nonce too low"))
	partial, err := orch.Deploy(ctx, nil)
	require.Error(t, err)
	require.NotNil(t, partial, "a mid-run failure must not discard the committed components")
	assert.True(t, partial.Has(report.FieldAddressesProvider))
	assert.True(t, partial.Has(report.FieldPoolProxy))
	assert.False(t, partial.Has(report.FieldACLManager))

	providerBefore := partial.AddressesProvider

	// The re-run deploys only what is missing.
	chain.FailArtifact(ledger.ArtifactACLManager, nil)
	resumed, err := orch.Deploy(ctx, partial)
	require.NoError(t, err)
	assert.Equal(t, providerBefore, resumed.AddressesProvider)
	assert.True(t, resumed.Has(report.FieldACLManager))

	var populated int
	for _, f := range append(report.CoreFields(), report.PeripheralFields()...) {
		if resumed.Has(f) {
			populated++
		}
	}
	assert.Equal(t, populated, chain.Deploys(),
		"each component must be deployed exactly once across both runs")
}

func TestDeployFailFast(t *testing.T) {
	ctx := context.Background()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	chain.FailArtifact(ledger.ArtifactPool, errors.New("reverted"))
	orch, err := New(testConfig(chain))
	require.NoError(t, err)

	r, err := orch.Deploy(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poolImplementation")
	require.NotNil(t, r)
	assert.True(t, r.Has(report.FieldProviderRegistry))
	assert.True(t, r.Has(report.FieldAddressesProvider))
}

func TestDeployOptionalFailureContinues(t *testing.T) {
	ctx := context.Background()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	chain.FailArtifact(ledger.ArtifactTreasury, errors.New("reverted"))
	orch, err := New(testConfig(chain))
	require.NoError(t, err)

	r, err := orch.Deploy(ctx, nil)
	require.NoError(t, err)
	assert.False(t, r.Has(report.FieldTreasury))
	assert.True(t, r.Has(report.FieldDataProvider))
}

func TestDeployPreconditions(t *testing.T) {
	chain := ledgertest.New(common.HexToAddress("0xdead"))

	t.Run("MissingWrappedNative", func(t *testing.T) {
		cfg := testConfig(chain)
		cfg.Market.WrappedNative = common.Address{}
		orch, err := New(cfg)
		require.NoError(t, err)

		r, err := orch.Deploy(context.Background(), nil)
		require.ErrorIs(t, err, market.ErrPreconditionMissing)
		assert.Nil(t, r)
	})

	t.Run("MissingRoles", func(t *testing.T) {
		cfg := testConfig(chain)
		cfg.Roles.PoolAdmin = common.Address{}
		orch, err := New(cfg)
		require.NoError(t, err)

		_, err = orch.Deploy(context.Background(), nil)
		require.ErrorIs(t, err, market.ErrPreconditionMissing)
	})
}

func TestDeployFlagsSkipOptional(t *testing.T) {
	ctx := context.Background()
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	cfg := testConfig(chain)
	cfg.Flags = market.Flags{}
	orch, err := New(cfg)
	require.NoError(t, err)

	r, err := orch.Deploy(ctx, nil)
	require.NoError(t, err)
	assert.False(t, r.Has(report.FieldTreasury))
	assert.False(t, r.Has(report.FieldSentinel))
	assert.False(t, r.Has(report.FieldConfigEngine))
	assert.False(t, r.Has(report.FieldWrappedTokenGateway))
	for _, f := range report.CoreFields() {
		assert.True(t, r.Has(f), "core field %s missing", f)
	}
}

func TestConfigValidate(t *testing.T) {
	chain := ledgertest.New(common.HexToAddress("0xdead"))
	cfg := testConfig(chain)
	cfg.Ledger = nil
	_, err := New(cfg)
	require.EqualError(t, err, "config: Ledger is required")
}
