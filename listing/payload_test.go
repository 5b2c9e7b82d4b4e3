package listing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendstate/lendstate-deployer-go/acl"
	"github.com/lendstate/lendstate-deployer-go/ledger/ledgertest"
	"github.com/lendstate/lendstate-deployer-go/market"
	"github.com/lendstate/lendstate-deployer-go/report"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type payloadFixture struct {
	chain    *ledgertest.Ledger
	aclState *ledgertest.ACLState
	report   *report.MarketReport
	executor common.Address
	engine   common.Address
}

func newPayloadFixture(t *testing.T) *payloadFixture {
	t.Helper()
	executor := common.HexToAddress("0xdead")
	chain := ledgertest.New(executor)

	aclAddr := common.HexToAddress("0xac1")
	engineAddr := common.HexToAddress("0xe11e")
	aclState := ledgertest.NewACLState(executor)
	aclState.Grant(acl.RoleAssetListingAdmin.Tag(), executor)
	chain.Install(aclAddr, aclState.Handler())
	chain.Install(engineAddr, ledgertest.Return(nil))

	r := report.NewMarketReport(31337, "local", executor)
	require.NoError(t, r.Set(report.FieldACLManager, aclAddr))
	require.NoError(t, r.Set(report.FieldConfigEngine, engineAddr))

	return &payloadFixture{chain: chain, aclState: aclState, report: r, executor: executor, engine: engineAddr}
}

func (f *payloadFixture) payload(t *testing.T, overrides map[string]common.Address) *Payload {
	t.Helper()
	table, err := ParseTable([]byte(tableYAML))
	require.NoError(t, err)
	p, err := New(Config{
		Ledger:    f.chain,
		Executor:  f.executor,
		Report:    f.report,
		Table:     table,
		Overrides: overrides,
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	return p
}

func TestPayloadExecute(t *testing.T) {
	ctx := context.Background()
	usdc := common.HexToAddress("0xe2")

	t.Run("ListsAndRenounces", func(t *testing.T) {
		f := newPayloadFixture(t)
		p := f.payload(t, map[string]common.Address{"USDC": usdc})

		require.NoError(t, p.Execute(ctx))

		// Four configuration calls per listed asset.
		assert.Len(t, f.chain.CallsTo(f.engine), 8)
		// The elevated role is gone.
		assert.False(t, f.aclState.HasRole(acl.RoleAssetListingAdmin.Tag(), f.executor))
	})

	t.Run("SecondExecutionAlreadyFinalized", func(t *testing.T) {
		f := newPayloadFixture(t)
		p := f.payload(t, map[string]common.Address{"USDC": usdc})
		require.NoError(t, p.Execute(ctx))

		err := p.Execute(ctx)
		require.ErrorIs(t, err, market.ErrAlreadyFinalized)
		// No further configuration reached the market.
		assert.Len(t, f.chain.CallsTo(f.engine), 8)
	})

	t.Run("ZeroOverrideRejectsWholeRun", func(t *testing.T) {
		f := newPayloadFixture(t)
		p := f.payload(t, nil) // USDC placeholder stays zero

		require.Error(t, p.Execute(ctx))
		// Nothing was listed: the run failed before the first call.
		assert.Empty(t, f.chain.CallsTo(f.engine))
		// The role is still held, so a corrected run can follow.
		assert.True(t, f.aclState.HasRole(acl.RoleAssetListingAdmin.Tag(), f.executor))
	})

	t.Run("MidRunFailureKeepsRole", func(t *testing.T) {
		f := newPayloadFixture(t)
		f.chain.Install(f.engine, ledgertest.Fail(errors.New("reverted")))
		p := f.payload(t, map[string]common.Address{"USDC": usdc})

		require.Error(t, p.Execute(ctx))
		assert.True(t, f.aclState.HasRole(acl.RoleAssetListingAdmin.Tag(), f.executor),
			"a failed listing must not renounce the role")
	})

	t.Run("MissingConfigEngine", func(t *testing.T) {
		f := newPayloadFixture(t)
		bare := report.NewMarketReport(31337, "local", f.executor)
		require.NoError(t, bare.Set(report.FieldACLManager, f.report.ACLManager))

		table, err := ParseTable([]byte(tableYAML))
		require.NoError(t, err)
		p, err := New(Config{
			Ledger:    f.chain,
			Executor:  f.executor,
			Report:    bare,
			Table:     table,
			Overrides: map[string]common.Address{"USDC": usdc},
			Logger:    testLogger(),
		})
		require.NoError(t, err)
		require.ErrorIs(t, p.Execute(ctx), market.ErrPreconditionMissing)
	})
}

func TestPayloadConfigValidate(t *testing.T) {
	_, err := New(Config{})
	require.EqualError(t, err, "config: Ledger is required")
}
