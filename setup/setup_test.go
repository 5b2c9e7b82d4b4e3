package setup

import (
	"context"
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

type setupFixture struct {
	chain     *ledgertest.Ledger
	aclState  *ledgertest.ACLState
	provider  *ledgertest.Ownable
	registry  *ledgertest.Ownable
	report    *report.MarketReport
	deployer  common.Address
	riskAdmin common.Address
}

func newSetupFixture(t *testing.T) *setupFixture {
	t.Helper()
	deployer := common.HexToAddress("0xdead")
	chain := ledgertest.New(deployer)

	aclAddr := common.HexToAddress("0xac1")
	providerAddr := common.HexToAddress("0xadd")
	registryAddr := common.HexToAddress("0x1e9")

	aclState := ledgertest.NewACLState(deployer)
	provider := ledgertest.NewOwnable(deployer)
	registry := ledgertest.NewOwnable(deployer)
	chain.Install(aclAddr, aclState.Handler())
	chain.Install(providerAddr, provider.Handler())
	chain.Install(registryAddr, registry.Handler())

	r := report.NewMarketReport(31337, "local", deployer)
	require.NoError(t, r.Set(report.FieldACLManager, aclAddr))
	require.NoError(t, r.Set(report.FieldAddressesProvider, providerAddr))
	require.NoError(t, r.Set(report.FieldProviderRegistry, registryAddr))

	return &setupFixture{
		chain:     chain,
		aclState:  aclState,
		provider:  provider,
		registry:  registry,
		report:    r,
		deployer:  deployer,
		riskAdmin: common.HexToAddress("0x815c"),
	}
}

func (f *setupFixture) run(t *testing.T, governance common.Address) error {
	t.Helper()
	s, err := New(Config{
		Ledger:     f.chain,
		Deployer:   f.deployer,
		Report:     f.report,
		Roles:      market.Roles{PoolAdmin: common.HexToAddress("0x101")},
		RiskAdmin:  f.riskAdmin,
		Governance: governance,
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	return s.Run(context.Background())
}

func TestSetupGrantsRiskAdmin(t *testing.T) {
	f := newSetupFixture(t)
	require.NoError(t, f.run(t, common.Address{}))
	assert.True(t, f.aclState.HasRole(acl.RoleRiskAdmin.Tag(), f.riskAdmin))
}

func TestSetupIdempotence(t *testing.T) {
	f := newSetupFixture(t)
	governance := common.HexToAddress("0x90e7")

	require.NoError(t, f.run(t, governance))
	assert.True(t, f.aclState.HasRole(acl.RoleRiskAdmin.Tag(), f.riskAdmin))
	assert.Equal(t, governance, f.provider.Owner())
	assert.Equal(t, governance, f.registry.Owner())

	mutationsAfterFirst := len(f.chain.Calls())

	// The second run changes nothing: the grant is already held and the
	// owner is already governance, so both are logged skips.
	require.NoError(t, f.run(t, governance))
	assert.True(t, f.aclState.HasRole(acl.RoleRiskAdmin.Tag(), f.riskAdmin))
	assert.Equal(t, governance, f.provider.Owner())
	assert.Equal(t, governance, f.registry.Owner())
	assert.Equal(t, mutationsAfterFirst, len(f.chain.Calls()),
		"a redundant run must issue no further state-changing calls")
}

func TestSetupOwnershipGuard(t *testing.T) {
	f := newSetupFixture(t)
	governance := common.HexToAddress("0x90e7")
	stranger := common.HexToAddress("0x517a")

	// The provider is owned by someone else entirely: not ours to move.
	f.providerSetOwner(stranger)

	require.NoError(t, f.run(t, governance))
	assert.Equal(t, stranger, f.provider.Owner(), "transfer from an unexpected owner must be skipped")
	assert.Equal(t, governance, f.registry.Owner(), "the registry transfer still proceeds")
}

// providerSetOwner reinstalls the provider contract with a new owner.
func (f *setupFixture) providerSetOwner(owner common.Address) {
	f.provider = ledgertest.NewOwnable(owner)
	f.chain.Install(f.report.AddressesProvider, f.provider.Handler())
}

func TestSetupWithoutGovernanceSkipsTransfer(t *testing.T) {
	f := newSetupFixture(t)
	require.NoError(t, f.run(t, common.Address{}))
	assert.Equal(t, f.deployer, f.provider.Owner())
}

func TestSetupPreconditions(t *testing.T) {
	f := newSetupFixture(t)
	bare := report.NewMarketReport(31337, "local", f.deployer)
	s, err := New(Config{
		Ledger:    f.chain,
		Deployer:  f.deployer,
		Report:    bare,
		RiskAdmin: f.riskAdmin,
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(context.Background()), market.ErrPreconditionMissing)
}
