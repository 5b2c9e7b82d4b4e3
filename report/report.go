// Package report defines the durable records produced by the deployment
// pipeline: the market report mapping every component to its address, and
// the token report for freshly minted test assets. The market report is the
// single source of truth consumed by every downstream stage.
package report

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Field names one slot of the market report. The set is closed: every
// deployable component has exactly one field.
type Field string

const (
	FieldProviderRegistry      Field = "poolAddressesProviderRegistry"
	FieldAddressesProvider     Field = "poolAddressesProvider"
	FieldPoolProxy             Field = "poolProxy"
	FieldPoolImplementation    Field = "poolImplementation"
	FieldConfiguratorProxy     Field = "poolConfiguratorProxy"
	FieldConfiguratorImpl      Field = "poolConfiguratorImplementation"
	FieldACLManager            Field = "aclManager"
	FieldOracle                Field = "aaveOracle"
	FieldFallbackOracle        Field = "fallbackOracle"
	FieldRateStrategy          Field = "defaultInterestRateStrategy"
	FieldDataProvider          Field = "protocolDataProvider"
	FieldSentinel              Field = "priceOracleSentinel"
	FieldTreasury              Field = "treasury"
	FieldATokenImpl            Field = "aTokenImplementation"
	FieldVariableDebtImpl      Field = "variableDebtTokenImplementation"
	FieldConfigEngine          Field = "configEngine"
	FieldWrappedTokenGateway   Field = "wrappedTokenGateway"
	FieldWalletBalanceProvider Field = "walletBalanceProvider"
	FieldUiPoolDataProvider    Field = "uiPoolDataProvider"
	FieldUiIncentiveProvider   Field = "uiIncentiveDataProvider"
)

// CoreFields are the components every market must have; a missing or dead
// address here is a validation error.
func CoreFields() []Field {
	return []Field{
		FieldProviderRegistry,
		FieldAddressesProvider,
		FieldPoolProxy,
		FieldPoolImplementation,
		FieldConfiguratorProxy,
		FieldConfiguratorImpl,
		FieldACLManager,
		FieldOracle,
		FieldRateStrategy,
		FieldDataProvider,
	}
}

// PeripheralFields are optional components; problems here are warnings.
func PeripheralFields() []Field {
	return []Field{
		FieldFallbackOracle,
		FieldSentinel,
		FieldTreasury,
		FieldATokenImpl,
		FieldVariableDebtImpl,
		FieldConfigEngine,
		FieldWrappedTokenGateway,
		FieldWalletBalanceProvider,
		FieldUiPoolDataProvider,
		FieldUiIncentiveProvider,
	}
}

// MarketReport records every deployed component of one market instance.
// Fields are written once by the orchestrator and reused on re-runs; after
// persistence the report is a read-only artifact for downstream stages.
type MarketReport struct {
	RunID     string         `json:"runId"`
	ChainID   uint64         `json:"chainId"`
	MarketID  string         `json:"marketId"`
	Deployer  common.Address `json:"deployer"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	ProviderRegistry      common.Address `json:"poolAddressesProviderRegistry"`
	AddressesProvider     common.Address `json:"poolAddressesProvider"`
	PoolProxy             common.Address `json:"poolProxy"`
	PoolImplementation    common.Address `json:"poolImplementation"`
	ConfiguratorProxy     common.Address `json:"poolConfiguratorProxy"`
	ConfiguratorImpl      common.Address `json:"poolConfiguratorImplementation"`
	ACLManager            common.Address `json:"aclManager"`
	Oracle                common.Address `json:"aaveOracle"`
	FallbackOracle        common.Address `json:"fallbackOracle"`
	RateStrategy          common.Address `json:"defaultInterestRateStrategy"`
	DataProvider          common.Address `json:"protocolDataProvider"`
	Sentinel              common.Address `json:"priceOracleSentinel"`
	Treasury              common.Address `json:"treasury"`
	ATokenImpl            common.Address `json:"aTokenImplementation"`
	VariableDebtImpl      common.Address `json:"variableDebtTokenImplementation"`
	ConfigEngine          common.Address `json:"configEngine"`
	WrappedTokenGateway   common.Address `json:"wrappedTokenGateway"`
	WalletBalanceProvider common.Address `json:"walletBalanceProvider"`
	UiPoolDataProvider    common.Address `json:"uiPoolDataProvider"`
	UiIncentiveProvider   common.Address `json:"uiIncentiveDataProvider"`
}

// NewMarketReport starts an empty report for one orchestration run.
func NewMarketReport(chainID uint64, marketID string, deployer common.Address) *MarketReport {
	now := time.Now().UTC()
	return &MarketReport{
		RunID:     uuid.NewString(),
		ChainID:   chainID,
		MarketID:  marketID,
		Deployer:  deployer,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *MarketReport) fieldPtr(f Field) *common.Address {
	switch f {
	case FieldProviderRegistry:
		return &r.ProviderRegistry
	case FieldAddressesProvider:
		return &r.AddressesProvider
	case FieldPoolProxy:
		return &r.PoolProxy
	case FieldPoolImplementation:
		return &r.PoolImplementation
	case FieldConfiguratorProxy:
		return &r.ConfiguratorProxy
	case FieldConfiguratorImpl:
		return &r.ConfiguratorImpl
	case FieldACLManager:
		return &r.ACLManager
	case FieldOracle:
		return &r.Oracle
	case FieldFallbackOracle:
		return &r.FallbackOracle
	case FieldRateStrategy:
		return &r.RateStrategy
	case FieldDataProvider:
		return &r.DataProvider
	case FieldSentinel:
		return &r.Sentinel
	case FieldTreasury:
		return &r.Treasury
	case FieldATokenImpl:
		return &r.ATokenImpl
	case FieldVariableDebtImpl:
		return &r.VariableDebtImpl
	case FieldConfigEngine:
		return &r.ConfigEngine
	case FieldWrappedTokenGateway:
		return &r.WrappedTokenGateway
	case FieldWalletBalanceProvider:
		return &r.WalletBalanceProvider
	case FieldUiPoolDataProvider:
		return &r.UiPoolDataProvider
	case FieldUiIncentiveProvider:
		return &r.UiIncentiveProvider
	}
	return nil
}

// Get returns the recorded address for a field, zero when unset.
func (r *MarketReport) Get(f Field) common.Address {
	p := r.fieldPtr(f)
	if p == nil {
		return common.Address{}
	}
	return *p
}

// Has reports whether the field holds a non-zero address.
func (r *MarketReport) Has(f Field) bool {
	return r.Get(f) != (common.Address{})
}

// Set records an address. A field set to a non-zero value is never silently
// overwritten: setting the same value again is a no-op, setting a different
// one is an error.
func (r *MarketReport) Set(f Field, addr common.Address) error {
	p := r.fieldPtr(f)
	if p == nil {
		return fmt.Errorf("report: unknown field %q", f)
	}
	if *p != (common.Address{}) {
		if *p == addr {
			return nil
		}
		return fmt.Errorf("report: field %q already set to %s, refusing %s", f, p.Hex(), addr.Hex())
	}
	*p = addr
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// TokenReport records freshly minted test assets.
type TokenReport struct {
	RunID     string                    `json:"runId"`
	ChainID   uint64                    `json:"chainId"`
	Deployer  common.Address            `json:"deployer"`
	CreatedAt time.Time                 `json:"createdAt"`
	Tokens    map[string]common.Address `json:"tokens"`
}

// NewTokenReport starts an empty token report.
func NewTokenReport(chainID uint64, deployer common.Address) *TokenReport {
	return &TokenReport{
		RunID:     uuid.NewString(),
		ChainID:   chainID,
		Deployer:  deployer,
		CreatedAt: time.Now().UTC(),
		Tokens:    make(map[string]common.Address),
	}
}
