// Package ledger defines the capabilities the pipeline needs from the target
// chain: a Ledger for reading and calling live contracts, and a Factory for
// turning compiled artifacts into deployed components. Both are injected into
// every stage, never reached for ambiently.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ArtifactID identifies a compiled contract artifact known to the Factory.
type ArtifactID string

const (
	ArtifactProviderRegistry      ArtifactID = "PoolAddressesProviderRegistry"
	ArtifactAddressesProvider     ArtifactID = "PoolAddressesProvider"
	ArtifactPool                  ArtifactID = "Pool"
	ArtifactPoolConfigurator      ArtifactID = "PoolConfigurator"
	ArtifactProxy                 ArtifactID = "InitializableAdminUpgradeabilityProxy"
	ArtifactACLManager            ArtifactID = "ACLManager"
	ArtifactOracle                ArtifactID = "AaveOracle"
	ArtifactFallbackOracle        ArtifactID = "PriceOracle"
	ArtifactRateStrategy          ArtifactID = "DefaultReserveInterestRateStrategy"
	ArtifactDataProvider          ArtifactID = "AaveProtocolDataProvider"
	ArtifactTreasury              ArtifactID = "Collector"
	ArtifactSentinel              ArtifactID = "PriceOracleSentinel"
	ArtifactAToken                ArtifactID = "AToken"
	ArtifactVariableDebtToken     ArtifactID = "VariableDebtToken"
	ArtifactConfigEngine          ArtifactID = "AaveV3ConfigEngine"
	ArtifactWrappedTokenGateway   ArtifactID = "WrappedTokenGatewayV3"
	ArtifactWalletBalanceProvider ArtifactID = "WalletBalanceProvider"
	ArtifactUiPoolDataProvider    ArtifactID = "UiPoolDataProviderV3"
	ArtifactUiIncentiveProvider   ArtifactID = "UiIncentiveDataProviderV3"
	ArtifactTestnetERC20          ArtifactID = "TestnetERC20"
)

// Ledger is the read/write surface of the target chain. Call submits a
// state-changing transaction and blocks until it is confirmed; StaticCall
// executes read-only. Neither retries: a failure surfaces to the caller,
// which decides whether to re-run the pipeline.
type Ledger interface {
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)
	Call(ctx context.Context, addr common.Address, payload []byte) ([]byte, error)
	StaticCall(ctx context.Context, addr common.Address, payload []byte) ([]byte, error)
}

// Factory creates on-chain components from compiled artifacts.
type Factory interface {
	// Deploy creates a new component and returns its address once the
	// creation is confirmed.
	Deploy(ctx context.Context, artifact ArtifactID, args []byte) (common.Address, error)

	// ComputeAddress predicts a deterministic deployment address without
	// deploying.
	ComputeAddress(artifact ArtifactID, args []byte, salt [32]byte) (common.Address, error)

	// Sender is the account every Deploy and Call is issued from.
	Sender() common.Address
}

// CallResult is the explicit outcome of one best-effort external query.
// The validator consumes these without aborting, so a failed probe is a
// value, not a control-flow event.
type CallResult struct {
	Value []byte
	Err   error
}

// OK reports whether the call produced a value.
func (r CallResult) OK() bool { return r.Err == nil }

// TryStaticCall wraps a read-only call into a CallResult.
func TryStaticCall(ctx context.Context, l Ledger, addr common.Address, payload []byte) CallResult {
	out, err := l.StaticCall(ctx, addr, payload)
	return CallResult{Value: out, Err: err}
}
