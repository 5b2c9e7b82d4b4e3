package market

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Roles holds the addresses that receive the market's named capabilities.
// MarketOwner is set once at genesis and owns the address provider;
// PoolAdmin handles day-to-day risk and configuration changes.
type Roles struct {
	MarketOwner    common.Address `json:"marketOwner"`
	PoolAdmin      common.Address `json:"poolAdmin"`
	EmergencyAdmin common.Address `json:"emergencyAdmin"`
	RiskAdmin      common.Address `json:"riskAdmin"`
}

// Validate checks that the mandatory role addresses are present.
func (r *Roles) Validate() error {
	if r.MarketOwner == (common.Address{}) {
		return fmt.Errorf("%w: roles: marketOwner is required", ErrPreconditionMissing)
	}
	if r.PoolAdmin == (common.Address{}) {
		return fmt.Errorf("%w: roles: poolAdmin is required", ErrPreconditionMissing)
	}
	return nil
}

// Config holds the network-specific market parameters. It is supplied by the
// caller before orchestration and is immutable during a run.
type Config struct {
	// ChainID identifies the target network.
	ChainID uint64 `json:"chainId"`

	// MarketID is the human label registered on the address provider.
	MarketID string `json:"marketId"`

	// ProviderID distinguishes this market on the provider registry.
	ProviderID uint64 `json:"providerId"`

	// WrappedNative is the network's wrapped native asset (e.g. WETH).
	WrappedNative common.Address `json:"wrappedNative"`

	// NativeUSDFeed prices the native currency in USD.
	NativeUSDFeed common.Address `json:"nativeUsdFeed"`

	// BaseUSDFeed prices the market's base currency in USD. It seeds the
	// fallback oracle.
	BaseUSDFeed common.Address `json:"baseUsdFeed"`

	// OracleDecimals is the decimal precision of the oracle's answers.
	OracleDecimals uint8 `json:"oracleDecimals"`
}

// Validate checks the mandatory configuration before any deployment begins.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("%w: config: chainId is required", ErrPreconditionMissing)
	}
	if c.MarketID == "" {
		return fmt.Errorf("%w: config: marketId is required", ErrPreconditionMissing)
	}
	if c.WrappedNative == (common.Address{}) {
		return fmt.Errorf("%w: config: wrappedNative is required", ErrPreconditionMissing)
	}
	if c.BaseUSDFeed == (common.Address{}) {
		return fmt.Errorf("%w: config: baseUsdFeed is required", ErrPreconditionMissing)
	}
	if c.OracleDecimals == 0 {
		return fmt.Errorf("%w: config: oracleDecimals is required", ErrPreconditionMissing)
	}
	return nil
}

// Flags toggles the optional components of an orchestration run.
type Flags struct {
	// Treasury controls deployment of the collector contract.
	Treasury bool `json:"treasury"`

	// Sentinel controls deployment of the price oracle sentinel.
	Sentinel bool `json:"sentinel"`

	// Peripherals controls deployment of the helper contracts (gateway,
	// balance provider, UI data providers).
	Peripherals bool `json:"peripherals"`

	// ConfigEngine controls deployment of the listing config engine.
	ConfigEngine bool `json:"configEngine"`
}

// DefaultFlags enables every optional component.
func DefaultFlags() Flags {
	return Flags{Treasury: true, Sentinel: true, Peripherals: true, ConfigEngine: true}
}

// Error taxonomy shared by every pipeline stage. Stages wrap these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	// ErrPreconditionMissing reports required configuration or a required
	// report field that is zero or absent. Fatal before any mutation.
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrComponentUnreachable reports an expected address with no live code.
	ErrComponentUnreachable = errors.New("component unreachable")

	// ErrCrossReferenceMismatch reports two components that disagree about
	// their relationship. Always fatal.
	ErrCrossReferenceMismatch = errors.New("cross-reference mismatch")

	// ErrInvalidPriceReading reports a feed answer that is not strictly
	// positive.
	ErrInvalidPriceReading = errors.New("invalid price reading")

	// ErrAlreadyFinalized reports an attempt to re-exercise a privileged
	// path after that privilege was deliberately revoked.
	ErrAlreadyFinalized = errors.New("already finalized")
)
