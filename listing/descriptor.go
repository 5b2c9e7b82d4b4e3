// Package listing builds and executes the one-shot privileged transaction
// that registers the initial asset set on a deployed market and then
// renounces its own elevated role.
package listing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const maxBps = 10_000

// Descriptor is the full per-asset listing configuration. Rate and risk
// parameters are expressed in basis points.
type Descriptor struct {
	Symbol    string         `yaml:"symbol"`
	Asset     common.Address `yaml:"-"`
	PriceFeed common.Address `yaml:"-"`

	// Interest-rate curve.
	OptimalUtilization uint64 `yaml:"optimalUtilization"`
	BaseRate           uint64 `yaml:"baseRate"`
	Slope1             uint64 `yaml:"slope1"`
	Slope2             uint64 `yaml:"slope2"`

	// Risk parameters.
	LTV                    uint64 `yaml:"ltv"`
	LiquidationThreshold   uint64 `yaml:"liquidationThreshold"`
	LiquidationBonus       uint64 `yaml:"liquidationBonus"`
	ReserveFactor          uint64 `yaml:"reserveFactor"`
	SupplyCap              uint64 `yaml:"supplyCap"`
	BorrowCap              uint64 `yaml:"borrowCap"`
	DebtCeiling            uint64 `yaml:"debtCeiling"`
	LiquidationProtocolFee uint64 `yaml:"liquidationProtocolFee"`
}

// Validate enforces the listing invariants: ltv < liquidationThreshold <
// 100%, and every basis-point parameter within 0–10000.
func (d *Descriptor) Validate() error {
	if d.Symbol == "" {
		return fmt.Errorf("listing: descriptor without symbol")
	}
	if d.Asset == (common.Address{}) {
		return fmt.Errorf("listing %s: asset address is zero", d.Symbol)
	}
	if d.PriceFeed == (common.Address{}) {
		return fmt.Errorf("listing %s: price feed is zero", d.Symbol)
	}
	if d.LTV >= d.LiquidationThreshold {
		return fmt.Errorf("listing %s: ltv %d must be below liquidation threshold %d", d.Symbol, d.LTV, d.LiquidationThreshold)
	}
	if d.LiquidationThreshold >= maxBps {
		return fmt.Errorf("listing %s: liquidation threshold %d must be below 100%%", d.Symbol, d.LiquidationThreshold)
	}
	for name, v := range map[string]uint64{
		"liquidationBonus":       d.LiquidationBonus,
		"reserveFactor":          d.ReserveFactor,
		"liquidationProtocolFee": d.LiquidationProtocolFee,
		"optimalUtilization":     d.OptimalUtilization,
	} {
		if v > maxBps {
			return fmt.Errorf("listing %s: %s %d exceeds %d bps", d.Symbol, name, v, maxBps)
		}
	}
	return nil
}
