package deployer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/report"
)

// TestAsset describes one mintable test token.
type TestAsset struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// DefaultTestAssets is the standard faucet set for test networks.
func DefaultTestAssets() []TestAsset {
	return []TestAsset{
		{Name: "Dai Stablecoin", Symbol: "DAI", Decimals: 18},
		{Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		{Name: "Tether USD", Symbol: "USDT", Decimals: 6},
		{Name: "Wrapped BTC", Symbol: "WBTC", Decimals: 8},
		{Name: "ChainLink Token", Symbol: "LINK", Decimals: 18},
	}
}

// TokenDeployer mints test assets and records them in a token report.
type TokenDeployer struct {
	factory ledger.Factory
	logger  Logger
}

// NewTokenDeployer wires a token deployer.
func NewTokenDeployer(factory ledger.Factory, logger Logger) (*TokenDeployer, error) {
	if factory == nil {
		return nil, errors.New("config: Factory is required")
	}
	if logger == nil {
		return nil, errors.New("config: Logger is required")
	}
	return &TokenDeployer{factory: factory, logger: logger}, nil
}

// Deploy mints every asset not already present in the incoming report.
// incoming may be nil for a fresh run.
func (d *TokenDeployer) Deploy(ctx context.Context, chainID uint64, assets []TestAsset, incoming *report.TokenReport) (*report.TokenReport, error) {
	r := incoming
	if r == nil {
		r = report.NewTokenReport(chainID, d.factory.Sender())
	}
	for _, asset := range assets {
		if existing, ok := r.Tokens[asset.Symbol]; ok {
			d.logger.Info("reusing minted token", "symbol", asset.Symbol, "address", existing.Hex())
			continue
		}
		args, err := ledger.PackArgs(asset.Name, asset.Symbol, big.NewInt(int64(asset.Decimals)), d.factory.Sender())
		if err != nil {
			return nil, err
		}
		addr, err := d.factory.Deploy(ctx, ledger.ArtifactTestnetERC20, args)
		if err != nil {
			return nil, fmt.Errorf("mint %s: %w", asset.Symbol, err)
		}
		r.Tokens[asset.Symbol] = addr
		d.logger.Info("test token minted", "symbol", asset.Symbol, "address", addr.Hex())
	}
	return r, nil
}
