// Package oracle composes the market's price sources: a primary per-asset
// feed map and a fallback that serves one reference price for every asset
// without a valid feed.
package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/market"
)

// FallbackDecimals is the fixed precision of the fallback oracle's answers.
const FallbackDecimals uint8 = 8

// USD is the sentinel base-currency tag: the zero address stands for USD.
var USD = common.Address{}

// Feed reads one price aggregator.
type Feed struct {
	ledger  ledger.Ledger
	address common.Address
}

// NewFeed wraps the aggregator at the given address.
func NewFeed(l ledger.Ledger, address common.Address) *Feed {
	return &Feed{ledger: l, address: address}
}

// Address returns the aggregator's address.
func (f *Feed) Address() common.Address { return f.address }

// LatestAnswer returns the aggregator's most recent reading. The value is
// signed: feeds can and do report non-positive answers, which callers must
// treat as invalid.
func (f *Feed) LatestAnswer(ctx context.Context) (*big.Int, error) {
	out, err := f.ledger.StaticCall(ctx, f.address, ledger.MustPack("latestAnswer()"))
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", f.address.Hex(), err)
	}
	return ledger.DecodeBigInt(out)
}

// FallbackOracle serves a single reference price for every asset. The asset
// argument of GetAssetPrice is deliberately ignored: all unmapped assets
// share the base-currency-to-USD reading. This is an interim mechanism, not
// a general pricing solution, and downstream stages depend on exactly this
// behavior.
type FallbackOracle struct {
	reference *Feed
}

// NewFallbackOracle builds a fallback around one reference feed.
func NewFallbackOracle(l ledger.Ledger, referenceFeed common.Address) (*FallbackOracle, error) {
	if referenceFeed == (common.Address{}) {
		return nil, fmt.Errorf("fallback oracle: invalid aggregator")
	}
	return &FallbackOracle{reference: NewFeed(l, referenceFeed)}, nil
}

// Decimals returns the fixed answer precision.
func (o *FallbackOracle) Decimals() uint8 { return FallbackDecimals }

// BaseCurrency returns the USD sentinel tag.
func (o *FallbackOracle) BaseCurrency() common.Address { return USD }

// GetAssetPrice returns the reference feed's latest reading for any asset.
// A reading that is not strictly positive fails with an invalid-price error.
func (o *FallbackOracle) GetAssetPrice(ctx context.Context, _ common.Address) (*big.Int, error) {
	answer, err := o.reference.LatestAnswer(ctx)
	if err != nil {
		return nil, err
	}
	if answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: reference feed %s answered %s",
			market.ErrInvalidPriceReading, o.reference.Address().Hex(), answer)
	}
	return answer, nil
}

// AssetOracle resolves per-asset prices from configured feeds, falling back
// when an asset has no feed or its feed reports an invalid value.
type AssetOracle struct {
	ledger   ledger.Ledger
	feeds    map[common.Address]common.Address
	fallback *FallbackOracle
}

// NewAssetOracle builds the primary oracle. fallback may be nil, in which
// case unmapped or invalid assets fail outright.
func NewAssetOracle(l ledger.Ledger, feeds map[common.Address]common.Address, fallback *FallbackOracle) *AssetOracle {
	copied := make(map[common.Address]common.Address, len(feeds))
	for asset, feed := range feeds {
		copied[asset] = feed
	}
	return &AssetOracle{ledger: l, feeds: copied, fallback: fallback}
}

// GetAssetPrice resolves the asset's price. Resolution order: configured
// feed with a positive answer, then the fallback, then failure.
func (o *AssetOracle) GetAssetPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	if feedAddr, ok := o.feeds[asset]; ok && feedAddr != (common.Address{}) {
		answer, err := NewFeed(o.ledger, feedAddr).LatestAnswer(ctx)
		if err == nil && answer.Sign() > 0 {
			return answer, nil
		}
	}
	if o.fallback != nil {
		return o.fallback.GetAssetPrice(ctx, asset)
	}
	return nil, fmt.Errorf("%w: no valid feed for asset %s", market.ErrInvalidPriceReading, asset.Hex())
}
