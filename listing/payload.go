package listing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lendstate/lendstate-deployer-go/acl"
	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/market"
	"github.com/lendstate/lendstate-deployer-go/report"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config wires one payload execution.
type Config struct {
	Ledger ledger.Ledger

	// Executor is the account submitting the calls; it must hold the
	// asset-listing role and renounces it when done.
	Executor common.Address

	Report    *report.MarketReport
	Table     *Table
	Overrides map[string]common.Address
	Logger    Logger
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Executor == (common.Address{}) {
		return errors.New("config: Executor is required")
	}
	if c.Report == nil {
		return errors.New("config: Report is required")
	}
	if c.Table == nil {
		return errors.New("config: Table is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Payload is the single-execution listing transaction. Execute lists every
// asset through the market's config engine, then renounces the executor's
// asset-listing role so a stale payload can never alter the market again.
type Payload struct {
	ledger    ledger.Ledger
	executor  common.Address
	report    *report.MarketReport
	table     *Table
	overrides map[string]common.Address
	logger    Logger
}

// New constructs a payload, failing on incomplete wiring.
func New(cfg Config) (*Payload, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Payload{
		ledger:    cfg.Ledger,
		executor:  cfg.Executor,
		report:    cfg.Report,
		table:     cfg.Table,
		overrides: cfg.Overrides,
		logger:    cfg.Logger,
	}, nil
}

// Execute runs the listing and the mandatory privilege revocation. Every
// descriptor is resolved and validated before the first call, so a zero
// address override rejects the whole run with no partial listing. A second
// execution fails: the required role was renounced by the first.
func (p *Payload) Execute(ctx context.Context) error {
	if !p.report.Has(report.FieldConfigEngine) {
		return fmt.Errorf("%w: report has no config engine", market.ErrPreconditionMissing)
	}
	if !p.report.Has(report.FieldACLManager) {
		return fmt.Errorf("%w: report has no acl manager", market.ErrPreconditionMissing)
	}

	manager := acl.NewManager(p.ledger, p.report.ACLManager)
	held, err := manager.Has(ctx, acl.RoleAssetListingAdmin, p.executor)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: executor %s no longer holds %s",
			market.ErrAlreadyFinalized, p.executor.Hex(), acl.RoleAssetListingAdmin)
	}

	descriptors, err := p.table.Resolve(p.overrides)
	if err != nil {
		return err
	}

	engine := p.report.ConfigEngine
	for _, d := range descriptors {
		if err := p.listAsset(ctx, engine, d); err != nil {
			return fmt.Errorf("list %s: %w", d.Symbol, err)
		}
		p.logger.Info("asset listed", "symbol", d.Symbol, "asset", d.Asset.Hex())
	}

	// Mandatory post-step: a listing without the revocation is a failed run.
	if err := manager.Renounce(ctx, acl.RoleAssetListingAdmin, p.executor); err != nil {
		return fmt.Errorf("renounce listing role: %w", err)
	}
	p.logger.Info("listing role renounced", "executor", p.executor.Hex())
	return nil
}

func (p *Payload) listAsset(ctx context.Context, engine common.Address, d Descriptor) error {
	calls := [][]byte{
		pack("listAsset(address,address,uint256,uint256,uint256,uint256)",
			d.Asset, d.PriceFeed, bps(d.LTV), bps(d.LiquidationThreshold), bps(d.LiquidationBonus), bps(d.ReserveFactor)),
		pack("setCaps(address,uint256,uint256,uint256)",
			d.Asset, new(big.Int).SetUint64(d.SupplyCap), new(big.Int).SetUint64(d.BorrowCap), new(big.Int).SetUint64(d.DebtCeiling)),
		pack("setRateParams(address,uint256,uint256,uint256,uint256)",
			d.Asset, bps(d.OptimalUtilization), bps(d.BaseRate), bps(d.Slope1), bps(d.Slope2)),
		pack("setLiquidationProtocolFee(address,uint256)",
			d.Asset, bps(d.LiquidationProtocolFee)),
	}
	for _, payload := range calls {
		if _, err := p.ledger.Call(ctx, engine, payload); err != nil {
			return err
		}
	}
	return nil
}

func pack(sig string, args ...any) []byte {
	return ledger.MustPack(sig, args...)
}

func bps(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
