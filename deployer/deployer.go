// Package deployer orchestrates the staged creation of one lending market:
// components are deployed in strict dependency order, every address is
// accumulated into the market report, and a partially filled report makes a
// re-run skip what already exists. The orchestrator is fail-fast: the first
// failing required stage aborts the run and leaves the report for resumption.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

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

// Config wires the orchestrator's collaborators and market parameters.
type Config struct {
	Ledger   ledger.Ledger
	Factory  ledger.Factory
	Roles    market.Roles
	Market   market.Config
	Flags    market.Flags
	Logger   Logger
	Registry prometheus.Registerer
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Factory == nil {
		return errors.New("config: Factory is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// Orchestrator deploys a complete market and produces its report.
type Orchestrator struct {
	ledger  ledger.Ledger
	factory ledger.Factory
	roles   market.Roles
	market  market.Config
	flags   market.Flags
	logger  Logger
	metrics *Metrics
}

// New constructs an orchestrator, failing on incomplete wiring.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		ledger:  cfg.Ledger,
		factory: cfg.Factory,
		roles:   cfg.Roles,
		market:  cfg.Market,
		flags:   cfg.Flags,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
	}, nil
}

// stage describes one component deployment. run only executes when the
// report has no address for field yet.
type stage struct {
	field    report.Field
	optional bool
	enabled  func(market.Flags) bool
	run      func(ctx context.Context, r *report.MarketReport) (common.Address, error)
}

// Deploy produces a complete market report. incoming may be nil (fresh run)
// or a partially filled report from an aborted run; components it already
// names are reused, never re-deployed. Precondition failures surface before
// any deployment begins. Once deployment has started, every failure returns
// the partially filled report alongside the error: the caller persists it,
// and the next run resumes from the committed components.
func (o *Orchestrator) Deploy(ctx context.Context, incoming *report.MarketReport) (*report.MarketReport, error) {
	if err := o.roles.Validate(); err != nil {
		return nil, err
	}
	if err := o.market.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { o.metrics.deployDuration.Observe(time.Since(started).Seconds()) }()

	r := incoming
	if r == nil {
		r = report.NewMarketReport(o.market.ChainID, o.market.MarketID, o.factory.Sender())
	}

	for _, s := range o.stages() {
		name := string(s.field)
		if s.enabled != nil && !s.enabled(o.flags) {
			o.metrics.observeStage(name, "skipped")
			o.logger.Debug("stage disabled", "stage", name)
			continue
		}
		if r.Has(s.field) {
			o.metrics.observeStage(name, "reused")
			o.logger.Info("reusing deployed component", "stage", name, "address", r.Get(s.field).Hex())
			continue
		}
		addr, err := s.run(ctx, r)
		if err != nil {
			o.metrics.observeStage(name, "failed")
			if s.optional {
				o.logger.Warn("optional component failed, continuing", "stage", name, "error", err)
				continue
			}
			return r, fmt.Errorf("deploy %s: %w", name, err)
		}
		if err := r.Set(s.field, addr); err != nil {
			return r, err
		}
		o.metrics.observeStage(name, "deployed")
		o.logger.Info("component deployed", "stage", name, "address", addr.Hex())
	}

	if err := o.wire(ctx, r); err != nil {
		return r, err
	}
	if err := o.grantGenesisRoles(ctx, r); err != nil {
		return r, err
	}
	return r, nil
}

func (o *Orchestrator) stages() []stage {
	deploy := func(artifact ledger.ArtifactID, args func(r *report.MarketReport) ([]byte, error)) func(context.Context, *report.MarketReport) (common.Address, error) {
		return func(ctx context.Context, r *report.MarketReport) (common.Address, error) {
			encoded, err := args(r)
			if err != nil {
				return common.Address{}, err
			}
			return o.factory.Deploy(ctx, artifact, encoded)
		}
	}
	noArgs := func(*report.MarketReport) ([]byte, error) { return nil, nil }

	return []stage{
		{
			field: report.FieldProviderRegistry,
			run: deploy(ledger.ArtifactProviderRegistry, func(*report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(o.factory.Sender())
			}),
		},
		{
			field: report.FieldAddressesProvider,
			run: deploy(ledger.ArtifactAddressesProvider, func(*report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(o.market.MarketID, o.factory.Sender())
			}),
		},
		{
			field: report.FieldPoolImplementation,
			run: deploy(ledger.ArtifactPool, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.AddressesProvider)
			}),
		},
		{
			field: report.FieldPoolProxy,
			run: deploy(ledger.ArtifactProxy, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.PoolImplementation, r.AddressesProvider)
			}),
		},
		{
			field: report.FieldConfiguratorImpl,
			run: deploy(ledger.ArtifactPoolConfigurator, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.AddressesProvider)
			}),
		},
		{
			field: report.FieldConfiguratorProxy,
			run: deploy(ledger.ArtifactProxy, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.ConfiguratorImpl, r.AddressesProvider)
			}),
		},
		{
			field: report.FieldACLManager,
			run: deploy(ledger.ArtifactACLManager, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.AddressesProvider)
			}),
		},
		{
			field:    report.FieldFallbackOracle,
			optional: true,
			run: deploy(ledger.ArtifactFallbackOracle, func(*report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(o.market.BaseUSDFeed)
			}),
		},
		{
			field: report.FieldOracle,
			run: deploy(ledger.ArtifactOracle, func(r *report.MarketReport) ([]byte, error) {
				unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(o.market.OracleDecimals)), nil)
				return ledger.PackArgs(r.AddressesProvider, r.FallbackOracle, common.Address{}, unit)
			}),
		},
		{
			field: report.FieldRateStrategy,
			run: deploy(ledger.ArtifactRateStrategy, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.AddressesProvider)
			}),
		},
		{
			field: report.FieldDataProvider,
			run: deploy(ledger.ArtifactDataProvider, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.AddressesProvider)
			}),
		},
		{
			field:    report.FieldTreasury,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.Treasury },
			run: deploy(ledger.ArtifactTreasury, func(*report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(o.roles.MarketOwner)
			}),
		},
		{
			field:    report.FieldSentinel,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.Sentinel },
			run: deploy(ledger.ArtifactSentinel, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.AddressesProvider)
			}),
		},
		{
			field: report.FieldATokenImpl,
			run: deploy(ledger.ArtifactAToken, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.PoolProxy)
			}),
		},
		{
			field: report.FieldVariableDebtImpl,
			run: deploy(ledger.ArtifactVariableDebtToken, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.PoolProxy)
			}),
		},
		{
			field:    report.FieldConfigEngine,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.ConfigEngine },
			run: deploy(ledger.ArtifactConfigEngine, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(r.PoolProxy, r.ConfiguratorProxy, r.Oracle, r.ATokenImpl, r.VariableDebtImpl, r.Treasury)
			}),
		},
		{
			field:    report.FieldWrappedTokenGateway,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.Peripherals },
			run: deploy(ledger.ArtifactWrappedTokenGateway, func(r *report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(o.market.WrappedNative, r.PoolProxy)
			}),
		},
		{
			field:    report.FieldWalletBalanceProvider,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.Peripherals },
			run:      deploy(ledger.ArtifactWalletBalanceProvider, noArgs),
		},
		{
			field:    report.FieldUiPoolDataProvider,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.Peripherals },
			run: deploy(ledger.ArtifactUiPoolDataProvider, func(*report.MarketReport) ([]byte, error) {
				return ledger.PackArgs(o.market.NativeUSDFeed)
			}),
		},
		{
			field:    report.FieldUiIncentiveProvider,
			optional: true,
			enabled:  func(f market.Flags) bool { return f.Peripherals },
			run:      deploy(ledger.ArtifactUiIncentiveProvider, noArgs),
		},
	}
}

// wire registers the deployed components on the directory contracts. The
// setters are idempotent on-chain, so a resumed run may safely repeat them.
func (o *Orchestrator) wire(ctx context.Context, r *report.MarketReport) error {
	registrations := []struct {
		to      common.Address
		payload []byte
		label   string
	}{
		{
			to:      r.ProviderRegistry,
			payload: ledger.MustPack("registerAddressesProvider(address,uint256)", r.AddressesProvider, new(big.Int).SetUint64(o.market.ProviderID)),
			label:   "registry.registerAddressesProvider",
		},
		{
			to:      r.AddressesProvider,
			payload: ledger.MustPack("setPool(address)", r.PoolProxy),
			label:   "provider.setPool",
		},
		{
			to:      r.AddressesProvider,
			payload: ledger.MustPack("setPoolConfigurator(address)", r.ConfiguratorProxy),
			label:   "provider.setPoolConfigurator",
		},
		{
			to:      r.AddressesProvider,
			payload: ledger.MustPack("setACLManager(address)", r.ACLManager),
			label:   "provider.setACLManager",
		},
		{
			to:      r.AddressesProvider,
			payload: ledger.MustPack("setPriceOracle(address)", r.Oracle),
			label:   "provider.setPriceOracle",
		},
		{
			to:      r.AddressesProvider,
			payload: ledger.MustPack("setPoolDataProvider(address)", r.DataProvider),
			label:   "provider.setPoolDataProvider",
		},
		{
			to:      r.AddressesProvider,
			payload: ledger.MustPack("setACLAdmin(address)", o.roles.MarketOwner),
			label:   "provider.setACLAdmin",
		},
	}
	for _, reg := range registrations {
		if _, err := o.ledger.Call(ctx, reg.to, reg.payload); err != nil {
			return fmt.Errorf("wire %s: %w", reg.label, err)
		}
		o.logger.Debug("registration confirmed", "call", reg.label)
	}
	return nil
}

// grantGenesisRoles seeds the ACL manager: pool and emergency admins from
// the role set, plus the asset-listing role for the deployer so the listing
// payload can run (and later renounce it).
func (o *Orchestrator) grantGenesisRoles(ctx context.Context, r *report.MarketReport) error {
	manager := acl.NewManager(o.ledger, r.ACLManager)
	grants := []struct {
		role    acl.Role
		account common.Address
	}{
		{acl.RolePoolAdmin, o.roles.PoolAdmin},
		{acl.RoleEmergencyAdmin, o.roles.EmergencyAdmin},
		{acl.RoleAssetListingAdmin, o.factory.Sender()},
	}
	for _, g := range grants {
		if g.account == (common.Address{}) {
			continue
		}
		if err := manager.Grant(ctx, g.role, g.account); err != nil {
			return err
		}
		o.logger.Info("genesis role granted", "role", g.role.String(), "account", g.account.Hex())
	}
	return nil
}
