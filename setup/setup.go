// Package setup finalizes a deployed market: idempotent role grants and an
// optional one-time ownership handover to a governance address. Re-running
// it against a finished market changes nothing and reports the redundant
// operations it skipped.
package setup

import (
	"context"
	"errors"
	"fmt"

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

// Config wires one setup run.
type Config struct {
	Ledger ledger.Ledger

	// Deployer is the invoking account; ownership only transfers away from
	// it, never from an unexpected owner.
	Deployer common.Address

	Report *report.MarketReport
	Roles  market.Roles

	// RiskAdmin receives the risk-admin role if it does not hold it yet.
	RiskAdmin common.Address

	// Governance, when set, receives ownership of the address provider and
	// its registry.
	Governance common.Address

	Logger Logger
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Deployer == (common.Address{}) {
		return errors.New("config: Deployer is required")
	}
	if c.Report == nil {
		return errors.New("config: Report is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Setup performs the post-deployment finalization.
type Setup struct {
	ledger     ledger.Ledger
	deployer   common.Address
	report     *report.MarketReport
	roles      market.Roles
	riskAdmin  common.Address
	governance common.Address
	logger     Logger
}

// New constructs a setup run, failing on incomplete wiring.
func New(cfg Config) (*Setup, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Setup{
		ledger:     cfg.Ledger,
		deployer:   cfg.Deployer,
		report:     cfg.Report,
		roles:      cfg.Roles,
		riskAdmin:  cfg.RiskAdmin,
		governance: cfg.Governance,
		logger:     cfg.Logger,
	}, nil
}

// Run grants the risk-admin role, hands over ownership when configured, and
// closes with a read-only summary of the role holders.
func (s *Setup) Run(ctx context.Context) error {
	if !s.report.Has(report.FieldACLManager) {
		return fmt.Errorf("%w: report has no acl manager", market.ErrPreconditionMissing)
	}
	if !s.report.Has(report.FieldAddressesProvider) {
		return fmt.Errorf("%w: report has no addresses provider", market.ErrPreconditionMissing)
	}

	manager := acl.NewManager(s.ledger, s.report.ACLManager)
	if err := s.grantRiskAdmin(ctx, manager); err != nil {
		return err
	}
	if s.governance != (common.Address{}) {
		if err := s.transferOwnership(ctx); err != nil {
			return err
		}
	}
	return s.summarize(ctx, manager)
}

// grantRiskAdmin grants only when the target does not already hold the
// role. The redundant case is logged and skipped, never an error.
func (s *Setup) grantRiskAdmin(ctx context.Context, manager *acl.Manager) error {
	if s.riskAdmin == (common.Address{}) {
		s.logger.Debug("no risk admin configured, skipping grant")
		return nil
	}
	held, err := manager.Has(ctx, acl.RoleRiskAdmin, s.riskAdmin)
	if err != nil {
		return err
	}
	if held {
		s.logger.Info("redundant operation: risk admin role already granted", "account", s.riskAdmin.Hex())
		return nil
	}
	if err := manager.Grant(ctx, acl.RoleRiskAdmin, s.riskAdmin); err != nil {
		return err
	}
	s.logger.Info("risk admin role granted", "account", s.riskAdmin.Hex())
	return nil
}

// transferOwnership hands the provider (and registry, when deployed) to the
// governance address, but only away from the invoking deployer. Any other
// current owner means the transfer already happened or the component is not
// ours to move; both are skipped.
func (s *Setup) transferOwnership(ctx context.Context) error {
	targets := []struct {
		label string
		addr  common.Address
	}{
		{"poolAddressesProvider", s.report.AddressesProvider},
		{"poolAddressesProviderRegistry", s.report.ProviderRegistry},
	}
	for _, t := range targets {
		if t.addr == (common.Address{}) {
			continue
		}
		out, err := s.ledger.StaticCall(ctx, t.addr, ledger.MustPack("owner()"))
		if err != nil {
			return fmt.Errorf("query owner of %s: %w", t.label, err)
		}
		owner, err := ledger.UnpackAddress(out)
		if err != nil {
			return fmt.Errorf("decode owner of %s: %w", t.label, err)
		}
		switch owner {
		case s.governance:
			s.logger.Info("redundant operation: ownership already transferred", "component", t.label)
			continue
		case s.deployer:
			payload := ledger.MustPack("transferOwnership(address)", s.governance)
			if _, err := s.ledger.Call(ctx, t.addr, payload); err != nil {
				return fmt.Errorf("transfer ownership of %s: %w", t.label, err)
			}
			s.logger.Info("ownership transferred", "component", t.label, "to", s.governance.Hex())
		default:
			s.logger.Warn("unexpected owner, skipping transfer", "component", t.label, "owner", owner.Hex())
		}
	}
	return nil
}

// summarize logs each role's configured holder and whether the membership
// is live. Read-only: the final step performs no further mutation.
func (s *Setup) summarize(ctx context.Context, manager *acl.Manager) error {
	holders := []struct {
		role    acl.Role
		account common.Address
	}{
		{acl.RolePoolAdmin, s.roles.PoolAdmin},
		{acl.RoleEmergencyAdmin, s.roles.EmergencyAdmin},
		{acl.RoleRiskAdmin, s.riskAdmin},
	}
	for _, h := range holders {
		if h.account == (common.Address{}) {
			continue
		}
		held, err := manager.Has(ctx, h.role, h.account)
		if err != nil {
			return err
		}
		s.logger.Info("role holder", "role", h.role.String(), "account", h.account.Hex(), "granted", held)
	}
	return nil
}
