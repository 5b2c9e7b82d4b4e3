// Package validator runs a read-only diagnostic pass over a market report
// and the live chain. Unlike the orchestrator it never stops at the first
// problem: every check runs, and the outcome is the aggregate of all errors
// and warnings. It mutates nothing.
package validator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/market"
	"github.com/lendstate/lendstate-deployer-go/oracle"
	"github.com/lendstate/lendstate-deployer-go/report"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Issue is one finding of the pass.
type Issue struct {
	Check  string
	Detail string
}

func (i Issue) String() string { return i.Check + ": " + i.Detail }

// Result aggregates every finding. It is derived, never persisted.
type Result struct {
	Errors   []Issue
	Warnings []Issue
	Checked  int
}

// AllValid reports overall success: no errors, irrespective of warnings.
func (r *Result) AllValid() bool { return len(r.Errors) == 0 }

// ErrorCount returns the number of fatal findings.
func (r *Result) ErrorCount() int { return len(r.Errors) }

// WarningCount returns the number of advisory findings.
func (r *Result) WarningCount() int { return len(r.Warnings) }

func (r *Result) addError(check, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Check: check, Detail: fmt.Sprintf(format, args...)})
}

func (r *Result) addWarning(check, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Check: check, Detail: fmt.Sprintf(format, args...)})
}

// Config wires one validation pass.
type Config struct {
	Ledger ledger.Ledger
	Report *report.MarketReport
	Logger Logger

	// ReferenceFeed is the aggregator the market's fallback oracle was
	// built around. When set and the report names a fallback oracle, the
	// reference reading is sanity-checked too. Optional.
	ReferenceFeed common.Address

	Registry prometheus.Registerer
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Report == nil {
		return errors.New("config: Report is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Validator checks one report against live chain state.
type Validator struct {
	ledger        ledger.Ledger
	report        *report.MarketReport
	logger        Logger
	referenceFeed common.Address
	metrics       *Metrics
}

// New constructs a validator. Registry may be nil when metrics are not
// collected.
func New(cfg Config) (*Validator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	v := &Validator{ledger: cfg.Ledger, report: cfg.Report, logger: cfg.Logger, referenceFeed: cfg.ReferenceFeed}
	if cfg.Registry != nil {
		v.metrics = NewMetrics(cfg.Registry)
	}
	return v, nil
}

// Run executes every check and aggregates the findings.
func (v *Validator) Run(ctx context.Context) *Result {
	result := &Result{}

	v.checkPresence(ctx, result, report.CoreFields(), false)
	v.checkPresence(ctx, result, report.PeripheralFields(), true)
	v.checkCrossReferences(ctx, result)
	v.checkOracle(ctx, result)
	v.checkRoles(ctx, result)

	if v.metrics != nil {
		v.metrics.observe(result)
	}
	for _, issue := range result.Errors {
		v.logger.Error("validation error", "check", issue.Check, "detail", issue.Detail)
	}
	for _, issue := range result.Warnings {
		v.logger.Warn("validation warning", "check", issue.Check, "detail", issue.Detail)
	}
	v.logger.Info("validation finished",
		"checks", result.Checked, "errors", result.ErrorCount(), "warnings", result.WarningCount(), "allValid", result.AllValid())
	return result
}

// checkPresence verifies each field is set and has live code. Core problems
// are errors, peripheral ones warnings.
func (v *Validator) checkPresence(ctx context.Context, result *Result, fields []report.Field, advisory bool) {
	for _, f := range fields {
		result.Checked++
		check := "presence/" + string(f)
		addr := v.report.Get(f)
		add := result.addError
		if advisory {
			add = result.addWarning
		}
		if addr == (common.Address{}) {
			add(check, "address not set")
			continue
		}
		code, err := v.ledger.GetCode(ctx, addr)
		if err != nil {
			add(check, "code query failed for %s: %v", addr.Hex(), err)
			continue
		}
		if len(code) == 0 {
			add(check, "no live code at %s", addr.Hex())
			continue
		}
		v.logger.Debug("component ok", "field", string(f), "address", addr.Hex())
	}
}

// checkCrossReferences verifies both directions of the provider<->pool
// relationship independently, then the provider's ACL manager registration.
// A failure in one direction must not mask the other.
func (v *Validator) checkCrossReferences(ctx context.Context, result *Result) {
	result.Checked++
	providerPool := ledger.TryStaticCall(ctx, v.ledger, v.report.AddressesProvider, ledger.MustPack("getPool()"))
	if !providerPool.OK() {
		result.addError("crossref/provider-pool", "getPool query failed: %v", providerPool.Err)
	} else if got, err := ledger.UnpackAddress(providerPool.Value); err != nil {
		result.addError("crossref/provider-pool", "getPool returned malformed value: %v", err)
	} else if got != v.report.PoolProxy {
		result.addError("crossref/provider-pool", "provider records pool %s, report has %s", got.Hex(), v.report.PoolProxy.Hex())
	}

	result.Checked++
	poolProvider := ledger.TryStaticCall(ctx, v.ledger, v.report.PoolProxy, ledger.MustPack("ADDRESSES_PROVIDER()"))
	if !poolProvider.OK() {
		result.addError("crossref/pool-provider", "ADDRESSES_PROVIDER query failed: %v", poolProvider.Err)
	} else if got, err := ledger.UnpackAddress(poolProvider.Value); err != nil {
		result.addError("crossref/pool-provider", "ADDRESSES_PROVIDER returned malformed value: %v", err)
	} else if got != v.report.AddressesProvider {
		result.addError("crossref/pool-provider", "pool records provider %s, report has %s", got.Hex(), v.report.AddressesProvider.Hex())
	}
}

// checkOracle verifies the oracle answers its base-currency query, and
// probes a price for an unlisted sentinel asset. The probe failing is the
// expected no-assets-listed condition, a warning only. With a reference feed
// configured, the fallback oracle's reading is checked as well: a market
// whose fallback serves no usable price has no price of last resort.
func (v *Validator) checkOracle(ctx context.Context, result *Result) {
	result.Checked++
	base := ledger.TryStaticCall(ctx, v.ledger, v.report.Oracle, ledger.MustPack("BASE_CURRENCY()"))
	if !base.OK() {
		result.addError("oracle/base-currency", "BASE_CURRENCY query failed: %v", base.Err)
	}

	result.Checked++
	probe := ledger.TryStaticCall(ctx, v.ledger, v.report.Oracle,
		ledger.MustPack("getAssetPrice(address)", common.Address{}))
	if !probe.OK() {
		result.addWarning("oracle/price-probe", "no assets listed yet: %v", probe.Err)
	}

	if v.referenceFeed == (common.Address{}) || !v.report.Has(report.FieldFallbackOracle) {
		return
	}
	result.Checked++
	fallback, err := oracle.NewFallbackOracle(v.ledger, v.referenceFeed)
	if err != nil {
		result.addError("oracle/fallback-reference", "%v", err)
		return
	}
	price, err := fallback.GetAssetPrice(ctx, oracle.USD)
	switch {
	case errors.Is(err, market.ErrInvalidPriceReading):
		result.addError("oracle/fallback-reference", "reference feed serves no usable price: %v", err)
	case err != nil:
		result.addError("oracle/fallback-reference", "reference feed query failed: %v", err)
	default:
		v.logger.Debug("fallback reference ok", "feed", v.referenceFeed.Hex(), "price", price.String())
	}
}

// checkRoles verifies the ACL manager the provider points at matches the
// report.
func (v *Validator) checkRoles(ctx context.Context, result *Result) {
	result.Checked++
	res := ledger.TryStaticCall(ctx, v.ledger, v.report.AddressesProvider, ledger.MustPack("getACLManager()"))
	if !res.OK() {
		result.addError("roles/acl-manager", "getACLManager query failed: %v", res.Err)
		return
	}
	got, err := ledger.UnpackAddress(res.Value)
	if err != nil {
		result.addError("roles/acl-manager", "getACLManager returned malformed value: %v", err)
		return
	}
	if got != v.report.ACLManager {
		result.addError("roles/acl-manager", "provider records acl manager %s, report has %s", got.Hex(), v.report.ACLManager.Hex())
	}
}
