// Package config loads the pipeline's environment-style configuration with
// explicit required-vs-defaulted semantics: a missing mandatory key fails
// with a descriptive error before any stage runs.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/lendstate/lendstate-deployer-go/market"
)

const envPrefix = "MARKET"

// Config aggregates every stage's settings. Stages validate the subset they
// actually need.
type Config struct {
	// Connection.
	RPCURL     string
	PrivateKey string

	// ReportDir is where report files are written and read back.
	ReportDir string

	// ArtifactDir holds the compiled creation bytecode, one .bin per
	// artifact.
	ArtifactDir string

	Market market.Config
	Roles  market.Roles
	Flags  market.Flags

	// Listing stage.
	ListingTable   string
	AssetOverrides map[string]common.Address

	// Post-deploy stage.
	RiskAdmin  common.Address
	Governance common.Address
}

// Load reads configuration from the environment (and an optional config
// file) under the MARKET_ prefix.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("report_dir", "./reports")
	v.SetDefault("artifact_dir", "./artifacts")
	v.SetDefault("market_id", "")
	v.SetDefault("provider_id", 1)
	v.SetDefault("oracle_decimals", 8)
	v.SetDefault("flag_treasury", true)
	v.SetDefault("flag_sentinel", true)
	v.SetDefault("flag_peripherals", true)
	v.SetDefault("flag_config_engine", true)
	v.SetDefault("listing_table", "")
	v.SetDefault("asset_overrides", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("config: parse %s: %w", configFile, err)
			}
			// A missing file is fine, the environment still applies.
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	decimals := v.GetUint("oracle_decimals")
	if decimals > math.MaxUint8 {
		return nil, fmt.Errorf("config: %s_ORACLE_DECIMALS: %d out of range", envPrefix, decimals)
	}

	cfg := &Config{
		RPCURL:      v.GetString("rpc_url"),
		PrivateKey:  v.GetString("private_key"),
		ReportDir:   v.GetString("report_dir"),
		ArtifactDir: v.GetString("artifact_dir"),
		Market: market.Config{
			ChainID:        v.GetUint64("chain_id"),
			MarketID:       v.GetString("market_id"),
			ProviderID:     v.GetUint64("provider_id"),
			OracleDecimals: uint8(decimals),
		},
		Flags: market.Flags{
			Treasury:     v.GetBool("flag_treasury"),
			Sentinel:     v.GetBool("flag_sentinel"),
			Peripherals:  v.GetBool("flag_peripherals"),
			ConfigEngine: v.GetBool("flag_config_engine"),
		},
		ListingTable: v.GetString("listing_table"),
	}

	var err error
	if cfg.Market.WrappedNative, err = optionalAddress(v, "wrapped_native"); err != nil {
		return nil, err
	}
	if cfg.Market.NativeUSDFeed, err = optionalAddress(v, "native_usd_feed"); err != nil {
		return nil, err
	}
	if cfg.Market.BaseUSDFeed, err = optionalAddress(v, "base_usd_feed"); err != nil {
		return nil, err
	}
	if cfg.Roles.MarketOwner, err = optionalAddress(v, "market_owner"); err != nil {
		return nil, err
	}
	if cfg.Roles.PoolAdmin, err = optionalAddress(v, "pool_admin"); err != nil {
		return nil, err
	}
	if cfg.Roles.EmergencyAdmin, err = optionalAddress(v, "emergency_admin"); err != nil {
		return nil, err
	}
	if cfg.Roles.RiskAdmin, err = optionalAddress(v, "risk_admin"); err != nil {
		return nil, err
	}
	cfg.RiskAdmin = cfg.Roles.RiskAdmin
	if cfg.Governance, err = optionalAddress(v, "governance"); err != nil {
		return nil, err
	}
	if cfg.AssetOverrides, err = parseOverrides(v.GetString("asset_overrides")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireConnection validates the keys every mutating stage needs.
func (c *Config) RequireConnection() error {
	if c.RPCURL == "" {
		return fmt.Errorf("%w: MARKET_RPC_URL is required", market.ErrPreconditionMissing)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("%w: MARKET_PRIVATE_KEY is required", market.ErrPreconditionMissing)
	}
	if c.Market.ChainID == 0 {
		return fmt.Errorf("%w: MARKET_CHAIN_ID is required", market.ErrPreconditionMissing)
	}
	return nil
}

// RequireListing validates the keys the listing stage needs.
func (c *Config) RequireListing() error {
	if c.ListingTable == "" {
		return fmt.Errorf("%w: MARKET_LISTING_TABLE is required", market.ErrPreconditionMissing)
	}
	return nil
}

// RequireSetup validates the keys the post-deploy stage needs.
func (c *Config) RequireSetup() error {
	if c.RiskAdmin == (common.Address{}) {
		return fmt.Errorf("%w: MARKET_RISK_ADMIN is required", market.ErrPreconditionMissing)
	}
	return nil
}

func optionalAddress(v *viper.Viper, key string) (common.Address, error) {
	raw := v.GetString(key)
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("config: %s_%s: malformed address %q", envPrefix, strings.ToUpper(key), raw)
	}
	return common.HexToAddress(raw), nil
}

// parseOverrides reads "SYMBOL=0x...,SYMBOL=0x..." pairs.
func parseOverrides(raw string) (map[string]common.Address, error) {
	out := make(map[string]common.Address)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		symbol, addr, found := strings.Cut(pair, "=")
		if !found || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("config: asset override %q: want SYMBOL=0xADDRESS", pair)
		}
		out[strings.TrimSpace(symbol)] = common.HexToAddress(addr)
	}
	return out, nil
}
