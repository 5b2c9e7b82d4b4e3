package main

import (
	"fmt"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lendstate/lendstate-deployer-go/deployer"
	"github.com/lendstate/lendstate-deployer-go/ledger/rpcledger"
	"github.com/lendstate/lendstate-deployer-go/listing"
	"github.com/lendstate/lendstate-deployer-go/market"
	"github.com/lendstate/lendstate-deployer-go/setup"
	"github.com/lendstate/lendstate-deployer-go/validator"
)

type appFunc func() (*appContext, error)

// dial validates the connection keys and opens the signing RPC client.
func dial(app *appContext) (*rpcledger.Client, error) {
	if err := app.cfg.RequireConnection(); err != nil {
		return nil, err
	}
	artifacts, err := loadArtifacts(app.cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return rpcledger.Dial(ctx, rpcledger.Config{
		URL:        app.cfg.RPCURL,
		PrivateKey: app.cfg.PrivateKey,
		ChainID:    new(big.Int).SetUint64(app.cfg.Market.ChainID),
		Logger:     app.logger.With("component", "rpcledger"),
		Artifacts:  artifacts,
	})
}

func newDeployTokensCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-tokens",
		Short: "Mint the test asset set and write the token report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			client, err := dial(a)
			if err != nil {
				return err
			}
			defer client.Close()

			td, err := deployer.NewTokenDeployer(client, a.logger.With("component", "token-deployer"))
			if err != nil {
				return err
			}
			incoming, err := a.store.LoadToken()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			r, err := td.Deploy(ctx, a.cfg.Market.ChainID, deployer.DefaultTestAssets(), incoming)
			if err != nil {
				return err
			}
			return a.store.SaveToken(r)
		},
	}
}

func newDeployMarketCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-market",
		Short: "Deploy the market components and write the market report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			client, err := dial(a)
			if err != nil {
				return err
			}
			defer client.Close()

			orch, err := deployer.New(deployer.Config{
				Ledger:   client,
				Factory:  client,
				Roles:    a.cfg.Roles,
				Market:   a.cfg.Market,
				Flags:    a.cfg.Flags,
				Logger:   a.logger.With("component", "orchestrator"),
				Registry: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return err
			}
			incoming, err := a.store.LoadMarket()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			r, err := orch.Deploy(ctx, incoming)
			if r != nil {
				// Persist whatever was committed, even on failure: the
				// report is what makes the next run resumable.
				if saveErr := a.store.SaveMarket(r); saveErr != nil && err == nil {
					err = saveErr
				}
			}
			return err
		},
	}
}

func newListAssetsCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list-assets",
		Short: "Execute the one-shot listing payload and renounce its role",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			if err := a.cfg.RequireListing(); err != nil {
				return err
			}
			r, err := a.store.LoadMarket()
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("%w: no market report in %s", market.ErrPreconditionMissing, a.cfg.ReportDir)
			}
			table, err := listing.LoadTable(a.cfg.ListingTable)
			if err != nil {
				return err
			}
			client, err := dial(a)
			if err != nil {
				return err
			}
			defer client.Close()

			payload, err := listing.New(listing.Config{
				Ledger:    client,
				Executor:  client.Sender(),
				Report:    r,
				Table:     table,
				Overrides: a.cfg.AssetOverrides,
				Logger:    a.logger.With("component", "listing"),
			})
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return payload.Execute(ctx)
		},
	}
}

func newValidateCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the read-only consistency and role checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			r, err := a.store.LoadMarket()
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("%w: no market report in %s", market.ErrPreconditionMissing, a.cfg.ReportDir)
			}
			client, err := dial(a)
			if err != nil {
				return err
			}
			defer client.Close()

			v, err := validator.New(validator.Config{
				Ledger:        client,
				Report:        r,
				Logger:        a.logger.With("component", "validator"),
				ReferenceFeed: a.cfg.Market.BaseUSDFeed,
				Registry:      prometheus.DefaultRegisterer,
			})
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			result := v.Run(ctx)
			if !result.AllValid() {
				return fmt.Errorf("validation failed: %d errors, %d warnings", result.ErrorCount(), result.WarningCount())
			}
			return nil
		},
	}
}

func newPostSetupCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "post-setup",
		Short: "Grant the remaining roles and hand over ownership",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app()
			if err != nil {
				return err
			}
			if err := a.cfg.RequireSetup(); err != nil {
				return err
			}
			r, err := a.store.LoadMarket()
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("%w: no market report in %s", market.ErrPreconditionMissing, a.cfg.ReportDir)
			}
			client, err := dial(a)
			if err != nil {
				return err
			}
			defer client.Close()

			s, err := setup.New(setup.Config{
				Ledger:     client,
				Deployer:   client.Sender(),
				Report:     r,
				Roles:      a.cfg.Roles,
				RiskAdmin:  a.cfg.RiskAdmin,
				Governance: a.cfg.Governance,
				Logger:     a.logger.With("component", "setup"),
			})
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return s.Run(ctx)
		},
	}
}
