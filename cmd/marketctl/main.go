// marketctl drives the lending-market deployment pipeline: minting test
// tokens, orchestrating the market deployment, listing the initial assets,
// validating the result and finalizing roles. Each subcommand is one
// pipeline stage reading and writing the shared report files.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lendstate/lendstate-deployer-go/config"
	"github.com/lendstate/lendstate-deployer-go/ledger"
	"github.com/lendstate/lendstate-deployer-go/report"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type appContext struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *report.Store
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Staged deployment pipeline for a lending market",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file; the MARKET_* environment always applies")

	app := func() (*appContext, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		store, err := report.NewStore(cfg.ReportDir)
		if err != nil {
			return nil, err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		return &appContext{cfg: cfg, logger: logger, store: store}, nil
	}

	cmd.AddCommand(
		newDeployTokensCmd(app),
		newDeployMarketCmd(app),
		newListAssetsCmd(app),
		newValidateCmd(app),
		newPostSetupCmd(app),
	)
	return cmd
}

// signalContext cancels on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadArtifacts reads hex-encoded creation bytecode, one <ArtifactID>.bin
// file per artifact, from the configured directory.
func loadArtifacts(dir string) (map[ledger.ArtifactID][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("artifacts: read %s: %w", dir, err)
	}
	out := make(map[ledger.ArtifactID][]byte)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".bin") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("artifacts: read %s: %w", name, err)
		}
		cleaned := strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
		code, err := hex.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("artifacts: decode %s: %w", name, err)
		}
		out[ledger.ArtifactID(strings.TrimSuffix(name, ".bin"))] = code
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("artifacts: no .bin files in %s", dir)
	}
	return out, nil
}
