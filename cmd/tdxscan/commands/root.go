package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/pkg/config"
	"github.com/quantmill/tdxscan/pkg/logger"
)

var (
	// Global flags
	tdxRoot string
	dataDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tdxscan",
	Short: "TDX daily-bar ingestion and momentum ranking",
	Long: `tdxscan reads daily OHLCV bars straight from a local TDX terminal
installation, stores them per market, and ranks the freshest window
by medium-term momentum.

Usage:
  go run ./cmd/tdxscan [command]

Examples:
  go run ./cmd/tdxscan scan cn
  go run ./cmd/tdxscan rank all
  go run ./cmd/tdxscan api
  go run ./cmd/tdxscan scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&tdxRoot, "tdx-root", "", "TDX vipdoc root (overrides TDX_ROOT)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "store directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initRuntime loads configuration and builds the logger, applying the
// global flag overrides.
func initRuntime() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if tdxRoot != "" {
		cfg.TDXRoot = tdxRoot
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, logger.New(cfg), nil
}

// parseMarkets expands a market argument into the markets to process.
// An empty argument or "all" selects every market.
func parseMarkets(arg string) ([]contracts.Market, error) {
	if arg == "" || strings.EqualFold(arg, "all") {
		return contracts.AllMarkets(), nil
	}
	m, err := contracts.ParseMarket(arg)
	if err != nil {
		return nil, err
	}
	return []contracts.Market{m}, nil
}
