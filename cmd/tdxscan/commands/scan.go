package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/internal/scanner"
	"github.com/quantmill/tdxscan/internal/universe"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [market]",
	Short: "Ingest TDX daily bars into the market store",
	Long: `Resolves the symbol universe under the TDX root, decodes every
daily bar file, and appends the bars to the market's store.

Re-running is safe: bars already stored are skipped.

Example:
  go run ./cmd/tdxscan scan cn
  go run ./cmd/tdxscan scan us
  go run ./cmd/tdxscan scan all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	markets, err := parseMarkets(arg)
	if err != nil {
		return err
	}

	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := universe.NewResolver(cfg.TDXRoot, log)
	scn := scanner.New(resolver, cfg.Scan, log)

	for _, market := range markets {
		fmt.Printf("=== Scanning %s market ===\n", market)

		summary, err := scn.Scan(ctx, market, cfg.StorePath(market.String()), func(p contracts.ScanProgress) {
			fmt.Printf("  [%3d%%] %s\n", p.Percent, p.Message)
		})
		if err != nil {
			return fmt.Errorf("scan %s: %w", market, err)
		}

		fmt.Printf("Done: %d symbols, %d bars inserted, %d duplicates skipped, %d failures\n",
			summary.Symbols, summary.Inserted, summary.Skipped, summary.Failures)
	}

	return nil
}
