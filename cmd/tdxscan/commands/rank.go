package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantmill/tdxscan/internal/enrich"
	"github.com/quantmill/tdxscan/internal/rank"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank [market]",
	Short: "Rank the stored bars by momentum and write a CSV report",
	Long: `Loads the trailing window from the market store, filters out
illiquid and excluded symbols, ranks the survivors by 60-session
return, and writes the top candidates to a CSV report.

Run scan first; rank reads only from the store.

Example:
  go run ./cmd/tdxscan rank cn
  go run ./cmd/tdxscan rank all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRank,
}

var rankTopPrint int

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().IntVar(&rankTopPrint, "show", 10, "number of top candidates to print")
}

func runRank(cmd *cobra.Command, args []string) error {
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

	ranker := rank.NewRanker(cfg.Rank, enrich.NewClient(cfg.Enrich, log), log)

	for _, market := range markets {
		fmt.Printf("=== Ranking %s market ===\n", market)

		report, err := ranker.Run(ctx, market, cfg.StorePath(market.String()))
		if err != nil {
			return fmt.Errorf("rank %s: %w", market, err)
		}

		if report.Empty() {
			fmt.Println("No candidates survived the filters; no report written")
			continue
		}

		path, err := rank.WriteCSV(report, cfg.ReportDir)
		if err != nil {
			return fmt.Errorf("write report for %s: %w", market, err)
		}

		fmt.Printf("Window %s, %d candidates -> %s\n", report.Label(), len(report.Candidates), path)
		for i, c := range report.Candidates {
			if i >= rankTopPrint {
				break
			}
			name := c.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("  %3d. %-12s %8.2f%%  trend %.2f  %s\n",
				i+1, c.Ticker, c.ChangePercent, c.TrendScore, name)
		}
	}

	return nil
}
