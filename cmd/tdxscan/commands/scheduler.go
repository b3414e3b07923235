package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/internal/enrich"
	"github.com/quantmill/tdxscan/internal/rank"
	"github.com/quantmill/tdxscan/internal/scanner"
	"github.com/quantmill/tdxscan/internal/scheduler"
	"github.com/quantmill/tdxscan/internal/universe"
	"github.com/quantmill/tdxscan/pkg/config"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scan and rank jobs on a schedule",
	Long: `Manages the unattended scan/rank pipeline.

Registered jobs:
  market_scan    - ingest TDX bars for every market
  momentum_rank  - rank the stores and write CSV reports

Example:
  go run ./cmd/tdxscan scheduler start
  go run ./cmd/tdxscan scheduler run market_scan`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a registered job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("Scheduler started")
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if err := sched.RunJob(args[0]); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Printf("Job %s finished\n", args[0])
	return nil
}

func initScheduler() (*scheduler.Scheduler, error) {
	cfg, log, err := initRuntime()
	if err != nil {
		return nil, err
	}

	resolver := universe.NewResolver(cfg.TDXRoot, log)
	scn := scanner.New(resolver, cfg.Scan, log)
	ranker := rank.NewRanker(cfg.Rank, enrich.NewClient(cfg.Enrich, log), log)

	sched := scheduler.New(log)

	scanJob := scheduler.NewFuncJob("market_scan", cfg.Schedule.ScanSpec, func(ctx context.Context) error {
		return scanAllMarkets(ctx, scn, cfg, log)
	})
	rankJob := scheduler.NewFuncJob("momentum_rank", cfg.Schedule.RankSpec, func(ctx context.Context) error {
		return rankAllMarkets(ctx, ranker, cfg, log)
	})

	if err := sched.AddJob(scanJob); err != nil {
		return nil, err
	}
	if err := sched.AddJob(rankJob); err != nil {
		return nil, err
	}

	return sched, nil
}

func scanAllMarkets(ctx context.Context, scn *scanner.Scanner, cfg *config.Config, log *logger.Logger) error {
	for _, market := range contracts.AllMarkets() {
		summary, err := scn.Scan(ctx, market, cfg.StorePath(market.String()), nil)
		if err != nil {
			return fmt.Errorf("scan %s: %w", market, err)
		}
		log.WithFields(map[string]interface{}{
			"market":   market,
			"inserted": summary.Inserted,
			"failures": summary.Failures,
		}).Info("Scheduled scan finished")
	}
	return nil
}

func rankAllMarkets(ctx context.Context, ranker *rank.Ranker, cfg *config.Config, log *logger.Logger) error {
	for _, market := range contracts.AllMarkets() {
		report, err := ranker.Run(ctx, market, cfg.StorePath(market.String()))
		if err != nil {
			return fmt.Errorf("rank %s: %w", market, err)
		}
		if report.Empty() {
			log.WithField("market", market).Warn("Scheduled rank produced no candidates")
			continue
		}
		path, err := rank.WriteCSV(report, cfg.ReportDir)
		if err != nil {
			return fmt.Errorf("write report for %s: %w", market, err)
		}
		log.WithFields(map[string]interface{}{
			"market": market,
			"report": path,
		}).Info("Scheduled rank finished")
	}
	return nil
}
