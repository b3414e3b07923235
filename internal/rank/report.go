package rank

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quantmill/tdxscan/internal/contracts"
)

// csvHeader is the fixed report column set.
var csvHeader = []string{
	"ticker", "price_60d_ago", "price_current",
	"change_percent", "avg_daily_volume", "rsrs_z",
}

// ReportFileName returns the market- and date-range-stamped file name,
// e.g. Top200_Momentum_CN_20250102-20250331.csv.
func ReportFileName(report *contracts.RankingReport) string {
	return fmt.Sprintf("Top200_Momentum_%s_%s.csv", report.Market, report.Label())
}

// WriteCSV writes the report to dir and returns the full path. An empty
// report writes nothing and returns "".
func WriteCSV(report *contracts.RankingReport, dir string) (string, error) {
	if report.Empty() {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	path := filepath.Join(dir, ReportFileName(report))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}

	for _, c := range report.Candidates {
		row := []string{
			c.Ticker,
			strconv.FormatFloat(round2(c.PricePrev), 'f', 2, 64),
			strconv.FormatFloat(round2(c.PriceCurrent), 'f', 2, 64),
			strconv.FormatFloat(round2(c.ChangePercent), 'f', 2, 64),
			strconv.FormatFloat(c.AvgAmount, 'f', 0, 64),
			strconv.FormatFloat(round2(c.TrendScore), 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}

	return path, nil
}
