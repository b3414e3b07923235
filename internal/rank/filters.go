package rank

import (
	"strings"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// maxUSTickerLen is the length above which a US ticker is flagged as a
// possible warrant or structured product. The flag is a secondary signal
// only; the configured blacklist is the binding filter.
const maxUSTickerLen = 4

// series is one symbol's trailing bars, ordered ascending by date.
type series struct {
	Ticker string
	Bars   []contracts.DailyBar
}

// groupSeries splits window bars (already ordered by ticker, date) into
// per-symbol series, preserving the store's ticker order so later stable
// sorting stays reproducible.
func groupSeries(bars []contracts.DailyBar) []series {
	var out []series
	for _, bar := range bars {
		if n := len(out); n > 0 && out[n-1].Ticker == bar.Ticker {
			out[n-1].Bars = append(out[n-1].Bars, bar)
			continue
		}
		out = append(out, series{Ticker: bar.Ticker, Bars: []contracts.DailyBar{bar}})
	}
	return out
}

// exclusions records the reason each dropped symbol left the pipeline.
// Exclusions are intentional, not errors.
type exclusions map[string]contracts.ExclusionReason

func (e exclusions) add(log *logger.Logger, ticker string, reason contracts.ExclusionReason) {
	e[ticker] = reason
	log.WithFields(map[string]interface{}{
		"ticker": ticker,
		"reason": string(reason),
	}).Debug("Symbol excluded")
}

// filterStage is one pure step of the candidate pipeline: it never
// mutates its input and returns a freshly filtered slice.
type filterStage func(in []series) []series

// applyStages runs each stage in order over a fresh slice.
func applyStages(in []series, stages ...filterStage) []series {
	out := in
	for _, stage := range stages {
		out = stage(out)
	}
	return out
}

// minHistoryStage drops symbols with fewer than minBars trailing bars.
func minHistoryStage(minBars int, excl exclusions, log *logger.Logger) filterStage {
	return func(in []series) []series {
		out := make([]series, 0, len(in))
		for _, s := range in {
			if len(s.Bars) < minBars {
				excl.add(log, s.Ticker, contracts.ExclInsufficientHistory)
				continue
			}
			out = append(out, s)
		}
		return out
	}
}

// marketExclusionStage applies the per-market symbol rules: the US
// blacklist (with the non-authoritative length heuristic logged only) and
// the CN code-prefix whitelist.
func marketExclusionStage(market contracts.Market, blacklist map[string]bool, excl exclusions, log *logger.Logger) filterStage {
	return func(in []series) []series {
		out := make([]series, 0, len(in))
		for _, s := range in {
			switch market {
			case contracts.MarketUS:
				if blacklist[s.Ticker] {
					excl.add(log, s.Ticker, contracts.ExclBlacklisted)
					continue
				}
				if len(s.Ticker) > maxUSTickerLen {
					log.WithField("ticker", s.Ticker).Debug("Long US ticker retained, check blacklist coverage")
				}
			case contracts.MarketCN:
				code, _, _ := strings.Cut(s.Ticker, ".")
				if !hasRankablePrefix(code) {
					excl.add(log, s.Ticker, contracts.ExclCodePrefix)
					continue
				}
			}
			out = append(out, s)
		}
		return out
	}
}

// liquidityStage drops symbols whose mean turnover over the trailing
// returnBars bars is below amountMin.
func liquidityStage(returnBars int, amountMin float64, excl exclusions, log *logger.Logger) filterStage {
	return func(in []series) []series {
		out := make([]series, 0, len(in))
		for _, s := range in {
			if meanTailAmount(s.Bars, returnBars) < amountMin {
				excl.add(log, s.Ticker, contracts.ExclIlliquid)
				continue
			}
			out = append(out, s)
		}
		return out
	}
}

// hasRankablePrefix mirrors the resolver's board whitelist as defense in
// depth: rows ingested before a whitelist change still get filtered here.
func hasRankablePrefix(code string) bool {
	for _, p := range []string{"00", "30", "60", "68"} {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// meanTailAmount averages Amount over the trailing n bars.
func meanTailAmount(bars []contracts.DailyBar, n int) float64 {
	if len(bars) == 0 {
		return 0
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, b := range bars[start:] {
		sum += b.Amount
	}
	return sum / float64(len(bars)-start)
}

// toSet uppercases and indexes the configured blacklist.
func toSet(tickers []string) map[string]bool {
	set := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		set[strings.ToUpper(t)] = true
	}
	return set
}
