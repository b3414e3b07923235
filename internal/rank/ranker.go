package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/internal/enrich"
	"github.com/quantmill/tdxscan/internal/store"
	"github.com/quantmill/tdxscan/pkg/config"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// Ranker loads a trailing bar window from a market store, filters
// candidates and produces the momentum ranking report.
type Ranker struct {
	cfg    config.RankConfig
	lookup enrich.Lookup
	logger *logger.Logger
}

// NewRanker creates a ranker. lookup may be nil; candidate names are then
// left empty.
func NewRanker(cfg config.RankConfig, lookup enrich.Lookup, log *logger.Logger) *Ranker {
	return &Ranker{
		cfg:    cfg,
		lookup: lookup,
		logger: log.WithField("module", "ranker"),
	}
}

// Run ranks one market. An absent or empty store yields an empty report,
// not an error.
func (r *Ranker) Run(ctx context.Context, market contracts.Market, storePath string) (*contracts.RankingReport, error) {
	report := &contracts.RankingReport{Market: market}

	st, err := store.OpenExisting(storePath, r.logger)
	if err != nil {
		var notFound *contracts.NotFoundError
		if errors.As(err, &notFound) {
			r.logger.WithField("store", storePath).Warn("No data: store file missing")
			return report, nil
		}
		return nil, err
	}
	defer st.Close()

	latest, ok, err := st.LatestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest date: %w", err)
	}
	if !ok {
		r.logger.WithField("store", storePath).Warn("No data: store is empty")
		return report, nil
	}

	from := latest.AddDate(0, 0, -r.cfg.WindowDays)
	bars, err := st.LoadWindow(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}

	grouped := groupSeries(bars)
	r.logger.WithFields(map[string]interface{}{
		"market":  market,
		"symbols": len(grouped),
		"from":    from.Format("2006-01-02"),
		"to":      latest.Format("2006-01-02"),
	}).Info("Window loaded")

	excl := make(exclusions)
	survivors := applyStages(grouped,
		minHistoryStage(r.cfg.MinBars, excl, r.logger),
		marketExclusionStage(market, toSet(r.cfg.USBlacklist), excl, r.logger),
		liquidityStage(r.cfg.ReturnBars, r.cfg.AmountMin(market.String()), excl, r.logger),
	)

	candidates := r.buildCandidates(market, survivors, excl)
	if len(candidates) == 0 {
		r.logger.WithField("market", market).Warn("No candidates passed the filters")
		return report, nil
	}

	r.scoreCandidates(candidates, survivorsByTicker(survivors, candidates))
	r.decorate(ctx, candidates)

	// Label dates come from the full surviving set, before truncation.
	report.EndDate = maxEndDate(candidates)
	report.StartDate = modeStartDate(candidates)

	// Stable: equal returns keep the store's (ticker-ordered) relative
	// order, so repeated runs produce identical reports.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ChangePercent > candidates[j].ChangePercent
	})
	if len(candidates) > r.cfg.TopN {
		candidates = candidates[:r.cfg.TopN]
	}
	report.Candidates = candidates

	r.logger.WithFields(map[string]interface{}{
		"market":     market,
		"candidates": len(candidates),
		"excluded":   len(excl),
		"top_ticker": candidates[0].Ticker,
		"top_change": round2(candidates[0].ChangePercent),
	}).Info("Ranking completed")

	return report, nil
}

// buildCandidates applies the return filter and US circuit breaker,
// materializing one candidate per surviving series.
func (r *Ranker) buildCandidates(market contracts.Market, survivors []series, excl exclusions) []contracts.MomentumCandidate {
	var out []contracts.MomentumCandidate

	for _, s := range survivors {
		curr := s.Bars[len(s.Bars)-1]
		prev := s.Bars[len(s.Bars)-1-r.cfg.ReturnBars]

		if prev.Close == 0 {
			excl.add(r.logger, s.Ticker, contracts.ExclZeroBase)
			continue
		}

		change := (curr.Close - prev.Close) / prev.Close * 100

		// Unadjusted reverse splits show up as absurd US returns.
		if market == contracts.MarketUS && change > r.cfg.USMaxChangePct {
			excl.add(r.logger, s.Ticker, contracts.ExclChangeBreaker)
			continue
		}

		out = append(out, contracts.MomentumCandidate{
			Ticker:        s.Ticker,
			StartDate:     prev.Date,
			EndDate:       curr.Date,
			PricePrev:     prev.Close,
			PriceCurrent:  curr.Close,
			ChangePercent: change,
			AvgAmount:     meanTailAmount(s.Bars, r.cfg.ReturnBars),
		})
	}

	return out
}

// scoreCandidates fills TrendScore via one batched regression over every
// candidate with a full window. Below a full window the score is defined
// as 0; today's history floor guarantees a full window, so the branch is
// a guard, not a scoring path.
func (r *Ranker) scoreCandidates(candidates []contracts.MomentumCandidate, closes map[string][]float64) {
	w := r.cfg.RegressionWindow

	var full []int // candidate indexes with >= w closes
	for i := range candidates {
		if len(closes[candidates[i].Ticker]) >= w {
			full = append(full, i)
		} else {
			candidates[i].TrendScore = 0
		}
	}
	if len(full) == 0 {
		return
	}

	data := make([]float64, 0, len(full)*w)
	for _, i := range full {
		data = append(data, tail(closes[candidates[i].Ticker], w)...)
	}

	scores := TrendScores(mat.NewDense(len(full), w, data), w)
	for k, i := range full {
		candidates[i].TrendScore = scores[k]
	}
}

// decorate best-effort fills candidate names from the lookup. Failures
// leave the name empty and never affect the ranking.
func (r *Ranker) decorate(ctx context.Context, candidates []contracts.MomentumCandidate) {
	if r.lookup == nil {
		return
	}
	for i := range candidates {
		info := r.lookup.Lookup(ctx, candidates[i].Ticker)
		if info.Known() {
			candidates[i].Name = info.Name
		}
	}
}

// survivorsByTicker indexes the closing series of each candidate.
func survivorsByTicker(survivors []series, candidates []contracts.MomentumCandidate) map[string][]float64 {
	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c.Ticker] = true
	}

	out := make(map[string][]float64, len(candidates))
	for _, s := range survivors {
		if !want[s.Ticker] {
			continue
		}
		closes := make([]float64, len(s.Bars))
		for i, b := range s.Bars {
			closes[i] = b.Close
		}
		out[s.Ticker] = closes
	}
	return out
}

// maxEndDate returns the latest end date among candidates.
func maxEndDate(candidates []contracts.MomentumCandidate) time.Time {
	var max time.Time
	for _, c := range candidates {
		if c.EndDate.After(max) {
			max = c.EndDate
		}
	}
	return max
}

// modeStartDate returns the most frequent start date, deliberately not the
// minimum: symbols resuming from trading halts would otherwise drag the
// label backwards.
func modeStartDate(candidates []contracts.MomentumCandidate) time.Time {
	counts := make(map[time.Time]int)
	var mode time.Time
	best := 0
	for _, c := range candidates {
		counts[c.StartDate]++
		if n := counts[c.StartDate]; n > best {
			best = n
			mode = c.StartDate
		}
	}
	return mode
}
