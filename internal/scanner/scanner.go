package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/internal/store"
	"github.com/quantmill/tdxscan/internal/tdx"
	"github.com/quantmill/tdxscan/internal/universe"
	"github.com/quantmill/tdxscan/pkg/config"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// Scanner drives Resolver → Decoder → Store for one market. Decoding runs
// on a bounded worker pool; all store writes happen on the collecting
// goroutine so the store file only ever sees a single writer.
type Scanner struct {
	resolver *universe.Resolver
	decoder  *tdx.Decoder
	cfg      config.ScanConfig
	logger   *logger.Logger
}

// Summary reports the outcome of one market scan.
type Summary struct {
	Market   contracts.Market
	Symbols  int // resolved universe size
	Inserted int // bars written
	Skipped  int // duplicate bars ignored
	Failures int // symbols that failed to decode or store
}

// decodeResult carries one symbol's decoded bars from a worker to the
// writer.
type decodeResult struct {
	entry contracts.UniverseEntry
	bars  []contracts.DailyBar
	err   error
}

// New creates a scanner over a resolved TDX root.
func New(resolver *universe.Resolver, cfg config.ScanConfig, log *logger.Logger) *Scanner {
	return &Scanner{
		resolver: resolver,
		decoder:  tdx.NewDecoder(),
		cfg:      cfg,
		logger:   log.WithField("module", "scanner"),
	}
}

// Scan ingests every resolved symbol of a market into the store at
// storePath. Per-symbol decode or store failures are logged and skipped;
// only failure to open the store itself is fatal. Progress is emitted
// every ProgressStride symbols plus a final 100% signal. Cancellation is
// honored at the per-symbol boundary.
func (s *Scanner) Scan(ctx context.Context, market contracts.Market, storePath string, progress contracts.ProgressFunc) (*Summary, error) {
	entries, err := s.resolver.Resolve(market)
	if err != nil {
		return nil, fmt.Errorf("resolve %s universe: %w", market, err)
	}

	summary := &Summary{Market: market, Symbols: len(entries)}

	st, err := store.Open(storePath, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	s.logger.WithFields(map[string]interface{}{
		"market":  market,
		"symbols": len(entries),
		"store":   storePath,
		"workers": s.cfg.Workers,
	}).Info("Starting market scan")

	if len(entries) == 0 {
		emit(progress, 100, fmt.Sprintf("%s scan complete, empty universe", market))
		return summary, nil
	}

	workCh := make(chan contracts.UniverseEntry)
	resultCh := make(chan decodeResult, s.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range workCh {
				bars, err := s.decoder.DecodeFile(entry.FilePath, entry.Market)
				resultCh <- decodeResult{entry: entry, bars: bars, err: err}
			}
		}()
	}

	// Feed symbols, stopping at the per-symbol boundary on cancellation.
	go func() {
		defer close(workCh)
		for _, entry := range entries {
			if ctx.Err() != nil {
				return
			}
			workCh <- entry
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	total := len(entries)
	processed := 0
	for res := range resultCh {
		processed++

		if res.err != nil {
			summary.Failures++
			s.logger.WithError(res.err).WithField("ticker", res.entry.Ticker).Warn("Skipping symbol, decode failed")
		} else if len(res.bars) > 0 {
			for i := range res.bars {
				res.bars[i].Ticker = res.entry.Ticker
			}
			inserted, skipped, err := st.AppendBars(ctx, res.bars)
			if err != nil {
				summary.Failures++
				s.logger.WithError(err).WithField("ticker", res.entry.Ticker).Warn("Skipping symbol, store append failed")
			} else {
				summary.Inserted += inserted
				summary.Skipped += skipped
			}
		}

		if processed%s.cfg.ProgressStride == 0 {
			pct := processed * 100 / total
			emit(progress, pct, fmt.Sprintf("ingesting %s (%d/%d)", res.entry.Ticker, processed, total))
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	emit(progress, 100, fmt.Sprintf("%s scan complete", market))

	s.logger.WithFields(map[string]interface{}{
		"market":   market,
		"symbols":  summary.Symbols,
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
		"failures": summary.Failures,
	}).Info("Market scan finished")

	return summary, nil
}

func emit(progress contracts.ProgressFunc, pct int, msg string) {
	if progress != nil {
		progress(contracts.ScanProgress{Percent: pct, Message: msg})
	}
}
