package contracts

import "time"

// DailyBar is one day's OHLCV record for one symbol.
// Identity is (Ticker, Date); a bar is immutable once stored.
type DailyBar struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume uint64
	Amount float64
}

// DateString renders the bar date in store format.
func (b *DailyBar) DateString() string {
	return b.Date.Format("2006-01-02")
}

// UniverseEntry is one validated symbol discovered during a scan pass.
// Recomputed on every scan; never persisted.
type UniverseEntry struct {
	Ticker   string // e.g. "600000.SH" or "AAPL"
	Market   Market
	FilePath string // originating .day file
}

// ScanProgress is a coarse progress signal emitted by the market scanner.
type ScanProgress struct {
	Percent int // 0..100
	Message string
}

// ProgressFunc consumes scan progress signals. Callbacks are invoked at a
// bounded cadence, not per symbol.
type ProgressFunc func(ScanProgress)
