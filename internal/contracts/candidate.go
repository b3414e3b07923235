package contracts

import "time"

// MomentumCandidate is one symbol that survived every ranking filter.
// Built in memory for a single ranking run.
type MomentumCandidate struct {
	Ticker        string
	StartDate     time.Time // date of the close 60 bars back
	EndDate       time.Time // date of the latest close
	PricePrev     float64   // close 60 bars back
	PriceCurrent  float64   // latest close
	ChangePercent float64
	AvgAmount     float64 // trailing 60-bar mean turnover
	TrendScore    float64 // R² × sign(slope) over the regression window
	Name          string  // optional enrichment, empty when unknown
}

// RankingReport is the bounded, ordered outcome of one ranking run.
type RankingReport struct {
	Market     Market
	Candidates []MomentumCandidate // sorted by ChangePercent descending
	StartDate  time.Time           // mode of candidate start dates
	EndDate    time.Time           // max of candidate end dates
}

// Empty reports whether the run produced no candidates.
func (r *RankingReport) Empty() bool {
	return len(r.Candidates) == 0
}

// Label returns the date-range label used in the report file name,
// "YYYYMMDD-YYYYMMDD".
func (r *RankingReport) Label() string {
	return r.StartDate.Format("20060102") + "-" + r.EndDate.Format("20060102")
}
