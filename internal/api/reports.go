package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// ReportHandler serves ranking reports previously written to disk.
type ReportHandler struct {
	reportDir string
	logger    *logger.Logger
}

func NewReportHandler(reportDir string, log *logger.Logger) *ReportHandler {
	return &ReportHandler{reportDir: reportDir, logger: log}
}

// rankingRow mirrors one CSV line of a momentum report.
type rankingRow struct {
	Ticker         string  `json:"ticker"`
	Price60DaysAgo float64 `json:"price_60d_ago"`
	PriceCurrent   float64 `json:"price_current"`
	ChangePercent  float64 `json:"change_percent"`
	AvgDailyVolume float64 `json:"avg_daily_volume"`
	TrendScore     float64 `json:"rsrs_z"`
}

// GetLatest returns the most recent ranking report for a market.
// GET /api/v1/rankings/{market}
func (h *ReportHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	market, err := contracts.ParseMarket(vars["market"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, ok := h.latestReportPath(market)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no ranking report for market %s", market))
		return
	}

	rows, err := readReportCSV(path)
	if err != nil {
		h.logger.WithError(err).WithField("path", path).Error("Failed to read ranking report")
		respondError(w, http.StatusInternalServerError, "failed to read ranking report")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"market":   market.String(),
		"report":   filepath.Base(path),
		"count":    len(rows),
		"rankings": rows,
	})
}

// latestReportPath picks the newest report file for the market. File names
// embed the window label, so lexical order matches chronological order.
func (h *ReportHandler) latestReportPath(market contracts.Market) (string, bool) {
	pattern := filepath.Join(h.reportDir, fmt.Sprintf("Top200_Momentum_%s_*.csv", market))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[len(matches)-1], true
}

func readReportCSV(path string) ([]rankingRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return []rankingRow{}, nil
	}

	rows := make([]rankingRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}
		rows = append(rows, rankingRow{
			Ticker:         rec[0],
			Price60DaysAgo: parseFloat(rec[1]),
			PriceCurrent:   parseFloat(rec[2]),
			ChangePercent:  parseFloat(rec[3]),
			AvgDailyVolume: parseFloat(rec[4]),
			TrendScore:     parseFloat(rec[5]),
		})
	}
	return rows, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
