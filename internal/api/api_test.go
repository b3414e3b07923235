package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/tdxscan/pkg/logger"
)

func newTestRouter(t *testing.T, reportDir string) http.Handler {
	t.Helper()
	log := logger.NewNop()
	return NewRouter(NewReportHandler(reportDir, log), log)
}

func writeReport(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetLatest_ServesNewestReport(t *testing.T) {
	dir := t.TempDir()
	header := "ticker,price_60d_ago,price_current,change_percent,avg_daily_volume,rsrs_z\n"
	writeReport(t, dir, "Top200_Momentum_CN_20250101-20250331.csv",
		header+"000001.SZ,10.00,12.00,20.00,250000000,0.91\n")
	writeReport(t, dir, "Top200_Momentum_CN_20250401-20250630.csv",
		header+"600000.SH,20.00,30.00,50.00,300000000,0.95\n")

	router := newTestRouter(t, dir)

	req := httptest.NewRequest("GET", "/api/v1/rankings/cn", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Market   string       `json:"market"`
		Report   string       `json:"report"`
		Count    int          `json:"count"`
		Rankings []rankingRow `json:"rankings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "CN", body.Market)
	assert.Equal(t, "Top200_Momentum_CN_20250401-20250630.csv", body.Report)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "600000.SH", body.Rankings[0].Ticker)
	assert.InDelta(t, 50.0, body.Rankings[0].ChangePercent, 1e-9)
	assert.InDelta(t, 0.95, body.Rankings[0].TrendScore, 1e-9)
}

func TestGetLatest_UnknownMarket(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	req := httptest.NewRequest("GET", "/api/v1/rankings/jp", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLatest_NoReports(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	req := httptest.NewRequest("GET", "/api/v1/rankings/us", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
