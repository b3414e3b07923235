package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, 50, cfg.Scan.ProgressStride)
	assert.Equal(t, 180, cfg.Rank.WindowDays)
	assert.Equal(t, 61, cfg.Rank.MinBars)
	assert.Equal(t, 60, cfg.Rank.ReturnBars)
	assert.Equal(t, 18, cfg.Rank.RegressionWindow)
	assert.Equal(t, 200, cfg.Rank.TopN)
	assert.Equal(t, float64(400), cfg.Rank.USMaxChangePct)
	assert.Contains(t, cfg.Rank.USBlacklist, "SQQQ")
	assert.Contains(t, cfg.Rank.USBlacklist, "TSLY")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "8")
	t.Setenv("RANK_US_AMOUNT_MIN", "50000000")
	t.Setenv("RANK_US_BLACKLIST_EXTRA", "foo, BARX")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scan.Workers)
	assert.Equal(t, float64(50_000_000), cfg.Rank.USAmountMin)
	assert.Contains(t, cfg.Rank.USBlacklist, "FOO")
	assert.Contains(t, cfg.Rank.USBlacklist, "BARX")
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("ENV", "prod")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidBounds(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero workers", "SCAN_WORKERS", "0"},
		{"min bars below return bars", "RANK_MIN_BARS", "60"},
		{"tiny regression window", "RANK_REGRESSION_WINDOW", "1"},
		{"zero top n", "RANK_TOP_N", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestStorePath(t *testing.T) {
	cfg := &Config{DataDir: "data"}

	assert.Equal(t, "data/market_data_cn.db", cfg.StorePath("CN"))
	assert.Equal(t, "data/market_data_us.db", cfg.StorePath("US"))
}

func TestAmountMin(t *testing.T) {
	rc := RankConfig{CNAmountMin: 2e8, USAmountMin: 2e7}

	assert.Equal(t, 2e8, rc.AmountMin("CN"))
	assert.Equal(t, 2e7, rc.AmountMin("US"))
	assert.Equal(t, 2e7, rc.AmountMin("us"))
}
