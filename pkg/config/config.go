package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Components receive it (or a sub-struct) by value through their
// constructors; nothing in the pipeline reads the environment directly.
type Config struct {
	Env string // development, staging, production

	// Data locations
	TDXRoot   string // TDX vipdoc root directory
	DataDir   string // directory holding the per-market store files
	ReportDir string // directory the ranking reports are written to

	Scan   ScanConfig
	Rank   RankConfig
	Enrich EnrichConfig

	// API
	Port string

	// Scheduler
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// ScanConfig holds market scan settings.
type ScanConfig struct {
	Workers        int // concurrent decoders, bounded by a semaphore
	ProgressStride int // emit progress every N symbols
}

// RankConfig holds momentum ranking settings.
type RankConfig struct {
	WindowDays       int     // trailing calendar window loaded from the store
	MinBars          int     // minimum trailing bars for candidacy
	ReturnBars       int     // lookback for the return and liquidity filters
	RegressionWindow int     // trailing closes used by the trend score
	TopN             int     // report size cap
	CNAmountMin      float64 // CN 60-day mean turnover floor
	USAmountMin      float64 // US 60-day mean turnover floor
	USMaxChangePct   float64 // US reverse-split circuit breaker
	USBlacklist      []string
}

// EnrichConfig holds symbol metadata lookup settings.
type EnrichConfig struct {
	Enabled    bool
	BaseURL    string
	MaxRetries int
	RatePerSec float64
	Timeout    time.Duration
}

// ScheduleConfig holds cron specs for unattended runs.
type ScheduleConfig struct {
	Enabled  bool
	ScanSpec string
	RankSpec string
}

// defaultUSBlacklist covers leveraged/inverse ETFs and option-overlay
// products that dominate a raw 60-day return ranking.
var defaultUSBlacklist = []string{
	// Leveraged / inverse
	"SQQQ", "TQQQ", "SOXL", "SOXS", "SPXU", "SPXS", "SDS", "SSO", "UPRO",
	"QID", "QLD", "TNA", "TZA", "UVXY", "VIXY", "SVXY", "LABU", "LABD",
	"YANG", "YINN", "FNGU", "FNGD", "WEBL", "WEBS", "KOLD", "BOIL",
	// Option-overlay yield products, frequent re-splitters
	"TSLY", "NVDY", "AMDY", "MSTY", "CONY", "APLY", "GOOY", "MSFY", "AMZY",
	"FBY", "OARK", "XOMO", "JPMO", "DISO", "NFLY", "SQY", "PYPY", "AIYY",
	"YMAX", "YMAG", "ULTY", "SVOL", "TLTW", "HYGW", "LQDW", "BITX",
}

// Load reads configuration from environment variables, consulting a .env
// file when one is present next to the working directory or binary.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		TDXRoot:   getEnv("TDX_ROOT", ""),
		DataDir:   getEnv("DATA_DIR", "data"),
		ReportDir: getEnv("REPORT_DIR", "."),

		Scan: ScanConfig{
			Workers:        getEnvAsInt("SCAN_WORKERS", 4),
			ProgressStride: getEnvAsInt("SCAN_PROGRESS_STRIDE", 50),
		},

		Rank: RankConfig{
			WindowDays:       getEnvAsInt("RANK_WINDOW_DAYS", 180),
			MinBars:          getEnvAsInt("RANK_MIN_BARS", 61),
			ReturnBars:       getEnvAsInt("RANK_RETURN_BARS", 60),
			RegressionWindow: getEnvAsInt("RANK_REGRESSION_WINDOW", 18),
			TopN:             getEnvAsInt("RANK_TOP_N", 200),
			CNAmountMin:      getEnvAsFloat("RANK_CN_AMOUNT_MIN", 200_000_000),
			USAmountMin:      getEnvAsFloat("RANK_US_AMOUNT_MIN", 20_000_000),
			USMaxChangePct:   getEnvAsFloat("RANK_US_MAX_CHANGE_PCT", 400),
			USBlacklist:      loadBlacklist(),
		},

		Enrich: EnrichConfig{
			Enabled:    getEnvAsBool("ENRICH_ENABLED", false),
			BaseURL:    getEnv("ENRICH_BASE_URL", ""),
			MaxRetries: getEnvAsInt("ENRICH_MAX_RETRIES", 2),
			RatePerSec: getEnvAsFloat("ENRICH_RATE_PER_SEC", 2),
			Timeout:    getEnvAsDuration("ENRICH_TIMEOUT", "10s"),
		},

		Port: getEnv("PORT", "8087"),

		Schedule: ScheduleConfig{
			Enabled:  getEnvAsBool("SCHEDULE_ENABLED", false),
			ScanSpec: getEnv("SCHEDULE_SCAN_SPEC", "0 0 18 * * 1-5"),
			RankSpec: getEnv("SCHEDULE_RANK_SPEC", "0 30 18 * * 1-5"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// StorePath returns the store file for a market tag ("CN" or "US").
func (c *Config) StorePath(market string) string {
	name := fmt.Sprintf("market_data_%s.db", strings.ToLower(market))
	return filepath.Join(c.DataDir, name)
}

// AmountMin returns the liquidity floor for a market tag.
func (c *RankConfig) AmountMin(market string) float64 {
	if strings.EqualFold(market, "US") {
		return c.USAmountMin
	}
	return c.CNAmountMin
}

// validate checks required values and bounds.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be >= 1")
	}
	if c.Scan.ProgressStride < 1 {
		return fmt.Errorf("SCAN_PROGRESS_STRIDE must be >= 1")
	}

	if c.Rank.MinBars <= c.Rank.ReturnBars {
		return fmt.Errorf("RANK_MIN_BARS must exceed RANK_RETURN_BARS")
	}
	if c.Rank.RegressionWindow < 2 {
		return fmt.Errorf("RANK_REGRESSION_WINDOW must be >= 2")
	}
	if c.Rank.TopN < 1 {
		return fmt.Errorf("RANK_TOP_N must be >= 1")
	}

	return nil
}

// loadBlacklist merges the built-in US blacklist with RANK_US_BLACKLIST_EXTRA
// (comma-separated tickers).
func loadBlacklist() []string {
	out := make([]string, len(defaultUSBlacklist))
	copy(out, defaultUSBlacklist)

	extra := os.Getenv("RANK_US_BLACKLIST_EXTRA")
	if extra == "" {
		return out
	}
	for _, t := range strings.Split(extra, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// loadEnvFile tries to load .env from a few likely locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
