package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/quantmill/tdxscan/pkg/config"
	"github.com/quantmill/tdxscan/pkg/httputil"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// SymbolInfo is the result of a metadata lookup. Unknown is the explicit
// sentinel for a failed or missing lookup; callers must treat it as a
// valid, final answer, not an error.
type SymbolInfo struct {
	Ticker string
	Name   string
	Sector string
}

// Unknown returns the sentinel for ticker.
func Unknown(ticker string) SymbolInfo {
	return SymbolInfo{Ticker: ticker}
}

// Known reports whether the lookup resolved a name.
func (s SymbolInfo) Known() bool {
	return s.Name != ""
}

// Lookup is the read-only capability the core sees. Implementations are
// best-effort: Lookup never returns an error, only Unknown.
type Lookup interface {
	Lookup(ctx context.Context, ticker string) SymbolInfo
}

// Client fetches symbol names and sectors from a quote page, with a
// bounded retry count and an in-memory cache. Everything that can go
// wrong resolves to Unknown.
type Client struct {
	cfg    config.EnrichConfig
	http   *httputil.Client
	logger *logger.Logger

	mu    sync.RWMutex
	cache map[string]SymbolInfo
}

// NewClient creates an enrichment client. Returns nil when enrichment is
// disabled; a nil *Client is a valid Lookup that always answers Unknown.
func NewClient(cfg config.EnrichConfig, log *logger.Logger) *Client {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil
	}

	httpClient := httputil.NewWithTimeout(log, cfg.Timeout).
		WithRetry(cfg.MaxRetries, cfg.Timeout/4).
		WithRateLimit(cfg.RatePerSec)

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log.WithField("module", "enrich"),
		cache:  make(map[string]SymbolInfo),
	}
}

// Lookup resolves ticker metadata, caching both hits and misses for the
// lifetime of the client.
func (c *Client) Lookup(ctx context.Context, ticker string) SymbolInfo {
	if c == nil {
		return Unknown(ticker)
	}

	c.mu.RLock()
	if info, ok := c.cache[ticker]; ok {
		c.mu.RUnlock()
		return info
	}
	c.mu.RUnlock()

	info, err := c.fetch(ctx, ticker)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Debug("Lookup failed, answering Unknown")
		info = Unknown(ticker)
	}

	c.mu.Lock()
	c.cache[ticker] = info
	c.mu.Unlock()

	return info
}

// fetch scrapes the quote page for one ticker.
func (c *Client) fetch(ctx context.Context, ticker string) (SymbolInfo, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), ticker)

	resp, err := c.http.Get(ctx, url)
	if err != nil {
		return SymbolInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return SymbolInfo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return SymbolInfo{}, fmt.Errorf("parse quote page: %w", err)
	}

	info := SymbolInfo{
		Ticker: ticker,
		Name:   strings.TrimSpace(doc.Find(".symbol-name").First().Text()),
		Sector: strings.TrimSpace(doc.Find(".symbol-sector").First().Text()),
	}
	if info.Name == "" {
		return SymbolInfo{}, fmt.Errorf("quote page missing symbol name")
	}
	return info, nil
}
