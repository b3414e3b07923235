package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// writeDayFiles creates empty .day fixtures under root/<sub>/lday.
func writeDayFiles(t *testing.T, root, sub string, names ...string) {
	t.Helper()
	dir := filepath.Join(root, sub, "lday")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func tickers(entries []contracts.UniverseEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Ticker)
	}
	return out
}

func TestResolve_CN(t *testing.T) {
	root := t.TempDir()
	writeDayFiles(t, root, "sh",
		"sh600000.day", // Shanghai main board
		"sh688981.day", // STAR board
		"sh900900.day", // B-share, excluded
		"sh510050.day", // ETF, excluded
	)
	writeDayFiles(t, root, "sz",
		"sz000001.day", // main board
		"sz300750.day", // growth board
		"sz200011.day", // B-share, excluded
		"readme.txt",   // not a .day file
	)

	entries, err := NewResolver(root, logger.NewNop()).Resolve(contracts.MarketCN)
	require.NoError(t, err)

	got := tickers(entries)
	assert.ElementsMatch(t, []string{"600000.SH", "688981.SH", "000001.SZ", "300750.SZ"}, got)

	for _, e := range entries {
		assert.Equal(t, contracts.MarketCN, e.Market)
		assert.FileExists(t, e.FilePath)
	}
}

func TestResolve_CN_MixedPrefixFile(t *testing.T) {
	root := t.TempDir()
	// File in sz directory with an sh prefix must be ignored.
	writeDayFiles(t, root, "sz", "sh600000.day")

	entries, err := NewResolver(root, logger.NewNop()).Resolve(contracts.MarketCN)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_US(t *testing.T) {
	root := t.TempDir()
	writeDayFiles(t, root, "ds",
		"12#AAPL.day",    // accepted
		"74#NVDA.day",    // accepted
		"5#00700HK.day",  // contains digits and HK, excluded
		"9#BABAHK.day",   // HK substring, excluded
		"31#BRK5.day",    // digit in ticker, excluded
		"44#brka.day",    // lowercase, excluded
		"7#T.day",        // single letter, accepted
	)

	entries, err := NewResolver(root, logger.NewNop()).Resolve(contracts.MarketUS)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"AAPL", "NVDA", "T"}, tickers(entries))
}

func TestResolve_US_MissingDirectory(t *testing.T) {
	root := t.TempDir()

	_, err := NewResolver(root, logger.NewNop()).Resolve(contracts.MarketUS)

	var notFound *contracts.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestResolve_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")

	_, err := NewResolver(root, logger.NewNop()).Resolve(contracts.MarketCN)

	var notFound *contracts.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNewResolver_VipdocCorrection(t *testing.T) {
	base := t.TempDir()
	nested := filepath.Join(base, "vipdoc")
	writeDayFiles(t, nested, "sh", "sh600000.day")

	r := NewResolver(base, logger.NewNop())
	assert.Equal(t, nested, r.Root())

	entries, err := r.Resolve(contracts.MarketCN)
	require.NoError(t, err)
	assert.Equal(t, []string{"600000.SH"}, tickers(entries))
}

func TestNewResolver_NoCorrectionWhenAlreadyVipdoc(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "vipdoc")
	// Even with a nested vipdoc/vipdoc, a root already named vipdoc stays.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vipdoc"), 0o755))

	r := NewResolver(root, logger.NewNop())
	assert.Equal(t, root, r.Root())
}
