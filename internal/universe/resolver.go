package universe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/pkg/logger"
)

// vipdocDir is the directory name TDX keeps its data under. When the
// configured root points one level above it, the resolver rewrites the
// root transparently.
const vipdocDir = "vipdoc"

var (
	cnFilePattern = regexp.MustCompile(`^(sh|sz)(\d{6})\.day$`)
	usTickPattern = regexp.MustCompile(`^[A-Z]+$`)
)

// cnCodePrefixes whitelists main board (00), growth board (30), Shanghai
// main board (60) and STAR board (68). B-shares, indexes and funds fall
// outside it.
var cnCodePrefixes = []string{"00", "30", "60", "68"}

// Resolver discovers and validates ticker symbols under a TDX root.
type Resolver struct {
	root   string
	logger *logger.Logger
}

// NewResolver creates a resolver for root, applying the vipdoc path
// correction when needed.
func NewResolver(root string, log *logger.Logger) *Resolver {
	if filepath.Base(root) != vipdocDir {
		nested := filepath.Join(root, vipdocDir)
		if info, err := os.Stat(nested); err == nil && info.IsDir() {
			log.WithFields(map[string]interface{}{
				"from": root,
				"to":   nested,
			}).Info("Corrected TDX root to nested vipdoc directory")
			root = nested
		}
	}

	return &Resolver{root: root, logger: log}
}

// Root returns the (possibly corrected) root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve enumerates the universe for a market.
func (r *Resolver) Resolve(market contracts.Market) ([]contracts.UniverseEntry, error) {
	if _, err := os.Stat(r.root); err != nil {
		return nil, &contracts.NotFoundError{Path: r.root}
	}

	switch market {
	case contracts.MarketCN:
		return r.resolveCN()
	case contracts.MarketUS:
		return r.resolveUS()
	default:
		return nil, fmt.Errorf("unknown market %q", market)
	}
}

// resolveCN walks sh/lday and sz/lday. A valid file is
// <market><6-digit-code>.day with a whitelisted code prefix; the ticker is
// <code>.<MARKET>.
func (r *Resolver) resolveCN() ([]contracts.UniverseEntry, error) {
	var entries []contracts.UniverseEntry
	excluded := 0

	for _, sub := range []string{"sh", "sz"} {
		ldayDir := filepath.Join(r.root, sub, "lday")
		files, err := os.ReadDir(ldayDir)
		if err != nil {
			// One missing exchange directory is fine; both missing
			// still yields an empty universe, which the scanner logs.
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			m := cnFilePattern.FindStringSubmatch(f.Name())
			if m == nil || m[1] != sub {
				continue
			}

			code := m[2]
			if !hasCNPrefix(code) {
				excluded++
				continue
			}

			entries = append(entries, contracts.UniverseEntry{
				Ticker:   fmt.Sprintf("%s.%s", code, strings.ToUpper(sub)),
				Market:   contracts.MarketCN,
				FilePath: filepath.Join(ldayDir, f.Name()),
			})
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"market":   contracts.MarketCN,
		"resolved": len(entries),
		"excluded": excluded,
	}).Info("Universe resolved")

	return entries, nil
}

// resolveUS walks ds/lday. File names are <numeric-id>#<TICKER>.day; the
// ticker must be uppercase letters only, and anything containing "HK" is a
// misfiled foreign listing.
func (r *Resolver) resolveUS() ([]contracts.UniverseEntry, error) {
	ldayDir := filepath.Join(r.root, "ds", "lday")
	files, err := os.ReadDir(ldayDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &contracts.NotFoundError{Path: ldayDir}
		}
		return nil, fmt.Errorf("read %s: %w", ldayDir, err)
	}

	var entries []contracts.UniverseEntry
	excluded := 0

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".day") {
			continue
		}

		raw := strings.TrimSuffix(f.Name(), ".day")
		if idx := strings.LastIndex(raw, "#"); idx >= 0 {
			raw = raw[idx+1:]
		}

		if !usTickPattern.MatchString(raw) || strings.Contains(raw, "HK") {
			excluded++
			continue
		}

		entries = append(entries, contracts.UniverseEntry{
			Ticker:   raw,
			Market:   contracts.MarketUS,
			FilePath: filepath.Join(ldayDir, f.Name()),
		})
	}

	r.logger.WithFields(map[string]interface{}{
		"market":   contracts.MarketUS,
		"resolved": len(entries),
		"excluded": excluded,
	}).Info("Universe resolved")

	return entries, nil
}

// hasCNPrefix reports whether a 6-digit code starts with a whitelisted
// board prefix.
func hasCNPrefix(code string) bool {
	for _, p := range cnCodePrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}
