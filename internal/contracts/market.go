package contracts

import (
	"fmt"
	"strings"
)

// Market identifies one of the two supported markets.
type Market string

const (
	MarketCN Market = "CN"
	MarketUS Market = "US"
)

// AllMarkets lists every supported market in scan order.
func AllMarkets() []Market {
	return []Market{MarketCN, MarketUS}
}

// ParseMarket converts a market tag (case-insensitive) into a Market.
func ParseMarket(s string) (Market, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CN":
		return MarketCN, nil
	case "US":
		return MarketUS, nil
	default:
		return "", fmt.Errorf("unknown market %q (want CN or US)", s)
	}
}

// String returns the market tag.
func (m Market) String() string {
	return string(m)
}
