package marketdata

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

// Market describes an exchange and the symbol suffix its tickers carry.
type Market struct {
	Key     string `yaml:"key"`
	Label   string `yaml:"label"`
	Suffix  string `yaml:"suffix"`
	Example string `yaml:"example"`
}

// Exchange suffixes follow Yahoo Finance conventions.
var defaultMarkets = map[string]Market{
	"us":   {Key: "us", Label: "USA (NASDAQ/NYSE)", Suffix: "", Example: "TSLA"},
	"nse":  {Key: "nse", Label: "India (NSE)", Suffix: ".NS", Example: "RELIANCE"},
	"bse":  {Key: "bse", Label: "India (BSE)", Suffix: ".BO", Example: "TCS"},
	"sse":  {Key: "sse", Label: "China (SSE)", Suffix: ".SS", Example: "600519"},
	"sehk": {Key: "sehk", Label: "Hong Kong (SEHK)", Suffix: ".HK", Example: "0700"},
	"jpx":  {Key: "jpx", Label: "Japan (JPX)", Suffix: ".T", Example: "7203"},
}

// Markets returns the known market definitions sorted by key.
func Markets() []Market {
	out := make([]Market, 0, len(defaultMarkets))
	for _, m := range defaultMarkets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// LookupMarket returns the market definition for a key.
func LookupMarket(key string) (Market, bool) {
	m, ok := defaultMarkets[strings.ToLower(key)]
	return m, ok
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,11}$`)

// NormalizeSymbol uppercases the symbol and appends the market suffix when
// missing. It rejects malformed symbols before any external call is made.
func NormalizeSymbol(symbol, marketKey string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", capability.InvalidInput("empty ticker symbol")
	}

	market := defaultMarkets["us"]
	if marketKey != "" {
		m, ok := LookupMarket(marketKey)
		if !ok {
			return "", capability.InvalidInput("unknown market %q", marketKey)
		}
		market = m
	}

	// Validate the bare symbol; the exchange suffix sits outside the cap.
	bare := symbol
	if market.Suffix != "" {
		bare = strings.TrimSuffix(symbol, market.Suffix)
	}
	if !symbolPattern.MatchString(bare) {
		return "", capability.InvalidInput("malformed ticker symbol %q", symbol)
	}
	if market.Suffix != "" {
		return bare + market.Suffix, nil
	}
	return symbol, nil
}

func formatVolume(v int64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(v)/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
