package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		symbol string
		market string
		want   string
	}{
		{"tsla", "", "TSLA"},
		{"TSLA", "us", "TSLA"},
		{"reliance", "nse", "RELIANCE.NS"},
		{"RELIANCE.NS", "nse", "RELIANCE.NS"},
		{"tcs", "bse", "TCS.BO"},
		{"600519", "sse", "600519.SS"},
		{"0700", "sehk", "0700.HK"},
		{"7203", "jpx", "7203.T"},
		{" aapl ", "", "AAPL"},
		{"brk-b", "", "BRK-B"},
		// The suffixed form may exceed the bare-symbol length cap.
		{"hindunilvr", "nse", "HINDUNILVR.NS"},
		{"HINDUNILVR.NS", "nse", "HINDUNILVR.NS"},
		{"ULTRACEMCO", "bse", "ULTRACEMCO.BO"},
	}

	for _, tc := range cases {
		got, err := NormalizeSymbol(tc.symbol, tc.market)
		require.NoError(t, err, "symbol %q market %q", tc.symbol, tc.market)
		assert.Equal(t, tc.want, got)
	}
}

func TestNormalizeSymbolRejectsBadInput(t *testing.T) {
	for _, symbol := range []string{"", "   ", "not a symbol", "WAYTOOLONGSYMBOL", "-LEADING"} {
		_, err := NormalizeSymbol(symbol, "")
		require.Error(t, err, "symbol %q", symbol)
		assert.True(t, capability.IsKind(err, capability.KindInvalidInput))
	}

	_, err := NormalizeSymbol("WAYTOOLONGSYMBOL", "nse")
	require.Error(t, err)
	assert.True(t, capability.IsKind(err, capability.KindInvalidInput))

	_, err = NormalizeSymbol("TSLA", "moon")
	require.Error(t, err)
	assert.True(t, capability.IsKind(err, capability.KindInvalidInput))
}

func TestMarketsAreSortedAndComplete(t *testing.T) {
	markets := Markets()
	require.Len(t, markets, 6)

	for i := 1; i < len(markets); i++ {
		assert.Less(t, markets[i-1].Key, markets[i].Key)
	}

	m, ok := LookupMarket("NSE")
	require.True(t, ok)
	assert.Equal(t, ".NS", m.Suffix)
}

func TestFormatVolume(t *testing.T) {
	assert.Equal(t, "999", formatVolume(999))
	assert.Equal(t, "10.0K", formatVolume(10_000))
	assert.Equal(t, "10.00M", formatVolume(10_000_000))
	assert.Equal(t, "2.50B", formatVolume(2_500_000_000))
}
