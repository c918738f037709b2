package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

const quotePayload = `{
  "quoteResponse": {
    "result": [
      {
        "symbol": "AAPL",
        "regularMarketPrice": 150.0,
        "regularMarketPreviousClose": 147.0,
        "regularMarketChange": 3.0,
        "regularMarketChangePercent": 2.04,
        "regularMarketVolume": 10000000,
        "regularMarketTime": 1717000000,
        "currency": "USD"
      }
    ],
    "error": null
  }
}`

const emptyQuotePayload = `{"quoteResponse": {"result": [], "error": null}}`

const chartPayload = `{
  "chart": {
    "result": [
      {
        "timestamp": [1701000000, 1717000000],
        "indicators": {"quote": [{"close": [120.0, 150.0]}]}
      }
    ],
    "error": null
  }
}`

func quoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		switch r.URL.Path {
		case "/v7/finance/quote":
			if r.URL.Query().Get("symbols") == "ZZZZ" {
				fmt.Fprint(w, emptyQuotePayload)
				return
			}
			fmt.Fprint(w, quotePayload)
		case "/v8/finance/chart/AAPL":
			fmt.Fprint(w, chartPayload)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLookupParsesQuote(t *testing.T) {
	server := quoteServer(t)
	source := NewSource(WithBaseURL(server.URL))

	quote, err := source.Lookup(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 150.0, quote.Price)
	assert.Equal(t, 147.0, quote.PreviousClose)
	assert.Equal(t, 3.0, quote.Change)
	assert.Equal(t, 2.04, quote.ChangePercent)
	assert.Equal(t, int64(10000000), quote.Volume)
	assert.Equal(t, "USD", quote.Currency)
	assert.False(t, quote.Timestamp.IsZero())
}

func TestLookupUnknownSymbolIsUnavailable(t *testing.T) {
	server := quoteServer(t)
	source := NewSource(WithBaseURL(server.URL))

	_, err := source.Lookup(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Equal(t, capability.KindUnavailable, capability.KindOf(err))
	assert.Contains(t, err.Error(), "ZZZZ")
}

func TestLookupMalformedSymbolIsInvalidInput(t *testing.T) {
	source := NewSource(WithBaseURL("http://127.0.0.1:1"))

	// Rejected before any request is made.
	_, err := source.Lookup(context.Background(), "not a symbol!!")
	require.Error(t, err)
	assert.Equal(t, capability.KindInvalidInput, capability.KindOf(err))
}

func TestLookupServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	source := NewSource(WithBaseURL(server.URL))
	_, err := source.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, capability.IsTransient(err))
}

func TestHistoryParsesCandles(t *testing.T) {
	server := quoteServer(t)
	source := NewSource(WithBaseURL(server.URL))

	candles, err := source.History(context.Background(), "AAPL", "6mo")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 120.0, candles[0].Close)
	assert.Equal(t, 150.0, candles[1].Close)
	assert.True(t, candles[0].Date.Before(candles[1].Date))
}

func TestInvokeFormatsQuoteForPrompt(t *testing.T) {
	server := quoteServer(t)
	source := NewSource(WithBaseURL(server.URL))

	results, err := source.Invoke(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, results, 1)

	content := results[0].Content
	assert.Contains(t, content, "Symbol: AAPL")
	assert.Contains(t, content, "Price: 150.00 USD")
	assert.Contains(t, content, "Change: +3.00 (+2.04%)")
	assert.Contains(t, content, "Volume: 10.00M")
	assert.Contains(t, content, "6-month trend: +25.00%")
	assert.Equal(t, "AAPL", results[0].Reference)
	assert.Equal(t, "yahoo-finance", results[0].Metadata["source"])
}

func TestInvokeSurvivesMissingHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v7/finance/quote" {
			fmt.Fprint(w, quotePayload)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	source := NewSource(WithBaseURL(server.URL))
	results, err := source.Invoke(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.NotContains(t, results[0].Content, "6-month trend")
}
