// Package marketdata provides the market_data capability: live quote and
// price-history lookups backed by the Yahoo Finance public endpoints.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Quote is a point-in-time market snapshot for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one daily close in a price history.
type Candle struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Source provides quote and history lookups and implements
// capability.Capability for stage binding.
type Source struct {
	baseURL    string
	httpClient *http.Client
	market     string
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(url string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		s.httpClient = client
	}
}

// WithMarket sets the default market used to normalize bare symbols.
func WithMarket(key string) Option {
	return func(s *Source) {
		s.market = key
	}
}

// NewSource creates a market data source.
func NewSource(opts ...Option) *Source {
	s := &Source{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the capability identifier.
func (s *Source) Name() string {
	return "market_data"
}

// Available always returns true; the quote endpoints need no API key.
func (s *Source) Available() bool {
	return true
}

// quoteResponse mirrors the v7 quote endpoint payload.
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			RegularMarketTime          int64   `json:"regularMarketTime"`
			Currency                   string  `json:"currency"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Lookup fetches the current quote for a symbol. Symbols without history
// at the provider surface as CapabilityUnavailable, not fabricated data.
func (s *Source) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	normalized, err := NormalizeSymbol(symbol, s.market)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", s.baseURL, normalized)
	var payload quoteResponse
	if err := s.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	if apiErr := payload.QuoteResponse.Error; apiErr != nil {
		return nil, capability.Unavailable(s.Name(), fmt.Errorf("%s: %s", apiErr.Code, apiErr.Description))
	}
	if len(payload.QuoteResponse.Result) == 0 {
		return nil, capability.Unavailable(s.Name(), fmt.Errorf("no data for symbol %s", normalized))
	}

	r := payload.QuoteResponse.Result[0]
	currency := r.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Quote{
		Symbol:        r.Symbol,
		Price:         r.RegularMarketPrice,
		PreviousClose: r.RegularMarketPreviousClose,
		Change:        r.RegularMarketChange,
		ChangePercent: r.RegularMarketChangePercent,
		Volume:        r.RegularMarketVolume,
		Currency:      currency,
		Timestamp:     time.Unix(r.RegularMarketTime, 0).UTC(),
	}, nil
}

// chartResponse mirrors the v8 chart endpoint payload.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches daily closes for a symbol over a range such as "6mo".
func (s *Source) History(ctx context.Context, symbol, rng string) ([]Candle, error) {
	normalized, err := NormalizeSymbol(symbol, s.market)
	if err != nil {
		return nil, err
	}
	if rng == "" {
		rng = "6mo"
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d", s.baseURL, normalized, rng)
	var payload chartResponse
	if err := s.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	if apiErr := payload.Chart.Error; apiErr != nil {
		return nil, capability.Unavailable(s.Name(), fmt.Errorf("%s: %s", apiErr.Code, apiErr.Description))
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, capability.Unavailable(s.Name(), fmt.Errorf("no history for symbol %s", normalized))
	}

	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	candles := make([]Candle, 0, len(closes))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		candles = append(candles, Candle{
			Date:  time.Unix(ts, 0).UTC(),
			Close: closes[i],
		})
	}
	if len(candles) == 0 {
		return nil, capability.Unavailable(s.Name(), fmt.Errorf("empty history for symbol %s", normalized))
	}
	return candles, nil
}

// Invoke implements capability.Capability. The result content is a compact
// quote summary suitable for embedding in a stage prompt, with a trend line
// from recent history when available.
func (s *Source) Invoke(ctx context.Context, symbol string) ([]capability.Result, error) {
	quote, err := s.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf(
		"Symbol: %s\nPrice: %.2f %s\nChange: %+.2f (%+.2f%%)\nPrevious close: %.2f\nVolume: %s\nAs of: %s",
		quote.Symbol, quote.Price, quote.Currency, quote.Change, quote.ChangePercent,
		quote.PreviousClose, formatVolume(quote.Volume), quote.Timestamp.Format(time.RFC3339),
	)

	// History is supplementary context; its absence does not fail the call.
	if candles, histErr := s.History(ctx, symbol, "6mo"); histErr == nil && len(candles) > 1 {
		first, last := candles[0], candles[len(candles)-1]
		trend := (last.Close - first.Close) / first.Close * 100
		content += fmt.Sprintf(
			"\n6-month trend: %+.2f%% (%.2f on %s to %.2f on %s)",
			trend, first.Close, first.Date.Format("2006-01-02"),
			last.Close, last.Date.Format("2006-01-02"),
		)
	}

	return []capability.Result{{
		Content:   content,
		Reference: quote.Symbol,
		Score:     1.0,
		Timestamp: quote.Timestamp,
		Metadata: map[string]string{
			"source":   "yahoo-finance",
			"currency": quote.Currency,
		},
	}}, nil
}

func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return capability.Unavailable(s.Name(), fmt.Errorf("failed to create request: %w", err))
	}
	// Yahoo rejects requests without a browser-ish user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tickerflow)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &capability.Error{Kind: capability.KindUnavailable, Capability: s.Name(), Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return capability.Unavailable(s.Name(), fmt.Errorf("symbol not found"))
	}
	if resp.StatusCode != http.StatusOK {
		return &capability.Error{
			Kind:       capability.KindUnavailable,
			Capability: s.Name(),
			Status:     resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return capability.Unavailable(s.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
