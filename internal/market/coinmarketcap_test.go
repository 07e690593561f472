package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func quoteBody(currency string, price, pct float64) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"BTC": map[string]any{
				"quote": map[string]any{
					currency: map[string]any{
						"price":              price,
						"percent_change_24h": pct,
						"last_updated":       time.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}
}

func TestFetchQuoteMissingCredential(t *testing.T) {
	f := NewCoinMarketCap(CoinMarketCapOptions{}, noopLogger())
	_, err := f.FetchQuote(context.Background(), "USD")
	if err == nil {
		t.Fatal("expected error without api key")
	}
	if KindOf(err) != KindMissingCredential {
		t.Fatalf("expected missing_credential, got %v", err)
	}
}

func TestFetchQuoteUnsupportedCurrencyBeforeNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	f := NewCoinMarketCap(CoinMarketCapOptions{BaseURL: srv.URL, APIKey: "key"}, noopLogger())
	_, err := f.FetchQuote(context.Background(), "XYZ")
	if err == nil {
		t.Fatal("expected validation error for unsupported currency")
	}
	if KindOf(err) != KindInvalidCurrency {
		t.Fatalf("expected invalid_currency, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("validation must happen before any outbound call, saw %d", calls.Load())
	}
}

func TestFetchQuoteStatusTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindTransport},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": map[string]any{"error_code": tc.status, "error_message": "nope"},
			})
		}))

		f := NewCoinMarketCap(CoinMarketCapOptions{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, noopLogger())
		_, err := f.FetchQuote(context.Background(), "USD")
		srv.Close()

		if err == nil {
			t.Fatalf("http %d should error", tc.status)
		}
		var me *Error
		if !errors.As(err, &me) {
			t.Fatalf("expected *market.Error, got %T", err)
		}
		if me.Kind != tc.kind {
			t.Fatalf("http %d: expected kind %s, got %s", tc.status, tc.kind, me.Kind)
		}
		if me.Status != tc.status {
			t.Fatalf("error should carry status %d, got %d", tc.status, me.Status)
		}
	}
}

func TestFetchQuoteNetworkError(t *testing.T) {
	f := NewCoinMarketCap(CoinMarketCapOptions{
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "key",
		Timeout: 200 * time.Millisecond,
	}, noopLogger())
	_, err := f.FetchQuote(context.Background(), "USD")
	if KindOf(err) != KindTransport {
		t.Fatalf("expected transport_failure, got %v", err)
	}
}

func TestFetchQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CMC_PRO_API_KEY") != "key" {
			t.Errorf("api key header missing")
		}
		if got := r.URL.Query().Get("convert"); got != "EUR" {
			t.Errorf("expected convert=EUR, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(quoteBody("EUR", 64250.5, -1.2))
	}))
	defer srv.Close()

	f := NewCoinMarketCap(CoinMarketCapOptions{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, noopLogger())
	quote, err := f.FetchQuote(context.Background(), "eur")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Currency != "EUR" {
		t.Fatalf("currency should echo the request, got %s", quote.Currency)
	}
	if quote.Price.LessThan(decimal.Zero) {
		t.Fatalf("price must be >= 0, got %s", quote.Price)
	}
	if quote.Source != "coinmarketcap" || quote.Endpoint != "quotes/latest" {
		t.Fatalf("provenance fields missing: %+v", quote)
	}
	if len(quote.Raw) == 0 {
		t.Fatal("raw payload should be retained")
	}
}

func TestNormalizeCurrency(t *testing.T) {
	for _, code := range SupportedCurrencies {
		got, err := NormalizeCurrency(code)
		if err != nil || got != code {
			t.Fatalf("supported code %s rejected: %v", code, err)
		}
	}
	if _, err := NormalizeCurrency("usd"); err != nil {
		t.Fatalf("lower-case codes should normalize: %v", err)
	}
	if _, err := NormalizeCurrency("BRL"); KindOf(err) != KindInvalidCurrency {
		t.Fatalf("expected invalid_currency for BRL, got %v", err)
	}
}
