package service

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/cache"
	"btc-trend-watch/internal/config"
	"btc-trend-watch/internal/history"
	"btc-trend-watch/internal/market"
	"btc-trend-watch/internal/signal"
)

type stubFetcher struct {
	calls atomic.Int64
	price decimal.Decimal
	pct   decimal.Decimal
	err   error
}

func (f *stubFetcher) FetchQuote(ctx context.Context, currency string) (market.Quote, error) {
	cur, err := market.NormalizeCurrency(currency)
	if err != nil {
		return market.Quote{}, err
	}
	f.calls.Add(1)
	if f.err != nil {
		return market.Quote{}, f.err
	}
	raw, _ := json.Marshal(map[string]any{"call": f.calls.Load()})
	return market.Quote{
		Symbol:           market.Symbol,
		Currency:         cur,
		Price:            f.price,
		PercentChange24h: f.pct,
		LastUpdated:      time.Now().UTC(),
		Source:           "coinmarketcap",
		Endpoint:         "quotes/latest",
		Attribution:      "Data from CoinMarketCap",
		Raw:              raw,
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Cache:   config.CacheConfig{Backend: "memory", TTL: 10 * time.Second},
		History: config.HistoryConfig{Capacity: 100, BackfillEnabled: true},
		Signal: config.SignalConfig{
			ShortWindow:     5,
			LongWindow:      20,
			ThresholdBps:    25,
			LookbackMinutes: 60,
		},
		Scheduler: config.SchedulerConfig{
			Interval:   time.Minute,
			Currencies: []string{"USD"},
		},
		Alerting: config.AlertingConfig{Channels: []string{"telegram"}},
	}
}

func newTestService(t *testing.T, fetcher market.QuoteFetcher) (*Service, *cache.Memory) {
	t.Helper()
	cfg := testConfig()
	quotes := cache.NewMemory(cfg.Cache.TTL)
	t.Cleanup(func() { _ = quotes.Close() })
	book := history.NewBook(cfg.History.Capacity)
	svc := New(cfg, nil, fetcher, quotes, book, nil, nil, nil, zerolog.Nop())
	svc.SetRand(rand.New(rand.NewSource(7)))
	return svc, quotes
}

func TestPriceSecondLookupServedFromCache(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(64000)}
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	first, err := svc.Price(ctx, "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Fatal("first lookup cannot be a cache hit")
	}

	second, err := svc.Price(ctx, "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Fatal("second lookup inside TTL should be a cache hit")
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("expected one outbound call, got %d", fetcher.calls.Load())
	}
	if first.Currency != "USD" || second.Currency != "USD" {
		t.Fatalf("currency must echo the request: %s / %s", first.Currency, second.Currency)
	}
}

func TestCachedPayloadIsByteIdentical(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(64000)}
	svc, quotes := newTestService(t, fetcher)
	ctx := context.Background()

	if _, err := svc.Price(ctx, "USD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := quotes.Get(ctx, "USD")
	if !ok {
		t.Fatal("quote should be cached after a fetch")
	}
	if _, err := svc.Price(ctx, "USD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := quotes.Get(ctx, "USD")
	if !bytes.Equal(a.Raw, b.Raw) {
		t.Fatalf("cached payloads must be byte-identical: %s vs %s", a.Raw, b.Raw)
	}
}

func TestPriceInvalidCurrencyBeforeFetch(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(1)}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Price(context.Background(), "DOGE")
	if market.KindOf(err) != market.KindInvalidCurrency {
		t.Fatalf("expected invalid_currency, got %v", err)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatalf("validation must precede the network call, saw %d calls", fetcher.calls.Load())
	}
}

func TestTrendBackfillsAndClassifies(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(64000), pct: decimal.NewFromFloat(1.5)}
	svc, _ := newTestService(t, fetcher)

	report, err := svc.Trend(context.Background(), TrendRequest{Currency: "USD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	switch report.Signal {
	case signal.Bullish, signal.Bearish, signal.Neutral:
	default:
		t.Fatalf("unknown signal %q", report.Signal)
	}
	if report.SyntheticPoints == 0 {
		t.Fatal("a cold history should be padded with synthetic points")
	}
	if report.Note == "" {
		t.Fatal("backfilled results must carry a degradation note")
	}
	if report.PointsUsed < 20 {
		t.Fatalf("long window needs 20 points, used %d", report.PointsUsed)
	}
	if report.Currency != "USD" {
		t.Fatalf("currency must echo the request, got %s", report.Currency)
	}
	if report.Source != "coinmarketcap" || report.Attribution == "" {
		t.Fatal("provenance fields must be populated")
	}
}

func TestTrendInsufficientWithoutBackfill(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(64000)}
	svc, _ := newTestService(t, fetcher)

	off := false
	_, err := svc.Trend(context.Background(), TrendRequest{Currency: "USD", AllowBackfill: &off})
	if err == nil {
		t.Fatal("one real point cannot satisfy the long window")
	}
	if report := Describe(err); report.Error != "insufficient_data" {
		t.Fatalf("expected insufficient_data, got %+v", report)
	}
}

func TestTrendWindowValidation(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(64000)}
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	if _, err := svc.Trend(ctx, TrendRequest{Currency: "USD", ShortWindow: 20, LongWindow: 5}); err == nil {
		t.Fatal("short >= long must fail")
	}
	if _, err := svc.Trend(ctx, TrendRequest{Currency: "USD", ShortWindow: -1, LongWindow: 5}); err == nil {
		t.Fatal("negative window must fail")
	}
	if fetcher.calls.Load() != 0 {
		t.Fatal("window validation must precede the network call")
	}
}

func TestTrendPropagatesFetchErrors(t *testing.T) {
	fetcher := &stubFetcher{err: &market.Error{Kind: market.KindRateLimited, Status: 429}}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Trend(context.Background(), TrendRequest{Currency: "USD"})
	report := Describe(err)
	if report.Error != string(market.KindRateLimited) {
		t.Fatalf("expected rate_limited, got %+v", report)
	}
	if report.Status != 429 {
		t.Fatalf("status should survive the pipeline, got %d", report.Status)
	}
}

func TestDescribeHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&market.Error{Kind: market.KindInvalidCurrency}, 400},
		{&market.Error{Kind: market.KindMissingCredential}, 503},
		{&market.Error{Kind: market.KindUnauthorized, Status: 401}, 401},
		{&market.Error{Kind: market.KindForbidden, Status: 403}, 403},
		{&market.Error{Kind: market.KindRateLimited, Status: 429}, 429},
		{&market.Error{Kind: market.KindTransport}, 502},
		{&signal.InsufficientDataError{Need: 20, Have: 3}, 422},
		{&signal.WindowError{Reason: "bad"}, 400},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.status {
			t.Fatalf("%v should map to %d, got %d", tc.err, tc.status, got)
		}
	}
}
