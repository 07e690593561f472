package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/market"
)

func testQuote(currency string, raw string) market.Quote {
	return market.Quote{
		Symbol:   market.Symbol,
		Currency: currency,
		Price:    decimal.NewFromInt(64000),
		Source:   "coinmarketcap",
		Raw:      json.RawMessage(raw),
	}
}

func TestMemoryHitInsideTTL(t *testing.T) {
	m := NewMemory(10 * time.Second)
	defer m.Close()

	ctx := context.Background()
	stored := testQuote("USD", `{"data":{"BTC":{}}}`)
	m.Set(ctx, stored)

	got, ok := m.Get(ctx, "USD")
	if !ok {
		t.Fatal("expected cache hit inside TTL")
	}
	if !bytes.Equal(got.Raw, stored.Raw) {
		t.Fatalf("cached raw payload must be byte-identical: %s vs %s", got.Raw, stored.Raw)
	}
	if !got.Price.Equal(stored.Price) {
		t.Fatalf("cached price changed: %s vs %s", got.Price, stored.Price)
	}
}

func TestMemoryMissAfterTTL(t *testing.T) {
	m := NewMemory(10 * time.Second)
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }

	ctx := context.Background()
	m.Set(ctx, testQuote("USD", `{}`))

	m.now = func() time.Time { return now.Add(11 * time.Second) }
	if _, ok := m.Get(ctx, "USD"); ok {
		t.Fatal("entry older than TTL must not be served")
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m := NewMemory(10 * time.Second)
	defer m.Close()

	ctx := context.Background()
	m.Set(ctx, testQuote("USD", `{"c":"usd"}`))
	m.Set(ctx, testQuote("EUR", `{"c":"eur"}`))

	usd, ok := m.Get(ctx, "USD")
	if !ok || usd.Currency != "USD" {
		t.Fatalf("expected USD entry, got %+v ok=%v", usd, ok)
	}
	if _, ok := m.Get(ctx, "JPY"); ok {
		t.Fatal("unseen currency should miss")
	}
}

func TestMemoryEvictExpired(t *testing.T) {
	m := NewMemory(10 * time.Second)
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }
	m.Set(context.Background(), testQuote("USD", `{}`))

	m.now = func() time.Time { return now.Add(time.Minute) }
	m.evictExpired()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) != 0 {
		t.Fatalf("cleaner should drop stale entries, %d left", len(m.entries))
	}
}
