package history

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAppendEvictsOldestAtCapacity(t *testing.T) {
	b := NewBook(5)
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		b.Append("USD", Sample{
			Time:  start.Add(time.Duration(i) * time.Minute),
			Price: decimal.NewFromInt(int64(100 + i)),
		})
	}

	if got := b.Len("USD"); got != 5 {
		t.Fatalf("length must equal capacity, got %d", got)
	}

	samples := b.Recent("USD", time.Time{})
	if !samples[0].Price.Equal(decimal.NewFromInt(103)) {
		t.Fatalf("only the oldest entries should be dropped, first is %s", samples[0].Price)
	}
	if !samples[len(samples)-1].Price.Equal(decimal.NewFromInt(107)) {
		t.Fatalf("newest entry lost: %s", samples[len(samples)-1].Price)
	}
}

func TestAppendClampsOutOfOrderTimestamps(t *testing.T) {
	b := NewBook(10)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	b.Append("USD", Sample{Time: now, Price: decimal.NewFromInt(100)})
	b.Append("USD", Sample{Time: now.Add(-time.Hour), Price: decimal.NewFromInt(101)})

	samples := b.Recent("USD", time.Time{})
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			t.Fatalf("timestamps must be non-decreasing: %v before %v", samples[i].Time, samples[i-1].Time)
		}
	}
}

func TestSeriesPerCurrencyAreIndependent(t *testing.T) {
	b := NewBook(10)
	b.Append("USD", Sample{Price: decimal.NewFromInt(1)})
	b.Append("EUR", Sample{Price: decimal.NewFromInt(2)})

	if b.Len("USD") != 1 || b.Len("EUR") != 1 || b.Len("JPY") != 0 {
		t.Fatalf("series leaked across currencies: usd=%d eur=%d jpy=%d",
			b.Len("USD"), b.Len("EUR"), b.Len("JPY"))
	}
}

func TestBackfillFillsToTarget(t *testing.T) {
	b := NewBook(100)
	anchor := decimal.NewFromInt(64000)
	b.Append("USD", Sample{Price: anchor})

	added := b.Backfill("USD", 20, BackfillOptions{
		Anchor: anchor,
		Rand:   rand.New(rand.NewSource(1)),
	})
	if added != 19 {
		t.Fatalf("expected 19 synthetic points, got %d", added)
	}
	if got := b.Len("USD"); got != 20 {
		t.Fatalf("series should hold 20 points, got %d", got)
	}
	if got := b.SyntheticCount("USD"); got != 19 {
		t.Fatalf("synthetic points must be flagged, counted %d", got)
	}

	samples := b.Recent("USD", time.Time{})
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			t.Fatal("backfill broke chronological order")
		}
	}
	if samples[len(samples)-1].Synthetic {
		t.Fatal("the real sample must remain the newest point")
	}
	for _, s := range samples {
		if s.Price.Sign() <= 0 {
			t.Fatalf("synthetic prices must stay positive, got %s", s.Price)
		}
	}
}

func TestBackfillDeterministicWithSeed(t *testing.T) {
	run := func() []Sample {
		b := NewBook(100)
		b.Backfill("USD", 10, BackfillOptions{
			Anchor: decimal.NewFromInt(50000),
			Rand:   rand.New(rand.NewSource(42)),
		})
		return b.Recent("USD", time.Time{})
	}

	first, second := run(), run()
	if fmt.Sprint(firstPrices(first)) != fmt.Sprint(firstPrices(second)) {
		t.Fatal("seeded backfill should be reproducible")
	}
}

func firstPrices(samples []Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Price.StringFixed(6)
	}
	return out
}

func TestBackfillNoopWhenEnough(t *testing.T) {
	b := NewBook(100)
	for i := 0; i < 10; i++ {
		b.Append("USD", Sample{Price: decimal.NewFromInt(int64(100 + i))})
	}
	if added := b.Backfill("USD", 10, BackfillOptions{Anchor: decimal.NewFromInt(100)}); added != 0 {
		t.Fatalf("full series needs no backfill, added %d", added)
	}
}

func TestBackfillTargetCappedAtCapacity(t *testing.T) {
	b := NewBook(8)
	added := b.Backfill("USD", 50, BackfillOptions{Anchor: decimal.NewFromInt(100)})
	if added != 8 {
		t.Fatalf("target above capacity should cap at capacity, added %d", added)
	}
	if got := b.Len("USD"); got != 8 {
		t.Fatalf("length exceeds capacity: %d", got)
	}
}
