package history

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one recorded price point. Synthetic marks backfilled points so
// they are never mistaken for observed data.
type Sample struct {
	Time      time.Time
	Price     decimal.Decimal
	Synthetic bool
}

// Book keeps one capacity-bounded, time-ascending price series per currency.
// Series are created lazily on first append and live for the Book's lifetime.
type Book struct {
	mu       sync.Mutex
	series   map[string][]Sample
	capacity int
	now      func() time.Time
}

// DefaultCapacity bounds each per-currency series when no capacity is given.
const DefaultCapacity = 1000

// NewBook constructs an empty history book.
func NewBook(capacity int) *Book {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Book{
		series:   make(map[string][]Sample),
		capacity: capacity,
		now:      time.Now,
	}
}

// Capacity returns the per-currency sample bound.
func (b *Book) Capacity() int { return b.capacity }

// Append records a price sample for a currency, evicting the oldest entries
// once the series exceeds capacity. Timestamps are kept monotonically
// non-decreasing: a sample dated before the newest entry is clamped to it.
func (b *Book) Append(currency string, sample Sample) {
	if sample.Time.IsZero() {
		sample.Time = b.now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	series := b.series[currency]
	if n := len(series); n > 0 && sample.Time.Before(series[n-1].Time) {
		sample.Time = series[n-1].Time
	}
	series = append(series, sample)
	if over := len(series) - b.capacity; over > 0 {
		series = append(series[:0:0], series[over:]...)
	}
	b.series[currency] = series
}

// Len reports the number of samples held for a currency.
func (b *Book) Len(currency string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.series[currency])
}

// Recent returns a copy of the samples for a currency not older than the
// cutoff, in ascending time order. A zero cutoff returns the whole series.
func (b *Book) Recent(currency string, cutoff time.Time) []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	series := b.series[currency]
	i := 0
	if !cutoff.IsZero() {
		for ; i < len(series); i++ {
			if !series[i].Time.Before(cutoff) {
				break
			}
		}
	}
	return append([]Sample(nil), series[i:]...)
}

// SyntheticCount reports how many samples for a currency are backfilled.
func (b *Book) SyntheticCount(currency string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, sample := range b.series[currency] {
		if sample.Synthetic {
			count++
		}
	}
	return count
}
