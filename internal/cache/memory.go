package cache

import (
	"context"
	"sync"
	"time"

	"btc-trend-watch/internal/market"
)

type memoryEntry struct {
	quote   market.Quote
	fetched time.Time
}

// Memory is an in-process quote cache with TTL expiry and a background
// cleaner that drops stale entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	cleaner *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// NewMemory constructs an in-memory cache with the given TTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	m := &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	m.cleaner = time.NewTicker(ttl)
	go m.backgroundCleaner()
	return m
}

func (m *Memory) backgroundCleaner() {
	for {
		select {
		case <-m.cleaner.C:
			m.evictExpired()
		case <-m.done:
			m.cleaner.Stop()
			return
		}
	}
}

func (m *Memory) evictExpired() {
	cut := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if entry.fetched.Before(cut) {
			delete(m.entries, key)
		}
	}
}

// Get returns the cached quote for a currency if it is still fresh.
func (m *Memory) Get(_ context.Context, currency string) (market.Quote, bool) {
	m.mu.RLock()
	entry, ok := m.entries[currency]
	m.mu.RUnlock()
	if !ok {
		return market.Quote{}, false
	}
	if m.now().Sub(entry.fetched) > m.ttl {
		return market.Quote{}, false
	}
	return entry.quote, true
}

// Set stores a freshly fetched quote.
func (m *Memory) Set(_ context.Context, quote market.Quote) {
	m.mu.Lock()
	m.entries[quote.Currency] = memoryEntry{quote: quote, fetched: m.now()}
	m.mu.Unlock()
}

// Close stops the cleaner goroutine.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

var _ QuoteCache = (*Memory)(nil)
