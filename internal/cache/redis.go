package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"btc-trend-watch/internal/market"
)

// RedisOptions configure the Redis-backed quote cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis stores quotes in Redis with native TTL expiry. Useful when several
// instances should share one upstream rate budget.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis creates a Redis cache and verifies connectivity with a ping.
func NewRedis(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	return &Redis{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "quote_cache_redis").Logger(),
	}, nil
}

func quoteKey(currency string) string {
	return "quote:btc:" + currency
}

type redisEntry struct {
	Quote market.Quote    `json:"quote"`
	Raw   json.RawMessage `json:"raw"`
}

// Get returns the cached quote if present; Redis handles expiry.
func (r *Redis) Get(ctx context.Context, currency string) (market.Quote, bool) {
	payload, err := r.rdb.Get(ctx, quoteKey(currency)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn().Err(err).Str("currency", currency).Msg("redis get failed")
		}
		return market.Quote{}, false
	}

	var entry redisEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		r.logger.Warn().Err(err).Str("currency", currency).Msg("corrupt cache entry dropped")
		_ = r.rdb.Del(ctx, quoteKey(currency)).Err()
		return market.Quote{}, false
	}

	quote := entry.Quote
	quote.Raw = entry.Raw
	return quote, true
}

// Set stores a quote under its currency key with the configured TTL.
func (r *Redis) Set(ctx context.Context, quote market.Quote) {
	entry := redisEntry{Quote: quote, Raw: quote.Raw}
	payload, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn().Err(err).Str("currency", quote.Currency).Msg("marshal cache entry failed")
		return
	}
	if err := r.rdb.Set(ctx, quoteKey(quote.Currency), payload, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("currency", quote.Currency).Msg("redis set failed")
	}
}

// Close releases the Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

var _ QuoteCache = (*Redis)(nil)
