package cache

import (
	"context"

	"btc-trend-watch/internal/market"
)

// QuoteCache holds recently fetched spot quotes for a short TTL so repeated
// lookups inside the window do not trigger another outbound call. A hit must
// return the quote exactly as stored, raw payload included.
type QuoteCache interface {
	Get(ctx context.Context, currency string) (market.Quote, bool)
	Set(ctx context.Context, quote market.Quote)
	Close() error
}
