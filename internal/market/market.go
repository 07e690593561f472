package market

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol is the only asset this service quotes.
const Symbol = "BTC"

// SupportedCurrencies is the closed set of quote currencies accepted by every
// entry point. Requests are validated against it before any outbound call.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "CAD", "AUD", "CHF", "JPY", "INR"}

// NormalizeCurrency upper-cases a currency code and validates it against the
// supported set.
func NormalizeCurrency(code string) (string, error) {
	cur := strings.ToUpper(strings.TrimSpace(code))
	for _, supported := range SupportedCurrencies {
		if cur == supported {
			return cur, nil
		}
	}
	return "", &Error{
		Kind:   KindInvalidCurrency,
		Detail: "unsupported currency " + strconv.Quote(code) + "; supported: " + strings.Join(SupportedCurrencies, ","),
	}
}

// Quote is the latest spot price for BTC in one quote currency.
type Quote struct {
	Symbol           string          `json:"symbol"`
	Currency         string          `json:"vs_currency"`
	Price            decimal.Decimal `json:"price"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	LastUpdated      time.Time       `json:"last_updated"`

	Source      string `json:"source"`
	Endpoint    string `json:"endpoint"`
	Attribution string `json:"attribution"`

	// Raw is the upstream response body the quote was parsed from. Cached
	// verbatim so repeated lookups inside the TTL are byte-identical.
	Raw json.RawMessage `json:"-"`
}

// QuoteFetcher retrieves the latest spot quote for a currency.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, currency string) (Quote, error)
}
