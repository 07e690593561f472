package market

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	cmcQuotesPath  = "/v1/cryptocurrency/quotes/latest"
	cmcAttribution = "Data from CoinMarketCap"
)

// CoinMarketCapOptions parameterise the CoinMarketCap fetcher.
type CoinMarketCapOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// CoinMarketCap fetches BTC spot quotes from the CoinMarketCap Pro API.
type CoinMarketCap struct {
	opts    CoinMarketCapOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinMarketCap constructs a spot-price fetcher.
func NewCoinMarketCap(opts CoinMarketCapOptions, logger zerolog.Logger) *CoinMarketCap {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://pro-api.coinmarketcap.com"
	}

	return &CoinMarketCap{
		opts:    opts,
		logger:  logger.With().Str("component", "market_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchQuote retrieves the latest BTC quote in the given currency.
func (c *CoinMarketCap) FetchQuote(ctx context.Context, currency string) (Quote, error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return Quote{}, err
	}

	if strings.TrimSpace(c.opts.APIKey) == "" {
		return Quote{}, &Error{
			Kind:   KindMissingCredential,
			Detail: "set market.api_key or COINMARKETCAP_API_KEY in the environment",
		}
	}

	query := url.Values{}
	query.Set("symbol", Symbol)
	query.Set("convert", cur)
	endpoint := c.baseURL + cmcQuotesPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, &Error{Kind: KindTransport, Detail: err.Error(), cause: err}
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "btc-trend-watch/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, &Error{Kind: KindTransport, Detail: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, &Error{Kind: KindTransport, Detail: err.Error(), cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, parseHTTPError(resp.StatusCode, payload)
	}

	quote, err := parseQuote(payload, cur)
	if err != nil {
		return Quote{}, err
	}

	c.logger.Debug().
		Str("currency", cur).
		Str("price", quote.Price.String()).
		Msg("fetched spot quote")

	return quote, nil
}

type cmcResponse struct {
	Data map[string]struct {
		Quote map[string]struct {
			Price            float64 `json:"price"`
			PercentChange24h float64 `json:"percent_change_24h"`
			LastUpdated      string  `json:"last_updated"`
		} `json:"quote"`
	} `json:"data"`
}

type cmcStatus struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func parseQuote(payload []byte, currency string) (Quote, error) {
	var body cmcResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return Quote{}, &Error{Kind: KindBadResponse, Detail: err.Error(), cause: err}
	}

	asset, ok := body.Data[Symbol]
	if !ok {
		return Quote{}, &Error{Kind: KindBadResponse, Detail: "response missing " + Symbol + " data"}
	}
	entry, ok := asset.Quote[currency]
	if !ok {
		return Quote{}, &Error{Kind: KindBadResponse, Detail: "response missing quote for " + currency}
	}

	price := decimal.NewFromFloat(entry.Price)
	if price.IsNegative() {
		return Quote{}, &Error{Kind: KindBadResponse, Detail: "negative price " + price.String()}
	}

	lastUpdated := time.Now().UTC()
	if entry.LastUpdated != "" {
		if parsed, err := time.Parse(time.RFC3339, entry.LastUpdated); err == nil {
			lastUpdated = parsed
		}
	}

	return Quote{
		Symbol:           Symbol,
		Currency:         currency,
		Price:            price,
		PercentChange24h: decimal.NewFromFloat(entry.PercentChange24h),
		LastUpdated:      lastUpdated,
		Source:           "coinmarketcap",
		Endpoint:         "quotes/latest",
		Attribution:      cmcAttribution,
		Raw:              json.RawMessage(payload),
	}, nil
}

func parseHTTPError(status int, payload []byte) error {
	kind := kindForStatus(status)

	var apiErr cmcStatus
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Status.ErrorMessage != "" {
		return &Error{Kind: kind, Status: status, Detail: apiErr.Status.ErrorMessage}
	}
	if len(payload) > 0 {
		return &Error{Kind: kind, Status: status, Detail: truncate(strings.TrimSpace(string(payload)), 400)}
	}
	return &Error{Kind: kind, Status: status}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ QuoteFetcher = (*CoinMarketCap)(nil)
