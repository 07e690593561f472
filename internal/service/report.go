package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/market"
	"btc-trend-watch/internal/signal"
)

// PriceReport is the structured result of a spot-price lookup.
type PriceReport struct {
	Symbol           string          `json:"symbol"`
	Currency         string          `json:"vs_currency"`
	Price            decimal.Decimal `json:"price"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	LastUpdated      time.Time       `json:"last_updated"`
	Cached           bool            `json:"cached"`
	Source           string          `json:"source"`
	Endpoint         string          `json:"endpoint"`
	Attribution      string          `json:"attribution"`
}

// TrendReport is the structured result of a trend evaluation.
type TrendReport struct {
	Symbol          string          `json:"symbol"`
	Currency        string          `json:"vs_currency"`
	Price           decimal.Decimal `json:"price"`
	LastUpdated     time.Time       `json:"last_updated"`
	SMAShort        decimal.Decimal `json:"sma_short"`
	SMALong         decimal.Decimal `json:"sma_long"`
	Signal          signal.Label    `json:"signal"`
	RatioBps        decimal.Decimal `json:"ratio_bps"`
	ThresholdBps    decimal.Decimal `json:"threshold_bps"`
	PointsUsed      int             `json:"points_used"`
	SyntheticPoints int             `json:"synthetic_points"`
	Note            string          `json:"note,omitempty"`
	Rationale       string          `json:"rationale"`
	Source          string          `json:"source"`
	Endpoint        string          `json:"endpoint"`
	Attribution     string          `json:"attribution"`
}

// ErrorReport is the structured error result returned in place of a report.
// Error is a stable kind string callers can branch on.
type ErrorReport struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status,omitempty"`
}

const kindInsufficientData = "insufficient_data"

// Describe maps any pipeline error onto the stable error taxonomy.
func Describe(err error) ErrorReport {
	var me *market.Error
	if errors.As(err, &me) {
		return ErrorReport{Error: string(me.Kind), Details: me.Detail, Status: me.Status}
	}

	var insufficient *signal.InsufficientDataError
	if errors.As(err, &insufficient) {
		return ErrorReport{Error: kindInsufficientData, Details: insufficient.Error()}
	}

	var window *signal.WindowError
	if errors.As(err, &window) {
		return ErrorReport{Error: "invalid_window", Details: window.Reason}
	}

	return ErrorReport{Error: "internal_error", Details: err.Error()}
}

// HTTPStatus picks the response status for an error kind.
func HTTPStatus(err error) int {
	report := Describe(err)
	switch report.Error {
	case string(market.KindInvalidCurrency), "invalid_window":
		return http.StatusBadRequest
	case string(market.KindMissingCredential):
		return http.StatusServiceUnavailable
	case string(market.KindUnauthorized):
		return http.StatusUnauthorized
	case string(market.KindForbidden):
		return http.StatusForbidden
	case string(market.KindRateLimited):
		return http.StatusTooManyRequests
	case string(market.KindTransport), string(market.KindBadResponse):
		return http.StatusBadGateway
	case kindInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
