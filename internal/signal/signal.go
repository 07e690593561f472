// Package signal derives a trend classification from a price series using
// short and long simple moving averages.
package signal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Label is the trend classification.
type Label string

const (
	Bullish Label = "bullish"
	Bearish Label = "bearish"
	Neutral Label = "neutral"
)

// InsufficientDataError reports a window larger than the available series.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("signal: need at least %d points, have %d", e.Need, e.Have)
}

// WindowError reports invalid window parameters.
type WindowError struct {
	Reason string
}

func (e *WindowError) Error() string {
	return "signal: " + e.Reason
}

// Summary is the outcome of one trend evaluation. RatioBps is the relative
// spread between the short and long SMA in basis points, rounded to 2dp.
type Summary struct {
	Short        decimal.Decimal
	Long         decimal.Decimal
	RatioBps     decimal.Decimal
	ThresholdBps decimal.Decimal
	Label        Label
	Rationale    string
	PointsUsed   int
}

var bpsFactor = decimal.NewFromInt(10000)

// SMA computes the arithmetic mean of the most recent window prices. It
// refuses to compute over fewer points than the window asks for.
func SMA(prices []decimal.Decimal, window int) (decimal.Decimal, error) {
	if window <= 0 {
		return decimal.Decimal{}, &WindowError{Reason: "window must be positive"}
	}
	if window > len(prices) {
		return decimal.Decimal{}, &InsufficientDataError{Need: window, Have: len(prices)}
	}

	sum := decimal.Zero
	for _, p := range prices[len(prices)-window:] {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(window))), nil
}

// Evaluate computes short and long SMAs over the series and classifies the
// spread against the threshold. Pure: no state beyond the arguments.
func Evaluate(prices []decimal.Decimal, shortWindow, longWindow int, thresholdBps decimal.Decimal) (Summary, error) {
	if shortWindow <= 0 || longWindow <= 0 {
		return Summary{}, &WindowError{Reason: "windows must be positive"}
	}
	if shortWindow >= longWindow {
		return Summary{}, &WindowError{Reason: "short window must be smaller than long window"}
	}
	if thresholdBps.IsNegative() {
		return Summary{}, &WindowError{Reason: "threshold cannot be negative"}
	}

	short, err := SMA(prices, shortWindow)
	if err != nil {
		return Summary{}, err
	}
	long, err := SMA(prices, longWindow)
	if err != nil {
		return Summary{}, err
	}

	summary, err := Compare(short, long, thresholdBps)
	if err != nil {
		return Summary{}, err
	}
	summary.PointsUsed = len(prices)
	return summary, nil
}

// Compare classifies the spread between two already-computed SMAs.
func Compare(short, long, thresholdBps decimal.Decimal) (Summary, error) {
	if long.Sign() <= 0 {
		return Summary{}, &WindowError{Reason: "long SMA must be positive"}
	}
	if thresholdBps.IsNegative() {
		return Summary{}, &WindowError{Reason: "threshold cannot be negative"}
	}

	ratioBps := short.Sub(long).Div(long).Mul(bpsFactor).Round(2)

	label := Neutral
	switch {
	case ratioBps.GreaterThan(thresholdBps):
		label = Bullish
	case ratioBps.LessThan(thresholdBps.Neg()):
		label = Bearish
	}

	rationale := fmt.Sprintf("short SMA %s vs long SMA %s; spread %s bps (threshold ±%s bps)",
		short.StringFixed(2), long.StringFixed(2), ratioBps.StringFixed(2), thresholdBps.StringFixed(2))

	return Summary{
		Short:        short,
		Long:         long,
		RatioBps:     ratioBps,
		ThresholdBps: thresholdBps,
		Label:        label,
		Rationale:    rationale,
	}, nil
}
