package signal

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func prices(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestSMA(t *testing.T) {
	series := prices(1, 2, 3, 4, 5)

	got, err := SMA(series, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(4.5)) {
		t.Fatalf("SMA over last 2 of 1..5 should be 4.5, got %s", got)
	}

	got, err = SMA(series, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("SMA over all of 1..5 should be 3, got %s", got)
	}
}

func TestSMAInsufficientData(t *testing.T) {
	_, err := SMA(prices(1, 2, 3), 4)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("window beyond series must fail, got %v", err)
	}
	if insufficient.Need != 4 || insufficient.Have != 3 {
		t.Fatalf("error should carry need/have, got %+v", insufficient)
	}

	if _, err := SMA(prices(1, 2, 3), 0); err == nil {
		t.Fatal("zero window must fail")
	}
}

// Series chosen so the short SMA is 110 and the long SMA is 100.
func seriesShort110Long100() []decimal.Decimal {
	return prices(90, 110)
}

func TestEvaluateBullish(t *testing.T) {
	threshold := decimal.NewFromInt(25)

	summary, err := Evaluate(seriesShort110Long100(), 1, 2, threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Short.Equal(decimal.NewFromInt(110)) || !summary.Long.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected SMAs: short=%s long=%s", summary.Short, summary.Long)
	}
	if !summary.RatioBps.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("spread of 110 vs 100 is 1000 bps, got %s", summary.RatioBps)
	}
	if summary.Label != Bullish {
		t.Fatalf("expected bullish, got %s", summary.Label)
	}
	if summary.Rationale == "" {
		t.Fatal("rationale should be populated")
	}
}

func TestEvaluateBearish(t *testing.T) {
	// Short SMA 100 vs long SMA 110.
	series := prices(120, 100)
	summary, err := Evaluate(series, 1, 2, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Label != Bearish {
		t.Fatalf("expected bearish, got %s", summary.Label)
	}
	if !summary.RatioBps.IsNegative() {
		t.Fatalf("bearish spread must be negative, got %s", summary.RatioBps)
	}
}

func TestEvaluateNeutralOnEqualSMAs(t *testing.T) {
	series := prices(100, 100, 100, 100)
	summary, err := Evaluate(series, 2, 4, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Label != Neutral {
		t.Fatalf("equal SMAs must be neutral, got %s", summary.Label)
	}
	if !summary.RatioBps.IsZero() {
		t.Fatalf("equal SMAs give 0 bps, got %s", summary.RatioBps)
	}
}

func TestEvaluateWithinThresholdIsNeutral(t *testing.T) {
	// 100.1 vs 100 is ~10 bps, inside a 25 bps band.
	series := []decimal.Decimal{decimal.NewFromFloat(99.9), decimal.NewFromFloat(100.1)}
	summary, err := Evaluate(series, 1, 2, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Label != Neutral {
		t.Fatalf("spread inside the band must be neutral, got %s", summary.Label)
	}
}

func TestEvaluateWindowValidation(t *testing.T) {
	series := prices(1, 2, 3, 4, 5)

	if _, err := Evaluate(series, 3, 3, decimal.Zero); err == nil {
		t.Fatal("short == long must fail")
	}
	if _, err := Evaluate(series, 4, 2, decimal.Zero); err == nil {
		t.Fatal("short > long must fail")
	}
	if _, err := Evaluate(series, 0, 2, decimal.Zero); err == nil {
		t.Fatal("zero short window must fail")
	}
	if _, err := Evaluate(series, 2, 4, decimal.NewFromInt(-1)); err == nil {
		t.Fatal("negative threshold must fail")
	}

	_, err := Evaluate(series, 2, 10, decimal.Zero)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("long window beyond series must be an insufficient-data error, got %v", err)
	}
}

func TestCompareAcceptance(t *testing.T) {
	threshold := decimal.NewFromInt(25)

	bull, err := Compare(decimal.NewFromInt(110), decimal.NewFromInt(100), threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bull.Label != Bullish {
		t.Fatalf("110 vs 100 at 25 bps must be bullish, got %s", bull.Label)
	}

	bear, err := Compare(decimal.NewFromInt(100), decimal.NewFromInt(110), threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bear.Label != Bearish {
		t.Fatalf("swapped SMAs must be bearish, got %s", bear.Label)
	}
	if !bear.RatioBps.Equal(decimal.NewFromFloat(-909.09)) {
		t.Fatalf("100 vs 110 is -909.09 bps, got %s", bear.RatioBps)
	}

	flat, err := Compare(decimal.NewFromInt(100), decimal.NewFromInt(100), threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flat.Label != Neutral {
		t.Fatalf("equal SMAs must be neutral, got %s", flat.Label)
	}

	if _, err := Compare(decimal.NewFromInt(1), decimal.Zero, threshold); err == nil {
		t.Fatal("zero long SMA must fail")
	}
}

func TestEvaluateLabelAlwaysKnown(t *testing.T) {
	series := prices(100, 101, 102, 103, 104, 105, 106, 107, 108, 109)
	summary, err := Evaluate(series, 3, 7, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	switch summary.Label {
	case Bullish, Bearish, Neutral:
	default:
		t.Fatalf("unknown label %q", summary.Label)
	}
}
