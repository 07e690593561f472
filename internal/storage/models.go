package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is one persisted sampling-bucket observation for a currency.
type PriceSample struct {
	Bucket           time.Time
	Currency         string
	Price            decimal.Decimal
	PercentChange24h decimal.Decimal
	SMAShort         decimal.Decimal
	SMALong          decimal.Decimal
	RatioBps         decimal.Decimal
	Signal           string
	SyntheticPoints  int
	Status           string
	Error            *string
	CreatedAt        time.Time
}

// SignalEvent records a trend-signal transition for auditing.
type SignalEvent struct {
	ID           int64
	SampleTS     time.Time
	Currency     string
	PrevSignal   string
	NewSignal    string
	RatioBps     decimal.Decimal
	ThresholdBps decimal.Decimal
	Channels     []string
	CreatedAt    time.Time
}
