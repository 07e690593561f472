package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertPriceSampleSQL = `INSERT INTO price_samples (
        bucket_ts,
        currency,
        price,
        percent_change_24h,
        sma_short,
        sma_long,
        ratio_bps,
        signal,
        synthetic_points,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (bucket_ts, currency) DO UPDATE
    SET
        price              = EXCLUDED.price,
        percent_change_24h = EXCLUDED.percent_change_24h,
        sma_short          = EXCLUDED.sma_short,
        sma_long           = EXCLUDED.sma_long,
        ratio_bps          = EXCLUDED.ratio_bps,
        signal             = EXCLUDED.signal,
        synthetic_points   = EXCLUDED.synthetic_points,
        status             = EXCLUDED.status,
        error              = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        bucket_ts, currency, price, percent_change_24h,
        sma_short, sma_long, ratio_bps, signal,
        synthetic_points, status, error, created_at
    FROM price_samples
    WHERE currency = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        bucket_ts, currency, price, percent_change_24h,
        sma_short, sma_long, ratio_bps, signal,
        synthetic_points, status, error, created_at
    FROM price_samples
    WHERE currency = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	countSamplesSQL = `SELECT COUNT(*) FROM price_samples WHERE currency = $1;`

	insertSignalEventSQL = `INSERT INTO signal_events (
        sample_ts,
        currency,
        prev_signal,
        new_signal,
        ratio_bps,
        threshold_bps,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (sample_ts, currency) DO UPDATE
    SET prev_signal   = EXCLUDED.prev_signal,
        new_signal    = EXCLUDED.new_signal,
        ratio_bps     = EXCLUDED.ratio_bps,
        threshold_bps = EXCLUDED.threshold_bps,
        channels      = EXCLUDED.channels
    RETURNING id, sample_ts, currency, prev_signal, new_signal, ratio_bps, threshold_bps, channels, created_at;`

	listRecentEventsSQL = `SELECT
        id, sample_ts, currency, prev_signal, new_signal,
        ratio_bps, threshold_bps, channels, created_at
    FROM signal_events
    WHERE currency = $1
    ORDER BY created_at DESC
    LIMIT $2;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for price sample persistence.
type SampleStore interface {
	UpsertPriceSample(ctx context.Context, sample PriceSample) error
	ListSamplesBetween(ctx context.Context, currency string, from, to time.Time) ([]PriceSample, error)
	ListRecentSamples(ctx context.Context, currency string, limit int) ([]PriceSample, error)
	CountSamples(ctx context.Context, currency string) (int64, error)
}

// EventStore defines operations for signal-event auditing.
type EventStore interface {
	InsertSignalEvent(ctx context.Context, event SignalEvent) (SignalEvent, error)
	ListRecentEvents(ctx context.Context, currency string, limit int) ([]SignalEvent, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price samples and signal events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertPriceSample persists or updates a bucket observation.
func (s *Store) UpsertPriceSample(ctx context.Context, sample PriceSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertPriceSampleSQL,
		sample.Bucket,
		sample.Currency,
		sample.Price.String(),
		sample.PercentChange24h.String(),
		sample.SMAShort.String(),
		sample.SMALong.String(),
		sample.RatioBps.String(),
		sample.Signal,
		sample.SyntheticPoints,
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert price sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples for a currency within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, currency string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, currency, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PriceSample, 0)
	for rows.Next() {
		sample, scanErr := scanPriceSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples for a currency, newest first.
func (s *Store) ListRecentSamples(ctx context.Context, currency string, limit int) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, currency, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PriceSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanPriceSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples for a currency.
func (s *Store) CountSamples(ctx context.Context, currency string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL, currency).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertSignalEvent persists a signal transition.
func (s *Store) InsertSignalEvent(ctx context.Context, event SignalEvent) (SignalEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return SignalEvent{}, err
	}

	row := pool.QueryRow(ctx, insertSignalEventSQL,
		event.SampleTS,
		event.Currency,
		event.PrevSignal,
		event.NewSignal,
		event.RatioBps.String(),
		event.ThresholdBps.String(),
		event.Channels,
	)

	var rec SignalEvent
	var ratioStr, thresholdStr string
	if scanErr := row.Scan(
		&rec.ID,
		&rec.SampleTS,
		&rec.Currency,
		&rec.PrevSignal,
		&rec.NewSignal,
		&ratioStr,
		&thresholdStr,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return SignalEvent{}, fmt.Errorf("insert signal event: %w", scanErr)
	}

	if rec.RatioBps, err = decimal.NewFromString(ratioStr); err != nil {
		return SignalEvent{}, fmt.Errorf("parse ratio bps: %w", err)
	}
	if rec.ThresholdBps, err = decimal.NewFromString(thresholdStr); err != nil {
		return SignalEvent{}, fmt.Errorf("parse threshold bps: %w", err)
	}

	return rec, nil
}

// ListRecentEvents lists the most recent signal transitions for a currency.
func (s *Store) ListRecentEvents(ctx context.Context, currency string, limit int) ([]SignalEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, currency, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	events := make([]SignalEvent, 0, limit)
	for rows.Next() {
		var rec SignalEvent
		var ratioStr, thresholdStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.SampleTS,
			&rec.Currency,
			&rec.PrevSignal,
			&rec.NewSignal,
			&ratioStr,
			&thresholdStr,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		if rec.RatioBps, convErr = decimal.NewFromString(ratioStr); convErr != nil {
			return nil, fmt.Errorf("parse ratio bps: %w", convErr)
		}
		if rec.ThresholdBps, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
			return nil, fmt.Errorf("parse threshold bps: %w", convErr)
		}

		events = append(events, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanPriceSample(rows pgx.Rows) (PriceSample, error) {
	var (
		bucket    time.Time
		currency  string
		priceStr  string
		pctStr    string
		shortStr  string
		longStr   string
		ratioStr  string
		sig       string
		synthetic int
		status    string
		errMsg    sql.NullString
		createdAt time.Time
	)

	if err := rows.Scan(
		&bucket,
		&currency,
		&priceStr,
		&pctStr,
		&shortStr,
		&longStr,
		&ratioStr,
		&sig,
		&synthetic,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return PriceSample{}, err
	}

	sample := PriceSample{
		Bucket:          bucket,
		Currency:        currency,
		Signal:          sig,
		SyntheticPoints: synthetic,
		Status:          status,
		CreatedAt:       createdAt,
	}

	var err error
	if sample.Price, err = decimal.NewFromString(priceStr); err != nil {
		return PriceSample{}, fmt.Errorf("parse price: %w", err)
	}
	if sample.PercentChange24h, err = decimal.NewFromString(pctStr); err != nil {
		return PriceSample{}, fmt.Errorf("parse percent change: %w", err)
	}
	if sample.SMAShort, err = decimal.NewFromString(shortStr); err != nil {
		return PriceSample{}, fmt.Errorf("parse short sma: %w", err)
	}
	if sample.SMALong, err = decimal.NewFromString(longStr); err != nil {
		return PriceSample{}, fmt.Errorf("parse long sma: %w", err)
	}
	if sample.RatioBps, err = decimal.NewFromString(ratioStr); err != nil {
		return PriceSample{}, fmt.Errorf("parse ratio bps: %w", err)
	}

	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}

	return sample, nil
}
