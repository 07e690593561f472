package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alerting"
	"btc-trend-watch/internal/cache"
	"btc-trend-watch/internal/config"
	"btc-trend-watch/internal/history"
	"btc-trend-watch/internal/market"
	"btc-trend-watch/internal/scheduler"
	"btc-trend-watch/internal/signal"
	"btc-trend-watch/internal/storage"
)

const (
	minLookbackMinutes = 5
	maxLookbackMinutes = 1440
)

// TrendRequest parameterises one trend evaluation. Zero values fall back to
// the configured defaults.
type TrendRequest struct {
	Currency        string
	LookbackMinutes int
	ShortWindow     int
	LongWindow      int
	ThresholdBps    decimal.Decimal
	AllowBackfill   *bool
}

// Service orchestrates fetching, history, trend evaluation, persistence, and
// alerting. All state is constructed and injected; nothing is process-global.
type Service struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	fetcher  market.QuoteFetcher
	quotes   cache.QuoteCache
	book     *history.Book
	store    storage.SampleStore
	events   storage.EventStore
	notifier alerting.Notifier
	logger   zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64

	rng *rand.Rand

	mu          sync.Mutex
	lastSignals map[string]signal.Label
}

// New constructs the service. store, events, and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, fetcher market.QuoteFetcher, quotes cache.QuoteCache, book *history.Book, store storage.SampleStore, events storage.EventStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		cfg:         cfg,
		sched:       sched,
		fetcher:     fetcher,
		quotes:      quotes,
		book:        book,
		store:       store,
		events:      events,
		notifier:    notifier,
		logger:      logger.With().Str("component", "service").Logger(),
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		lastSignals: make(map[string]signal.Label),
	}
}

// SetRand swaps the backfill RNG, used by tests for reproducible series.
func (s *Service) SetRand(rng *rand.Rand) { s.rng = rng }

// Price returns the latest spot quote, served from cache when fresh.
func (s *Service) Price(ctx context.Context, currency string) (PriceReport, error) {
	quote, cached, err := s.getQuote(ctx, currency)
	if err != nil {
		return PriceReport{}, err
	}

	return PriceReport{
		Symbol:           quote.Symbol,
		Currency:         quote.Currency,
		Price:            quote.Price,
		PercentChange24h: quote.PercentChange24h,
		LastUpdated:      quote.LastUpdated,
		Cached:           cached,
		Source:           quote.Source,
		Endpoint:         quote.Endpoint,
		Attribution:      quote.Attribution,
	}, nil
}

// Trend runs the full pipeline: fetch the spot price, append it to the
// rolling history, backfill synthetic points when permitted and needed,
// compute the SMAs, and classify the spread.
func (s *Service) Trend(ctx context.Context, req TrendRequest) (TrendReport, error) {
	req = s.withDefaults(req)

	if req.ShortWindow <= 0 || req.LongWindow <= 0 {
		return TrendReport{}, &signal.WindowError{Reason: "windows must be positive"}
	}
	if req.ShortWindow >= req.LongWindow {
		return TrendReport{}, &signal.WindowError{Reason: "short window must be smaller than long window"}
	}

	quote, _, err := s.getQuote(ctx, req.Currency)
	if err != nil {
		return TrendReport{}, err
	}
	currency := quote.Currency

	now := time.Now().UTC()
	s.book.Append(currency, history.Sample{Time: now, Price: quote.Price})

	added := 0
	if req.AllowBackfill == nil || *req.AllowBackfill {
		target := req.LongWindow
		if lookbackPoints := req.LookbackMinutes; lookbackPoints > target {
			target = lookbackPoints
		}
		added = s.book.Backfill(currency, target, history.BackfillOptions{
			Anchor:      quote.Price,
			Drift24hPct: quote.PercentChange24h,
			Rand:        s.rng,
		})
	}

	cutoff := now.Add(-time.Duration(req.LookbackMinutes) * time.Minute)
	recent := s.book.Recent(currency, cutoff)

	prices := make([]decimal.Decimal, 0, len(recent))
	synthetic := 0
	for _, sample := range recent {
		prices = append(prices, sample.Price)
		if sample.Synthetic {
			synthetic++
		}
	}

	summary, err := signal.Evaluate(prices, req.ShortWindow, req.LongWindow, req.ThresholdBps)
	if err != nil {
		return TrendReport{}, err
	}

	report := TrendReport{
		Symbol:          quote.Symbol,
		Currency:        currency,
		Price:           quote.Price,
		LastUpdated:     quote.LastUpdated,
		SMAShort:        summary.Short.Round(2),
		SMALong:         summary.Long.Round(2),
		Signal:          summary.Label,
		RatioBps:        summary.RatioBps,
		ThresholdBps:    summary.ThresholdBps,
		PointsUsed:      summary.PointsUsed,
		SyntheticPoints: synthetic,
		Rationale:       summary.Rationale,
		Source:          quote.Source,
		Endpoint:        quote.Endpoint,
		Attribution:     quote.Attribution,
	}
	if added > 0 {
		report.Note = fmt.Sprintf("backfilled %d synthetic points to fill history", added)
	}

	return report, nil
}

func (s *Service) withDefaults(req TrendRequest) TrendRequest {
	if req.ShortWindow == 0 {
		req.ShortWindow = s.cfg.Signal.ShortWindow
	}
	if req.LongWindow == 0 {
		req.LongWindow = s.cfg.Signal.LongWindow
	}
	if req.ThresholdBps.IsZero() {
		req.ThresholdBps = decimal.NewFromFloat(s.cfg.Signal.ThresholdBps)
	}
	if req.LookbackMinutes == 0 {
		req.LookbackMinutes = s.cfg.Signal.LookbackMinutes
	}
	if req.LookbackMinutes < minLookbackMinutes {
		req.LookbackMinutes = minLookbackMinutes
	}
	if req.LookbackMinutes > maxLookbackMinutes {
		req.LookbackMinutes = maxLookbackMinutes
	}
	if req.AllowBackfill == nil {
		allow := s.cfg.History.BackfillEnabled
		req.AllowBackfill = &allow
	}
	return req
}

func (s *Service) getQuote(ctx context.Context, currency string) (market.Quote, bool, error) {
	cur, err := market.NormalizeCurrency(currency)
	if err != nil {
		return market.Quote{}, false, err
	}

	if s.quotes != nil {
		if quote, ok := s.quotes.Get(ctx, cur); ok {
			return quote, true, nil
		}
	}

	quote, err := s.fetcher.FetchQuote(ctx, cur)
	if err != nil {
		return market.Quote{}, false, err
	}

	if s.quotes != nil {
		s.quotes.Set(ctx, quote)
	}
	return quote, false, nil
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, s.ProcessBucket)
}

// ProcessBucket samples every configured currency for one scheduler bucket.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	var firstErr error
	for _, currency := range s.cfg.Scheduler.Currencies {
		if err := s.sampleCurrency(ctx, bucket, currency); err != nil {
			s.logger.Error().Err(err).Str("currency", currency).Time("bucket", bucket).Msg("bucket sampling failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("sample %s: %w", currency, err)
			}
		}
	}
	return firstErr
}

func (s *Service) sampleCurrency(ctx context.Context, bucket time.Time, currency string) error {
	report, err := s.Trend(ctx, TrendRequest{Currency: currency})
	if err != nil {
		return err
	}

	if s.store != nil {
		quote, _, qerr := s.getQuote(ctx, report.Currency)
		pct := decimal.Zero
		if qerr == nil {
			pct = quote.PercentChange24h
		}
		sample := storage.PriceSample{
			Bucket:           bucket,
			Currency:         report.Currency,
			Price:            report.Price,
			PercentChange24h: pct,
			SMAShort:         report.SMAShort,
			SMALong:          report.SMALong,
			RatioBps:         report.RatioBps,
			Signal:           string(report.Signal),
			SyntheticPoints:  report.SyntheticPoints,
			Status:           "complete",
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.store.UpsertPriceSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Str("currency", report.Currency).Msg("failed to upsert sample")
		}
	}

	s.logger.Info().Time("bucket", bucket).
		Str("currency", report.Currency).
		Str("signal", string(report.Signal)).
		Str("ratio_bps", report.RatioBps.String()).
		Int("synthetic_points", report.SyntheticPoints).
		Msg("sample recorded")

	s.handleTransition(ctx, bucket, report)
	return nil
}

func (s *Service) handleTransition(ctx context.Context, bucket time.Time, report TrendReport) {
	s.mu.Lock()
	prev, seen := s.lastSignals[report.Currency]
	s.lastSignals[report.Currency] = report.Signal
	s.mu.Unlock()

	if !seen || prev == report.Signal {
		return
	}

	s.logger.Info().
		Str("currency", report.Currency).
		Str("from", string(prev)).
		Str("to", string(report.Signal)).
		Msg("trend signal changed")

	if s.events != nil {
		event := storage.SignalEvent{
			SampleTS:     bucket,
			Currency:     report.Currency,
			PrevSignal:   string(prev),
			NewSignal:    string(report.Signal),
			RatioBps:     report.RatioBps,
			ThresholdBps: report.ThresholdBps,
			Channels:     s.cfg.Alerting.Channels,
		}
		if _, err := s.events.InsertSignalEvent(ctx, event); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist signal event")
		}
	}

	if s.cfg.Alerting.Enabled && s.notifier != nil {
		note := alerting.Notification{
			Bucket:         bucket,
			Currency:       report.Currency,
			Price:          report.Price,
			SMAShort:       report.SMAShort,
			SMALong:        report.SMALong,
			RatioBps:       report.RatioBps,
			ThresholdBps:   report.ThresholdBps,
			Signal:         string(report.Signal),
			PreviousSignal: string(prev),
			Note:           report.Note,
			Channels:       s.cfg.Alerting.Channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
		}
	}
}

// WarmHistory preloads the rolling buffer from the most recent persisted
// samples so a restarted run loop does not start from an empty series.
func (s *Service) WarmHistory(ctx context.Context) {
	if s.store == nil {
		return
	}

	for _, currency := range s.cfg.Scheduler.Currencies {
		cur, err := market.NormalizeCurrency(currency)
		if err != nil {
			continue
		}
		samples, err := s.store.ListRecentSamples(ctx, cur, s.book.Capacity())
		if err != nil {
			s.logger.Warn().Err(err).Str("currency", cur).Msg("history warm-up failed")
			continue
		}
		// Newest first from the store; append oldest first.
		for i := len(samples) - 1; i >= 0; i-- {
			s.book.Append(cur, history.Sample{
				Time:      samples[i].Bucket,
				Price:     samples[i].Price,
				Synthetic: samples[i].SyntheticPoints > 0 && samples[i].Status == "synthetic",
			})
		}
		if len(samples) > 0 {
			s.logger.Info().Str("currency", cur).Int("points", len(samples)).Msg("history warmed from storage")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
