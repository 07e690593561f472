package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"btc-trend-watch/internal/alerting"
	"btc-trend-watch/internal/cache"
	"btc-trend-watch/internal/config"
	"btc-trend-watch/internal/history"
	"btc-trend-watch/internal/market"
	"btc-trend-watch/internal/scheduler"
	"btc-trend-watch/internal/server"
	"btc-trend-watch/internal/service"
	"btc-trend-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() market.QuoteFetcher {
	return market.NewCoinMarketCap(market.CoinMarketCapOptions{
		BaseURL:   a.Config.Market.BaseURL,
		APIKey:    a.Config.Market.APIKey,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)
}

func (a *App) newCache(ctx context.Context) (cache.QuoteCache, error) {
	if a.Config.Cache.Backend == "redis" {
		return cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     a.Config.Cache.Redis.Addr,
			Password: a.Config.Cache.Redis.Password,
			DB:       a.Config.Cache.Redis.DB,
			TTL:      a.Config.Cache.TTL,
		}, a.Logger)
	}
	return cache.NewMemory(a.Config.Cache.TTL), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newService assembles a query-only service with a fresh history book.
func (a *App) newService(ctx context.Context) (*service.Service, func(), error) {
	quotes, err := a.newCache(ctx)
	if err != nil {
		return nil, nil, err
	}

	book := history.NewBook(a.Config.History.Capacity)
	svc := service.New(a.Config, nil, a.newFetcher(), quotes, book, nil, nil, nil, a.Logger)
	closer := func() { _ = quotes.Close() }
	return svc, closer, nil
}

// Run executes the long-running sampling service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	quotes, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	defer quotes.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	book := history.NewBook(a.Config.History.Capacity)

	var sampleStore storage.SampleStore
	var eventStore storage.EventStore
	if store != nil {
		sampleStore = store
		eventStore = store
	}

	svc := service.New(a.Config, sched, a.newFetcher(), quotes, book, sampleStore, eventStore, a.newNotifier(), a.Logger)
	svc.WarmHistory(ctx)

	serverErr := make(chan error, 1)
	if a.Config.Server.Enabled {
		srv := server.New(a.Config.Server, svc, a.Logger)
		go func() {
			serverErr <- srv.Start(ctx)
		}()
	}

	a.Logger.Info().Msg("starting sampling service")
	runErr := svc.Run(ctx)

	if a.Config.Server.Enabled {
		if err := <-serverErr; err != nil {
			a.Logger.Error().Err(err).Msg("http server terminated with error")
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		a.Logger.Error().Err(runErr).Msg("service terminated with error")
		return runErr
	}

	a.Logger.Info().Msg("sampling service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Currency  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Currency string
	Limit    int
	Events   bool
}

// BackfillOptions configure the synthetic history seeding job.
type BackfillOptions struct {
	Currencies []string
	Points     int
	DryRun     bool
}
