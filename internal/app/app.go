package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/config"
	"desk-sentinel/internal/fetcher"
	"desk-sentinel/internal/schedule"
	"desk-sentinel/internal/service"
	"desk-sentinel/internal/storage"
	"desk-sentinel/internal/watcher"
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

// newPriceProvider selects the equity price backend from available
// credentials: Polygon first, then Alpaca, then Chainlink aggregators.
func (a *App) newPriceProvider() fetcher.PriceProvider {
	p := a.Config.Providers
	if p.Polygon.APIKey != "" {
		return fetcher.NewPolygon(fetcher.PolygonOptions{
			APIKey:     p.Polygon.APIKey,
			BaseURL:    p.Polygon.BaseURL,
			Timeout:    p.RequestTimeout,
			ExpiryDays: a.Config.Options.ExpiryDays,
		}, a.Logger)
	}
	if p.Alpaca.APIKey != "" && p.Alpaca.APISecret != "" {
		return fetcher.NewAlpaca(fetcher.AlpacaOptions{
			APIKey:    p.Alpaca.APIKey,
			APISecret: p.Alpaca.APISecret,
			BaseURL:   p.Alpaca.BaseURL,
			Timeout:   p.RequestTimeout,
		}, a.Logger)
	}
	if p.Chainlink.RPCURL != "" && len(p.Chainlink.Feeds) > 0 {
		return fetcher.NewChainlink(fetcher.ChainlinkOptions{
			RPCURL:  p.Chainlink.RPCURL,
			Feeds:   p.Chainlink.Feeds,
			Timeout: p.RequestTimeout,
		}, a.Logger)
	}
	return nil
}

// newOptionProvider returns the option backend, currently Polygon only.
func (a *App) newOptionProvider() fetcher.OptionProvider {
	p := a.Config.Providers
	if p.Polygon.APIKey == "" {
		return nil
	}
	return fetcher.NewPolygon(fetcher.PolygonOptions{
		APIKey:     p.Polygon.APIKey,
		BaseURL:    p.Polygon.BaseURL,
		Timeout:    p.RequestTimeout,
		ExpiryDays: a.Config.Options.ExpiryDays,
	}, a.Logger)
}

func (a *App) newDealProvider() fetcher.DealProvider {
	p := a.Config.Providers
	if p.ITAD.APIKey == "" {
		return nil
	}
	return fetcher.NewITAD(fetcher.ITADOptions{
		APIKey:     p.ITAD.APIKey,
		BaseURL:    p.ITAD.BaseURL,
		Country:    p.ITAD.Country,
		Timeout:    p.RequestTimeout,
		MaxEntries: p.ITAD.MaxEntries,
	}, a.Logger)
}

// newNotifier picks the configured transport: Discord webhook first, then
// Telegram. Missing secrets disable the path rather than failing startup.
func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	limits := alerting.Limits{
		Text:        cfg.Limits.Text,
		Title:       cfg.Limits.Title,
		Description: cfg.Limits.Description,
		Field:       cfg.Limits.Field,
	}
	if cfg.Discord.Enabled && cfg.Discord.WebhookURL != "" {
		return alerting.NewDiscordNotifier(cfg.Discord.WebhookURL, limits, 10*time.Second, a.Logger)
	}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		return alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, limits, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newGate() *alerting.Gate {
	return alerting.NewGate(alerting.GateOptions{
		QuietHours: a.Config.Alerting.QuietHours,
		Cooldown:   a.Config.Alerting.Cooldown,
		Location:   a.Config.Location(),
	}, a.Logger)
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

// Run executes the long-running monitoring service.
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

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no notification transport configured; alerts will be logged only")
		notifier = alerting.NewLogNotifier(a.Logger)
	}
	gate := a.newGate()

	var (
		ticks     storage.TickStore
		signals   storage.SignalStore
		alertLog  storage.AlertLogStore
		extremaDB storage.ExtremaStore
		trades    storage.TradeStore
		games     storage.GamePriceStore
		schedules storage.ScheduleStore
	)
	if store != nil {
		ticks = store
		signals = store
		alertLog = store
		extremaDB = store
		trades = store
		games = store
		schedules = store
	}

	trader := watcher.NewPaperTrader(trades, a.Logger)

	var stocks *watcher.StockWatcher
	if a.Config.Stocks.Enabled {
		if provider := a.newPriceProvider(); provider != nil {
			a.Logger.Info().Str("provider", provider.Name()).Msg("equity price provider selected")
			stocks = watcher.NewStockWatcher(watcher.StockOptions{
				Provider:       provider,
				Notifier:       notifier,
				Gate:           gate,
				Watchlist:      a.Config.Stocks.Watchlist,
				SeriesCapacity: a.Config.Stocks.SeriesCapacity,
				Ticks:          ticks,
				Signals:        signals,
				AlertLog:       alertLog,
				Extrema:        extremaDB,
				Trader:         trader,
				Logger:         a.Logger,
			})
		} else {
			a.Logger.Warn().Msg("stocks enabled but no price provider credentials; domain disabled")
		}
	}

	var gameWatcher *watcher.GameWatcher
	if a.Config.Games.Enabled {
		if provider := a.newDealProvider(); provider != nil {
			gameWatcher = watcher.NewGameWatcher(watcher.GameOptions{
				Provider:     provider,
				Notifier:     notifier,
				Gate:         gate,
				Slugs:        a.Config.Games.Slugs,
				SaleFraction: a.Config.Games.SaleFraction,
				Prices:       games,
				AlertLog:     alertLog,
				Logger:       a.Logger,
			})
		} else {
			a.Logger.Warn().Msg("games enabled but no deal provider key; domain disabled")
		}
	}

	var optWatcher *watcher.OptionsWatcher
	if a.Config.Options.Enabled {
		if provider := a.newOptionProvider(); provider != nil {
			optWatcher = watcher.NewOptionsWatcher(watcher.OptionsOptions{
				Provider:       provider,
				Notifier:       notifier,
				Gate:           gate,
				Underlyings:    a.Config.Options.Underlyings,
				SeriesCapacity: a.Config.Stocks.SeriesCapacity,
				Ticks:          ticks,
				Signals:        signals,
				AlertLog:       alertLog,
				Trader:         trader,
				Logger:         a.Logger,
			})
		} else {
			a.Logger.Warn().Msg("options enabled but no option provider credentials; domain disabled")
		}
	}

	var runner *schedule.Runner
	if a.Config.Schedule.Enabled {
		if schedules == nil {
			a.Logger.Warn().Msg("schedule enabled but no database configured; domain disabled")
		} else {
			runner = schedule.NewRunner(schedule.RunnerOptions{
				Schedules:      schedules,
				AlertLog:       alertLog,
				Notifier:       notifier,
				Gate:           gate,
				Location:       a.Config.Location(),
				BriefTailLimit: a.Config.Schedule.BriefTailLimit,
				Logger:         a.Logger,
			})
		}
	}

	svc := service.New(service.Options{
		Config:   a.Config,
		Stocks:   stocks,
		Games:    gameWatcher,
		Options:  optWatcher,
		Schedule: runner,
		Notifier: notifier,
		Gate:     gate,
		Logger:   a.Logger,
	})

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Instrument string
	From       *time.Time
	To         *time.Time
	PNGPath    string
	CSVPath    string
	MaxPoints  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure the offline signal run.
type SimulateOptions struct {
	Instrument string
	Start      float64
	Drift      float64
	Swing      float64
	Steps      int
	Notify     bool
}
