package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/extrema"
	"desk-sentinel/internal/fetcher"
	"desk-sentinel/internal/series"
	"desk-sentinel/internal/signal"
	"desk-sentinel/internal/storage"
)

// StockOptions configure the equity watcher.
type StockOptions struct {
	Provider       fetcher.PriceProvider
	Notifier       alerting.Notifier
	Gate           *alerting.Gate
	Watchlist      []string
	SeriesCapacity int

	// Optional collaborators. Nil disables the concern, never the loop.
	Ticks    storage.TickStore
	Signals  storage.SignalStore
	AlertLog storage.AlertLogStore
	Extrema  storage.ExtremaStore
	Trader   *PaperTrader

	Logger zerolog.Logger
}

// StockWatcher polls the watchlist, feeds each price into its rolling series
// and the extrema tracker, derives signals, and dispatches gated alerts.
// One instrument's failure never blocks the rest of the watchlist.
type StockWatcher struct {
	opts    StockOptions
	series  map[string]*series.Rolling
	tracker *extrema.Tracker
	logger  zerolog.Logger
}

// NewStockWatcher constructs a watcher over its own per-instrument state.
func NewStockWatcher(opts StockOptions) *StockWatcher {
	if opts.SeriesCapacity <= 0 {
		opts.SeriesCapacity = series.DefaultCapacity
	}
	return &StockWatcher{
		opts:    opts,
		series:  make(map[string]*series.Rolling),
		tracker: extrema.NewTracker(),
		logger:  opts.Logger.With().Str("component", "stock_watcher").Logger(),
	}
}

// Seed restores persisted extrema so a restart does not re-announce old
// highs. Absence of a store or a failing read degrades to empty state.
func (w *StockWatcher) Seed(ctx context.Context) {
	if w.opts.Extrema == nil {
		return
	}
	records, err := w.opts.Extrema.ListExtrema(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("extrema seed failed")
		return
	}
	for _, rec := range records {
		w.tracker.Seed(extrema.Record{
			Instrument: rec.Instrument,
			High:       rec.High,
			HighAt:     rec.HighAt,
			Low:        rec.Low,
			LowAt:      rec.LowAt,
		})
	}
}

// Tick runs one poll cycle over the whole watchlist.
func (w *StockWatcher) Tick(ctx context.Context, now time.Time) error {
	for _, symbol := range w.opts.Watchlist {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.observe(ctx, symbol, now)
	}
	return nil
}

func (w *StockWatcher) observe(ctx context.Context, symbol string, now time.Time) {
	point, err := w.opts.Provider.LatestPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, fetcher.ErrPriceUnavailable) {
			w.logger.Debug().Str("symbol", symbol).Msg("no current price, skipping tick")
			return
		}
		w.logger.Warn().Err(err).Str("symbol", symbol).Msg("price fetch failed")
		return
	}
	if point.ObservedAt.IsZero() {
		point.ObservedAt = now
	}

	r := w.seriesFor(symbol)
	r.Add(point.Price)
	extremeMoved := w.tracker.Update(symbol, point.Price, point.ObservedAt)

	w.persistTick(ctx, point)
	if extremeMoved {
		w.persistExtrema(ctx, symbol)
	}

	signals := signal.Evaluate(symbol, point.Price, r, point.ObservedAt)
	for _, sig := range signals {
		w.persistSignal(ctx, sig)
		w.dispatch(ctx, sig, point, now)
	}

	if w.opts.Trader != nil {
		w.opts.Trader.OnSignals(ctx, "stock", symbol, point.Price, point.ObservedAt, signals)
	}
}

func (w *StockWatcher) seriesFor(symbol string) *series.Rolling {
	if r, ok := w.series[symbol]; ok {
		return r
	}
	r := series.NewRolling(w.opts.SeriesCapacity)
	w.series[symbol] = r
	return r
}

// dispatch sends one gated signal alert. The cooldown key is marked only
// after the transport accepted the message, so a failed send retries on the
// next eligible tick.
func (w *StockWatcher) dispatch(ctx context.Context, sig signal.Signal, point fetcher.PricePoint, now time.Time) {
	key := fmt.Sprintf("%s:%s", sig.Kind, sig.Instrument)
	if !w.opts.Gate.Allow(key, now, false) {
		w.logger.Debug().Str("key", key).Msg("alert suppressed")
		return
	}

	title := fmt.Sprintf("%s %s", sig.Instrument, sig.Kind)
	fields := []alerting.Field{
		{Name: "price", Value: fmt.Sprintf("%.2f", point.Price)},
		{Name: "value", Value: fmt.Sprintf("%.2f", sig.Value)},
		{Name: "source", Value: point.Source},
	}
	if err := w.opts.Notifier.SendStructured(ctx, title, sig.Note, fields); err != nil {
		w.logger.Warn().Err(err).Str("key", key).Msg("alert dispatch failed")
		return
	}
	w.opts.Gate.MarkSent(key, now)

	if w.opts.AlertLog != nil {
		rec := storage.AlertRecord{
			At:        sig.At,
			Domain:    "stocks",
			Subject:   title,
			Message:   sig.Note,
			DedupeKey: key,
		}
		if _, err := w.opts.AlertLog.InsertAlert(ctx, rec); err != nil {
			w.logger.Warn().Err(err).Str("key", key).Msg("alert log append failed")
		}
	}
}

func (w *StockWatcher) persistTick(ctx context.Context, point fetcher.PricePoint) {
	if w.opts.Ticks == nil {
		return
	}
	tick := storage.PriceTick{
		At:         point.ObservedAt,
		Instrument: point.Instrument,
		Price:      point.Price,
		Source:     point.Source,
	}
	if err := w.opts.Ticks.InsertTick(ctx, tick); err != nil {
		w.logger.Warn().Err(err).Str("symbol", point.Instrument).Msg("tick persist failed")
	}
}

func (w *StockWatcher) persistSignal(ctx context.Context, sig signal.Signal) {
	if w.opts.Signals == nil {
		return
	}
	rec := storage.SignalRecord{
		At:         sig.At,
		Instrument: sig.Instrument,
		Kind:       string(sig.Kind),
		Value:      sig.Value,
		Note:       sig.Note,
	}
	if err := w.opts.Signals.InsertSignal(ctx, rec); err != nil {
		w.logger.Warn().Err(err).Str("symbol", sig.Instrument).Msg("signal persist failed")
	}
}

func (w *StockWatcher) persistExtrema(ctx context.Context, symbol string) {
	if w.opts.Extrema == nil {
		return
	}
	rec, ok := w.tracker.Read(symbol)
	if !ok {
		return
	}
	row := storage.ExtremaRecord{
		Instrument: rec.Instrument,
		High:       rec.High,
		HighAt:     rec.HighAt,
		Low:        rec.Low,
		LowAt:      rec.LowAt,
	}
	if err := w.opts.Extrema.UpsertExtrema(ctx, row); err != nil {
		w.logger.Warn().Err(err).Str("symbol", symbol).Msg("extrema persist failed")
	}
}
