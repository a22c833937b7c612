package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/fetcher"
	"desk-sentinel/internal/series"
	"desk-sentinel/internal/signal"
	"desk-sentinel/internal/storage"
)

// OptionsOptions configure the option contract watcher.
type OptionsOptions struct {
	Provider       fetcher.OptionProvider
	Notifier       alerting.Notifier
	Gate           *alerting.Gate
	Underlyings    []string
	SeriesCapacity int

	Ticks    storage.TickStore
	Signals  storage.SignalStore
	AlertLog storage.AlertLogStore
	Trader   *PaperTrader

	Logger zerolog.Logger
}

// OptionsWatcher tracks near-the-money contracts per underlying. The
// contract set is refreshed every cycle, so series follow whichever strikes
// are currently near the money; a strike that drifts away simply stops
// accumulating points.
type OptionsWatcher struct {
	opts   OptionsOptions
	series map[string]*series.Rolling
	logger zerolog.Logger
}

// NewOptionsWatcher constructs a watcher.
func NewOptionsWatcher(opts OptionsOptions) *OptionsWatcher {
	if opts.SeriesCapacity <= 0 {
		opts.SeriesCapacity = series.DefaultCapacity
	}
	return &OptionsWatcher{
		opts:   opts,
		series: make(map[string]*series.Rolling),
		logger: opts.Logger.With().Str("component", "options_watcher").Logger(),
	}
}

// Tick runs one poll cycle over every underlying. One underlying's failure
// never blocks the rest.
func (w *OptionsWatcher) Tick(ctx context.Context, now time.Time) error {
	for _, underlying := range w.opts.Underlyings {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.observe(ctx, underlying, now)
	}
	return nil
}

func (w *OptionsWatcher) observe(ctx context.Context, underlying string, now time.Time) {
	contracts, err := w.opts.Provider.ListContracts(ctx, underlying)
	if err != nil {
		w.logger.Warn().Err(err).Str("underlying", underlying).Msg("contract listing failed")
		return
	}

	for _, contract := range contracts {
		price, err := w.opts.Provider.LastOptionPrice(ctx, contract.ID)
		if err != nil {
			if errors.Is(err, fetcher.ErrPriceUnavailable) {
				w.logger.Debug().Str("contract", contract.ID).Msg("no option price, skipping")
				continue
			}
			w.logger.Warn().Err(err).Str("contract", contract.ID).Msg("option price fetch failed")
			continue
		}

		r := w.seriesFor(contract.ID)
		r.Add(price)

		w.persistTick(ctx, contract.ID, price, now)

		signals := signal.Evaluate(contract.ID, price, r, now)
		for _, sig := range signals {
			w.persistSignal(ctx, sig)
			w.dispatch(ctx, contract, sig, price, now)
		}

		if w.opts.Trader != nil {
			w.opts.Trader.OnSignals(ctx, "option", contract.ID, price, now, signals)
		}
	}
}

func (w *OptionsWatcher) seriesFor(contractID string) *series.Rolling {
	if r, ok := w.series[contractID]; ok {
		return r
	}
	r := series.NewRolling(w.opts.SeriesCapacity)
	w.series[contractID] = r
	return r
}

func (w *OptionsWatcher) dispatch(ctx context.Context, contract fetcher.OptionContract, sig signal.Signal, price float64, now time.Time) {
	key := fmt.Sprintf("%s:%s", sig.Kind, contract.ID)
	if !w.opts.Gate.Allow(key, now, false) {
		w.logger.Debug().Str("key", key).Msg("option alert suppressed")
		return
	}

	title := fmt.Sprintf("%s %s %.0f%s %s", contract.Underlying, contract.Expiry, contract.Strike, contract.Side, sig.Kind)
	fields := []alerting.Field{
		{Name: "contract", Value: contract.ID},
		{Name: "last", Value: fmt.Sprintf("%.2f", price)},
		{Name: "value", Value: fmt.Sprintf("%.2f", sig.Value)},
	}
	if err := w.opts.Notifier.SendStructured(ctx, title, sig.Note, fields); err != nil {
		w.logger.Warn().Err(err).Str("key", key).Msg("option alert dispatch failed")
		return
	}
	w.opts.Gate.MarkSent(key, now)

	if w.opts.AlertLog != nil {
		rec := storage.AlertRecord{
			At:        now,
			Domain:    "options",
			Subject:   title,
			Message:   sig.Note,
			DedupeKey: key,
		}
		if _, err := w.opts.AlertLog.InsertAlert(ctx, rec); err != nil {
			w.logger.Warn().Err(err).Str("key", key).Msg("alert log append failed")
		}
	}
}

func (w *OptionsWatcher) persistTick(ctx context.Context, contractID string, price float64, now time.Time) {
	if w.opts.Ticks == nil {
		return
	}
	tick := storage.PriceTick{
		At:         now,
		Instrument: contractID,
		Price:      price,
		Source:     "options",
	}
	if err := w.opts.Ticks.InsertTick(ctx, tick); err != nil {
		w.logger.Warn().Err(err).Str("contract", contractID).Msg("tick persist failed")
	}
}

func (w *OptionsWatcher) persistSignal(ctx context.Context, sig signal.Signal) {
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
		w.logger.Warn().Err(err).Str("contract", sig.Instrument).Msg("signal persist failed")
	}
}
