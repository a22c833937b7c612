package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/fetcher"
	"desk-sentinel/internal/storage"
)

// GameOptions configure the storefront deal watcher.
type GameOptions struct {
	Provider fetcher.DealProvider
	Notifier alerting.Notifier
	Gate     *alerting.Gate
	Slugs    []string
	// SaleFraction triggers a sale alert when the offer price is at or
	// below this fraction of the normal price.
	SaleFraction float64

	Prices   storage.GamePriceStore
	AlertLog storage.AlertLogStore

	Logger zerolog.Logger
}

// GameWatcher polls storefront offers per game slug and alerts on discounts
// past the sale threshold or on an all-time-low flag from the provider.
type GameWatcher struct {
	opts   GameOptions
	logger zerolog.Logger
}

// NewGameWatcher constructs a watcher.
func NewGameWatcher(opts GameOptions) *GameWatcher {
	if opts.SaleFraction <= 0 || opts.SaleFraction >= 1 {
		opts.SaleFraction = 0.8
	}
	return &GameWatcher{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "game_watcher").Logger(),
	}
}

// Tick runs one poll cycle over every configured slug. A slug's failure
// never blocks the remaining slugs.
func (w *GameWatcher) Tick(ctx context.Context, now time.Time) error {
	for _, slug := range w.opts.Slugs {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.observe(ctx, slug, now)
	}
	return nil
}

func (w *GameWatcher) observe(ctx context.Context, slug string, now time.Time) {
	deals, err := w.opts.Provider.Deals(ctx, slug)
	if err != nil {
		w.logger.Warn().Err(err).Str("slug", slug).Msg("deal fetch failed")
		return
	}
	for _, deal := range deals {
		w.persistDeal(ctx, deal, now)

		reason, ok := w.dealTrigger(deal)
		if !ok {
			continue
		}
		w.dispatch(ctx, deal, reason, now)
	}
}

// dealTrigger decides whether a deal is worth announcing. All-time lows are
// taken from the provider's flag; discount depth is checked against the
// configured sale fraction.
func (w *GameWatcher) dealTrigger(deal fetcher.Deal) (string, bool) {
	if deal.IsLowest {
		return "all-time low", true
	}
	if deal.PriceOld > 0 && deal.PriceNew <= deal.PriceOld*w.opts.SaleFraction {
		pct := 100 * (1 - deal.PriceNew/deal.PriceOld)
		return fmt.Sprintf("%.0f%% off", pct), true
	}
	return "", false
}

func (w *GameWatcher) dispatch(ctx context.Context, deal fetcher.Deal, reason string, now time.Time) {
	key := fmt.Sprintf("deal:%s:%s", deal.Slug, deal.Store)
	if !w.opts.Gate.Allow(key, now, false) {
		w.logger.Debug().Str("key", key).Msg("deal alert suppressed")
		return
	}

	title := fmt.Sprintf("%s on sale at %s", deal.Slug, deal.Store)
	description := fmt.Sprintf("%.2f (was %.2f), %s", deal.PriceNew, deal.PriceOld, reason)
	fields := []alerting.Field{
		{Name: "store", Value: deal.Store},
		{Name: "url", Value: deal.URL},
	}
	if err := w.opts.Notifier.SendStructured(ctx, title, description, fields); err != nil {
		w.logger.Warn().Err(err).Str("key", key).Msg("deal alert dispatch failed")
		return
	}
	w.opts.Gate.MarkSent(key, now)

	if w.opts.AlertLog != nil {
		rec := storage.AlertRecord{
			At:        now,
			Domain:    "games",
			Subject:   title,
			Message:   description,
			DedupeKey: key,
		}
		if _, err := w.opts.AlertLog.InsertAlert(ctx, rec); err != nil {
			w.logger.Warn().Err(err).Str("key", key).Msg("alert log append failed")
		}
	}
}

func (w *GameWatcher) persistDeal(ctx context.Context, deal fetcher.Deal, now time.Time) {
	if w.opts.Prices == nil {
		return
	}
	rec := storage.GamePriceRecord{
		At:       now,
		Slug:     deal.Slug,
		Store:    deal.Store,
		Price:    decimal.NewFromFloat(deal.PriceNew),
		IsLowest: deal.IsLowest,
	}
	if deal.PriceOld > 0 {
		normal := decimal.NewFromFloat(deal.PriceOld)
		rec.NormalPrice = &normal
	}
	if err := w.opts.Prices.InsertGamePrice(ctx, rec); err != nil {
		w.logger.Warn().Err(err).Str("slug", deal.Slug).Msg("game price persist failed")
	}
}
