package app

import (
	"context"
	"errors"
	"math"
	"time"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/fetcher"
	"desk-sentinel/internal/watcher"
)

// Simulate drives a synthetic price path through the full watcher pipeline:
// series, signal evaluation, gating, and dispatch. Useful for verifying a
// transport configuration without waiting for real market moves.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Instrument == "" {
		opts.Instrument = "SIM"
	}
	if opts.Start <= 0 {
		return errors.New("--start price must be positive")
	}
	if opts.Steps <= 0 {
		opts.Steps = 60
	}

	var notifier alerting.Notifier
	if opts.Notify {
		notifier = a.newNotifier()
		if notifier == nil {
			return errors.New("--notify set but no transport configured")
		}
	} else {
		notifier = alerting.NewLogNotifier(a.Logger)
	}

	provider := &scriptedProvider{
		instrument: opts.Instrument,
		start:      opts.Start,
		drift:      opts.Drift,
		swing:      opts.Swing,
	}

	w := watcher.NewStockWatcher(watcher.StockOptions{
		Provider:  provider,
		Notifier:  notifier,
		Gate:      a.newGate(),
		Watchlist: []string{opts.Instrument},
		Logger:    a.Logger,
	})

	now := time.Now()
	for i := 0; i < opts.Steps; i++ {
		if err := w.Tick(ctx, now.Add(time.Duration(i)*time.Minute)); err != nil {
			return err
		}
	}

	a.Logger.Info().
		Str("instrument", opts.Instrument).
		Int("steps", opts.Steps).
		Float64("final_price", provider.last).
		Msg("simulation complete")
	return nil
}

// scriptedProvider produces a deterministic drift-plus-sine price path.
type scriptedProvider struct {
	instrument string
	start      float64
	drift      float64
	swing      float64
	step       int
	last       float64
}

func (s *scriptedProvider) Name() string { return "simulated" }

func (s *scriptedProvider) LatestPrice(ctx context.Context, symbol string) (fetcher.PricePoint, error) {
	price := s.start + s.drift*float64(s.step) + s.swing*math.Sin(float64(s.step)/5)
	if price < 0.01 {
		price = 0.01
	}
	s.step++
	s.last = price
	return fetcher.PricePoint{
		Instrument: s.instrument,
		Price:      price,
		ObservedAt: time.Now(),
		Source:     "simulated",
	}, nil
}

var _ fetcher.PriceProvider = (*scriptedProvider)(nil)
