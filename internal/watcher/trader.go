package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"desk-sentinel/internal/signal"
	"desk-sentinel/internal/storage"
)

// defaultOrderQty is the fixed simulated fill size. This is a placeholder
// ledger, not position sizing.
var defaultOrderQty = decimal.NewFromInt(10)

// PaperTrader turns momentum signals into simulated fills: it buys an
// instrument on rsi_oversold and exits the whole position on rsi_overbought.
// Positions live in memory; fills are appended to the trade ledger when a
// store is configured.
type PaperTrader struct {
	trades storage.TradeStore
	logger zerolog.Logger

	mu        sync.Mutex
	positions map[string]decimal.Decimal
	orderQty  decimal.Decimal
}

// NewPaperTrader constructs a trader. trades may be nil; fills are then
// logged only.
func NewPaperTrader(trades storage.TradeStore, logger zerolog.Logger) *PaperTrader {
	return &PaperTrader{
		trades:    trades,
		logger:    logger.With().Str("component", "paper_trader").Logger(),
		positions: make(map[string]decimal.Decimal),
		orderQty:  defaultOrderQty,
	}
}

// OnSignals reacts to one tick's signals for an instrument. Ledger failures
// are logged; the in-memory position is authoritative either way.
func (t *PaperTrader) OnSignals(ctx context.Context, market, instrument string, price float64, at time.Time, signals []signal.Signal) {
	for _, sig := range signals {
		switch sig.Kind {
		case signal.RSIOversold:
			t.buy(ctx, market, instrument, price, at)

		case signal.RSIOverbought:
			t.sell(ctx, market, instrument, price, at)
		}
	}
}

// Position returns the currently held quantity for an instrument.
func (t *PaperTrader) Position(instrument string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[instrument]
}

func (t *PaperTrader) buy(ctx context.Context, market, instrument string, price float64, at time.Time) {
	t.mu.Lock()
	if t.positions[instrument].IsPositive() {
		t.mu.Unlock()
		return
	}
	qty := t.orderQty
	t.positions[instrument] = qty
	t.mu.Unlock()

	t.record(ctx, market, instrument, "BUY", qty, price, at)
}

func (t *PaperTrader) sell(ctx context.Context, market, instrument string, price float64, at time.Time) {
	t.mu.Lock()
	qty := t.positions[instrument]
	if !qty.IsPositive() {
		t.mu.Unlock()
		return
	}
	delete(t.positions, instrument)
	t.mu.Unlock()

	t.record(ctx, market, instrument, "SELL", qty, price, at)
}

func (t *PaperTrader) record(ctx context.Context, market, instrument, side string, qty decimal.Decimal, price float64, at time.Time) {
	t.logger.Info().
		Str("market", market).
		Str("instrument", instrument).
		Str("side", side).
		Str("qty", qty.String()).
		Float64("price", price).
		Msg("simulated fill")

	if t.trades == nil {
		return
	}
	rec := storage.TradeRecord{
		At:         at,
		Instrument: instrument,
		Market:     market,
		Side:       side,
		Qty:        qty,
		Price:      decimal.NewFromFloat(price),
	}
	if err := t.trades.InsertTrade(ctx, rec); err != nil {
		t.logger.Warn().Err(err).Str("instrument", instrument).Msg("trade ledger append failed")
	}
}
