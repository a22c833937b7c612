package watcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/fetcher"
	"desk-sentinel/internal/signal"
	"desk-sentinel/internal/storage"
)

type fakePriceProvider struct {
	prices map[string]float64
	errs   map[string]error
	calls  []string
}

func (f *fakePriceProvider) Name() string { return "fake" }

func (f *fakePriceProvider) LatestPrice(ctx context.Context, symbol string) (fetcher.PricePoint, error) {
	f.calls = append(f.calls, symbol)
	if err, ok := f.errs[symbol]; ok {
		return fetcher.PricePoint{}, err
	}
	return fetcher.PricePoint{
		Instrument: symbol,
		Price:      f.prices[symbol],
		ObservedAt: time.Now(),
		Source:     "fake",
	}, nil
}

type fakeDealProvider struct {
	deals map[string][]fetcher.Deal
	errs  map[string]error
}

func (f *fakeDealProvider) Name() string { return "fake" }

func (f *fakeDealProvider) Deals(ctx context.Context, slug string) ([]fetcher.Deal, error) {
	if err, ok := f.errs[slug]; ok {
		return nil, err
	}
	return f.deals[slug], nil
}

type recordingNotifier struct {
	fail   bool
	titles []string
}

func (r *recordingNotifier) SendText(ctx context.Context, body string) error {
	if r.fail {
		return errors.New("transport down")
	}
	r.titles = append(r.titles, body)
	return nil
}

func (r *recordingNotifier) SendStructured(ctx context.Context, title, description string, fields []alerting.Field) error {
	if r.fail {
		return errors.New("transport down")
	}
	r.titles = append(r.titles, title)
	return nil
}

var _ alerting.Notifier = (*recordingNotifier)(nil)

type recordingTradeStore struct {
	trades []storage.TradeRecord
}

func (r *recordingTradeStore) InsertTrade(ctx context.Context, rec storage.TradeRecord) error {
	r.trades = append(r.trades, rec)
	return nil
}

func openGate(t *testing.T) *alerting.Gate {
	t.Helper()
	return alerting.NewGate(alerting.GateOptions{Cooldown: 30 * time.Minute}, zerolog.Nop())
}

func TestStockTickSurvivesFailingInstrument(t *testing.T) {
	provider := &fakePriceProvider{
		prices: map[string]float64{"NVDA": 100, "JPM": 200},
		errs:   map[string]error{"QUBT": errors.New("provider exploded")},
	}
	w := NewStockWatcher(StockOptions{
		Provider:  provider,
		Notifier:  &recordingNotifier{},
		Gate:      openGate(t),
		Watchlist: []string{"NVDA", "QUBT", "JPM"},
		Logger:    zerolog.Nop(),
	})

	if err := w.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(provider.calls) != 3 {
		t.Fatalf("provider called %d times, want all 3 instruments", len(provider.calls))
	}
	// healthy instruments still accumulated state
	if w.seriesFor("NVDA").Len() != 1 || w.seriesFor("JPM").Len() != 1 {
		t.Fatal("healthy instruments did not record a point")
	}
	if w.seriesFor("QUBT").Len() != 0 {
		t.Fatal("failing instrument recorded a point")
	}
}

func TestStockUnavailablePriceSkipsQuietly(t *testing.T) {
	provider := &fakePriceProvider{
		errs: map[string]error{"NVDA": fetcher.ErrPriceUnavailable},
	}
	w := NewStockWatcher(StockOptions{
		Provider:  provider,
		Notifier:  &recordingNotifier{},
		Gate:      openGate(t),
		Watchlist: []string{"NVDA"},
		Logger:    zerolog.Nop(),
	})
	if err := w.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if w.seriesFor("NVDA").Len() != 0 {
		t.Fatal("unavailable price recorded a point")
	}
}

func TestStockSignalAlertGoesThroughGate(t *testing.T) {
	// Feed a declining series so rsi_oversold fires once enough points exist.
	provider := &fakePriceProvider{prices: map[string]float64{"NVDA": 100}}
	notifier := &recordingNotifier{}
	w := NewStockWatcher(StockOptions{
		Provider:  provider,
		Notifier:  notifier,
		Gate:      openGate(t),
		Watchlist: []string{"NVDA"},
		Logger:    zerolog.Nop(),
	})

	now := time.Now()
	for i := 0; i < 40; i++ {
		provider.prices["NVDA"] = 100 - float64(i)
		if err := w.Tick(context.Background(), now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}

	var oversold int
	for _, title := range notifier.titles {
		if strings.Contains(title, "rsi_oversold") {
			oversold++
		}
	}
	if oversold != 1 {
		t.Fatalf("rsi_oversold dispatched %d times over 40 ticks with 30m cooldown, want 1", oversold)
	}
}

func TestFailedDispatchLeavesCooldownOpen(t *testing.T) {
	gate := openGate(t)
	provider := &fakePriceProvider{prices: map[string]float64{"NVDA": 100}}
	notifier := &recordingNotifier{fail: true}
	w := NewStockWatcher(StockOptions{
		Provider:  provider,
		Notifier:  notifier,
		Gate:      gate,
		Watchlist: []string{"NVDA"},
		Logger:    zerolog.Nop(),
	})

	now := time.Now()
	for i := 0; i < 40; i++ {
		provider.prices["NVDA"] = 100 - float64(i)
		if err := w.Tick(context.Background(), now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}

	// transport was down the whole time, so the key was never marked and
	// the next successful tick may still send
	notifier.fail = false
	provider.prices["NVDA"] = 50
	if err := w.Tick(context.Background(), now.Add(41*time.Minute)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	var oversold int
	for _, title := range notifier.titles {
		if strings.Contains(title, "rsi_oversold") {
			oversold++
		}
	}
	if oversold != 1 {
		t.Fatalf("recovered transport received %d oversold alerts, want 1", oversold)
	}
}

func TestGameWatcherAlertsOnDeepDiscount(t *testing.T) {
	provider := &fakeDealProvider{deals: map[string][]fetcher.Deal{
		"hades": {
			{Slug: "hades", Store: "Steam", PriceNew: 9.99, PriceOld: 24.99},
			{Slug: "hades", Store: "GOG", PriceNew: 23.00, PriceOld: 24.99},
		},
	}}
	notifier := &recordingNotifier{}
	w := NewGameWatcher(GameOptions{
		Provider:     provider,
		Notifier:     notifier,
		Gate:         openGate(t),
		Slugs:        []string{"hades"},
		SaleFraction: 0.8,
		Logger:       zerolog.Nop(),
	})

	if err := w.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.titles) != 1 || !strings.Contains(notifier.titles[0], "Steam") {
		t.Fatalf("titles = %v, want one Steam sale alert", notifier.titles)
	}
}

func TestGameWatcherTrustsAllTimeLowFlag(t *testing.T) {
	provider := &fakeDealProvider{deals: map[string][]fetcher.Deal{
		"hades": {
			// shallow discount but flagged lowest ever by the provider
			{Slug: "hades", Store: "Steam", PriceNew: 22.00, PriceOld: 24.99, IsLowest: true},
		},
	}}
	notifier := &recordingNotifier{}
	w := NewGameWatcher(GameOptions{
		Provider:     provider,
		Notifier:     notifier,
		Gate:         openGate(t),
		Slugs:        []string{"hades"},
		SaleFraction: 0.8,
		Logger:       zerolog.Nop(),
	})

	if err := w.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.titles) != 1 {
		t.Fatalf("titles = %v, want one all-time-low alert", notifier.titles)
	}
}

func TestGameWatcherSurvivesFailingSlug(t *testing.T) {
	provider := &fakeDealProvider{
		errs: map[string]error{"hades": errors.New("api down")},
		deals: map[string][]fetcher.Deal{
			"cyberpunk-2077": {{Slug: "cyberpunk-2077", Store: "GOG", PriceNew: 10, PriceOld: 60}},
		},
	}
	notifier := &recordingNotifier{}
	w := NewGameWatcher(GameOptions{
		Provider: provider,
		Notifier: notifier,
		Gate:     openGate(t),
		Slugs:    []string{"hades", "cyberpunk-2077"},
		Logger:   zerolog.Nop(),
	})

	if err := w.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.titles) != 1 {
		t.Fatalf("titles = %v, want the healthy slug's alert", notifier.titles)
	}
}

func TestPaperTraderRoundTrip(t *testing.T) {
	store := &recordingTradeStore{}
	trader := NewPaperTrader(store, zerolog.Nop())
	ctx := context.Background()
	at := time.Now()

	oversold := []signal.Signal{{Kind: signal.RSIOversold, Value: 25, Instrument: "NVDA", At: at}}
	overbought := []signal.Signal{{Kind: signal.RSIOverbought, Value: 75, Instrument: "NVDA", At: at}}

	trader.OnSignals(ctx, "stock", "NVDA", 100, at, oversold)
	if !trader.Position("NVDA").IsPositive() {
		t.Fatal("oversold signal did not open a position")
	}

	// a second oversold does not pyramid
	trader.OnSignals(ctx, "stock", "NVDA", 95, at, oversold)
	if len(store.trades) != 1 {
		t.Fatalf("trades = %d, want 1 after repeat buy signal", len(store.trades))
	}

	trader.OnSignals(ctx, "stock", "NVDA", 130, at, overbought)
	if trader.Position("NVDA").IsPositive() {
		t.Fatal("overbought signal did not close the position")
	}
	if len(store.trades) != 2 {
		t.Fatalf("trades = %d, want buy then sell", len(store.trades))
	}
	if store.trades[0].Side != "BUY" || store.trades[1].Side != "SELL" {
		t.Fatalf("sides = %s,%s", store.trades[0].Side, store.trades[1].Side)
	}
	if !store.trades[0].Qty.Equal(store.trades[1].Qty) {
		t.Fatal("sell quantity does not match the open position")
	}

	// selling flat is a no-op
	trader.OnSignals(ctx, "stock", "NVDA", 130, at, overbought)
	if len(store.trades) != 2 {
		t.Fatalf("trades = %d after flat sell, want 2", len(store.trades))
	}
}
