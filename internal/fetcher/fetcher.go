package fetcher

import (
	"context"
	"errors"
	"time"
)

// ErrPriceUnavailable signals that a provider has no current price for an
// instrument. Watchers skip the tick instead of treating it as a failure.
var ErrPriceUnavailable = errors.New("fetcher: price unavailable")

// PricePoint is one observed price for an instrument.
type PricePoint struct {
	Instrument string
	Price      float64
	ObservedAt time.Time
	Source     string
}

// PriceProvider supplies the latest traded price for an instrument. The
// concrete backend is selected once at startup from available credentials.
type PriceProvider interface {
	Name() string
	LatestPrice(ctx context.Context, symbol string) (PricePoint, error)
}

// Deal is one storefront offer for a game.
type Deal struct {
	Slug     string
	Store    string
	PriceNew float64
	PriceOld float64
	URL      string
	IsLowest bool
}

// DealProvider lists current storefront offers for a game slug.
type DealProvider interface {
	Name() string
	Deals(ctx context.Context, slug string) ([]Deal, error)
}

// OptionContract identifies one listed option near the money.
type OptionContract struct {
	Underlying string
	ID         string
	Side       string // "C" or "P"
	Strike     float64
	Expiry     string // YYYY-MM-DD
}

// OptionProvider lists near-the-money contracts and quotes their last price.
type OptionProvider interface {
	ListContracts(ctx context.Context, underlying string) ([]OptionContract, error)
	LastOptionPrice(ctx context.Context, contractID string) (float64, error)
}
