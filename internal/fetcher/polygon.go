package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PolygonOptions parameterise the Polygon REST client.
type PolygonOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// ExpiryDays bounds how far out option expiries are picked.
	ExpiryDays int
}

// Polygon fetches last trades for equities and option contracts.
type Polygon struct {
	opts    PolygonOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewPolygon constructs a Polygon provider.
func NewPolygon(opts PolygonOptions, logger zerolog.Logger) *Polygon {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.polygon.io"
	}
	return &Polygon{
		opts:    opts,
		logger:  logger.With().Str("component", "polygon_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the provider in persisted ticks.
func (p *Polygon) Name() string { return "polygon" }

type polygonLastTrade struct {
	Results struct {
		Price     *float64 `json:"p"`
		Timestamp int64    `json:"t"`
	} `json:"results"`
	Status string `json:"status"`
}

// LatestPrice fetches the last trade for a stock ticker.
func (p *Polygon) LatestPrice(ctx context.Context, symbol string) (PricePoint, error) {
	return p.lastTrade(ctx, strings.ToUpper(symbol))
}

// LastOptionPrice fetches the last trade for an option contract.
func (p *Polygon) LastOptionPrice(ctx context.Context, contractID string) (float64, error) {
	point, err := p.lastTrade(ctx, "O:"+contractID)
	if err != nil {
		return 0, err
	}
	return point.Price, nil
}

func (p *Polygon) lastTrade(ctx context.Context, path string) (PricePoint, error) {
	if p.opts.APIKey == "" {
		return PricePoint{}, errors.New("polygon api key not configured")
	}

	endpoint := fmt.Sprintf("%s/v2/last/trade/%s?apiKey=%s", p.baseURL, url.PathEscape(path), url.QueryEscape(p.opts.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PricePoint{}, fmt.Errorf("create polygon request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return PricePoint{}, fmt.Errorf("send polygon request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return PricePoint{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return PricePoint{}, fmt.Errorf("polygon api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed polygonLastTrade
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return PricePoint{}, fmt.Errorf("decode polygon response: %w", err)
	}
	if parsed.Results.Price == nil {
		return PricePoint{}, ErrPriceUnavailable
	}

	observed := time.Now().UTC()
	if parsed.Results.Timestamp > 0 {
		observed = time.Unix(0, parsed.Results.Timestamp).UTC()
	}

	return PricePoint{
		Instrument: strings.TrimPrefix(path, "O:"),
		Price:      *parsed.Results.Price,
		ObservedAt: observed,
		Source:     p.Name(),
	}, nil
}

// ListContracts builds the at-the-money ±1 strike ladder expiring on the next
// Friday, both sides. Contract IDs follow the exchange's compact layout.
func (p *Polygon) ListContracts(ctx context.Context, underlying string) ([]OptionContract, error) {
	underlying = strings.ToUpper(underlying)
	last, err := p.LatestPrice(ctx, underlying)
	if err != nil {
		return nil, err
	}

	atm := math.Round(last.Price)
	strikes := []float64{atm, atm + 1, atm - 1}
	expiry := nextFriday(time.Now().UTC()).Format("2006-01-02")

	contracts := make([]OptionContract, 0, len(strikes)*2)
	for _, strike := range strikes {
		for _, side := range []string{"C", "P"} {
			id := fmt.Sprintf("%s%s%s%08d", underlying, strings.ReplaceAll(expiry, "-", ""), side, int(strike))
			contracts = append(contracts, OptionContract{
				Underlying: underlying,
				ID:         id,
				Side:       side,
				Strike:     strike,
				Expiry:     expiry,
			})
		}
	}
	return contracts, nil
}

func nextFriday(now time.Time) time.Time {
	daysAhead := (time.Friday - now.Weekday() + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return now.AddDate(0, 0, int(daysAhead))
}

var _ PriceProvider = (*Polygon)(nil)
var _ OptionProvider = (*Polygon)(nil)
