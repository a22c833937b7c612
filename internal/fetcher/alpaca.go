package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AlpacaOptions parameterise the Alpaca market-data client.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
}

// Alpaca fetches latest trades from the Alpaca data API.
type Alpaca struct {
	opts    AlpacaOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAlpaca constructs an Alpaca provider.
func NewAlpaca(opts AlpacaOptions, logger zerolog.Logger) *Alpaca {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://data.alpaca.markets"
	}
	return &Alpaca{
		opts:    opts,
		logger:  logger.With().Str("component", "alpaca_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the provider in persisted ticks.
func (a *Alpaca) Name() string { return "alpaca" }

type alpacaLatestTrade struct {
	Trade struct {
		Price     float64   `json:"p"`
		Timestamp time.Time `json:"t"`
	} `json:"trade"`
}

// LatestPrice fetches the latest trade for a stock symbol.
func (a *Alpaca) LatestPrice(ctx context.Context, symbol string) (PricePoint, error) {
	if a.opts.APIKey == "" || a.opts.APISecret == "" {
		return PricePoint{}, errors.New("alpaca credentials not configured")
	}

	symbol = strings.ToUpper(symbol)
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", a.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PricePoint{}, fmt.Errorf("create alpaca request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.opts.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.opts.APISecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return PricePoint{}, fmt.Errorf("send alpaca request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return PricePoint{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return PricePoint{}, ErrPriceUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return PricePoint{}, fmt.Errorf("alpaca api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed alpacaLatestTrade
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return PricePoint{}, fmt.Errorf("decode alpaca response: %w", err)
	}
	if parsed.Trade.Price == 0 {
		return PricePoint{}, ErrPriceUnavailable
	}

	observed := parsed.Trade.Timestamp
	if observed.IsZero() {
		observed = time.Now().UTC()
	}

	return PricePoint{
		Instrument: symbol,
		Price:      parsed.Trade.Price,
		ObservedAt: observed.UTC(),
		Source:     a.Name(),
	}, nil
}

var _ PriceProvider = (*Alpaca)(nil)
