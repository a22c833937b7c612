package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ITADOptions parameterise the IsThereAnyDeal client.
type ITADOptions struct {
	APIKey  string
	BaseURL string
	Country string
	Timeout time.Duration
	// MaxEntries caps how many storefront offers are returned per slug.
	MaxEntries int
}

// ITAD aggregates game storefront prices via the IsThereAnyDeal API.
type ITAD struct {
	opts    ITADOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewITAD constructs the deal provider.
func NewITAD(opts ITADOptions, logger zerolog.Logger) *ITAD {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.isthereanydeal.com"
	}
	return &ITAD{
		opts:    opts,
		logger:  logger.With().Str("component", "itad_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the provider in persisted game prices.
func (i *ITAD) Name() string { return "itad" }

type itadPricesResponse struct {
	Data map[string]struct {
		List []struct {
			PriceNew float64 `json:"price_new"`
			PriceOld float64 `json:"price_old"`
			Shop     struct {
				Name string `json:"name"`
			} `json:"shop"`
			URL      string `json:"url"`
			IsLowest bool   `json:"is_lowest"`
		} `json:"list"`
	} `json:"data"`
}

// Deals lists current offers for a game slug, cheapest first as the API
// returns them. An unknown slug yields an empty list, not an error.
func (i *ITAD) Deals(ctx context.Context, slug string) ([]Deal, error) {
	if i.opts.APIKey == "" {
		return nil, errors.New("itad api key not configured")
	}

	country := i.opts.Country
	if country == "" {
		country = "US"
	}

	query := url.Values{}
	query.Set("key", i.opts.APIKey)
	query.Set("plains", slug)
	query.Set("region", strings.ToLower(country))
	query.Set("country", strings.ToUpper(country))

	endpoint := fmt.Sprintf("%s/v02/game/prices/?%s", i.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create itad request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send itad request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itad api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed itadPricesResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode itad response: %w", err)
	}

	entry, ok := parsed.Data[slug]
	if !ok {
		return nil, nil
	}

	max := i.opts.MaxEntries
	if max <= 0 {
		max = 3
	}

	deals := make([]Deal, 0, max)
	for idx, offer := range entry.List {
		if idx >= max {
			break
		}
		store := offer.Shop.Name
		if store == "" {
			store = "store"
		}
		deals = append(deals, Deal{
			Slug:     slug,
			Store:    store,
			PriceNew: offer.PriceNew,
			PriceOld: offer.PriceOld,
			URL:      offer.URL,
			IsLowest: offer.IsLowest,
		})
	}
	return deals, nil
}

var _ DealProvider = (*ITAD)(nil)
