package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source is a ranked price feed. Lower priority numbers are tried first.
// Fetch may return a subset of the requested symbols; symbols the source does
// not support are simply absent from the result.
type Source interface {
	Name() string
	Priority() int
	Fetch(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// HTTPSource fetches spot prices from a JSON price feed endpoint. The feed is
// expected to answer GET <baseURL>?symbols=BTC,ETH with a body like
// {"BTC": "60123.45", "ETH": "2450.10"}.
type HTTPSource struct {
	name     string
	priority int
	baseURL  string
	client   *http.Client
}

// NewHTTPSource builds a price feed client with a bounded per-call timeout.
func NewHTTPSource(name string, priority int, baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		name:     name,
		priority: priority,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name identifies the feed in bookkeeping and price history rows.
func (s *HTTPSource) Name() string { return s.name }

// Priority orders the feed among its peers.
func (s *HTTPSource) Priority() int { return s.priority }

// Fetch requests spot prices for the given symbols.
func (s *HTTPSource) Fetch(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s?symbols=%s", s.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", s.name, resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", s.name, err)
	}

	prices := make(map[string]decimal.Decimal, len(raw))
	for symbol, value := range raw {
		price, err := decimal.NewFromString(value)
		if err != nil {
			// A malformed price for one symbol must not poison the batch.
			continue
		}
		prices[strings.ToUpper(symbol)] = price
	}
	return prices, nil
}

// StablecoinSource answers a fixed 1.00 USD for pegged assets so that rate
// lookups for stablecoins never wait on a remote feed.
type StablecoinSource struct {
	priority int
	pegged   map[string]struct{}
}

// NewStablecoinSource pins the given symbols to 1.00.
func NewStablecoinSource(priority int, symbols ...string) *StablecoinSource {
	pegged := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		pegged[strings.ToUpper(s)] = struct{}{}
	}
	return &StablecoinSource{priority: priority, pegged: pegged}
}

// Name identifies the synthetic feed.
func (s *StablecoinSource) Name() string { return "stablecoin-peg" }

// Priority orders the feed among its peers.
func (s *StablecoinSource) Priority() int { return s.priority }

// Fetch returns 1.00 for every pegged symbol in the request.
func (s *StablecoinSource) Fetch(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	prices := make(map[string]decimal.Decimal)
	for _, symbol := range symbols {
		if _, ok := s.pegged[strings.ToUpper(symbol)]; ok {
			prices[strings.ToUpper(symbol)] = one
		}
	}
	return prices, nil
}
