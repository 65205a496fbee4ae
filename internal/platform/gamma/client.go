// Package gamma is the REST client for the Polymarket Gamma API, which
// supplies the market catalogue the resolver depends on.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// Client is the Gamma API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMarkets returns one page of active markets ordered by volume.
func (g *Client) GetMarkets(ctx context.Context, limit, offset int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volumeNum")
	params.Set("ascending", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("gamma: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("gamma: decode markets: %w", err)
	}
	return apiMarkets, nil
}

// doGet performs a GET request against the Gamma API and returns the raw
// response body.
func (g *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// BuildTokenMap converts a batch of Gamma markets into domain markets plus
// the token catalogue used by the resolver. Markets without parseable CLOB
// token IDs are skipped; binary markets map clobTokenIds[0] to NO and
// clobTokenIds[1] to YES.
func BuildTokenMap(apiMarkets []APIMarket) ([]domain.Market, domain.TokenMap) {
	markets := make([]domain.Market, 0, len(apiMarkets))
	tokenMap := make(domain.TokenMap, len(apiMarkets)*2)

	for i := range apiMarkets {
		m, ok := apiMarkets[i].ToDomainMarket()
		if !ok {
			continue
		}
		markets = append(markets, m)
		tokenMap[m.TokenNo] = domain.TokenInfo{MarketID: m.ID, Outcome: domain.OutcomeNo}
		tokenMap[m.TokenYes] = domain.TokenInfo{MarketID: m.ID, Outcome: domain.OutcomeYes}
	}

	return markets, tokenMap
}
