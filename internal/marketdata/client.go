package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papertrade/papertrade/internal/config"
	"github.com/shopspring/decimal"
)

// Client is the live Gateway implementation speaking the CoinGecko v3 wire
// shape. One method per remote endpoint, one failure-to-sentinel mapping each.
type Client struct {
	baseURL    string
	quote      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.MarketConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		quote:      cfg.QuoteCurrency,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *Client) Price(ctx context.Context, coinID string) (decimal.Decimal, bool) {
	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", c.quote)

	var body map[string]map[string]decimal.Decimal
	if err := c.getJSON(ctx, "/simple/price", params, &body); err != nil {
		c.log.Warn("price lookup failed", "coin", coinID, "error", err)
		return decimal.Zero, false
	}

	price, ok := body[coinID][c.quote]
	if !ok {
		c.log.Warn("coin missing from price response", "coin", coinID)
		return decimal.Zero, false
	}

	return price, true
}

func (c *Client) Trends(ctx context.Context, coinID, rng string) ([]PricePoint, bool) {
	days, ok := SupportedRanges[rng]
	if !ok {
		c.log.Warn("unsupported trend range", "range", rng)
		return nil, false
	}

	params := url.Values{}
	params.Set("vs_currency", c.quote)
	params.Set("days", days)
	params.Set("interval", "daily")

	var body struct {
		Prices [][]json.Number `json:"prices"`
	}
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", params, &body); err != nil {
		c.log.Warn("trends lookup failed", "coin", coinID, "error", err)
		return nil, false
	}
	if body.Prices == nil {
		c.log.Warn("prices series missing from chart response", "coin", coinID)
		return nil, false
	}

	series := make([]PricePoint, 0, len(body.Prices))
	for _, pair := range body.Prices {
		if len(pair) != 2 {
			continue
		}
		ms, err := pair[0].Int64()
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			continue
		}
		series = append(series, PricePoint{Time: time.UnixMilli(ms).UTC(), Price: price})
	}

	return series, true
}

func (c *Client) TopPerformers(ctx context.Context, limit int) []MarketEntry {
	params := url.Values{}
	params.Set("vs_currency", c.quote)
	params.Set("order", "price_change_percentage_24h_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")

	var entries []MarketEntry
	if err := c.getJSON(ctx, "/coins/markets", params, &entries); err != nil {
		c.log.Warn("top performers lookup failed", "error", err)
		return []MarketEntry{}
	}

	return entries
}

func (c *Client) Compare(ctx context.Context, coinA, coinB string) map[string]MarketEntry {
	params := url.Values{}
	params.Set("vs_currency", c.quote)
	params.Set("ids", coinA+","+coinB)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", "2")
	params.Set("page", "1")

	var entries []MarketEntry
	if err := c.getJSON(ctx, "/coins/markets", params, &entries); err != nil {
		c.log.Warn("compare lookup failed", "coins", coinA+","+coinB, "error", err)
		return map[string]MarketEntry{}
	}
	if len(entries) != 2 {
		c.log.Warn("compare response did not hold exactly two entries", "got", len(entries))
		return map[string]MarketEntry{}
	}

	return map[string]MarketEntry{
		entries[0].ID: entries[0],
		entries[1].ID: entries[1],
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
