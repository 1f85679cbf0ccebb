package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"futuresquotes/internal/quote"
)

// chartResponse is the subset of /v8/finance/chart we read.
//
//	{
//	  "chart": {
//	    "result": [{"meta": {"symbol": "MNQ=F", "regularMarketPrice": 21012.5,
//	                         "chartPreviousClose": 20950.25, "regularMarketTime": 1736000000}}],
//	    "error": null
//	  }
//	}
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *chartError `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	ChartPreviousClose *float64 `json:"chartPreviousClose"`
	PreviousClose      *float64 `json:"previousClose"`
	RegularMarketTime  *int64   `json:"regularMarketTime"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Fetch retrieves the current quote for symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	s, err := c.fetch(ctx, symbol)
	if err != nil {
		return quote.Snapshot{}, &quote.ProviderError{Provider: name, Symbol: symbol, Err: err}
	}
	return s, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	if strings.TrimSpace(symbol) == "" {
		return quote.Snapshot{}, fmt.Errorf("%w: empty symbol", quote.ErrUnknownSymbol)
	}

	// One daily bar is enough: the quote lives in the chart meta block.
	q := url.Values{"interval": {"1d"}, "range": {"1d"}}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return quote.Snapshot{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return quote.Snapshot{}, fmt.Errorf("%w: performing request: %v", quote.ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusNotFound:
		return quote.Snapshot{}, quote.ErrUnknownSymbol
	case res.StatusCode == http.StatusTooManyRequests:
		return quote.Snapshot{}, quote.ErrRateLimited
	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return quote.Snapshot{}, fmt.Errorf("%w: unexpected status code %d: %s", quote.ErrUnavailable, res.StatusCode, string(b))
	}

	var body chartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return quote.Snapshot{}, fmt.Errorf("%w: decoding chart response: %v", quote.ErrUnavailable, err)
	}
	if e := body.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return quote.Snapshot{}, fmt.Errorf("%w: %s", quote.ErrUnknownSymbol, e.Description)
		}
		return quote.Snapshot{}, fmt.Errorf("%w: %s: %s", quote.ErrUnavailable, e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 {
		return quote.Snapshot{}, quote.ErrUnknownSymbol
	}
	return snapshotFromMeta(body.Chart.Result[0].Meta), nil
}

func snapshotFromMeta(m chartMeta) quote.Snapshot {
	var s quote.Snapshot
	if m.RegularMarketTime != nil && *m.RegularMarketTime > 0 {
		s.AsOf = time.Unix(*m.RegularMarketTime, 0).UTC()
	}
	if m.RegularMarketPrice == nil {
		return s
	}
	price := *m.RegularMarketPrice
	s.Price = formatFloat(price)

	prev := m.ChartPreviousClose
	if prev == nil {
		prev = m.PreviousClose
	}
	if prev != nil && *prev != 0 {
		change := price - *prev
		s.Change = formatFloat(change)
		s.Percent = formatFloat(change / *prev * 100)
	}
	return s
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
