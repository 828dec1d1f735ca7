package tradier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/service/ratelimit"
	phttp "MarketHub/pkg/http"
)

// VendorName identifies this vendor in errors, metrics and health state.
const VendorName = "tradier"

// Vendor request budget: 120 requests per minute, burst of 60.
const (
	rateBurst  = 60
	ratePerSec = 2
)

// Client is the raw REST client. It speaks vendor DTOs only; the adapter
// owns normalization.
type Client struct {
	http    *phttp.Client
	baseURL string
	apiKey  string
	retry   phttp.RetryPolicy
	limiter *ratelimit.Limiter
}

// NewClient creates a REST client for the vendor API.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		http:    phttp.NewClient(phttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		retry:   phttp.DefaultRetryPolicy(maxRetries),
		limiter: ratelimit.New(),
	}
}

func (c *Client) get(ctx context.Context, op, path string, query map[string][]string, dest interface{}) error {
	if !c.limiter.Allow(VendorName, rateBurst, ratePerSec) {
		return &models.DataProviderError{
			Vendor: VendorName,
			Code:   models.ErrCodeRateLimited,
			Err:    fmt.Errorf("%s: client-side request budget exhausted", op),
		}
	}
	err := c.http.SendAndParseRetry(ctx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     map[string]string{"Authorization": "Bearer " + c.apiKey},
		QueryParams: query,
	}, dest, c.retry)
	if err != nil {
		return wrapVendorErr(op, err)
	}
	return nil
}

// OptionChain fetches the chain for one underlying and expiration,
// greeks included.
func (c *Client) OptionChain(ctx context.Context, underlying, expiration string) (optionList, error) {
	var resp chainResponse
	err := c.get(ctx, "chain", "/v1/markets/options/chains", map[string][]string{
		"symbol":     {underlying},
		"expiration": {expiration},
		"greeks":     {"true"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Options == nil {
		return nil, nil
	}
	return resp.Options.Option, nil
}

// Expirations fetches available expiration dates for one underlying.
func (c *Client) Expirations(ctx context.Context, underlying string) ([]string, error) {
	var resp expirationsResponse
	err := c.get(ctx, "expirations", "/v1/markets/options/expirations", map[string][]string{
		"symbol": {underlying},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Expirations == nil {
		return nil, nil
	}
	return resp.Expirations.Date, nil
}

// Quotes fetches quotes for a batch of symbols.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]quoteDTO, error) {
	var resp quotesResponse
	err := c.get(ctx, "quotes", "/v1/markets/quotes", map[string][]string{
		"symbols": {strings.Join(symbols, ",")},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Quotes == nil {
		return nil, nil
	}
	return resp.Quotes.Quote, nil
}

// TimeSales fetches intraday bars for a symbol at the given vendor interval.
func (c *Client) TimeSales(ctx context.Context, symbol, interval string, from, to time.Time) ([]timesalePoint, error) {
	var resp timesalesResponse
	err := c.get(ctx, "timesales", "/v1/markets/timesales", map[string][]string{
		"symbol":   {symbol},
		"interval": {interval},
		"start":    {from.Format("2006-01-02 15:04")},
		"end":      {to.Format("2006-01-02 15:04")},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Series == nil {
		return nil, nil
	}
	return resp.Series.Data, nil
}

// History fetches daily bars for a symbol.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]historyDay, error) {
	var resp historyResponse
	err := c.get(ctx, "history", "/v1/markets/history", map[string][]string{
		"symbol": {symbol},
		"start":  {from.Format("2006-01-02")},
		"end":    {to.Format("2006-01-02")},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.History == nil {
		return nil, nil
	}
	return resp.History.Day, nil
}

// wrapVendorErr maps transport failures onto provider error codes.
func wrapVendorErr(op string, err error) error {
	code := models.ErrCodeNetwork
	status := 0

	var se *phttp.StatusError
	switch {
	case errors.As(err, &se):
		status = se.Status
		switch {
		case se.Status == http.StatusTooManyRequests:
			code = models.ErrCodeRateLimited
		case se.Status == http.StatusNotFound:
			code = models.ErrCodeNotFound
		default:
			code = models.ErrCodeHTTPStatus
		}
	case errors.Is(err, context.DeadlineExceeded):
		code = models.ErrCodeTimeout
	}

	return &models.DataProviderError{
		Vendor: VendorName,
		Code:   code,
		Status: status,
		Err:    fmt.Errorf("%s: %w", op, err),
	}
}
