package marketfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/service/ratelimit"
	phttp "MarketHub/pkg/http"
)

// VendorName identifies this vendor in errors, metrics and health state.
const VendorName = "marketfeed"

// Public tier budget: 60 requests per minute, burst of 30.
const (
	rateBurst  = 30
	ratePerSec = 1
)

// Client is the raw REST client for the chart-style API.
type Client struct {
	http    *phttp.Client
	baseURL string
	apiKey  string
	retry   phttp.RetryPolicy
	limiter *ratelimit.Limiter
}

// NewClient creates a REST client. apiKey may be empty for the public tier.
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
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["X-API-Key"] = c.apiKey
	}
	err := c.http.SendAndParseRetry(ctx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     headers,
		QueryParams: query,
	}, dest, c.retry)
	if err != nil {
		return wrapVendorErr(op, err)
	}
	return nil
}

// Chart fetches a candle series plus quote metadata for one symbol.
func (c *Client) Chart(ctx context.Context, symbol, interval string, from, to time.Time) (*chartResult, error) {
	var resp chartResponse
	err := c.get(ctx, "chart", "/v8/finance/chart/"+symbol, map[string][]string{
		"interval": {interval},
		"period1":  {strconv.FormatInt(from.Unix(), 10)},
		"period2":  {strconv.FormatInt(to.Unix(), 10)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, apiErr("chart", resp.Chart.Error)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, &models.DataProviderError{
			Vendor: VendorName,
			Code:   models.ErrCodeNotFound,
			Err:    fmt.Errorf("chart: empty result for %s", symbol),
		}
	}
	return &resp.Chart.Result[0], nil
}

// Options fetches the chain for one underlying. A zero date returns the
// nearest expiration plus the full expiration list.
func (c *Client) Options(ctx context.Context, symbol string, date int64) (*chainResult, error) {
	query := map[string][]string{}
	if date > 0 {
		query["date"] = []string{strconv.FormatInt(date, 10)}
	}
	var resp optionsResponse
	err := c.get(ctx, "options", "/v7/finance/options/"+symbol, query, &resp)
	if err != nil {
		return nil, err
	}
	if resp.OptionChain.Error != nil {
		return nil, apiErr("options", resp.OptionChain.Error)
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, &models.DataProviderError{
			Vendor: VendorName,
			Code:   models.ErrCodeNotFound,
			Err:    fmt.Errorf("options: empty result for %s", symbol),
		}
	}
	return &resp.OptionChain.Result[0], nil
}

func apiErr(op string, e *apiError) error {
	code := models.ErrCodeMalformed
	if strings.EqualFold(e.Code, "not found") {
		code = models.ErrCodeNotFound
	}
	return &models.DataProviderError{
		Vendor: VendorName,
		Code:   code,
		Err:    fmt.Errorf("%s: %s: %s", op, e.Code, e.Description),
	}
}

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
