package marketfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	"MarketHub/internal/service/quality"
	"MarketHub/pkg/logger"
)

func feedFixture(t *testing.T) (*httptest.Server, int64) {
	t.Helper()
	exp := time.Now().AddDate(0, 0, 14).UTC().Truncate(24 * time.Hour).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		if symbol == "MISSING" {
			fmt.Fprint(w, `{"chart":{"result":[],"error":{"code":"Not Found","description":"No data found"}}}`)
			return
		}
		now := time.Now().Unix()
		fmt.Fprintf(w, `{"chart":{"result":[{
			"meta":{"symbol":"%s","regularMarketPrice":598.42,"chartPreviousClose":597.17,
			        "regularMarketDayHigh":599.10,"regularMarketDayLow":596.20,
			        "regularMarketVolume":1000000},
			"timestamp":[%d,%d],
			"indicators":{"quote":[{"open":[596.8,597.5],"high":[597.9,598.6],
			  "low":[596.2,597.1],"close":[597.4,598.42],"volume":[40000,35000]}]}
		}],"error":null}}`, symbol, now-600, now-300)
	})
	mux.HandleFunc("/v7/finance/options/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"optionChain":{"result":[{
			"underlyingSymbol":"SPY",
			"expirationDates":[%d],
			"quote":{"regularMarketPrice":598.42},
			"options":[{"expirationDate":%d,
			  "calls":[{"contractSymbol":"SPY_C600","strike":600,"bid":1.00,"ask":1.10,
			            "lastPrice":1.04,"volume":1200,"openInterest":5400,
			            "impliedVolatility":35.0,"expiration":%d}],
			  "puts":[{"contractSymbol":"SPY_P595","strike":595,"bid":0.90,"ask":0.98,
			           "lastPrice":0.95,"volume":900,"openInterest":4100,
			           "impliedVolatility":38.5,"expiration":%d}]
			}]
		}],"error":null}}`, exp, exp, exp, exp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, exp
}

func newFeedAdapter(srv *httptest.Server) *Adapter {
	client := NewClient(srv.URL, "", time.Second, 1)
	engine := quality.NewEngine(quality.DefaultThresholds())
	return NewAdapter(client, engine, nil, logger.Nop())
}

func TestFeedChainPercentIV(t *testing.T) {
	srv, exp := feedFixture(t)
	a := newFeedAdapter(srv)

	ch, err := a.GetOptionChain(context.Background(), "SPY", nil)
	if err != nil {
		t.Fatalf("GetOptionChain: %v", err)
	}
	if len(ch.Contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(ch.Contracts))
	}
	if ch.UnderlyingPrice != 598.42 {
		t.Fatalf("unexpected underlying price %v", ch.UnderlyingPrice)
	}
	if ch.Quality.Source != models.SourceSecondary {
		t.Fatalf("expected secondary source, got %s", ch.Quality.Source)
	}

	call := ch.Contracts[0]
	// Percent-encoded vendor IV lands as a decimal.
	if call.Greeks.IV != 0.35 {
		t.Fatalf("expected IV 0.35, got %v", call.Greeks.IV)
	}
	wantExp := time.Unix(exp, 0).UTC().Format("2006-01-02")
	if call.Expiration != wantExp {
		t.Fatalf("expected expiration %s, got %s", wantExp, call.Expiration)
	}
}

func TestFeedEquityQuoteFromChartMeta(t *testing.T) {
	srv, _ := feedFixture(t)
	a := newFeedAdapter(srv)

	q, err := a.GetEquityQuote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetEquityQuote: %v", err)
	}
	if q.Price != 598.42 || q.Volume != 1000000 {
		t.Fatalf("unexpected quote %+v", q)
	}
	want := (598.42 - 597.17) / 597.17 * 100
	if diff := q.ChangePercent - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected change percent %v, got %v", want, q.ChangePercent)
	}
	if q.Quality.Source != models.SourceSecondary {
		t.Fatalf("expected secondary source, got %s", q.Quality.Source)
	}
}

func TestFeedCandlesFromChart(t *testing.T) {
	srv, _ := feedFixture(t)
	a := newFeedAdapter(srv)

	to := time.Now()
	candles, err := a.GetCandles(context.Background(), "SPY", repository.TF5m, to.Add(-time.Hour), to, 0)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[1].Close != 598.42 || candles[1].Volume != 35000 {
		t.Fatalf("unexpected last candle %+v", candles[1])
	}
}

func TestFeedChartNotFound(t *testing.T) {
	srv, _ := feedFixture(t)
	a := newFeedAdapter(srv)

	_, err := a.GetEquityQuote(context.Background(), "MISSING")
	var pe *models.DataProviderError
	if !errors.As(err, &pe) || pe.Code != models.ErrCodeNotFound {
		t.Fatalf("expected not-found provider error, got %v", err)
	}
}

func TestFeedFlowUnavailable(t *testing.T) {
	srv, _ := feedFixture(t)
	a := newFeedAdapter(srv)

	_, err := a.GetFlowData(context.Background(), "SPY", nil)
	var pe *models.DataProviderError
	if !errors.As(err, &pe) || pe.Code != models.ErrCodeNotFound {
		t.Fatalf("expected not-found provider error, got %v", err)
	}
}

func TestFeedStreamingUnsupported(t *testing.T) {
	srv, _ := feedFixture(t)
	a := newFeedAdapter(srv)

	if _, err := a.SubscribeToChain("SPY", func(*models.OptionChain) {}); !errors.Is(err, models.ErrStreamingUnsupported) {
		t.Fatalf("chain: expected streaming unsupported, got %v", err)
	}
	if _, err := a.SubscribeToEquity("SPY", func(*models.EquityQuote) {}); !errors.Is(err, models.ErrStreamingUnsupported) {
		t.Fatalf("equity: expected streaming unsupported, got %v", err)
	}
	if _, err := a.SubscribeToFlow("SPY", func(*models.FlowData) {}); !errors.Is(err, models.ErrStreamingUnsupported) {
		t.Fatalf("flow: expected streaming unsupported, got %v", err)
	}
}
