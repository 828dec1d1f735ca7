package tradier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/service/quality"
	"MarketHub/pkg/logger"
)

// vendorFixture serves the vendor REST surface with canned payloads and
// records which chain expirations were requested.
type vendorFixture struct {
	srv *httptest.Server

	expirations []string
	chainCalls  []string
	quoteCalls  int
	failQuotes  int
}

func newVendorFixture(t *testing.T) *vendorFixture {
	t.Helper()
	f := &vendorFixture{}

	now := time.Now()
	for i := 1; i <= 3; i++ {
		f.expirations = append(f.expirations, now.AddDate(0, 0, 14*i).Format("2006-01-02"))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets/options/expirations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		fmt.Fprintf(w, `{"expirations":{"date":["%s","%s","%s"]}}`,
			f.expirations[0], f.expirations[1], f.expirations[2])
	})
	mux.HandleFunc("/v1/markets/options/chains", func(w http.ResponseWriter, r *http.Request) {
		exp := r.URL.Query().Get("expiration")
		f.chainCalls = append(f.chainCalls, exp)
		fmt.Fprintf(w, `{"options":{"option":[
			{"symbol":"SPY%sC00600000","underlying":"SPY","strike":600,"expiration_date":"%s",
			 "option_type":"call","bid":1.00,"ask":1.10,"last":1.04,"bidsize":12,"asksize":9,
			 "volume":1200,"open_interest":5400,
			 "greeks":{"delta":0.31,"gamma":0.02,"theta":-0.05,"vega":0.12,"rho":0.01,
			           "mid_iv":0.42,"bid_iv":0.41,"ask_iv":0.43}},
			{"symbol":"SPY%sP00595000","underlying":"SPY","strike":595,"expiration_date":"%s",
			 "option_type":"put","bid":0.90,"ask":0.98,"last":0.95,"bidsize":8,"asksize":11,
			 "volume":900,"open_interest":4100,
			 "greeks":{"delta":-0.28,"gamma":0.02,"theta":-0.04,"vega":0.11,"rho":-0.01,
			           "mid_iv":0.39,"bid_iv":0.38,"ask_iv":0.40}}
		]}}`, exp, exp, exp, exp)
	})
	mux.HandleFunc("/v1/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		f.quoteCalls++
		if f.failQuotes > 0 {
			f.failQuotes--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// Single-quote responses come back as a bare object, not a list.
		fmt.Fprint(w, `{"quotes":{"quote":
			{"symbol":"SPY","last":598.42,"change":1.25,"change_percentage":0.21,
			 "open":596.80,"high":599.10,"low":596.20,"prevclose":597.17,
			 "bid":598.40,"ask":598.44,"volume":1000000}}}`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestAdapter(f *vendorFixture) *Adapter {
	client := NewClient(f.srv.URL, "test-key", time.Second, 2)
	engine := quality.NewEngine(quality.DefaultThresholds())
	return NewAdapter(client, nil, engine, nil, logger.Nop())
}

func TestAdapterChainNormalization(t *testing.T) {
	f := newVendorFixture(t)
	a := newTestAdapter(f)

	ch, err := a.GetOptionChain(context.Background(), "SPY", nil)
	if err != nil {
		t.Fatalf("GetOptionChain: %v", err)
	}

	// Only the two nearest expirations are fanned out.
	if len(f.chainCalls) != 2 {
		t.Fatalf("expected 2 chain fetches, got %v", f.chainCalls)
	}
	if f.chainCalls[0] != f.expirations[0] || f.chainCalls[1] != f.expirations[1] {
		t.Fatalf("expected nearest expirations first, got %v", f.chainCalls)
	}

	if ch.Underlying != "SPY" || len(ch.Contracts) != 4 {
		t.Fatalf("unexpected chain: underlying=%s contracts=%d", ch.Underlying, len(ch.Contracts))
	}
	if ch.UnderlyingPrice != 598.42 {
		t.Fatalf("expected underlying price from quotes, got %v", ch.UnderlyingPrice)
	}
	if ch.Quality.Source != models.SourcePrimary {
		t.Fatalf("expected primary source, got %s", ch.Quality.Source)
	}

	c := ch.Contracts[0]
	if c.Type != models.OptionCall || c.Strike != 600 {
		t.Fatalf("unexpected first contract %+v", c)
	}
	if c.Greeks.IV != 0.42 {
		t.Fatalf("decimal IV must pass through unchanged, got %v", c.Greeks.IV)
	}
	if math.Abs(c.Quote.Mid-1.05) > 1e-9 {
		t.Fatalf("expected mid 1.05, got %v", c.Quote.Mid)
	}
	if c.DTE <= 0 {
		t.Fatalf("expected positive DTE, got %d", c.DTE)
	}
}

func TestAdapterChainCached(t *testing.T) {
	f := newVendorFixture(t)
	a := newTestAdapter(f)

	if _, err := a.GetOptionChain(context.Background(), "SPY", nil); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	calls := len(f.chainCalls)
	if _, err := a.GetOptionChain(context.Background(), "SPY", nil); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(f.chainCalls) != calls {
		t.Fatalf("expected cached chain, got %d extra fetches", len(f.chainCalls)-calls)
	}
}

func TestAdapterContractLookup(t *testing.T) {
	f := newVendorFixture(t)
	a := newTestAdapter(f)
	exp := f.expirations[0]

	c, err := a.GetOptionContract(context.Background(), "SPY", 595, exp, models.OptionPut)
	if err != nil {
		t.Fatalf("GetOptionContract: %v", err)
	}
	if c.Type != models.OptionPut || c.Strike != 595 || c.Expiration != exp {
		t.Fatalf("unexpected contract %+v", c)
	}

	_, err = a.GetOptionContract(context.Background(), "SPY", 610, exp, models.OptionCall)
	var pe *models.DataProviderError
	if !errors.As(err, &pe) || pe.Code != models.ErrCodeNotFound {
		t.Fatalf("expected not-found provider error, got %v", err)
	}
}

func TestAdapterEquityQuote(t *testing.T) {
	f := newVendorFixture(t)
	a := newTestAdapter(f)

	q, err := a.GetEquityQuote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetEquityQuote: %v", err)
	}
	if q.Symbol != "SPY" || q.Price != 598.42 || q.Bid != 598.40 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.Quality.Source != models.SourcePrimary {
		t.Fatalf("expected primary source, got %s", q.Quality.Source)
	}
	if q.Quality.Quality != models.QualityExcellent {
		t.Fatalf("clean quote must score excellent, got %s", q.Quality.Quality)
	}
}

func TestClientRetriesServerError(t *testing.T) {
	f := newVendorFixture(t)
	f.failQuotes = 1
	a := newTestAdapter(f)

	q, err := a.GetEquityQuote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if q.Price != 598.42 {
		t.Fatalf("unexpected price %v", q.Price)
	}
	if f.quoteCalls != 2 {
		t.Fatalf("expected one retry, got %d calls", f.quoteCalls)
	}
}

func TestWrapVendorErrStatusCodes(t *testing.T) {
	f := newVendorFixture(t)
	f.failQuotes = 10 // more failures than retries
	a := newTestAdapter(f)

	_, err := a.GetEquityQuote(context.Background(), "SPY")
	var pe *models.DataProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if pe.Code != models.ErrCodeHTTPStatus || pe.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping %+v", pe)
	}
}
