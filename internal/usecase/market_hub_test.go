package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	"MarketHub/pkg/logger"
)

func fullStub() *stubProvider {
	p := newStubProvider("hybrid")
	p.chainFn = func(u string) (*models.OptionChain, error) { return stubChain(u, models.SourcePrimary), nil }
	p.flowFn = func(u string) (*models.FlowData, error) { return stubFlow(u, models.SourcePrimary), nil }
	p.quoteFn = func(s string) (*models.EquityQuote, error) { return stubQuote(s, models.SourcePrimary), nil }
	p.indexFn = func(tickers []string) (map[string]*models.IndexSnapshot, error) {
		out := make(map[string]*models.IndexSnapshot, len(tickers))
		for _, tk := range tickers {
			out[tk] = stubIndex(tk, models.SourcePrimary)
		}
		return out, nil
	}
	return p
}

func newTestHub(p *stubProvider) *MarketHub {
	return NewMarketHub(p, nil, logger.Nop(), HubConfig{
		Watchlist:       []string{"SPY"},
		IndexTickers:    []string{"SPX"},
		RefreshInterval: time.Hour,
		BatchWindow:     20 * time.Millisecond,
		EnablePush:      false,
	})
}

func TestHubInitializeBuildsSnapshot(t *testing.T) {
	p := fullStub()
	h := newTestHub(p)

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	snap := h.Snapshot()
	require.Contains(t, snap.Chains, "SPY")
	require.Contains(t, snap.Flows, "SPY")
	require.Contains(t, snap.Equities, "SPY")
	require.Contains(t, snap.Indices, "SPX")
	require.Equal(t, []string{"SPY"}, h.Watchlist())

	require.Error(t, h.Initialize(context.Background()), "double initialize must fail")
}

func TestHubPublishesAllEntityTicks(t *testing.T) {
	p := fullStub()
	h := newTestHub(p)

	var mu sync.Mutex
	var ticks []*models.MarketDataTick
	done := make(chan struct{}, 1)
	h.SubscribeTick(func(tick *models.MarketDataTick) {
		mu.Lock()
		ticks = append(ticks, tick)
		n := len(ticks)
		mu.Unlock()
		if n == 4 {
			done <- struct{}{}
		}
	})

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		mu.Lock()
		n := len(ticks)
		mu.Unlock()
		t.Fatalf("expected 4 ticks, got %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	kinds := map[models.TickKind]bool{}
	for _, tick := range ticks {
		kinds[tick.Kind] = true
		require.Equal(t, models.TickKey(tick.Kind, tick.Symbol), tick.Key)
		require.False(t, tick.ReceivedAt.IsZero())
	}
	require.True(t, kinds[models.TickChain] && kinds[models.TickFlow] &&
		kinds[models.TickEquity] && kinds[models.TickIndex])
}

func TestHubAggregateQuality(t *testing.T) {
	p := fullStub()
	h := newTestHub(p)

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	// Confidences 85, 80, 100, 95 average to 90.
	s := h.Snapshot()
	require.Equal(t, models.SourceHybrid, s.Quality.Source)
	require.InDelta(t, 90, s.Quality.Confidence, 0.001)
	require.Equal(t, models.QualityExcellent, s.Quality.Quality)
	require.False(t, s.Quality.IsStale)
	require.False(t, s.UpdatedAt.IsZero())
}

func TestHubPolledTicksPublishImmediately(t *testing.T) {
	p := fullStub()
	// A batch window this wide would hold batched ticks for the whole
	// test; polled ticks must not wait on it.
	h := NewMarketHub(p, nil, logger.Nop(), HubConfig{
		Watchlist:       []string{"SPY"},
		IndexTickers:    []string{"SPX"},
		RefreshInterval: time.Hour,
		BatchWindow:     time.Hour,
	})

	var mu sync.Mutex
	var ticks []*models.MarketDataTick
	h.SubscribeTick(func(tick *models.MarketDataTick) {
		mu.Lock()
		ticks = append(ticks, tick)
		mu.Unlock()
	})

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	// Initialize's synchronous refresh already delivered everything.
	mu.Lock()
	n := len(ticks)
	mu.Unlock()
	require.Equal(t, 4, n)

	// Aggregate quality is populated before the first batch flush.
	require.InDelta(t, 90, h.Snapshot().Quality.Confidence, 0.001)
}

// pushStub streams equity quotes: it hands the subscription callback
// back to the test so pushes can be driven by hand.
type pushStub struct {
	*stubProvider
	equityPush chan repository.EquityCallback
}

func (s *pushStub) SubscribeToEquity(_ string, fn repository.EquityCallback) (repository.Unsubscribe, error) {
	s.equityPush <- fn
	return func() {}, nil
}

func TestHubBatchesPushedTicks(t *testing.T) {
	p := &pushStub{
		stubProvider: fullStub(),
		equityPush:   make(chan repository.EquityCallback, 1),
	}
	h := NewMarketHub(p, nil, logger.Nop(), HubConfig{
		Watchlist:       []string{"SPY"},
		RefreshInterval: time.Hour,
		BatchWindow:     20 * time.Millisecond,
		EnablePush:      true,
	})

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	var fn repository.EquityCallback
	select {
	case fn = <-p.equityPush:
	case <-time.After(time.Second):
		t.Fatalf("equity subscription never made")
	}

	var mu sync.Mutex
	var pushed []*models.EquityQuote
	h.SubscribeTick(func(tick *models.MarketDataTick) {
		if tick.Kind != models.TickEquity {
			return
		}
		mu.Lock()
		pushed = append(pushed, tick.Data.(*models.EquityQuote))
		mu.Unlock()
	})

	// Two pushes inside one window coalesce to the latest quote.
	q1 := stubQuote("SPY", models.SourcePrimary)
	q1.Price = 100
	q2 := stubQuote("SPY", models.SourcePrimary)
	q2.Price = 101
	fn(q1)
	fn(q2)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pushed) == 1 && pushed[0].Price == 101
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClearsSubscribers(t *testing.T) {
	p := fullStub()
	h := newTestHub(p)

	h.SubscribeTick(func(*models.MarketDataTick) {})
	h.SubscribeSnapshot(func(*models.MarketDataSnapshot) {})

	require.NoError(t, h.Initialize(context.Background()))
	require.NoError(t, h.Shutdown(context.Background()))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Empty(t, h.tickSubs)
	require.Empty(t, h.snapSubs)
	require.Empty(t, h.unsubs)
}

func TestHubUpdateWatchlistDiff(t *testing.T) {
	p := fullStub()
	h := newTestHub(p)

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	h.UpdateWatchlist(context.Background(), []string{"QQQ"})

	snap := h.Snapshot()
	require.NotContains(t, snap.Chains, "SPY")
	require.NotContains(t, snap.Equities, "SPY")
	require.NotContains(t, snap.Flows, "SPY")
	require.Contains(t, snap.Chains, "QQQ")
	require.Equal(t, []string{"QQQ"}, h.Watchlist())

	// Unchanged list is a no-op: no extra vendor calls.
	before := p.callCount("chain")
	h.UpdateWatchlist(context.Background(), []string{"QQQ"})
	require.Equal(t, before, p.callCount("chain"))
}

func TestHubIsolatesFailingSymbol(t *testing.T) {
	p := fullStub()
	p.chainFn = func(u string) (*models.OptionChain, error) {
		if u == "BAD" {
			return nil, errStubNotConfigured
		}
		return stubChain(u, models.SourcePrimary), nil
	}
	h := NewMarketHub(p, nil, logger.Nop(), HubConfig{
		Watchlist:       []string{"BAD", "SPY"},
		RefreshInterval: time.Hour,
		BatchWindow:     20 * time.Millisecond,
	})

	require.NoError(t, h.Initialize(context.Background()))
	defer h.Shutdown(context.Background())

	snap := h.Snapshot()
	require.NotContains(t, snap.Chains, "BAD")
	require.Contains(t, snap.Chains, "SPY")
	// The failing chain does not block the symbol's other entities.
	require.Contains(t, snap.Equities, "BAD")
}
