package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/service/quality"
	"MarketHub/pkg/logger"
)

func newTestRouter(primary, secondary *stubProvider) *HybridRouter {
	engine := quality.NewEngine(quality.DefaultThresholds())
	return NewHybridRouter(primary, secondary, engine, nil, logger.Nop())
}

func TestRouterServesPrimary(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.chainFn = func(u string) (*models.OptionChain, error) {
		return stubChain(u, models.SourcePrimary), nil
	}
	secondary := newStubProvider("marketfeed")

	r := newTestRouter(primary, secondary)
	ch, err := r.GetOptionChain(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, models.SourcePrimary, ch.Quality.Source)
	require.Empty(t, ch.Quality.FallbackReason)
	require.Zero(t, secondary.callCount("chain"))
}

func TestRouterFallsBackOnPrimaryError(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.chainFn = func(string) (*models.OptionChain, error) {
		return nil, errors.New("connection refused")
	}
	secondary := newStubProvider("marketfeed")
	secondary.chainFn = func(u string) (*models.OptionChain, error) {
		return stubChain(u, models.SourceSecondary), nil
	}

	r := newTestRouter(primary, secondary)
	ch, err := r.GetOptionChain(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, models.SourceSecondary, ch.Quality.Source)
	require.Equal(t, "primary_error", ch.Quality.FallbackReason)
}

func TestRouterFallsBackOnQualityRejection(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.chainFn = func(u string) (*models.OptionChain, error) {
		return &models.OptionChain{Underlying: u}, nil // empty chain
	}
	secondary := newStubProvider("marketfeed")
	secondary.chainFn = func(u string) (*models.OptionChain, error) {
		return stubChain(u, models.SourceSecondary), nil
	}

	r := newTestRouter(primary, secondary)
	ch, err := r.GetOptionChain(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, models.SourceSecondary, ch.Quality.Source)
	require.Equal(t, "quality_rejected", ch.Quality.FallbackReason)
}

func TestRouterServesDegradedPrimaryWhenSecondaryFails(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.chainFn = func(u string) (*models.OptionChain, error) {
		ch := stubChain(u, models.SourcePrimary)
		ch.Quality.Quality = models.QualityPoor
		ch.Quality.Confidence = 10
		return ch, nil
	}
	secondary := newStubProvider("marketfeed")
	secondary.chainFn = func(string) (*models.OptionChain, error) {
		return nil, errors.New("vendor down")
	}

	r := newTestRouter(primary, secondary)
	ch, err := r.GetOptionChain(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, models.SourcePrimary, ch.Quality.Source)
	require.Equal(t, models.QualityPoor, ch.Quality.Quality)
}

func TestRouterAllProvidersFailed(t *testing.T) {
	primaryErr := errors.New("primary down")
	secondaryErr := errors.New("secondary down")
	primary := newStubProvider("tradier")
	primary.chainFn = func(string) (*models.OptionChain, error) { return nil, primaryErr }
	secondary := newStubProvider("marketfeed")
	secondary.chainFn = func(string) (*models.OptionChain, error) { return nil, secondaryErr }

	r := newTestRouter(primary, secondary)
	_, err := r.GetOptionChain(context.Background(), "SPY", nil)

	var all *models.AllProvidersFailedError
	require.ErrorAs(t, err, &all)
	require.Equal(t, "chain", all.Operation)
	require.ErrorIs(t, all.PrimaryErr, primaryErr)
	require.ErrorIs(t, all.SecondaryErr, secondaryErr)
}

func TestRouterHealthHysteresis(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.expirationsFn = func() ([]string, error) { return nil, errors.New("boom") }
	secondary := newStubProvider("marketfeed")
	secondary.expirationsFn = func() ([]string, error) { return []string{"2025-12-19"}, nil }

	r := newTestRouter(primary, secondary)

	for i := 0; i < models.UnhealthyAfter-1; i++ {
		_, err := r.GetExpirations(context.Background(), "SPY", nil)
		require.NoError(t, err)
		require.True(t, r.Health().PrimaryHealthy, "still healthy at %d errors", i+1)
	}

	_, err := r.GetExpirations(context.Background(), "SPY", nil)
	require.NoError(t, err)
	h := r.Health()
	require.False(t, h.PrimaryHealthy)
	require.True(t, h.CanFallback)
	require.Equal(t, models.UnhealthyAfter, h.Primary.ConsecutiveErrors)

	// One success flips the primary healthy again.
	primary.expirationsFn = func() ([]string, error) { return []string{"2025-12-19"}, nil }
	_, err = r.GetExpirations(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.True(t, r.Health().PrimaryHealthy)
}

func TestRouterFlowNeutralOnPrimaryError(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.flowFn = func(string) (*models.FlowData, error) { return nil, errors.New("no flow endpoint") }
	secondary := newStubProvider("marketfeed")

	r := newTestRouter(primary, secondary)
	f, err := r.GetFlowData(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, "SPY", f.Underlying)
	require.Equal(t, models.FlowNeutral, f.Sentiment)
	require.Equal(t, models.SourceHybrid, f.Quality.Source)
	require.Equal(t, float64(30), f.Quality.Confidence)
	require.Equal(t, "primary_error", f.Quality.FallbackReason)
	require.True(t, f.IsZeroSignal())
	require.Zero(t, secondary.callCount("flow"), "flow must never hit the secondary")
}

func TestRouterFlowNeutralOnZeroSignal(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.flowFn = func(u string) (*models.FlowData, error) {
		// Vendor answered, but with no volume or premium at all.
		return &models.FlowData{
			Underlying: u,
			Sentiment:  models.FlowNeutral,
			Quality: models.QualityFlags{
				Source:     models.SourcePrimary,
				Quality:    models.QualityExcellent,
				Confidence: 100,
			},
		}, nil
	}
	secondary := newStubProvider("marketfeed")

	r := newTestRouter(primary, secondary)
	f, err := r.GetFlowData(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, models.SourceHybrid, f.Quality.Source)
	require.Equal(t, models.QualityFair, f.Quality.Quality)
	require.Equal(t, float64(30), f.Quality.Confidence)
	require.Equal(t, "quality_rejected", f.Quality.FallbackReason)
	require.Contains(t, f.Quality.Warnings, "synthetic neutral flow")
	require.Equal(t, models.FlowNeutral, f.Sentiment)
}

func TestRouterExpirationsEmptyFallsBack(t *testing.T) {
	primary := newStubProvider("tradier")
	primary.expirationsFn = func() ([]string, error) { return nil, nil }
	secondary := newStubProvider("marketfeed")
	secondary.expirationsFn = func() ([]string, error) { return []string{"2025-12-19"}, nil }

	r := newTestRouter(primary, secondary)
	dates, err := r.GetExpirations(context.Background(), "SPY", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-12-19"}, dates)
}

func TestRouterSubscriptionsStayOnPrimary(t *testing.T) {
	primary := newStubProvider("tradier")
	secondary := newStubProvider("marketfeed")
	r := newTestRouter(primary, secondary)

	_, err := r.SubscribeToChain("SPY", func(*models.OptionChain) {})
	require.ErrorIs(t, err, models.ErrStreamingUnsupported)
	require.Equal(t, 1, primary.callCount("sub_chain"))
	require.Zero(t, secondary.callCount("sub_chain"))
}
