// Package usecase holds the routing and consolidation layers that sit
// between vendor adapters and the outer surfaces (HTTP API, Kafka,
// ClickHouse).
package usecase

import (
	"context"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	"MarketHub/internal/service/quality"
	"MarketHub/pkg/logger"
)

// Fallback reasons attached to entities served by the secondary.
const (
	reasonPrimaryError    = "primary_error"
	reasonQualityRejected = "quality_rejected"
)

// HybridRouter fronts two vendor adapters with the same provider
// interface. Every read tries the primary first; the secondary serves
// only when the primary throws or returns data too poor to use.
// Subscriptions always stay on the primary.
type HybridRouter struct {
	primary   repository.MarketDataProvider
	secondary repository.MarketDataProvider
	engine    *quality.Engine
	health    *healthTracker
	metrics   repository.Metrics
	log       *logger.Logger
}

// NewHybridRouter wires the router over both adapters.
func NewHybridRouter(primary, secondary repository.MarketDataProvider, engine *quality.Engine, metrics repository.Metrics, log *logger.Logger) *HybridRouter {
	return &HybridRouter{
		primary:   primary,
		secondary: secondary,
		engine:    engine,
		health:    newHealthTracker(primary.Name(), secondary.Name()),
		metrics:   metrics,
		log:       log,
	}
}

// Name identifies the router as a composite provider.
func (r *HybridRouter) Name() string { return "hybrid" }

// Health returns the current per-vendor health view.
func (r *HybridRouter) Health() models.RouterHealth {
	return r.health.snapshot()
}

// route runs the primary-then-secondary sequence for one operation.
// reject inspects a successful primary result and returns a non-empty
// fallback reason when the result is unusable.
func route[T any](r *HybridRouter, op string, fetch func(repository.MarketDataProvider) (T, error), reject func(T) string) (T, error) {
	start := time.Now()
	out, primaryErr := fetch(r.primary)
	elapsed := time.Since(start)

	reason := ""
	if primaryErr != nil {
		r.health.recordError(false, primaryErr, elapsed)
		reason = reasonPrimaryError
		r.log.Warn("primary failed",
			logger.String("op", op), logger.Error(primaryErr))
	} else {
		r.health.recordSuccess(false, elapsed)
		if reject != nil {
			reason = reject(out)
		}
		if reason == "" {
			return out, nil
		}
		r.log.Warn("primary result rejected",
			logger.String("op", op), logger.String("reason", reason))
	}
	r.recordFallback(reason)

	start = time.Now()
	out2, secondaryErr := fetch(r.secondary)
	elapsed = time.Since(start)
	if secondaryErr != nil {
		r.health.recordError(true, secondaryErr, elapsed)
		if primaryErr == nil {
			// Primary answered but was rejected; a degraded answer beats
			// no answer.
			return out, nil
		}
		var zero T
		return zero, &models.AllProvidersFailedError{
			Operation:    op,
			PrimaryErr:   primaryErr,
			SecondaryErr: secondaryErr,
		}
	}
	r.health.recordSuccess(true, elapsed)
	return out2, nil
}

func (r *HybridRouter) recordFallback(reason string) {
	if r.metrics != nil {
		r.metrics.RecordFallback(reason)
	}
}

// rejectChain implements the chain quality gate: an empty chain or a poor
// chain below the confidence floor is not worth serving.
func (r *HybridRouter) rejectChain(ch *models.OptionChain) string {
	if ch == nil || len(ch.Contracts) == 0 {
		return reasonQualityRejected
	}
	if ch.Quality.Quality == models.QualityPoor && ch.Quality.Confidence < r.engine.Thresholds().MinConfidence {
		return reasonQualityRejected
	}
	return ""
}

func (r *HybridRouter) rejectFlags(q models.QualityFlags) string {
	if q.Quality == models.QualityPoor && q.Confidence < r.engine.Thresholds().MinConfidence {
		return reasonQualityRejected
	}
	return ""
}

// markFallback stamps the reason on an entity served by the secondary.
func markFallback(q *models.QualityFlags, reason string) {
	if reason != "" && q.Source == models.SourceSecondary {
		q.FallbackReason = reason
	}
}

// GetOptionChain serves the chain, falling back on error, empty chain or
// a poor low-confidence chain.
func (r *HybridRouter) GetOptionChain(ctx context.Context, underlying string, opts *models.ChainOptions) (*models.OptionChain, error) {
	var reason string
	ch, err := route(r, "chain", func(p repository.MarketDataProvider) (*models.OptionChain, error) {
		return p.GetOptionChain(ctx, underlying, opts)
	}, func(ch *models.OptionChain) string {
		reason = r.rejectChain(ch)
		return reason
	})
	if err != nil {
		return nil, err
	}
	markFallback(&ch.Quality, pickReason(reason))
	return ch, nil
}

// GetOptionContract serves one contract, falling back on error or an
// invalid contract.
func (r *HybridRouter) GetOptionContract(ctx context.Context, underlying string, strike float64, expiration string, typ models.OptionType) (*models.OptionContract, error) {
	var reason string
	c, err := route(r, "contract", func(p repository.MarketDataProvider) (*models.OptionContract, error) {
		return p.GetOptionContract(ctx, underlying, strike, expiration, typ)
	}, func(c *models.OptionContract) string {
		if c == nil {
			reason = reasonQualityRejected
		} else {
			reason = r.rejectFlags(c.Quality)
		}
		return reason
	})
	if err != nil {
		return nil, err
	}
	markFallback(&c.Quality, pickReason(reason))
	return c, nil
}

// GetExpirations serves expiration dates, falling back on error or an
// empty list.
func (r *HybridRouter) GetExpirations(ctx context.Context, underlying string, opts *models.ExpirationOptions) ([]string, error) {
	return route(r, "expirations", func(p repository.MarketDataProvider) ([]string, error) {
		return p.GetExpirations(ctx, underlying, opts)
	}, func(dates []string) string {
		if len(dates) == 0 {
			return reasonQualityRejected
		}
		return ""
	})
}

// GetFlowData has no secondary: when the primary cannot serve flow, or
// serves a record with no activity at all, the router returns a
// synthetic neutral record instead of failing the call or passing the
// empty record off as real data.
func (r *HybridRouter) GetFlowData(ctx context.Context, underlying string, opts *models.FlowOptions) (*models.FlowData, error) {
	start := time.Now()
	f, err := r.primary.GetFlowData(ctx, underlying, opts)
	elapsed := time.Since(start)
	if err != nil {
		r.health.recordError(false, err, elapsed)
		r.recordFallback(reasonPrimaryError)
		r.log.Warn("flow unavailable, serving neutral",
			logger.String("underlying", underlying), logger.Error(err))
		return neutralFlow(underlying, reasonPrimaryError), nil
	}
	r.health.recordSuccess(false, elapsed)
	if f.IsZeroSignal() {
		r.recordFallback(reasonQualityRejected)
		r.log.Debug("flow carries no signal, serving neutral",
			logger.String("underlying", underlying))
		return neutralFlow(underlying, reasonQualityRejected), nil
	}
	return f, nil
}

// GetIndexSnapshot serves index snapshots, falling back on error or an
// empty result.
func (r *HybridRouter) GetIndexSnapshot(ctx context.Context, tickers []string) (map[string]*models.IndexSnapshot, error) {
	var reason string
	snaps, err := route(r, "indices", func(p repository.MarketDataProvider) (map[string]*models.IndexSnapshot, error) {
		return p.GetIndexSnapshot(ctx, tickers)
	}, func(m map[string]*models.IndexSnapshot) string {
		if len(m) == 0 {
			reason = reasonQualityRejected
		}
		return reason
	})
	if err != nil {
		return nil, err
	}
	for _, s := range snaps {
		markFallback(&s.Quality, pickReason(reason))
	}
	return snaps, nil
}

// GetIndicators serves the indicator set, falling back on error.
func (r *HybridRouter) GetIndicators(ctx context.Context, ticker string, timeframe repository.Timeframe, lookback int) (*models.IndicatorSet, error) {
	return route(r, "indicators", func(p repository.MarketDataProvider) (*models.IndicatorSet, error) {
		return p.GetIndicators(ctx, ticker, timeframe, lookback)
	}, nil)
}

// GetCandles serves candles, falling back on error or an empty series.
func (r *HybridRouter) GetCandles(ctx context.Context, ticker string, timeframe repository.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	return route(r, "candles", func(p repository.MarketDataProvider) ([]models.Candle, error) {
		return p.GetCandles(ctx, ticker, timeframe, from, to, limit)
	}, func(cs []models.Candle) string {
		if len(cs) == 0 {
			return reasonQualityRejected
		}
		return ""
	})
}

// GetEquityQuote serves one stock quote, falling back on error or a poor
// low-confidence quote.
func (r *HybridRouter) GetEquityQuote(ctx context.Context, symbol string) (*models.EquityQuote, error) {
	var reason string
	q, err := route(r, "quote", func(p repository.MarketDataProvider) (*models.EquityQuote, error) {
		return p.GetEquityQuote(ctx, symbol)
	}, func(q *models.EquityQuote) string {
		if q == nil {
			reason = reasonQualityRejected
		} else {
			reason = r.rejectFlags(q.Quality)
		}
		return reason
	})
	if err != nil {
		return nil, err
	}
	markFallback(&q.Quality, pickReason(reason))
	return q, nil
}

// GetBars serves equity bars, falling back on error.
func (r *HybridRouter) GetBars(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Bar, error) {
	return route(r, "bars", func(p repository.MarketDataProvider) ([]models.Bar, error) {
		return p.GetBars(ctx, symbol, interval, from, to, limit)
	}, nil)
}

// --- subscriptions: primary only, never routed ---

func (r *HybridRouter) SubscribeToChain(underlying string, fn repository.ChainCallback) (repository.Unsubscribe, error) {
	return r.primary.SubscribeToChain(underlying, fn)
}

func (r *HybridRouter) SubscribeToOption(underlying string, strike float64, expiration string, typ models.OptionType, fn repository.ContractCallback) (repository.Unsubscribe, error) {
	return r.primary.SubscribeToOption(underlying, strike, expiration, typ, fn)
}

func (r *HybridRouter) SubscribeToFlow(underlying string, fn repository.FlowCallback) (repository.Unsubscribe, error) {
	return r.primary.SubscribeToFlow(underlying, fn)
}

func (r *HybridRouter) SubscribeToIndex(ticker string, fn repository.IndexCallback) (repository.Unsubscribe, error) {
	return r.primary.SubscribeToIndex(ticker, fn)
}

func (r *HybridRouter) SubscribeToTimeframe(ticker string, timeframe repository.Timeframe, fn repository.TimeframeCallback) (repository.Unsubscribe, error) {
	return r.primary.SubscribeToTimeframe(ticker, timeframe, fn)
}

func (r *HybridRouter) SubscribeToEquity(symbol string, fn repository.EquityCallback) (repository.Unsubscribe, error) {
	return r.primary.SubscribeToEquity(symbol, fn)
}

// pickReason defaults to primary_error: when reject never ran, the
// primary threw.
func pickReason(rejectReason string) string {
	if rejectReason != "" {
		return rejectReason
	}
	return reasonPrimaryError
}

// neutralFlow is the stand-in served when flow cannot be fetched. Kept
// deliberately low-confidence so consumers treat it as a placeholder.
func neutralFlow(underlying, reason string) *models.FlowData {
	now := time.Now()
	return &models.FlowData{
		Underlying: underlying,
		Sentiment:  models.FlowNeutral,
		Quality: models.QualityFlags{
			Source:         models.SourceHybrid,
			Quality:        models.QualityFair,
			Confidence:     30,
			HasWarnings:    true,
			Warnings:       []string{"synthetic neutral flow"},
			UpdatedAt:      now,
			FallbackReason: reason,
		},
		UpdatedAt: now,
	}
}
