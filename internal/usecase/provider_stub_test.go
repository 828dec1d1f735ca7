package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
)

var errStubNotConfigured = errors.New("stub operation not configured")

// stubProvider implements repository.MarketDataProvider with pluggable
// per-operation behavior and call counting.
type stubProvider struct {
	name string

	chainFn       func(underlying string) (*models.OptionChain, error)
	contractFn    func() (*models.OptionContract, error)
	expirationsFn func() ([]string, error)
	flowFn        func(underlying string) (*models.FlowData, error)
	indexFn       func(tickers []string) (map[string]*models.IndexSnapshot, error)
	indicatorsFn  func() (*models.IndicatorSet, error)
	candlesFn     func() ([]models.Candle, error)
	quoteFn       func(symbol string) (*models.EquityQuote, error)
	barsFn        func() ([]models.Bar, error)

	mu    sync.Mutex
	calls map[string]int
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name, calls: make(map[string]int)}
}

func (s *stubProvider) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *stubProvider) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetOptionChain(_ context.Context, underlying string, _ *models.ChainOptions) (*models.OptionChain, error) {
	s.count("chain")
	if s.chainFn == nil {
		return nil, errStubNotConfigured
	}
	return s.chainFn(underlying)
}

func (s *stubProvider) GetOptionContract(_ context.Context, _ string, _ float64, _ string, _ models.OptionType) (*models.OptionContract, error) {
	s.count("contract")
	if s.contractFn == nil {
		return nil, errStubNotConfigured
	}
	return s.contractFn()
}

func (s *stubProvider) GetExpirations(_ context.Context, _ string, _ *models.ExpirationOptions) ([]string, error) {
	s.count("expirations")
	if s.expirationsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.expirationsFn()
}

func (s *stubProvider) GetFlowData(_ context.Context, underlying string, _ *models.FlowOptions) (*models.FlowData, error) {
	s.count("flow")
	if s.flowFn == nil {
		return nil, errStubNotConfigured
	}
	return s.flowFn(underlying)
}

func (s *stubProvider) GetIndexSnapshot(_ context.Context, tickers []string) (map[string]*models.IndexSnapshot, error) {
	s.count("indices")
	if s.indexFn == nil {
		return nil, errStubNotConfigured
	}
	return s.indexFn(tickers)
}

func (s *stubProvider) GetIndicators(_ context.Context, _ string, _ repository.Timeframe, _ int) (*models.IndicatorSet, error) {
	s.count("indicators")
	if s.indicatorsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.indicatorsFn()
}

func (s *stubProvider) GetCandles(_ context.Context, _ string, _ repository.Timeframe, _, _ time.Time, _ int) ([]models.Candle, error) {
	s.count("candles")
	if s.candlesFn == nil {
		return nil, errStubNotConfigured
	}
	return s.candlesFn()
}

func (s *stubProvider) GetEquityQuote(_ context.Context, symbol string) (*models.EquityQuote, error) {
	s.count("quote")
	if s.quoteFn == nil {
		return nil, errStubNotConfigured
	}
	return s.quoteFn(symbol)
}

func (s *stubProvider) GetBars(_ context.Context, _, _ string, _, _ time.Time, _ int) ([]models.Bar, error) {
	s.count("bars")
	if s.barsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.barsFn()
}

func (s *stubProvider) SubscribeToChain(string, repository.ChainCallback) (repository.Unsubscribe, error) {
	s.count("sub_chain")
	return nil, models.ErrStreamingUnsupported
}

func (s *stubProvider) SubscribeToOption(string, float64, string, models.OptionType, repository.ContractCallback) (repository.Unsubscribe, error) {
	s.count("sub_option")
	return nil, models.ErrStreamingUnsupported
}

func (s *stubProvider) SubscribeToFlow(string, repository.FlowCallback) (repository.Unsubscribe, error) {
	s.count("sub_flow")
	return nil, models.ErrStreamingUnsupported
}

func (s *stubProvider) SubscribeToIndex(string, repository.IndexCallback) (repository.Unsubscribe, error) {
	s.count("sub_index")
	return nil, models.ErrStreamingUnsupported
}

func (s *stubProvider) SubscribeToTimeframe(string, repository.Timeframe, repository.TimeframeCallback) (repository.Unsubscribe, error) {
	s.count("sub_timeframe")
	return nil, models.ErrStreamingUnsupported
}

func (s *stubProvider) SubscribeToEquity(string, repository.EquityCallback) (repository.Unsubscribe, error) {
	s.count("sub_equity")
	return nil, models.ErrStreamingUnsupported
}

// --- entity builders ---

func stubChain(underlying string, source models.Source) *models.OptionChain {
	return &models.OptionChain{
		Underlying:      underlying,
		UnderlyingPrice: 598.42,
		Contracts: []models.OptionContract{
			{Underlying: underlying, Strike: 600, Expiration: "2025-12-19", Type: models.OptionCall},
			{Underlying: underlying, Strike: 595, Expiration: "2025-12-19", Type: models.OptionPut},
		},
		Quality:   models.QualityFlags{Source: source, Quality: models.QualityGood, Confidence: 85},
		UpdatedAt: time.Now(),
	}
}

func stubQuote(symbol string, source models.Source) *models.EquityQuote {
	return &models.EquityQuote{
		Symbol: symbol, Price: 212.3, Bid: 212.2, Ask: 212.4, Volume: 1000,
		Quality:   models.QualityFlags{Source: source, Quality: models.QualityExcellent, Confidence: 100},
		UpdatedAt: time.Now(),
	}
}

func stubFlow(underlying string, source models.Source) *models.FlowData {
	return &models.FlowData{
		Underlying: underlying, CallVolume: 1000, PutVolume: 500, PutCallRatio: 0.5,
		NetPremium: 120000, Sentiment: models.FlowBullish,
		Quality:   models.QualityFlags{Source: source, Quality: models.QualityGood, Confidence: 80},
		UpdatedAt: time.Now(),
	}
}

func stubIndex(symbol string, source models.Source) *models.IndexSnapshot {
	return &models.IndexSnapshot{
		Symbol:    symbol,
		Quote:     models.IndexQuote{Value: 5930.5, Change: 12.1},
		Quality:   models.QualityFlags{Source: source, Quality: models.QualityExcellent, Confidence: 95},
		UpdatedAt: time.Now(),
	}
}
