package repository

import (
	"context"
	"time"

	"MarketHub/internal/domain/models"
)

// Unsubscribe tears down one subscription. Safe to call more than once.
type Unsubscribe func()

// Subscription callbacks. Delivery is push-driven and best-effort; a
// fetch-only vendor never fires them.
type (
	ChainCallback     func(*models.OptionChain)
	ContractCallback  func(*models.OptionContract)
	FlowCallback      func(*models.FlowData)
	IndexCallback     func(*models.IndexSnapshot)
	TimeframeCallback func(ticker string, tf *models.Timeframe)
	EquityCallback    func(*models.EquityQuote)
)

// OptionsProvider is the options capability contract.
type OptionsProvider interface {
	GetOptionChain(ctx context.Context, underlying string, opts *models.ChainOptions) (*models.OptionChain, error)
	GetOptionContract(ctx context.Context, underlying string, strike float64, expiration string, typ models.OptionType) (*models.OptionContract, error)
	GetExpirations(ctx context.Context, underlying string, opts *models.ExpirationOptions) ([]string, error)
	GetFlowData(ctx context.Context, underlying string, opts *models.FlowOptions) (*models.FlowData, error)
	SubscribeToChain(underlying string, fn ChainCallback) (Unsubscribe, error)
	SubscribeToOption(underlying string, strike float64, expiration string, typ models.OptionType, fn ContractCallback) (Unsubscribe, error)
	SubscribeToFlow(underlying string, fn FlowCallback) (Unsubscribe, error)
}

// IndicesProvider is the index capability contract.
type IndicesProvider interface {
	GetIndexSnapshot(ctx context.Context, tickers []string) (map[string]*models.IndexSnapshot, error)
	GetIndicators(ctx context.Context, ticker string, timeframe Timeframe, lookback int) (*models.IndicatorSet, error)
	GetCandles(ctx context.Context, ticker string, timeframe Timeframe, from, to time.Time, limit int) ([]models.Candle, error)
	SubscribeToIndex(ticker string, fn IndexCallback) (Unsubscribe, error)
	SubscribeToTimeframe(ticker string, timeframe Timeframe, fn TimeframeCallback) (Unsubscribe, error)
}

// BrokerProvider is the equity capability contract.
type BrokerProvider interface {
	GetEquityQuote(ctx context.Context, symbol string) (*models.EquityQuote, error)
	GetBars(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Bar, error)
	SubscribeToEquity(symbol string, fn EquityCallback) (Unsubscribe, error)
}

// MarketDataProvider is the full capability surface implemented by every
// vendor adapter and by the hybrid router.
type MarketDataProvider interface {
	Name() string
	OptionsProvider
	IndicesProvider
	BrokerProvider
}

// TickPublisher pushes hub ticks to a downstream broker.
type TickPublisher interface {
	Publish(ctx context.Context, t *models.MarketDataTick) error
	PublishBatch(ctx context.Context, ticks []*models.MarketDataTick) error
	Close() error
}

// TickStore archives hub ticks for later range queries.
type TickStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, t *models.MarketDataTick) error
	StoreBatch(ctx context.Context, ticks []*models.MarketDataTick) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketDataTick, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the domain metrics surface.
type Metrics interface {
	RecordVendorRequest(vendor, op, outcome string)
	RecordFallback(reason string)
	RecordError(kind string)
	RecordConfidence(symbol string, confidence float64)
	RecordLatency(op string, seconds float64)
	RecordTickPublished(kind string)
}
