package di

import (
	"context"
	"fmt"
	"time"

	"MarketHub/internal/domain/repository"
	"MarketHub/internal/handler/api"
	mid "MarketHub/internal/middleware"
	internalrepo "MarketHub/internal/repository"
	"MarketHub/internal/service/marketfeed"
	"MarketHub/internal/service/quality"
	"MarketHub/internal/service/tradier"
	"MarketHub/internal/usecase"
	pkgcache "MarketHub/pkg/cache"
	pkgch "MarketHub/pkg/clickhouse"
	"MarketHub/pkg/config"
	pkgkafka "MarketHub/pkg/kafka"
	"MarketHub/pkg/logger"
	"MarketHub/pkg/metrics"
	"MarketHub/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideQualityEngine builds the validation engine, overriding defaults
// with configured thresholds.
func ProvideQualityEngine(cfg *config.Config) *quality.Engine {
	t := quality.DefaultThresholds()
	if cfg.Quality.GoodAge > 0 {
		t.GoodAge = cfg.Quality.GoodAge
	}
	if cfg.Quality.FairAge > 0 {
		t.FairAge = cfg.Quality.FairAge
	}
	if cfg.Quality.AcceptableAge > 0 {
		t.AcceptableAge = cfg.Quality.AcceptableAge
	}
	if cfg.Quality.MinConfidence > 0 {
		t.MinConfidence = cfg.Quality.MinConfidence
	}
	return quality.NewEngine(t)
}

// ProvideTradierStream creates the push stream, or nil when push is
// disabled and the primary runs fetch-only.
func ProvideTradierStream(cfg *config.Config, l *logger.Logger) *tradier.Stream {
	if !cfg.WSEnabled() || cfg.Tradier.WebSocketURL == "" {
		return nil
	}
	return tradier.NewStream(
		cfg.Tradier.WebSocketURL,
		cfg.Tradier.APIKey,
		cfg.Tradier.ReconnectDelay,
		cfg.Tradier.PingInterval,
		l,
	)
}

// ProvidePrimaryProvider creates the tradier adapter.
func ProvidePrimaryProvider(cfg *config.Config, stream *tradier.Stream, engine *quality.Engine, m repository.Metrics, l *logger.Logger) *tradier.Adapter {
	client := tradier.NewClient(cfg.Tradier.BaseURL, cfg.Tradier.APIKey, cfg.Tradier.Timeout, cfg.Tradier.MaxRetries)
	return tradier.NewAdapter(client, stream, engine, m, l)
}

// ProvideSecondaryProvider creates the marketfeed adapter.
func ProvideSecondaryProvider(cfg *config.Config, engine *quality.Engine, m repository.Metrics, l *logger.Logger) *marketfeed.Adapter {
	client := marketfeed.NewClient(cfg.MarketFeed.BaseURL, cfg.MarketFeed.APIKey, cfg.MarketFeed.Timeout, cfg.MarketFeed.MaxRetries)
	return marketfeed.NewAdapter(client, engine, m, l)
}

// ProvideHybridRouter wires primary and secondary behind the fallback
// router.
func ProvideHybridRouter(primary *tradier.Adapter, secondary *marketfeed.Adapter, engine *quality.Engine, m repository.Metrics, l *logger.Logger) *usecase.HybridRouter {
	return usecase.NewHybridRouter(primary, secondary, engine, m, l)
}

// ProvideMarketHub builds the hub on top of the router.
func ProvideMarketHub(cfg *config.Config, router *usecase.HybridRouter, m repository.Metrics, l *logger.Logger) *usecase.MarketHub {
	return usecase.NewMarketHub(router, m, l, usecase.HubConfig{
		Watchlist:       cfg.Hub.WatchlistSymbols,
		IndexTickers:    cfg.Hub.IndexTickers,
		RefreshInterval: cfg.Hub.RefreshInterval,
		BatchWindow:     cfg.Hub.BatchWindow,
		EnablePush:      cfg.WSEnabled(),
	})
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when
// disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideTickPublisher creates the Kafka tick publisher, or nil when
// Kafka is off.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
}

// ProvideTickStore creates the ClickHouse tick archive, or nil when
// ClickHouse is off.
func ProvideTickStore(chClient *pkgch.Client, cfg *config.Config) repository.TickStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseTickStore(chClient.DB(), cfg.ClickHouse.Database+".market_ticks")
}

// ProvideTickPipeline builds the middleware pipeline between the hub and
// the downstream sinks. Nil when no sink is configured.
func ProvideTickPipeline(pub repository.TickPublisher, store repository.TickStore, m repository.Metrics) *mid.TickPipeline {
	if pub == nil && store == nil {
		return nil
	}
	sink := &mid.FanoutSink{Publisher: pub, Store: store}
	return mid.NewTickPipeline(sink, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideSnapshotCache creates the shared snapshot cache: layered over
// Redis when configured, in-process otherwise.
func ProvideSnapshotCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideHandler creates the Echo HTTP handler.
func ProvideHandler(l *logger.Logger, router *usecase.HybridRouter, hub *usecase.MarketHub) *api.MarketHandler {
	return api.NewMarketHandler(l, router, hub)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	hub *usecase.MarketHub,
	stream *tradier.Stream,
	pipeline *mid.TickPipeline,
	pub repository.TickPublisher,
	store repository.TickStore,
	snapCache pkgcache.Service,
	chClient *pkgch.Client,
	handler *api.MarketHandler,
) (*server.App, error) {
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("tick store init: %w", err)
		}
	}
	return server.New(cfg, l, hub, stream, pipeline, pub, store, snapCache, chClient, handler), nil
}
