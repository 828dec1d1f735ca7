package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	mid "MarketHub/internal/middleware"
	"MarketHub/internal/service/tradier"
	"MarketHub/internal/usecase"
	pkgcache "MarketHub/pkg/cache"
	pkgch "MarketHub/pkg/clickhouse"
	"MarketHub/pkg/config"
	xhttp "MarketHub/pkg/http"
	applogger "MarketHub/pkg/logger"
)

const snapshotCacheKey = "markethub:snapshot:latest"

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	hub       *usecase.MarketHub
	stream    *tradier.Stream
	pipeline  *mid.TickPipeline
	publisher repository.TickPublisher
	store     repository.TickStore
	snapCache pkgcache.Service
	chClient  *pkgch.Client
	handler   xhttp.Handler

	httpServer *xhttp.Server
	unsubs     []repository.Unsubscribe
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	hub *usecase.MarketHub,
	stream *tradier.Stream,
	pipeline *mid.TickPipeline,
	publisher repository.TickPublisher,
	store repository.TickStore,
	snapCache pkgcache.Service,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		hub:       hub,
		stream:    stream,
		pipeline:  pipeline,
		publisher: publisher,
		store:     store,
		snapCache: snapCache,
		chClient:  chClient,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vendor push stream. A failed initial connect degrades to polling;
	// the hub keeps working off the fetch path.
	if a.stream != nil {
		if err := a.stream.Start(ctx); err != nil {
			a.log.Warn("push stream unavailable, running fetch-only", applogger.Error(err))
			a.stream = nil
		} else {
			a.log.Info("push stream connected")
		}
	}

	if err := a.hub.Initialize(ctx); err != nil {
		return err
	}
	a.log.Info("hub initialized",
		applogger.Strings("watchlist", a.hub.Watchlist()),
		applogger.Strings("indices", a.cfg.Hub.IndexTickers))

	// Forward hub ticks into the downstream pipeline (Kafka/ClickHouse).
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		a.unsubs = append(a.unsubs, a.hub.SubscribeTick(func(t *models.MarketDataTick) {
			if err := a.pipeline.Process(ctx, t); err != nil {
				a.log.Warn("tick pipeline", applogger.Error(err))
			}
		}))
	}

	// Publish the latest consolidated snapshot into the shared cache so
	// sibling services can read it without hitting the vendors.
	if a.snapCache != nil {
		a.unsubs = append(a.unsubs, a.hub.SubscribeSnapshot(func(s *models.MarketDataSnapshot) {
			if err := a.snapCache.Set(ctx, snapshotCacheKey, s, 30*time.Second); err != nil {
				a.log.Debug("snapshot cache set", applogger.Error(err))
			}
		}))
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops everything in reverse start order.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}

	for _, u := range a.unsubs {
		u()
	}

	if err := a.hub.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("hub shutdown error", applogger.Error(err))
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("stream close error", applogger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("tick store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.snapCache != nil {
		if err := a.snapCache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
