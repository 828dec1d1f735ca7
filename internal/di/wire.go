//go:build wireinject
// +build wireinject

package di

import (
	"MarketHub/pkg/config"
	"MarketHub/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideQualityEngine,

		// Vendors and routing
		ProvideTradierStream,
		ProvidePrimaryProvider,
		ProvideSecondaryProvider,
		ProvideHybridRouter,
		ProvideMarketHub,

		// Downstream sinks
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideTickPublisher,
		ProvideTickStore,
		ProvideTickPipeline,
		ProvideSnapshotCache,

		// HTTP surface and application
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
