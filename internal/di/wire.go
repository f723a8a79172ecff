//go:build wireinject
// +build wireinject

package di

import (
	"SpreadScout/internal/usecase"
	"SpreadScout/pkg/config"
	"SpreadScout/pkg/server"

	"github.com/google/wire"
)

var engineSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvideRedisCache,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideKafkaProducer,
	ProvideFeed,

	// Repositories and services
	ProvideRunStorage,
	ProvideRunPublisher,
	ProvideNotifier,
	ProvideRateProvider,
	ProvideEstimator,
	ProvideBuilder,
	ProvideRanker,

	// Use cases
	ProvideCollector,
	ProvideDiscovery,
)

// InitializeApp wires up all dependencies and returns the long running service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		engineSet,
		ProvideQueue,
		ProvideKafkaConsumer,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeDiscovery wires a single discovery engine for one-shot runs.
func InitializeDiscovery(cfg *config.Config) (*usecase.Discovery, func(), error) {
	wire.Build(engineSet)
	return nil, nil, nil
}
