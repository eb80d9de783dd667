//go:build wireinject
// +build wireinject

package di

import (
	"StratEq/pkg/config"
	"StratEq/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCache,
		ProvideEventPublisher,

		// Stores
		ProvideFeatureStore,
		ProvideJobStore,
		ProvideFeatureProvider,

		// Game engine
		ProvideProfiles,
		ProvideAllianceGraph,
		ProvidePayoffBuilder,
		ProvideSolverParams,
		ProvideSolver,

		// Use cases
		ProvidePredictor,
		ProvideBacktestRunner,
		ProvideSensitivityEngine,
		ProvideOrchestrator,

		// HTTP surface
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
