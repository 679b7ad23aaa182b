//go:build wireinject
// +build wireinject

package di

import (
	"SigFuse/pkg/config"
	"SigFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Transport
		ProvideBusClient,
		ProvidePublisher,
		ProvideSubscriber,

		// Persistence and audit mirror
		ProvideClickHouseClient,
		ProvideSignalStore,
		ProvideKafkaProducer,
		ProvideSignalSink,

		// Use cases
		ProvideAggregator,

		// HTTP surface
		ProvideResponseCache,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
