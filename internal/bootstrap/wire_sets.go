package bootstrap

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"verdant-core/internal/config"
	"verdant-core/internal/lifecycle"
	"verdant-core/internal/observability"
	"verdant-core/internal/services"
)

// Provider sets group related constructors for wire-based composition.
// cmd/simhost wires by hand today; these sets keep the dependency edges
// documented and ready for generated injectors.

// ProvideLogger builds the application logger from configuration.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg)
}

// ProvideCollector builds the metrics collector from configuration.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideEventBus builds the in-process event bus.
func ProvideEventBus(logger *zap.Logger) *services.EventBus {
	return services.NewEventBus(logger)
}

// ProvideSnapshotStore builds snapshot persistence from configuration.
func ProvideSnapshotStore(cfg *config.Config, logger *zap.Logger) (*services.SnapshotStore, error) {
	return services.NewSnapshotStore(cfg.Persistence.SnapshotDir, logger)
}

// ProvideDiscovery builds a discovery service with no sources; callers add
// sources before bring-up.
func ProvideDiscovery(logger *zap.Logger) *lifecycle.DiscoveryService {
	return lifecycle.NewDiscoveryService(logger)
}

// ObservabilitySet wires logging and metrics.
var ObservabilitySet = wire.NewSet(
	ProvideLogger,
	ProvideCollector,
)

// ServiceSet wires the built-in infrastructure services.
var ServiceSet = wire.NewSet(
	services.NewClock,
	ProvideEventBus,
	ProvideSnapshotStore,
	services.NewEventBusManager,
	services.NewPersistenceManager,
)

// LifecycleSet wires the bring-up pipeline.
var LifecycleSet = wire.NewSet(
	ProvideDiscovery,
)
