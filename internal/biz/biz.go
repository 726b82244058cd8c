// Package biz contains business logic layer implementations.
// This layer holds the circuit breaker state machine and the
// failover-aware generation engine.
package biz

import (
	"FlapBoard/internal/ai"
	"FlapBoard/internal/data"
	"FlapBoard/internal/prompt"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCircuitBreakerUsecase,
	NewModelSelector,
	NewGeneratorUsecase,
	// Import data layer providers
	data.NewCircuitBreakerRepo,
	data.NewFrameRepo,
	data.NewEventLogger,
	data.NewNoopNotifier,
	// Collaborator implementations
	prompt.NewLoader,
	ai.NewFactory,
	// Bind implementations to biz layer interfaces
	wire.Bind(new(CircuitRepo), new(*data.CircuitBreakerRepo)),
	wire.Bind(new(FrameRepo), new(*data.FrameRepo)),
	wire.Bind(new(EventLogger), new(*data.EventLoggerImpl)),
	wire.Bind(new(Notifier), new(*data.NoopNotifier)),
	wire.Bind(new(PromptLoader), new(*prompt.Loader)),
	wire.Bind(new(ProviderFactory), new(*ai.Factory)),
)
