package biz

import (
	"context"

	"FlapBoard/internal/model"
)

// EventLogger records circuit transitions and generation outcomes for
// the admin UI's history view. Implementations must never block the
// caller; the data layer writes asynchronously. Implementation is in
// data layer (data.EventLoggerImpl).
type EventLogger interface {
	LogCircuitTripped(ctx context.Context, ev model.CircuitTrippedEvent)
	LogCircuitRecovered(ctx context.Context, ev model.CircuitRecoveredEvent)
	LogCircuitSetState(ctx context.Context, circuitID string, state model.CircuitState)
	LogCircuitReset(ctx context.Context, circuitID string)
	LogFrameGenerated(ctx context.Context, ev model.FrameGeneratedEvent)
	LogGenerationFailed(ctx context.Context, generator string, tier model.ModelTier, reason string)
}
