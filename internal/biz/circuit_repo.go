package biz

import (
	"context"
	"time"

	"FlapBoard/internal/model"
)

// CircuitRepo defines the interface for circuit breaker persistence.
// Following Kratos v2 DDD architecture, interfaces are defined in biz
// layer. Implementation is in data layer (data.CircuitBreakerRepo).
type CircuitRepo interface {
	// InitializeCircuit inserts the definition's default row if no row
	// exists for its circuit ID. Idempotent: an existing row is never
	// overwritten.
	InitializeCircuit(ctx context.Context, def model.CircuitDefinition) error

	// GetState returns the persisted record for a circuit, or (nil, nil)
	// when no row exists.
	GetState(ctx context.Context, circuitID string) (*model.CircuitRecord, error)

	// SetState writes the new state and stateChangedAt unconditionally.
	SetState(ctx context.Context, circuitID string, state model.CircuitState, changedAt time.Time) error

	// GetAllStates returns every persisted circuit record.
	GetAllStates(ctx context.Context) ([]model.CircuitRecord, error)

	// RecordFailure atomically increments the failure counter and stamps
	// lastFailureAt, returning the new count.
	RecordFailure(ctx context.Context, circuitID string) (int, error)

	// RecordSuccess atomically increments the success counter and stamps
	// lastSuccessAt, returning the new count.
	RecordSuccess(ctx context.Context, circuitID string) (int, error)

	// ResetCounters zeroes both counters.
	ResetCounters(ctx context.Context, circuitID string) error
}
