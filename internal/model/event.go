package model

import "time"

// Event type constants for the event log.
const (
	EventCircuitTripped   = "CIRCUIT_TRIPPED"
	EventCircuitRecovered = "CIRCUIT_RECOVERED"
	EventCircuitSetState  = "CIRCUIT_SET_STATE"
	EventCircuitReset     = "CIRCUIT_RESET"
	EventFrameGenerated   = "FRAME_GENERATED"
	EventGenerationFailed = "GENERATION_FAILED"
)

// CircuitTrippedEvent records a provider circuit transitioning to off.
type CircuitTrippedEvent struct {
	CircuitID    string
	FailureCount int
	Threshold    int
	AuthFailure  bool
	TrippedAt    time.Time
}

// CircuitRecoveredEvent records a provider circuit closing after probation.
type CircuitRecoveredEvent struct {
	CircuitID    string
	SuccessCount int
	RecoveredAt  time.Time
}

// FrameGeneratedEvent records a completed generation cycle.
type FrameGeneratedEvent struct {
	Generator  string
	Provider   string
	Model      string
	Tier       string
	FailedOver bool
	TokensUsed int
}
