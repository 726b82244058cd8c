package biz

import (
	"context"
	"time"

	"FlapBoard/internal/ai"
	"FlapBoard/internal/conf"
	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// CircuitBreakerUsecase is the circuit state machine engine. It owns the
// manual kill switches (MASTER, SLEEP_MODE) and the auto-managed provider
// circuits, and implements the failure/success recording protocol that
// trips and recovers provider circuits.
//
// Every storage error inside this use case is absorbed and converted to a
// fail-open default: the breaker exists to make the system more resilient
// and must never become a new point of failure. The only way generation
// is ever blocked is an explicit, successfully-read "off" state.
type CircuitBreakerUsecase struct {
	repo             CircuitRepo
	events           EventLogger
	notifier         Notifier
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenAttempts int
	logger           *log.Helper
}

// NewCircuitBreakerUsecase creates the circuit breaker use case. Zero or
// missing config values fall back to the package defaults.
func NewCircuitBreakerUsecase(repo CircuitRepo, events EventLogger, notifier Notifier, cfg *conf.Circuit, logger log.Logger) *CircuitBreakerUsecase {
	uc := &CircuitBreakerUsecase{
		repo:             repo,
		events:           events,
		notifier:         notifier,
		failureThreshold: model.DefaultFailureThreshold,
		resetTimeout:     model.DefaultResetTimeout,
		halfOpenAttempts: model.DefaultHalfOpenAttempts,
		logger:           log.NewHelper(logger),
	}
	if cfg != nil {
		if cfg.FailureThreshold > 0 {
			uc.failureThreshold = cfg.FailureThreshold
		}
		if cfg.ResetTimeout > 0 {
			uc.resetTimeout = cfg.ResetTimeout
		}
		if cfg.HalfOpenAttempts > 0 {
			uc.halfOpenAttempts = cfg.HalfOpenAttempts
		}
	}
	return uc
}

// ResetTimeout returns the configured off-to-half_open cooldown. Exposed
// for the recovery sweeper and for status display.
func (uc *CircuitBreakerUsecase) ResetTimeout() time.Duration {
	return uc.resetTimeout
}

// Initialize seeds one state row per registry definition. Individual
// failures are logged and skipped; a circuit missing its row is later
// treated as not found, which fails open.
func (uc *CircuitBreakerUsecase) Initialize(ctx context.Context) {
	for _, def := range model.CircuitRegistry() {
		if def.CircuitType == model.CircuitTypeProvider && def.FailureThreshold <= 0 {
			def.FailureThreshold = uc.failureThreshold
		}
		if err := uc.repo.InitializeCircuit(ctx, def); err != nil {
			uc.logger.Warnw("failed to initialize circuit (continuing)",
				"circuit_id", def.CircuitID,
				"error", err)
			continue
		}
	}
	uc.logger.Infow("circuit registry initialized", "circuits", len(model.CircuitRegistry()))
}

// readState is the single fail-open read path. Storage errors and missing
// rows both come back as nil so every query method degrades the same way.
func (uc *CircuitBreakerUsecase) readState(ctx context.Context, circuitID string) *model.CircuitRecord {
	rec, err := uc.repo.GetState(ctx, circuitID)
	if err != nil {
		uc.logger.Warnw("circuit state read failed (fail-open)",
			"circuit_id", circuitID,
			"error", err)
		return nil
	}
	return rec
}

// IsCircuitOpen reports whether the circuit blocks traffic. Note the
// breaker-pattern polarity: an OPEN circuit means no current flows, so
// this returns true exactly when the stored state is "off". Missing rows
// and storage errors fail open (false).
func (uc *CircuitBreakerUsecase) IsCircuitOpen(ctx context.Context, circuitID string) bool {
	rec := uc.readState(ctx, circuitID)
	return rec != nil && rec.State == model.CircuitOff
}

// IsProviderAvailable reports whether generation may attempt the circuit's
// provider. Missing rows and storage errors fail open (true).
func (uc *CircuitBreakerUsecase) IsProviderAvailable(ctx context.Context, circuitID string) bool {
	rec := uc.readState(ctx, circuitID)
	return rec == nil || rec.State != model.CircuitOff
}

// SetCircuitState unconditionally moves a circuit to the given state with
// a fresh stateChangedAt. There is no transition table: an administrator
// can move any circuit to any state. Storage errors are logged, not
// returned, so administrative callers stay fire-and-forget.
func (uc *CircuitBreakerUsecase) SetCircuitState(ctx context.Context, circuitID string, state model.CircuitState) {
	if !state.Valid() {
		uc.logger.Warnw("ignoring set to unknown circuit state",
			"circuit_id", circuitID,
			"state", string(state))
		return
	}

	if err := uc.repo.SetState(ctx, circuitID, state, time.Now()); err != nil {
		uc.logger.Warnw("failed to set circuit state (ignored)",
			"circuit_id", circuitID,
			"state", string(state),
			"error", err)
		return
	}

	uc.logger.Infow("circuit state set",
		"circuit_id", circuitID,
		"state", string(state))
	uc.events.LogCircuitSetState(ctx, circuitID, state)
}

// GetCircuitStatus returns the persisted record for one circuit, or nil
// when the circuit is not found or the store errors.
func (uc *CircuitBreakerUsecase) GetCircuitStatus(ctx context.Context, circuitID string) *model.CircuitRecord {
	return uc.readState(ctx, circuitID)
}

// GetAllCircuits returns every circuit record, or an empty slice on error.
func (uc *CircuitBreakerUsecase) GetAllCircuits(ctx context.Context) []model.CircuitRecord {
	records, err := uc.repo.GetAllStates(ctx)
	if err != nil {
		uc.logger.Warnw("failed to list circuits (returning empty)", "error", err)
		return []model.CircuitRecord{}
	}
	return records
}

// GetCircuitsByType returns circuits of the given kind, or an empty slice
// on error.
func (uc *CircuitBreakerUsecase) GetCircuitsByType(ctx context.Context, circuitType model.CircuitType) []model.CircuitRecord {
	all := uc.GetAllCircuits(ctx)
	filtered := make([]model.CircuitRecord, 0, len(all))
	for _, rec := range all {
		if rec.CircuitType == circuitType {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// GetProviderStatus projects a provider circuit's record plus the derived
// attempt gate and the configured reset timeout, for display/diagnostics.
// Returns nil when the circuit is not found or the store errors.
func (uc *CircuitBreakerUsecase) GetProviderStatus(ctx context.Context, circuitID string) *model.ProviderCircuitStatus {
	rec := uc.readState(ctx, circuitID)
	if rec == nil {
		return nil
	}
	return &model.ProviderCircuitStatus{
		CircuitID:      rec.CircuitID,
		State:          rec.State,
		FailureCount:   rec.FailureCount,
		SuccessCount:   rec.SuccessCount,
		Threshold:      rec.FailureThreshold,
		LastFailureAt:  rec.LastFailureAt,
		LastSuccessAt:  rec.LastSuccessAt,
		StateChangedAt: rec.StateChangedAt,
		CanAttempt:     rec.State != model.CircuitOff,
		ResetTimeout:   uc.resetTimeout,
	}
}

// ResetProviderCircuit force-closes a provider circuit and zeroes both
// counters. Manual recovery for after an operator has fixed the upstream
// issue. Storage errors are logged and swallowed.
func (uc *CircuitBreakerUsecase) ResetProviderCircuit(ctx context.Context, circuitID string) {
	if err := uc.repo.SetState(ctx, circuitID, model.CircuitOn, time.Now()); err != nil {
		uc.logger.Warnw("failed to reset circuit state (ignored)",
			"circuit_id", circuitID,
			"error", err)
		return
	}
	if err := uc.repo.ResetCounters(ctx, circuitID); err != nil {
		uc.logger.Warnw("failed to reset circuit counters (ignored)",
			"circuit_id", circuitID,
			"error", err)
	}

	uc.logger.Infow("provider circuit reset", "circuit_id", circuitID)
	uc.events.LogCircuitReset(ctx, circuitID)
}

// RecordProviderFailure feeds one failed generation attempt into the
// breaker. An authentication failure uses an effective threshold of 1: a
// bad or revoked API key will not heal by retrying, so counting further
// attempts toward the normal threshold only wastes calls. Any failure
// during half_open probation re-trips immediately.
func (uc *CircuitBreakerUsecase) RecordProviderFailure(ctx context.Context, circuitID string, cause error) {
	count, err := uc.repo.RecordFailure(ctx, circuitID)
	if err != nil {
		uc.logger.Warnw("failed to record provider failure (ignored)",
			"circuit_id", circuitID,
			"error", err)
		return
	}

	rec, err := uc.repo.GetState(ctx, circuitID)
	if err != nil || rec == nil {
		// Unknown circuit: counter bumped but nothing to transition.
		return
	}

	authFailure := ai.IsAuthError(cause)
	effectiveThreshold := rec.FailureThreshold
	if authFailure {
		effectiveThreshold = 1
	}

	shouldTrip := rec.State == model.CircuitHalfOpen ||
		(rec.State == model.CircuitOn && count >= effectiveThreshold)
	if !shouldTrip {
		// Already off, or still under threshold.
		uc.logger.Debugw("provider failure recorded",
			"circuit_id", circuitID,
			"failure_count", count,
			"threshold", effectiveThreshold,
			"state", string(rec.State))
		return
	}

	now := time.Now()
	if err := uc.repo.SetState(ctx, circuitID, model.CircuitOff, now); err != nil {
		uc.logger.Warnw("failed to trip circuit (ignored)",
			"circuit_id", circuitID,
			"error", err)
		return
	}

	uc.logger.Warnw("provider circuit tripped",
		"circuit_id", circuitID,
		"failure_count", count,
		"threshold", effectiveThreshold,
		"auth_failure", authFailure,
		"error_kind", string(ai.ErrorKindOf(cause)))

	ev := model.CircuitTrippedEvent{
		CircuitID:    circuitID,
		FailureCount: count,
		Threshold:    effectiveThreshold,
		AuthFailure:  authFailure,
		TrippedAt:    now,
	}
	uc.events.LogCircuitTripped(ctx, ev)
	if err := uc.notifier.NotifyCircuitTripped(ctx, ev); err != nil {
		uc.logger.Warnw("circuit tripped notification failed", "circuit_id", circuitID, "error", err)
	}
}

// RecordProviderSuccess feeds one successful generation attempt into the
// breaker. In half_open, enough consecutive successes close the circuit
// and zero both counters. A success while on is only bookkeeping; a
// success while off should not happen (the caller should have been
// blocked) and is ignored.
func (uc *CircuitBreakerUsecase) RecordProviderSuccess(ctx context.Context, circuitID string) {
	count, err := uc.repo.RecordSuccess(ctx, circuitID)
	if err != nil {
		uc.logger.Warnw("failed to record provider success (ignored)",
			"circuit_id", circuitID,
			"error", err)
		return
	}

	rec, err := uc.repo.GetState(ctx, circuitID)
	if err != nil || rec == nil {
		return
	}

	if rec.State != model.CircuitHalfOpen || count < uc.halfOpenAttempts {
		uc.logger.Debugw("provider success recorded",
			"circuit_id", circuitID,
			"success_count", count,
			"state", string(rec.State))
		return
	}

	now := time.Now()
	if err := uc.repo.SetState(ctx, circuitID, model.CircuitOn, now); err != nil {
		uc.logger.Warnw("failed to close circuit (ignored)",
			"circuit_id", circuitID,
			"error", err)
		return
	}
	if err := uc.repo.ResetCounters(ctx, circuitID); err != nil {
		uc.logger.Warnw("failed to reset counters after recovery (ignored)",
			"circuit_id", circuitID,
			"error", err)
	}

	uc.logger.Infow("provider circuit recovered",
		"circuit_id", circuitID,
		"success_count", count)

	ev := model.CircuitRecoveredEvent{
		CircuitID:    circuitID,
		SuccessCount: count,
		RecoveredAt:  now,
	}
	uc.events.LogCircuitRecovered(ctx, ev)
	if err := uc.notifier.NotifyCircuitRecovered(ctx, ev); err != nil {
		uc.logger.Warnw("circuit recovered notification failed", "circuit_id", circuitID, "error", err)
	}
}

// SweepTrippedCircuits moves provider circuits that have been off for at
// least the reset timeout into half_open probation. The state machine
// itself never runs this transition; the cron recovery job drives it.
// Returns the number of circuits moved.
func (uc *CircuitBreakerUsecase) SweepTrippedCircuits(ctx context.Context) int {
	moved := 0
	cutoff := time.Now().Add(-uc.resetTimeout)
	for _, rec := range uc.GetCircuitsByType(ctx, model.CircuitTypeProvider) {
		if rec.State != model.CircuitOff || rec.StateChangedAt.After(cutoff) {
			continue
		}
		uc.logger.Infow("moving tripped circuit to half-open probation",
			"circuit_id", rec.CircuitID,
			"tripped_at", rec.StateChangedAt)
		uc.SetCircuitState(ctx, rec.CircuitID, model.CircuitHalfOpen)
		moved++
	}
	return moved
}
