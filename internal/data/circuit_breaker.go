package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// circuitCacheTTL bounds how stale a cached circuit read may be. The
// hot path (availability checks before every generation attempt) reads
// through Redis; MySQL stays the source of truth.
const circuitCacheTTL = 30 * time.Second

// CircuitBreakerRepo implements biz.CircuitRepo over MySQL with a Redis
// read-through cache. Redis being down degrades to direct DB reads; it
// never fails an operation.
type CircuitBreakerRepo struct {
	data   *Data
	logger *log.Helper
}

// NewCircuitBreakerRepo creates a new circuit breaker repository.
func NewCircuitBreakerRepo(data *Data, logger log.Logger) *CircuitBreakerRepo {
	return &CircuitBreakerRepo{
		data:   data,
		logger: log.NewHelper(logger),
	}
}

// InitializeCircuit inserts the definition's default row if absent.
// An existing row is left untouched, so re-initialization never undoes
// a manual state change.
func (r *CircuitBreakerRepo) InitializeCircuit(ctx context.Context, def model.CircuitDefinition) error {
	threshold := def.FailureThreshold
	if threshold <= 0 {
		threshold = model.DefaultFailureThreshold
	}

	rec := model.CircuitRecord{
		CircuitID:        def.CircuitID,
		CircuitType:      def.CircuitType,
		State:            def.DefaultState,
		FailureThreshold: threshold,
		StateChangedAt:   time.Now(),
	}

	result := r.data.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("failed to initialize circuit %s: %w", def.CircuitID, result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Infow("circuit initialized",
			"circuit_id", def.CircuitID,
			"default_state", string(def.DefaultState))
	}
	return nil
}

// GetState retrieves a circuit record, via the Redis cache when warm.
// Returns (nil, nil) when no row exists.
func (r *CircuitBreakerRepo) GetState(ctx context.Context, circuitID string) (*model.CircuitRecord, error) {
	if cached := r.cacheGet(ctx, circuitID); cached != nil {
		return cached, nil
	}

	var rec model.CircuitRecord
	if err := r.data.db.WithContext(ctx).Where("circuit_id = ?", circuitID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get circuit state: %w", err)
	}

	r.cacheSet(ctx, &rec)
	return &rec, nil
}

// SetState writes the state and stateChangedAt unconditionally.
func (r *CircuitBreakerRepo) SetState(ctx context.Context, circuitID string, state model.CircuitState, changedAt time.Time) error {
	result := r.data.db.WithContext(ctx).
		Model(&model.CircuitRecord{}).
		Where("circuit_id = ?", circuitID).
		Updates(map[string]interface{}{
			"state":            state,
			"state_changed_at": changedAt,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set circuit state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("circuit not found: %s", circuitID)
	}

	r.cacheInvalidate(ctx, circuitID)
	return nil
}

// GetAllStates returns every circuit record ordered by ID.
func (r *CircuitBreakerRepo) GetAllStates(ctx context.Context) ([]model.CircuitRecord, error) {
	var records []model.CircuitRecord
	if err := r.data.db.WithContext(ctx).Order("circuit_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list circuit states: %w", err)
	}
	return records, nil
}

// RecordFailure atomically increments the failure counter in a single
// UPDATE, then reads the new value back. Concurrent callers may
// interleave the read with further increments; an occasional off-by-one
// toward the threshold is accepted.
func (r *CircuitBreakerRepo) RecordFailure(ctx context.Context, circuitID string) (int, error) {
	now := time.Now()
	result := r.data.db.WithContext(ctx).
		Model(&model.CircuitRecord{}).
		Where("circuit_id = ?", circuitID).
		Updates(map[string]interface{}{
			"failure_count":   gorm.Expr("failure_count + 1"),
			"last_failure_at": now,
			"updated_at":      now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to record failure: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Unknown circuit: nothing to count.
		return 0, nil
	}

	r.cacheInvalidate(ctx, circuitID)
	return r.readCounter(ctx, circuitID, "failure_count")
}

// RecordSuccess atomically increments the success counter, mirroring
// RecordFailure.
func (r *CircuitBreakerRepo) RecordSuccess(ctx context.Context, circuitID string) (int, error) {
	now := time.Now()
	result := r.data.db.WithContext(ctx).
		Model(&model.CircuitRecord{}).
		Where("circuit_id = ?", circuitID).
		Updates(map[string]interface{}{
			"success_count":   gorm.Expr("success_count + 1"),
			"last_success_at": now,
			"updated_at":      now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to record success: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}

	r.cacheInvalidate(ctx, circuitID)
	return r.readCounter(ctx, circuitID, "success_count")
}

// ResetCounters zeroes both counters.
func (r *CircuitBreakerRepo) ResetCounters(ctx context.Context, circuitID string) error {
	result := r.data.db.WithContext(ctx).
		Model(&model.CircuitRecord{}).
		Where("circuit_id = ?", circuitID).
		Updates(map[string]interface{}{
			"failure_count": 0,
			"success_count": 0,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reset counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("circuit not found: %s", circuitID)
	}

	r.cacheInvalidate(ctx, circuitID)
	return nil
}

// readCounter reads a single counter column after an increment.
func (r *CircuitBreakerRepo) readCounter(ctx context.Context, circuitID, column string) (int, error) {
	var count int
	err := r.data.db.WithContext(ctx).
		Model(&model.CircuitRecord{}).
		Select(column).
		Where("circuit_id = ?", circuitID).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", column, err)
	}
	return count, nil
}

func circuitCacheKey(circuitID string) string {
	return fmt.Sprintf("circuit:%s", circuitID)
}

// cacheGet returns the cached record, or nil on miss/error/nil client.
func (r *CircuitBreakerRepo) cacheGet(ctx context.Context, circuitID string) *model.CircuitRecord {
	if r.data.rdb == nil {
		return nil
	}
	raw, err := r.data.rdb.Get(ctx, circuitCacheKey(circuitID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		r.logger.Warnw("circuit cache read failed (degraded mode)",
			"circuit_id", circuitID,
			"error", err)
		return nil
	}
	var rec model.CircuitRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		r.logger.Warnw("circuit cache entry corrupt, dropping",
			"circuit_id", circuitID,
			"error", err)
		r.cacheInvalidate(ctx, circuitID)
		return nil
	}
	return &rec
}

// cacheSet stores a record in the cache. Failures are logged only.
func (r *CircuitBreakerRepo) cacheSet(ctx context.Context, rec *model.CircuitRecord) {
	if r.data.rdb == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.data.rdb.Set(ctx, circuitCacheKey(rec.CircuitID), raw, circuitCacheTTL).Err(); err != nil {
		r.logger.Warnw("circuit cache write failed (degraded mode)",
			"circuit_id", rec.CircuitID,
			"error", err)
	}
}

// cacheInvalidate drops a cached record after any write.
func (r *CircuitBreakerRepo) cacheInvalidate(ctx context.Context, circuitID string) {
	if r.data.rdb == nil {
		return
	}
	if err := r.data.rdb.Del(ctx, circuitCacheKey(circuitID)).Err(); err != nil {
		r.logger.Warnw("circuit cache invalidation failed (degraded mode)",
			"circuit_id", circuitID,
			"error", err)
	}
}
