package data

import (
	"context"
	"regexp"
	"testing"
	"time"

	"FlapBoard/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupCircuitTestDB creates a CircuitBreakerRepo over sqlmock. Redis
// stays nil so every operation hits the mocked database directly.
func setupCircuitTestDB(t *testing.T) (*CircuitBreakerRepo, sqlmock.Sqlmock, func()) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	repo := NewCircuitBreakerRepo(&Data{db: gormDB}, log.DefaultLogger)

	cleanup := func() {
		sqlDB.Close()
	}

	return repo, mock, cleanup
}

func circuitRows(rec *model.CircuitRecord) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"circuit_id", "circuit_type", "state",
		"failure_count", "success_count", "failure_threshold",
		"last_failure_at", "last_success_at", "state_changed_at",
		"created_at", "updated_at",
	}).AddRow(
		rec.CircuitID, string(rec.CircuitType), string(rec.State),
		rec.FailureCount, rec.SuccessCount, rec.FailureThreshold,
		rec.LastFailureAt, rec.LastSuccessAt, rec.StateChangedAt,
		now, now,
	)
}

// TestInitializeCircuit_InsertIfAbsent covers the seeding contract: the
// insert carries ON DUPLICATE KEY so a pre-existing row (for example one
// an operator flipped off) is never touched by re-initialization.
func TestInitializeCircuit_InsertIfAbsent(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	ctx := context.Background()
	def := model.CircuitRegistry()[0] // MASTER

	t.Run("first initialization inserts the default row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `circuit_breaker_states`")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.InitializeCircuit(ctx, def)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-initialization leaves the existing row untouched", func(t *testing.T) {
		// The conflict clause makes the insert a no-op; no UPDATE may
		// follow, or a restart would undo a manual state change.
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `circuit_breaker_states`")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.InitializeCircuit(ctx, def)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetState_DatabasePaths(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("row found", func(t *testing.T) {
		rec := &model.CircuitRecord{
			CircuitID:        model.CircuitProviderOpenAI,
			CircuitType:      model.CircuitTypeProvider,
			State:            model.CircuitHalfOpen,
			FailureCount:     5,
			FailureThreshold: 5,
			StateChangedAt:   time.Now(),
		}
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `circuit_breaker_states` WHERE circuit_id = ?")).
			WithArgs(model.CircuitProviderOpenAI, 1).
			WillReturnRows(circuitRows(rec))

		got, err := repo.GetState(ctx, model.CircuitProviderOpenAI)

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.CircuitHalfOpen, got.State)
		assert.Equal(t, 5, got.FailureCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row missing returns nil record and nil error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `circuit_breaker_states` WHERE circuit_id = ?")).
			WithArgs("NO_SUCH_CIRCUIT", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		got, err := repo.GetState(ctx, "NO_SUCH_CIRCUIT")

		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetState_DatabasePaths(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	t.Run("update succeeds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.SetState(ctx, model.CircuitProviderOpenAI, model.CircuitOff, now)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is an error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.SetState(ctx, "NO_SUCH_CIRCUIT", model.CircuitOff, now)

		assert.ErrorContains(t, err, "circuit not found: NO_SUCH_CIRCUIT")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestRecordFailure_IncrementThenRead covers the atomic counter
// protocol: a single relative UPDATE, then a readback of the new value.
func TestRecordFailure_IncrementThenRead(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("increments and reads back the counter", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		countRows := sqlmock.NewRows([]string{"failure_count"}).AddRow(3)
		mock.ExpectQuery("SELECT .*failure_count.* FROM `circuit_breaker_states`").
			WithArgs(model.CircuitProviderOpenAI).
			WillReturnRows(countRows)

		count, err := repo.RecordFailure(ctx, model.CircuitProviderOpenAI)

		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown circuit counts nothing", func(t *testing.T) {
		// No readback may follow when the UPDATE matched no row.
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		count, err := repo.RecordFailure(ctx, "NO_SUCH_CIRCUIT")

		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordSuccess_IncrementThenRead(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	countRows := sqlmock.NewRows([]string{"success_count"}).AddRow(2)
	mock.ExpectQuery("SELECT .*success_count.* FROM `circuit_breaker_states`").
		WithArgs(model.CircuitProviderAnthropic).
		WillReturnRows(countRows)

	count, err := repo.RecordSuccess(context.Background(), model.CircuitProviderAnthropic)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetCounters_DatabasePaths(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("zeroes both counters", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.ResetCounters(ctx, model.CircuitProviderOpenAI)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is an error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `circuit_breaker_states` SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.ResetCounters(ctx, "NO_SUCH_CIRCUIT")

		assert.ErrorContains(t, err, "circuit not found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetAllStates_OrdersByCircuitID(t *testing.T) {
	repo, mock, cleanup := setupCircuitTestDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"circuit_id", "circuit_type", "state", "failure_count", "success_count", "failure_threshold", "state_changed_at"}).
		AddRow(model.CircuitMaster, "manual", "on", 0, 0, 5, time.Now()).
		AddRow(model.CircuitProviderOpenAI, "provider", "off", 5, 0, 5, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `circuit_breaker_states` ORDER BY circuit_id")).
		WillReturnRows(rows)

	records, err := repo.GetAllStates(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.CircuitMaster, records[0].CircuitID)
	assert.Equal(t, model.CircuitOff, records[1].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}
