package data

import (
	"context"
	"os"
	"testing"
	"time"

	"FlapBoard/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheTestRepo(t *testing.T) (*CircuitBreakerRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	// db stays nil: these tests must be served entirely from the cache.
	repo := NewCircuitBreakerRepo(&Data{rdb: rdb}, log.NewStdLogger(os.Stdout))
	return repo, mr
}

func testRecord() *model.CircuitRecord {
	return &model.CircuitRecord{
		CircuitID:        model.CircuitProviderOpenAI,
		CircuitType:      model.CircuitTypeProvider,
		State:            model.CircuitOn,
		FailureCount:     2,
		FailureThreshold: 5,
		StateChangedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestCircuitCache_RoundTrip(t *testing.T) {
	repo, _ := newCacheTestRepo(t)
	ctx := context.Background()

	rec := testRecord()
	repo.cacheSet(ctx, rec)

	got := repo.cacheGet(ctx, rec.CircuitID)
	require.NotNil(t, got)
	assert.Equal(t, rec.CircuitID, got.CircuitID)
	assert.Equal(t, model.CircuitOn, got.State)
	assert.Equal(t, 2, got.FailureCount)
}

func TestCircuitCache_GetStateServedFromCache(t *testing.T) {
	repo, _ := newCacheTestRepo(t)
	ctx := context.Background()

	rec := testRecord()
	repo.cacheSet(ctx, rec)

	// A nil gorm client would panic if GetState fell through to MySQL.
	got, err := repo.GetState(ctx, rec.CircuitID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.CircuitID, got.CircuitID)
}

func TestCircuitCache_Invalidate(t *testing.T) {
	repo, _ := newCacheTestRepo(t)
	ctx := context.Background()

	rec := testRecord()
	repo.cacheSet(ctx, rec)
	repo.cacheInvalidate(ctx, rec.CircuitID)

	assert.Nil(t, repo.cacheGet(ctx, rec.CircuitID))
}

func TestCircuitCache_EntryExpires(t *testing.T) {
	repo, mr := newCacheTestRepo(t)
	ctx := context.Background()

	repo.cacheSet(ctx, testRecord())
	mr.FastForward(circuitCacheTTL + time.Second)

	assert.Nil(t, repo.cacheGet(ctx, model.CircuitProviderOpenAI))
}

func TestCircuitCache_CorruptEntryDropped(t *testing.T) {
	repo, mr := newCacheTestRepo(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(circuitCacheKey(model.CircuitProviderOpenAI), "not json"))

	assert.Nil(t, repo.cacheGet(ctx, model.CircuitProviderOpenAI))
	// The corrupt entry is deleted, not left to poison later reads.
	assert.False(t, mr.Exists(circuitCacheKey(model.CircuitProviderOpenAI)))
}

func TestCircuitCache_RedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewCircuitBreakerRepo(&Data{rdb: rdb}, log.NewStdLogger(os.Stdout))
	mr.Close()

	// All cache operations fail soft once Redis is gone.
	assert.Nil(t, repo.cacheGet(context.Background(), model.CircuitProviderOpenAI))
	repo.cacheSet(context.Background(), testRecord())
	repo.cacheInvalidate(context.Background(), model.CircuitProviderOpenAI)
}

func TestCircuitCache_NilClientNoop(t *testing.T) {
	repo := NewCircuitBreakerRepo(&Data{}, log.NewStdLogger(os.Stdout))

	assert.Nil(t, repo.cacheGet(context.Background(), model.CircuitProviderOpenAI))
	repo.cacheSet(context.Background(), testRecord())
	repo.cacheInvalidate(context.Background(), model.CircuitProviderOpenAI)
}
