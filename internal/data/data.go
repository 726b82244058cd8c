package data

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewMySQLClient,
	NewRedisClient,
)

// Data holds the shared datastore clients.
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewData creates the Data container and its cleanup function.
func NewData(db *gorm.DB, rdb *redis.Client, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	cleanup := func() {
		helper.Info("closing the data resources")
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				helper.Errorw("failed to close mysql connection", "error", err)
			}
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				helper.Errorw("failed to close redis connection", "error", err)
			}
		}
	}

	return &Data{db: db, rdb: rdb}, cleanup, nil
}
