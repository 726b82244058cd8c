package data

import (
	"context"
	"fmt"
	"time"

	"FlapBoard/internal/conf"
	"FlapBoard/internal/model"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewMySQLClient creates the gorm client, verifies connectivity and runs
// schema migration for the owned tables.
func NewMySQLClient(cfg *conf.Data, logger log.Logger) (*gorm.DB, error) {
	helper := log.NewHelper(logger)

	db, err := gorm.Open(mysql.Open(cfg.Database.Source), &gorm.Config{
		Logger: newGormLogAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	if err := db.AutoMigrate(
		&model.CircuitRecord{},
		&model.Frame{},
		&EventLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	helper.Info("mysql connected")
	return db, nil
}

// gormLogAdapter routes gorm's logging through the application logger.
type gormLogAdapter struct {
	helper        *log.Helper
	slowThreshold time.Duration
}

func newGormLogAdapter(logger log.Logger) gormlogger.Interface {
	return &gormLogAdapter{
		helper:        log.NewHelper(logger),
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *gormLogAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *gormLogAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	l.helper.Infof(msg, args...)
}

func (l *gormLogAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.helper.Warnf(msg, args...)
}

func (l *gormLogAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	l.helper.Errorf(msg, args...)
}

func (l *gormLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && err != gorm.ErrRecordNotFound:
		sql, rows := fc()
		l.helper.Errorw("sql error", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > l.slowThreshold:
		sql, rows := fc()
		l.helper.Warnw("slow sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
