package config

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the ledger database and applies the pool limits from cfg.
func NewDatabase(cfg *DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}

	db, err := gorm.Open(dialector(cfg), &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s ledger database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// Payment transitions hold a row lock for one short transaction each.
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s ledger database at %s:%s: %w", cfg.Driver, cfg.Host, cfg.Port, err)
	}

	log.Info("Ledger database ready",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.String("name", cfg.Name),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return db, nil
}

func dialector(cfg *DatabaseConfig) gorm.Dialector {
	if cfg.Driver == "postgres" {
		return postgres.Open(cfg.DSN())
	}
	return mysql.Open(cfg.DSN())
}
