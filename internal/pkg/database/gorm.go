package database

import (
	"Courier/internal/api/config"
	"Courier/internal/pkg/logger"
	"context"
	log "log/slog"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const pingTimeout = 5 * time.Second

// NewGormDB 连接用户资料库，只用于读取昵称与头像
func NewGormDB(cfg *config.DBConfig) (*gorm.DB, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.New(mysql.Config{DSN: dsn}), &gorm.Config{
		Logger:                 logger.NewGormLogger(),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open profile database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get underlying DB")
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "profile database ping")
	}

	log.Info("Profile database connected", "max_open", cfg.MaxOpen)
	return db, nil
}

// normalizeDSN 时间列按 UTC 解析为 time.Time
func normalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("database dsn is empty")
	}
	parsed, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse database dsn")
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}

// Close 释放连接池
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
