package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/model"
	"github.com/netdriver/netdriver/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

var db *gorm.DB

// 每个连接建立时生效的 PRAGMA
var pragmas = []string{
	"busy_timeout(15000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

const (
	defaultBackoff = 50 * time.Millisecond
	maxBackoff     = 500 * time.Millisecond
)

// InitSQLite 初始化SQLite数据库并迁移请求记录相关表
func InitSQLite(cfg config.SQLiteConfig) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		// 写入由调用方显式开启事务
		SkipDefaultTransaction: true,
	}

	conn, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn(cfg.Path),
	}, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(atLeastOne(cfg.MaxIdleConns))
	sqlDB.SetMaxOpenConns(atLeastOne(cfg.MaxOpenConns))
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := conn.AutoMigrate(
		&model.Request{},
		&model.CommandLog{},
		&model.ConfigSnapshot{},
	); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	db = conn
	logger.Info("SQLite database initialized", "path", cfg.Path)
	return nil
}

// dsn 以 modernc 驱动的 _pragma 参数拼接连接串
func dsn(path string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	return path + "?" + strings.Join(params, "&")
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return db
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "cannot start a transaction within a transaction")
}

// retry 仅对锁冲突重试，退避时间逐次翻倍直到 maxBackoff
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = defaultBackoff
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsBusyError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		time.Sleep(sleep)
		if sleep < maxBackoff {
			sleep *= 2
		}
	}
	return err
}

// WithRetry 在锁冲突时重试单条写操作
func WithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return retry(attempts, sleep, func() error { return fn(db) })
}

// TransactionWithRetry 整个事务失败于锁冲突时重试
func TransactionWithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return retry(attempts, sleep, func() error { return db.Transaction(fn) })
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func Health() error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetStats 连接池统计
func GetStats() map[string]interface{} {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}

	stats := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}
}
