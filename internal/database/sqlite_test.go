package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/model"
)

func TestRetryOnlyOnBusy(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		return errors.New("database is locked (5) (SQLITE_BUSY)")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retry(3, time.Millisecond, func() error {
		calls++
		return errors.New("UNIQUE constraint failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = retry(3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"a.db?_pragma=busy_timeout(15000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dsn("a.db"))
}

func TestInitSQLite(t *testing.T) {
	assert.Error(t, Health())
	assert.Error(t, WithRetry(func(*gorm.DB) error { return nil }, 1, 0))

	path := filepath.Join(t.TempDir(), "sub", "netdriver.db")
	require.NoError(t, InitSQLite(config.SQLiteConfig{Enabled: true, Path: path}))
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, Health())
	assert.True(t, GetDB().Migrator().HasTable(&model.Request{}))
	assert.True(t, GetDB().Migrator().HasTable(&model.CommandLog{}))
	assert.True(t, GetDB().Migrator().HasTable(&model.ConfigSnapshot{}))
	assert.Equal(t, 1, GetStats()["max_open_connections"])

	err := TransactionWithRetry(func(tx *gorm.DB) error {
		return tx.Create(&model.Request{ID: "r1", Kind: model.RequestKindCmd}).Error
	}, 3, 0)
	require.NoError(t, err)
	var n int64
	require.NoError(t, GetDB().Model(&model.Request{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
