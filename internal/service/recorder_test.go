package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/database"
	"github.com/netdriver/netdriver/internal/model"
	"github.com/netdriver/netdriver/internal/task"
)

func initTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netdriver.db")
	require.NoError(t, database.InitSQLite(config.SQLiteConfig{Enabled: true, Path: path}))
	t.Cleanup(func() { _ = database.Close() })
}

func TestRecorderSaveRequest(t *testing.T) {
	initTestDB(t)
	rec := NewRecorder(true)

	start := time.Now().Add(-time.Second)
	req := &model.Request{Kind: model.RequestKindCmd, DeviceIP: "192.0.2.10", DevicePort: 22, Username: "admin", StartTime: start}
	err := rec.SaveRequest(req, []CommandRecord{
		{Command: "show clock", Mode: "enable", Result: task.Result{Output: "08:15", ExecTime: 20 * time.Millisecond}},
		{Command: "show foo", Mode: "enable", Result: task.Result{
			DeviceError: "% Invalid input",
			Exception:   task.DeviceReportedError("% Invalid input"),
		}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)
	assert.Equal(t, model.RequestStatusPartial, req.Status)
	assert.GreaterOrEqual(t, req.Duration, int64(1000))

	got, logs, err := rec.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Commands)
	require.Len(t, logs, 2)
	assert.Equal(t, "OK", logs[0].RetCode)
	assert.Equal(t, int64(20), logs[0].ExecTime)
	assert.Equal(t, 5, logs[0].OutputSize)
	assert.Equal(t, string(task.ErrCodeDeviceReported), logs[1].RetCode)
	assert.Equal(t, "% Invalid input", logs[1].DeviceError)

	_, _, err = rec.Request("missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecorderSnapshots(t *testing.T) {
	initTestDB(t)
	rec := NewRecorder(true)
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.SaveSnapshot(&model.ConfigSnapshot{
			RequestID: "r", DeviceIP: "192.0.2.10", ConfigType: "running", Backend: "local", URI: "file:///tmp/x",
		}))
	}
	snaps, err := rec.Snapshots("192.0.2.10", 2)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestRecorderDisabled(t *testing.T) {
	rec := NewRecorder(false)
	assert.False(t, rec.Enabled())
	assert.NoError(t, rec.SaveRequest(&model.Request{}, nil))
	_, _, err := rec.Request("x")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRetCode(t *testing.T) {
	assert.Equal(t, "OK", RetCode(nil))
	assert.Equal(t, "SESSION_LOST", RetCode(task.SessionLostError(nil)))
	assert.Equal(t, "ERROR", RetCode(errors.New("boom")))
}

func TestRecorderPurge(t *testing.T) {
	initTestDB(t)
	rec := NewRecorder(true)

	old := &model.Request{Kind: model.RequestKindCmd, DeviceIP: "192.0.2.10", Username: "admin"}
	require.NoError(t, rec.SaveRequest(old, []CommandRecord{{Command: "show clock", Result: task.Result{Output: "x"}}}))
	require.NoError(t, rec.SaveSnapshot(&model.ConfigSnapshot{RequestID: old.ID, DeviceIP: "192.0.2.10", ConfigType: "running"}))

	cutoff := time.Now().Add(time.Second)
	// 按创建时间回拨，模拟过期记录
	db := database.GetDB()
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&model.Request{}).Where("id = ?", old.ID).UpdateColumn("created_at", past).Error)
	require.NoError(t, db.Model(&model.ConfigSnapshot{}).Where("request_id = ?", old.ID).UpdateColumn("created_at", past).Error)

	fresh := &model.Request{Kind: model.RequestKindPull, DeviceIP: "192.0.2.11", Username: "admin"}
	require.NoError(t, rec.SaveRequest(fresh, nil))

	n, err := rec.Purge(cutoff.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, _, err = rec.Request(old.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	var logs int64
	require.NoError(t, db.Model(&model.CommandLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
	snaps, err := rec.Snapshots("192.0.2.10", 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	_, _, err = rec.Request(fresh.ID)
	assert.NoError(t, err)
}
