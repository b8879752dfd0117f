package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netdriver/netdriver/internal/database"
	"github.com/netdriver/netdriver/internal/model"
	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/pkg/logger"
)

// 写库遇到 SQLite 锁冲突时的重试参数
const (
	recordAttempts = 5
	recordBackoff  = 50 * time.Millisecond
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = errors.New("record not found")

// Recorder 请求与命令结果持久化；未启用数据库时所有写入为空操作
type Recorder struct {
	enabled bool
}

// NewRecorder 创建记录器
func NewRecorder(enabled bool) *Recorder {
	return &Recorder{enabled: enabled}
}

// Enabled 是否启用持久化
func (r *Recorder) Enabled() bool { return r != nil && r.enabled }

// CommandRecord 单条命令的结果摘要
type CommandRecord struct {
	Command string
	Mode    string
	Result  task.Result
}

// SaveRequest 在一个事务内写入请求及其命令结果，并根据结果汇总请求状态
func (r *Recorder) SaveRequest(req *model.Request, commands []CommandRecord) error {
	if !r.Enabled() {
		return nil
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Commands = len(commands)
	req.Status = summarize(commands)
	if req.EndTime.IsZero() {
		req.EndTime = time.Now()
	}
	if !req.StartTime.IsZero() {
		req.Duration = req.EndTime.Sub(req.StartTime).Milliseconds()
	}

	logs := make([]model.CommandLog, 0, len(commands))
	for i, c := range commands {
		l := model.CommandLog{
			ID:          uuid.NewString(),
			RequestID:   req.ID,
			Seq:         i,
			Command:     c.Command,
			Mode:        c.Mode,
			RetCode:     RetCode(c.Result.Exception),
			DeviceError: c.Result.DeviceError,
			OutputSize:  len(c.Result.Output),
			QueueTime:   c.Result.QueueTime.Milliseconds(),
			ExecTime:    c.Result.ExecTime.Milliseconds(),
		}
		if c.Result.Exception != nil {
			l.ErrorMsg = c.Result.Exception.Error()
		}
		logs = append(logs, l)
	}

	err := database.TransactionWithRetry(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		if len(logs) == 0 {
			return nil
		}
		return tx.Create(&logs).Error
	}, recordAttempts, recordBackoff)
	if err != nil {
		return fmt.Errorf("save request %s: %w", req.ID, err)
	}
	return nil
}

// SaveSnapshot 记录已归档的配置快照
func (r *Recorder) SaveSnapshot(snap *model.ConfigSnapshot) error {
	if !r.Enabled() {
		return nil
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	err := database.WithRetry(func(db *gorm.DB) error {
		return db.Create(snap).Error
	}, recordAttempts, recordBackoff)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Request 查询请求及其命令结果
func (r *Recorder) Request(id string) (*model.Request, []model.CommandLog, error) {
	if !r.Enabled() {
		return nil, nil, ErrRecordNotFound
	}
	db := database.GetDB()
	var req model.Request
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRecordNotFound
		}
		return nil, nil, err
	}
	var logs []model.CommandLog
	if err := db.Where("request_id = ?", id).Order("seq").Find(&logs).Error; err != nil {
		return nil, nil, err
	}
	return &req, logs, nil
}

// Snapshots 查询设备最近的配置快照
func (r *Recorder) Snapshots(deviceIP string, limit int) ([]model.ConfigSnapshot, error) {
	if !r.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var out []model.ConfigSnapshot
	err := database.GetDB().Where("device_ip = ?", deviceIP).
		Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// Purge 删除 before 之前创建的请求、命令结果与快照记录，返回删除的请求数
// 已归档的快照文件不在此处删除。
func (r *Recorder) Purge(before time.Time) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	var purged int64
	err := database.TransactionWithRetry(func(tx *gorm.DB) error {
		sub := tx.Model(&model.Request{}).Select("id").Where("created_at < ?", before)
		if err := tx.Where("request_id IN (?)", sub).Delete(&model.CommandLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("created_at < ?", before).Delete(&model.ConfigSnapshot{}).Error; err != nil {
			return err
		}
		res := tx.Where("created_at < ?", before).Delete(&model.Request{})
		purged = res.RowsAffected
		return res.Error
	}, recordAttempts, recordBackoff)
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	return purged, nil
}

// StartPurger 按 retention 周期清理过期记录，ctx 结束时退出
func (r *Recorder) StartPurger(ctx context.Context, retention time.Duration) {
	if !r.Enabled() || retention <= 0 {
		return
	}
	interval := retention / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := r.Purge(now.Add(-retention))
				if err != nil {
					logger.Warn("Purge records failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("Expired records purged", "requests", n)
				}
			}
		}
	}()
}

// RetCode 结果码：成功为 OK，否则为任务错误码
func RetCode(err error) string {
	if err == nil {
		return "OK"
	}
	if code := task.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func summarize(commands []CommandRecord) string {
	failed := 0
	for _, c := range commands {
		if c.Result.Exception != nil {
			failed++
		}
	}
	switch {
	case failed == 0:
		return model.RequestStatusSuccess
	case failed == len(commands):
		return model.RequestStatusFailed
	default:
		return model.RequestStatusPartial
	}
}
