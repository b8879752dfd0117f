package model

import (
	"time"
)

// Request 一次 API 请求（一台设备上的一组任务）
type Request struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	CorrelationID string    `json:"correlation_id" gorm:"type:varchar(64);index"`
	Kind          string    `json:"kind" gorm:"type:varchar(16);not null"`
	Protocol      string    `json:"protocol" gorm:"type:varchar(16);not null;default:'ssh'"`
	DeviceIP      string    `json:"device_ip" gorm:"type:varchar(64);not null;index"`
	DevicePort    int       `json:"device_port" gorm:"not null;default:22"`
	Username      string    `json:"username" gorm:"type:varchar(64);not null"`
	Vendor        string    `json:"vendor" gorm:"type:varchar(64)"`
	Model         string    `json:"model" gorm:"type:varchar(64)"`
	Version       string    `json:"version" gorm:"type:varchar(64)"`
	Vsys          string    `json:"vsys" gorm:"type:varchar(64)"`
	Commands      int       `json:"commands"`
	Status        string    `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	ErrorCode     string    `json:"error_code" gorm:"type:varchar(32)"`
	ErrorMsg      string    `json:"error_msg" gorm:"type:text"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Duration      int64     `json:"duration"` // 毫秒
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Request) TableName() string {
	return "requests"
}

// 请求状态
const (
	RequestStatusSuccess = "success"
	RequestStatusPartial = "partial"
	RequestStatusFailed  = "failed"
)

// 请求类型
const (
	RequestKindCmd  = "cmd"
	RequestKindPull = "pull"
)

// CommandLog 单条命令的执行结果
type CommandLog struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RequestID   string    `json:"request_id" gorm:"type:varchar(64);not null;index"`
	Seq         int       `json:"seq" gorm:"not null"`
	Command     string    `json:"command" gorm:"type:text;not null"`
	Mode        string    `json:"mode" gorm:"type:varchar(16)"`
	RetCode     string    `json:"ret_code" gorm:"type:varchar(32);not null"`
	DeviceError string    `json:"device_error" gorm:"type:text"`
	ErrorMsg    string    `json:"error_msg" gorm:"type:text"`
	OutputSize  int       `json:"output_size"`
	QueueTime   int64     `json:"queue_time"` // 毫秒
	ExecTime    int64     `json:"exec_time"`  // 毫秒
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (CommandLog) TableName() string {
	return "command_logs"
}

// ConfigSnapshot 已归档的配置快照
type ConfigSnapshot struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RequestID  string    `json:"request_id" gorm:"type:varchar(64);not null;index"`
	DeviceIP   string    `json:"device_ip" gorm:"type:varchar(64);not null;index"`
	Vsys       string    `json:"vsys" gorm:"type:varchar(64)"`
	ConfigType string    `json:"config_type" gorm:"type:varchar(16);not null"`
	Backend    string    `json:"backend" gorm:"type:varchar(16)"`
	URI        string    `json:"uri" gorm:"type:text"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum" gorm:"type:varchar(128)"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (ConfigSnapshot) TableName() string {
	return "config_snapshots"
}
