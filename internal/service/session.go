package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/ssh"
)

// Session 设备交互会话，同一时刻只被一个任务组借用
type Session interface {
	Write(text string) error
	// ReadUntil 读取直到输出最后一行匹配 pattern；超时返回 ssh.ErrReadTimeout，断开返回 ssh.ErrSessionClosed
	ReadUntil(pattern *regexp.Regexp, timeout time.Duration) (string, error)
	IsAlive() bool
}

// SessionPool 会话池
type SessionPool interface {
	// Acquire 借出 (设备, 虚拟系统) 对应的会话；fresh 为 true 表示新建，需要初始化
	Acquire(ctx context.Context, target Target, vsys string) (sess Session, fresh bool, err error)
	Release(sess Session)
	Invalidate(sess Session)
	// Evict 释放设备的全部空闲会话
	Evict(target Target)
}

// Target 设备身份与登录信息
type Target struct {
	Protocol       string `json:"protocol"`
	Host           string `json:"ip"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"-"`
	EnablePassword string `json:"-"`
	Vendor         string `json:"vendor"`
	Model          string `json:"model"`
	Version        string `json:"version"`
	Encoding       string `json:"encode"`
}

// Key 设备引擎键；登录口令与特权口令以摘要参与区分
func (t Target) Key() string {
	protocol := strings.ToLower(strings.TrimSpace(t.Protocol))
	if protocol == "" {
		protocol = "ssh"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s/%s",
		protocol, t.Username, ssh.Fingerprint(t.Password, t.EnablePassword), t.Host, t.Port,
		interact.Key(t.Vendor, t.Model), strings.ToLower(strings.TrimSpace(t.Version)))
}

// String 日志展示
func (t Target) String() string {
	return fmt.Sprintf("%s@%s:%d(%s)", t.Username, t.Host, t.Port, interact.Key(t.Vendor, t.Model))
}
