package interact

import (
	"fmt"
	"strings"
)

// Mode 会话权限模式
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeEnable Mode = "enable"
	ModeConfig Mode = "config"
	// ModeUnion 仅用于提示符查询，表示“任一具体模式”，不会作为会话的当前模式
	ModeUnion Mode = "union"
)

// ConcreteModes 具体模式，按提示符识别优先级排列
var ConcreteModes = []Mode{ModeConfig, ModeEnable, ModeLogin}

// ParseMode 解析模式名称（大小写不敏感），空串视为 union
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLogin:
		return ModeLogin, nil
	case ModeEnable:
		return ModeEnable, nil
	case ModeConfig:
		return ModeConfig, nil
	case ModeUnion, "":
		return ModeUnion, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Concrete 是否为真实会话状态
func (m Mode) Concrete() bool {
	return m == ModeLogin || m == ModeEnable || m == ModeConfig
}

func (m Mode) String() string { return string(m) }

// ConfigType 配置拉取类型
type ConfigType string

const (
	ConfigRunning ConfigType = "running"
	ConfigStartup ConfigType = "startup"
)

// ParseConfigType 解析配置类型
func ParseConfigType(s string) (ConfigType, error) {
	switch ConfigType(strings.ToLower(strings.TrimSpace(s))) {
	case ConfigRunning, "":
		return ConfigRunning, nil
	case ConfigStartup:
		return ConfigStartup, nil
	}
	return "", fmt.Errorf("unknown config type %q", s)
}
