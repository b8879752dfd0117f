package paloalto

import "github.com/netdriver/netdriver/addone/interact"

// 操作模式 user@host>，配置模式 user@host#；HA 状态会附加在主机名后，如 user@fw(active)>
const (
	enablePrompt = `(?m)^\r*[\w\-.]+@[\w\-.]+(?:\([\w\-]+\))?>\s*$`
	configPrompt = `(?m)^\r*[\w\-.]+@[\w\-.]+(?:\([\w\-]+\))?#\s*$`
)

var errorPatterns = []string{
	`Unknown command: .+`,
	`Invalid syntax\.`,
	`Server error: .+`,
	`Validation Error:`,
	`Commit failed`,
}

// NewPA Palo Alto PAN-OS 防火墙
func NewPA() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "paloalto", Model: "pa", Version: "*", Description: "Palo Alto PAN-OS"},
		Patterns: interact.PatternSpec{
			Enable: enablePrompt,
			Config: configPrompt,
			Errors: errorPatterns,
		},
		Transitions: []interact.Transition{
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure", Canonical: true},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "exit", Canonical: true},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "quit"},
		},
		VsysEnter:       []string{"set system setting target-vsys {vsys}"},
		VsysMatch:       `(?i)^set\s+system\s+setting\s+target-vsys\s+(\S+)$`,
		SessionCommands: []string{"set cli pager off", "set cli scripting-mode on"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show config running",
			interact.ConfigStartup: "show config saved",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewPA}
}
