package cisco

import "github.com/netdriver/netdriver/addone/interact"

// 提示符：hostname> / hostname# / hostname(config)#，ASA 多上下文时主机名形如 asa/ctx1
const (
	loginPrompt    = `(?m)^\r*[\w\-./:]+>\s*$`
	enablePrompt   = `(?m)^\r*[\w\-./:]+#\s*$`
	configPrompt   = `(?m)^\r*[\w\-./:]+\(config[^)]*\)#\s*$`
	passwordPrompt = `(?mi)^\r*password:\s*$`
	morePrompt     = `(?i)-+\s*more\s*-+>?\s*$`
)

var errorPatterns = []string{
	`% Invalid command at '\^' marker\.`,
	`% Invalid parameter detected at '\^' marker\.`,
	`% Invalid input detected at '\^' marker\.`,
	`invalid vlan \(reserved value\) at '\^' marker\.`,
	`ERROR: VLAN \d+ is not a primary vlan`,
	`(?m)^% Incomplete command\.?$`,
	`(?m)^% Ambiguous command:.*$`,
	`(?m)^ERROR: .+$`,
}

func patterns() interact.PatternSpec {
	return interact.PatternSpec{
		Login:          loginPrompt,
		Enable:         enablePrompt,
		Config:         configPrompt,
		EnablePassword: passwordPrompt,
		More:           morePrompt,
		Errors:         errorPatterns,
	}
}

func transitions() []interact.Transition {
	return []interact.Transition{
		{From: interact.ModeLogin, To: interact.ModeEnable, Command: "enable", Canonical: true},
		{From: interact.ModeEnable, To: interact.ModeLogin, Command: "disable", Canonical: true},
		{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure terminal", Canonical: true},
		{From: interact.ModeEnable, To: interact.ModeConfig, Command: "conf t"},
		{From: interact.ModeEnable, To: interact.ModeConfig, Command: "config t"},
		{From: interact.ModeConfig, To: interact.ModeEnable, Command: "end", Canonical: true},
	}
}

var pullCommands = map[interact.ConfigType]string{
	interact.ConfigRunning: "show running-config",
	interact.ConfigStartup: "show startup-config",
}

// NewIOS Cisco IOS/IOS-XE 路由交换设备
func NewIOS() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info:            interact.Info{Vendor: "cisco", Model: "ios", Version: "*", Description: "Cisco IOS / IOS-XE"},
		Patterns:        patterns(),
		Transitions:     transitions(),
		SessionCommands: []string{"terminal length 0", "terminal width 512"},
		PullCommands:    pullCommands,
	})
}

// NewASA Cisco ASA 防火墙，多上下文模式下以 context 作为虚拟系统
func NewASA() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info:            interact.Info{Vendor: "cisco", Model: "asa", Version: "*", Description: "Cisco ASA"},
		Patterns:        patterns(),
		Transitions:     transitions(),
		VsysEnter:       []string{"changeto context {vsys}"},
		VsysMatch:       `(?i)^changeto\s+context\s+(\S+)$`,
		SessionCommands: []string{"terminal pager 0"},
		PullCommands:    pullCommands,
	})
}

// NewNexus Cisco Nexus (NX-OS)
func NewNexus() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info:            interact.Info{Vendor: "cisco", Model: "nexus", Version: "*", Description: "Cisco NX-OS"},
		Patterns:        patterns(),
		Transitions:     transitions(),
		SessionCommands: []string{"terminal length 0"},
		PullCommands:    pullCommands,
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewIOS, NewASA, NewNexus}
}
