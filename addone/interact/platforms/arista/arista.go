package arista

import "github.com/netdriver/netdriver/addone/interact"

const (
	loginPrompt    = `(?m)^\r*[\w\-.]+>\s*$`
	enablePrompt   = `(?m)^\r*[\w\-.]+#\s*$`
	configPrompt   = `(?m)^\r*[\w\-.]+\(config[^)]*\)#\s*$`
	passwordPrompt = `(?mi)^\r*password:\s*$`
	morePrompt     = `(?i)-+\s*more\s*-+\s*$`
)

var errorPatterns = []string{
	`% Invalid input`,
	`% Ambiguous command`,
	`% Bad secret`,
	`% Unrecognized command`,
	`% Incomplete command`,
	`% Address .+ is already assigned to interface .+`,
	`! Access VLAN does not exist\.`,
	`% Invalid port range .+`,
	`% Removal of physical interfaces is not permitted`,
}

// NewEOS Arista EOS 交换机
func NewEOS() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "arista", Model: "eos", Version: "*", Description: "Arista EOS"},
		Patterns: interact.PatternSpec{
			Login:          loginPrompt,
			Enable:         enablePrompt,
			Config:         configPrompt,
			EnablePassword: passwordPrompt,
			More:           morePrompt,
			Errors:         errorPatterns,
		},
		Transitions: []interact.Transition{
			{From: interact.ModeLogin, To: interact.ModeEnable, Command: "enable", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeLogin, Command: "disable", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure terminal", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure"},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "conf t"},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "end", Canonical: true},
		},
		SessionCommands: []string{"terminal length 0"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show running-config",
			interact.ConfigStartup: "show startup-config",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewEOS}
}
