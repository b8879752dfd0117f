package dptech

import "github.com/netdriver/netdriver/addone/interact"

// 用户视图 <name>，配置视图 [name]
const (
	enablePrompt = `(?m)^\r*<[^<>\r\n]+>\s*$`
	configPrompt = `(?m)^\r*\[[^\[\]\r\n]+\]\s*$`
	morePrompt   = `(?i)-+\s*more\s*-+\s*$`
)

var errorPatterns = []string{
	`% Unknown command\.`,
	`Can't find the .+ object`,
	`Invalid parameter\.`,
	`% Command can not contain: .+`,
	`Undefined error\.`,
}

// NewFW1000 迪普 FW1000 系列防火墙
func NewFW1000() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "dptech", Model: "fw1000", Version: "*", Description: "DPtech FW1000 firewall"},
		Patterns: interact.PatternSpec{
			Enable: enablePrompt,
			Config: configPrompt,
			More:   morePrompt,
			Errors: errorPatterns,
		},
		Transitions: []interact.Transition{
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "conf-mode", Canonical: true},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "end", Canonical: true},
		},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show running-config",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewFW1000}
}
