package maipu

import "github.com/netdriver/netdriver/addone/interact"

// 与 Cisco 风格一致：hostname> / hostname# / hostname(config-xxx)#
const (
	loginPrompt    = `(?m)^\r*[\w\-./:]+>\s*$`
	enablePrompt   = `(?m)^\r*[\w\-./:]+#\s*$`
	configPrompt   = `(?m)^\r*[\w\-./:]+\(config[^)]*\)#\s*$`
	passwordPrompt = `(?mi)^\r*password:\s*$`
	morePrompt     = `(?i)-+\s*more\s*-+\s*$`
)

var errorPatterns = []string{
	`(?m)^% Invalid input.*$`,
	`(?m)^% Incomplete command.*$`,
	`(?m)^% Unknown command.*$`,
}

// NewNSS 迈普 NSS 系列防火墙
func NewNSS() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "maipu", Model: "nss", Version: "*", Description: "Maipu NSS firewall"},
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
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "conf t"},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "end", Canonical: true},
		},
		SessionCommands: []string{"more off"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show running-config",
			interact.ConfigStartup: "show startup-config",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewNSS}
}
