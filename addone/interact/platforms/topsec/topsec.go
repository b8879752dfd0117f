package topsec

import "github.com/netdriver/netdriver/addone/interact"

// TOS 只有一个命令级别，提示符以 # 或 % 结尾
const (
	enablePrompt = `(?m)^\r*[\w\-./:]+[#%]\s*$`
	morePrompt   = `(?i)-+\s*more\s*-+\s*$`
)

var errorPatterns = []string{
	`error-\d+:.+`,
}

// NewNGFW 天融信 NGFW 防火墙
func NewNGFW() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "topsec", Model: "ngfw", Version: "*", Description: "Topsec NGFW"},
		Patterns: interact.PatternSpec{
			Enable: enablePrompt,
			More:   morePrompt,
			Errors: errorPatterns,
		},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewNGFW}
}
