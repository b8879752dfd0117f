package h3c

import "github.com/netdriver/netdriver/addone/interact"

// 用户视图 <name>，系统视图 [name]，RBM 主备时带 RBM_P/RBM_S 前缀
const (
	enablePrompt = `(?m)^\r*(?:RBM_[PS])?<[^<>\r\n]+>\s*$`
	configPrompt = `(?m)^\r*(?:RBM_[PS])?\[[^\[\]\r\n]+\]\s*$`
	morePrompt   = `-+\s*More\s*-+\s*$`
)

var errorPatterns = []string{
	`% Unrecognized command found at '\^' position\.`,
	`% Wrong parameter found at '\^' position\.`,
	`% Incomplete command found at '\^' position\.`,
	`% Too many parameters found at '\^' position\.`,
	`% Ambiguous command found at '\^' position\.`,
	`The rule does not exist\.`,
	`Object group with given name exists with different type\.`,
}

func spec(info interact.Info) interact.Spec {
	return interact.Spec{
		Info: info,
		Patterns: interact.PatternSpec{
			Enable: enablePrompt,
			Config: configPrompt,
			More:   morePrompt,
			Errors: errorPatterns,
		},
		Transitions: []interact.Transition{
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "system-view", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "sys"},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "return", Canonical: true},
		},
		SessionCommands: []string{"screen-length disable"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "display current-configuration",
			interact.ConfigStartup: "display saved-configuration",
		},
	}
}

// NewSecPath H3C SecPath 防火墙，以 context 作为虚拟系统
func NewSecPath() (interact.Plugin, error) {
	s := spec(interact.Info{Vendor: "h3c", Model: "secpath", Version: "*", Description: "H3C SecPath firewall"})
	s.VsysEnter = []string{"switchto context {vsys}"}
	s.VsysMatch = `(?i)^switchto\s+context\s+(\S+)$`
	return interact.NewPlugin(s)
}

// NewSwitch H3C S 系列交换机
func NewSwitch() (interact.Plugin, error) {
	return interact.NewPlugin(spec(interact.Info{Vendor: "h3c", Model: "s", Version: "*", Description: "H3C S series switch"}))
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewSecPath, NewSwitch}
}
