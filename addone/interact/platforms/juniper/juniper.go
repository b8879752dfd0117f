package juniper

import "github.com/netdriver/netdriver/addone/interact"

// 操作模式 user@host>，配置模式 user@host#；逻辑系统下主机名形如 host:LSYS
const (
	enablePrompt = `(?m)^\r*[\w\-.]+@[\w\-.:]+>\s*$`
	configPrompt = `(?m)^\r*[\w\-.]+@[\w\-.:]+#\s*$`
	morePrompt   = `(?i)-+\(more(?: \d+%)?\)-+\s*$`
)

var errorPatterns = []string{
	`(?m)^\s*unknown command\.`,
	`syntax error`,
	`(?m)^error: .+$`,
	`invalid value '.*' in .+`,
	`missing or invalid prefix length .+`,
	`prefix length '\d+' is larger than \d+ in address .+`,
	`invalid ip address or hostname: .+`,
	`Value must be a number from .+`,
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
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "edit"},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure private"},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure exclusive"},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "exit configuration-mode", Canonical: true},
		},
		SessionCommands: []string{"set cli screen-length 0", "set cli screen-width 0"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show configuration | display set",
		},
	}
}

// NewSRX Juniper SRX 防火墙，以逻辑系统作为虚拟系统
func NewSRX() (interact.Plugin, error) {
	s := spec(interact.Info{Vendor: "juniper", Model: "srx", Version: "*", Description: "Juniper SRX"})
	s.VsysEnter = []string{"set cli logical-system {vsys}"}
	s.VsysMatch = `(?i)^set\s+cli\s+logical-system\s+(\S+)$`
	return interact.NewPlugin(s)
}

// NewEX Juniper EX 交换机
func NewEX() (interact.Plugin, error) {
	return interact.NewPlugin(spec(interact.Info{Vendor: "juniper", Model: "ex", Version: "*", Description: "Juniper EX"}))
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewSRX, NewEX}
}
