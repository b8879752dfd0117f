package hillstone

import "github.com/netdriver/netdriver/addone/interact"

// StoneOS 提示符以 "# " 结尾，末尾空格是提示符的一部分
const (
	enablePrompt = `(?m)^\r*[\w\-./]+# [ \t]*\r?$`
	configPrompt = `(?m)^\r*[\w\-./]+\(config[^)]*\)# [ \t]*\r?$`
	morePrompt   = `(?i)-+\s*more\s*-+\s*$`
)

var errorPatterns = []string{
	`\^-----unrecognized keyword.*`,
	`\^-----incomplete command.*`,
	`(?m)^\s*Error:\s*.+$`,
	`\^-----无法识别的关键字.*`,
	`\^-----不完整的命令.*`,
	`错误：.+`,
}

// NewSG Hillstone SG-6000 防火墙
func NewSG() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "hillstone", Model: "sg6000", Version: "*", Description: "Hillstone StoneOS"},
		Patterns: interact.PatternSpec{
			Enable: enablePrompt,
			Config: configPrompt,
			More:   morePrompt,
			Errors: errorPatterns,
		},
		Transitions: []interact.Transition{
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "configure", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "config"},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "end", Canonical: true},
		},
		VsysEnter:       []string{"enter-vsys {vsys}"},
		VsysMatch:       `(?i)^enter-vsys\s+(\S+)$`,
		SessionCommands: []string{"terminal length 0"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show configuration",
			interact.ConfigStartup: "show configuration saved",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewSG}
}
