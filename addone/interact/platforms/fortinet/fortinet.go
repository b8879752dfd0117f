package fortinet

import "github.com/netdriver/netdriver/addone/interact"

// FortiOS 只有一个特权级别：hostname # ，进入 vdom 或配置上下文后为 hostname (ctx) #
const (
	enablePrompt = `(?m)^\r*[\w\-.]+ (?:\([\w\-.]+\) )?#\s*$`
	morePrompt   = `(?i)-+\s*more\s*-+\s*$`
)

var errorPatterns = []string{
	`Command fail\. Return code -?\d+`,
	`Unknown action \d+`,
	`command parse error before .+`,
}

// NewFortiGate FortiGate 防火墙，以 vdom 作为虚拟系统
func NewFortiGate() (interact.Plugin, error) {
	return interact.NewPlugin(interact.Spec{
		Info: interact.Info{Vendor: "fortinet", Model: "fortigate", Version: "*", Description: "Fortinet FortiGate"},
		Patterns: interact.PatternSpec{
			Enable: enablePrompt,
			More:   morePrompt,
			Errors: errorPatterns,
		},
		VsysEnter: []string{"config vdom", "edit {vsys}"},
		// 关闭分页
		SessionCommands: []string{"config system console", "set output standard", "end"},
		PullCommands: map[interact.ConfigType]string{
			interact.ConfigRunning: "show full-configuration",
		},
	})
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewFortiGate}
}
