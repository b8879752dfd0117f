package huawei

import "github.com/netdriver/netdriver/addone/interact"

// 用户视图 <name>，系统视图 [name]，双机热备时带 HRP_M/HRP_S 前缀
const (
	enablePrompt = `(?m)^\r*(?:HRP_[MS])?<[^<>\r\n]+>\s*$`
	configPrompt = `(?m)^\r*(?:HRP_[MS])?\[[^\[\]\r\n]+\]\s*$`
	morePrompt   = `-+\s*More\s*-+\s*$`
)

var errorPatterns = []string{
	`(?m)^\s*Error:\s*.+$`,
}

// 删除不存在的对象、重复添加等幂等类提示不视为失败
var ignorePatterns = []string{
	`Address item conflicts`,
	`The address item does not exist`,
	`The delete configuration does not exist`,
	`The address or address set is not created!`,
	`Cannot add! Service item conflicts or illegal reference`,
	`The service item does not exist`,
	`Service item conflicts`,
	`The service set is not created`,
	`No such a time-range`,
	`The specified address-group does not exist`,
	`The specified rule does not exist yet`,
	`This condition has already been configured`,
}

var pullCommands = map[interact.ConfigType]string{
	interact.ConfigRunning: "display current-configuration",
	interact.ConfigStartup: "display saved-configuration",
}

func spec(info interact.Info) interact.Spec {
	return interact.Spec{
		Info: info,
		Patterns: interact.PatternSpec{
			Enable:  enablePrompt,
			Config:  configPrompt,
			More:    morePrompt,
			Errors:  errorPatterns,
			Ignores: ignorePatterns,
		},
		Transitions: []interact.Transition{
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "system-view", Canonical: true},
			{From: interact.ModeEnable, To: interact.ModeConfig, Command: "sys"},
			{From: interact.ModeConfig, To: interact.ModeEnable, Command: "return", Canonical: true},
		},
		SessionCommands: []string{"screen-length 0 temporary"},
		PullCommands:    pullCommands,
	}
}

// NewUSG 华为 USG 系列防火墙
func NewUSG() (interact.Plugin, error) {
	s := spec(interact.Info{Vendor: "huawei", Model: "usg", Version: "*", Description: "Huawei USG firewall"})
	s.VsysEnter = []string{"system-view", "switch vsys {vsys}"}
	s.VsysMatch = `(?i)^switch\s+vsys\s+(\S+)$`
	return interact.NewPlugin(s)
}

// NewCE 华为 CE 系列交换机
func NewCE() (interact.Plugin, error) {
	return interact.NewPlugin(spec(interact.Info{Vendor: "huawei", Model: "ce", Version: "*", Description: "Huawei CloudEngine"}))
}

// Factories 厂商插件构造列表
func Factories() []interact.Factory {
	return []interact.Factory{NewUSG, NewCE}
}
