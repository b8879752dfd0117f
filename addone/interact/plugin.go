package interact

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// DefaultVsys 默认虚拟系统名称
const DefaultVsys = "default"

// IsDefaultVsys 空串与 default 均表示默认虚拟系统
func IsDefaultVsys(vsys string) bool {
	v := strings.TrimSpace(vsys)
	return v == "" || strings.EqualFold(v, DefaultVsys)
}

// Info 插件标识
type Info struct {
	Vendor      string `json:"vendor"`
	Model       string `json:"model"`
	Version     string `json:"version"` // 版本选择器，支持 path.Match 通配，空或 * 表示任意
	Description string `json:"description"`
}

// Key 注册键 vendor/model
func (i Info) Key() string {
	return Key(i.Vendor, i.Model)
}

// Key 生成注册键
func Key(vendor, model string) string {
	return strings.ToLower(strings.TrimSpace(vendor)) + "/" + strings.ToLower(strings.TrimSpace(model))
}

// Transition 模式切换规则
// Canonical 标记的规则用于在模式之间规划切换路径；其余规则只用于识别用户命令。
type Transition struct {
	From      Mode
	To        Mode
	Command   string
	Canonical bool
}

// Plugin 厂商能力接口
type Plugin interface {
	Info() Info
	IsSelectable(vendor, model, version string) bool
	Patterns() *PatternSet
	Transitions() []Transition
	// VsysCommands 进入指定虚拟系统的命令序列；不支持虚拟系统时返回 nil
	VsysCommands(vsys string) []string
	// MatchVsys 识别切换虚拟系统的命令，返回目标虚拟系统
	MatchVsys(command string) (string, bool)
	// SessionCommands 会话建立后执行的命令（如关闭分页）
	SessionCommands() []string
	// PullCommand 拉取指定类型配置的命令及其所需模式
	PullCommand(configType ConfigType) (string, Mode, bool)
}

// Spec 数据驱动的插件定义
type Spec struct {
	Info            Info
	Patterns        PatternSpec
	Transitions     []Transition
	VsysEnter       []string // 进入虚拟系统的命令模板，{vsys} 为占位符
	VsysMatch       string   // 识别虚拟系统切换命令的表达式，第一个分组为虚拟系统名
	SessionCommands []string
	PullCommands    map[ConfigType]string
	PullMode        Mode
	// Selectable 自定义版本匹配；为空时按 vendor/model 相等且版本满足通配判断
	Selectable func(vendor, model, version string) bool
}

// Base 由 Spec 构建的插件实现
type Base struct {
	spec      Spec
	patterns  *PatternSet
	vsysMatch *regexp.Regexp
}

// NewPlugin 校验并编译插件定义
func NewPlugin(spec Spec) (*Base, error) {
	if strings.TrimSpace(spec.Info.Vendor) == "" || strings.TrimSpace(spec.Info.Model) == "" {
		return nil, fmt.Errorf("plugin vendor and model are required")
	}
	ps, err := CompilePatterns(spec.Patterns)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", spec.Info.Key(), err)
	}
	for _, t := range spec.Transitions {
		if !t.From.Concrete() || !t.To.Concrete() {
			return nil, fmt.Errorf("plugin %s: transition %q must connect concrete modes", spec.Info.Key(), t.Command)
		}
		if !ps.Supports(t.From) || !ps.Supports(t.To) {
			return nil, fmt.Errorf("plugin %s: transition %q uses a mode without prompt", spec.Info.Key(), t.Command)
		}
	}
	b := &Base{spec: spec, patterns: ps}
	if spec.VsysMatch != "" {
		if b.vsysMatch, err = regexp.Compile(spec.VsysMatch); err != nil {
			return nil, fmt.Errorf("plugin %s: invalid vsys pattern: %w", spec.Info.Key(), err)
		}
	}
	if spec.PullMode == "" {
		b.spec.PullMode = ModeEnable
	}
	return b, nil
}

func (b *Base) Info() Info { return b.spec.Info }

func (b *Base) Patterns() *PatternSet { return b.patterns }

func (b *Base) Transitions() []Transition { return b.spec.Transitions }

func (b *Base) SessionCommands() []string { return b.spec.SessionCommands }

func (b *Base) IsSelectable(vendor, model, version string) bool {
	if b.spec.Selectable != nil {
		return b.spec.Selectable(vendor, model, version)
	}
	if Key(vendor, model) != b.spec.Info.Key() {
		return false
	}
	return VersionMatch(b.spec.Info.Version, version)
}

func (b *Base) VsysCommands(vsys string) []string {
	if len(b.spec.VsysEnter) == 0 {
		return nil
	}
	cmds := make([]string, 0, len(b.spec.VsysEnter))
	for _, tpl := range b.spec.VsysEnter {
		cmds = append(cmds, strings.ReplaceAll(tpl, "{vsys}", vsys))
	}
	return cmds
}

func (b *Base) MatchVsys(command string) (string, bool) {
	if b.vsysMatch == nil {
		return "", false
	}
	m := b.vsysMatch.FindStringSubmatch(strings.TrimSpace(command))
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

func (b *Base) PullCommand(configType ConfigType) (string, Mode, bool) {
	cmd, ok := b.spec.PullCommands[configType]
	if !ok || cmd == "" {
		return "", "", false
	}
	return cmd, b.spec.PullMode, true
}

// VersionMatch 版本选择器匹配，空或 * 匹配任意版本
func VersionMatch(selector, version string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "" || selector == "*" {
		return true
	}
	ok, err := path.Match(strings.ToLower(selector), strings.ToLower(strings.TrimSpace(version)))
	return err == nil && ok
}
