package simulate

import (
	"embed"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinFS embed.FS

// ExitTarget switch_mode_cmds 中表示断开会话的目标
const ExitTarget = "exit"

// Profile 模拟设备定义
type Profile struct {
	Vendor          string                `yaml:"vendor"`
	Model           string                `yaml:"model"`
	Version         string                `yaml:"version"`
	Hostname        string                `yaml:"hostname"`
	StartMode       string                `yaml:"start_mode"`
	LineFeed        string                `yaml:"line_feed"`
	EnablePassword  string                `yaml:"enable_password"`
	PasswordPrompt  string                `yaml:"password_prompt"`
	Welcome         string                `yaml:"welcome"`
	InvalidCmdError string                `yaml:"invalid_cmd_error"`
	PageLines       int                   `yaml:"page_lines"`
	MorePrompt      string                `yaml:"more_prompt"`
	Vsys            VsysConfig            `yaml:"vsys"`
	Common          map[string]Output     `yaml:"common"`
	Modes           map[string]ModeConfig `yaml:"modes"`

	vsysRe *regexp.Regexp
}

// ModeConfig 单个模式的提示符、切换命令与命令输出
type ModeConfig struct {
	Prompt string `yaml:"prompt"`
	// SwitchModeCmds 命令 -> 目标模式，目标为 exit 时断开会话
	SwitchModeCmds map[string]string `yaml:"switch_mode_cmds"`
	Cmds           map[string]Output `yaml:"cmds"`
	// Password 进入该模式需要输入 enable 口令
	Password bool `yaml:"password"`
}

// VsysConfig 虚拟系统切换命令
type VsysConfig struct {
	// Command 表达式，第一个分组为虚拟系统名
	Command string `yaml:"command"`
	// From 允许切换的模式，为空表示任意模式
	From []string `yaml:"from"`
	// Mode 切换后进入的模式，为空保持当前模式
	Mode string `yaml:"mode"`
}

// Output 命令输出；YAML 中可以直接写文本，也可以写 {output, delay_ms}
type Output struct {
	Text  string
	Delay time.Duration
}

// UnmarshalYAML 支持标量与映射两种写法
func (o *Output) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Text = node.Value
		return nil
	}
	var raw struct {
		Output  string `yaml:"output"`
		DelayMS int    `yaml:"delay_ms"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	o.Text = raw.Output
	o.Delay = time.Duration(raw.DelayMS) * time.Millisecond
	return nil
}

// ParseProfile 解析并校验设备定义
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse device profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile 从文件加载设备定义
func LoadProfile(file string) (*Profile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read device profile: %w", err)
	}
	return ParseProfile(data)
}

func (p *Profile) validate() error {
	if p.Vendor == "" || p.Model == "" {
		return fmt.Errorf("profile vendor and model are required")
	}
	if len(p.Modes) == 0 {
		return fmt.Errorf("profile %s/%s defines no modes", p.Vendor, p.Model)
	}
	if _, ok := p.Modes[p.StartMode]; !ok {
		return fmt.Errorf("profile %s/%s: unknown start_mode %q", p.Vendor, p.Model, p.StartMode)
	}
	for name, m := range p.Modes {
		if m.Prompt == "" {
			return fmt.Errorf("profile %s/%s: mode %s has no prompt", p.Vendor, p.Model, name)
		}
		for cmd, target := range m.SwitchModeCmds {
			if target == ExitTarget {
				continue
			}
			if _, ok := p.Modes[target]; !ok {
				return fmt.Errorf("profile %s/%s: %q switches to unknown mode %q", p.Vendor, p.Model, cmd, target)
			}
		}
	}
	if p.Vsys.Command != "" {
		re, err := regexp.Compile(p.Vsys.Command)
		if err != nil {
			return fmt.Errorf("profile %s/%s: invalid vsys command: %w", p.Vendor, p.Model, err)
		}
		p.vsysRe = re
		if p.Vsys.Mode != "" {
			if _, ok := p.Modes[p.Vsys.Mode]; !ok {
				return fmt.Errorf("profile %s/%s: unknown vsys mode %q", p.Vendor, p.Model, p.Vsys.Mode)
			}
		}
	}
	if p.LineFeed == "" {
		p.LineFeed = "\r\n"
	}
	if p.PasswordPrompt == "" {
		p.PasswordPrompt = "Password: "
	}
	if p.MorePrompt == "" {
		p.MorePrompt = " --More-- "
	}
	return nil
}

// Key vendor/model
func (p *Profile) Key() string {
	return strings.ToLower(p.Vendor) + "/" + strings.ToLower(p.Model)
}

// BuiltinProfile 内置设备定义
func BuiltinProfile(vendor, model string) (*Profile, error) {
	name := fmt.Sprintf("profiles/%s_%s.yaml", strings.ToLower(vendor), strings.ToLower(model))
	data, err := builtinFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("no builtin profile for %s/%s", vendor, model)
	}
	return ParseProfile(data)
}

// BuiltinKeys 内置设备定义列表
func BuiltinKeys() []string {
	entries, _ := builtinFS.ReadDir("profiles")
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		if vendor, model, ok := strings.Cut(name, "_"); ok {
			keys = append(keys, vendor+"/"+model)
		}
	}
	sort.Strings(keys)
	return keys
}
