package interact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/netdriver/netdriver/pkg/classify"
	"github.com/netdriver/netdriver/pkg/terminal"
)

// PatternSpec 厂商提示符与错误表达式的原始定义
type PatternSpec struct {
	Login          string
	Enable         string
	Config         string
	EnablePassword string
	More           string
	SubPrompts     map[string]string
	Errors         []string
	Ignores        []string
}

// PatternSet 编译后的厂商能力集合，构建后只读
type PatternSet struct {
	Login          *regexp.Regexp
	Enable         *regexp.Regexp
	Config         *regexp.Regexp
	Union          *regexp.Regexp
	EnablePassword *regexp.Regexp
	More           *regexp.Regexp
	SubPrompts     map[string]*regexp.Regexp
	Errors         []*regexp.Regexp
	Ignores        []*regexp.Regexp
}

// CompilePatterns 编译表达式并派生 union 提示符
// 至少需要一个具体模式的提示符；通用的 ^ 定位符错误总是追加在错误列表末尾。
func CompilePatterns(spec PatternSpec) (*PatternSet, error) {
	ps := &PatternSet{SubPrompts: make(map[string]*regexp.Regexp)}

	var err error
	if ps.Login, err = compileOptional("login", spec.Login); err != nil {
		return nil, err
	}
	if ps.Enable, err = compileOptional("enable", spec.Enable); err != nil {
		return nil, err
	}
	if ps.Config, err = compileOptional("config", spec.Config); err != nil {
		return nil, err
	}
	if ps.EnablePassword, err = compileOptional("enable password", spec.EnablePassword); err != nil {
		return nil, err
	}
	if ps.More, err = compileOptional("more", spec.More); err != nil {
		return nil, err
	}
	for name, expr := range spec.SubPrompts {
		re, err := compileOptional(name, expr)
		if err != nil {
			return nil, err
		}
		if re != nil {
			ps.SubPrompts[name] = re
		}
	}

	concrete := make([]*regexp.Regexp, 0, 3)
	for _, re := range []*regexp.Regexp{ps.Login, ps.Enable, ps.Config} {
		if re != nil {
			concrete = append(concrete, re)
		}
	}
	if len(concrete) == 0 {
		return nil, fmt.Errorf("no prompt pattern defined")
	}
	ps.Union = Alternate(concrete...)

	if ps.Errors, err = classify.Compile(spec.Errors); err != nil {
		return nil, err
	}
	ps.Errors = append(ps.Errors, classify.CaretPattern)
	if ps.Ignores, err = classify.Compile(spec.Ignores); err != nil {
		return nil, err
	}
	return ps, nil
}

func compileOptional(name, expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt: %w", name, err)
	}
	return re, nil
}

// Alternate 将多个表达式组合为一个“任一匹配”表达式
// 每个子表达式包裹在非捕获分组中，内联标志（如 (?m)）只作用于自身。
func Alternate(res ...*regexp.Regexp) *regexp.Regexp {
	parts := make([]string, 0, len(res))
	for _, re := range res {
		if re != nil {
			parts = append(parts, "(?:"+re.String()+")")
		}
	}
	return regexp.MustCompile(strings.Join(parts, "|"))
}

// Prompt 获取指定模式的提示符表达式，union 返回派生的组合表达式
func (p *PatternSet) Prompt(m Mode) *regexp.Regexp {
	switch m {
	case ModeLogin:
		return p.Login
	case ModeEnable:
		return p.Enable
	case ModeConfig:
		return p.Config
	case ModeUnion:
		return p.Union
	}
	return nil
}

// Supports 是否定义了该模式的提示符
func (p *PatternSet) Supports(m Mode) bool {
	return p.Prompt(m) != nil
}

// Detect 根据输出最后一行识别当前模式
func (p *PatternSet) Detect(output string) (Mode, bool) {
	tail := terminal.LastLine(output)
	for _, m := range ConcreteModes {
		if re := p.Prompt(m); re != nil && re.MatchString(tail) {
			return m, true
		}
	}
	return "", false
}
