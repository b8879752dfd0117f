package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// CaretPattern 通用语法错误定位符：除空白外只有一个 ^ 的行
var CaretPattern = regexp.MustCompile(`(?m)^[ \t]*\^[ \t\r]*$`)

// Match 错误匹配结果
type Match struct {
	Pattern string // 命中的错误表达式
	Text    string // 命中的子串
	Line    string // 命中位置所在的整行
}

// String 优先返回整行，便于调用方展示
func (m Match) String() string {
	if l := strings.TrimSpace(m.Line); l != "" && l != "^" {
		return l
	}
	return strings.TrimSpace(m.Text)
}

// DeviceError 按顺序用错误表达式匹配输出
//
// 命中某条错误表达式后，若任一忽略表达式也命中同一输出，则该错误被抑制并继续尝试下一条；
// 返回第一条未被抑制的命中。多条错误同时命中时以列表顺序为准，而非文本位置。
func DeviceError(output string, errorPatterns, ignorePatterns []*regexp.Regexp) (Match, bool) {
	if output == "" {
		return Match{}, false
	}
	for _, ep := range errorPatterns {
		if ep == nil {
			continue
		}
		loc := ep.FindStringIndex(output)
		if loc == nil {
			continue
		}
		if Ignored(output, ignorePatterns) {
			continue
		}
		return Match{
			Pattern: ep.String(),
			Text:    output[loc[0]:loc[1]],
			Line:    lineAt(output, loc[0], loc[1]),
		}, true
	}
	return Match{}, false
}

// Ignored 判断输出是否命中任一忽略表达式
func Ignored(output string, ignorePatterns []*regexp.Regexp) bool {
	for _, ip := range ignorePatterns {
		if ip != nil && ip.MatchString(output) {
			return true
		}
	}
	return false
}

// Compile 编译一组表达式，任一非法则返回错误
func Compile(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func lineAt(s string, start, end int) string {
	if start > 0 && start == end && s[start-1] == '\n' {
		start--
	}
	ls := strings.LastIndexByte(s[:start], '\n') + 1
	le := strings.IndexByte(s[end:], '\n')
	if le < 0 {
		le = len(s)
	} else {
		le += end
	}
	if le < ls {
		return ""
	}
	return strings.TrimRight(s[ls:le], "\r")
}
