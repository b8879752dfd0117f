package terminal

import (
	"strconv"
	"strings"
)

// Normalize 将设备回显的原始字符流还原为终端最终显示的文本
//
// \r\n 为真实换行；单独的 \r 把光标移回行首但不清空行内容；\b 光标左移一列；
// 其他字符在光标处覆盖写入。已提交的行以 \n 连接，末尾未完成的行原样保留。
func Normalize(raw string) string {
	if !strings.ContainsAny(raw, "\r\b") {
		return raw
	}

	var (
		out  strings.Builder
		line []rune
		col  int
	)
	commit := func() {
		out.WriteString(string(line))
		out.WriteByte('\n')
		line = line[:0]
		col = 0
	}

	rs := []rune(raw)
	for i := 0; i < len(rs); i++ {
		switch c := rs[i]; c {
		case '\r':
			if i+1 < len(rs) && rs[i+1] == '\n' {
				i++
				commit()
				continue
			}
			col = 0
		case '\n':
			commit()
		case '\b':
			if col > 0 {
				col--
			}
		default:
			if col < len(line) {
				line[col] = c
			} else {
				line = append(line, c)
			}
			col++
		}
	}
	out.WriteString(string(line))
	return out.String()
}

// StripANSI 移除 ANSI 控制序列
// 光标左移序列（ESC[nD）转换为 n 个退格，便于 Normalize 还原分页提示被擦除后的内容；
// 其余 CSI 序列直接丢弃。
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != 0x1b {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) || s[i+1] != '[' {
			// 非 CSI 序列，丢弃 ESC 及其后一个字符
			i++
			continue
		}
		j := i + 2
		for j < len(s) && (s[j] == ';' || s[j] == '?' || (s[j] >= '0' && s[j] <= '9')) {
			j++
		}
		if j >= len(s) {
			break
		}
		if s[j] == 'D' {
			n := 1
			if p := s[i+2 : j]; p != "" {
				if v, err := strconv.Atoi(p); err == nil && v > 0 {
					n = v
				}
			}
			b.WriteString(strings.Repeat("\b", n))
		}
		i = j
	}
	return b.String()
}

// LastLine 返回去掉结尾换行符后的最后一行，用于提示符匹配
// 只剥离 \r 与 \n，行内及行尾空格保留（部分厂商提示符以空格结尾）。
func LastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
