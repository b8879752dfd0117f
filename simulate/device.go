package simulate

import (
	"strings"
	"sync"
	"time"
)

// Reply 设备的一段输出，Delay 为输出前的等待时间
type Reply struct {
	Text  string
	Delay time.Duration
	Exit  bool
}

// Device 模拟设备状态机：逐字节接收键盘输入，产生回显与命令输出
type Device struct {
	profile *Profile

	mu       sync.Mutex
	mode     string
	vsys     string
	line     []rune
	skipLF   bool
	password string // 等待口令时的目标模式
	pages    []string
	history  []string
}

// NewDevice 创建模拟设备
func NewDevice(p *Profile) *Device {
	return &Device{profile: p, mode: p.StartMode}
}

// Mode 当前模式
func (d *Device) Mode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Vsys 当前虚拟系统
func (d *Device) Vsys() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vsys
}

// History 已收到的命令（不含口令）
func (d *Device) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

// Banner 登录后的欢迎信息与首个提示符
func (d *Device) Banner() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if w := strings.TrimRight(d.profile.Welcome, "\r\n"); w != "" {
		b.WriteString(d.lines(w))
	}
	b.WriteString(d.prompt())
	return b.String()
}

// Feed 处理一批输入字节
func (d *Device) Feed(input []byte) []Reply {
	d.mu.Lock()
	defer d.mu.Unlock()

	var replies []Reply
	var echo strings.Builder
	flush := func() {
		if echo.Len() > 0 {
			replies = append(replies, Reply{Text: echo.String()})
			echo.Reset()
		}
	}

	for _, r := range string(input) {
		if d.skipLF {
			d.skipLF = false
			if r == '\n' {
				continue
			}
		}
		if len(d.pages) > 0 {
			flush()
			replies = append(replies, d.nextPage(r))
			continue
		}
		switch r {
		case '\r', '\n':
			d.skipLF = r == '\r'
			line := string(d.line)
			d.line = d.line[:0]
			if d.password != "" {
				echo.WriteString(d.profile.LineFeed)
				flush()
				replies = append(replies, d.checkPassword(line))
				continue
			}
			echo.WriteString(d.profile.LineFeed)
			flush()
			reply := d.handle(line)
			replies = append(replies, reply)
			if reply.Exit {
				return replies
			}
		case '\b', 0x7f:
			if len(d.line) > 0 {
				d.line = d.line[:len(d.line)-1]
				if d.password == "" {
					echo.WriteString("\b \b")
				}
			}
		default:
			d.line = append(d.line, r)
			if d.password == "" {
				echo.WriteRune(r)
			}
		}
	}
	flush()
	return replies
}

func (d *Device) prompt() string {
	m := d.profile.Modes[d.mode]
	r := strings.NewReplacer("{hostname}", d.profile.Hostname, "{vsys}", d.vsys)
	return r.Replace(m.Prompt)
}

// lines 统一换行符并保证以换行结尾
func (d *Device) lines(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return strings.ReplaceAll(text, "\n", d.profile.LineFeed)
}

func (d *Device) handle(line string) Reply {
	cmd := strings.Join(strings.Fields(line), " ")
	if cmd == "" {
		return Reply{Text: d.prompt()}
	}
	d.history = append(d.history, cmd)
	mode := d.profile.Modes[d.mode]

	if target, ok := mode.SwitchModeCmds[cmd]; ok {
		if target == ExitTarget {
			return Reply{Exit: true}
		}
		if d.profile.Modes[target].Password && d.profile.EnablePassword != "" {
			d.password = target
			return Reply{Text: d.profile.PasswordPrompt}
		}
		d.mode = target
		return Reply{Text: d.prompt()}
	}

	if d.profile.vsysRe != nil && d.allowVsys() {
		if m := d.profile.vsysRe.FindStringSubmatch(cmd); len(m) > 1 {
			d.vsys = m[1]
			if d.profile.Vsys.Mode != "" {
				d.mode = d.profile.Vsys.Mode
			}
			return Reply{Text: d.prompt()}
		}
	}

	out, ok := mode.Cmds[cmd]
	if !ok {
		out, ok = d.profile.Common[cmd]
	}
	if !ok {
		return Reply{Text: d.lines(strings.ReplaceAll(d.profile.InvalidCmdError, "{cmd}", cmd)) + d.prompt()}
	}
	return d.paginate(d.lines(out.Text), out.Delay)
}

func (d *Device) allowVsys() bool {
	if len(d.profile.Vsys.From) == 0 {
		return true
	}
	for _, m := range d.profile.Vsys.From {
		if m == d.mode {
			return true
		}
	}
	return false
}

func (d *Device) checkPassword(input string) Reply {
	target := d.password
	d.password = ""
	if input != d.profile.EnablePassword {
		return Reply{Text: d.lines("% Access denied") + d.prompt()}
	}
	d.mode = target
	return Reply{Text: d.prompt()}
}

// paginate 输出超过 page_lines 时分页，等待空格继续
func (d *Device) paginate(text string, delay time.Duration) Reply {
	lf := d.profile.LineFeed
	if d.profile.PageLines <= 0 || text == "" {
		return Reply{Text: text + d.prompt(), Delay: delay}
	}
	rows := strings.SplitAfter(text, lf)
	if rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	if len(rows) <= d.profile.PageLines {
		return Reply{Text: text + d.prompt(), Delay: delay}
	}
	for i := 0; i < len(rows); i += d.profile.PageLines {
		end := i + d.profile.PageLines
		if end > len(rows) {
			end = len(rows)
		}
		d.pages = append(d.pages, strings.Join(rows[i:end], ""))
	}
	first := d.pages[0]
	d.pages = d.pages[1:]
	return Reply{Text: first + d.profile.MorePrompt, Delay: delay}
}

func (d *Device) nextPage(key rune) Reply {
	erase := "\r" + strings.Repeat(" ", len(d.profile.MorePrompt)) + "\r"
	if key == 'q' || key == 'Q' {
		d.pages = nil
		return Reply{Text: erase + d.prompt()}
	}
	page := d.pages[0]
	d.pages = d.pages[1:]
	if len(d.pages) == 0 {
		return Reply{Text: erase + page + d.prompt()}
	}
	return Reply{Text: erase + page + d.profile.MorePrompt}
}
