package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/internal/merger"
	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/pkg/classify"
	"github.com/netdriver/netdriver/pkg/logger"
	"github.com/netdriver/netdriver/pkg/ssh"
	"github.com/netdriver/netdriver/pkg/terminal"
)

// 调试日志中命令输出保留的行数
const debugOutputLines = 20

// errModeMismatch 切换命令执行后提示符不是预期模式
var errModeMismatch = errors.New("unexpected prompt after mode switch")

// runner 在一个会话上顺序执行一个虚拟系统分组
type runner struct {
	e       *Engine
	vsys    string
	sess    Session
	machine *interact.Machine
	// stale 上一条命令超时，设备可能仍在输出
	stale bool
}

// runGroup 借出会话并依次执行分组内任务
// 单个任务超时只影响该任务；会话断开时其余任务以 SESSION_LOST 结束，会话不再复用。
func (e *Engine) runGroup(ctx context.Context, grp merger.Group) {
	pending := 0
	for _, t := range grp.Tasks {
		if !t.IsDone() {
			pending++
		}
	}
	if pending == 0 {
		return
	}

	r, err := e.openRunner(ctx, grp.Vsys, grp.Tasks)
	if err != nil {
		logger.Error("Acquire session failed", "target", e.target.String(), "vsys", grp.Vsys, "error", err)
		failRemaining(grp.Tasks, err)
		return
	}

	for i, t := range grp.Tasks {
		if t.IsDone() {
			// 已取消的任务不下发
			continue
		}
		outcome := r.run(t)
		if errors.Is(outcome.Err, task.ErrSessionLost) {
			t.Fulfill(outcome)
			failRemaining(grp.Tasks[i+1:], outcome.Err)
			logger.Warn("Session lost", "target", e.target.String(), "vsys", grp.Vsys, "error", outcome.Err)
			e.pool.Invalidate(r.sess)
			e.dropMachine(grp.Vsys)
			return
		}
		if !t.Fulfill(outcome) {
			logger.Debug("Task result dropped", "task", t.String())
		}
	}
	if r.stale {
		// 超时命令的迟到输出无法确认已读完，不再复用
		e.pool.Invalidate(r.sess)
		e.dropMachine(grp.Vsys)
		return
	}
	e.pool.Release(r.sess)
}

func failRemaining(tasks []task.Task, err error) {
	for _, t := range tasks {
		t.Fulfill(task.Outcome{Err: err})
	}
}

// openRunner 借出会话；新会话完成初始化，旧会话若已偏离目标虚拟系统则重建
func (e *Engine) openRunner(ctx context.Context, vsys string, tasks []task.Task) (*runner, error) {
	timeout := e.cfg.DefaultTimeout
	for _, t := range tasks {
		if t.Timeout() > timeout {
			timeout = t.Timeout()
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		sess, fresh, err := e.pool.Acquire(ctx, e.target, vsys)
		if err != nil {
			return nil, task.ConnectionFailedError(err)
		}
		r := &runner{e: e, vsys: vsys, sess: sess, machine: e.machine(vsys, fresh)}
		if fresh || !r.machine.Known() {
			if err := r.bootstrap(timeout, fresh); err != nil {
				e.pool.Invalidate(sess)
				e.dropMachine(vsys)
				if errors.Is(err, ssh.ErrSessionClosed) {
					return nil, task.SessionLostError(err)
				}
				return nil, task.ConnectionFailedError(err)
			}
			return r, nil
		}
		if sameVsys(r.machine.Vsys(), vsys) {
			return r, nil
		}
		// 用户命令切走了虚拟系统，旧会话无法可靠切回
		logger.Debug("Session vsys drifted, reopening", "vsys", vsys, "current", r.machine.Vsys())
		e.pool.Invalidate(sess)
		e.dropMachine(vsys)
	}
	return nil, task.ConnectionFailedError(fmt.Errorf("cannot open session for vsys %s", vsys))
}

func sameVsys(a, b string) bool {
	if interact.IsDefaultVsys(a) && interact.IsDefaultVsys(b) {
		return true
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// bootstrap 会话初始化：识别初始模式，执行会话命令（如关闭分页），进入目标虚拟系统
// 复用其他引擎归还的会话时设备不会再输出提示符，先发送空行。
func (r *runner) bootstrap(timeout time.Duration, fresh bool) error {
	ps := r.e.plugin.Patterns()
	if !fresh {
		if err := r.sess.Write("\n"); err != nil {
			return err
		}
	}
	out, err := r.sess.ReadUntil(ps.Union, timeout)
	if errors.Is(err, ssh.ErrReadTimeout) {
		// 部分设备登录后不主动输出提示符
		if err := r.sess.Write("\n"); err != nil {
			return err
		}
		out, err = r.sess.ReadUntil(ps.Union, timeout)
	}
	if err != nil {
		return err
	}
	mode, ok := r.machine.Observe(clean(out))
	if !ok {
		return fmt.Errorf("prompt not recognized: %q", terminal.LastLine(clean(out)))
	}
	logger.Debug("Session ready", "target", r.e.target.String(), "vsys", r.vsys, "mode", mode)

	for _, cmd := range r.e.plugin.SessionCommands() {
		out, err := r.exec(cmd, timeout)
		if err != nil {
			if errors.Is(err, ssh.ErrSessionClosed) {
				return err
			}
			logger.Warn("Session command failed", "command", cmd, "error", err)
			continue
		}
		r.machine.Observe(clean(out))
	}
	if !interact.IsDefaultVsys(r.vsys) {
		cmds := r.e.plugin.VsysCommands(r.vsys)
		if len(cmds) == 0 {
			return fmt.Errorf("%s does not support vsys", r.e.plugin.Info().Key())
		}
		// 切换虚拟系统至少需要特权模式
		if r.machine.Mode() == interact.ModeLogin && ps.Supports(interact.ModeEnable) {
			if err := r.switchMode(interact.ModeEnable, timeout); err != nil {
				return err
			}
		}
		for _, cmd := range cmds {
			out, err := r.exec(cmd, timeout)
			if err != nil {
				return fmt.Errorf("enter vsys %s: %w", r.vsys, err)
			}
			if m, found := r.classify(shape(out, cmd, r.e.plugin.Patterns()), cmd); found {
				return fmt.Errorf("enter vsys %s: %s", r.vsys, m.String())
			}
			r.machine.Observe(clean(out))
		}
	}
	r.machine.SetVsys(r.vsys)
	return nil
}

// run 执行单个任务并生成结果
func (r *runner) run(t task.Task) task.Outcome {
	switch tt := t.(type) {
	case *task.CmdTask:
		return r.runCommand(tt.Command(), tt.Mode(), tt.Timeout(), tt.CatchError(), tt.DetailOutput())
	case *task.PullTask:
		cmd, mode, ok := r.e.plugin.PullCommand(tt.ConfigType())
		if !ok {
			return task.Outcome{Err: task.ClientParamError("config type %s is not supported", tt.ConfigType())}
		}
		return r.runCommand(cmd, mode, tt.Timeout(), tt.CatchError(), true)
	case *task.ProbeTask:
		return r.probe(tt.Timeout())
	}
	return task.Outcome{Err: task.ClientParamError("unsupported task type %T", t)}
}

func (r *runner) runCommand(command string, mode interact.Mode, timeout time.Duration, catchError, detail bool) task.Outcome {
	if r.stale {
		if err := r.resync(timeout); err != nil {
			if errors.Is(err, ssh.ErrSessionClosed) {
				return task.Outcome{Err: task.SessionLostError(err)}
			}
			return task.Outcome{Err: task.CommandTimeoutError(command, fmt.Errorf("device busy with previous command: %w", err))}
		}
	}
	if err := r.switchMode(mode, timeout); err != nil {
		return task.Outcome{Err: err}
	}

	raw, err := r.exec(command, timeout)
	output := shape(raw, command, r.e.plugin.Patterns())
	logger.DebugCommandOutput(command, output, debugOutputLines)

	if err != nil {
		if errors.Is(err, ssh.ErrSessionClosed) {
			return task.Outcome{Output: output, Err: task.SessionLostError(err)}
		}
		if errors.Is(err, ssh.ErrReadTimeout) {
			r.stale = true
			return task.Outcome{Output: output, Err: task.CommandTimeoutError(command, err)}
		}
		return task.Outcome{Output: output, Err: err}
	}

	if _, ok := r.machine.Observe(clean(raw)); !ok {
		r.machine.SwitchMode(command)
	}

	outcome := task.Outcome{Output: output}
	if m, found := r.classify(output, command); found {
		outcome.DeviceError = m.String()
		if catchError {
			outcome.Err = task.DeviceReportedError(outcome.DeviceError)
		}
	} else {
		r.machine.SwitchVsys(command)
	}
	if !detail {
		outcome.Output = ""
	}
	return outcome
}

// probe 确认会话仍可交互：发送空行并等待提示符
func (r *runner) probe(timeout time.Duration) task.Outcome {
	if r.stale {
		if err := r.resync(timeout); err != nil {
			if errors.Is(err, ssh.ErrSessionClosed) {
				return task.Outcome{Err: task.SessionLostError(err)}
			}
			return task.Outcome{Err: task.CommandTimeoutError("", err)}
		}
	}
	out, err := r.exec("", timeout)
	if err != nil {
		if errors.Is(err, ssh.ErrSessionClosed) {
			return task.Outcome{Err: task.SessionLostError(err)}
		}
		r.stale = true
		return task.Outcome{Err: task.CommandTimeoutError("", err)}
	}
	mode, _ := r.machine.Observe(clean(out))
	return task.Outcome{Output: string(mode)}
}

// resync 丢弃超时命令的迟到输出，直到重新看到提示符
func (r *runner) resync(timeout time.Duration) error {
	out, err := r.readPrompt(timeout)
	if err != nil {
		return err
	}
	r.stale = false
	r.machine.Observe(clean(out))
	logger.Debug("Session resynced", "vsys", r.vsys, "dropped", len(out))
	return nil
}

// switchMode 按规划路径逐步切换到目标模式，每一步都以实际提示符确认
func (r *runner) switchMode(target interact.Mode, timeout time.Duration) error {
	if target == interact.ModeUnion || r.machine.Mode() == target {
		return nil
	}
	path, err := r.machine.Path(target)
	if err != nil {
		return task.ModeTransitionTimeoutError(string(r.machine.Mode()), string(target), "", err)
	}
	ps := r.e.plugin.Patterns()
	for _, step := range path {
		out, err := r.switchStep(step, timeout)
		if err != nil {
			if errors.Is(err, ssh.ErrSessionClosed) {
				return task.SessionLostError(err)
			}
			if errors.Is(err, ssh.ErrReadTimeout) {
				r.stale = true
			}
			r.machine.Observe(clean(out))
			return task.ModeTransitionTimeoutError(string(step.From), string(step.To), step.Command, err)
		}
		got, ok := r.machine.Observe(clean(out))
		if !ok || got != step.To {
			logger.Warn("Mode switch mismatch", "command", step.Command, "want", step.To, "got", got,
				"error", classifyText(out, ps))
			return task.ModeTransitionTimeoutError(string(step.From), string(step.To), step.Command, errModeMismatch)
		}
		logger.Debug("Mode switched", "from", step.From, "to", step.To, "command", step.Command)
	}
	return nil
}

// switchStep 发送切换命令；出现 enable 口令提示时输入口令
func (r *runner) switchStep(step interact.Transition, timeout time.Duration) (string, error) {
	ps := r.e.plugin.Patterns()
	if err := r.sess.Write(step.Command + "\n"); err != nil {
		return "", err
	}
	if ps.EnablePassword == nil {
		return r.readPrompt(timeout)
	}
	out, err := r.sess.ReadUntil(interact.Alternate(ps.Union, ps.EnablePassword), timeout)
	if err != nil {
		return out, err
	}
	last := terminal.LastLine(clean(out))
	if ps.Union.MatchString(last) || !ps.EnablePassword.MatchString(last) {
		return out, nil
	}
	if err := r.sess.Write(r.e.target.EnablePassword + "\n"); err != nil {
		return out, err
	}
	rest, err := r.sess.ReadUntil(ps.Union, timeout)
	return out + rest, err
}

// exec 发送命令并读取到提示符
func (r *runner) exec(command string, timeout time.Duration) (string, error) {
	if err := r.sess.Write(command + "\n"); err != nil {
		return "", err
	}
	return r.readPrompt(timeout)
}

// readPrompt 读取直到出现任一模式提示符；遇到分页提示自动发送空格继续
func (r *runner) readPrompt(timeout time.Duration) (string, error) {
	ps := r.e.plugin.Patterns()
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return sb.String(), ssh.ErrReadTimeout
		}
		chunk, err := r.sess.ReadUntil(r.e.readPrompt, remain)
		sb.WriteString(chunk)
		if err != nil {
			return sb.String(), err
		}
		last := terminal.LastLine(clean(chunk))
		if ps.More == nil || ps.Union.MatchString(last) || !ps.More.MatchString(last) {
			return sb.String(), nil
		}
		if err := r.sess.Write(" "); err != nil {
			return sb.String(), err
		}
	}
}

func (r *runner) classify(output, command string) (classify.Match, bool) {
	ps := r.e.plugin.Patterns()
	m, found := classify.DeviceError(output, ps.Errors, ps.Ignores)
	if found {
		logger.Debug("Device reported error", "command", command, "error", m.String())
	}
	return m, found
}

func classifyText(output string, ps *interact.PatternSet) string {
	if m, ok := classify.DeviceError(clean(output), ps.Errors, ps.Ignores); ok {
		return m.String()
	}
	return ""
}

func clean(raw string) string {
	return terminal.Normalize(terminal.StripANSI(raw))
}

// shape 还原终端文本后去掉命令回显、分页残留与结尾提示符
func shape(raw, command string, ps *interact.PatternSet) string {
	text := clean(raw)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")

	if cmd := strings.TrimSpace(command); cmd != "" && len(lines) > 0 &&
		strings.HasSuffix(strings.TrimSpace(lines[0]), cmd) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && ps.Union.MatchString(lines[n-1]) {
		lines = lines[:n-1]
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		// 分页提示被擦除后常留下行尾空白
		line = strings.TrimRight(line, " \t")
		if ps.More != nil {
			if loc := ps.More.FindStringIndex(line); loc != nil {
				line = strings.TrimRight(line[:loc[0]]+line[loc[1]:], " \t")
				if strings.TrimSpace(line) == "" {
					continue
				}
			}
		}
		out = append(out, line)
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
