package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netdriver/netdriver/addone/interact"
)

// DefaultTimeout 单个任务的默认超时
const DefaultTimeout = 10 * time.Second

// Kind 任务类型
type Kind string

const (
	KindCmd   Kind = "cmd"
	KindPull  Kind = "pull"
	KindProbe Kind = "probe"
)

// Outcome 执行结果，由调度循环写入
type Outcome struct {
	Output      string
	DeviceError string // 设备返回的错误文本（catchError 为 false 时仅附带在结果中）
	Err         error
}

// Result 任务结果
type Result struct {
	QueueTime   time.Duration
	ExecTime    time.Duration
	Output      string
	DeviceError string
	Exception   error
}

// TotalTime 排队时间与执行时间之和
func (r Result) TotalTime() time.Duration {
	return r.QueueTime + r.ExecTime
}

// Handle 调用方持有的结果句柄
type Handle interface {
	ID() string
	Result(ctx context.Context) (Result, error)
	Cancel() bool
	Done() <-chan struct{}
}

// Task 调度单元
type Task interface {
	Handle
	Kind() Kind
	Vsys() string
	Timeout() time.Duration
	CatchError() bool
	IsDone() bool

	MarkEnqueued()
	MarkDequeued()
	MarkExecStart()
	Fulfill(o Outcome) bool
	String() string
}

type state int

const (
	statePending state = iota
	stateFulfilled
	stateCancelled
)

// Options 任务公共参数
type Options struct {
	Vsys       string
	Timeout    time.Duration
	CatchError *bool // 为空时默认 true
}

// Base 任务公共部分：时间戳与一次性结果
type Base struct {
	id         string
	vsys       string
	timeout    time.Duration
	catchError bool

	mu        sync.Mutex
	enqueued  time.Time
	dequeued  time.Time
	execStart time.Time
	execEnd   time.Time
	outcome   Outcome
	state     state
	done      chan struct{}
}

func (b *Base) init(opts Options) {
	vsys := strings.TrimSpace(opts.Vsys)
	if interact.IsDefaultVsys(vsys) {
		vsys = interact.DefaultVsys
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	catchError := true
	if opts.CatchError != nil {
		catchError = *opts.CatchError
	}
	b.id = uuid.NewString()
	b.vsys = vsys
	b.timeout = timeout
	b.catchError = catchError
	b.done = make(chan struct{})
}

func (b *Base) ID() string { return b.id }

func (b *Base) Vsys() string { return b.vsys }

func (b *Base) Timeout() time.Duration { return b.timeout }

func (b *Base) CatchError() bool { return b.catchError }

// MarkEnqueued 记录入队时间
func (b *Base) MarkEnqueued() {
	b.mu.Lock()
	b.enqueued = time.Now()
	b.mu.Unlock()
}

// MarkDequeued 记录出队时间；已取消的任务不记录
func (b *Base) MarkDequeued() {
	b.mu.Lock()
	if b.state == statePending {
		b.dequeued = time.Now()
	}
	b.mu.Unlock()
}

// MarkExecStart 记录开始执行时间
func (b *Base) MarkExecStart() {
	b.mu.Lock()
	if b.state == statePending {
		b.execStart = time.Now()
	}
	b.mu.Unlock()
}

// Fulfill 写入执行结果；任务已完成或已取消时返回 false
func (b *Base) Fulfill(o Outcome) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != statePending {
		return false
	}
	b.execEnd = time.Now()
	b.outcome = o
	b.state = stateFulfilled
	close(b.done)
	return true
}

// Cancel 取消任务；已完成的任务取消无效
// 取消不会中断正在进行的设备交互，只丢弃其结果。
func (b *Base) Cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != statePending {
		return false
	}
	b.state = stateCancelled
	b.outcome = Outcome{Err: NewError(ErrCodeCancelled, "task cancelled")}
	close(b.done)
	return true
}

// IsDone 是否已完成或取消
func (b *Base) IsDone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != statePending
}

// Cancelled 是否已取消
func (b *Base) Cancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateCancelled
}

// Done 完成时关闭的通道
func (b *Base) Done() <-chan struct{} { return b.done }

// Result 等待并返回任务结果；ctx 结束时返回 ctx 错误
func (b *Base) Result(ctx context.Context) (Result, error) {
	select {
	case <-b.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	r := Result{
		Output:      b.outcome.Output,
		DeviceError: b.outcome.DeviceError,
		Exception:   b.outcome.Err,
	}
	// 出队前取消：排队时间为 0
	if !b.dequeued.IsZero() && !b.enqueued.IsZero() {
		r.QueueTime = b.dequeued.Sub(b.enqueued)
	}
	// 开始执行前取消：执行时间为 0
	if !b.execStart.IsZero() && !b.execEnd.IsZero() {
		r.ExecTime = b.execEnd.Sub(b.execStart)
	}
	return r, nil
}

// CmdTask 命令执行任务
type CmdTask struct {
	Base
	command      string
	mode         interact.Mode
	detailOutput bool
}

// CmdOptions 命令任务参数
type CmdOptions struct {
	Options
	Mode         interact.Mode
	DetailOutput *bool // 为空时默认 true
}

// NewCmdTask 创建命令任务，命令首尾空白会被去除
func NewCmdTask(command string, opts CmdOptions) *CmdTask {
	mode := opts.Mode
	if mode == "" {
		mode = interact.ModeUnion
	}
	detail := true
	if opts.DetailOutput != nil {
		detail = *opts.DetailOutput
	}
	t := &CmdTask{
		command:      strings.TrimSpace(command),
		mode:         mode,
		detailOutput: detail,
	}
	t.init(opts.Options)
	return t
}

func (t *CmdTask) Kind() Kind { return KindCmd }

func (t *CmdTask) Command() string { return t.command }

// Mode 目标模式，union 表示在当前模式执行
func (t *CmdTask) Mode() interact.Mode { return t.mode }

func (t *CmdTask) DetailOutput() bool { return t.detailOutput }

func (t *CmdTask) String() string {
	return fmt.Sprintf("[%s|%s|%s|%s]", t.command, t.vsys, t.mode, t.timeout)
}

// PullTask 配置拉取任务
type PullTask struct {
	Base
	configType interact.ConfigType
}

// NewPullTask 创建配置拉取任务
func NewPullTask(configType interact.ConfigType, opts Options) *PullTask {
	if configType == "" {
		configType = interact.ConfigRunning
	}
	t := &PullTask{configType: configType}
	t.init(opts)
	return t
}

func (t *PullTask) Kind() Kind { return KindPull }

func (t *PullTask) ConfigType() interact.ConfigType { return t.configType }

func (t *PullTask) String() string {
	return fmt.Sprintf("[%s|%s|%s]", t.configType, t.vsys, t.timeout)
}

// ProbeTask 连通性检查：只建立（或复用）虚拟系统会话，不下发命令
type ProbeTask struct {
	Base
}

// NewProbeTask 创建连通性检查任务
func NewProbeTask(opts Options) *ProbeTask {
	t := &ProbeTask{}
	t.init(opts)
	return t
}

func (t *ProbeTask) Kind() Kind { return KindProbe }

func (t *ProbeTask) String() string {
	return fmt.Sprintf("[probe|%s|%s]", t.vsys, t.timeout)
}

// Bool 便于构造可选布尔参数
func Bool(v bool) *bool { return &v }
