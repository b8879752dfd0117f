package service

import (
	"context"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/merger"
	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/pkg/logger"
)

// Engine 单台设备的命令执行引擎
//
// 任务经 Submit 进入队列，RunBatchOnce 一次取出全部排队任务并按虚拟系统分组，
// 不同分组并发执行，同一分组在同一会话上严格按提交顺序执行。
type Engine struct {
	target Target
	plugin interact.Plugin
	pool   SessionPool
	cfg    config.EngineConfig
	merger *merger.Merger

	// readPrompt 命令结束（任一提示符）或分页提示
	readPrompt *regexp.Regexp

	mu         sync.Mutex
	machines   map[string]*interact.Machine
	closed     bool
	lastActive time.Time

	stop     chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	running  bool
}

// NewEngine 创建设备引擎
func NewEngine(target Target, plugin interact.Plugin, pool SessionPool, cfg config.EngineConfig) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = merger.DefaultQueueSize
	}
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = 8
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = task.DefaultTimeout
	}
	ps := plugin.Patterns()
	readPrompt := ps.Union
	if ps.More != nil {
		readPrompt = interact.Alternate(ps.Union, ps.More)
	}
	return &Engine{
		target:     target,
		plugin:     plugin,
		pool:       pool,
		cfg:        cfg,
		merger:     merger.New(cfg.QueueSize),
		readPrompt: readPrompt,
		machines:   make(map[string]*interact.Machine),
		lastActive: time.Now(),
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// Target 设备身份
func (e *Engine) Target() Target { return e.target }

// Plugin 设备插件
func (e *Engine) Plugin() interact.Plugin { return e.plugin }

// Submit 校验并提交任务；参数错误、队列已满或引擎已停止时同步返回错误，任务不会入队
func (e *Engine) Submit(t task.Task) (task.Handle, error) {
	if err := e.validate(t); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, task.EngineShutdownError()
	}
	e.lastActive = time.Now()
	e.mu.Unlock()

	if err := e.merger.Enqueue(t); err != nil {
		logger.Warn("Task rejected", "target", e.target.String(), "task", t.String(), "error", err)
		return nil, err
	}
	return t, nil
}

func (e *Engine) validate(t task.Task) error {
	switch tt := t.(type) {
	case *task.CmdTask:
		if tt.Command() == "" {
			return task.ClientParamError("command is required")
		}
		if tt.Mode() != interact.ModeUnion && !e.plugin.Patterns().Supports(tt.Mode()) {
			return task.ClientParamError("mode %s is not supported by %s", tt.Mode(), e.plugin.Info().Key())
		}
	case *task.PullTask:
		if _, _, ok := e.plugin.PullCommand(tt.ConfigType()); !ok {
			return task.ClientParamError("config type %s is not supported by %s", tt.ConfigType(), e.plugin.Info().Key())
		}
	case *task.ProbeTask:
	default:
		return task.ClientParamError("unsupported task type %T", t)
	}
	return nil
}

// RunBatchOnce 执行一轮：取出全部排队任务，各虚拟系统分组并发执行，全部完成后返回
func (e *Engine) RunBatchOnce(ctx context.Context) error {
	groups := e.merger.DrainBatch()
	if len(groups) == 0 {
		return nil
	}
	logger.Debug("Batch drained", "target", e.target.String(), "groups", len(groups))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxGroups)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			defer func() {
				for range grp.Tasks {
					if err := e.merger.TaskDone(); err != nil {
						logger.Error("Task accounting mismatch", "target", e.target.String(), "error", err)
					}
				}
			}()
			e.runGroup(ctx, grp)
			return nil
		})
	}
	err := g.Wait()

	e.mu.Lock()
	e.lastActive = time.Now()
	e.mu.Unlock()
	return err
}

// Start 启动后台批处理循环
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running || e.closed {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()
	go e.loop(ctx)
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-e.merger.Ready():
		}
		// 合并窗口：短暂等待，让同一请求的后续任务进入同一批
		if e.cfg.BatchInterval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-time.After(e.cfg.BatchInterval):
			}
		}
		if err := e.RunBatchOnce(ctx); err != nil {
			logger.Error("Batch failed", "target", e.target.String(), "error", err)
		}
	}
}

// Outstanding 已提交但未完成的任务数
func (e *Engine) Outstanding() int { return e.merger.Outstanding() }

// QueueLen 排队中的任务数
func (e *Engine) QueueLen() int { return e.merger.Len() }

// IdleSince 无排队任务时返回最近一次活动时间
func (e *Engine) IdleSince() (time.Time, bool) {
	if e.merger.Outstanding() > 0 {
		return time.Time{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActive, true
}

// Closed 是否已停止接收任务
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Shutdown 停止接收新任务，执行完已排队任务后释放设备会话
// ctx 到期时，仍在排队的任务以 ENGINE_SHUTDOWN 结束。
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	alreadyClosed := e.closed
	e.closed = true
	running := e.running
	e.mu.Unlock()
	if alreadyClosed {
		return e.merger.Join(ctx)
	}

	e.stopOnce.Do(func() { close(e.stop) })
	if running {
		<-e.loopDone
	}

	for e.merger.Len() > 0 && ctx.Err() == nil {
		if err := e.RunBatchOnce(ctx); err != nil {
			logger.Error("Batch failed during shutdown", "target", e.target.String(), "error", err)
		}
	}
	if ctx.Err() != nil {
		e.abandon()
	}
	err := e.merger.Join(ctx)

	e.pool.Evict(e.target)
	logger.Info("Engine stopped", "target", e.target.String())
	return err
}

// abandon 以 ENGINE_SHUTDOWN 结束仍在排队的任务
func (e *Engine) abandon() {
	for _, grp := range e.merger.DrainBatch() {
		for _, t := range grp.Tasks {
			t.Fulfill(task.Outcome{Err: task.EngineShutdownError()})
			_ = e.merger.TaskDone()
		}
	}
}

// machine 获取虚拟系统会话的模式状态机；reset 时重建（新会话）
func (e *Engine) machine(vsys string, reset bool) *interact.Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.machines[vsys]
	if !ok || reset {
		m = interact.NewMachine(e.plugin)
		e.machines[vsys] = m
	}
	return m
}

func (e *Engine) dropMachine(vsys string) {
	e.mu.Lock()
	delete(e.machines, vsys)
	e.mu.Unlock()
}

// Stats 引擎统计信息
func (e *Engine) Stats() map[string]interface{} {
	e.mu.Lock()
	sessions := len(e.machines)
	closed := e.closed
	last := e.lastActive
	e.mu.Unlock()
	return map[string]interface{}{
		"target":      e.target.String(),
		"plugin":      e.plugin.Info().Key(),
		"queued":      e.merger.Len(),
		"capacity":    e.merger.Cap(),
		"outstanding": e.merger.Outstanding(),
		"sessions":    sessions,
		"closed":      closed,
		"last_active": last,
	}
}
