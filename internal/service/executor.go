package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/task"
	"github.com/netdriver/netdriver/pkg/logger"
)

// Executor 按设备身份维护执行引擎
//
// 同一设备（协议、地址、端口、用户、厂商型号版本）的任务进入同一个 Engine，
// 每个 Engine 独立运行后台批处理循环；空闲超过 IdleTimeout 的引擎会被回收。
type Executor struct {
	cfg      config.EngineConfig
	registry *interact.Registry
	pool     SessionPool

	mu      sync.Mutex
	engines map[string]*Engine
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutor 创建执行器
func NewExecutor(cfg config.EngineConfig, registry *interact.Registry, pool SessionPool) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		cfg:      cfg,
		registry: registry,
		pool:     pool,
		engines:  make(map[string]*Engine),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Config 引擎配置
func (x *Executor) Config() config.EngineConfig { return x.cfg }

// Engine 获取或创建设备引擎；找不到插件时返回 CLIENT_PARAM_ERROR
func (x *Executor) Engine(target Target) (*Engine, error) {
	key := target.Key()

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil, task.EngineShutdownError()
	}
	if e, ok := x.engines[key]; ok && !e.Closed() {
		return e, nil
	}

	plugin, err := x.registry.Resolve(target.Vendor, target.Model, target.Version)
	if err != nil {
		if errors.Is(err, interact.ErrPluginNotFound) {
			return nil, task.ClientParamError("unsupported device: %v", err)
		}
		return nil, err
	}
	e := NewEngine(target, plugin, x.pool, x.cfg)
	e.Start(x.ctx)
	x.engines[key] = e
	logger.Info("Engine created", "target", target.String(), "plugin", plugin.Info().Key())
	return e, nil
}

// Submit 将一组任务提交给设备引擎
// 任一任务被拒绝时，已提交的任务全部取消并返回该错误；引擎恰好被回收时重试一次。
func (x *Executor) Submit(target Target, tasks ...task.Task) ([]task.Handle, error) {
	for attempt := 0; ; attempt++ {
		e, err := x.Engine(target)
		if err != nil {
			return nil, err
		}
		handles, err := submitTo(e, tasks)
		if err == nil {
			return handles, nil
		}
		if attempt == 0 && errors.Is(err, task.ErrEngineShutdown) && !x.isClosed() {
			x.forget(target.Key(), e)
			continue
		}
		return nil, err
	}
}

func submitTo(e *Engine, tasks []task.Task) ([]task.Handle, error) {
	handles := make([]task.Handle, 0, len(tasks))
	for _, t := range tasks {
		h, err := e.Submit(t)
		if err != nil {
			for _, t := range tasks[:len(handles)] {
				t.Cancel()
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Wait 等待全部任务完成并按提交顺序返回结果
func Wait(ctx context.Context, handles []task.Handle) ([]task.Result, error) {
	results := make([]task.Result, len(handles))
	for i, h := range handles {
		r, err := h.Result(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

func (x *Executor) isClosed() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closed
}

func (x *Executor) forget(key string, e *Engine) {
	x.mu.Lock()
	if cur, ok := x.engines[key]; ok && cur == e {
		delete(x.engines, key)
	}
	x.mu.Unlock()
}

// StartReaper 启动空闲引擎回收
func (x *Executor) StartReaper(interval time.Duration) {
	if x.cfg.IdleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = x.cfg.IdleTimeout / 2
	}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-x.ctx.Done():
				return
			case <-ticker.C:
				x.ReapIdle(time.Now())
			}
		}
	}()
}

// ReapIdle 停止空闲超过 IdleTimeout 的引擎，返回回收数量
func (x *Executor) ReapIdle(now time.Time) int {
	var idle []*Engine
	x.mu.Lock()
	for key, e := range x.engines {
		since, ok := e.IdleSince()
		if !ok || now.Sub(since) < x.cfg.IdleTimeout {
			continue
		}
		delete(x.engines, key)
		idle = append(idle, e)
	}
	x.mu.Unlock()

	for _, e := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), x.shutdownTimeout())
		if err := e.Shutdown(ctx); err != nil {
			logger.Warn("Idle engine shutdown incomplete", "target", e.Target().String(), "error", err)
		}
		cancel()
		logger.Info("Idle engine reaped", "target", e.Target().String())
	}
	return len(idle)
}

func (x *Executor) shutdownTimeout() time.Duration {
	if x.cfg.ShutdownTimeout > 0 {
		return x.cfg.ShutdownTimeout
	}
	return 30 * time.Second
}

// Stats 各引擎统计
func (x *Executor) Stats() []map[string]interface{} {
	x.mu.Lock()
	engines := make([]*Engine, 0, len(x.engines))
	for _, e := range x.engines {
		engines = append(engines, e)
	}
	x.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Stats())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["target"].(string) < out[j]["target"].(string)
	})
	return out
}

// Shutdown 停止全部引擎，已排队任务在 ctx 内执行完毕
func (x *Executor) Shutdown(ctx context.Context) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true
	engines := make([]*Engine, 0, len(x.engines))
	for _, e := range x.engines {
		engines = append(engines, e)
	}
	x.engines = make(map[string]*Engine)
	x.mu.Unlock()

	var g errgroup.Group
	for _, e := range engines {
		e := e
		g.Go(func() error {
			return e.Shutdown(ctx)
		})
	}
	err := g.Wait()
	x.cancel()
	x.wg.Wait()
	logger.Info("Executor stopped", "engines", len(engines))
	return err
}
