package merger

import (
	"context"
	"fmt"
	"sync"

	"github.com/netdriver/netdriver/internal/task"
)

// DefaultQueueSize 默认队列容量
const DefaultQueueSize = 64

// Group 同一虚拟系统的任务，保持入队顺序
type Group struct {
	Vsys  string
	Tasks []task.Task
}

// Merger 有界任务队列，按虚拟系统合并批次
// mu 只串行化入队与批量取出，不在设备交互期间持有。
type Merger struct {
	mu    sync.Mutex
	queue chan task.Task
	ready chan struct{}

	// outstanding 已入队但尚未通过 TaskDone 确认完成的任务数
	outstanding int
	drained     int
	idle        chan struct{}
}

// New 创建 Merger，size <= 0 时使用默认容量
func New(size int) *Merger {
	if size <= 0 {
		size = DefaultQueueSize
	}
	idle := make(chan struct{})
	close(idle)
	return &Merger{
		queue: make(chan task.Task, size),
		ready: make(chan struct{}, 1),
		idle:  idle,
	}
}

// Cap 队列容量
func (m *Merger) Cap() int { return cap(m.queue) }

// Len 当前排队任务数
func (m *Merger) Len() int { return len(m.queue) }

// Ready 有新任务入队时收到通知
func (m *Merger) Ready() <-chan struct{} { return m.ready }

// Enqueue 记录入队时间并放入队列；队列已满时立即返回 QUEUE_SATURATED，不阻塞
func (m *Merger) Enqueue(t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) >= cap(m.queue) {
		return task.QueueSaturatedError(cap(m.queue))
	}
	t.MarkEnqueued()
	m.queue <- t
	if m.outstanding == 0 {
		m.idle = make(chan struct{})
	}
	m.outstanding++

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return nil
}

// DrainBatch 取出当前全部排队任务并按虚拟系统分组
// 分组顺序为各虚拟系统在本批中首次出现的顺序；取出期间的并发入队会进入下一批。
// 队列为空时返回 nil。
func (m *Merger) DrainBatch() []Group {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.queue)
	if n == 0 {
		return nil
	}
	var groups []Group
	index := make(map[string]int)
	for i := 0; i < n; i++ {
		t := <-m.queue
		t.MarkDequeued()
		t.MarkExecStart()
		m.drained++

		gi, ok := index[t.Vsys()]
		if !ok {
			gi = len(groups)
			index[t.Vsys()] = gi
			groups = append(groups, Group{Vsys: t.Vsys()})
		}
		groups[gi].Tasks = append(groups[gi].Tasks, t)
	}
	return groups
}

// TaskDone 确认一个已取出的任务处理完成，每个取出的任务恰好调用一次
func (m *Merger) TaskDone() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drained == 0 {
		return fmt.Errorf("task done called more times than tasks drained")
	}
	m.drained--
	m.outstanding--
	if m.outstanding == 0 {
		close(m.idle)
	}
	return nil
}

// Outstanding 尚未确认完成的任务数（含排队中）
func (m *Merger) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outstanding
}

// Join 等待全部已入队任务被确认完成
func (m *Merger) Join(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
