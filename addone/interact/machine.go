package interact

import (
	"fmt"
	"strings"
	"sync"
)

// Machine 单个会话的模式状态机
// 状态只在 login/enable/config 之间变化，union 从不作为当前状态。
type Machine struct {
	plugin Plugin

	mu    sync.RWMutex
	mode  Mode
	vsys  string
	known bool
}

// NewMachine 创建状态机，初始模式未知，需通过 Observe 或 Set 确定
func NewMachine(p Plugin) *Machine {
	return &Machine{plugin: p, vsys: DefaultVsys}
}

// Plugin 返回状态机所属插件
func (m *Machine) Plugin() Plugin { return m.plugin }

// Mode 当前模式；未知时返回空串
func (m *Machine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Known 当前模式是否已确定
func (m *Machine) Known() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.known
}

// Vsys 当前虚拟系统
func (m *Machine) Vsys() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vsys
}

// Set 直接设置当前模式（提示符已确认时使用）
func (m *Machine) Set(mode Mode) error {
	if !mode.Concrete() {
		return fmt.Errorf("mode %q cannot be a session state", mode)
	}
	m.mu.Lock()
	m.mode = mode
	m.known = true
	m.mu.Unlock()
	return nil
}

// SetVsys 设置当前虚拟系统
func (m *Machine) SetVsys(vsys string) {
	if IsDefaultVsys(vsys) {
		vsys = DefaultVsys
	}
	m.mu.Lock()
	m.vsys = vsys
	m.mu.Unlock()
}

// Observe 根据设备输出末尾的提示符更新当前模式
func (m *Machine) Observe(output string) (Mode, bool) {
	mode, ok := m.plugin.Patterns().Detect(output)
	if !ok {
		return "", false
	}
	m.mu.Lock()
	m.mode = mode
	m.known = true
	m.mu.Unlock()
	return mode, true
}

// SwitchMode 若命令是当前模式下的切换指令，则更新状态并返回 true
func (m *Machine) SwitchMode(command string) bool {
	cmd := normalizeCommand(command)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known {
		return false
	}
	for _, t := range m.plugin.Transitions() {
		if t.From == m.mode && normalizeCommand(t.Command) == cmd {
			m.mode = t.To
			return true
		}
	}
	return false
}

// SwitchVsys 若命令是虚拟系统切换指令，则更新当前虚拟系统并返回 true
func (m *Machine) SwitchVsys(command string) bool {
	vsys, ok := m.plugin.MatchVsys(command)
	if !ok {
		return false
	}
	m.SetVsys(vsys)
	return true
}

// Path 规划从当前模式到目标模式的切换步骤（仅使用 Canonical 规则，广度优先取最短路径）
// 目标为 union 或与当前模式相同时返回空路径。
func (m *Machine) Path(target Mode) ([]Transition, error) {
	if target == ModeUnion {
		return nil, nil
	}
	if !target.Concrete() {
		return nil, fmt.Errorf("unknown target mode %q", target)
	}
	m.mu.RLock()
	from, known := m.mode, m.known
	m.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("current mode is unknown")
	}
	if from == target {
		return nil, nil
	}

	type node struct {
		mode Mode
		path []Transition
	}
	visited := map[Mode]bool{from: true}
	queue := []node{{mode: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range m.plugin.Transitions() {
			if !t.Canonical || t.From != cur.mode || visited[t.To] {
				continue
			}
			next := append(append([]Transition{}, cur.path...), t)
			if t.To == target {
				return next, nil
			}
			visited[t.To] = true
			queue = append(queue, node{mode: t.To, path: next})
		}
	}
	return nil, fmt.Errorf("no transition from %s to %s for %s", from, target, m.plugin.Info().Key())
}

func normalizeCommand(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
