package interact

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/netdriver/netdriver/pkg/logger"
)

// ErrPluginNotFound 未找到匹配的插件
var ErrPluginNotFound = errors.New("plugin not found")

// Factory 构建插件实例
type Factory func() (Plugin, error)

// Registry 插件注册中心，按 vendor/model 索引
type Registry struct {
	mu      sync.RWMutex
	plugins map[string][]Plugin
	vendors map[string]bool
	models  map[string]bool
}

// NewRegistry 创建空注册中心
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string][]Plugin),
		vendors: make(map[string]bool),
		models:  make(map[string]bool),
	}
}

// Register 注册单个插件
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("nil plugin")
	}
	info := p.Info()
	if strings.TrimSpace(info.Vendor) == "" || strings.TrimSpace(info.Model) == "" {
		return fmt.Errorf("plugin vendor and model are required")
	}
	if p.Patterns() == nil || p.Patterns().Union == nil {
		return fmt.Errorf("plugin %s has no prompt patterns", info.Key())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := info.Key()
	r.plugins[key] = append(r.plugins[key], p)
	r.vendors[strings.ToLower(info.Vendor)] = true
	r.models[strings.ToLower(info.Model)] = true
	return nil
}

// Load 依次构建并注册插件；单个插件失败只记录日志并跳过
func (r *Registry) Load(factories ...Factory) (loaded int) {
	for i, f := range factories {
		p, err := build(f)
		if err == nil {
			err = r.Register(p)
		}
		if err != nil {
			logger.Warn("Plugin registration skipped", "index", i, "error", err)
			continue
		}
		logger.Debug("Plugin registered", "key", p.Info().Key(), "version", p.Info().Version)
		loaded++
	}
	return loaded
}

func build(f Factory) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin factory panic: %v", r)
		}
	}()
	if f == nil {
		return nil, fmt.Errorf("nil plugin factory")
	}
	return f()
}

// Resolve 按 vendor/model 查找候选插件，并由插件自身的版本判断选出第一个可用者
func (r *Registry) Resolve(vendor, model, version string) (Plugin, error) {
	r.mu.RLock()
	candidates := r.plugins[Key(vendor, model)]
	r.mu.RUnlock()
	for _, p := range candidates {
		if p.IsSelectable(strings.ToLower(strings.TrimSpace(vendor)), strings.ToLower(strings.TrimSpace(model)), version) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s version %q", ErrPluginNotFound, vendor, model, version)
}

// HasVendor 是否存在该厂商的插件
func (r *Registry) HasVendor(vendor string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vendors[strings.ToLower(strings.TrimSpace(vendor))]
}

// HasModel 是否存在该型号的插件（任意厂商）
func (r *Registry) HasModel(model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[strings.ToLower(strings.TrimSpace(model))]
}

// Keys 已注册的 vendor/model 列表
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
