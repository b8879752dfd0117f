package ssh

import (
	"context"
	"errors"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/netdriver/netdriver/pkg/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxActive       int           `mapstructure:"max_active"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	SSHConfig       *Config       `mapstructure:"-"`
}

// Pool SSH连接池
// 同一 host:port、用户与口令复用一条连接；每个 scope（如虚拟系统）独占一个 Shell。
type Pool struct {
	config *PoolConfig

	mutex   sync.Mutex
	clients map[string]*Client
	shells  map[string]*pooledShell
	group   singleflight.Group

	stop chan struct{}
	once sync.Once
}

type pooledShell struct {
	shell     *Shell
	clientKey string
	key       string
	inUse     bool
	released  chan struct{}
	lastUsed  time.Time
	created   time.Time
}

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("ssh pool closed")

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig) *Pool {
	cfg := PoolConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Second
	}
	p := &Pool{
		config:  &cfg,
		clients: make(map[string]*Client),
		shells:  make(map[string]*pooledShell),
		stop:    make(chan struct{}),
	}
	go p.cleanup()
	return p
}

// ClientKey 连接键；口令以摘要参与区分，口令不同的请求不会复用已认证的连接
func ClientKey(info ConnectionInfo) string {
	return fmt.Sprintf("%s:%s@%s", info.Username, Fingerprint(info.Password), info.Address())
}

// Fingerprint 口令摘要，只用于键比较，不写入日志
func Fingerprint(secrets ...string) string {
	h := sha256.New()
	for _, s := range secrets {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Acquire 借出 scope 对应的 Shell，不存在或已断开时新建
// Shell 已被借出时等待其归还，直到 ctx 结束；返回的 fresh 表示本次新建，调用方需完成登录后的初始化。
func (p *Pool) Acquire(ctx context.Context, info ConnectionInfo, scope, encoding string) (shell *Shell, fresh bool, err error) {
	clientKey := ClientKey(info)
	key := clientKey + "|" + scope

	p.mutex.Lock()
	for {
		select {
		case <-p.stop:
			p.mutex.Unlock()
			return nil, false, ErrPoolClosed
		default:
		}
		ps, ok := p.shells[key]
		if !ok {
			break
		}
		if ps.inUse {
			released := ps.released
			p.mutex.Unlock()
			select {
			case <-released:
			case <-ctx.Done():
				return nil, false, fmt.Errorf("wait for shell of %s@%s: %w", info.Username, info.Address(), ctx.Err())
			case <-p.stop:
				return nil, false, ErrPoolClosed
			}
			p.mutex.Lock()
			continue
		}
		if ps.shell.IsAlive() {
			ps.hold()
			p.mutex.Unlock()
			return ps.shell, false, nil
		}
		delete(p.shells, key)
		break
	}
	if p.config.MaxActive > 0 && len(p.shells) >= p.config.MaxActive {
		p.mutex.Unlock()
		return nil, false, fmt.Errorf("connection pool is full, active shells: %d", len(p.shells))
	}
	// 占位，同一 scope 的并发借用者等待建立结果
	placeholder := &pooledShell{clientKey: clientKey, key: key, created: time.Now()}
	placeholder.hold()
	p.shells[key] = placeholder
	p.mutex.Unlock()

	shell, err = p.openShell(ctx, info, clientKey, encoding)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if err != nil {
		if p.shells[key] == placeholder {
			delete(p.shells, key)
		}
		placeholder.free()
		return nil, false, err
	}
	placeholder.shell = shell
	placeholder.lastUsed = time.Now()
	logger.Debug("SSH shell opened", "host", info.Address(), "user", info.Username, "scope", scope)
	return shell, true, nil
}

// hold 标记借出；released 在归还或移除时关闭
func (ps *pooledShell) hold() {
	ps.inUse = true
	ps.lastUsed = time.Now()
	ps.released = make(chan struct{})
}

func (ps *pooledShell) free() {
	if !ps.inUse {
		return
	}
	ps.inUse = false
	ps.lastUsed = time.Now()
	close(ps.released)
}

func (p *Pool) openShell(ctx context.Context, info ConnectionInfo, clientKey, encoding string) (*Shell, error) {
	client, err := p.client(ctx, info, clientKey)
	if err != nil {
		return nil, err
	}
	shell, err := client.OpenShell(ctx, encoding)
	if err == nil {
		return shell, nil
	}
	// 连接可能已被设备断开，重建一次
	p.dropClient(clientKey, client)
	client, err2 := p.client(ctx, info, clientKey)
	if err2 != nil {
		return nil, fmt.Errorf("%v; reconnect: %w", err, err2)
	}
	return client.OpenShell(ctx, encoding)
}

// client 获取或建立连接，同一连接键的并发建立合并为一次
func (p *Pool) client(ctx context.Context, info ConnectionInfo, clientKey string) (*Client, error) {
	p.mutex.Lock()
	if c, ok := p.clients[clientKey]; ok {
		p.mutex.Unlock()
		return c, nil
	}
	p.mutex.Unlock()

	v, err, _ := p.group.Do(clientKey, func() (interface{}, error) {
		c := NewClient(p.config.SSHConfig)
		if err := c.Connect(ctx, info); err != nil {
			return nil, err
		}
		p.mutex.Lock()
		p.clients[clientKey] = c
		p.mutex.Unlock()
		logger.Info("SSH connection established", "host", info.Address(), "user", info.Username)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (p *Pool) dropClient(clientKey string, c *Client) {
	p.mutex.Lock()
	if cur, ok := p.clients[clientKey]; ok && cur == c {
		delete(p.clients, clientKey)
	}
	p.mutex.Unlock()
	_ = c.Close()
}

// Release 归还 Shell
func (p *Pool) Release(shell *Shell) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, ps := range p.shells {
		if ps.shell == shell {
			ps.free()
			return
		}
	}
}

// Invalidate 关闭并移除 Shell，不再复用
func (p *Pool) Invalidate(shell *Shell) {
	p.mutex.Lock()
	for key, ps := range p.shells {
		if ps.shell == shell {
			delete(p.shells, key)
			ps.free()
			break
		}
	}
	p.mutex.Unlock()
	_ = shell.Close()
}

// Evict 关闭某个连接下全部空闲 Shell；没有借出的 Shell 时一并断开连接
func (p *Pool) Evict(info ConnectionInfo) {
	clientKey := ClientKey(info)
	var closeShells []*Shell
	var client *Client

	p.mutex.Lock()
	busy := false
	for key, ps := range p.shells {
		if ps.clientKey != clientKey {
			continue
		}
		if ps.inUse {
			busy = true
			continue
		}
		closeShells = append(closeShells, ps.shell)
		delete(p.shells, key)
	}
	if !busy {
		client = p.clients[clientKey]
		delete(p.clients, clientKey)
	}
	p.mutex.Unlock()

	for _, s := range closeShells {
		_ = s.Close()
	}
	if client != nil {
		_ = client.Close()
	}
}

// Close 关闭连接池
func (p *Pool) Close() error {
	p.once.Do(func() { close(p.stop) })

	p.mutex.Lock()
	shells := p.shells
	clients := p.clients
	p.shells = make(map[string]*pooledShell)
	p.clients = make(map[string]*Client)
	p.mutex.Unlock()

	for _, ps := range shells {
		if ps.shell != nil {
			_ = ps.shell.Close()
		}
	}
	p.mutex.Lock()
	for _, ps := range shells {
		ps.free()
	}
	p.mutex.Unlock()
	var lastErr error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Stats 连接池统计信息
func (p *Pool) Stats() map[string]interface{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	active := 0
	for _, ps := range p.shells {
		if ps.inUse {
			active++
		}
	}
	return map[string]interface{}{
		"connections":   len(p.clients),
		"shells":        len(p.shells),
		"active_shells": active,
		"idle_shells":   len(p.shells) - active,
		"max_active":    p.config.MaxActive,
	}
}

// cleanup 定期清理空闲超时或已断开的 Shell，以及不再承载 Shell 的连接
func (p *Pool) cleanup() {
	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.cleanupExpired()
		}
	}
}

func (p *Pool) cleanupExpired() {
	now := time.Now()
	var closeShells []*Shell
	var closeClients []*Client

	p.mutex.Lock()
	used := make(map[string]bool)
	for key, ps := range p.shells {
		if ps.inUse {
			used[ps.clientKey] = true
			continue
		}
		if !ps.shell.IsAlive() || now.Sub(ps.lastUsed) > p.config.IdleTimeout {
			closeShells = append(closeShells, ps.shell)
			delete(p.shells, key)
			continue
		}
		used[ps.clientKey] = true
	}
	for key, c := range p.clients {
		if !used[key] {
			closeClients = append(closeClients, c)
			delete(p.clients, key)
		}
	}
	p.mutex.Unlock()

	for _, s := range closeShells {
		_ = s.Close()
	}
	for _, c := range closeClients {
		_ = c.Close()
	}
	if len(closeShells)+len(closeClients) > 0 {
		logger.Debug("SSH pool cleanup", "shells", len(closeShells), "connections", len(closeClients))
	}
}
