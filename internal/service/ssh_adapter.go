package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/netdriver/netdriver/addone/interact"
	"github.com/netdriver/netdriver/pkg/ssh"
)

// sshSessionPool 将 ssh.Pool 适配为 SessionPool，每个虚拟系统独占一个 Shell
type sshSessionPool struct {
	pool *ssh.Pool
}

// NewSSHSessionPool 创建基于 SSH 的会话池
func NewSSHSessionPool(pool *ssh.Pool) SessionPool {
	return &sshSessionPool{pool: pool}
}

func connectionInfo(t Target) ssh.ConnectionInfo {
	port := t.Port
	if port <= 0 {
		port = 22
	}
	return ssh.ConnectionInfo{
		Host:     t.Host,
		Port:     port,
		Username: t.Username,
		Password: t.Password,
	}
}

func (a *sshSessionPool) Acquire(ctx context.Context, target Target, vsys string) (Session, bool, error) {
	if p := strings.ToLower(strings.TrimSpace(target.Protocol)); p != "" && p != "ssh" {
		return nil, false, fmt.Errorf("unsupported protocol: %s", target.Protocol)
	}
	if interact.IsDefaultVsys(vsys) {
		vsys = interact.DefaultVsys
	}
	shell, fresh, err := a.pool.Acquire(ctx, connectionInfo(target), vsys, target.Encoding)
	if err != nil {
		return nil, false, err
	}
	return shell, fresh, nil
}

func (a *sshSessionPool) Release(sess Session) {
	if shell, ok := sess.(*ssh.Shell); ok {
		a.pool.Release(shell)
	}
}

func (a *sshSessionPool) Invalidate(sess Session) {
	if shell, ok := sess.(*ssh.Shell); ok {
		a.pool.Invalidate(shell)
	}
}

func (a *sshSessionPool) Evict(target Target) {
	a.pool.Evict(connectionInfo(target))
}
