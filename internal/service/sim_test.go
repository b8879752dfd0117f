package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdriver/netdriver/pkg/ssh"
	"github.com/netdriver/netdriver/simulate"
)

type pipeConn struct {
	r io.Reader
	w io.Writer
}

func (c pipeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c pipeConn) Write(p []byte) (int, error) { return c.w.Write(p) }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// simPool 每个虚拟系统一台内存模拟设备，经管道接入真实的 ssh.Shell
type simPool struct {
	profile *simulate.Profile

	mu          sync.Mutex
	devices     map[string]*simulate.Device
	idle        map[string]*ssh.Shell
	owner       map[*ssh.Shell]string
	acquires    int
	opened      int
	invalidated int
	evicted     int
}

func newSimPool(t *testing.T, profile string) *simPool {
	t.Helper()
	p, err := simulate.LoadProfile(profile)
	require.NoError(t, err)
	return newSimPoolFromProfile(p)
}

func newSimPoolFromProfile(p *simulate.Profile) *simPool {
	return &simPool{
		profile: p,
		devices: make(map[string]*simulate.Device),
		idle:    make(map[string]*ssh.Shell),
		owner:   make(map[*ssh.Shell]string),
	}
}

func (p *simPool) Acquire(ctx context.Context, target Target, vsys string) (Session, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquires++
	if sh, ok := p.idle[vsys]; ok {
		delete(p.idle, vsys)
		if sh.IsAlive() {
			return sh, false, nil
		}
	}

	c2dR, c2dW := io.Pipe()
	d2cR, d2cW := io.Pipe()
	dev := simulate.NewDevice(p.profile)
	go func() {
		_ = simulate.Serve(dev, pipeConn{r: c2dR, w: d2cW})
		_ = d2cW.Close()
		_ = c2dR.Close()
	}()
	shell := ssh.NewShellFromPipes(closerFunc(func() error {
		_ = c2dW.Close()
		return d2cR.Close()
	}), c2dW, d2cR, "")

	p.devices[vsys] = dev
	p.owner[shell] = vsys
	p.opened++
	return shell, true, nil
}

func (p *simPool) Release(sess Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sh := sess.(*ssh.Shell)
	p.idle[p.owner[sh]] = sh
}

func (p *simPool) Invalidate(sess Session) {
	p.mu.Lock()
	p.invalidated++
	sh := sess.(*ssh.Shell)
	delete(p.owner, sh)
	p.mu.Unlock()
	_ = sh.Close()
}

func (p *simPool) Evict(target Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evicted++
	for vsys, sh := range p.idle {
		_ = sh.Close()
		delete(p.idle, vsys)
	}
}

func (p *simPool) device(vsys string) *simulate.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.devices[vsys]
}

func (p *simPool) counts() (acquires, opened, invalidated int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires, p.opened, p.invalidated
}
