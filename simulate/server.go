package simulate

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netdriver/netdriver/pkg/logger"
)

// Server 以 SSH 方式提供一台模拟设备
// 每个 shell 会话拥有独立的 Device 状态。
type Server struct {
	profile  *Profile
	users    map[string]string
	maxConn  int
	idle     time.Duration
	hostKey  ssh.Signer
	listener net.Listener

	mu     sync.Mutex
	active int
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// ServerOptions 模拟服务参数
type ServerOptions struct {
	// Users 用户名 -> 口令
	Users   map[string]string
	MaxConn int
	Idle    time.Duration
	// HostKeyPath 为空时使用临时密钥
	HostKeyPath string
}

// NewServer 创建模拟设备服务
func NewServer(profile *Profile, opts ServerOptions) (*Server, error) {
	signer, err := loadOrCreateHostKey(opts.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}
	users := opts.Users
	if len(users) == 0 {
		users = map[string]string{"admin": "nova"}
	}
	return &Server{
		profile: profile,
		users:   users,
		maxConn: opts.MaxConn,
		idle:    opts.Idle,
		hostKey: signer,
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Listen 监听地址，如 127.0.0.1:0
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.wg.Add(1)
	go s.acceptLoop()
	logger.Info("Simulate: device listening", "device", s.profile.Key(), "addr", ln.Addr().String())
	return nil
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Profile 设备定义
func (s *Server) Profile() *Profile { return s.profile }

// Close 停止监听并断开所有会话
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			return
		}
		s.mu.Lock()
		if s.closed || (s.maxConn > 0 && s.active >= s.maxConn) {
			s.mu.Unlock()
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded", "device", s.profile.Key())
			continue
		}
		s.active++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			s.active--
			delete(s.conns, c)
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) checkPassword(user, password string) bool {
	want, ok := s.users[user]
	return ok && want == password
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if s.checkPassword(meta.User(), string(password)) {
				return nil, nil
			}
			logger.Debug("Simulate: auth failed (password)", "user", meta.User())
			return nil, fmt.Errorf("access denied")
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) > 0 && s.checkPassword(meta.User(), answers[0]) {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.Debug("Simulate: SSH handshake failed", "remote", nc.RemoteAddr().String(), "error", err)
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			logger.Error("Simulate: channel accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleSession(channel, requests, conn.User())
		}()
	}
	wg.Wait()
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, user string) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req", "window-change", "env":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			logger.Debug("Simulate: shell start", "device", s.profile.Key(), "user", user)
			go ssh.DiscardRequests(requests)
			d := NewDevice(s.profile)
			if err := Serve(d, s.idleGuard(channel)); err != nil && !errors.Is(err, errIdle) {
				logger.Debug("Simulate: session ended", "device", s.profile.Key(), "error", err)
			}
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

var errIdle = errors.New("session idle timeout")

// idleChannel 读取超过空闲时间时结束会话
type idleChannel struct {
	ssh.Channel
	idle time.Duration
}

func (s *Server) idleGuard(ch ssh.Channel) io.ReadWriter {
	if s.idle <= 0 {
		return ch
	}
	return &idleChannel{Channel: ch, idle: s.idle}
}

func (c *idleChannel) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := c.Channel.Read(p)
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(c.idle):
		_, _ = c.Channel.Write([]byte("\r\nSession closed due to idle timeout.\r\n"))
		_ = c.Channel.Close()
		return 0, errIdle
	}
}

// loadOrCreateHostKey 加载或生成 host key；path 为空时生成临时密钥
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			signer, err := ssh.ParsePrivateKey(bs)
			if err == nil {
				return signer, nil
			}
			logger.Warn("Simulate: host key parse failed, regenerating", "error", err)
		}
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure host key dir: %w", err)
		}
		if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write host key: %w", err)
		}
		logger.Info("Simulate: host key generated", "file", path)
	}
	return ssh.ParsePrivateKey(pemBytes)
}

// userList 日志展示
func userList(users map[string]string) string {
	names := make([]string, 0, len(users))
	for u := range users {
		names = append(names, u)
	}
	return strings.Join(names, ",")
}
