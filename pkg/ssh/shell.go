package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/netdriver/netdriver/internal/util"
	"github.com/netdriver/netdriver/pkg/terminal"
)

var (
	// ErrReadTimeout 超时仍未匹配到期望的提示符
	ErrReadTimeout = errors.New("read timeout")
	// ErrSessionClosed 会话已关闭或连接已断开
	ErrSessionClosed = errors.New("session closed")
)

// matchWindow 匹配提示符时只检查缓冲区末尾的字节数
const matchWindow = 4096

// Shell 交互式会话，后台协程持续读取输出到缓冲区
type Shell struct {
	session  io.Closer
	stdin    io.Writer
	encoding string

	mu     sync.Mutex
	buf    bytes.Buffer
	notify chan struct{}
	closed chan struct{}
	err    error
	once   sync.Once
}

func newShell(session io.Closer, stdin io.Writer, stdout io.Reader, encoding string) *Shell {
	s := &Shell{
		session:  session,
		stdin:    stdin,
		encoding: encoding,
		notify:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	go s.readLoop(stdout)
	return s
}

// NewShellFromPipes 由任意读写流构建 Shell（测试与非 SSH 传输复用）
func NewShellFromPipes(closer io.Closer, stdin io.Writer, stdout io.Reader, encoding string) *Shell {
	return newShell(closer, stdin, stdout, encoding)
}

func (s *Shell) readLoop(r io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.mu.Unlock()
			s.signal()
		}
		if err != nil {
			s.fail(err)
			return
		}
	}
}

func (s *Shell) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Shell) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		if err == io.EOF || err == nil {
			s.err = ErrSessionClosed
		} else {
			s.err = fmt.Errorf("%w: %v", ErrSessionClosed, err)
		}
		s.mu.Unlock()
		close(s.closed)
	})
}

// Write 按设备编码写入
func (s *Shell) Write(text string) error {
	if !s.IsAlive() {
		return s.closeErr()
	}
	b, err := util.Encode(text, s.encoding)
	if err != nil {
		return err
	}
	if _, err := s.stdin.Write(b); err != nil {
		s.fail(err)
		return s.closeErr()
	}
	return nil
}

// ReadUntil 读取直到输出最后一行匹配 pattern，返回期间累积的全部输出（已解码）
// 超时返回已读内容与 ErrReadTimeout；会话断开返回 ErrSessionClosed。
func (s *Shell) ReadUntil(pattern *regexp.Regexp, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if out, ok := s.take(pattern); ok {
			return out, nil
		}
		select {
		case <-s.notify:
		case <-s.closed:
			// 关闭前最后一批输出仍可能包含提示符
			if out, ok := s.take(pattern); ok {
				return out, nil
			}
			out := s.drain()
			return out, s.closeErr()
		case <-timer.C:
			if out, ok := s.take(pattern); ok {
				return out, nil
			}
			return s.drain(), ErrReadTimeout
		}
	}
}

func (s *Shell) take(pattern *regexp.Regexp) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		return "", false
	}
	raw := s.buf.Bytes()
	tail := raw
	if len(tail) > matchWindow {
		tail = tail[len(tail)-matchWindow:]
	}
	text, err := util.Decode(tail, s.encoding)
	if err != nil {
		text = string(tail)
	}
	last := terminal.LastLine(terminal.Normalize(terminal.StripANSI(text)))
	if !pattern.MatchString(last) {
		return "", false
	}
	out := s.decodeLocked()
	s.buf.Reset()
	return out, true
}

func (s *Shell) drain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.decodeLocked()
	s.buf.Reset()
	return out
}

func (s *Shell) decodeLocked() string {
	text, err := util.Decode(s.buf.Bytes(), s.encoding)
	if err != nil {
		return string(s.buf.Bytes())
	}
	return text
}

func (s *Shell) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return ErrSessionClosed
	}
	return s.err
}

// IsAlive 会话是否仍可用
func (s *Shell) IsAlive() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// Close 关闭会话
func (s *Shell) Close() error {
	s.fail(nil)
	if s.session != nil {
		return s.session.Close()
	}
	return nil
}
