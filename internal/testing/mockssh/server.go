// Package mockssh provides a mock SSH server for testing.
package mockssh

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/crypto/ssh"
)

// Handler plays the remote side of an interactive shell.
type Handler func(rw io.ReadWriter)

// Server is a mock SSH server for testing.
type Server struct {
	listener   net.Listener
	config     *ssh.ServerConfig
	addr       string
	shell      string
	handler    Handler
	users      map[string]string // username -> password
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
	channels   []ssh.Channel
	conns      []net.Conn
	channelsMu sync.Mutex
}

// Option configures the mock SSH server.
type Option func(*Server)

// WithShell runs a real shell under a PTY for every shell request.
func WithShell(shell string) Option {
	return func(s *Server) {
		s.shell = shell
		s.handler = nil
	}
}

// WithHandler answers shell requests with h instead of a real shell.
func WithHandler(h Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithUser adds a user/password pair for authentication.
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = password
	}
}

// New creates a new mock SSH server listening on a random local port. Without
// options it serves EchoShell with a short banner and a "mock$ " prompt.
func New(opts ...Option) (*Server, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	s := &Server{
		handler: EchoShell("Welcome to mock", "mock$ ", nil),
		users:   map[string]string{"test": "test"},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			s.mu.RLock()
			expectedPass, ok := s.users[c.User()]
			s.mu.RUnlock()

			if ok && string(password) == expectedPass {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(signer)
	s.config = config

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	s.wg.Add(1)
	go s.acceptLoop()

	slog.Debug("mock SSH server started", slog.String("addr", s.addr))
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
}

// Host returns the host part of the address.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr)
	return host
}

// Port returns the port the server is listening on.
func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.addr)
	return port
}

// Close shuts down the server and every open channel.
func (s *Server) Close() error {
	close(s.done)
	err := s.listener.Close()

	s.channelsMu.Lock()
	for _, ch := range s.channels {
		ch.Close()
	}
	for _, c := range s.conns {
		c.Close()
	}
	s.channels, s.conns = nil, nil
	s.channelsMu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Debug("accept error", slog.String("error", err.Error()))
				continue
			}
		}

		s.channelsMu.Lock()
		s.conns = append(s.conns, conn)
		s.channelsMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(netConn net.Conn) {
	defer s.wg.Done()
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		slog.Debug("SSH handshake failed", slog.String("error", err.Error()))
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			slog.Debug("channel accept failed", slog.String("error", err.Error()))
			continue
		}

		s.channelsMu.Lock()
		s.channels = append(s.channels, channel)
		s.channelsMu.Unlock()

		s.wg.Add(1)
		go s.handleChannel(channel, requests)
	}
}

func (s *Server) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer s.wg.Done()
	defer channel.Close()

	var winSize *pty.Winsize
	for req := range requests {
		switch req.Type {
		case "pty-req":
			winSize = parsePtyRequest(req.Payload)
			req.Reply(true, nil)
		case "env":
			req.Reply(true, nil)
		case "shell":
			req.Reply(true, nil)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serveShell(channel, winSize)
			}()
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *Server) serveShell(channel ssh.Channel, winSize *pty.Winsize) {
	if s.handler != nil {
		s.handler(channel)
		sendExitStatus(channel, 0)
		return
	}

	cmd := exec.Command(s.shell)
	cmd.Env = append(os.Environ(), "PS1=$ ", "TERM=dumb")
	ptmx, err := pty.StartWithSize(cmd, winSize)
	if err != nil {
		slog.Debug("pty start failed", slog.String("error", err.Error()))
		sendExitStatus(channel, 1)
		return
	}

	done := make(chan struct{})
	go func() {
		io.Copy(channel, ptmx)
		close(done)
	}()
	go io.Copy(ptmx, channel)

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}
	ptmx.Close()
	<-done
	sendExitStatus(channel, exitCode)
}

// EchoShell emulates a line-oriented device: it prints banner and prompt,
// echoes every line it receives, prints the canned reply for it and prints
// the prompt again. "exit" ends the session. Unknown commands get no reply.
func EchoShell(banner, prompt string, replies map[string]string) Handler {
	return func(rw io.ReadWriter) {
		if banner != "" {
			io.WriteString(rw, banner+"\r\n")
		}
		io.WriteString(rw, prompt)

		scanner := bufio.NewScanner(rw)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			io.WriteString(rw, line+"\r\n")
			if line == "exit" {
				return
			}
			if reply, ok := replies[line]; ok {
				io.WriteString(rw, reply)
			}
			io.WriteString(rw, prompt)
		}
	}
}

func sendExitStatus(channel ssh.Channel, code int) {
	channel.CloseWrite()
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	channel.SendRequest("exit-status", false, payload)
	channel.Close()
}

// parsePtyRequest decodes the window size of an RFC 4254 pty-req payload.
func parsePtyRequest(payload []byte) *pty.Winsize {
	fallback := &pty.Winsize{Cols: 80, Rows: 24}
	if len(payload) < 4 {
		return fallback
	}
	termLen := int(binary.BigEndian.Uint32(payload))
	if len(payload) < 4+termLen+8 {
		return fallback
	}
	rest := payload[4+termLen:]
	return &pty.Winsize{
		Cols: uint16(binary.BigEndian.Uint32(rest)),
		Rows: uint16(binary.BigEndian.Uint32(rest[4:])),
	}
}
