package ssh

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

// ShellOptions configures the PTY requested for a remote shell.
type ShellOptions struct {
	Term string            // Terminal type (default: dumb)
	Rows uint32            // Terminal rows (default: 24)
	Cols uint32            // Terminal columns (default: 120)
	Env  map[string]string // Environment variables to request
}

// DefaultShellOptions returns a dumb terminal without colors.
func DefaultShellOptions() ShellOptions {
	return ShellOptions{
		Term: "dumb",
		Rows: 24,
		Cols: 120,
		Env:  map[string]string{"NO_COLOR": "1"},
	}
}

// Shell is an interactive shell on a PTY. Reads return the remote terminal
// output; writes go to its input. Closing the shell also closes the client.
type Shell struct {
	client  *Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	mu     sync.Mutex
	closed bool
}

// OpenShell starts a login shell on a PTY over client.
func OpenShell(client *Client, opts ShellOptions) (*Shell, error) {
	if opts.Term == "" {
		opts.Term = "dumb"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 120
	}

	session, err := client.newSession()
	if err != nil {
		return nil, err
	}

	// Servers commonly refuse env requests; that is not an error here.
	for key, value := range opts.Env {
		session.Setenv(key, value)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(opts.Term, int(opts.Rows), int(opts.Cols), modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &Shell{client: client, session: session, stdin: stdin, stdout: stdout}, nil
}

func (s *Shell) Read(b []byte) (int, error) {
	return s.stdout.Read(b)
}

func (s *Shell) Write(b []byte) (int, error) {
	return s.stdin.Write(b)
}

// Resize changes the remote window size.
func (s *Shell) Resize(rows, cols uint32) error {
	if err := s.session.WindowChange(int(rows), int(cols)); err != nil {
		return fmt.Errorf("window change: %w", err)
	}
	return nil
}

// Close ends the session and the connection. Repeated calls return nil.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.session.Close()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return errors.Join(err, s.client.Close())
}
