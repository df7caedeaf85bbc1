// Package pty starts local shells on a pseudo-terminal, for driving the
// machine the process runs on the same way as a remote host.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/creack/pty"
)

// Options configures PTY allocation.
type Options struct {
	Shell string   // Shell to use (defaults to $SHELL or /bin/sh)
	Term  string   // Terminal type (default: dumb)
	Rows  uint16   // Terminal rows (default: 24)
	Cols  uint16   // Terminal columns (default: 120)
	Dir   string   // Initial working directory
	Env   []string // Additional environment variables
	NoRC  bool     // Skip the shell's startup files so PS1 sticks
}

// DefaultOptions returns options for a prompt of "$ " without colors.
func DefaultOptions() Options {
	shell := detectShell()
	return Options{
		Shell: shell,
		Term:  "dumb",
		Rows:  24,
		Cols:  120,
		Env:   ShellEnv(shell),
		NoRC:  true,
	}
}

// ShellEnv returns the environment that gives shell a plain "$ " prompt.
func ShellEnv(shell string) []string {
	env := []string{"NO_COLOR=1"}

	switch filepath.Base(shell) {
	case "zsh":
		env = append(env,
			"PROMPT=$ ",
			"PS1=$ ",
			"PROMPT_COMMAND=",
			"precmd_functions=",
			"RPROMPT=",
		)
	case "fish":
		env = append(env, "PS1=$ ", "fish_greeting=")
	default:
		env = append(env, "PS1=$ ", "PROMPT_COMMAND=")
	}
	return env
}

func noRCFlags(shell string, noRC bool) []string {
	if !noRC {
		return nil
	}
	switch filepath.Base(shell) {
	case "bash":
		return []string{"--norc", "--noprofile"}
	case "zsh":
		return []string{"--no-rcs", "--no-globalrcs"}
	case "fish":
		return []string{"--no-config"}
	}
	return nil
}

// Shell is a local shell process attached to a PTY.
type Shell struct {
	cmd  *exec.Cmd
	pty  *os.File
	path string

	mu     sync.Mutex
	closed bool
}

// Start launches a shell on a new PTY.
func Start(opts Options) (*Shell, error) {
	if opts.Shell == "" {
		opts.Shell = detectShell()
	}
	if opts.Term == "" {
		opts.Term = "dumb"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 120
	}

	cmd := exec.Command(opts.Shell, noRCFlags(opts.Shell, opts.NoRC)...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), "TERM="+opts.Term)
	cmd.Env = append(cmd.Env, opts.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}
	return &Shell{cmd: cmd, pty: ptmx, path: opts.Shell}, nil
}

// Path returns the shell binary.
func (s *Shell) Path() string {
	return s.path
}

func (s *Shell) Read(b []byte) (int, error) {
	return s.pty.Read(b)
}

func (s *Shell) Write(b []byte) (int, error) {
	return s.pty.Write(b)
}

// Resize resizes the PTY window.
func (s *Shell) Resize(rows, cols uint16) error {
	return pty.Setsize(s.pty, &pty.Winsize{Rows: rows, Cols: cols})
}

// Close closes the PTY and kills the shell. Repeated calls return nil.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.pty.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pty: %w", err))
	}
	if s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill process: %w", err))
		}
		s.cmd.Wait()
	}
	return errors.Join(errs...)
}

func detectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	for _, shell := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}
