// Package realdialog provides a DialogProvider that asks the user on a
// terminal with charmbracelet/huh forms, falling back to plain line prompts
// when no terminal is attached.
package realdialog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/acolita/termdriver/internal/ports"
)

// ErrAborted is returned when the user cancels a form.
var ErrAborted = errors.New("dialog aborted")

// Provider implements ports.DialogProvider.
type Provider struct {
	in    io.Reader
	out   io.Writer
	forms bool
}

var _ ports.DialogProvider = (*Provider)(nil)

// New asks on stdin and stderr. Forms are used when stdin is a terminal.
func New() *Provider {
	return &Provider{
		in:    os.Stdin,
		out:   os.Stderr,
		forms: isatty.IsTerminal(os.Stdin.Fd()),
	}
}

// NewTTY asks on the controlling terminal, leaving stdin and stdout free for
// a protocol such as MCP over stdio.
func NewTTY() (*Provider, io.Closer, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open terminal: %w", err)
	}
	return &Provider{in: tty, out: tty, forms: true}, tty, nil
}

// NewLine asks with plain line prompts on in and out.
func NewLine(in io.Reader, out io.Writer) *Provider {
	return &Provider{in: in, out: out}
}

// AskSecret prompts for a hidden value.
func (p *Provider) AskSecret(req ports.CredentialRequest) (string, error) {
	title := req.Title
	if title == "" {
		title = "Password"
	}
	desc := req.Description
	if desc == "" && req.Host != "" {
		desc = fmt.Sprintf("%s@%s", req.User, req.Host)
	}

	if !p.forms {
		if desc != "" {
			fmt.Fprintln(p.out, desc)
		}
		return prompt(bufio.NewScanner(p.in), p.out, title, ""), nil
	}

	var value string
	err := p.run(huh.NewInput().
		Title(title).
		Description(desc).
		EchoMode(huh.EchoModePassword).
		Value(&value))
	if err != nil {
		return "", err
	}
	return value, nil
}

// Confirm asks a yes/no question. Line mode accepts y and yes.
func (p *Provider) Confirm(title, description string) (bool, error) {
	if !p.forms {
		if description != "" {
			fmt.Fprintln(p.out, description)
		}
		answer := prompt(bufio.NewScanner(p.in), p.out, title+" [y/N]", "n")
		return answer == "y" || answer == "Y" || answer == "yes", nil
	}

	var ok bool
	err := p.run(huh.NewConfirm().
		Title(title).
		Description(description).
		Value(&ok))
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (p *Provider) run(field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(p.in).
		WithOutput(p.out)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("dialog: %w", err)
	}
	return nil
}
