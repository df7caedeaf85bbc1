package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acolita/termdriver/internal/adapters/realdialog"
	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/connect"
	"github.com/acolita/termdriver/internal/ports"
	"github.com/acolita/termdriver/internal/recording"
	"github.com/acolita/termdriver/internal/session"
)

type runFlags struct {
	host          string
	port          int
	user          string
	mode          string
	keyPath       string
	useAgent      bool
	askPassword   bool
	shell         string
	promptMarkers []string
	logFile       string
	playbook      string
	commands      []string
	warnings      []string
	errors        []string
	criticals     []string
	jsonOutput    bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to a host and run commands or a playbook",
	Example: `  termdriver run --host web01 --command "uname -a"
  termdriver run --mode local --playbook deploy.yaml
  termdriver run --host 10.0.0.5 --user admin --ask-password --command "show version" --error "% Invalid"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pb, err := runOpts.calls()
		if err != nil {
			return err
		}
		req, err := runOpts.request(cfg, os.Getenv)
		if err != nil {
			return err
		}
		if runOpts.askPassword {
			pw, err := realdialog.New().AskSecret(ports.CredentialRequest{
				Title:       "SSH password",
				Description: req.Endpoint(),
				Host:        req.Host,
				User:        req.User,
			})
			if err != nil {
				return err
			}
			req.Password = pw
		}
		logSecrets.Add(req.Password, req.KeyPassphrase)
		if len(pb.PromptMarkers) > 0 && len(req.PromptMarkers) == 0 {
			req.PromptMarkers = pb.PromptMarkers
		}

		return runPlaybook(ctx, cmd.OutOrStdout(), cfg.Connection, req, pb, runOpts.logFile, runOpts.jsonOutput)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.host, "host", "", "configured host name or address")
	f.IntVar(&runOpts.port, "port", 0, "SSH port (default 22)")
	f.StringVarP(&runOpts.user, "user", "u", "", "SSH user")
	f.StringVar(&runOpts.mode, "mode", "", "ssh or local (default ssh, or local without --host)")
	f.StringVar(&runOpts.keyPath, "key-path", "", "private key file")
	f.BoolVar(&runOpts.useAgent, "agent", false, "authenticate with the SSH agent")
	f.BoolVar(&runOpts.askPassword, "ask-password", false, "prompt for the SSH password")
	f.StringVar(&runOpts.shell, "shell", "", "local shell to start (default $SHELL)")
	f.StringSliceVar(&runOpts.promptMarkers, "prompt-marker", nil, "prompt marker (repeatable)")
	f.StringVar(&runOpts.logFile, "log-file", "", "append the raw session transcript to this file")
	f.StringVarP(&runOpts.playbook, "playbook", "p", "", "YAML playbook of calls")
	f.StringArrayVar(&runOpts.commands, "command", nil, "command to run (repeatable)")
	f.StringSliceVar(&runOpts.warnings, "warning", nil, "warning marker for --command calls")
	f.StringSliceVar(&runOpts.errors, "error", nil, "error marker for --command calls")
	f.StringSliceVar(&runOpts.criticals, "critical", nil, "critical marker for --command calls")
	f.BoolVar(&runOpts.jsonOutput, "json", false, "print one JSON object per call")
	runCmd.MarkFlagsMutuallyExclusive("playbook", "command")
	rootCmd.AddCommand(runCmd)
}

// calls builds the playbook from --playbook or the --command flags.
func (f runFlags) calls() (*config.Playbook, error) {
	if f.playbook != "" {
		return config.LoadPlaybook(f.playbook, nil)
	}
	if len(f.commands) == 0 {
		return nil, errors.New("one of --playbook or --command is required")
	}
	pb := &config.Playbook{}
	for _, c := range f.commands {
		pb.Calls = append(pb.Calls, config.Call{
			Command:   c,
			Warnings:  f.warnings,
			Errors:    f.errors,
			Criticals: f.criticals,
		})
	}
	return pb, nil
}

// request resolves the connection target. A --host naming a configured host
// starts from that entry; explicit flags override it.
func (f runFlags) request(c *config.Config, getenv func(string) string) (connect.Request, error) {
	var req connect.Request
	if h, ok := c.FindHost(f.host); ok && f.host != "" {
		req = connect.FromHost(h, getenv)
	} else {
		req.Host = f.host
	}

	switch {
	case f.mode != "":
		req.Mode = f.mode
	case req.Host == "":
		req.Mode = connect.ModeLocal
	default:
		req.Mode = connect.ModeSSH
	}
	if f.port != 0 {
		req.Port = f.port
	}
	if f.user != "" {
		req.User = f.user
	}
	if f.keyPath != "" {
		req.KeyPath = f.keyPath
	}
	if f.useAgent {
		req.UseAgent = true
	}
	if f.shell != "" {
		req.Shell = f.shell
	}
	if len(f.promptMarkers) > 0 {
		req.PromptMarkers = f.promptMarkers
	}
	if req.Mode != connect.ModeLocal && req.Mode != connect.ModeSSH {
		return req, fmt.Errorf("unknown mode %q", req.Mode)
	}
	return req, nil
}

type callResult struct {
	Command  string `json:"command"`
	Status   string `json:"status"`
	Severity string `json:"severity,omitempty"`
	Marker   string `json:"marker,omitempty"`
	Output   string `json:"output"`
}

// runPlaybook connects and runs every call in order, stopping at the first
// failure. Interrupting ctx closes the session, which ends a blocked call.
func runPlaybook(ctx context.Context, out io.Writer, conn config.ConnectionConfig, req connect.Request, pb *config.Playbook, logFile string, jsonOutput bool) error {
	factory, err := connect.Factory(conn, req)
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithMaxStalls(conn.MaxStalls)}
	if logFile != "" {
		opts = append(opts, session.WithTap(recording.NewTranscript(logFile, nil)))
	}
	d := session.NewDriver(opts...)

	connectCtx := ctx
	if conn.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, conn.ConnectTimeout)
		defer cancel()
	}
	if err := d.Connect(connectCtx, factory, connect.Markers(conn, req)); err != nil {
		return err
	}
	defer d.Close()
	slog.Info("connected", slog.String("endpoint", d.Endpoint()), slog.String("hostname", d.Hostname()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.Close()
		case <-done:
		}
	}()

	enc := json.NewEncoder(out)
	for i, call := range pb.Calls {
		rules, err := call.Rules()
		if err != nil {
			return fmt.Errorf("calls[%d]: %w", i, err)
		}
		o, runErr := d.Run(call.Command, session.RunOptions{
			PromptMarkers: call.PromptMarkers,
			Rules:         rules,
			Markers:       call.Markers(),
		})

		res := callResult{Command: call.Command, Status: o.Kind.String(), Severity: string(o.Severity), Marker: o.Marker, Output: o.Text}
		if jsonOutput {
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else {
			printResult(out, res)
		}

		if runErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("calls[%d] %q: %w", i, call.Command, runErr)
		}
	}
	return nil
}

func printResult(out io.Writer, r callResult) {
	fmt.Fprintf(out, "### %s [%s", r.Command, r.Status)
	if r.Severity != "" {
		fmt.Fprintf(out, " %s", r.Severity)
	}
	if r.Marker != "" {
		fmt.Fprintf(out, " %q", r.Marker)
	}
	fmt.Fprintln(out, "]")
	if r.Output != "" {
		fmt.Fprintln(out, r.Output)
	}
}
