package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/connect"
	"github.com/acolita/termdriver/internal/outcome"
	"github.com/acolita/termdriver/internal/recording"
	"github.com/acolita/termdriver/internal/security"
	"github.com/acolita/termdriver/internal/session"
)

const errSessionIDRequired = "session_id is required"

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(terminalConnectTool(), s.handleTerminalConnect)
	s.mcpServer.AddTool(terminalRunTool(), s.handleTerminalRun)
	s.mcpServer.AddTool(terminalCloseTool(), s.handleTerminalClose)
	s.mcpServer.AddTool(terminalListTool(), s.handleTerminalList)
	s.registerHostTools()
	s.registerSecretTools()
	s.registerRESTTools()
}

// Tool definitions

func terminalConnectTool() mcp.Tool {
	return mcp.NewTool("terminal_connect",
		mcp.WithDescription("Open an interactive terminal session (SSH or local PTY) and wait for the first prompt"),
		mcp.WithString("mode",
			mcp.Description("Session mode: 'ssh' (default) or 'local'"),
		),
		mcp.WithString("host",
			mcp.Description("SSH host, or the name of a configured host"),
		),
		mcp.WithNumber("port",
			mcp.Description("SSH port (default: 22)"),
		),
		mcp.WithString("user",
			mcp.Description("SSH username"),
		),
		mcp.WithString("password",
			mcp.Description("SSH password"),
		),
		mcp.WithString("key_path",
			mcp.Description("Path to an SSH private key"),
		),
		mcp.WithString("shell",
			mcp.Description("Shell binary for local mode"),
		),
		mcp.WithString("prompt_markers",
			mcp.Description(`JSON list of prompt markers, e.g. ["#", "$"]`),
		),
		mcp.WithString("log_file",
			mcp.Description("Append the raw session transcript to this file"),
		),
	)
}

func terminalRunTool() mcp.Tool {
	return mcp.NewTool("terminal_run",
		mcp.WithDescription("Run a command in a terminal session, answer interactive questions and classify the output"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID returned by terminal_connect"),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The command to execute"),
		),
		mcp.WithString("prompt_markers",
			mcp.Description("JSON list of prompt markers for this command only"),
		),
		mcp.WithString("responses",
			mcp.Description(`JSON list of answers: [{"question": "[y/n]", "answer": "y", "newline": true}] or [{"preset": "confirm-yes"}]`),
		),
		mcp.WithString("warnings",
			mcp.Description("JSON list of line prefixes that mark a warning"),
		),
		mcp.WithString("errors",
			mcp.Description("JSON list of line prefixes that mark a recoverable error"),
		),
		mcp.WithString("criticals",
			mcp.Description("JSON list of line prefixes that mark a fatal error"),
		),
	)
}

func terminalCloseTool() mcp.Tool {
	return mcp.NewTool("terminal_close",
		mcp.WithDescription("Close a terminal session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func terminalListTool() mcp.Tool {
	return mcp.NewTool("terminal_list",
		mcp.WithDescription("List open terminal sessions"),
	)
}

// Tool handlers

func (s *Server) handleTerminalConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := s.currentConfig()

	creq, err := s.connectRequest(cfg, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	endpoint := creq.Endpoint()

	limiter := s.rateLimiter()
	if locked, remaining := limiter.IsLocked(endpoint); locked {
		return mcp.NewToolResultError(fmt.Sprintf("%s is locked after repeated authentication failures, retry in %s",
			endpoint, remaining.Round(time.Second))), nil
	}

	factory, err := s.opener(cfg.Connection, creq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if creq.Password != "" && s.logSecrets != nil {
		s.logSecrets.Add(creq.Password)
	}

	id := session.NewID()
	opts := []session.Option{session.WithMaxStalls(cfg.Connection.MaxStalls)}
	logFile := mcp.ParseString(req, "log_file", "")
	if logFile == "" && cfg.Connection.TranscriptDir != "" {
		logFile = filepath.Join(cfg.Connection.TranscriptDir, id+".log")
	}
	if logFile != "" {
		opts = append(opts, session.WithTap(recording.NewTranscript(logFile, s.fs)))
	}
	rec, err := s.recordings.Start(id, endpoint, cfg.Connection.Cols, cfg.Connection.Rows)
	if err != nil {
		slog.Warn("recording not started", slog.String("session_id", id), slog.String("error", err.Error()))
	}
	if rec != nil {
		rec.Mask(creq.Password, creq.KeyPassphrase)
		opts = append(opts, session.WithTap(rec))
	}

	slog.Info("connecting terminal session",
		slog.String("session_id", id),
		slog.String("endpoint", endpoint),
	)

	_, d, err := s.sessions.CreateWithID(ctx, id, factory, connect.Markers(cfg.Connection, creq), opts...)
	if err != nil {
		s.recordings.Stop(id)
		var ae *outcome.AuthError
		if errors.As(err, &ae) && creq.Mode != connect.ModeLocal {
			limiter.RecordFailure(endpoint)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	limiter.RecordSuccess(endpoint)

	return jsonResult(map[string]any{
		"session_id": id,
		"endpoint":   endpoint,
		"hostname":   d.Hostname(),
		"state":      d.State(),
	})
}

// connectRequest resolves the tool arguments, filling them in from the
// configured host when host names one.
func (s *Server) connectRequest(cfg *config.Config, req mcp.CallToolRequest) (connect.Request, error) {
	host := mcp.ParseString(req, "host", "")

	var creq connect.Request
	if h, ok := cfg.FindHost(host); ok {
		creq = connect.FromHost(h, s.fs.Getenv)
	} else {
		creq = connect.Request{Host: host, Port: 22}
	}
	creq.Mode = mcp.ParseString(req, "mode", creq.Mode)
	if creq.Mode == "" {
		creq.Mode = connect.ModeSSH
	}
	creq.Port = mcp.ParseInt(req, "port", creq.Port)
	creq.User = mcp.ParseString(req, "user", creq.User)
	creq.Password = mcp.ParseString(req, "password", creq.Password)
	creq.KeyPath = mcp.ParseString(req, "key_path", creq.KeyPath)
	creq.Shell = mcp.ParseString(req, "shell", "")

	var markers []string
	if err := decodeArg(req, "prompt_markers", &markers); err != nil {
		return creq, err
	}
	if len(markers) > 0 {
		creq.PromptMarkers = markers
	}

	if creq.Mode == connect.ModeSSH {
		if creq.Host == "" {
			return creq, fmt.Errorf("host is required for ssh mode")
		}
		if creq.User == "" {
			return creq, fmt.Errorf("user is required for ssh mode")
		}
	}
	return creq, nil
}

func (s *Server) handleTerminalRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	command := mcp.ParseString(req, "command", "")

	if sessionID == "" {
		return mcp.NewToolResultError(errSessionIDRequired), nil
	}
	if command == "" {
		return mcp.NewToolResultError("command is required"), nil
	}

	call := config.Call{Command: command}
	for key, dst := range map[string]any{
		"prompt_markers": &call.PromptMarkers,
		"responses":      &call.Responses,
		"warnings":       &call.Warnings,
		"errors":         &call.Errors,
		"criticals":      &call.Criticals,
	} {
		if err := decodeArg(req, key, dst); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	rules, err := call.Rules()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.filter.Check(command); err != nil {
		var blocked *security.BlockedError
		if errors.As(err, &blocked) {
			slog.Warn("command blocked",
				slog.String("session_id", sessionID),
				slog.String("command", command),
				slog.String("reason", blocked.Reason),
			)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.sessions.Get(sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("executing command",
		slog.String("session_id", sessionID),
		slog.String("command", command),
	)

	o, err := d.Run(command, session.RunOptions{
		PromptMarkers: call.PromptMarkers,
		Rules:         rules,
		Markers:       call.Markers(),
	})
	var failure *outcome.Failure
	if err != nil && !errors.As(err, &failure) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if d.State() == session.StateClosed {
		s.sessions.Prune()
		s.recordings.Stop(sessionID)
	}

	return jsonResult(runResult{
		Status:   o.Kind.String(),
		Output:   o.Text,
		Severity: string(o.Severity),
		Marker:   o.Marker,
		Hostname: d.Hostname(),
		Closed:   d.State() == session.StateClosed,
	})
}

type runResult struct {
	Status   string `json:"status"`
	Output   string `json:"output"`
	Severity string `json:"severity,omitempty"`
	Marker   string `json:"marker,omitempty"`
	Hostname string `json:"hostname"`
	Closed   bool   `json:"closed"`
}

func (s *Server) handleTerminalClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError(errSessionIDRequired), nil
	}

	slog.Info("closing session", slog.String("session_id", sessionID))

	if err := s.sessions.Close(sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.recordings.Stop(sessionID); err != nil {
		slog.Debug("stop recording", slog.String("error", err.Error()))
	}
	return mcp.NewToolResultText("Session closed"), nil
}

func (s *Server) handleTerminalList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.sessions.Prune()
	return jsonResult(map[string]any{"sessions": s.sessions.List()})
}

// decodeArg decodes a list or object argument. Strings are parsed as YAML,
// which accepts JSON; structured values are re-encoded through JSON.
func decodeArg(req mcp.CallToolRequest, key string, out any) error {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	if str, ok := v.(string); ok {
		if strings.TrimSpace(str) == "" {
			return nil
		}
		if err := yaml.Unmarshal([]byte(str), out); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
