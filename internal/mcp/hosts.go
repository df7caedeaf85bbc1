package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/termdriver/internal/config"
)

func (s *Server) registerHostTools() {
	s.mcpServer.AddTool(terminalHostAddTool(), s.handleTerminalHostAdd)
}

func terminalHostAddTool() mcp.Tool {
	return mcp.NewTool("terminal_host_add",
		mcp.WithDescription(`Add a named SSH host to the configuration.

The user confirms the entry on their terminal before it is saved, so
credentials stay out of the conversation: give the names of environment
variables holding passwords, never the passwords themselves.

Requires a config file path (--config flag at startup).`),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short name for the host (e.g., 'core-router')"),
		),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("SSH hostname or IP address"),
		),
		mcp.WithNumber("port",
			mcp.Description("SSH port (default: 22)"),
		),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("SSH username"),
		),
		mcp.WithString("key_path",
			mcp.Description("Path to SSH private key"),
		),
		mcp.WithString("password_env",
			mcp.Description("Environment variable containing the SSH password"),
		),
		mcp.WithString("prompt_markers",
			mcp.Description("JSON list of prompt markers for this host"),
		),
	)
}

func (s *Server) handleTerminalHostAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.configPath == "" {
		return mcp.NewToolResultError(
			"No config file path set. Start the server with --config to enable host management.",
		), nil
	}
	if s.dialog == nil {
		return mcp.NewToolResultError("no terminal available to confirm the host"), nil
	}

	h := config.HostConfig{
		Name:        mcp.ParseString(req, "name", ""),
		Host:        mcp.ParseString(req, "host", ""),
		Port:        mcp.ParseInt(req, "port", 22),
		User:        mcp.ParseString(req, "user", ""),
		KeyPath:     mcp.ParseString(req, "key_path", ""),
		PasswordEnv: mcp.ParseString(req, "password_env", ""),
	}
	if err := decodeArg(req, "prompt_markers", &h.PromptMarkers); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch {
	case h.Name == "":
		return mcp.NewToolResultError("name is required"), nil
	case h.Host == "":
		return mcp.NewToolResultError("host is required"), nil
	case h.User == "":
		return mcp.NewToolResultError("user is required"), nil
	}

	if _, ok := s.currentConfig().FindHost(h.Name); ok {
		return mcp.NewToolResultError(fmt.Sprintf("host %q already exists in config", h.Name)), nil
	}

	slog.Info("asking user to confirm host", slog.String("host_name", h.Name))

	ok, err := s.dialog.Confirm(
		fmt.Sprintf("Add host %q?", h.Name),
		fmt.Sprintf("%s@%s:%d will be saved to %s", h.User, h.Host, h.Port, s.configPath),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("dialog error: %v", err)), nil
	}
	if !ok {
		slog.Info("host configuration cancelled by user", slog.String("host_name", h.Name))
		return jsonResult(map[string]any{
			"status":  "cancelled",
			"message": "User cancelled the configuration",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.config.AddHost(h); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add host: %v", err)), nil
	}
	if err := config.Save(s.config, s.configPath, s.fs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save config: %v", err)), nil
	}

	slog.Info("host configuration saved",
		slog.String("host_name", h.Name),
		slog.String("host", h.Host),
		slog.String("config_path", s.configPath),
	)

	return jsonResult(map[string]any{
		"status":      "saved",
		"host_name":   h.Name,
		"host":        h.Host,
		"port":        h.Port,
		"user":        h.User,
		"config_path": s.configPath,
	})
}
